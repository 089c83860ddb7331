package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"slcache/internal/diskcache"
)

const namespace = "slcache"

// Collector records entry traffic and eviction passes.
type Collector struct {
	registry *prometheus.Registry

	reads      *prometheus.CounterVec
	readBytes  prometheus.Counter
	writes     *prometheus.CounterVec
	writeBytes prometheus.Counter

	passes       prometheus.Counter
	passDuration prometheus.Histogram
	entries      *prometheus.CounterVec
	bytesDeleted prometheus.Counter
	usedBytes    prometheus.Gauge
	budgetBytes  prometheus.Gauge
	lastPass     prometheus.Gauge
}

// New builds a collector and registers it, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Entry reads by outcome.",
		}, []string{"result"}),
		readBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_bytes_total",
			Help:      "Bytes returned by entry reads.",
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Entry writes by outcome.",
		}, []string{"result"}),
		writeBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_bytes_total",
			Help:      "Bytes written to entries.",
		}),
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_passes_total",
			Help:      "Completed eviction passes.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "purge_pass_duration_seconds",
			Help:      "Wall time of eviction passes.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_entries_total",
			Help:      "Entries visited by eviction passes, by decision.",
		}, []string{"action"}),
		bytesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_deleted_bytes_total",
			Help:      "Bytes reclaimed by eviction.",
		}),
		usedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "used_bytes",
			Help:      "Entry bytes on disk after the most recent pass.",
		}),
		budgetBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_bytes",
			Help:      "Configured byte budget.",
		}),
		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_purge_timestamp_seconds",
			Help:      "Unix time the most recent pass finished.",
		}),
	}
	c.registry.MustRegister(
		c.reads, c.readBytes, c.writes, c.writeBytes,
		c.passes, c.passDuration, c.entries, c.bytesDeleted,
		c.usedBytes, c.budgetBytes, c.lastPass,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// SetBudget records the configured byte budget.
func (c *Collector) SetBudget(bytes int64) { c.budgetBytes.Set(float64(bytes)) }

// ObserveRead implements diskcache.EntryObserver.
func (c *Collector) ObserveRead(hit bool, bytes int) {
	if !hit {
		c.reads.WithLabelValues("miss").Inc()
		return
	}
	c.reads.WithLabelValues("hit").Inc()
	c.readBytes.Add(float64(bytes))
}

// ObserveWrite implements diskcache.EntryObserver.
func (c *Collector) ObserveWrite(ok bool, bytes int) {
	if !ok {
		c.writes.WithLabelValues("failed").Inc()
		return
	}
	c.writes.WithLabelValues("ok").Inc()
	c.writeBytes.Add(float64(bytes))
}

// ObservePass implements diskcache.PassObserver.
func (c *Collector) ObservePass(_ context.Context, result diskcache.PassResult) {
	c.passes.Inc()
	c.passDuration.Observe(result.Duration.Seconds())
	c.entries.WithLabelValues(string(diskcache.ActionKeep)).Add(float64(result.Kept))
	c.entries.WithLabelValues(string(diskcache.ActionDelete)).Add(float64(result.Deleted))
	c.entries.WithLabelValues(string(diskcache.ActionProtect)).Add(float64(result.Protected))
	c.entries.WithLabelValues(string(diskcache.ActionFailed)).Add(float64(result.Failed))
	c.bytesDeleted.Add(float64(result.BytesDeleted))
	c.usedBytes.Set(float64(result.BytesAfter))
	c.budgetBytes.Set(float64(result.Budget))
	if !result.FinishedAt.IsZero() {
		c.lastPass.Set(float64(result.FinishedAt.Unix()))
	}
}
