package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"slcache/internal/config"
	"slcache/internal/diskcache"
	"slcache/internal/logging"
	"slcache/internal/metrics"
	"slcache/internal/purgelog"
)

// ErrJournalDisabled is returned by History when the purge journal is off.
var ErrJournalDisabled = errors.New("purge journal disabled")

// Daemon owns the cache and its background purge loop and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	cache     *diskcache.Cache
	scheduler *diskcache.Scheduler
	journal   *purgelog.Journal
	metrics   *metrics.Collector

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool                 `json:"running"`
	PID              int                  `json:"pid"`
	StartedAt        time.Time            `json:"started_at"`
	SchedulerRunning bool                 `json:"scheduler_running"`
	PurgeInterval    time.Duration        `json:"purge_interval"`
	Usage            diskcache.Usage      `json:"usage"`
	UsageSummary     string               `json:"usage_summary"`
	LastPass         diskcache.PassResult `json:"last_pass"`
	CacheDir         string               `json:"cache_dir"`
	LockFilePath     string               `json:"lock_path"`
	JournalPath      string               `json:"journal_path,omitempty"`
	MetricsBind      string               `json:"metrics_bind,omitempty"`
}

// New constructs a daemon with initialized dependencies. The cache is not
// touched on disk until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	var observers []diskcache.PassObserver
	opts := diskcache.OptionsFromConfig(cfg)
	if cfg.Metrics.Enabled {
		d.metrics = metrics.New()
		d.metrics.SetBudget(cfg.Cache.MaxBytes)
		opts.EntryObserver = d.metrics
		observers = append(observers, d.metrics)
	}
	if cfg.Journal.Enabled {
		journal, err := purgelog.Open(cfg.JournalPath(), cfg.Journal.KeepRuns, logger)
		if err != nil {
			return nil, fmt.Errorf("open purge journal: %w", err)
		}
		d.journal = journal
		observers = append(observers, journal)
	}

	d.cache = diskcache.New(opts, logger)
	d.scheduler = diskcache.NewScheduler(d.cache, cfg.PurgeInterval(), logger, observers...)
	return d, nil
}

// Start acquires the daemon lock, initializes the cache, and launches the
// purge scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure state directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another slcache daemon instance is already running")
	}

	if err := d.cache.Init(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("initialize cache: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.cfg.Scheduler.Enabled && !d.cache.ReadOnly() {
		if err := d.scheduler.Start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start purge scheduler: %w", err)
		}
	}

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("slcache daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("cache_dir", d.cache.Root()),
		logging.String("usage", d.cache.UsageSummary()),
	)
	return nil
}

// Stop stops the scheduler and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next daemon start may report a running instance"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("slcache daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool { return d.running.Load() }

// Cache exposes the managed cache.
func (d *Daemon) Cache() *diskcache.Cache { return d.cache }

// Metrics returns the collector, or nil when metrics are disabled.
func (d *Daemon) Metrics() *metrics.Collector { return d.metrics }

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	last := d.scheduler.LastPass()
	last.Decisions = nil
	status := Status{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		StartedAt:        startedAt,
		SchedulerRunning: d.scheduler.Running(),
		PurgeInterval:    d.cfg.PurgeInterval(),
		Usage:            d.cache.Usage(),
		UsageSummary:     d.cache.UsageSummary(),
		LastPass:         last,
		CacheDir:         d.cache.Root(),
		LockFilePath:     d.lockPath,
	}
	if d.journal != nil {
		status.JournalPath = d.journal.Path()
	}
	if d.metrics != nil {
		status.MetricsBind = d.cfg.Metrics.Bind
	}
	return status
}

// Purge runs an eviction pass now. Concurrent requests share one pass.
func (d *Daemon) Purge(ctx context.Context) (diskcache.PassResult, error) {
	if !d.running.Load() {
		return diskcache.PassResult{}, errors.New("daemon not running")
	}
	return d.scheduler.RunNow(ctx)
}

// Clear empties the cache and restores static entries.
func (d *Daemon) Clear(ctx context.Context) error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	return d.cache.Clear(ctx)
}

// Seed re-copies static assets that are missing from the cache.
func (d *Daemon) Seed(ctx context.Context) (diskcache.SeedResult, error) {
	if !d.running.Load() {
		return diskcache.SeedResult{}, errors.New("daemon not running")
	}
	return d.cache.Seed(ctx)
}

// Usage reports current disk consumption.
func (d *Daemon) Usage() diskcache.Usage {
	return d.cache.Usage()
}

// Protected lists the keys eviction never deletes, sorted.
func (d *Daemon) Protected() []string {
	keys := d.cache.SkipSet().Keys()
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.String())
	}
	return out
}

// History returns up to limit journaled passes, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]purgelog.Run, error) {
	if d.journal == nil {
		return nil, ErrJournalDisabled
	}
	return d.journal.Recent(ctx, limit)
}
