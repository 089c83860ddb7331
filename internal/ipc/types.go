package ipc

import (
	"time"

	"slcache/internal/diskcache"
	"slcache/internal/purgelog"
)

// PassSummary is the wire form of an eviction pass without per-file decisions.
type PassSummary struct {
	PassID       string    `json:"pass_id"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	Budget       int64     `json:"budget"`
	Scanned      int       `json:"scanned"`
	Kept         int       `json:"kept"`
	Deleted      int       `json:"deleted"`
	Protected    int       `json:"protected"`
	Failed       int       `json:"failed"`
	BytesBefore  int64     `json:"bytes_before"`
	BytesAfter   int64     `json:"bytes_after"`
	BytesDeleted int64     `json:"bytes_deleted"`
}

// FromPassResult converts an eviction result into its wire form.
func FromPassResult(result diskcache.PassResult) PassSummary {
	return PassSummary{
		PassID:       result.PassID,
		StartedAt:    result.StartedAt,
		DurationMS:   result.Duration.Milliseconds(),
		Budget:       result.Budget,
		Scanned:      result.Scanned,
		Kept:         result.Kept,
		Deleted:      result.Deleted,
		Protected:    result.Protected,
		Failed:       result.Failed,
		BytesBefore:  result.BytesBefore,
		BytesAfter:   result.BytesAfter,
		BytesDeleted: result.BytesDeleted,
	}
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon and cache status information.
type StatusResponse struct {
	Running          bool            `json:"running"`
	PID              int             `json:"pid"`
	StartedAt        time.Time       `json:"started_at"`
	SchedulerRunning bool            `json:"scheduler_running"`
	PurgeIntervalSec int64           `json:"purge_interval_seconds"`
	Usage            diskcache.Usage `json:"usage"`
	UsageSummary     string          `json:"usage_summary"`
	LastPass         *PassSummary    `json:"last_pass,omitempty"`
	CacheDir         string          `json:"cache_dir"`
	LockPath         string          `json:"lock_path"`
	JournalPath      string          `json:"journal_path,omitempty"`
	MetricsBind      string          `json:"metrics_bind,omitempty"`
}

// PurgeRequest triggers an immediate eviction pass.
type PurgeRequest struct{}

// PurgeResponse reports the pass that ran.
type PurgeResponse struct {
	Pass PassSummary `json:"pass"`
}

// ClearRequest empties the cache.
type ClearRequest struct{}

// ClearResponse reports usage after the clear and reseed.
type ClearResponse struct {
	Usage diskcache.Usage `json:"usage"`
}

// SeedRequest re-copies missing static assets.
type SeedRequest struct{}

// SeedResponse reports seeding counts.
type SeedResponse struct {
	Copied   int `json:"copied"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// UsageRequest fetches disk consumption.
type UsageRequest struct{}

// UsageResponse reports disk consumption.
type UsageResponse struct {
	Usage   diskcache.Usage `json:"usage"`
	Summary string          `json:"summary"`
}

// HistoryRequest fetches recent journaled passes.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains journaled passes, newest first.
type HistoryResponse struct {
	Runs []purgelog.Run `json:"runs"`
}

// ProtectedRequest lists the keys eviction never deletes.
type ProtectedRequest struct{}

// ProtectedResponse contains protected keys.
type ProtectedResponse struct {
	Keys []string `json:"keys"`
}
