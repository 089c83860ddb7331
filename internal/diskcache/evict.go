package diskcache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"slcache/internal/assetkey"
	"slcache/internal/logging"
)

// Action is the outcome of an eviction pass for one file.
type Action string

const (
	ActionKeep    Action = "keep"
	ActionDelete  Action = "delete"
	ActionProtect Action = "protect"
	ActionFailed  Action = "failed"
)

// Decision records what a pass did with one file. Decisions are only
// collected when debug info is enabled.
type Decision struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ModTime      time.Time `json:"mod_time"`
	Action       Action    `json:"action"`
	RunningTotal int64     `json:"running_total"`
}

// PassResult summarizes one eviction pass.
type PassResult struct {
	PassID       string        `json:"pass_id"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Duration     time.Duration `json:"duration"`
	Budget       int64         `json:"budget"`
	Scanned      int           `json:"scanned"`
	Kept         int           `json:"kept"`
	Deleted      int           `json:"deleted"`
	Protected    int           `json:"protected"`
	Failed       int           `json:"failed"`
	BytesBefore  int64         `json:"bytes_before"`
	BytesAfter   int64         `json:"bytes_after"`
	BytesDeleted int64         `json:"bytes_deleted"`
	Decisions    []Decision    `json:"decisions,omitempty"`
}

// PassObserver is notified after every completed eviction pass.
type PassObserver interface {
	ObservePass(ctx context.Context, result PassResult)
}

type fileInfo struct {
	path    string
	size    int64
	modTime time.Time
}

// Purge runs one eviction pass: entries are ranked newest first and every
// unprotected entry past the point where the running total exceeds the budget
// is deleted. Protected entries are kept, still count toward the total, and
// have their mtime set to now. Per-file failures are logged and skipped. Once
// started a pass runs to completion; ctx only carries log fields.
func (c *Cache) Purge(ctx context.Context) (PassResult, error) {
	if c.readOnly {
		return PassResult{}, nil
	}
	c.passMu.Lock()
	defer c.passMu.Unlock()
	result := PassResult{
		PassID:    uuid.NewString(),
		StartedAt: time.Now(),
		Budget:    c.maxBytes,
	}
	ctx = logging.WithPassID(ctx, result.PassID)
	logger := logging.WithContext(ctx, c.logger)

	files, err := c.scan(logger)
	if err != nil {
		return result, err
	}
	sortNewestFirst(files)

	logger.InfoContext(ctx, "purging cache",
		logging.Int64("max_bytes", c.maxBytes),
		logging.Int("files", len(files)),
		logging.String(logging.FieldEventType, "cache_purge_started"),
	)

	if c.debugInfo {
		result.Decisions = make([]Decision, 0, len(files))
	}
	var total int64
	for _, file := range files {
		result.Scanned++
		result.BytesBefore += file.size
		total += file.size

		action := c.decide(logger, file, total)
		switch action {
		case ActionKeep:
			result.Kept++
		case ActionProtect:
			result.Protected++
		case ActionDelete:
			result.Deleted++
			result.BytesDeleted += file.size
		case ActionFailed:
			result.Failed++
		}
		if c.debugInfo {
			result.Decisions = append(result.Decisions, Decision{
				Path:         file.path,
				Size:         file.size,
				ModTime:      file.modTime,
				Action:       action,
				RunningTotal: total,
			})
		}
	}

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.BytesAfter = result.BytesBefore - result.BytesDeleted

	// Per-file lines are emitted after timing so they do not skew the duration.
	if c.debugInfo {
		for _, d := range result.Decisions {
			logger.InfoContext(ctx, "purge decision",
				logging.String("action", string(d.Action)),
				logging.String(logging.FieldPath, d.Path),
				logging.Int64("size", d.Size),
				logging.Time("mod_time", d.ModTime),
				logging.Int64("running_total", d.RunningTotal),
				logging.Int64("max_bytes", c.maxBytes),
			)
		}
	}

	logger.InfoContext(ctx, "cache purge completed",
		logging.Int("scanned", result.Scanned),
		logging.Int("kept", result.Kept),
		logging.Int("deleted", result.Deleted),
		logging.Int("protected", result.Protected),
		logging.Int("failed", result.Failed),
		logging.Int64("bytes_before", result.BytesBefore),
		logging.Int64("bytes_after", result.BytesAfter),
		logging.Int64("duration_ms", result.Duration.Milliseconds()),
		logging.String(logging.FieldEventType, "cache_purge_completed"),
	)
	return result, nil
}

func (c *Cache) decide(logger *slog.Logger, file fileInfo, runningTotal int64) Action {
	if runningTotal <= c.maxBytes {
		return ActionKeep
	}
	if key, err := assetkey.ParseFilename(filepath.Base(file.path)); err == nil && c.skip.Contains(key) {
		now := time.Now()
		if err := os.Chtimes(file.path, now, now); err != nil {
			logging.WarnWithContext(logger, "refresh protected cache entry failed", "cache_protect_touch_failed",
				logging.String(logging.FieldPath, file.path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "protected entry kept but sorts as stale next pass"),
				logging.String(logging.FieldErrorHint, "check cache directory permissions"),
			)
		}
		return ActionProtect
	}
	if err := os.Remove(file.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "delete cache file failed", "cache_evict_failed",
			logging.String(logging.FieldPath, file.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "cache may remain over budget until the next pass"),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
		)
		return ActionFailed
	}
	return ActionDelete
}

// scan collects every regular cache file under the root. Files that cannot be
// stat'ed are logged and skipped. A missing root yields no files.
func (c *Cache) scan(logger *slog.Logger) ([]fileInfo, error) {
	files := make([]fileInfo, 0)
	err := filepath.WalkDir(c.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == c.root {
				return err
			}
			logger.Warn("skip cache path; excluded from purge",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cache_scan_skipped"),
				logging.String(logging.FieldErrorHint, "entry may have been removed during the scan"),
			)
			return nil
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), Suffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logger.Warn("skip cache file; stat failed",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cache_scan_skipped"),
				logging.String(logging.FieldErrorHint, "entry may have been removed during the scan"),
			)
			return nil
		}
		files = append(files, fileInfo{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return files, nil
		}
		return nil, fmt.Errorf("diskcache: scan cache root: %w", err)
	}
	return files, nil
}

// sortNewestFirst orders by mtime descending, breaking ties by path.
func sortNewestFirst(files []fileInfo) {
	slices.SortFunc(files, func(a, b fileInfo) int {
		if c := b.modTime.Compare(a.modTime); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})
}
