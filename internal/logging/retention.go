package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget selects log files to prune: files in Dir whose names match
// Pattern (all files when empty), minus the Exclude paths.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes matching files last modified more than retentionDays
// ago and returns how many were removed. Zero or negative retention disables
// pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		for _, path := range expiredFiles(target, cutoff) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String(FieldPath, path),
					Error(err),
					String(FieldErrorHint, "check ownership of paths.log_dir"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			removed++
			logger.Debug("log pruned", String(FieldPath, path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}

func expiredFiles(target RetentionTarget, cutoff time.Time) []string {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	pattern := strings.TrimSpace(target.Pattern)
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}
	skip := make(map[string]bool, len(target.Exclude))
	for _, path := range target.Exclude {
		if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
			skip[abs] = true
		}
	}
	var expired []string
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil && skip[abs] {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		expired = append(expired, path)
	}
	return expired
}
