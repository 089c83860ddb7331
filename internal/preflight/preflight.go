package preflight

import (
	"context"

	"slcache/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Cache directory (always checked; write access only when writable)
	if cfg.Cache.ReadOnly {
		results = append(results, CheckReadableDirectory("Cache directory", cfg.Cache.Dir))
	} else {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Cache.Dir))
		results = append(results, CheckFreeSpace("Cache free space", cfg.Cache.Dir, uint64(cfg.Cache.MaxBytes)))
	}

	// State directory holds the lock, socket and journal
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	// Static assets (when configured)
	if cfg.Cache.StaticAssetsDir != "" {
		results = append(results, CheckReadableDirectory("Static assets", cfg.Cache.StaticAssetsDir))
	}

	// Metrics listener
	if cfg.Metrics.Enabled {
		results = append(results, CheckListenAddress(ctx, "Metrics listener", cfg.Metrics.Bind))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
