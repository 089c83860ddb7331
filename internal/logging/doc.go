// Package logging assembles structured slog loggers and formatting helpers used
// across slcache.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so eviction passes can tag log
// lines with their pass ID. The package also provides a no-op logger for tests
// and wiring code that cannot fail.
package logging
