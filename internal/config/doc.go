// Package config loads, normalizes, and validates slcache configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies SLCACHE_* environment overrides.
// The Config type centralizes every knob the daemon and CLI need: where the
// cache lives, its byte budget, the purge cadence, and where state, logs and
// metrics go.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
