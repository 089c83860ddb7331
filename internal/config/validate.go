package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCache() error {
	if strings.TrimSpace(c.Cache.Dir) == "" {
		return errors.New("cache.dir must be set")
	}
	if c.Cache.MaxBytes <= 0 {
		return errors.New("cache.max_bytes must be positive")
	}
	if c.Cache.Version < 0 {
		return errors.New("cache.version must not be negative")
	}
	if c.Cache.StaticAssetsDir != "" {
		if samePath(c.Cache.StaticAssetsDir, c.Cache.Dir) || isWithin(c.Cache.StaticAssetsDir, c.Cache.Dir) {
			return fmt.Errorf("cache.static_assets_dir %q must live outside cache.dir", c.Cache.StaticAssetsDir)
		}
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.PurgeIntervalSeconds <= 0 {
		return errors.New("scheduler.purge_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateJournal() error {
	if c.Journal.KeepRuns < 0 {
		return errors.New("journal.keep_runs must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func (c *Config) validateMetrics() error {
	if !c.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Bind); err != nil {
		return fmt.Errorf("metrics.bind: %w", err)
	}
	return nil
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}
