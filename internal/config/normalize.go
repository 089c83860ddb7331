package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.normalizeJournal()
	c.normalizeLogging()
	c.normalizeMetrics()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCache() error {
	var err error
	if strings.TrimSpace(c.Cache.Dir) == "" {
		c.Cache.Dir = defaultCacheDir()
	}
	if c.Cache.Dir, err = expandPath(c.Cache.Dir); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}
	c.Cache.StaticAssetsDir = strings.TrimSpace(c.Cache.StaticAssetsDir)
	if c.Cache.StaticAssetsDir != "" {
		if c.Cache.StaticAssetsDir, err = expandPath(c.Cache.StaticAssetsDir); err != nil {
			return fmt.Errorf("cache.static_assets_dir: %w", err)
		}
	}
	if c.Cache.TouchThresholdSeconds < 0 {
		c.Cache.TouchThresholdSeconds = 0
	}
	return nil
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.PurgeIntervalSeconds == 0 {
		c.Scheduler.PurgeIntervalSeconds = defaultPurgeIntervalSeconds
	}
}

func (c *Config) normalizeJournal() {
	if c.Journal.KeepRuns == 0 {
		c.Journal.KeepRuns = defaultJournalKeepRuns
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
}
