package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the SLCACHE_* variables that take precedence over the file.
type envOverrides struct {
	CacheDir        string `env:"SLCACHE_DIR"`
	MaxBytes        int64  `env:"SLCACHE_MAX_BYTES"`
	StaticAssetsDir string `env:"SLCACHE_STATIC_ASSETS_DIR"`
	ReadOnly        string `env:"SLCACHE_READ_ONLY"`
	StateDir        string `env:"SLCACHE_STATE_DIR"`
	LogDir          string `env:"SLCACHE_LOG_DIR"`
	LogLevel        string `env:"SLCACHE_LOG_LEVEL"`
	LogFormat       string `env:"SLCACHE_LOG_FORMAT"`
	MetricsBind     string `env:"SLCACHE_METRICS_BIND"`
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if v := strings.TrimSpace(overrides.CacheDir); v != "" {
		c.Cache.Dir = v
	}
	if overrides.MaxBytes > 0 {
		c.Cache.MaxBytes = overrides.MaxBytes
	}
	if v := strings.TrimSpace(overrides.StaticAssetsDir); v != "" {
		c.Cache.StaticAssetsDir = v
	}
	if v := strings.TrimSpace(overrides.ReadOnly); v != "" {
		readOnly, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SLCACHE_READ_ONLY: %w", err)
		}
		c.Cache.ReadOnly = readOnly
	}
	if v := strings.TrimSpace(overrides.StateDir); v != "" {
		c.Paths.StateDir = v
	}
	if v := strings.TrimSpace(overrides.LogDir); v != "" {
		c.Paths.LogDir = v
	}
	if v := strings.TrimSpace(overrides.LogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(overrides.LogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := strings.TrimSpace(overrides.MetricsBind); v != "" {
		c.Metrics.Bind = v
		c.Metrics.Enabled = true
	}
	return nil
}
