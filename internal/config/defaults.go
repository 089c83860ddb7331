package config

const (
	defaultConfigPath            = "~/.config/slcache/config.toml"
	defaultStateDir              = "~/.local/share/slcache"
	defaultLogDir                = "~/.local/share/slcache/logs"
	defaultCacheMaxBytes         = 4 << 30
	defaultCacheVersion          = 1
	defaultTouchThresholdSeconds = 60 * 60
	defaultPurgeIntervalSeconds  = 60
	defaultJournalKeepRuns       = 1000
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultMetricsBind           = "127.0.0.1:9477"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Cache: Cache{
			Dir:                   defaultCacheDir(),
			MaxBytes:              defaultCacheMaxBytes,
			Version:               defaultCacheVersion,
			TouchThresholdSeconds: defaultTouchThresholdSeconds,
			RemoveLegacyFiles:     true,
		},
		Scheduler: Scheduler{
			Enabled:              true,
			PurgeIntervalSeconds: defaultPurgeIntervalSeconds,
		},
		Journal: Journal{
			Enabled:  true,
			KeepRuns: defaultJournalKeepRuns,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
	}
}
