package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for daemon state and logs.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Cache contains configuration for the on-disk asset cache.
type Cache struct {
	Dir             string `toml:"dir"`
	MaxBytes        int64  `toml:"max_bytes"`
	EnableDebugInfo bool   `toml:"enable_debug_info"`
	ReadOnly        bool   `toml:"read_only"`
	StaticAssetsDir string `toml:"static_assets_dir"`
	// Version is compared against the marker stored in the cache root. A
	// mismatch clears the cache on startup.
	Version int `toml:"version"`
	// TouchThresholdSeconds is the coalescing window for access-time updates on read.
	TouchThresholdSeconds int  `toml:"touch_threshold_seconds"`
	RemoveLegacyFiles     bool `toml:"remove_legacy_files"`
}

// Scheduler contains configuration for the background purge loop.
type Scheduler struct {
	Enabled              bool `toml:"enabled"`
	PurgeIntervalSeconds int  `toml:"purge_interval_seconds"`
}

// Journal contains configuration for the purge history database.
type Journal struct {
	Enabled  bool `toml:"enabled"`
	KeepRuns int  `toml:"keep_runs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics contains configuration for the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Config encapsulates all configuration values for slcache.
//
// Configuration sections by subsystem:
//   - Paths: daemon state (lock, socket, journal) and log directories
//   - Cache: cache root, byte budget, seeding source and read behavior
//   - Scheduler: background purge cadence
//   - Journal: SQLite history of eviction passes
//   - Logging: log format, level, and retention
//   - Metrics: Prometheus listener
type Config struct {
	Paths     Paths     `toml:"paths"`
	Cache     Cache     `toml:"cache"`
	Scheduler Scheduler `toml:"scheduler"`
	Journal   Journal   `toml:"journal"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("slcache.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The cache root is
// owned by the cache itself and created during its initialization.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PurgeInterval returns the scheduler tick as a duration.
func (c *Config) PurgeInterval() time.Duration {
	return time.Duration(c.Scheduler.PurgeIntervalSeconds) * time.Second
}

// TouchThreshold returns the access-time coalescing window as a duration.
func (c *Config) TouchThreshold() time.Duration {
	return time.Duration(c.Cache.TouchThresholdSeconds) * time.Second
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "slcache.lock")
}

// SocketPath returns the daemon IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "slcache.sock")
}

// JournalPath returns the purge history database path.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "purge.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "slcache", "cache")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/slcache/cache"
	}
	return filepath.Join(home, ".cache", "slcache", "cache")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
