package testsupport

import (
	"path/filepath"
	"testing"

	"slcache/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Cache.Dir = filepath.Join(base, "cache")
	cfgVal.Cache.StaticAssetsDir = ""
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxBytes sets the cache byte budget.
func WithMaxBytes(n int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.MaxBytes = n
	}
}

// WithStaticAssets writes the given files into a static assets directory and
// points the config at it. Keys of files are file names such as "<id>.j2c".
func WithStaticAssets(files map[string][]byte) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "static")
		for name, data := range files {
			WriteBytes(b.t, filepath.Join(dir, name), data)
		}
		b.cfg.Cache.StaticAssetsDir = dir
	}
}

// WithReadOnly marks the cache read-only.
func WithReadOnly() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.ReadOnly = true
	}
}

// WithDebugInfo enables per-file purge diagnostics.
func WithDebugInfo() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.EnableDebugInfo = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Cache.Dir)
}
