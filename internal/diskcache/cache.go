package diskcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"slcache/internal/config"
	"slcache/internal/logging"
)

const (
	// Suffix is appended to every cache file name.
	Suffix = ".sl_cache"
	// VersionFile holds the cache format version inside the root.
	VersionFile = "cache.version"

	defaultTouchThreshold = time.Hour
)

var (
	// ErrReadOnly is returned by mutating operations on a read-only cache.
	ErrReadOnly = errors.New("cache is read-only")
	// ErrNotFound reports a missing cache entry.
	ErrNotFound = errors.New("cache entry not found")
)

// legacyFilePatterns name leftovers of the pre-shard cache format that Init
// removes from the root's parent directory.
var legacyFilePatterns = []string{"inv.llsd", "db2.x"}

// Options configures a Cache. Zero values select defaults where noted.
type Options struct {
	Dir             string
	MaxBytes        int64
	EnableDebugInfo bool
	ReadOnly        bool
	// StaticAssetsDir holds files named <id>.<ext> copied in by Seed.
	StaticAssetsDir string
	// Version is compared with the root's version marker at Init; 0 disables the check.
	Version int
	// TouchThreshold is the minimum age of an entry's mtime before a read refreshes it.
	// Defaults to one hour.
	TouchThreshold    time.Duration
	RemoveLegacyFiles bool
	// EntryObserver, when set, receives read and write outcomes.
	EntryObserver EntryObserver
}

// EntryObserver receives per-operation outcomes from the entry store.
type EntryObserver interface {
	ObserveRead(hit bool, bytes int)
	ObserveWrite(ok bool, bytes int)
}

// OptionsFromConfig maps the cache section of cfg to Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Dir:               cfg.Cache.Dir,
		MaxBytes:          cfg.Cache.MaxBytes,
		EnableDebugInfo:   cfg.Cache.EnableDebugInfo,
		ReadOnly:          cfg.Cache.ReadOnly,
		StaticAssetsDir:   cfg.Cache.StaticAssetsDir,
		Version:           cfg.Cache.Version,
		TouchThreshold:    cfg.TouchThreshold(),
		RemoveLegacyFiles: cfg.Cache.RemoveLegacyFiles,
	}
}

// Cache is a bounded on-disk store of asset blobs. All state other than the
// skip set lives on the filesystem; a Cache is safe for concurrent use.
type Cache struct {
	root           string
	maxBytes       int64
	debugInfo      bool
	readOnly       bool
	staticDir      string
	version        int
	touchThreshold time.Duration
	removeLegacy   bool
	observer       EntryObserver

	// passMu serializes eviction passes with Clear and Seed so a pass never
	// sees a static entry on disk before its key is protected.
	passMu sync.Mutex
	skip   *SkipSet
	logger *slog.Logger
	statfs statfsFunc

	touchWarn rate.Sometimes
}

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// New builds a cache rooted at opts.Dir. No filesystem work happens until Init.
func New(opts Options, logger *slog.Logger) *Cache {
	threshold := opts.TouchThreshold
	if threshold <= 0 {
		threshold = defaultTouchThreshold
	}
	return &Cache{
		root:           filepath.Clean(strings.TrimSpace(opts.Dir)),
		maxBytes:       opts.MaxBytes,
		debugInfo:      opts.EnableDebugInfo,
		readOnly:       opts.ReadOnly,
		staticDir:      strings.TrimSpace(opts.StaticAssetsDir),
		version:        opts.Version,
		touchThreshold: threshold,
		removeLegacy:   opts.RemoveLegacyFiles,
		observer:       opts.EntryObserver,
		skip:           NewSkipSet(),
		logger:         logging.NewComponentLogger(logger, "diskcache"),
		statfs:         realStatfs,
		touchWarn:      rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// MaxBytes returns the configured byte budget.
func (c *Cache) MaxBytes() int64 { return c.maxBytes }

// ReadOnly reports whether mutating operations are disabled.
func (c *Cache) ReadOnly() bool { return c.readOnly }

// SkipSet returns the set of keys protected from eviction.
func (c *Cache) SkipSet() *SkipSet { return c.skip }

// Init prepares the cache for use: clears it on a version mismatch, removes
// legacy files, creates the shard layout and seeds static assets. Init must
// complete before a Scheduler is started.
func (c *Cache) Init(ctx context.Context) error {
	if c.root == "" || c.root == "." {
		return errors.New("diskcache: cache directory is not configured")
	}
	if c.readOnly {
		c.logger.InfoContext(ctx, "cache opened read-only",
			logging.String("cache_dir", c.root),
			logging.String(logging.FieldEventType, "cache_read_only"),
		)
		return nil
	}

	if c.version > 0 {
		if stored, ok := c.readVersion(); !ok || stored != c.version {
			c.logger.InfoContext(ctx, "cache version mismatch; clearing cache",
				logging.Int("stored_version", stored),
				logging.Int("expected_version", c.version),
				logging.String(logging.FieldEventType, "cache_version_mismatch"),
			)
			if err := c.wipe(ctx); err != nil {
				return err
			}
		}
	}
	if c.removeLegacy {
		c.removeLegacyFiles(ctx)
	}
	if err := c.EnsureLayout(); err != nil {
		return err
	}
	c.storeVersion()
	c.passMu.Lock()
	defer c.passMu.Unlock()
	if _, err := c.seed(ctx); err != nil {
		return err
	}
	return nil
}

// storeVersion writes the version marker, logging a failure.
func (c *Cache) storeVersion() {
	if c.version <= 0 {
		return
	}
	if err := c.writeVersion(); err != nil {
		logging.WarnWithContext(c.logger, "write cache version marker failed", "cache_version_write_failed",
			logging.String(logging.FieldPath, filepath.Join(c.root, VersionFile)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "cache will be cleared again on next start"),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
		)
	}
}

// Clear deletes every entry, recreates the shard layout and re-seeds static
// assets. It is a no-op on a read-only cache.
func (c *Cache) Clear(ctx context.Context) error {
	if c.readOnly {
		return nil
	}
	c.passMu.Lock()
	defer c.passMu.Unlock()
	if err := c.wipe(ctx); err != nil {
		return err
	}
	if err := c.EnsureLayout(); err != nil {
		return err
	}
	c.storeVersion()
	c.skip.Reset()
	if _, err := c.seed(ctx); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "cache cleared",
		logging.String("cache_dir", c.root),
		logging.String(logging.FieldEventType, "cache_cleared"),
	)
	return nil
}

// wipe removes every shard subtree and the plain files left in the root.
func (c *Cache) wipe(ctx context.Context) error {
	var errs []error
	for _, shard := range shardNames {
		dir := filepath.Join(c.root, shard)
		c.logger.DebugContext(ctx, "deleting shard directory", logging.String(logging.FieldPath, dir))
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("remove shard %s: %w", shard, err))
		}
	}
	entries, err := os.ReadDir(c.root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("list cache root: %w", err))
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.root, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", entry.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("diskcache: clear: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Cache) readVersion() (int, bool) {
	data, err := os.ReadFile(filepath.Join(c.root, VersionFile))
	if err != nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c *Cache) writeVersion() error {
	return os.WriteFile(filepath.Join(c.root, VersionFile), []byte(strconv.Itoa(c.version)+"\n"), 0o644)
}

func (c *Cache) removeLegacyFiles(ctx context.Context) {
	parent := filepath.Dir(c.root)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !isLegacyFile(entry.Name()) {
			continue
		}
		path := filepath.Join(parent, entry.Name())
		if err := os.Remove(path); err != nil {
			logging.WarnWithContext(c.logger, "remove legacy cache file failed", "cache_legacy_remove_failed",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stale file remains next to the cache"),
				logging.String(logging.FieldErrorHint, "delete the file manually"),
			)
			continue
		}
		c.logger.InfoContext(ctx, "removed legacy cache file",
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldEventType, "cache_legacy_removed"),
		)
	}
}

func isLegacyFile(name string) bool {
	for _, pattern := range legacyFilePatterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

// Usage describes current cache occupancy.
type Usage struct {
	UsedBytes    int64   `json:"used_bytes"`
	MaxBytes     int64   `json:"max_bytes"`
	Entries      int     `json:"entries"`
	Protected    int     `json:"protected"`
	PercentUsed  float64 `json:"percent_used"`
	FreeBytes    uint64  `json:"free_bytes"`
	TotalFSBytes uint64  `json:"total_fs_bytes"`
	ReadOnly     bool    `json:"read_only"`
}

// Usage scans the root and reports occupancy. Filesystem free space is
// included when the root can be stat'ed.
func (c *Cache) Usage() Usage {
	used, count := c.dirSize()
	u := Usage{
		UsedBytes: used,
		MaxBytes:  c.maxBytes,
		Entries:   count,
		Protected: c.skip.Len(),
		ReadOnly:  c.readOnly,
	}
	if c.maxBytes > 0 {
		u.PercentUsed = float64(used) / float64(c.maxBytes) * 100
	}
	if total, free, err := c.statfs(c.root); err == nil {
		u.TotalFSBytes = total
		u.FreeBytes = free
	}
	return u
}

// UsageSummary renders usage as "<used>MB / <max>MB (<pct>% used)" using
// whole mebibytes, for diagnostics display.
func (c *Cache) UsageSummary() string {
	used, _ := c.dirSize()
	return formatUsage(used, c.maxBytes)
}

func formatUsage(used, max int64) string {
	const mib = 1024 * 1024
	usedMB := used / mib
	maxMB := max / mib
	var pct float64
	if maxMB > 0 {
		pct = float64(usedMB) / float64(maxMB) * 100
	}
	return fmt.Sprintf("%dMB / %dMB (%.1f%% used)", usedMB, maxMB, pct)
}

// DirSize returns the total size of cache files under the root.
func (c *Cache) DirSize() int64 {
	size, _ := c.dirSize()
	return size
}

func (c *Cache) dirSize() (int64, int) {
	var (
		total int64
		count int
	)
	_ = filepath.WalkDir(c.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == c.root {
				return err
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), Suffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		count++
		return nil
	})
	return total, count
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
