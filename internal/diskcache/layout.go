package diskcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"slcache/internal/assetkey"
	"slcache/internal/logging"
)

var shardNames = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "a", "b", "c", "d", "e", "f"}

// PathFor returns the file path for key. The type tag does not take part:
// every key with the same ID maps to the same file.
func (c *Cache) PathFor(key assetkey.Key) string {
	return filepath.Join(c.root, key.Shard(), key.String()+Suffix)
}

// EnsureLayout creates the root and its 16 shard directories. Failures are
// logged and returned; the cache stays usable to the extent the directories exist.
func (c *Cache) EnsureLayout() error {
	var errs []error
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		errs = append(errs, err)
	}
	for _, shard := range shardNames {
		if err := os.MkdirAll(filepath.Join(c.root, shard), 0o755); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	err := errors.Join(errs...)
	logging.ErrorWithContext(c.logger, "create cache layout failed; cache is degraded", "cache_layout_failed",
		logging.String("cache_dir", c.root),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions and free space for the cache directory"),
	)
	return fmt.Errorf("diskcache: ensure layout: %w", err)
}
