package diskcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"slcache/internal/assetkey"
	"slcache/internal/fileutil"
	"slcache/internal/logging"
)

// SeedResult counts what a Seed run did.
type SeedResult struct {
	Copied   int `json:"copied"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Seed copies each file of the static assets directory into the cache unless
// a non-empty entry already exists, and registers its key in the skip set.
// Existing entries are never overwritten, so repeated runs are harmless; a
// zero-length file at a static key is replaced. Files whose names do not
// start with an asset ID are not copied: they cannot be addressed by key, so
// they are counted as Skipped rather than passed through under their raw
// name. Seed is a no-op on a read-only cache or when no static directory is
// configured. It waits for any eviction pass in progress.
func (c *Cache) Seed(ctx context.Context) (SeedResult, error) {
	c.passMu.Lock()
	defer c.passMu.Unlock()
	return c.seed(ctx)
}

func (c *Cache) seed(ctx context.Context) (SeedResult, error) {
	var result SeedResult
	if c.readOnly || c.staticDir == "" {
		return result, nil
	}
	entries, err := os.ReadDir(c.staticDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(c.logger, "static assets directory missing; nothing seeded", "cache_seed_source_missing",
				logging.String(logging.FieldPath, c.staticDir),
				logging.String(logging.FieldImpact, "no entries are protected from eviction"),
				logging.String(logging.FieldErrorHint, "set cache.static_assets_dir to an existing directory"),
			)
			return result, nil
		}
		return result, fmt.Errorf("diskcache: list static assets: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		key, err := assetkey.ParseFilename(entry.Name())
		if err != nil {
			result.Skipped++
			c.logger.DebugContext(ctx, "static asset name is not an asset id; skipped",
				logging.String(logging.FieldPath, entry.Name()),
				logging.Error(err),
			)
			continue
		}
		src := filepath.Join(c.staticDir, entry.Name())
		dst := c.PathFor(key)
		if err := removeEmpty(dst); err != nil {
			c.logger.DebugContext(ctx, "remove empty static entry failed",
				logging.String(logging.FieldPath, dst),
				logging.Error(err),
			)
		}
		err = fileutil.CopyFileExclusive(src, dst, 0o644)
		switch {
		case err == nil:
			result.Copied++
		case errors.Is(err, fs.ErrExist):
			result.Existing++
		default:
			result.Failed++
			logging.WarnWithContext(c.logger, "copy static asset failed", "cache_seed_copy_failed",
				logging.String(logging.FieldCacheKey, key.String()),
				logging.String(logging.FieldPath, src),
				logging.Error(err),
				logging.String(logging.FieldImpact, "asset is not protected and will be fetched on demand"),
				logging.String(logging.FieldErrorHint, "check static asset and cache directory permissions"),
			)
			continue
		}
		c.skip.Add(key)
	}

	c.logger.InfoContext(ctx, "static assets seeded",
		logging.Int("copied", result.Copied),
		logging.Int("existing", result.Existing),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("protected", c.skip.Len()),
		logging.String(logging.FieldEventType, "cache_seeded"),
	)
	return result, nil
}

// removeEmpty deletes path when it is a zero-length regular file, which does
// not count as an entry.
func removeEmpty(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.Mode().IsRegular() || info.Size() != 0 {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
