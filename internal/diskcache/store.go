package diskcache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"slcache/internal/assetkey"
	"slcache/internal/logging"
)

// Exists reports whether key has a non-empty entry.
func (c *Cache) Exists(key assetkey.Key) bool {
	info, err := os.Stat(c.PathFor(key))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Size returns the entry's size in bytes, or 0 when absent.
func (c *Cache) Size(key assetkey.Key) int64 {
	info, err := os.Stat(c.PathFor(key))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Read copies up to len(buf) bytes starting at offset into buf and returns the
// count. Zero means the entry is unavailable and should be fetched again.
func (c *Cache) Read(key assetkey.Key, offset int64, buf []byte) int {
	f := c.Open(key, ModeRead)
	if offset != 0 && !f.Seek(offset, 0) {
		return 0
	}
	if !f.Read(buf) {
		return 0
	}
	return f.LastBytesRead()
}

// ReadAll returns the full contents of key.
func (c *Cache) ReadAll(key assetkey.Key) ([]byte, error) {
	path := c.PathFor(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key.Describe(), ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", key.Describe(), err)
	}
	c.touch(path)
	c.observeRead(len(data) > 0, len(data))
	return data, nil
}

// Write stores buf under key using mode (ModeOverwrite or ModeAppend; a
// ModeReadWrite write starts at offset 0). It reports whether every byte was written.
func (c *Cache) Write(key assetkey.Key, buf []byte, mode Mode) bool {
	return c.Open(key, mode).Write(buf)
}

// Remove deletes key. A missing entry is not a failure.
func (c *Cache) Remove(key assetkey.Key) bool {
	if c.readOnly {
		return false
	}
	err := os.Remove(c.PathFor(key))
	return err == nil || errors.Is(err, os.ErrNotExist)
}

// Rename moves oldKey's entry to newKey, replacing any entry already there.
// It reports success once the destination has been cleared, even when the
// move itself fails; the failure is logged. Use RenameStrict to observe it.
func (c *Cache) Rename(oldKey, newKey assetkey.Key) bool {
	if c.readOnly {
		return false
	}
	if err := c.clearDestination(newKey); err != nil {
		return false
	}
	if err := os.Rename(c.PathFor(oldKey), c.PathFor(newKey)); err != nil {
		logging.WarnWithContext(c.logger, "cache rename failed; reporting success", "cache_rename_failed",
			logging.String("from", oldKey.Describe()),
			logging.String("to", newKey.Describe()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "destination entry is absent and will be fetched again"),
			logging.String(logging.FieldErrorHint, "check that the cache root is on a single filesystem"),
		)
	}
	return true
}

// RenameStrict is Rename with the move's real outcome returned.
func (c *Cache) RenameStrict(oldKey, newKey assetkey.Key) error {
	if c.readOnly {
		return ErrReadOnly
	}
	if err := c.clearDestination(newKey); err != nil {
		return fmt.Errorf("clear rename destination %s: %w", newKey.Describe(), err)
	}
	if err := os.Rename(c.PathFor(oldKey), c.PathFor(newKey)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("rename %s: %w", oldKey.Describe(), ErrNotFound)
		}
		return fmt.Errorf("rename %s to %s: %w", oldKey.Describe(), newKey.Describe(), err)
	}
	return nil
}

func (c *Cache) clearDestination(key assetkey.Key) error {
	err := os.Remove(c.PathFor(key))
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// touch refreshes path's mtime when it is older than the touch threshold.
func (c *Cache) touch(path string) {
	if c.readOnly {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.warnTouch(path, err)
		}
		return
	}
	now := time.Now()
	if now.Sub(info.ModTime()) <= c.touchThreshold {
		return
	}
	if err := os.Chtimes(path, now, now); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.warnTouch(path, err)
	}
}

func (c *Cache) warnTouch(path string, err error) {
	c.touchWarn.Do(func() {
		logging.WarnWithContext(c.logger, "update cache access time failed", "cache_touch_failed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry may be evicted earlier than its use warrants"),
			logging.String(logging.FieldErrorHint, "check cache directory permissions"),
		)
	})
}

func (c *Cache) observeRead(hit bool, n int) {
	if c.observer != nil {
		c.observer.ObserveRead(hit, n)
	}
}

func (c *Cache) observeWrite(ok bool, n int) {
	if c.observer != nil {
		c.observer.ObserveWrite(ok, n)
	}
}
