package diskcache

import (
	"errors"
	"io"
	"os"

	"slcache/internal/assetkey"
	"slcache/internal/logging"
)

// Mode selects how a File writes.
type Mode int

const (
	// ModeRead opens for reading only. Opening an existing entry in this mode
	// refreshes its access time.
	ModeRead Mode = iota
	// ModeOverwrite truncates the entry and writes from offset 0.
	ModeOverwrite
	// ModeReadWrite writes at the current position without truncating,
	// creating the entry when absent.
	ModeReadWrite
	// ModeAppend writes at the end of the entry and leaves the position unchanged.
	ModeAppend
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeOverwrite:
		return "overwrite"
	case ModeReadWrite:
		return "read_write"
	case ModeAppend:
		return "append"
	default:
		return "unknown"
	}
}

// File is a positional handle on one cache entry. No OS file is held between
// calls: each Read or Write opens and closes the entry. A File is not safe for
// concurrent use.
type File struct {
	cache     *Cache
	key       assetkey.Key
	path      string
	mode      Mode
	pos       int64
	bytesRead int
}

// Open returns a handle on key positioned at 0.
func (c *Cache) Open(key assetkey.Key, mode Mode) *File {
	f := &File{cache: c, key: key, path: c.PathFor(key), mode: mode}
	if mode == ModeRead {
		c.touch(f.path)
	}
	return f
}

// Key returns the entry's key.
func (f *File) Key() assetkey.Key { return f.key }

// Read fills buf from the current position and advances it. It reports
// whether any bytes were read; LastBytesRead returns the count.
func (f *File) Read(buf []byte) bool {
	f.bytesRead = 0
	file, err := os.Open(f.path)
	if err != nil {
		f.cache.observeRead(false, 0)
		return false
	}
	defer file.Close()

	n, err := file.ReadAt(buf, f.pos)
	if err != nil && !errors.Is(err, io.EOF) {
		f.cache.logger.Debug("cache read failed",
			logging.String(logging.FieldCacheKey, f.key.String()),
			logging.String(logging.FieldAssetType, f.key.Type.String()),
			logging.Error(err),
		)
	}
	f.bytesRead = n
	f.pos += int64(n)
	f.cache.observeRead(n > 0, n)
	return n > 0
}

// Write stores buf according to the handle's mode.
func (f *File) Write(buf []byte) bool {
	ok := f.write(buf)
	f.cache.observeWrite(ok, len(buf))
	return ok
}

func (f *File) write(buf []byte) bool {
	if f.cache.readOnly {
		return false
	}
	switch f.mode {
	case ModeOverwrite:
		file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return false
		}
		n, err := file.Write(buf)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		f.pos = int64(n)
		return err == nil && n == len(buf)
	case ModeAppend:
		file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return false
		}
		n, err := file.Write(buf)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		return err == nil && n == len(buf)
	case ModeReadWrite:
		file, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return false
		}
		n, err := file.WriteAt(buf, f.pos)
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		f.pos += int64(n)
		return err == nil && n == len(buf)
	default:
		return false
	}
}

// Seek moves the position to origin+offset, where an origin of -1 means the
// current position. Targets past the end clamp to the size and targets
// before 0 clamp to 0; both report false.
func (f *File) Seek(offset, origin int64) bool {
	if origin == -1 {
		origin = f.pos
	}
	target := origin + offset
	size := f.Size()
	switch {
	case target > size:
		logging.WarnWithContext(f.cache.logger, "attempt to seek past end of cache entry", "cache_seek_out_of_range",
			logging.String(logging.FieldCacheKey, f.key.String()),
			logging.Int64("offset", target),
			logging.Int64("size", size),
			logging.String(logging.FieldImpact, "position clamped to end of entry"),
			logging.String(logging.FieldErrorHint, "caller requested a range beyond the cached bytes"),
		)
		f.pos = size
		return false
	case target < 0:
		logging.WarnWithContext(f.cache.logger, "attempt to seek before start of cache entry", "cache_seek_out_of_range",
			logging.String(logging.FieldCacheKey, f.key.String()),
			logging.Int64("offset", target),
			logging.String(logging.FieldImpact, "position clamped to start of entry"),
			logging.String(logging.FieldErrorHint, "caller requested a negative offset"),
		)
		f.pos = 0
		return false
	}
	f.pos = target
	return true
}

// Tell returns the current position.
func (f *File) Tell() int64 { return f.pos }

// Size returns the entry's current size, or 0 when absent.
func (f *File) Size() int64 { return f.cache.Size(f.key) }

// EOF reports whether the position is at or past the end of the entry.
func (f *File) EOF() bool { return f.pos >= f.Size() }

// LastBytesRead returns the byte count of the most recent Read.
func (f *File) LastBytesRead() int { return f.bytesRead }

// Rename moves the entry to newKey with the lenient contract of Cache.Rename
// and retargets the handle.
func (f *File) Rename(newKey assetkey.Key) bool {
	ok := f.cache.Rename(f.key, newKey)
	if ok {
		f.key = newKey
		f.path = f.cache.PathFor(newKey)
	}
	return ok
}

// Remove deletes the entry.
func (f *File) Remove() bool {
	return f.cache.Remove(f.key)
}
