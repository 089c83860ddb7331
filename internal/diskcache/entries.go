package diskcache

import (
	"path/filepath"
	"time"

	"slcache/internal/assetkey"
)

// EntryInfo describes one cache file.
type EntryInfo struct {
	Key       assetkey.Key `json:"key"`
	Path      string       `json:"path"`
	Size      int64        `json:"size"`
	ModTime   time.Time    `json:"mod_time"`
	Protected bool         `json:"protected"`
	// WithinBudget is false for unprotected entries the next pass would delete.
	WithinBudget bool `json:"within_budget"`
}

// Entries lists cache files in eviction order, newest first. Files whose
// names do not parse as keys are omitted.
func (c *Cache) Entries() ([]EntryInfo, error) {
	files, err := c.scan(c.logger)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(files)

	entries := make([]EntryInfo, 0, len(files))
	var total int64
	for _, file := range files {
		key, err := assetkey.ParseFilename(filepath.Base(file.path))
		if err != nil {
			continue
		}
		total += file.size
		protected := c.skip.Contains(key)
		entries = append(entries, EntryInfo{
			Key:          key,
			Path:         file.path,
			Size:         file.size,
			ModTime:      file.modTime,
			Protected:    protected,
			WithinBudget: protected || total <= c.maxBytes,
		})
	}
	return entries, nil
}
