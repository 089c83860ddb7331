package diskcache

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"slcache/internal/assetkey"
)

// SkipSet holds keys that eviction must never delete. Membership is by ID only.
type SkipSet struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]struct{}
}

// NewSkipSet returns an empty set.
func NewSkipSet() *SkipSet {
	return &SkipSet{keys: make(map[uuid.UUID]struct{})}
}

// Add registers key.
func (s *SkipSet) Add(key assetkey.Key) {
	s.mu.Lock()
	s.keys[key.ID] = struct{}{}
	s.mu.Unlock()
}

// Contains reports whether key is protected.
func (s *SkipSet) Contains(key assetkey.Key) bool {
	s.mu.RLock()
	_, ok := s.keys[key.ID]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of protected keys.
func (s *SkipSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Reset empties the set.
func (s *SkipSet) Reset() {
	s.mu.Lock()
	clear(s.keys)
	s.mu.Unlock()
}

// Keys returns the protected keys sorted by ID string.
func (s *SkipSet) Keys() []assetkey.Key {
	s.mu.RLock()
	out := make([]assetkey.Key, 0, len(s.keys))
	for id := range s.keys {
		out = append(out, assetkey.New(id, assetkey.Unknown))
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b assetkey.Key) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}
