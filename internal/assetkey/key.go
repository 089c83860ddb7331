package assetkey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidKey reports a string that does not hold a 128-bit asset ID.
var ErrInvalidKey = errors.New("invalid asset key")

// Key addresses one cache entry.
type Key struct {
	ID   uuid.UUID
	Type AssetType
}

// New builds a key from an ID and type tag.
func New(id uuid.UUID, typ AssetType) Key {
	return Key{ID: id, Type: typ}
}

// String returns the lowercase dashed form of the ID. The type is not included.
func (k Key) String() string {
	return k.ID.String()
}

// Shard returns the first hex character of the ID, naming one of 16 shard directories.
func (k Key) Shard() string {
	return k.String()[:1]
}

// IsNil reports whether the key carries the all-zero ID.
func (k Key) IsNil() bool {
	return k.ID == uuid.Nil
}

// WithType returns a copy of k tagged with typ.
func (k Key) WithType(typ AssetType) Key {
	k.Type = typ
	return k
}

// Describe formats the key with its type tag for log and error messages.
func (k Key) Describe() string {
	return fmt.Sprintf("%s (%s)", k.String(), k.Type)
}

// Parse reads an asset ID in any case and returns a key tagged Unknown.
func Parse(value string) (Key, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Key{}, fmt.Errorf("%w: empty value", ErrInvalidKey)
	}
	id, err := uuid.Parse(strings.ToLower(trimmed))
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, value, err)
	}
	return Key{ID: id, Type: Unknown}, nil
}

// MustParse is like Parse but panics on malformed input. Intended for tests and constants.
func MustParse(value string) Key {
	key, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return key
}

// ParseFilename extracts the key from a file name of the form "<id>.<ext>".
// Only the text before the first dot is considered.
func ParseFilename(name string) (Key, error) {
	base := name
	if idx := strings.IndexByte(base, '.'); idx >= 0 {
		base = base[:idx]
	}
	return Parse(base)
}

// Random returns a key with a freshly generated ID.
func Random(typ AssetType) Key {
	return Key{ID: uuid.New(), Type: typ}
}
