package diskcache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slcache/internal/assetkey"
	"slcache/internal/logging"
	"slcache/internal/testsupport"
)

func newTestCache(t *testing.T, opts ...testsupport.ConfigOption) *Cache {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cache := New(OptionsFromConfig(cfg), logging.NewNop())
	if err := cache.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return cache
}

func TestPathForUsesShardAndSuffix(t *testing.T) {
	t.Parallel()
	cache := New(Options{Dir: "/var/cache/slcache"}, nil)
	key := assetkey.MustParse("8DCD4A48-2D37-4909-9F78-F7A9EB4EF903").WithType(assetkey.Texture)

	got := cache.PathFor(key)
	want := "/var/cache/slcache/8/8dcd4a48-2d37-4909-9f78-f7a9eb4ef903.sl_cache"
	if got != want {
		t.Fatalf("PathFor = %q, want %q", got, want)
	}
	if other := cache.PathFor(key.WithType(assetkey.Mesh)); other != got {
		t.Fatalf("type tag changed path: %q vs %q", other, got)
	}
}

func TestInitCreatesShardDirectories(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	for _, shard := range shardNames {
		info, err := os.Stat(filepath.Join(cache.Root(), shard))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected shard directory %s, err=%v", shard, err)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := assetkey.Random(assetkey.Sound)
	payload := bytes.Repeat([]byte("abc123"), 500)

	if !cache.Write(key, payload, ModeOverwrite) {
		t.Fatal("Write failed")
	}
	if !cache.Exists(key) {
		t.Fatal("expected entry to exist")
	}
	if got := cache.Size(key); got != int64(len(payload)) {
		t.Fatalf("Size = %d, want %d", got, len(payload))
	}

	out := make([]byte, len(payload))
	if n := cache.Read(key, 0, out); n != len(payload) {
		t.Fatalf("Read returned %d bytes, want %d", n, len(payload))
	}
	if !bytes.Equal(out, payload) {
		t.Fatal("round trip mismatch")
	}

	partial := make([]byte, 6)
	if n := cache.Read(key, 6, partial); n != 6 || string(partial) != "abc123" {
		t.Fatalf("offset read = %d %q", n, partial)
	}
}

func TestOverwriteTruncatesAndAppendExtends(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := assetkey.Random(assetkey.Notecard)

	if !cache.Write(key, []byte("hello world"), ModeOverwrite) {
		t.Fatal("first write failed")
	}
	if !cache.Write(key, []byte("bye"), ModeOverwrite) {
		t.Fatal("overwrite failed")
	}
	if !cache.Write(key, []byte("!!"), ModeAppend) {
		t.Fatal("append failed")
	}
	data, err := cache.ReadAll(key)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "bye!!" {
		t.Fatalf("content = %q, want %q", data, "bye!!")
	}
}

func TestExistsFalseForMissingAndEmpty(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	missing := assetkey.Random(assetkey.Texture)
	if cache.Exists(missing) || cache.Size(missing) != 0 {
		t.Fatal("missing entry reported present")
	}

	empty := assetkey.Random(assetkey.Texture)
	if !cache.Write(empty, nil, ModeOverwrite) {
		t.Fatal("empty write failed")
	}
	if cache.Exists(empty) {
		t.Fatal("zero-length entry should not exist")
	}
	if n := cache.Read(missing, 0, make([]byte, 4)); n != 0 {
		t.Fatalf("read of missing entry returned %d", n)
	}
}

func TestRenameMovesContent(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	src := assetkey.Random(assetkey.Texture)
	dst := assetkey.Random(assetkey.Texture)

	if !cache.Write(src, []byte("source"), ModeOverwrite) {
		t.Fatal("write src failed")
	}
	if !cache.Write(dst, []byte("stale destination"), ModeOverwrite) {
		t.Fatal("write dst failed")
	}
	if !cache.Rename(src, dst) {
		t.Fatal("Rename reported failure")
	}
	if cache.Exists(src) {
		t.Fatal("source still exists after rename")
	}
	data, err := cache.ReadAll(dst)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "source" {
		t.Fatalf("destination content = %q", data)
	}
}

func TestRenameLenientVersusStrict(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	missing := assetkey.Random(assetkey.Texture)
	dst := assetkey.Random(assetkey.Texture)

	if !cache.Rename(missing, dst) {
		t.Fatal("lenient Rename should report success when the move fails")
	}
	err := cache.RenameStrict(missing, dst)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("RenameStrict error = %v, want ErrNotFound", err)
	}
}

func TestRemoveMissingIsNotFailure(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := assetkey.Random(assetkey.Object)
	if !cache.Remove(key) {
		t.Fatal("Remove of missing entry failed")
	}
	cache.Write(key, []byte("x"), ModeOverwrite)
	if !cache.Remove(key) || cache.Exists(key) {
		t.Fatal("Remove did not delete entry")
	}
}

func TestReadOnlyRefusesMutations(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithReadOnly())
	key := assetkey.Random(assetkey.Texture)

	if cache.Write(key, []byte("data"), ModeOverwrite) {
		t.Fatal("write succeeded on read-only cache")
	}
	if cache.Remove(key) {
		t.Fatal("remove succeeded on read-only cache")
	}
	if err := cache.RenameStrict(key, assetkey.Random(assetkey.Texture)); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("RenameStrict error = %v, want ErrReadOnly", err)
	}
	result, err := cache.Purge(context.Background())
	if err != nil || result.Scanned != 0 {
		t.Fatalf("Purge on read-only cache = %+v, %v", result, err)
	}
}

func TestReadTouchIsCoalesced(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	stale := assetkey.Random(assetkey.Texture)
	fresh := assetkey.Random(assetkey.Texture)
	cache.Write(stale, []byte("stale"), ModeOverwrite)
	cache.Write(fresh, []byte("fresh"), ModeOverwrite)

	twoHoursAgo := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	tenMinutesAgo := time.Now().Add(-10 * time.Minute).Truncate(time.Second)
	testsupport.SetModTime(t, cache.PathFor(stale), twoHoursAgo)
	testsupport.SetModTime(t, cache.PathFor(fresh), tenMinutesAgo)

	before := time.Now().Add(-time.Second)
	cache.Read(stale, 0, make([]byte, 5))
	cache.Read(fresh, 0, make([]byte, 5))

	if got := testsupport.ModTime(t, cache.PathFor(stale)); got.Before(before) {
		t.Fatalf("stale entry not touched: mtime %v", got)
	}
	if got := testsupport.ModTime(t, cache.PathFor(fresh)); !got.Equal(tenMinutesAgo) {
		t.Fatalf("fresh entry touched inside window: mtime %v, want %v", got, tenMinutesAgo)
	}
}

func TestFileSeekTellAndEOF(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := assetkey.Random(assetkey.Animation)
	cache.Write(key, []byte("0123456789"), ModeOverwrite)

	f := cache.Open(key, ModeRead)
	if !f.Seek(4, 0) || f.Tell() != 4 {
		t.Fatalf("Seek(4, 0) left position %d", f.Tell())
	}
	buf := make([]byte, 3)
	if !f.Read(buf) || string(buf) != "456" || f.LastBytesRead() != 3 {
		t.Fatalf("Read = %q (%d bytes)", buf, f.LastBytesRead())
	}
	if !f.Seek(-2, -1) || f.Tell() != 5 {
		t.Fatalf("relative Seek left position %d", f.Tell())
	}
	if f.Seek(100, 0) {
		t.Fatal("seek past end should report false")
	}
	if f.Tell() != 10 || !f.EOF() {
		t.Fatalf("expected clamp to end, position %d", f.Tell())
	}
	if f.Seek(-20, -1) {
		t.Fatal("seek before start should report false")
	}
	if f.Tell() != 0 {
		t.Fatalf("expected clamp to start, position %d", f.Tell())
	}
}

func TestFileReadWriteModeWritesAtPosition(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	key := assetkey.Random(assetkey.Mesh)

	created := cache.Open(key, ModeReadWrite)
	if !created.Write([]byte("abcdef")) || created.Tell() != 6 {
		t.Fatalf("initial ReadWrite write failed, position %d", created.Tell())
	}

	f := cache.Open(key, ModeReadWrite)
	f.Seek(2, 0)
	if !f.Write([]byte("XY")) {
		t.Fatal("positional write failed")
	}
	if f.Tell() != 4 {
		t.Fatalf("position after write = %d, want 4", f.Tell())
	}
	data, _ := cache.ReadAll(key)
	if string(data) != "abXYef" {
		t.Fatalf("content = %q, want %q", data, "abXYef")
	}

	appender := cache.Open(key, ModeAppend)
	if !appender.Write([]byte("gh")) || appender.Tell() != 0 {
		t.Fatalf("append moved position to %d", appender.Tell())
	}
	if cache.Open(key, ModeRead).Write([]byte("no")) {
		t.Fatal("write through a read handle succeeded")
	}
}

func TestFileRenameRetargetsHandle(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	oldKey := assetkey.Random(assetkey.Texture)
	newKey := assetkey.Random(assetkey.Texture)
	cache.Write(oldKey, []byte("payload"), ModeOverwrite)

	f := cache.Open(oldKey, ModeRead)
	if !f.Rename(newKey) {
		t.Fatal("Rename failed")
	}
	if f.Key() != newKey || f.Size() != int64(len("payload")) {
		t.Fatalf("handle not retargeted: key %s size %d", f.Key(), f.Size())
	}
	if !f.Remove() || cache.Exists(newKey) {
		t.Fatal("Remove through handle failed")
	}
}

type countingObserver struct {
	reads, hits, writes int
}

func (o *countingObserver) ObserveRead(hit bool, _ int) {
	o.reads++
	if hit {
		o.hits++
	}
}

func (o *countingObserver) ObserveWrite(bool, int) { o.writes++ }

func TestEntryObserverSeesReadsAndWrites(t *testing.T) {
	t.Parallel()
	observer := &countingObserver{}
	cache := New(Options{Dir: t.TempDir(), MaxBytes: 1 << 20, EntryObserver: observer}, nil)
	if err := cache.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout failed: %v", err)
	}
	key := assetkey.Random(assetkey.Texture)
	cache.Write(key, []byte("abc"), ModeOverwrite)
	cache.Read(key, 0, make([]byte, 3))
	cache.Read(assetkey.Random(assetkey.Texture), 0, make([]byte, 3))

	if observer.writes != 1 || observer.reads != 2 || observer.hits != 1 {
		t.Fatalf("observer counts = %+v", observer)
	}
}
