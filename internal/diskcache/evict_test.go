package diskcache

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slcache/internal/assetkey"
	"slcache/internal/testsupport"
)

// writeAged creates an entry of size bytes whose mtime is age in the past.
func writeAged(t *testing.T, cache *Cache, size int64, age time.Duration) assetkey.Key {
	t.Helper()
	key := assetkey.Random(assetkey.Texture)
	path := cache.PathFor(key)
	testsupport.WriteFile(t, path, size)
	testsupport.SetModTime(t, path, time.Now().Add(-age))
	return key
}

func TestPurgeDeletesOldestPastBudget(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithMaxBytes(1000))
	oldest := writeAged(t, cache, 400, 3*time.Hour)
	middle := writeAged(t, cache, 400, 2*time.Hour)
	newest := writeAged(t, cache, 400, time.Hour)

	result, err := cache.Purge(context.Background())
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if cache.Exists(oldest) {
		t.Fatal("oldest entry survived the pass")
	}
	if !cache.Exists(middle) || !cache.Exists(newest) {
		t.Fatal("recent entries were deleted")
	}
	if result.Scanned != 3 || result.Kept != 2 || result.Deleted != 1 || result.Protected != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.BytesBefore != 1200 || result.BytesAfter != 800 {
		t.Fatalf("unexpected byte totals: before %d after %d", result.BytesBefore, result.BytesAfter)
	}
	if result.PassID == "" || result.FinishedAt.Before(result.StartedAt) {
		t.Fatalf("pass metadata not populated: %+v", result)
	}
}

func TestPurgeRecencyWithTightBudget(t *testing.T) {
	t.Parallel()
	const size = 300
	cache := newTestCache(t, testsupport.WithMaxBytes(450))
	a := writeAged(t, cache, size, 3*time.Hour)
	b := writeAged(t, cache, size, 2*time.Hour)
	c := writeAged(t, cache, size, time.Hour)

	if _, err := cache.Purge(context.Background()); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	// Running total from newest: c=300 keep, c+b=600 delete, c+b+a=900 delete.
	if !cache.Exists(c) {
		t.Fatal("newest entry deleted")
	}
	if cache.Exists(b) || cache.Exists(a) {
		t.Fatal("older entries past the budget survived")
	}
}

func TestPurgeProtectsSkipSetEntries(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithMaxBytes(1000))
	oldest := writeAged(t, cache, 400, 3*time.Hour)
	middle := writeAged(t, cache, 400, 2*time.Hour)
	newest := writeAged(t, cache, 400, time.Hour)
	cache.SkipSet().Add(oldest)

	start := time.Now().Add(-time.Second)
	result, err := cache.Purge(context.Background())
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	for _, key := range []assetkey.Key{oldest, middle, newest} {
		if !cache.Exists(key) {
			t.Fatalf("entry %s deleted", key)
		}
	}
	if got := testsupport.ModTime(t, cache.PathFor(oldest)); got.Before(start) {
		t.Fatalf("protected entry mtime %v not refreshed (pass start %v)", got, start)
	}
	if result.Protected != 1 || result.Deleted != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
}

func TestPurgeCountsProtectedTowardBudget(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithMaxBytes(500))
	protected := writeAged(t, cache, 400, time.Minute)
	cache.SkipSet().Add(protected)
	older := writeAged(t, cache, 200, time.Hour)

	if _, err := cache.Purge(context.Background()); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if !cache.Exists(protected) {
		t.Fatal("protected entry deleted")
	}
	if cache.Exists(older) {
		t.Fatal("entry past protected total should be deleted")
	}
}

func TestPurgeBudgetConvergence(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 11))
	for round := range 5 {
		budget := int64(2000 + rng.IntN(3000))
		cache := newTestCache(t, testsupport.WithMaxBytes(budget))
		protected := make(map[assetkey.Key]bool)
		for i := range 30 {
			key := writeAged(t, cache, int64(1+rng.IntN(600)), time.Duration(1+rng.IntN(10000))*time.Second)
			if i%7 == 0 {
				cache.SkipSet().Add(key)
				protected[key] = true
			}
		}

		if _, err := cache.Purge(context.Background()); err != nil {
			t.Fatalf("round %d: Purge failed: %v", round, err)
		}

		var unprotected int64
		err := filepath.WalkDir(cache.Root(), func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || filepath.Ext(path) != Suffix {
				return err
			}
			key, err := assetkey.ParseFilename(d.Name())
			if err != nil {
				return err
			}
			if protected[key] {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			unprotected += info.Size()
			return nil
		})
		if err != nil {
			t.Fatalf("round %d: walk failed: %v", round, err)
		}
		if unprotected > budget {
			t.Fatalf("round %d: unprotected bytes %d exceed budget %d", round, unprotected, budget)
		}
		for key := range protected {
			if !cache.Exists(key) {
				t.Fatalf("round %d: protected entry %s deleted", round, key)
			}
		}
	}
}

func TestPurgeIgnoresForeignFiles(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithMaxBytes(10))
	foreign := filepath.Join(cache.Root(), "a", "notes.txt")
	testsupport.WriteFile(t, foreign, 100)

	result, err := cache.Purge(context.Background())
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if result.Scanned != 0 {
		t.Fatalf("scanned %d files, want 0", result.Scanned)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("foreign file removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cache.Root(), VersionFile)); err != nil {
		t.Fatalf("version marker removed: %v", err)
	}
}

func TestPurgeMissingRootIsEmptyPass(t *testing.T) {
	t.Parallel()
	cache := New(Options{Dir: filepath.Join(t.TempDir(), "absent"), MaxBytes: 10}, nil)
	result, err := cache.Purge(context.Background())
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if result.Scanned != 0 {
		t.Fatalf("scanned %d files in missing root", result.Scanned)
	}
}

func TestPurgeDebugInfoRecordsDecisions(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithMaxBytes(500), testsupport.WithDebugInfo())
	writeAged(t, cache, 400, 2*time.Hour)
	writeAged(t, cache, 400, time.Hour)

	result, err := cache.Purge(context.Background())
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if len(result.Decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(result.Decisions))
	}
	if result.Decisions[0].Action != ActionKeep || result.Decisions[1].Action != ActionDelete {
		t.Fatalf("unexpected decisions: %+v", result.Decisions)
	}
	if result.Decisions[1].RunningTotal != 800 {
		t.Fatalf("running total = %d, want 800", result.Decisions[1].RunningTotal)
	}
}

func TestSortNewestFirstBreaksTiesByPath(t *testing.T) {
	t.Parallel()
	now := time.Now()
	files := []fileInfo{
		{path: "/c/b", modTime: now},
		{path: "/c/old", modTime: now.Add(-time.Hour)},
		{path: "/c/a", modTime: now},
		{path: "/c/new", modTime: now.Add(time.Hour)},
	}
	sortNewestFirst(files)
	want := []string{"/c/new", "/c/a", "/c/b", "/c/old"}
	for i, f := range files {
		if f.path != want[i] {
			t.Fatalf("position %d = %s, want %s", i, f.path, want[i])
		}
	}
}
