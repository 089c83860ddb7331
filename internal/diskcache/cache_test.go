package diskcache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slcache/internal/assetkey"
	"slcache/internal/logging"
	"slcache/internal/testsupport"
)

const (
	staticTextureID = "89556747-24cb-43ed-920b-47caed15465f"
	staticSoundID   = "e97cf410-8e61-7005-ec06-629eba4cd1fb"
)

func staticAssets() map[string][]byte {
	return map[string][]byte{
		staticTextureID + ".j2c": []byte("default texture"),
		staticSoundID + ".dsf":   []byte("default sound"),
		"README.txt":             []byte("not an asset"),
	}
}

func TestSeedCopiesAndProtects(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithStaticAssets(staticAssets()))

	texture := assetkey.MustParse(staticTextureID)
	sound := assetkey.MustParse(staticSoundID)
	if !cache.SkipSet().Contains(texture) || !cache.SkipSet().Contains(sound) {
		t.Fatal("seeded keys missing from skip set")
	}
	if cache.SkipSet().Len() != 2 {
		t.Fatalf("skip set has %d keys, want 2", cache.SkipSet().Len())
	}
	data, err := cache.ReadAll(texture)
	if err != nil || string(data) != "default texture" {
		t.Fatalf("seeded content = %q, %v", data, err)
	}
}

func TestSeedIsIdempotentAndNeverOverwrites(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithStaticAssets(staticAssets()))
	texture := assetkey.MustParse(staticTextureID)

	if !cache.Write(texture, []byte("locally updated"), ModeOverwrite) {
		t.Fatal("write failed")
	}
	result, err := cache.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if result.Copied != 0 || result.Existing != 2 || result.Skipped != 1 {
		t.Fatalf("unexpected seed result: %+v", result)
	}
	data, _ := cache.ReadAll(texture)
	if string(data) != "locally updated" {
		t.Fatalf("seed overwrote existing entry: %q", data)
	}
	if cache.SkipSet().Len() != 2 {
		t.Fatalf("skip set has %d keys after reseed, want 2", cache.SkipSet().Len())
	}
}

func TestSeedReplacesEmptyStaticEntry(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithStaticAssets(staticAssets()))
	texture := assetkey.MustParse(staticTextureID)
	if err := os.Truncate(cache.PathFor(texture), 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if cache.Exists(texture) {
		t.Fatal("zero-length entry reported present")
	}

	result, err := cache.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if result.Copied != 1 || result.Existing != 1 {
		t.Fatalf("unexpected seed result: %+v", result)
	}
	data, err := cache.ReadAll(texture)
	if err != nil || string(data) != "default texture" {
		t.Fatalf("restored content = %q, %v", data, err)
	}
	if !cache.SkipSet().Contains(texture) {
		t.Fatal("restored entry not protected")
	}
}

func TestClearDuringPurgeKeepsStaticEntries(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithMaxBytes(4), testsupport.WithDebugInfo(), testsupport.WithStaticAssets(staticAssets()))
	staticPaths := map[string]bool{
		cache.PathFor(assetkey.MustParse(staticTextureID)): true,
		cache.PathFor(assetkey.MustParse(staticSoundID)):   true,
	}

	const rounds = 25
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range rounds {
			if err := cache.Clear(context.Background()); err != nil {
				t.Errorf("Clear failed: %v", err)
				return
			}
		}
	}()
	for range rounds {
		result, err := cache.Purge(context.Background())
		if err != nil {
			t.Fatalf("Purge failed: %v", err)
		}
		for _, d := range result.Decisions {
			if staticPaths[d.Path] && d.Action == ActionDelete {
				t.Fatalf("pass deleted static entry %s", d.Path)
			}
		}
	}
	<-done

	for path := range staticPaths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("static entry missing after clear/purge: %v", err)
		}
	}
}

func TestClearLogsVersionMarkerFailure(t *testing.T) {
	t.Parallel()
	cfg := testsupport.NewConfig(t)
	logPath := filepath.Join(testsupport.BaseDir(cfg), "clear.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	cache := New(OptionsFromConfig(cfg), logger)
	if err := cache.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	marker := filepath.Join(cache.Root(), VersionFile)
	if err := os.Remove(marker); err != nil {
		t.Fatalf("remove marker: %v", err)
	}
	if err := os.Mkdir(marker, 0o755); err != nil {
		t.Fatalf("mkdir marker: %v", err)
	}

	if err := cache.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "cache_version_write_failed") {
		t.Fatalf("expected marker failure warning, got %q", content)
	}
}

func TestSeedMissingSourceIsNotFatal(t *testing.T) {
	t.Parallel()
	cfg := testsupport.NewConfig(t)
	cfg.Cache.StaticAssetsDir = filepath.Join(testsupport.BaseDir(cfg), "nowhere")
	cache := New(OptionsFromConfig(cfg), logging.NewNop())
	if err := cache.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if cache.SkipSet().Len() != 0 {
		t.Fatal("expected empty skip set")
	}
}

func TestClearResetsUsageAndReseeds(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithMaxBytes(10<<20), testsupport.WithStaticAssets(staticAssets()))
	for range 3 {
		testsupport.WriteFile(t, cache.PathFor(assetkey.Random(assetkey.Texture)), 2<<20)
	}
	if got := cache.UsageSummary(); !strings.HasPrefix(got, "6MB / 10MB") {
		t.Fatalf("UsageSummary before clear = %q", got)
	}

	if err := cache.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got := cache.UsageSummary(); got != "0MB / 10MB (0.0% used)" {
		t.Fatalf("UsageSummary after clear = %q", got)
	}
	for _, shard := range shardNames {
		if _, err := os.Stat(filepath.Join(cache.Root(), shard)); err != nil {
			t.Fatalf("shard %s missing after clear: %v", shard, err)
		}
	}
	if !cache.Exists(assetkey.MustParse(staticTextureID)) || cache.SkipSet().Len() != 2 {
		t.Fatal("static entries not restored after clear")
	}
	usage := cache.Usage()
	if usage.Entries != 2 || usage.Protected != 2 {
		t.Fatalf("unexpected usage after clear: %+v", usage)
	}
}

func TestClearWithoutStaticAssetsLeavesNothing(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t)
	cache.Write(assetkey.Random(assetkey.Texture), []byte("data"), ModeOverwrite)

	if err := cache.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got := cache.DirSize(); got != 0 {
		t.Fatalf("DirSize after clear = %d", got)
	}
}

func TestUsageReportsPercentAndFilesystem(t *testing.T) {
	t.Parallel()
	cache := newTestCache(t, testsupport.WithMaxBytes(1000))
	cache.statfs = func(string) (uint64, uint64, error) { return 100, 40, nil }
	cache.Write(assetkey.Random(assetkey.Texture), make([]byte, 250), ModeOverwrite)

	usage := cache.Usage()
	if usage.UsedBytes != 250 || usage.Entries != 1 || usage.PercentUsed != 25 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if usage.TotalFSBytes != 100 || usage.FreeBytes != 40 {
		t.Fatalf("unexpected filesystem stats: %+v", usage)
	}
}

func TestFormatUsage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		used, max int64
		want      string
	}{
		{0, 4 << 30, "0MB / 4096MB (0.0% used)"},
		{1 << 30, 4 << 30, "1024MB / 4096MB (25.0% used)"},
		{(1 << 20) - 1, 3 << 20, "0MB / 3MB (0.0% used)"},
		{5 << 20, 0, "5MB / 0MB (0.0% used)"},
	}
	for _, tc := range tests {
		if got := formatUsage(tc.used, tc.max); got != tc.want {
			t.Fatalf("formatUsage(%d, %d) = %q, want %q", tc.used, tc.max, got, tc.want)
		}
	}
}

func TestInitClearsOnVersionMismatch(t *testing.T) {
	t.Parallel()
	cfg := testsupport.NewConfig(t)
	first := New(OptionsFromConfig(cfg), logging.NewNop())
	if err := first.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	key := assetkey.Random(assetkey.Texture)
	first.Write(key, []byte("v1 data"), ModeOverwrite)

	same := New(OptionsFromConfig(cfg), logging.NewNop())
	if err := same.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !same.Exists(key) {
		t.Fatal("entry removed although version matched")
	}

	cfg.Cache.Version = 2
	bumped := New(OptionsFromConfig(cfg), logging.NewNop())
	if err := bumped.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if bumped.Exists(key) {
		t.Fatal("entry survived version change")
	}
	marker, err := os.ReadFile(filepath.Join(cfg.Cache.Dir, VersionFile))
	if err != nil || strings.TrimSpace(string(marker)) != "2" {
		t.Fatalf("version marker = %q, %v", marker, err)
	}
}

func TestInitRemovesLegacyFiles(t *testing.T) {
	t.Parallel()
	cfg := testsupport.NewConfig(t)
	parent := filepath.Dir(cfg.Cache.Dir)
	legacy := []string{"inv.llsd.gz", "agent.inv.llsd", "data.db2.x.1"}
	for _, name := range legacy {
		testsupport.WriteBytes(t, filepath.Join(parent, name), []byte("old"))
	}
	keep := filepath.Join(parent, "settings.xml")
	testsupport.WriteBytes(t, keep, []byte("keep"))

	cache := New(OptionsFromConfig(cfg), logging.NewNop())
	if err := cache.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	for _, name := range legacy {
		if _, err := os.Stat(filepath.Join(parent, name)); !os.IsNotExist(err) {
			t.Fatalf("legacy file %s not removed (err=%v)", name, err)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
}

func TestReadOnlyInitLeavesDiskAlone(t *testing.T) {
	t.Parallel()
	cfg := testsupport.NewConfig(t, testsupport.WithReadOnly(), testsupport.WithStaticAssets(staticAssets()))
	cache := New(OptionsFromConfig(cfg), logging.NewNop())
	if err := cache.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := os.Stat(cfg.Cache.Dir); !os.IsNotExist(err) {
		t.Fatalf("read-only Init created the cache root (err=%v)", err)
	}
	if err := cache.Clear(context.Background()); err != nil {
		t.Fatalf("Clear on read-only cache failed: %v", err)
	}
	if cache.SkipSet().Len() != 0 {
		t.Fatal("read-only cache seeded static assets")
	}
}

func TestTouchThresholdFromOptions(t *testing.T) {
	t.Parallel()
	cache := New(Options{Dir: t.TempDir(), TouchThreshold: time.Minute}, nil)
	if cache.touchThreshold != time.Minute {
		t.Fatalf("touch threshold = %v", cache.touchThreshold)
	}
	if New(Options{Dir: t.TempDir()}, nil).touchThreshold != time.Hour {
		t.Fatal("default touch threshold should be one hour")
	}
}
