package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slcache/internal/assetkey"
	"slcache/internal/config"
	"slcache/internal/daemon"
	"slcache/internal/ipc"
	"slcache/internal/logging"
	"slcache/internal/testsupport"
)

const staticID = "89556747-24cb-43ed-920b-47caed15465f"

func startServer(t *testing.T, cfg *config.Config) (*daemon.Daemon, *ipc.Client) {
	t.Helper()
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}

	socket := filepath.Join(cfg.Paths.StateDir, "t.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return d, client
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithMaxBytes(500),
		testsupport.WithStaticAssets(map[string][]byte{staticID + ".j2c": []byte("tex")}),
	)
	cfg.Scheduler.Enabled = false
	d, client := startServer(t, cfg)

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.LastPass != nil || status.Usage.Protected != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}

	cache := d.Cache()
	old := assetkey.Random(assetkey.Texture)
	testsupport.WriteFile(t, cache.PathFor(old), 400)
	testsupport.SetModTime(t, cache.PathFor(old), time.Now().Add(-time.Hour))
	testsupport.WriteFile(t, cache.PathFor(assetkey.Random(assetkey.Texture)), 400)

	purge, err := client.Purge()
	if err != nil {
		t.Fatalf("Purge RPC failed: %v", err)
	}
	if purge.Pass.Deleted != 1 || purge.Pass.PassID == "" {
		t.Fatalf("unexpected purge: %+v", purge.Pass)
	}

	history, err := client.History(10)
	if err != nil {
		t.Fatalf("History RPC failed: %v", err)
	}
	if len(history.Runs) != 1 || history.Runs[0].PassID != purge.Pass.PassID {
		t.Fatalf("unexpected history: %+v", history.Runs)
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.LastPass == nil || status.LastPass.PassID != purge.Pass.PassID {
		t.Fatalf("status last pass = %+v", status.LastPass)
	}

	protected, err := client.Protected()
	if err != nil || len(protected.Keys) != 1 || protected.Keys[0] != staticID {
		t.Fatalf("Protected = %+v, %v", protected, err)
	}

	cleared, err := client.Clear()
	if err != nil {
		t.Fatalf("Clear RPC failed: %v", err)
	}
	if cleared.Usage.Entries != 1 {
		t.Fatalf("entries after clear = %d, want 1 static entry", cleared.Usage.Entries)
	}

	seed, err := client.Seed()
	if err != nil || seed.Existing != 1 || seed.Copied != 0 {
		t.Fatalf("Seed = %+v, %v", seed, err)
	}

	usage, err := client.Usage()
	if err != nil || !strings.HasSuffix(usage.Summary, "% used)") {
		t.Fatalf("Usage = %+v, %v", usage, err)
	}
}

func TestHistoryRPCReportsDisabledJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Journal.Enabled = false
	_, client := startServer(t, cfg)

	_, err := client.History(5)
	if err == nil || !strings.Contains(err.Error(), daemon.ErrJournalDisabled.Error()) {
		t.Fatalf("History error = %v", err)
	}
}
