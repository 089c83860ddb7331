package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"slcache/internal/assetkey"
	"slcache/internal/config"
	"slcache/internal/daemon"
	"slcache/internal/diskcache"
	"slcache/internal/ipc"
	"slcache/internal/logging"
	"slcache/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

// setupCLITestEnv writes a config file and starts a daemon with an IPC
// server for it.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	env := setupOfflineEnv(t, opts...)

	logger := logging.NewNop()
	d, err := daemon.New(env.cfg, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		_ = d.Close()
		t.Fatalf("daemon Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		_ = d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI daemon test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})
	env.daemon = d
	return env
}

// setupOfflineEnv writes a config file without starting a daemon; the socket
// path points at a file that does not exist.
func setupOfflineEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Scheduler.Enabled = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{
		cfg:        cfg,
		socketPath: filepath.Join(cfg.Paths.StateDir, "c.sock"),
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, socket, configPath, "")
}

func runCLIWithInput(t *testing.T, args []string, socket, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeAgedEntry stores size bytes under a fresh key with an mtime age in the past.
func writeAgedEntry(t *testing.T, cfg *config.Config, size int64, age time.Duration) assetkey.Key {
	t.Helper()
	key := assetkey.Random(assetkey.Texture)
	path := filepath.Join(cfg.Cache.Dir, key.Shard(), key.String()+diskcache.Suffix)
	testsupport.WriteFile(t, path, size)
	testsupport.SetModTime(t, path, time.Now().Add(-age))
	return key
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
