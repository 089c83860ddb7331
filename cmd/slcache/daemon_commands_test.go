package main

import (
	"encoding/json"
	"os"
	"testing"

	"slcache/internal/preflight"
	"slcache/internal/testsupport"
)

func TestDaemonCheckPasses(t *testing.T) {
	env := setupOfflineEnv(t, testsupport.WithMaxBytes(1<<20))
	if err := os.MkdirAll(env.cfg.Cache.Dir, 0o755); err != nil {
		t.Fatalf("mkdir cache: %v", err)
	}

	out, _, err := runCLI(t, []string{"daemon", "check"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon check: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "Cache directory")

	out, _, err = runCLI(t, []string{"daemon", "check", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon check --json: %v", err)
	}
	var results []preflight.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) == 0 || len(preflight.Failed(results)) != 0 {
		t.Fatalf("unexpected preflight results: %+v", results)
	}
}

func TestDaemonRunRejectsSecondInstance(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"daemon", "run"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected daemon run to fail while another instance holds the lock")
	}
	requireContains(t, err.Error(), "already running")
}

func TestDaemonCheckReportsMissingCacheDir(t *testing.T) {
	env := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"daemon", "check"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected missing cache directory to fail the check")
	}
	requireContains(t, out, "does not exist")
}
