package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slcache/internal/logging"
	"slcache/internal/testsupport"
)

func TestHTTPStatusAndUsage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxBytes(1<<20))
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	srv := newHTTPServer(d)

	w := httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	var status Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Usage.MaxBytes != 1<<20 {
		t.Fatalf("unexpected status: %+v", status)
	}

	w = httptest.NewRecorder()
	srv.handleUsage(w, httptest.NewRequest(http.MethodPost, "/api/usage", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST usage code = %d", w.Code)
	}
}

func TestHTTPHistoryWithoutJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Journal.Enabled = false
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	w := httptest.NewRecorder()
	newHTTPServer(d).handleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("history code = %d, want 404", w.Code)
	}
}

func TestServeExposesMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Metrics.Enabled = true
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newHTTPServer(d).serve(ctx, listener) }()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + listener.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "slcache_budget_bytes") {
		t.Fatal("metrics output missing slcache_budget_bytes")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeMetricsDisabledReturnsImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	if err := d.ServeMetrics(context.Background()); err != nil {
		t.Fatalf("ServeMetrics = %v", err)
	}
}
