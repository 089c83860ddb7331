package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slcache/internal/logging"
)

type httpServer struct {
	daemon *Daemon
	logger *slog.Logger
	server *http.Server
}

func newHTTPServer(d *Daemon) *httpServer {
	srv := &httpServer{
		daemon: d,
		logger: logging.NewComponentLogger(d.logger, "http"),
	}
	mux := http.NewServeMux()
	if d.metrics != nil {
		mux.Handle("/metrics", d.metrics.Handler())
	}
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/usage", srv.handleUsage)
	mux.HandleFunc("/api/history", srv.handleHistory)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// ServeMetrics listens on the metrics bind address and serves /metrics plus a
// read-only JSON status API until ctx is cancelled. It returns nil
// immediately when metrics are disabled.
func (d *Daemon) ServeMetrics(ctx context.Context) error {
	bind := strings.TrimSpace(d.cfg.Metrics.Bind)
	if !d.cfg.Metrics.Enabled || bind == "" {
		return nil
	}
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", bind)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	return newHTTPServer(d).serve(ctx, listener)
}

func (s *httpServer) serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "http_listening"),
	)
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

func (s *httpServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *httpServer) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Usage())
}

func (s *httpServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.daemon.History(r.Context(), limit)
	switch {
	case errors.Is(err, ErrJournalDisabled):
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *httpServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *httpServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
