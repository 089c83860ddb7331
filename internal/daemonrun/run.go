package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"slcache/internal/config"
	"slcache/internal/daemon"
	"slcache/internal/ipc"
	"slcache/internal/logging"
	"slcache/internal/preflight"
)

const retentionSweepInterval = 24 * time.Hour

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the slcache daemon runtime loop and blocks until a signal
// arrives, cmdCtx is cancelled, or the metrics listener fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("slcached-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update slcached.log link: %v\n", err)
	}
	retention := logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "slcached-*.log", Exclude: []string{logPath}}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, retention)

	pidPath := filepath.Join(cfg.Paths.StateDir, "slcached.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(signalCtx, logger, cfg)

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache directory permissions and whether another daemon holds the lock"),
			logging.String(logging.FieldImpact, "cache is not managed; no eviction will run"),
		)
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		return d.ServeMetrics(groupCtx)
	})
	group.Go(func() error {
		ticker := time.NewTicker(retentionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, retention)
			}
		}
	})

	err = group.Wait()
	logger.Info("slcache daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return err
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if !cfg.Cache.ReadOnly {
		// The cache root is created by Init; create it early so access checks
		// describe the real directory.
		_ = os.MkdirAll(cfg.Cache.Dir, 0o755)
	}
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String(logging.FieldEventType, "preflight_passed"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "daemon features depending on this check may fail"),
			logging.String(logging.FieldErrorHint, "run slcache config show and verify paths and budget"),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "slcached.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
