package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"slcache/internal/daemon"
	"slcache/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		_ = s.listener.Close()
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may confuse CLI status checks"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = status.StartedAt
	resp.SchedulerRunning = status.SchedulerRunning
	resp.PurgeIntervalSec = int64(status.PurgeInterval.Seconds())
	resp.Usage = status.Usage
	resp.UsageSummary = status.UsageSummary
	resp.CacheDir = status.CacheDir
	resp.LockPath = status.LockFilePath
	resp.JournalPath = status.JournalPath
	resp.MetricsBind = status.MetricsBind
	if status.LastPass.PassID != "" {
		last := FromPassResult(status.LastPass)
		resp.LastPass = &last
	}
	return nil
}

func (s *service) Purge(_ PurgeRequest, resp *PurgeResponse) error {
	s.logger.Debug("purge requested")
	result, err := s.daemon.Purge(s.ctx)
	if err != nil {
		return err
	}
	resp.Pass = FromPassResult(result)
	s.logger.Info("purge completed via IPC",
		logging.String(logging.FieldEventType, "ipc_purge"),
		logging.String(logging.FieldPassID, result.PassID),
		logging.Int("deleted", result.Deleted))
	return nil
}

func (s *service) Clear(_ ClearRequest, resp *ClearResponse) error {
	s.logger.Debug("clear requested")
	if err := s.daemon.Clear(s.ctx); err != nil {
		return err
	}
	resp.Usage = s.daemon.Usage()
	s.logger.Info("cache cleared via IPC", logging.String(logging.FieldEventType, "ipc_clear"))
	return nil
}

func (s *service) Seed(_ SeedRequest, resp *SeedResponse) error {
	result, err := s.daemon.Seed(s.ctx)
	if err != nil {
		return err
	}
	resp.Copied = result.Copied
	resp.Existing = result.Existing
	resp.Skipped = result.Skipped
	resp.Failed = result.Failed
	return nil
}

func (s *service) Usage(_ UsageRequest, resp *UsageResponse) error {
	resp.Usage = s.daemon.Usage()
	resp.Summary = s.daemon.Cache().UsageSummary()
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	runs, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Runs = runs
	return nil
}

func (s *service) Protected(_ ProtectedRequest, resp *ProtectedResponse) error {
	resp.Keys = s.daemon.Protected()
	return nil
}
