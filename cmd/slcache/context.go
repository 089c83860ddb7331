package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"slcache/internal/config"
	"slcache/internal/diskcache"
	"slcache/internal/ipc"
	"slcache/internal/logging"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) socketPath() string {
	if c.socketFlag != nil {
		if socket := strings.TrimSpace(*c.socketFlag); socket != "" {
			return socket
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return ""
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return wrapDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

// withDaemonOrLocal runs remote against the daemon when its socket answers.
// Otherwise it takes the daemon lock and runs local against the cache
// directory.
func (c *commandContext) withDaemonOrLocal(cmd *cobra.Command, remote func(*ipc.Client) error, local func(*diskcache.Cache) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err == nil {
		defer client.Close()
		return remote(client)
	}
	if !daemonOffline(err) {
		return wrapDialError(err, socket)
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("daemon holds %s but socket %s is unreachable; retry shortly", cfg.LockPath(), socket)
	}
	defer func() { _ = lock.Unlock() }()

	fmt.Fprintln(cmd.ErrOrStderr(), "Daemon not running; operating on the cache directory")
	cache, err := c.openCache()
	if err != nil {
		return err
	}
	return local(cache)
}

// openCache builds a cache over the configured directory without running
// initialization, so no version wipe or seeding happens as a side effect.
func (c *commandContext) openCache() (*diskcache.Cache, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	cache := diskcache.New(diskcache.OptionsFromConfig(cfg), c.cliLogger())
	if !cache.ReadOnly() {
		if err := cache.EnsureLayout(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

// cliLogger reports cache warnings on stderr; info-level cache chatter is
// suppressed in interactive commands.
func (c *commandContext) cliLogger() *slog.Logger {
	cfg := c.configValue()
	format := "console"
	if cfg != nil && cfg.Logging.Format != "" {
		format = cfg.Logging.Format
	}
	logger, err := logging.New(logging.Options{Level: "warn", Format: format, OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func daemonOffline(err error) bool {
	return errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) || os.IsNotExist(err)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `slcache daemon run`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
