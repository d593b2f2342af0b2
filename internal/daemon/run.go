package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"shopflow/internal/config"
	"shopflow/internal/httpapi"
	"shopflow/internal/jobstore"
	"shopflow/internal/logging"
	"shopflow/internal/metrics"
	"shopflow/internal/notifications"
	"shopflow/internal/preflight"
	"shopflow/internal/stages"
	"shopflow/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the daemon and blocks until ctx is cancelled or the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("shopflowd-%s.log", runID))
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.DaemonLogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update shopflowd.log link: %v\n", err)
	}
	logging.PruneOld(logger, cfg.Paths.LogDir, "shopflowd-*.log", cfg.Logging.RetentionDays, logPath)

	if err := checkReadiness(signalCtx, cfg, logger); err != nil {
		return err
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "shopflowd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("shopflow daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// build opens the store and assembles the engine, API server, and daemon.
func build(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	reg, err := stages.LoadRegistry(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load stage catalogue: %w", err)
	}
	store, err := jobstore.Open(cfg, reg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return nil, err
	}

	m := metrics.New()
	engine, err := workflow.NewEngine(cfg, reg, store, logger,
		workflow.WithNotifier(notifications.NewService(cfg)),
		workflow.WithMetrics(m),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	server, err := httpapi.New(cfg, engine, m, logger)
	if err != nil {
		engine.Close()
		store.Close()
		return nil, fmt.Errorf("create api server: %w", err)
	}
	d, err := New(cfg, store, engine, server, logger)
	if err != nil {
		engine.Close()
		store.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func checkReadiness(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		if r.Passed {
			logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("optional", r.Optional),
			logging.String(logging.FieldErrorHint, "run shopflow config validate"),
		)
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
	}
	return nil
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
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
