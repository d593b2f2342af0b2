package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shopflow/internal/config"
	"shopflow/internal/httpapi"
	"shopflow/internal/jobstore"
	"shopflow/internal/logging"
	"shopflow/internal/workflow"
)

// Daemon owns the API server and enforces single-instance execution.
type Daemon struct {
	logger *slog.Logger
	store  *jobstore.Store
	engine *workflow.Engine
	server *httpapi.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	APIAddress   string
	DatabasePath string
	LockFilePath string
	StageCount   int
	Transitions  int64
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobstore.Store, engine *workflow.Engine, server *httpapi.Server, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || engine == nil || server == nil {
		return nil, errors.New("daemon requires config, store, engine, and api server")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		engine:   engine,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and starts serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another shopflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("shopflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.Addr()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops serving and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("shopflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon, drains pending notifications, and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	d.engine.Close()
	return d.store.Close()
}

// Status reports runtime information. Store errors leave Transitions at zero.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		StageCount:   d.engine.Registry().Len(),
	}
	if status.Running {
		status.APIAddress = d.server.Addr()
	}
	if count, err := d.store.CountTransitions(ctx); err == nil {
		status.Transitions = count
	} else {
		d.logger.Debug("transition count unavailable", logging.Error(err))
	}
	return status
}
