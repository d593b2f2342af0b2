package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"shopflow/internal/assignment"
	"shopflow/internal/board"
	"shopflow/internal/config"
	"shopflow/internal/jobstore"
	"shopflow/internal/ledger"
	"shopflow/internal/logging"
	"shopflow/internal/metrics"
	"shopflow/internal/notifications"
	"shopflow/internal/services"
	"shopflow/internal/stages"
	"shopflow/internal/transition"
	"shopflow/internal/workload"
)

const component = "workflow"

// JobStore is the persistence the engine consumes. *jobstore.Store
// satisfies it.
type JobStore interface {
	ledger.Store
	ReadJob(ctx context.Context, id int64) (*jobstore.Job, error)
	ListActiveJobs(ctx context.Context, shopID string) ([]*jobstore.Job, error)
	ListTechnicians(ctx context.Context, shopID string) ([]jobstore.Technician, error)
	HoursFor(ctx context.Context, technicianID string) (float64, error)
}

var _ JobStore = (*jobstore.Store)(nil)

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithNotifier replaces the notification service built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(e *Engine) {
		if svc != nil {
			e.notifier = svc
		}
	}
}

// WithMetrics records engine activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock overrides the engine time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithBoardTable replaces the default board column table.
func WithBoardTable(table []board.Column) Option {
	return func(e *Engine) {
		e.boardTable = table
	}
}

// Engine is the workflow entry point shared by the HTTP API and the CLI.
type Engine struct {
	cfg       *config.Config
	registry  *stages.Registry
	store     JobStore
	logger    *slog.Logger
	validator *transition.Validator
	ledger    *ledger.Ledger
	analyzer  *workload.Analyzer
	planner   *assignment.Planner
	projector *board.Projector
	metrics   *metrics.Metrics
	now       func() time.Time

	notifier   notifications.Service
	dispatcher *notifications.Dispatcher
	boardTable []board.Column

	locks     *jobLocks
	snapshots *gocache.Cache

	bottleneckMu sync.Mutex
	bottlenecks  map[string]map[stages.Code]struct{}
}

// NewEngine wires the engine components over store.
func NewEngine(cfg *config.Config, reg *stages.Registry, store JobStore, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("workflow: config is required")
	}
	if reg == nil {
		return nil, errors.New("workflow: stage registry is required")
	}
	if store == nil {
		return nil, errors.New("workflow: job store is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	e := &Engine{
		cfg:         cfg,
		registry:    reg,
		store:       store,
		logger:      logging.NewComponentLogger(logger, component),
		validator:   transition.NewValidator(reg),
		now:         func() time.Time { return time.Now().UTC() },
		boardTable:  board.TableFor(reg),
		locks:       newJobLocks(),
		bottlenecks: make(map[string]map[stages.Code]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = notifications.NewService(cfg)
	}

	planner, err := assignment.NewPlanner(assignment.Settings{
		ReferenceWeekHours:         cfg.Planner.ReferenceWeekHours,
		WorkdayHours:               cfg.Planner.WorkdayHours,
		AvailabilityThresholdHours: cfg.Planner.AvailabilityThresholdHours,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: planner settings: %w", err)
	}
	projector, err := board.NewProjector(e.boardTable, reg)
	if err != nil {
		return nil, fmt.Errorf("workflow: board table: %w", err)
	}

	e.planner = planner
	e.projector = projector
	e.analyzer = workload.NewAnalyzer(reg, workload.WithBottleneckRatio(cfg.Workload.BottleneckRatio))
	e.ledger = ledger.New(store, reg, ledger.WithClock(e.now))
	e.dispatcher = notifications.NewDispatcher(
		e.notifier,
		logger,
		time.Duration(cfg.Notifications.RequestTimeout)*time.Second,
	)
	if ttl := time.Duration(cfg.Workload.SnapshotTTLSeconds) * time.Second; ttl > 0 {
		e.snapshots = gocache.New(ttl, 2*ttl)
	}
	return e, nil
}

// Registry returns the immutable stage catalogue.
func (e *Engine) Registry() *stages.Registry {
	return e.registry
}

// Projector returns the board projector.
func (e *Engine) Projector() *board.Projector {
	return e.projector
}

// Close waits for in-flight notifications.
func (e *Engine) Close() {
	e.dispatcher.Wait()
}

// GetStages returns the catalogue in rank order.
func (e *Engine) GetStages() []stages.Definition {
	return e.registry.Ordered()
}

// GetJob reads a job.
func (e *Engine) GetJob(ctx context.Context, jobID int64) (*jobstore.Job, error) {
	job, err := e.store.ReadJob(ctx, jobID)
	if err != nil {
		return nil, storeError("read job", err)
	}
	return job, nil
}

// NextStages lists the stages a job at current can move to without an
// override once its requirements are met. It is empty for terminal or
// unknown stages.
func (e *Engine) NextStages(current stages.Code) []stages.Code {
	reachable, err := e.validator.Reachable(current)
	if err != nil {
		return nil
	}
	out := make([]stages.Code, 0, len(reachable))
	for _, code := range reachable {
		if code != current {
			out = append(out, code)
		}
	}
	return out
}

// History is a job's ledger with derived cycle times.
type History struct {
	JobID             int64
	Records           []ledger.Record
	TotalCycleMinutes int64
	StageMinutes      map[stages.Code]int64
}

// GetHistory returns the job's transition records in time order.
func (e *Engine) GetHistory(ctx context.Context, jobID int64) (History, error) {
	if _, err := e.store.ReadJob(ctx, jobID); err != nil {
		return History{}, storeError("read job", err)
	}
	records, err := e.ledger.HistoryFor(ctx, jobID)
	if err != nil {
		return History{}, storeError("read history", err)
	}
	now := e.now()
	return History{
		JobID:             jobID,
		Records:           records,
		TotalCycleMinutes: ledger.CycleMinutes(records, e.registry, now),
		StageMinutes:      ledger.StageMinutes(records, e.registry, now),
	}, nil
}

// storeError classifies a job store failure.
func storeError(operation string, err error) error {
	switch {
	case errors.Is(err, jobstore.ErrJobNotFound), errors.Is(err, jobstore.ErrTechnicianNotFound):
		return services.Wrap(services.ErrStructural, component, operation, "unknown reference", err)
	case errors.Is(err, jobstore.ErrConflict):
		return services.Wrap(services.ErrConflict, component, operation, "job changed concurrently; re-read and resubmit", err)
	default:
		return services.Wrap(services.ErrUpstream, component, operation, "job store unavailable", err)
	}
}
