package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"shopflow/internal/config"
	"shopflow/internal/jobstore"
	"shopflow/internal/notifications"
	"shopflow/internal/stages"
	"shopflow/internal/testsupport"
	"shopflow/internal/workflow"
)

const shop = "shop-1"

const scenarioCatalog = `
[[stage]]
code = "intake"
rank = 1
allowed_next = ["disassembly"]
requirements = ["photos_taken"]
capacity = 1

[[stage]]
code = "disassembly"
rank = 2
capacity = 2
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) ofType(kind notifications.EventType) []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notifications.Event
	for _, ev := range r.events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	cfg      *config.Config
	store    *jobstore.Store
	engine   *workflow.Engine
	clock    *fakeClock
	notifier *recordingNotifier
}

func newHarness(t *testing.T, cfgOpts ...testsupport.ConfigOption) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, cfgOpts...)
	reg, err := stages.LoadRegistry(cfg.Catalog.Path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	store := testsupport.MustOpenStoreWithRegistry(t, cfg, reg)
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	engine := testsupport.MustNewEngine(t, cfg, store,
		workflow.WithClock(clock.Now),
		workflow.WithNotifier(notifier),
	)
	return &harness{cfg: cfg, store: store, engine: engine, clock: clock, notifier: notifier}
}

func (h *harness) readJob(t *testing.T, id int64) *jobstore.Job {
	t.Helper()
	job, err := h.store.ReadJob(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadJob: %v", err)
	}
	return job
}

func (h *harness) transitionCount(t *testing.T) int64 {
	t.Helper()
	count, err := h.store.CountTransitions(context.Background())
	if err != nil {
		t.Fatalf("CountTransitions: %v", err)
	}
	return count
}

// move requests a transition that the test expects to succeed.
func (h *harness) move(t *testing.T, jobID int64, target stages.Code, override bool) workflow.TransitionOutcome {
	t.Helper()
	outcome, err := h.engine.RequestTransition(context.Background(), workflow.TransitionRequest{
		JobID:       jobID,
		TargetStage: target,
		Override:    override,
	})
	if err != nil {
		t.Fatalf("RequestTransition(%d, %s): %v", jobID, target, err)
	}
	return outcome
}

// setEnteredAt backdates the job's entry into its current stage.
func setEnteredAt(t *testing.T, cfg *config.Config, jobID int64, at time.Time) {
	t.Helper()
	db := testsupport.RawDB(t, cfg)
	if _, err := db.Exec(`UPDATE jobs SET stage_entered_at = ? WHERE id = ?`, at.UTC().Format(time.RFC3339Nano), jobID); err != nil {
		t.Fatalf("set stage_entered_at: %v", err)
	}
}
