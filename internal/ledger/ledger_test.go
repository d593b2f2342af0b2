package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shopflow/internal/ledger"
	"shopflow/internal/stages"
	"shopflow/internal/transition"
)

type memoryStore struct {
	mu      sync.Mutex
	version map[int64]int64
	records []ledger.Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{version: make(map[int64]int64)}
}

var errStale = errors.New("stale version")

func (m *memoryStore) CommitTransition(_ context.Context, rec ledger.Record, expected int64) (ledger.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version[rec.JobID] != expected {
		return ledger.Record{}, errStale
	}
	m.version[rec.JobID]++
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memoryStore) TransitionsForJob(_ context.Context, jobID int64) ([]ledger.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Record
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].JobID == jobID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestAppendFirstTransitionHasNullDuration(t *testing.T) {
	store := newMemoryStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	l := ledger.New(store, stages.DefaultRegistry(), ledger.WithClock(clock.Now))

	rec, err := l.Append(context.Background(), ledger.Entry{
		JobID:     1,
		FromStage: stages.Intake,
		ToStage:   stages.Estimate,
		Movement:  transition.MovementForward,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.DurationMinutes != nil {
		t.Fatalf("expected nil duration on first transition, got %d", *rec.DurationMinutes)
	}
	if rec.Reason != ledger.DefaultReason {
		t.Fatalf("expected default reason, got %q", rec.Reason)
	}
	if rec.UUID == "" || rec.ID == 0 {
		t.Fatalf("expected identifiers to be assigned: %#v", rec)
	}
	if !rec.TransitionTime.Equal(clock.now) {
		t.Fatalf("transition time = %v, want %v", rec.TransitionTime, clock.now)
	}
}

func TestAppendRoundsDurationToWholeMinutes(t *testing.T) {
	store := newMemoryStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	l := ledger.New(store, stages.DefaultRegistry(), ledger.WithClock(clock.Now))

	entered := clock.now
	clock.Advance(90*time.Minute + 31*time.Second)
	rec, err := l.Append(context.Background(), ledger.Entry{
		JobID:          7,
		FromStage:      stages.Estimate,
		ToStage:        stages.PartsOrdered,
		Movement:       transition.MovementForward,
		Reason:         "  insurance waived ",
		StageEnteredAt: &entered,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.DurationMinutes == nil || *rec.DurationMinutes != 91 {
		t.Fatalf("expected 91 minutes, got %v", rec.DurationMinutes)
	}
	if rec.Reason != "insurance waived" {
		t.Fatalf("reason not trimmed: %q", rec.Reason)
	}
	if rec.Duration() != 91*time.Minute {
		t.Fatalf("Duration() = %v", rec.Duration())
	}
}

func TestAppendRejectsStaleVersion(t *testing.T) {
	store := newMemoryStore()
	l := ledger.New(store, stages.DefaultRegistry())

	entry := ledger.Entry{JobID: 3, FromStage: stages.Intake, ToStage: stages.Estimate, Movement: transition.MovementForward}
	if _, err := l.Append(context.Background(), entry); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if _, err := l.Append(context.Background(), entry); !errors.Is(err, errStale) {
		t.Fatalf("expected stale version error, got %v", err)
	}
	history, err := l.HistoryFor(context.Background(), 3)
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(history))
	}
}

func TestAppendValidatesEntry(t *testing.T) {
	l := ledger.New(newMemoryStore(), stages.DefaultRegistry())
	if _, err := l.Append(context.Background(), ledger.Entry{Movement: transition.MovementForward}); err == nil {
		t.Fatal("expected error for missing job id")
	}
	if _, err := l.Append(context.Background(), ledger.Entry{JobID: 1}); err == nil {
		t.Fatal("expected error for missing movement")
	}
}

func walk(t *testing.T, l *ledger.Ledger, clock *fakeClock, jobID int64, path []stages.Code, gaps []time.Duration) {
	t.Helper()
	var entered *time.Time
	for i := 0; i+1 < len(path); i++ {
		clock.Advance(gaps[i])
		rec, err := l.Append(context.Background(), ledger.Entry{
			JobID:           jobID,
			FromStage:       path[i],
			ToStage:         path[i+1],
			Movement:        transition.MovementForward,
			StageEnteredAt:  entered,
			ExpectedVersion: int64(i),
		})
		if err != nil {
			t.Fatalf("Append %s->%s: %v", path[i], path[i+1], err)
		}
		at := rec.TransitionTime
		entered = &at
	}
}

func TestDurationsSumToElapsedWallClock(t *testing.T) {
	store := newMemoryStore()
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start}
	reg := stages.DefaultRegistry()
	l := ledger.New(store, reg, ledger.WithClock(clock.Now))

	path := []stages.Code{stages.Intake, stages.Estimate, stages.PartsOrdered, stages.PartsReceived, stages.Disassembly}
	gaps := []time.Duration{5 * time.Minute, 47*time.Minute + 10*time.Second, 26 * time.Hour, 3*time.Hour + 20*time.Second}
	walk(t, l, clock, 11, path, gaps)

	history, err := l.HistoryFor(context.Background(), 11)
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	if len(history) != len(path)-1 {
		t.Fatalf("expected %d records, got %d", len(path)-1, len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].TransitionTime.Before(history[i-1].TransitionTime) {
			t.Fatalf("history not ordered at %d", i)
		}
	}

	var sum int64
	for _, rec := range history[1:] {
		sum += *rec.DurationMinutes
	}
	elapsed := history[len(history)-1].TransitionTime.Sub(history[0].TransitionTime)
	diff := sum - int64(elapsed.Minutes())
	if diff < -1 || diff > 1 {
		t.Fatalf("duration sum %d differs from wall clock %v by %d minutes", sum, elapsed, diff)
	}
}

func TestHalfMinuteStaysDoNotAccumulate(t *testing.T) {
	store := newMemoryStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	l := ledger.New(store, stages.DefaultRegistry(), ledger.WithClock(clock.Now))

	path := []stages.Code{stages.Intake, stages.Estimate, stages.InsuranceApproval, stages.PartsOrdered, stages.PartsReceived, stages.Disassembly}
	half := 30 * time.Second
	walk(t, l, clock, 12, path, []time.Duration{time.Minute, half, half, half, half})

	history, err := l.HistoryFor(context.Background(), 12)
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	var sum int64
	for _, rec := range history[1:] {
		if *rec.DurationMinutes < 0 || *rec.DurationMinutes > 1 {
			t.Fatalf("30s stay recorded as %d minutes", *rec.DurationMinutes)
		}
		sum += *rec.DurationMinutes
	}
	if sum != 2 {
		t.Fatalf("four 30s stays summed to %d minutes, want 2", sum)
	}
}

func TestTotalCycleTimeIncludesOpenInterval(t *testing.T) {
	store := newMemoryStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	reg := stages.DefaultRegistry()
	l := ledger.New(store, reg, ledger.WithClock(clock.Now))

	walk(t, l, clock, 5, []stages.Code{stages.Intake, stages.Estimate, stages.PartsOrdered}, []time.Duration{0, 60 * time.Minute})
	clock.Advance(30 * time.Minute)

	total, err := l.TotalCycleTime(context.Background(), 5)
	if err != nil {
		t.Fatalf("TotalCycleTime: %v", err)
	}
	if total != 90 {
		t.Fatalf("expected 90 minutes, got %d", total)
	}

	history, err := l.HistoryFor(context.Background(), 5)
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	perStage := ledger.StageMinutes(history, reg, clock.now)
	if perStage[stages.PartsOrdered] != 30 {
		t.Fatalf("expected 30 minutes in parts_ordered, got %d", perStage[stages.PartsOrdered])
	}
	if perStage[stages.Estimate] != 60 {
		t.Fatalf("expected 60 minutes in estimate, got %d", perStage[stages.Estimate])
	}
}

func TestTotalCycleTimeStopsAtTerminalStage(t *testing.T) {
	store := newMemoryStore()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	l := ledger.New(store, stages.DefaultRegistry(), ledger.WithClock(clock.Now))

	walk(t, l, clock, 9, []stages.Code{stages.ReadyForPickup, stages.Delivered}, []time.Duration{0})
	clock.Advance(48 * time.Hour)

	total, err := l.TotalCycleTime(context.Background(), 9)
	if err != nil {
		t.Fatalf("TotalCycleTime: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no open interval after delivery, got %d", total)
	}
}

func TestDurationMinutesClampsSkew(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	if got := ledger.DurationMinutes(&future, now); got == nil || *got != 0 {
		t.Fatalf("expected clamp to zero, got %v", got)
	}
	if got := ledger.DurationMinutes(nil, now); got != nil {
		t.Fatalf("expected nil for unknown entry time, got %d", *got)
	}
}
