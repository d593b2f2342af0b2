package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopflow/internal/stages"
)

// Store persists ledger records. CommitTransition must insert rec and move
// the job's stage pointer to rec.ToStage with entry time rec.TransitionTime
// in a single atomic unit, failing without side effects when the job's
// version differs from expectedVersion.
type Store interface {
	CommitTransition(ctx context.Context, rec Record, expectedVersion int64) (Record, error)
	TransitionsForJob(ctx context.Context, jobID int64) ([]Record, error)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for transition timestamps and
// open intervals.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger appends and queries stage transition records.
type Ledger struct {
	store    Store
	registry *stages.Registry
	now      func() time.Time
}

// New constructs a ledger over store.
func New(store Store, reg *stages.Registry, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		registry: reg,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append creates the record for entry and commits it through the store.
func (l *Ledger) Append(ctx context.Context, entry Entry) (Record, error) {
	if entry.JobID <= 0 {
		return Record{}, errors.New("ledger append: job id must be positive")
	}
	if entry.Movement == "" {
		return Record{}, errors.New("ledger append: movement type required")
	}

	at := l.now().UTC()
	if entry.StageEnteredAt != nil && at.Before(*entry.StageEnteredAt) {
		at = entry.StageEnteredAt.UTC()
	}
	reason := strings.TrimSpace(entry.Reason)
	if reason == "" {
		reason = DefaultReason
	}
	duration, err := l.durationFor(ctx, entry, at)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		UUID:            uuid.NewString(),
		JobID:           entry.JobID,
		FromStage:       entry.FromStage,
		ToStage:         entry.ToStage,
		Movement:        entry.Movement,
		Reason:          reason,
		TransitionTime:  at,
		DurationMinutes: duration,
		TechnicianID:    strings.TrimSpace(entry.TechnicianID),
		AuthorizedBy:    strings.TrimSpace(entry.AuthorizedBy),
		Notes:           strings.TrimSpace(entry.Notes),
	}

	committed, err := l.store.CommitTransition(ctx, rec, entry.ExpectedVersion)
	if err != nil {
		return Record{}, fmt.Errorf("ledger append: %w", err)
	}
	return committed, nil
}

// durationFor rounds against the job's first transition rather than the
// stage entry alone, so the durations of consecutive records telescope and
// their sum stays within half a minute of the elapsed wall clock. A job
// without earlier records is anchored at its stage entry.
func (l *Ledger) durationFor(ctx context.Context, entry Entry, at time.Time) (*int64, error) {
	if entry.StageEnteredAt == nil {
		return nil, nil
	}
	entered := entry.StageEnteredAt.UTC()
	anchor := entered
	records, err := l.store.TransitionsForJob(ctx, entry.JobID)
	if err != nil {
		return nil, fmt.Errorf("ledger append: read history: %w", err)
	}
	for _, rec := range records {
		if rec.TransitionTime.Before(anchor) {
			anchor = rec.TransitionTime
		}
	}
	minutes := roundMinutes(at.Sub(anchor)) - roundMinutes(entered.Sub(anchor))
	if minutes < 0 {
		minutes = 0
	}
	return &minutes, nil
}

func roundMinutes(d time.Duration) int64 {
	return int64(math.Round(d.Minutes()))
}

// HistoryFor returns the job's records ordered by transition time.
func (l *Ledger) HistoryFor(ctx context.Context, jobID int64) ([]Record, error) {
	records, err := l.store.TransitionsForJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	sortRecords(records)
	return records, nil
}

// TotalCycleTime sums the recorded minutes of every transition plus the open
// interval since the last one when the job is not in a terminal stage.
func (l *Ledger) TotalCycleTime(ctx context.Context, jobID int64) (int64, error) {
	records, err := l.HistoryFor(ctx, jobID)
	if err != nil {
		return 0, err
	}
	return CycleMinutes(records, l.registry, l.now()), nil
}

// CycleMinutes computes the total cycle time of an ordered record slice.
func CycleMinutes(records []Record, reg *stages.Registry, now time.Time) int64 {
	var total int64
	for _, rec := range records {
		if rec.DurationMinutes != nil {
			total += *rec.DurationMinutes
		}
	}
	if len(records) == 0 {
		return total
	}
	last := records[len(records)-1]
	if reg != nil && reg.IsTerminal(last.ToStage) {
		return total
	}
	return total + openMinutes(last.TransitionTime, now)
}

// StageMinutes attributes recorded durations to the stage they were spent in
// and adds the open interval to the stage of the last record unless that
// stage is terminal.
func StageMinutes(records []Record, reg *stages.Registry, now time.Time) map[stages.Code]int64 {
	out := make(map[stages.Code]int64)
	for _, rec := range records {
		if rec.DurationMinutes != nil {
			out[rec.FromStage] += *rec.DurationMinutes
		}
	}
	if len(records) > 0 {
		last := records[len(records)-1]
		if reg == nil || !reg.IsTerminal(last.ToStage) {
			out[last.ToStage] += openMinutes(last.TransitionTime, now)
		}
	}
	return out
}

func openMinutes(since, now time.Time) int64 {
	minutes := int64(math.Round(now.Sub(since).Minutes()))
	if minutes < 0 {
		return 0
	}
	return minutes
}

func sortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].TransitionTime.Equal(records[j].TransitionTime) {
			return records[i].ID < records[j].ID
		}
		return records[i].TransitionTime.Before(records[j].TransitionTime)
	})
}
