package ledger

import (
	"math"
	"time"

	"shopflow/internal/stages"
	"shopflow/internal/transition"
)

// DefaultReason is recorded when the caller supplies no movement reason.
const DefaultReason = "normal_progression"

// Record is one immutable stage transition.
type Record struct {
	ID             int64
	UUID           string
	JobID          int64
	FromStage      stages.Code
	ToStage        stages.Code
	Movement       transition.Movement
	Reason         string
	TransitionTime time.Time
	// DurationMinutes is the time spent in FromStage. Nil for a job's first
	// transition.
	DurationMinutes *int64
	TechnicianID    string
	AuthorizedBy    string
	Notes           string
}

// Duration returns DurationMinutes as a time.Duration, zero when unknown.
func (r Record) Duration() time.Duration {
	if r.DurationMinutes == nil {
		return 0
	}
	return time.Duration(*r.DurationMinutes) * time.Minute
}

// Entry carries the caller-supplied fields of a transition to append.
type Entry struct {
	JobID        int64
	FromStage    stages.Code
	ToStage      stages.Code
	Movement     transition.Movement
	Reason       string
	TechnicianID string
	AuthorizedBy string
	Notes        string
	// StageEnteredAt is the job's entry time into FromStage, nil when the job
	// has never transitioned.
	StageEnteredAt *time.Time
	// ExpectedVersion is the job version read before validation; the store
	// rejects the commit when it no longer matches.
	ExpectedVersion int64
}

// DurationMinutes returns the whole minutes between enteredAt and at,
// rounded to nearest. It returns nil when enteredAt is nil and clamps clock
// skew to zero.
func DurationMinutes(enteredAt *time.Time, at time.Time) *int64 {
	if enteredAt == nil {
		return nil
	}
	minutes := int64(math.Round(at.Sub(*enteredAt).Minutes()))
	if minutes < 0 {
		minutes = 0
	}
	return &minutes
}
