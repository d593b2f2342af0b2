package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"shopflow/internal/jobstore"
	"shopflow/internal/ledger"
	"shopflow/internal/logging"
	"shopflow/internal/notifications"
	"shopflow/internal/services"
	"shopflow/internal/stages"
	"shopflow/internal/transition"
)

// Movement reasons the engine fills in when the caller gives none.
const (
	ReasonOverride = "override"
	ReasonRework   = "rework"
)

// TransitionRequest asks to move one job.
type TransitionRequest struct {
	JobID        int64
	TargetStage  stages.Code
	TechnicianID string
	Notes        string
	Override     bool
	AuthorizedBy string
	Reason       string
	// ExpectedStage is the stage the caller saw the job in. When set and the
	// job has moved since, the request fails with a conflict.
	ExpectedStage stages.Code
}

// TransitionOutcome is the result of a committed transition.
type TransitionOutcome struct {
	Job        *jobstore.Job
	Record     ledger.Record
	Validation transition.Result
	// Unchanged is set when a board move landed on the column the job
	// already occupies and nothing was written.
	Unchanged bool
}

// RejectionError carries the validator's verdict for a refused transition.
type RejectionError struct {
	JobID   int64
	Current stages.Code
	Target  stages.Code
	Result  transition.Result
}

func (e *RejectionError) Error() string {
	msg := fmt.Sprintf("job %d: %s -> %s rejected: %s", e.JobID, e.Current, e.Target, e.Result.Reason)
	if e.Result.UnknownStage != "" {
		msg += fmt.Sprintf(" %q", e.Result.UnknownStage)
	}
	if len(e.Result.Missing) > 0 {
		missing := make([]string, len(e.Result.Missing))
		for i, req := range e.Result.Missing {
			missing[i] = string(req)
		}
		msg += " (missing " + strings.Join(missing, ", ") + ")"
	}
	return msg
}

// Unwrap classifies the rejection for services.KindOf.
func (e *RejectionError) Unwrap() error {
	if e.Result.Structural() {
		return services.ErrStructural
	}
	return services.ErrValidation
}

// AsRejection extracts the validator verdict from err.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// RequestTransition validates and commits one stage move. Rejections return
// a *RejectionError and leave the job untouched; a lost race returns an
// error classified as services.ErrConflict.
func (e *Engine) RequestTransition(ctx context.Context, req TransitionRequest) (TransitionOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	ctx = services.WithJobID(ctx, req.JobID)
	ctx = services.WithStage(ctx, string(req.TargetStage))
	logger := logging.WithContext(ctx, e.logger)

	if req.JobID <= 0 {
		return TransitionOutcome{}, services.Wrap(services.ErrStructural, component, "request transition", "job id must be positive", nil)
	}
	target := stages.Code(strings.TrimSpace(string(req.TargetStage)))
	if target == "" {
		return TransitionOutcome{}, services.Wrap(services.ErrStructural, component, "request transition", "target stage is required", nil)
	}

	unlock := e.locks.lock(req.JobID)
	defer unlock()

	job, err := e.store.ReadJob(ctx, req.JobID)
	if err != nil {
		return TransitionOutcome{}, storeError("read job", err)
	}
	if req.ExpectedStage != "" && req.ExpectedStage != job.CurrentStage {
		e.metrics.RecordConflict()
		logger.Info("transition lost to a concurrent move",
			logging.String("expected_stage", string(req.ExpectedStage)),
			logging.String(logging.FieldFromStage, string(job.CurrentStage)),
			logging.String(logging.FieldEventType, "transition_conflict"),
		)
		return TransitionOutcome{Job: job}, services.Wrap(services.ErrConflict, component, "request transition",
			fmt.Sprintf("job is in %s, not %s; re-read and resubmit", job.CurrentStage, req.ExpectedStage), nil)
	}

	result := e.validator.Validate(job.CurrentStage, target, job.CompletedRequirements, req.Override)
	if !result.Valid {
		e.metrics.RecordRejection(result.Reason)
		logger.Info("transition rejected",
			logging.String(logging.FieldFromStage, string(job.CurrentStage)),
			logging.String("reason", result.Reason),
			logging.Bool("can_override", result.CanOverride),
			logging.String(logging.FieldEventType, "transition_rejected"),
		)
		return TransitionOutcome{Job: job, Validation: result}, &RejectionError{
			JobID:   job.ID,
			Current: job.CurrentStage,
			Target:  target,
			Result:  result,
		}
	}

	technician := strings.TrimSpace(req.TechnicianID)
	if technician == "" {
		technician = job.TechnicianID
	}
	started := time.Now()
	record, err := e.ledger.Append(ctx, ledger.Entry{
		JobID:           job.ID,
		FromStage:       job.CurrentStage,
		ToStage:         target,
		Movement:        result.Movement,
		Reason:          movementReason(req.Reason, result),
		TechnicianID:    technician,
		AuthorizedBy:    req.AuthorizedBy,
		Notes:           req.Notes,
		StageEnteredAt:  job.StageEnteredAt,
		ExpectedVersion: job.Version,
	})
	if err != nil {
		if errors.Is(err, jobstore.ErrConflict) {
			e.metrics.RecordConflict()
			logger.Info("transition lost compare-and-swap",
				logging.Int64("expected_version", job.Version),
				logging.String(logging.FieldEventType, "transition_conflict"),
			)
		}
		return TransitionOutcome{Job: job, Validation: result}, storeError("commit transition", err)
	}
	e.metrics.RecordTransition(string(record.Movement), string(record.ToStage), result.OverrideUsed, time.Since(started))

	updated := *job
	updated.CurrentStage = record.ToStage
	entered := record.TransitionTime
	updated.StageEnteredAt = &entered
	updated.Version = job.Version + 1
	updated.UpdatedAt = record.TransitionTime
	updated.CompletedRequirements = job.CompletedRequirements.Clone()

	e.invalidateSnapshot(job.ShopID)
	e.announceTransition(ctx, &updated, record, result)

	attrs := append(logging.StageChange(string(record.FromStage), string(record.ToStage)),
		logging.String("movement", string(record.Movement)),
		logging.String("reason", record.Reason),
		logging.String(logging.FieldEventType, "transition_committed"),
	)
	if record.DurationMinutes != nil {
		attrs = append(attrs, logging.Int64("duration_minutes", *record.DurationMinutes))
	}
	if result.OverrideUsed {
		attrs = append(attrs, logging.Bool("override", true), logging.String("authorized_by", record.AuthorizedBy))
	}
	logger.Info("stage transition committed", logging.Args(attrs...)...)

	return TransitionOutcome{Job: &updated, Record: record, Validation: result}, nil
}

func movementReason(requested string, result transition.Result) string {
	if reason := strings.TrimSpace(requested); reason != "" {
		return reason
	}
	switch {
	case result.Movement == transition.MovementBackward:
		return ReasonRework
	case result.OverrideUsed:
		return ReasonOverride
	default:
		return ledger.DefaultReason
	}
}

func (e *Engine) announceTransition(ctx context.Context, job *jobstore.Job, record ledger.Record, result transition.Result) {
	event := notifications.Event{
		Type:         notifications.EventStageChanged,
		ShopID:       job.ShopID,
		JobID:        job.ID,
		Reference:    job.Reference,
		FromStage:    e.stageName(record.FromStage),
		ToStage:      e.stageName(record.ToStage),
		Movement:     string(record.Movement),
		Reason:       record.Reason,
		AuthorizedBy: record.AuthorizedBy,
	}
	e.publish(ctx, event)
	if result.OverrideUsed {
		event.Type = notifications.EventOverrideUsed
		e.publish(ctx, event)
	}
}

func (e *Engine) publish(ctx context.Context, event notifications.Event) {
	e.metrics.RecordNotification(string(event.Type))
	e.dispatcher.Publish(ctx, event)
}

func (e *Engine) stageName(code stages.Code) string {
	def, err := e.registry.Get(code)
	if err != nil {
		return string(code)
	}
	return def.DisplayName()
}

// BatchItem is one successful batch entry.
type BatchItem struct {
	Index   int
	JobID   int64
	Outcome TransitionOutcome
}

// BatchFailure is one failed batch entry.
type BatchFailure struct {
	Index int
	JobID int64
	Kind  services.Kind
	Err   error
	// Validation is set when the validator refused the move.
	Validation *transition.Result
}

// BatchReport lists per-item outcomes in request order.
type BatchReport struct {
	Results  []BatchItem
	Failures []BatchFailure
}

// BatchRequestTransition runs each request independently in order. The
// returned error aggregates every failure and is nil when all succeeded;
// the report is complete either way.
func (e *Engine) BatchRequestTransition(ctx context.Context, reqs []TransitionRequest) (BatchReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	report := BatchReport{
		Results:  make([]BatchItem, 0, len(reqs)),
		Failures: make([]BatchFailure, 0),
	}
	var merr *multierror.Error
	for idx, req := range reqs {
		outcome, err := e.RequestTransition(ctx, req)
		if err == nil {
			report.Results = append(report.Results, BatchItem{Index: idx, JobID: req.JobID, Outcome: outcome})
			continue
		}
		failure := BatchFailure{Index: idx, JobID: req.JobID, Kind: services.KindOf(err), Err: err}
		if rej, ok := AsRejection(err); ok {
			res := rej.Result
			failure.Validation = &res
		}
		report.Failures = append(report.Failures, failure)
		merr = multierror.Append(merr, fmt.Errorf("item %d (job %d): %w", idx, req.JobID, err))
	}
	if len(report.Failures) > 0 {
		logging.WithContext(ctx, e.logger).Info("batch transition finished with failures",
			logging.Int("succeeded", len(report.Results)),
			logging.Int("failed", len(report.Failures)),
			logging.String(logging.FieldEventType, "batch_partial_failure"),
		)
	}
	return report, merr.ErrorOrNil()
}
