package api

import (
	"strings"
	"time"

	"shopflow/internal/assignment"
	"shopflow/internal/board"
	"shopflow/internal/jobstore"
	"shopflow/internal/ledger"
	"shopflow/internal/services"
	"shopflow/internal/stages"
	"shopflow/internal/transition"
	"shopflow/internal/workflow"
	"shopflow/internal/workload"
)

// FromStage converts a catalogue definition.
func FromStage(def stages.Definition) Stage {
	next := make([]string, len(def.AllowedNext))
	for i, code := range def.AllowedNext {
		next[i] = string(code)
	}
	return Stage{
		Code:             string(def.Code),
		Name:             def.DisplayName(),
		Rank:             def.Rank,
		AllowedNext:      next,
		Requirements:     def.Requirements.Strings(),
		TimeLimitMinutes: int64(def.TimeLimit / time.Minute),
		Capacity:         def.Capacity,
		CanSkip:          def.CanSkip,
		Terminal:         def.IsTerminal(),
	}
}

// FromStages converts the ordered catalogue.
func FromStages(defs []stages.Definition) []Stage {
	out := make([]Stage, 0, len(defs))
	for _, def := range defs {
		out = append(out, FromStage(def))
	}
	return out
}

// FromJob converts a job. projector may be nil, in which case BoardStage is
// left empty.
func FromJob(job *jobstore.Job, projector *board.Projector) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:                    job.ID,
		ShopID:                job.ShopID,
		Reference:             job.Reference,
		CurrentStage:          string(job.CurrentStage),
		CompletedRequirements: job.CompletedRequirements.Strings(),
		EstimatedHours:        job.EstimatedHours,
		Priority:              job.Priority,
		TechnicianID:          job.TechnicianID,
		Version:               job.Version,
		CreatedAt:             formatTime(job.CreatedAt),
		UpdatedAt:             formatTime(job.UpdatedAt),
	}
	if projector != nil {
		dto.BoardStage = string(projector.ToBoardStage(job.CurrentStage))
	}
	if job.StageEnteredAt != nil {
		dto.StageEnteredAt = formatTime(*job.StageEnteredAt)
	}
	return dto
}

// FromJobDetail converts a job for single-job views, including the stages it
// can move to next.
func FromJobDetail(job *jobstore.Job, engine *workflow.Engine) Job {
	dto := FromJob(job, engine.Projector())
	if job == nil {
		return dto
	}
	for _, code := range engine.NextStages(job.CurrentStage) {
		dto.NextStages = append(dto.NextStages, string(code))
	}
	return dto
}

// FromJobs converts a slice of jobs.
func FromJobs(jobs []*jobstore.Job, projector *board.Projector) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job, projector))
	}
	return out
}

// FromRecord converts a ledger record.
func FromRecord(rec ledger.Record) TransitionRecord {
	return TransitionRecord{
		ID:              rec.ID,
		UUID:            rec.UUID,
		JobID:           rec.JobID,
		FromStage:       string(rec.FromStage),
		ToStage:         string(rec.ToStage),
		MovementType:    string(rec.Movement),
		Reason:          rec.Reason,
		TransitionTime:  formatTime(rec.TransitionTime),
		DurationMinutes: rec.DurationMinutes,
		TechnicianID:    rec.TechnicianID,
		AuthorizedBy:    rec.AuthorizedBy,
		Notes:           rec.Notes,
	}
}

// FromHistory converts a job history.
func FromHistory(history workflow.History) HistoryResponse {
	records := make([]TransitionRecord, 0, len(history.Records))
	for _, rec := range history.Records {
		records = append(records, FromRecord(rec))
	}
	minutes := make(map[string]int64, len(history.StageMinutes))
	for code, m := range history.StageMinutes {
		minutes[string(code)] = m
	}
	return HistoryResponse{
		JobID:             history.JobID,
		Transitions:       records,
		TotalCycleMinutes: history.TotalCycleMinutes,
		StageMinutes:      minutes,
	}
}

// FromValidation converts a validator verdict.
func FromValidation(res transition.Result) ValidationResult {
	missing := make([]string, len(res.Missing))
	for i, req := range res.Missing {
		missing[i] = string(req)
	}
	return ValidationResult{
		Valid:        res.Valid,
		Reason:       res.Reason,
		UnknownStage: string(res.UnknownStage),
		CanOverride:  res.CanOverride,
		Missing:      missing,
		MovementType: string(res.Movement),
		OverrideUsed: res.OverrideUsed,
	}
}

// FromOutcome converts a committed or unchanged transition.
func FromOutcome(outcome workflow.TransitionOutcome, projector *board.Projector) TransitionResponse {
	resp := TransitionResponse{
		Job:        FromJob(outcome.Job, projector),
		Validation: FromValidation(outcome.Validation),
		Unchanged:  outcome.Unchanged,
	}
	if !outcome.Unchanged && outcome.Record.UUID != "" {
		rec := FromRecord(outcome.Record)
		resp.Transition = &rec
	}
	return resp
}

// FromBatch converts a batch report.
func FromBatch(report workflow.BatchReport, projector *board.Projector) BatchResponse {
	resp := BatchResponse{
		Results:  make([]BatchResult, 0, len(report.Results)),
		Failures: make([]BatchFailure, 0, len(report.Failures)),
	}
	for _, item := range report.Results {
		resp.Results = append(resp.Results, BatchResult{
			Index: item.Index,
			JobID: item.JobID,
			Data:  FromOutcome(item.Outcome, projector),
		})
	}
	for _, failure := range report.Failures {
		dto := BatchFailure{
			Index: failure.Index,
			JobID: failure.JobID,
			Kind:  string(failure.Kind),
		}
		if failure.Err != nil {
			dto.Error = failure.Err.Error()
		}
		if failure.Validation != nil {
			v := FromValidation(*failure.Validation)
			dto.Validation = &v
		}
		resp.Failures = append(resp.Failures, dto)
	}
	return resp
}

// FromWorkload converts an analyzer report.
func FromWorkload(report workload.Report) WorkloadReport {
	loads := make([]StageLoad, 0, len(report.Stages))
	for _, load := range report.Stages {
		loads = append(loads, StageLoad{
			Code:         string(load.Code),
			Name:         load.Name,
			Count:        load.Count,
			Capacity:     load.Capacity,
			Utilization:  load.Utilization,
			IsBottleneck: load.IsBottleneck,
			Overdue:      load.Overdue,
		})
	}
	bottlenecks := make([]string, len(report.Bottlenecks))
	for i, code := range report.Bottlenecks {
		bottlenecks[i] = string(code)
	}
	return WorkloadReport{
		ShopID:             report.ShopID,
		GeneratedAt:        formatTime(report.GeneratedAt),
		Stages:             loads,
		Bottlenecks:        bottlenecks,
		TotalActive:        report.TotalActive,
		TotalCapacity:      report.TotalCapacity,
		OverallUtilization: report.OverallUtilization,
		Overdue:            report.Overdue,
		Unplaced:           report.Unplaced,
	}
}

// FromProjections converts planner output.
func FromProjections(shopID string, projections []assignment.Projection) AssignmentsResponse {
	out := make([]TechnicianProjection, 0, len(projections))
	for _, p := range projections {
		skills := p.Skills
		if skills == nil {
			skills = []string{}
		}
		out = append(out, TechnicianProjection{
			TechnicianID:      p.TechnicianID,
			Name:              p.Name,
			Skills:            skills,
			AssignedHours:     p.AssignedHours,
			Utilization:       p.Utilization,
			IsAvailable:       p.IsAvailable,
			NextAvailableDate: p.NextAvailableDate.Format(dateFormat),
		})
	}
	return AssignmentsResponse{ShopID: shopID, Technicians: out}
}

// FromBoard converts a board snapshot.
func FromBoard(b workflow.Board, projector *board.Projector) Board {
	columns := make([]BoardColumn, 0, len(b.Columns))
	for _, col := range b.Columns {
		dto := BoardColumn{
			Stage:          string(col.Stage),
			Name:           col.Name,
			DetailedStages: []string{},
			Cards:          make([]BoardCard, 0, len(col.Cards)),
		}
		if projector != nil {
			if detailed, err := projector.ToDetailedStages(col.Stage); err == nil {
				for _, code := range detailed {
					dto.DetailedStages = append(dto.DetailedStages, string(code))
				}
			}
		}
		for _, card := range col.Cards {
			dto.Cards = append(dto.Cards, BoardCard{
				JobID:              card.JobID,
				Reference:          card.Reference,
				DetailedStage:      string(card.DetailedStage),
				StageName:          card.StageName,
				TechnicianID:       card.TechnicianID,
				Priority:           card.Priority,
				TimeInStageMinutes: int64(card.TimeInStage / time.Minute),
			})
		}
		columns = append(columns, dto)
	}
	return Board{ShopID: b.ShopID, GeneratedAt: formatTime(b.GeneratedAt), Columns: columns}
}

// ToTransitionRequest converts a request body for jobID. A zero jobID keeps
// the id carried in the body, as batch entries do.
func ToTransitionRequest(jobID int64, req TransitionRequest) workflow.TransitionRequest {
	if jobID == 0 {
		jobID = req.JobID
	}
	return workflow.TransitionRequest{
		JobID:         jobID,
		TargetStage:   stages.Code(strings.TrimSpace(req.TargetStage)),
		TechnicianID:  req.TechnicianID,
		Notes:         req.Notes,
		Override:      req.Override,
		AuthorizedBy:  req.AuthorizedBy,
		Reason:        req.Reason,
		ExpectedStage: stages.Code(strings.TrimSpace(req.ExpectedStage)),
	}
}

// ToBoardMoveRequest converts a board drop body for jobID.
func ToBoardMoveRequest(jobID int64, req BoardMoveRequest) workflow.BoardMoveRequest {
	return workflow.BoardMoveRequest{
		JobID:        jobID,
		BoardStage:   req.BoardStage,
		TechnicianID: req.TechnicianID,
		Notes:        req.Notes,
		Override:     req.Override,
		AuthorizedBy: req.AuthorizedBy,
		Reason:       req.Reason,
	}
}

// FromError builds the error body for err.
func FromError(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	resp := ErrorResponse{
		Error:     err.Error(),
		Kind:      string(services.KindOf(err)),
		Retryable: services.Retryable(err),
	}
	if rej, ok := workflow.AsRejection(err); ok {
		v := FromValidation(rej.Result)
		resp.Validation = &v
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
