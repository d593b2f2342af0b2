package workflow

import (
	"context"
	"strings"
	"time"

	"shopflow/internal/board"
	"shopflow/internal/services"
	"shopflow/internal/stages"
	"shopflow/internal/transition"
)

// BoardCard is one job as shown on the simplified board.
type BoardCard struct {
	JobID         int64
	Reference     string
	DetailedStage stages.Code
	StageName     string
	TechnicianID  string
	Priority      int
	TimeInStage   time.Duration
}

// BoardColumn is one board stage with its cards in priority order.
type BoardColumn struct {
	Stage board.Stage
	Name  string
	Cards []BoardCard
}

// Board is the shop's active jobs projected onto board columns.
type Board struct {
	ShopID      string
	GeneratedAt time.Time
	Columns     []BoardColumn
}

// GetBoard projects every active job of the shop onto the board.
func (e *Engine) GetBoard(ctx context.Context, shopID string) (Board, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return Board{}, services.Wrap(services.ErrStructural, component, "get board", "shop id is required", nil)
	}
	jobs, err := e.store.ListActiveJobs(ctx, shopID)
	if err != nil {
		return Board{}, storeError("list active jobs", err)
	}

	now := e.now()
	columns := e.projector.Columns()
	out := Board{ShopID: shopID, GeneratedAt: now, Columns: make([]BoardColumn, len(columns))}
	index := make(map[board.Stage]int, len(columns))
	for i, col := range columns {
		out.Columns[i] = BoardColumn{Stage: col.Code, Name: col.Name, Cards: []BoardCard{}}
		index[col.Code] = i
	}
	for _, job := range jobs {
		idx := index[e.projector.ToBoardStage(job.CurrentStage)]
		out.Columns[idx].Cards = append(out.Columns[idx].Cards, BoardCard{
			JobID:         job.ID,
			Reference:     job.Reference,
			DetailedStage: job.CurrentStage,
			StageName:     e.stageName(job.CurrentStage),
			TechnicianID:  job.TechnicianID,
			Priority:      job.Priority,
			TimeInStage:   job.TimeInStage(now),
		})
	}
	return out, nil
}

// BoardMoveRequest asks to drop a job on a board column.
type BoardMoveRequest struct {
	JobID        int64
	BoardStage   string
	TechnicianID string
	Notes        string
	Override     bool
	AuthorizedBy string
	Reason       string
}

// SetBoardStage resolves a board drop to the column's lowest-rank detailed
// stage and requests that transition. Dropping a job on the column it is
// already in changes nothing.
func (e *Engine) SetBoardStage(ctx context.Context, req BoardMoveRequest) (TransitionOutcome, error) {
	column, err := e.projector.ParseStage(req.BoardStage)
	if err != nil {
		return TransitionOutcome{}, services.Wrap(services.ErrStructural, component, "set board stage", "unknown board stage", err)
	}
	target, err := e.projector.Canonical(column)
	if err != nil {
		return TransitionOutcome{}, services.Wrap(services.ErrStructural, component, "set board stage", "unknown board stage", err)
	}

	job, err := e.store.ReadJob(ctx, req.JobID)
	if err != nil {
		return TransitionOutcome{}, storeError("read job", err)
	}
	if e.projector.ToBoardStage(job.CurrentStage) == column && e.registry.Has(job.CurrentStage) {
		return TransitionOutcome{
			Job:        job,
			Validation: transition.Result{Valid: true, Movement: transition.MovementParallel},
			Unchanged:  true,
		}, nil
	}

	return e.RequestTransition(ctx, TransitionRequest{
		JobID:         req.JobID,
		TargetStage:   target,
		TechnicianID:  req.TechnicianID,
		Notes:         req.Notes,
		Override:      req.Override,
		AuthorizedBy:  req.AuthorizedBy,
		Reason:        req.Reason,
		ExpectedStage: job.CurrentStage,
	})
}
