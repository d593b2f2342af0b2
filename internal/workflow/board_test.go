package workflow_test

import (
	"context"
	"testing"
	"time"

	"shopflow/internal/board"
	"shopflow/internal/services"
	"shopflow/internal/stages"
	"shopflow/internal/testsupport"
	"shopflow/internal/transition"
	"shopflow/internal/workflow"
)

func TestGetBoardGroupsActiveJobs(t *testing.T) {
	h := newHarness(t)
	atIntake := testsupport.SeedJob(t, h.store, shop, "RO-1", 2)
	atInsurance := testsupport.SeedJob(t, h.store, shop, "RO-2", 2)
	h.move(t, atInsurance.ID, stages.InsuranceApproval, true)
	delivered := testsupport.SeedJob(t, h.store, shop, "RO-3", 2)
	h.move(t, delivered.ID, stages.Delivered, true)
	h.clock.Advance(20 * time.Minute)

	got, err := h.engine.GetBoard(context.Background(), shop)
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if len(got.Columns) != len(board.DefaultTable()) {
		t.Fatalf("expected every column, got %d", len(got.Columns))
	}
	cards := map[board.Stage][]workflow.BoardCard{}
	total := 0
	for _, col := range got.Columns {
		cards[col.Stage] = col.Cards
		total += len(col.Cards)
	}
	if total != 2 {
		t.Fatalf("expected delivered job to be hidden, got %d cards", total)
	}
	if len(cards[board.Intake]) != 1 || cards[board.Intake][0].JobID != atIntake.ID {
		t.Fatalf("unexpected intake column: %#v", cards[board.Intake])
	}
	est := cards[board.Estimate]
	if len(est) != 1 || est[0].DetailedStage != stages.InsuranceApproval || est[0].StageName != "Insurance Approval" {
		t.Fatalf("unexpected estimate column: %#v", est)
	}
	if est[0].TimeInStage != 20*time.Minute {
		t.Fatalf("expected 20m in stage, got %s", est[0].TimeInStage)
	}
}

func TestSetBoardStageResolvesCanonicalStage(t *testing.T) {
	h := newHarness(t)
	job := testsupport.SeedJob(t, h.store, shop, "RO-1", 2)
	testsupport.CompleteAll(t, h.store, job.ID)
	ctx := context.Background()

	outcome, err := h.engine.SetBoardStage(ctx, workflow.BoardMoveRequest{JobID: job.ID, BoardStage: "Estimate"})
	if err != nil {
		t.Fatalf("SetBoardStage: %v", err)
	}
	if outcome.Unchanged || outcome.Job.CurrentStage != stages.Estimate || outcome.Record.Movement != transition.MovementForward {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}

	outcome, err = h.engine.SetBoardStage(ctx, workflow.BoardMoveRequest{JobID: job.ID, BoardStage: "estimate"})
	if err != nil {
		t.Fatalf("SetBoardStage same column: %v", err)
	}
	if !outcome.Unchanged || outcome.Job.Version != 1 {
		t.Fatalf("expected no-op for same column, got %#v", outcome)
	}
	if n := h.transitionCount(t); n != 1 {
		t.Fatalf("no-op wrote a record: %d", n)
	}

	_, err = h.engine.SetBoardStage(ctx, workflow.BoardMoveRequest{JobID: job.ID, BoardStage: "paint"})
	rej, ok := workflow.AsRejection(err)
	if !ok || rej.Result.Reason != transition.ReasonSkipsStages || rej.Target != stages.PaintPrep {
		t.Fatalf("expected skip rejection to paint prep, got %v", err)
	}

	outcome, err = h.engine.SetBoardStage(ctx, workflow.BoardMoveRequest{JobID: job.ID, BoardStage: "paint", Override: true, AuthorizedBy: "lead"})
	if err != nil {
		t.Fatalf("SetBoardStage override: %v", err)
	}
	if outcome.Job.CurrentStage != stages.PaintPrep || outcome.Record.Movement != transition.MovementSkip {
		t.Fatalf("unexpected override outcome: %#v", outcome.Record)
	}
}

func TestSetBoardStageRejectsUnknownColumn(t *testing.T) {
	h := newHarness(t)
	job := testsupport.SeedJob(t, h.store, shop, "RO-1", 2)
	_, err := h.engine.SetBoardStage(context.Background(), workflow.BoardMoveRequest{JobID: job.ID, BoardStage: "car_wash", Override: true})
	if services.KindOf(err) != services.KindStructural {
		t.Fatalf("expected structural error, got %v", err)
	}
	_, err = h.engine.SetBoardStage(context.Background(), workflow.BoardMoveRequest{JobID: 555, BoardStage: "paint"})
	if services.KindOf(err) != services.KindStructural {
		t.Fatalf("expected structural error for unknown job, got %v", err)
	}
}

func TestBoardFallsBackForCustomCatalogue(t *testing.T) {
	h := newHarness(t, testsupport.WithCatalog(scenarioCatalog))
	job := testsupport.SeedJob(t, h.store, shop, "RO-1", 2)

	got, err := h.engine.GetBoard(context.Background(), shop)
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if len(got.Columns) != 2 || got.Columns[0].Stage != "intake" || len(got.Columns[0].Cards) != 1 {
		t.Fatalf("unexpected fallback board: %#v", got.Columns)
	}
	outcome, err := h.engine.SetBoardStage(context.Background(), workflow.BoardMoveRequest{JobID: job.ID, BoardStage: "disassembly", Override: true})
	if err != nil {
		t.Fatalf("SetBoardStage: %v", err)
	}
	if outcome.Job.CurrentStage != "disassembly" {
		t.Fatalf("unexpected stage %s", outcome.Job.CurrentStage)
	}
}
