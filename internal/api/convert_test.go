package api

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"shopflow/internal/board"
	"shopflow/internal/jobstore"
	"shopflow/internal/ledger"
	"shopflow/internal/services"
	"shopflow/internal/stages"
	"shopflow/internal/transition"
	"shopflow/internal/workflow"
)

func TestFromStageExposesCatalogueFields(t *testing.T) {
	def, err := stages.DefaultRegistry().Get(stages.Intake)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got := FromStage(def)
	want := Stage{
		Code:             "intake",
		Name:             "Vehicle Intake",
		Rank:             1,
		AllowedNext:      []string{"estimate"},
		Requirements:     []string{"customer_authorized", "photos_taken"},
		TimeLimitMinutes: 120,
		Capacity:         8,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected stage DTO (-want +got):\n%s", diff)
	}
}

func TestFromJobIncludesBoardStage(t *testing.T) {
	reg := stages.DefaultRegistry()
	projector := board.MustNewProjector(board.DefaultTable(), reg)
	entered := time.Date(2026, 3, 2, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))
	job := &jobstore.Job{
		ID:                    7,
		ShopID:                "shop-1",
		Reference:             "RO-7",
		CurrentStage:          stages.PaintBooth,
		StageEnteredAt:        &entered,
		CompletedRequirements: stages.NewRequirementSet(stages.RequirementPaintMatched),
		Version:               3,
	}
	dto := FromJob(job, projector)
	if dto.BoardStage != "paint" {
		t.Fatalf("expected paint board stage, got %q", dto.BoardStage)
	}
	if dto.StageEnteredAt != "2026-03-02T14:30:00.000Z" {
		t.Fatalf("unexpected timestamp %q", dto.StageEnteredAt)
	}
	if dto.CreatedAt != "" {
		t.Fatalf("zero time should be omitted, got %q", dto.CreatedAt)
	}
	if diff := cmp.Diff([]string{"paint_matched"}, dto.CompletedRequirements); diff != "" {
		t.Fatalf("unexpected requirements (-want +got):\n%s", diff)
	}
	if FromJob(job, nil).BoardStage != "" {
		t.Fatal("expected empty board stage without projector")
	}
}

func TestTransitionResponseJSONShape(t *testing.T) {
	minutes := int64(95)
	outcome := workflow.TransitionOutcome{
		Job: &jobstore.Job{ID: 1, CurrentStage: "disassembly"},
		Record: ledger.Record{
			ID: 1, UUID: "abc", JobID: 1, FromStage: "intake", ToStage: "disassembly",
			Movement: transition.MovementForward, Reason: "override",
			TransitionTime: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC), DurationMinutes: &minutes,
		},
		Validation: transition.Result{Valid: true, Movement: transition.MovementForward, OverrideUsed: true,
			Missing: []stages.Requirement{stages.RequirementPhotosTaken}},
	}
	data, err := json.Marshal(FromOutcome(outcome, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	for _, fragment := range []string{
		`"transitionRecord":{`,
		`"movementType":"forward"`,
		`"durationMinutes":95`,
		`"missing":["photos_taken"]`,
		`"overrideUsed":true`,
		`"currentStage":"disassembly"`,
	} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("expected %s in %s", fragment, body)
		}
	}

	unchanged := FromOutcome(workflow.TransitionOutcome{Job: outcome.Job, Unchanged: true}, nil)
	if unchanged.Transition != nil || !unchanged.Unchanged {
		t.Fatalf("unchanged outcome should carry no record: %#v", unchanged)
	}
}

func TestFirstRecordEncodesNullDuration(t *testing.T) {
	data, err := json.Marshal(FromRecord(ledger.Record{JobID: 1, Movement: transition.MovementForward}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"durationMinutes":null`) {
		t.Fatalf("expected null duration, got %s", data)
	}
}

func TestFromErrorCarriesVerdict(t *testing.T) {
	rej := &workflow.RejectionError{
		JobID: 3, Current: "intake", Target: "disassembly",
		Result: transition.Result{Reason: transition.ReasonMissingRequirements, CanOverride: true,
			Missing: []stages.Requirement{stages.RequirementPhotosTaken}},
	}
	resp := FromError(rej)
	if resp.Kind != "validation" || resp.Retryable || resp.Validation == nil || !resp.Validation.CanOverride {
		t.Fatalf("unexpected error response: %#v", resp)
	}

	conflict := services.Wrap(services.ErrConflict, "workflow", "commit", "lost race", errors.New("stale"))
	resp = FromError(conflict)
	if resp.Kind != "conflict" || !resp.Retryable || resp.Validation != nil {
		t.Fatalf("unexpected conflict response: %#v", resp)
	}
}

func TestToTransitionRequestPrefersPathID(t *testing.T) {
	body := TransitionRequest{JobID: 9, TargetStage: " estimate ", ExpectedStage: "intake", Override: true}
	if got := ToTransitionRequest(4, body); got.JobID != 4 || got.TargetStage != stages.Estimate || got.ExpectedStage != stages.Intake || !got.Override {
		t.Fatalf("unexpected request: %#v", got)
	}
	if got := ToTransitionRequest(0, body); got.JobID != 9 {
		t.Fatalf("expected body job id, got %d", got.JobID)
	}
}

func TestFromBoardListsDetailedStages(t *testing.T) {
	reg := stages.DefaultRegistry()
	projector := board.MustNewProjector(board.DefaultTable(), reg)
	dto := FromBoard(workflow.Board{
		ShopID: "shop-1",
		Columns: []workflow.BoardColumn{{
			Stage: board.Paint,
			Name:  "Paint",
			Cards: []workflow.BoardCard{{JobID: 1, DetailedStage: stages.PaintBooth, TimeInStage: 90*time.Minute + 20*time.Second}},
		}},
	}, projector)
	col := dto.Columns[0]
	if diff := cmp.Diff([]string{"paint_prep", "paint_booth"}, col.DetailedStages); diff != "" {
		t.Fatalf("unexpected detailed stages (-want +got):\n%s", diff)
	}
	if col.Cards[0].TimeInStageMinutes != 90 {
		t.Fatalf("expected 90 minutes, got %d", col.Cards[0].TimeInStageMinutes)
	}
}
