package board_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"shopflow/internal/board"
	"shopflow/internal/stages"
)

func TestDefaultTableCoversCatalogue(t *testing.T) {
	reg := stages.DefaultRegistry()
	p := board.MustNewProjector(board.DefaultTable(), reg)

	for _, def := range reg.Ordered() {
		col := p.ToBoardStage(def.Code)
		detailed, err := p.ToDetailedStages(col)
		if err != nil {
			t.Fatalf("ToDetailedStages(%s): %v", col, err)
		}
		found := false
		for _, d := range detailed {
			if d == def.Code {
				found = true
			}
		}
		if !found {
			t.Fatalf("stage %s maps to %s but is not in its detailed set %v", def.Code, col, detailed)
		}
	}
	if got := len(p.Columns()); got != 8 {
		t.Fatalf("expected 8 columns, got %d", got)
	}
}

func TestToBoardStageIsPureAndTotal(t *testing.T) {
	p := board.MustNewProjector(board.DefaultTable(), stages.DefaultRegistry())
	for _, code := range []stages.Code{stages.PaintBooth, stages.FrameStraightening, "not_a_stage", ""} {
		first := p.ToBoardStage(code)
		second := p.ToBoardStage(code)
		if first != second {
			t.Fatalf("ToBoardStage(%q) not stable: %s vs %s", code, first, second)
		}
	}
	if got := p.ToBoardStage("not_a_stage"); got != board.Intake {
		t.Fatalf("expected unmapped code to fall back to intake, got %s", got)
	}
	if got := p.ToBoardStage(stages.FrameStraightening); got != board.Body {
		t.Fatalf("expected body column, got %s", got)
	}
}

func TestCanonicalIsLowestRank(t *testing.T) {
	p := board.MustNewProjector(board.DefaultTable(), stages.DefaultRegistry())
	cases := map[board.Stage]stages.Code{
		board.Body:     stages.Disassembly,
		board.Paint:    stages.PaintPrep,
		board.Complete: stages.ReadyForPickup,
		board.Estimate: stages.Estimate,
	}
	for col, want := range cases {
		got, err := p.Canonical(col)
		if err != nil {
			t.Fatalf("Canonical(%s): %v", col, err)
		}
		if got != want {
			t.Fatalf("Canonical(%s) = %s, want %s", col, got, want)
		}
	}
	if _, err := p.Canonical("garage"); !errors.Is(err, board.ErrUnknownBoardStage) {
		t.Fatalf("expected ErrUnknownBoardStage, got %v", err)
	}
}

func TestDetailedStagesSortedByRank(t *testing.T) {
	reg := stages.DefaultRegistry()
	table := []board.Column{
		{Code: "all", Detailed: []stages.Code{stages.Delivered, stages.Intake, stages.PaintBooth}},
	}
	p := board.MustNewProjector(table, reg)
	got, err := p.ToDetailedStages("all")
	if err != nil {
		t.Fatalf("ToDetailedStages: %v", err)
	}
	if diff := cmp.Diff([]stages.Code{stages.Intake, stages.PaintBooth, stages.Delivered}, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	got[0] = "mutated"
	again, _ := p.ToDetailedStages("all")
	if again[0] != stages.Intake {
		t.Fatal("ToDetailedStages leaked internal slice")
	}
}

func TestNewProjectorRejectsBadTables(t *testing.T) {
	reg := stages.DefaultRegistry()
	cases := map[string][]board.Column{
		"empty":      nil,
		"no code":    {{Detailed: []stages.Code{stages.Intake}}},
		"no stages":  {{Code: "a"}},
		"dup column": {{Code: "a", Detailed: []stages.Code{stages.Intake}}, {Code: "a", Detailed: []stages.Code{stages.Estimate}}},
		"dup stage":  {{Code: "a", Detailed: []stages.Code{stages.Intake}}, {Code: "b", Detailed: []stages.Code{stages.Intake}}},
		"unknown":    {{Code: "a", Detailed: []stages.Code{"spaceship"}}},
	}
	for name, table := range cases {
		if _, err := board.NewProjector(table, reg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseStage(t *testing.T) {
	p := board.MustNewProjector(board.DefaultTable(), stages.DefaultRegistry())
	got, err := p.ParseStage("  PAINT ")
	if err != nil || got != board.Paint {
		t.Fatalf("ParseStage = %q, %v", got, err)
	}
	if _, err := p.ParseStage("roof"); err == nil {
		t.Fatal("expected unknown board stage error")
	}
}

func TestTableForFallsBackToOneColumnPerStage(t *testing.T) {
	if diff := cmp.Diff(board.DefaultTable(), board.TableFor(stages.DefaultRegistry())); diff != "" {
		t.Fatalf("expected default table for default catalogue (-want +got):\n%s", diff)
	}

	reg := stages.MustNewRegistry([]stages.Definition{
		{Code: "teardown", Rank: 2},
		{Code: "check_in", Name: "Check In", Rank: 1, AllowedNext: []stages.Code{"teardown"}},
	})
	want := []board.Column{
		{Code: "check_in", Name: "Check In", Detailed: []stages.Code{"check_in"}},
		{Code: "teardown", Name: "Teardown", Detailed: []stages.Code{"teardown"}},
	}
	got := board.TableFor(reg)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected fallback table (-want +got):\n%s", diff)
	}
	if _, err := board.NewProjector(got, reg); err != nil {
		t.Fatalf("fallback table invalid: %v", err)
	}
}
