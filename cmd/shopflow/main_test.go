package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shopflow/internal/api"
	"shopflow/internal/stages"
	"shopflow/internal/testsupport"
	"shopflow/internal/workflow"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("SHOPFLOW_API_TOKEN", "")
	t.Setenv("SHOPFLOW_NTFY_TOPIC", "")

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	body := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"

[workload]
snapshot_ttl_seconds = 0

[logging]
level = "error"
`, filepath.Join(base, "data"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{configPath: configPath, baseDir: base}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (env *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := env.run(t, args...)
	if err != nil {
		t.Fatalf("shopflow %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func decodeJSON[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return v
}

func TestStagesCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	resp := decodeJSON[api.StageListResponse](t, env.mustRun(t, "--json", "stages"))
	if len(resp.Stages) != stages.DefaultRegistry().Len() {
		t.Fatalf("expected %d stages, got %d", stages.DefaultRegistry().Len(), len(resp.Stages))
	}
	if resp.Stages[0].Code != string(stages.Intake) {
		t.Fatalf("first stage = %q", resp.Stages[0].Code)
	}

	table := env.mustRun(t, "stages")
	if !strings.Contains(table, "Vehicle Intake") || !strings.Contains(table, "photos_taken") {
		t.Fatalf("unexpected table output:\n%s", table)
	}
}

func TestJobLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "job", "add", "--shop", "north", "--ref", "RO-1001", "--hours", "6")
	if !strings.Contains(out, "Created job 1 in Vehicle Intake") {
		t.Fatalf("unexpected add output: %q", out)
	}

	out, err := env.run(t, "move", "1", "estimate")
	if err == nil {
		t.Fatalf("expected rejection, got %q", out)
	}
	if !strings.Contains(err.Error(), "customer_authorized") || !strings.Contains(err.Error(), "photos_taken") {
		t.Fatalf("expected missing requirements in error, got %v", err)
	}

	env.mustRun(t, "job", "require", "1", "photos_taken", "customer_authorized")
	out = env.mustRun(t, "move", "1", "estimate")
	if !strings.Contains(out, "Job 1 moved Vehicle Intake → Estimate (forward, normal_progression)") {
		t.Fatalf("unexpected move output: %q", out)
	}

	resp := decodeJSON[api.TransitionResponse](t, env.mustRun(t, "--json", "move", "1", "parts_ordered",
		"--override", "--authorized-by", "manager", "--reason", "rush order"))
	if !resp.Validation.OverrideUsed || resp.Transition == nil {
		t.Fatalf("expected override transition, got %+v", resp)
	}
	if resp.Transition.Reason != "rush order" || resp.Transition.AuthorizedBy != "manager" {
		t.Fatalf("unexpected record %+v", resp.Transition)
	}
	if resp.Job.BoardStage != "parts" {
		t.Fatalf("board stage = %q", resp.Job.BoardStage)
	}

	history := decodeJSON[api.HistoryResponse](t, env.mustRun(t, "--json", "job", "history", "1"))
	if len(history.Transitions) != 2 {
		t.Fatalf("expected two transitions, got %d", len(history.Transitions))
	}
	if history.Transitions[0].DurationMinutes != nil {
		t.Fatalf("first transition should have no duration, got %d", *history.Transitions[0].DurationMinutes)
	}

	show := env.mustRun(t, "job", "show", "1")
	if !strings.Contains(show, "Parts Ordered") || !strings.Contains(show, "RO-1001") {
		t.Fatalf("unexpected show output:\n%s", show)
	}
}

func TestMoveRejectionJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "job", "add", "--shop", "north")

	out, err := env.run(t, "--json", "move", "1", "paint_booth")
	if err == nil {
		t.Fatal("expected rejection")
	}
	resp := decodeJSON[api.ErrorResponse](t, out)
	if resp.Kind != "validation" || resp.Validation == nil || !resp.Validation.CanOverride {
		t.Fatalf("unexpected error payload %+v", resp)
	}

	out, err = env.run(t, "--json", "move", "1", "teleport")
	if err == nil {
		t.Fatal("expected structural rejection")
	}
	resp = decodeJSON[api.ErrorResponse](t, out)
	if resp.Kind != "structural" || resp.Validation == nil || resp.Validation.UnknownStage != "teleport" {
		t.Fatalf("expected structural kind naming the stage, got %+v", resp)
	}
	if resp.Validation.Reason != "unknown target stage" {
		t.Fatalf("reason should not embed the code, got %q", resp.Validation.Reason)
	}
}

func TestMoveExpectDetectsStaleView(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "job", "add", "--shop", "north")
	env.mustRun(t, "job", "require", "1", "photos_taken", "customer_authorized")

	out, err := env.run(t, "--json", "move", "1", "estimate", "--expect", "parts_ordered")
	if err == nil {
		t.Fatalf("expected conflict, got %q", out)
	}
	if resp := decodeJSON[api.ErrorResponse](t, out); resp.Kind != "conflict" {
		t.Fatalf("expected conflict kind, got %+v", resp)
	}

	out, err = env.run(t, "--json", "move", "99", "estimate")
	if err == nil {
		t.Fatalf("expected unknown job error, got %q", out)
	}
	if resp := decodeJSON[api.ErrorResponse](t, out); resp.Kind != "structural" {
		t.Fatalf("expected structural kind for unknown job, got %+v", resp)
	}
}

func TestPinExpectedStageUsesCurrentStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	engine := testsupport.MustNewEngine(t, cfg, store)
	job := testsupport.SeedJob(t, store, "north", "RO-1", 1)
	ctx := context.Background()

	pinned, err := pinExpectedStage(ctx, engine, workflow.TransitionRequest{JobID: job.ID, TargetStage: stages.Estimate})
	if err != nil {
		t.Fatalf("pinExpectedStage: %v", err)
	}
	if pinned.ExpectedStage != stages.Intake {
		t.Fatalf("expected intake pinned, got %q", pinned.ExpectedStage)
	}

	explicit, err := pinExpectedStage(ctx, engine, workflow.TransitionRequest{JobID: job.ID, ExpectedStage: stages.Estimate})
	if err != nil || explicit.ExpectedStage != stages.Estimate {
		t.Fatalf("explicit expectation overwritten: %q %v", explicit.ExpectedStage, err)
	}
}

func TestBoardAndWorkload(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "job", "add", "--shop", "north", "--ref", "RO-1")
	env.mustRun(t, "job", "add", "--shop", "north", "--ref", "RO-2")

	out := env.mustRun(t, "board", "set", "1", "intake")
	if !strings.Contains(out, "already in") {
		t.Fatalf("expected no-op board move, got %q", out)
	}
	if _, err := env.run(t, "board", "set", "1", "nowhere"); err == nil || !strings.Contains(err.Error(), "columns:") {
		t.Fatalf("expected unknown column error, got %v", err)
	}

	env.mustRun(t, "job", "require", "2", "photos_taken", "customer_authorized")
	env.mustRun(t, "board", "set", "2", "estimate")

	b := decodeJSON[api.Board](t, env.mustRun(t, "--json", "board", "north"))
	counts := map[string]int{}
	for _, col := range b.Columns {
		counts[col.Stage] = len(col.Cards)
	}
	if counts["intake"] != 1 || counts["estimate"] != 1 {
		t.Fatalf("unexpected board counts %v", counts)
	}

	text := env.mustRun(t, "board", "north")
	if !strings.Contains(text, "Intake (1)") || !strings.Contains(text, "#2 RO-2") {
		t.Fatalf("unexpected board text:\n%s", text)
	}

	report := decodeJSON[api.WorkloadReport](t, env.mustRun(t, "--json", "workload", "north"))
	if report.TotalActive != 2 {
		t.Fatalf("total active = %d", report.TotalActive)
	}
	if !strings.Contains(env.mustRun(t, "workload", "north"), "Active jobs: 2") {
		t.Fatal("expected workload summary line")
	}
}

func TestTechniciansAndAssignments(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "tech", "add", "tech-a", "--shop", "north", "--name", "Avery", "--skills", "paint, body")
	env.mustRun(t, "job", "add", "--shop", "north", "--hours", "12")
	env.mustRun(t, "job", "assign", "1", "tech-a")

	list := env.mustRun(t, "tech", "list", "north")
	if !strings.Contains(list, "Avery") || !strings.Contains(list, "paint, body") {
		t.Fatalf("unexpected tech list:\n%s", list)
	}

	resp := decodeJSON[api.AssignmentsResponse](t, env.mustRun(t, "--json", "assignments", "north"))
	if len(resp.Technicians) != 1 {
		t.Fatalf("expected one technician, got %d", len(resp.Technicians))
	}
	if resp.Technicians[0].AssignedHours != 12 || !resp.Technicians[0].IsAvailable {
		t.Fatalf("unexpected projection %+v", resp.Technicians[0])
	}

	if _, err := env.run(t, "job", "assign", "1", "ghost"); err == nil {
		t.Fatal("expected unknown technician error")
	}
}

func TestBatchCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "job", "add", "--shop", "north")
	env.mustRun(t, "job", "require", "1", "photos_taken", "customer_authorized")

	batchPath := filepath.Join(env.baseDir, "batch.json")
	body := `{"transitions":[{"jobId":1,"targetStage":"estimate"},{"jobId":99,"targetStage":"estimate"}]}`
	if err := os.WriteFile(batchPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	out, err := env.run(t, "--json", "move", "batch", batchPath)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 transitions failed") {
		t.Fatalf("expected partial failure, got %v", err)
	}
	resp := decodeJSON[api.BatchResponse](t, out)
	if len(resp.Results) != 1 || len(resp.Failures) != 1 {
		t.Fatalf("unexpected batch response %+v", resp)
	}
	if resp.Failures[0].Index != 1 || resp.Failures[0].JobID != 99 {
		t.Fatalf("unexpected failure %+v", resp.Failures[0])
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	out := env.mustRun(t, "config", "init", "--path", target)
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out = env.mustRun(t, "config", "validate")
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, "Stage catalogue:") {
		t.Fatalf("unexpected validate output:\n%s", out)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out := env.mustRun(t, "test-notify")
	if !strings.Contains(out, "not configured") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestShowUnknownJobJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "--json", "job", "show", "42")
	if err == nil {
		t.Fatalf("expected error, got %q", out)
	}
	if resp := decodeJSON[api.ErrorResponse](t, out); resp.Kind != "structural" || resp.Error == "" {
		t.Fatalf("unexpected error payload %+v", resp)
	}
}
