package jobstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"shopflow/internal/jobstore"
	"shopflow/internal/ledger"
	"shopflow/internal/stages"
	"shopflow/internal/testsupport"
	"shopflow/internal/transition"
)

func TestCreateJobStartsAtInitialStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.SeedJob(t, store, "shop-1", "RO-1001", 12.5)
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.CurrentStage != stages.Intake {
		t.Fatalf("expected intake, got %s", job.CurrentStage)
	}
	if job.StageEnteredAt != nil {
		t.Fatalf("expected no stage entry time, got %v", job.StageEnteredAt)
	}
	if job.Version != 0 {
		t.Fatalf("expected version 0, got %d", job.Version)
	}
	if job.EstimatedHours != 12.5 {
		t.Fatalf("unexpected estimated hours: %v", job.EstimatedHours)
	}
}

func TestCreateJobValidatesInput(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	cases := []jobstore.NewJob{
		{Reference: "RO-1"},
		{ShopID: "shop-1"},
		{ShopID: "shop-1", Reference: "RO-1", EstimatedHours: -1},
	}
	for _, in := range cases {
		if _, err := store.CreateJob(ctx, in); err == nil {
			t.Fatalf("expected error for %#v", in)
		}
	}
	_, err := store.CreateJob(ctx, jobstore.NewJob{ShopID: "shop-1", Reference: "RO-1", TechnicianID: "ghost"})
	if !errors.Is(err, jobstore.ErrTechnicianNotFound) {
		t.Fatalf("expected ErrTechnicianNotFound, got %v", err)
	}
}

func TestReadJobUnknown(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := store.ReadJob(context.Background(), 999); !errors.Is(err, jobstore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCompleteRequirementIsSetLike(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "shop-1", "RO-1", 4)

	for i := 0; i < 2; i++ {
		if _, err := store.CompleteRequirement(ctx, job.ID, stages.RequirementPhotosTaken); err != nil {
			t.Fatalf("CompleteRequirement: %v", err)
		}
	}
	updated, err := store.CompleteRequirement(ctx, job.ID, stages.RequirementCustomerAuthorized)
	if err != nil {
		t.Fatalf("CompleteRequirement: %v", err)
	}
	want := []stages.Requirement{stages.RequirementCustomerAuthorized, stages.RequirementPhotosTaken}
	if diff := cmp.Diff(want, updated.CompletedRequirements.Sorted()); diff != "" {
		t.Fatalf("unexpected requirements (-want +got):\n%s", diff)
	}
	if _, err := store.CompleteRequirement(ctx, job.ID, stages.Requirement("coffee_made")); err == nil {
		t.Fatal("expected unknown requirement to be rejected")
	}
	if _, err := store.CompleteRequirement(ctx, 404, stages.RequirementPhotosTaken); !errors.Is(err, jobstore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func commitRecord(job *jobstore.Job, to stages.Code, at time.Time) ledger.Record {
	return ledger.Record{
		UUID:            "uuid-" + string(to) + at.Format("150405.000"),
		JobID:           job.ID,
		FromStage:       job.CurrentStage,
		ToStage:         to,
		Movement:        transition.MovementForward,
		Reason:          ledger.DefaultReason,
		TransitionTime:  at,
		DurationMinutes: ledger.DurationMinutes(job.StageEnteredAt, at),
	}
}

func TestCommitTransitionAdvancesJobAndAppendsLedger(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "shop-1", "RO-1", 4)

	at := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	rec, err := store.CommitTransition(ctx, commitRecord(job, stages.Estimate, at), job.Version)
	if err != nil {
		t.Fatalf("CommitTransition: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected ledger row id")
	}

	updated, err := store.ReadJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ReadJob: %v", err)
	}
	if updated.CurrentStage != stages.Estimate || updated.Version != 1 {
		t.Fatalf("unexpected job after commit: %#v", updated)
	}
	if updated.StageEnteredAt == nil || !updated.StageEnteredAt.Equal(at) {
		t.Fatalf("expected stage entered at %v, got %v", at, updated.StageEnteredAt)
	}

	second := commitRecord(updated, stages.PartsOrdered, at.Add(95*time.Minute))
	second.Notes = "parts on order"
	second.AuthorizedBy = "manager"
	if _, err := store.CommitTransition(ctx, second, updated.Version); err != nil {
		t.Fatalf("CommitTransition second: %v", err)
	}

	history, err := store.TransitionsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("TransitionsForJob: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(history))
	}
	if history[0].DurationMinutes != nil {
		t.Fatalf("expected null duration on first row, got %d", *history[0].DurationMinutes)
	}
	if history[1].DurationMinutes == nil || *history[1].DurationMinutes != 95 {
		t.Fatalf("expected 95 minutes, got %v", history[1].DurationMinutes)
	}
	if history[1].Notes != "parts on order" || history[1].AuthorizedBy != "manager" {
		t.Fatalf("unexpected second row: %#v", history[1])
	}
	if history[1].Movement != transition.MovementForward {
		t.Fatalf("unexpected movement: %s", history[1].Movement)
	}
}

func TestCommitTransitionStaleVersionConflicts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "shop-1", "RO-1", 4)
	at := time.Now().UTC()

	if _, err := store.CommitTransition(ctx, commitRecord(job, stages.Estimate, at), job.Version); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	_, err := store.CommitTransition(ctx, commitRecord(job, stages.Estimate, at.Add(time.Second)), job.Version)
	if !errors.Is(err, jobstore.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	count, err := store.CountTransitions(ctx)
	if err != nil {
		t.Fatalf("CountTransitions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one ledger row after conflict, got %d", count)
	}
}

func TestCommitTransitionUnknownJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ghost := &jobstore.Job{ID: 42, CurrentStage: stages.Intake}
	_, err := store.CommitTransition(context.Background(), commitRecord(ghost, stages.Estimate, time.Now()), 0)
	if !errors.Is(err, jobstore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestConcurrentCommitsExactlyOneWins(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "shop-1", "RO-1", 4)

	const racers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rec := commitRecord(job, stages.Estimate, time.Now().UTC())
			rec.UUID = rec.UUID + string(rune('a'+i))
			_, err := store.CommitTransition(ctx, rec, job.Version)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, jobstore.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes != 1 || conflicts != racers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", racers-1, successes, conflicts)
	}
	history, err := store.TransitionsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("TransitionsForJob: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(history))
	}
}

func TestLedgerRowsAreAppendOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	job := testsupport.SeedJob(t, store, "shop-1", "RO-1", 4)
	if _, err := store.CommitTransition(ctx, commitRecord(job, stages.Estimate, time.Now()), 0); err != nil {
		t.Fatalf("commit: %v", err)
	}

	db := testsupport.RawDB(t, cfg)
	if _, err := db.ExecContext(ctx, `UPDATE stage_transitions SET notes = 'edited'`); err == nil {
		t.Fatal("expected update on ledger to be rejected")
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM stage_transitions`); err == nil {
		t.Fatal("expected delete on ledger to be rejected")
	}
}

func TestTechnicianDirectory(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	tech, err := store.CreateTechnician(ctx, jobstore.Technician{
		ID:     "tech-a",
		ShopID: "shop-1",
		Name:   "Avery",
		Skills: []string{" Paint ", "frame", ""},
	})
	if err != nil {
		t.Fatalf("CreateTechnician: %v", err)
	}
	if diff := cmp.Diff([]string{"paint", "frame"}, tech.Skills); diff != "" {
		t.Fatalf("unexpected skills (-want +got):\n%s", diff)
	}
	testsupport.SeedTechnician(t, store, "shop-1", "tech-b")
	testsupport.SeedTechnician(t, store, "shop-2", "tech-c")

	techs, err := store.ListTechnicians(ctx, "shop-1")
	if err != nil {
		t.Fatalf("ListTechnicians: %v", err)
	}
	if len(techs) != 2 || techs[0].ID != "tech-a" || techs[1].ID != "tech-b" {
		t.Fatalf("unexpected technicians: %#v", techs)
	}

	open := testsupport.SeedJob(t, store, "shop-1", "RO-1", 10)
	other := testsupport.SeedJob(t, store, "shop-1", "RO-2", 6.5)
	done := testsupport.SeedJob(t, store, "shop-1", "RO-3", 30)
	for _, job := range []*jobstore.Job{open, other, done} {
		if _, err := store.AssignTechnician(ctx, job.ID, "tech-a"); err != nil {
			t.Fatalf("AssignTechnician: %v", err)
		}
	}
	moveTo(t, store, done.ID, stages.Delivered)

	hours, err := store.HoursFor(ctx, "tech-a")
	if err != nil {
		t.Fatalf("HoursFor: %v", err)
	}
	if hours != 16.5 {
		t.Fatalf("expected 16.5 open hours, got %v", hours)
	}
	if hours, err := store.HoursFor(ctx, "tech-b"); err != nil || hours != 0 {
		t.Fatalf("expected zero hours for idle technician, got %v (%v)", hours, err)
	}
	if _, err := store.HoursFor(ctx, "ghost"); !errors.Is(err, jobstore.ErrTechnicianNotFound) {
		t.Fatalf("expected ErrTechnicianNotFound, got %v", err)
	}
	if _, err := store.AssignTechnician(ctx, open.ID, "ghost"); !errors.Is(err, jobstore.ErrTechnicianNotFound) {
		t.Fatalf("expected ErrTechnicianNotFound, got %v", err)
	}
}

func TestListActiveJobsExcludesTerminal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.SeedJob(t, store, "shop-1", "RO-1", 1)
	b := testsupport.SeedJob(t, store, "shop-1", "RO-2", 1)
	testsupport.SeedJob(t, store, "shop-2", "RO-3", 1)
	moveTo(t, store, b.ID, stages.Delivered)

	active, err := store.ListActiveJobs(ctx, "shop-1")
	if err != nil {
		t.Fatalf("ListActiveJobs: %v", err)
	}
	if len(active) != 1 || active[0].ID != a.ID {
		t.Fatalf("unexpected active jobs: %#v", active)
	}
	all, err := store.ListJobs(ctx, "shop-1")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs in shop, got %d", len(all))
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobstore.Open(cfg, stages.DefaultRegistry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	job := testsupport.SeedJob(t, store, "shop-1", "RO-1", 2)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if _, err := reopened.ReadJob(context.Background(), job.ID); err != nil {
		t.Fatalf("ReadJob after reopen: %v", err)
	}
}

func TestOpenRejectsForeignSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobstore.Open(cfg, stages.DefaultRegistry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db := testsupport.RawDB(t, cfg)
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if _, err := jobstore.Open(cfg, stages.DefaultRegistry()); !errors.Is(err, jobstore.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func moveTo(t *testing.T, store *jobstore.Store, jobID int64, to stages.Code) {
	t.Helper()
	job, err := store.ReadJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("ReadJob: %v", err)
	}
	rec := commitRecord(job, to, time.Now().UTC())
	rec.Movement = transition.MovementSkip
	if _, err := store.CommitTransition(context.Background(), rec, job.Version); err != nil {
		t.Fatalf("CommitTransition: %v", err)
	}
}
