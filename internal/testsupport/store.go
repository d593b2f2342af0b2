package testsupport

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"shopflow/internal/config"
	"shopflow/internal/jobstore"
	"shopflow/internal/stages"
)

// MustOpenStore opens a jobstore.Store over the default stage catalogue and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()
	return MustOpenStoreWithRegistry(t, cfg, stages.DefaultRegistry())
}

// MustOpenStoreWithRegistry opens a jobstore.Store over reg.
func MustOpenStoreWithRegistry(t testing.TB, cfg *config.Config, reg *stages.Registry) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg, reg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedJob creates a job in shopID with the given estimated hours.
func SeedJob(t testing.TB, store *jobstore.Store, shopID, reference string, hours float64) *jobstore.Job {
	t.Helper()

	job, err := store.CreateJob(context.Background(), jobstore.NewJob{
		ShopID:         shopID,
		Reference:      reference,
		EstimatedHours: hours,
	})
	if err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}

// SeedTechnician registers a technician in shopID.
func SeedTechnician(t testing.TB, store *jobstore.Store, shopID, id string) *jobstore.Technician {
	t.Helper()

	tech, err := store.CreateTechnician(context.Background(), jobstore.Technician{
		ID:     id,
		ShopID: shopID,
		Name:   id,
	})
	if err != nil {
		t.Fatalf("store.CreateTechnician: %v", err)
	}
	return tech
}

// CompleteAll marks every requirement of the job's current stage satisfied.
func CompleteAll(t testing.TB, store *jobstore.Store, jobID int64) *jobstore.Job {
	t.Helper()

	ctx := context.Background()
	job, err := store.ReadJob(ctx, jobID)
	if err != nil {
		t.Fatalf("store.ReadJob: %v", err)
	}
	def, err := store.Registry().Get(job.CurrentStage)
	if err != nil {
		t.Fatalf("registry.Get: %v", err)
	}
	for _, req := range def.Requirements.Sorted() {
		if job, err = store.CompleteRequirement(ctx, jobID, req); err != nil {
			t.Fatalf("store.CompleteRequirement: %v", err)
		}
	}
	return job
}

// RawDB opens a second handle on the config's job database for assertions
// that bypass the store API.
func RawDB(t testing.TB, cfg *config.Config) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
