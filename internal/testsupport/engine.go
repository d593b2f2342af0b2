package testsupport

import (
	"testing"

	"shopflow/internal/config"
	"shopflow/internal/jobstore"
	"shopflow/internal/logging"
	"shopflow/internal/workflow"
)

// MustNewEngine builds a workflow engine over store with a silent logger and
// waits for pending notifications at cleanup.
func MustNewEngine(t testing.TB, cfg *config.Config, store *jobstore.Store, opts ...workflow.Option) *workflow.Engine {
	t.Helper()

	engine, err := workflow.NewEngine(cfg, store.Registry(), store, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("workflow.NewEngine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
