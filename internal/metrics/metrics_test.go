package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"shopflow/internal/metrics"
)

func TestRecordersUpdateCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)

	m.RecordTransition("forward", "estimate", false, 3*time.Millisecond)
	m.RecordTransition("skip", "disassembly", true, 5*time.Millisecond)
	m.RecordRejection("missing stage requirements")
	m.RecordConflict()
	m.RecordStageLoad("shop-1", "paint_booth", 2, 100)
	m.RecordNotification("stage_changed")

	count, err := testutil.GatherAndCount(reg, "shopflow_transitions_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two transition series, got %d", count)
	}

	expected := `
# HELP shopflow_transition_overrides_total Transitions that needed an override to pass validation
# TYPE shopflow_transition_overrides_total counter
shopflow_transition_overrides_total 1
# HELP shopflow_transition_conflicts_total Transition commits lost to a concurrent modification
# TYPE shopflow_transition_conflicts_total counter
shopflow_transition_conflicts_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"shopflow_transition_overrides_total", "shopflow_transition_conflicts_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	m := metrics.New()
	m.RecordStageLoad("shop-1", "intake", 3, 37.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `shopflow_stage_utilization_percent{shop="shop-1",stage="intake"} 37.5`) {
		t.Fatalf("expected utilization gauge in output:\n%s", body)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.RecordTransition("forward", "estimate", false, time.Millisecond)
	m.RecordRejection("x")
	m.RecordConflict()
	m.RecordStageLoad("s", "x", 1, 1)
	m.RecordNotification("x")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}
