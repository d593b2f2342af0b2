// Package metrics exposes Prometheus instrumentation for the workflow engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopflow"

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	transitions      *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	conflicts        prometheus.Counter
	overrides        prometheus.Counter
	commitLatency    prometheus.Histogram
	stageUtilization *prometheus.GaugeVec
	stageCount       *prometheus.GaugeVec
	notifications    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: g,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed stage transitions by movement type and target stage",
		}, []string{"movement", "to_stage"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_rejections_total",
			Help:      "Transition requests rejected by validation, by reason",
		}, []string{"reason"}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_conflicts_total",
			Help:      "Transition commits lost to a concurrent modification",
		}),
		overrides: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_overrides_total",
			Help:      "Transitions that needed an override to pass validation",
		}),
		commitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_commit_seconds",
			Help:      "Time to commit a transition and its ledger record",
			Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		stageUtilization: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_utilization_percent",
			Help:      "Utilization of each stage at the last workload snapshot",
		}, []string{"shop", "stage"}),
		stageCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_jobs",
			Help:      "Active jobs in each stage at the last workload snapshot",
		}, []string{"shop", "stage"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification events handed to the dispatcher, by type",
		}, []string{"type"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordTransition counts a committed transition.
func (m *Metrics) RecordTransition(movement, toStage string, overrideUsed bool, commit time.Duration) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(movement, toStage).Inc()
	if overrideUsed {
		m.overrides.Inc()
	}
	m.commitLatency.Observe(commit.Seconds())
}

// RecordRejection counts a validation failure.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// RecordConflict counts a lost compare-and-swap.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// RecordStageLoad sets the per-stage gauges for a shop.
func (m *Metrics) RecordStageLoad(shop, stage string, count int, utilization float64) {
	if m == nil {
		return
	}
	m.stageCount.WithLabelValues(shop, stage).Set(float64(count))
	m.stageUtilization.WithLabelValues(shop, stage).Set(utilization)
}

// ClearStageLoad drops the per-stage gauges for a shop so shops without
// active jobs hold no series.
func (m *Metrics) ClearStageLoad(shop string, stages []string) {
	if m == nil {
		return
	}
	for _, stage := range stages {
		m.stageCount.DeleteLabelValues(shop, stage)
		m.stageUtilization.DeleteLabelValues(shop, stage)
	}
}

// RecordNotification counts an event handed off for delivery.
func (m *Metrics) RecordNotification(eventType string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(eventType).Inc()
}
