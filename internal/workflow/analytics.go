package workflow

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"shopflow/internal/assignment"
	"shopflow/internal/logging"
	"shopflow/internal/notifications"
	"shopflow/internal/services"
	"shopflow/internal/stages"
	"shopflow/internal/workload"
)

// hoursLookupConcurrency bounds parallel HoursFor calls per request.
const hoursLookupConcurrency = 8

// GetWorkload reports per-stage load for the shop's active jobs. Reports are
// served from a short-lived snapshot cache when one is configured.
func (e *Engine) GetWorkload(ctx context.Context, shopID string) (workload.Report, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return workload.Report{}, services.Wrap(services.ErrStructural, component, "get workload", "shop id is required", nil)
	}
	if e.snapshots != nil {
		if cached, ok := e.snapshots.Get(shopID); ok {
			return cached.(workload.Report), nil
		}
	}

	jobs, err := e.store.ListActiveJobs(ctx, shopID)
	if err != nil {
		return workload.Report{}, storeError("list active jobs", err)
	}
	items := make([]workload.Item, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, workload.Item{
			JobID:          job.ID,
			Stage:          job.CurrentStage,
			StageEnteredAt: job.StageEnteredAt,
		})
	}
	report := e.analyzer.Analyze(shopID, items, e.now())

	// Gauges are labelled by shop only while the shop has active jobs; the
	// shop path segment is client input.
	if len(jobs) == 0 {
		codes := make([]string, len(report.Stages))
		for i, load := range report.Stages {
			codes[i] = string(load.Code)
		}
		e.metrics.ClearStageLoad(shopID, codes)
	} else {
		for _, load := range report.Stages {
			e.metrics.RecordStageLoad(shopID, string(load.Code), load.Count, load.Utilization)
		}
	}
	if report.Unplaced > 0 {
		logging.WarnWithContext(logging.WithContext(services.WithShopID(ctx, shopID), e.logger),
			"active jobs reference stages missing from the catalogue", "workload_unplaced_jobs",
			logging.Int("unplaced", report.Unplaced),
			logging.String(logging.FieldErrorHint, "check catalog.path against stages stored in the database"),
			logging.String(logging.FieldImpact, "those jobs are excluded from stage utilization"),
		)
	}
	e.trackBottlenecks(ctx, report)

	if e.snapshots != nil {
		e.snapshots.SetDefault(shopID, report)
	}
	return report, nil
}

func (e *Engine) invalidateSnapshot(shopID string) {
	if e.snapshots != nil {
		e.snapshots.Delete(shopID)
	}
}

// trackBottlenecks notifies when a stage becomes a bottleneck that was not
// one in the previous report for the shop.
func (e *Engine) trackBottlenecks(ctx context.Context, report workload.Report) {
	current := make(map[stages.Code]struct{}, len(report.Bottlenecks))
	for _, code := range report.Bottlenecks {
		current[code] = struct{}{}
	}

	e.bottleneckMu.Lock()
	previous := e.bottlenecks[report.ShopID]
	e.bottlenecks[report.ShopID] = current
	e.bottleneckMu.Unlock()

	var fresh []string
	for _, code := range report.Bottlenecks {
		if _, seen := previous[code]; !seen {
			fresh = append(fresh, e.stageName(code))
		}
	}
	if len(fresh) == 0 {
		return
	}
	sort.Strings(fresh)
	logging.WithContext(services.WithShopID(ctx, report.ShopID), e.logger).Info("bottleneck detected",
		logging.String("stages", strings.Join(fresh, ", ")),
		logging.String(logging.FieldEventType, "bottleneck_detected"),
	)
	e.publish(ctx, notifications.Event{
		Type:        notifications.EventBottleneckDetected,
		ShopID:      report.ShopID,
		Bottlenecks: fresh,
	})
}

// GetTechnicianAssignments projects every technician of the shop.
func (e *Engine) GetTechnicianAssignments(ctx context.Context, shopID string) ([]assignment.Projection, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, services.Wrap(services.ErrStructural, component, "get assignments", "shop id is required", nil)
	}
	techs, err := e.store.ListTechnicians(ctx, shopID)
	if err != nil {
		return nil, storeError("list technicians", err)
	}

	hours := make([]float64, len(techs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(hoursLookupConcurrency)
	for i, tech := range techs {
		group.Go(func() error {
			h, err := e.store.HoursFor(groupCtx, tech.ID)
			if err != nil {
				return err
			}
			hours[i] = h
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, storeError("technician hours", err)
	}

	planned := make([]assignment.Technician, len(techs))
	byTech := make(map[string]float64, len(techs))
	for i, tech := range techs {
		planned[i] = assignment.Technician{ID: tech.ID, Name: tech.Name, Skills: tech.Skills}
		byTech[tech.ID] = hours[i]
	}
	return e.planner.Plan(planned, byTech, e.now()), nil
}
