package workload

import (
	"time"

	"shopflow/internal/stages"
)

// DefaultBottleneckRatio is the share of capacity above which a stage is a
// bottleneck.
const DefaultBottleneckRatio = 0.8

// Item is the slice of a job the analyzer needs.
type Item struct {
	JobID          int64
	Stage          stages.Code
	StageEnteredAt *time.Time
}

// StageLoad describes one stage's occupancy.
type StageLoad struct {
	Code         stages.Code
	Name         string
	Count        int
	Capacity     int
	Utilization  float64
	IsBottleneck bool
	Overdue      int
}

// Report is the analyzer output for one shop.
type Report struct {
	ShopID             string
	GeneratedAt        time.Time
	Stages             []StageLoad
	PerStage           map[stages.Code]StageLoad
	Bottlenecks        []stages.Code
	TotalActive        int
	TotalCapacity      int
	OverallUtilization float64
	Overdue            int
	// Unplaced counts jobs whose stage code is not in the registry.
	Unplaced int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithBottleneckRatio overrides DefaultBottleneckRatio. Non-positive values
// are ignored.
func WithBottleneckRatio(ratio float64) Option {
	return func(a *Analyzer) {
		if ratio > 0 {
			a.ratio = ratio
		}
	}
}

// Analyzer computes workload reports against a stage registry.
type Analyzer struct {
	registry *stages.Registry
	ratio    float64
}

// NewAnalyzer builds an analyzer over reg.
func NewAnalyzer(reg *stages.Registry, opts ...Option) *Analyzer {
	a := &Analyzer{registry: reg, ratio: DefaultBottleneckRatio}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ratio returns the bottleneck ratio in effect.
func (a *Analyzer) Ratio() float64 {
	return a.ratio
}

// Analyze aggregates jobs into a report. now is used only for overdue
// detection.
func (a *Analyzer) Analyze(shopID string, jobs []Item, now time.Time) Report {
	ordered := a.registry.Ordered()
	counts := make(map[stages.Code]int, len(ordered))
	overdue := make(map[stages.Code]int, len(ordered))
	limits := make(map[stages.Code]time.Duration, len(ordered))
	for _, def := range ordered {
		limits[def.Code] = def.TimeLimit
	}

	report := Report{
		ShopID:      shopID,
		GeneratedAt: now,
		PerStage:    make(map[stages.Code]StageLoad, len(ordered)),
		TotalActive: len(jobs),
	}
	for _, job := range jobs {
		limit, known := limits[job.Stage]
		if !known {
			report.Unplaced++
			continue
		}
		counts[job.Stage]++
		if isOverdue(job, limit, now) {
			overdue[job.Stage]++
		}
	}

	for _, def := range ordered {
		load := StageLoad{
			Code:     def.Code,
			Name:     def.DisplayName(),
			Count:    counts[def.Code],
			Capacity: def.Capacity,
			Overdue:  overdue[def.Code],
		}
		load.Utilization = Percent(load.Count, load.Capacity)
		load.IsBottleneck = IsBottleneck(load.Count, load.Capacity, a.ratio)

		report.Stages = append(report.Stages, load)
		report.PerStage[def.Code] = load
		report.TotalCapacity += def.Capacity
		report.Overdue += load.Overdue
		if load.IsBottleneck {
			report.Bottlenecks = append(report.Bottlenecks, def.Code)
		}
	}
	report.OverallUtilization = Percent(report.TotalActive, report.TotalCapacity)
	return report
}

// Percent returns count/capacity*100, or 0 when capacity is not positive.
func Percent(count, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(count) / float64(capacity) * 100
}

// IsBottleneck reports count > capacity*ratio.
func IsBottleneck(count, capacity int, ratio float64) bool {
	return float64(count) > float64(capacity)*ratio
}

func isOverdue(job Item, limit time.Duration, now time.Time) bool {
	if limit <= 0 || job.StageEnteredAt == nil {
		return false
	}
	return now.Sub(*job.StageEnteredAt) > limit
}
