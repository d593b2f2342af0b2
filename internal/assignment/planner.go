// Package assignment projects technician utilization and availability from
// the estimated hours of their open jobs.
package assignment

import (
	"errors"
	"math"
	"time"
)

// Settings holds the reference hours used in projections.
type Settings struct {
	// ReferenceWeekHours is the hours in a full week; utilization is measured
	// against it and hours beyond it push out the next available date.
	ReferenceWeekHours float64
	// WorkdayHours converts overflow hours into days.
	WorkdayHours float64
	// AvailabilityThresholdHours is the load under which a technician can
	// take more work.
	AvailabilityThresholdHours float64
}

// DefaultSettings returns a 40 hour week, 8 hour day, and 35 hour
// availability threshold.
func DefaultSettings() Settings {
	return Settings{
		ReferenceWeekHours:         40,
		WorkdayHours:               8,
		AvailabilityThresholdHours: 35,
	}
}

// Validate reports settings the planner cannot divide by.
func (s Settings) Validate() error {
	if s.ReferenceWeekHours <= 0 {
		return errors.New("reference week hours must be positive")
	}
	if s.WorkdayHours <= 0 {
		return errors.New("workday hours must be positive")
	}
	return nil
}

// Technician identifies a technician being planned.
type Technician struct {
	ID     string
	Name   string
	Skills []string
}

// Projection is one technician's planned load.
type Projection struct {
	TechnicianID      string
	Name              string
	Skills            []string
	AssignedHours     float64
	Utilization       float64
	IsAvailable       bool
	NextAvailableDate time.Time
}

// Planner computes projections with fixed settings.
type Planner struct {
	settings Settings
}

// NewPlanner validates settings and returns a planner.
func NewPlanner(settings Settings) (*Planner, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Planner{settings: settings}, nil
}

// Settings returns the planner's reference hours.
func (p *Planner) Settings() Settings {
	return p.settings
}

// Plan projects every technician in input order. Technicians missing from
// hoursByTechnician have no assigned hours. today is truncated to midnight in
// its own location.
func (p *Planner) Plan(technicians []Technician, hoursByTechnician map[string]float64, today time.Time) []Projection {
	day := midnight(today)
	out := make([]Projection, 0, len(technicians))
	for _, tech := range technicians {
		hours := hoursByTechnician[tech.ID]
		if hours < 0 {
			hours = 0
		}
		out = append(out, Projection{
			TechnicianID:      tech.ID,
			Name:              tech.Name,
			Skills:            tech.Skills,
			AssignedHours:     hours,
			Utilization:       hours / p.settings.ReferenceWeekHours * 100,
			IsAvailable:       hours < p.settings.AvailabilityThresholdHours,
			NextAvailableDate: day.AddDate(0, 0, p.daysUntilFree(hours)),
		})
	}
	return out
}

// daysUntilFree is ceil(max(0, hours-week)/workday).
func (p *Planner) daysUntilFree(hours float64) int {
	overflow := math.Max(0, hours-p.settings.ReferenceWeekHours)
	return int(math.Ceil(overflow / p.settings.WorkdayHours))
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
