package jobstore

import (
	"time"

	"shopflow/internal/stages"
)

// Job is a vehicle repair order moving through the shop.
type Job struct {
	ID                    int64
	ShopID                string
	Reference             string
	CurrentStage          stages.Code
	StageEnteredAt        *time.Time
	CompletedRequirements stages.RequirementSet
	EstimatedHours        float64
	Priority              int
	TechnicianID          string
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TimeInStage returns how long the job has sat in its current stage, zero
// when it has never transitioned.
func (j *Job) TimeInStage(now time.Time) time.Duration {
	if j == nil || j.StageEnteredAt == nil {
		return 0
	}
	if d := now.Sub(*j.StageEnteredAt); d > 0 {
		return d
	}
	return 0
}

// NewJob carries the fields needed to open a job.
type NewJob struct {
	ShopID         string
	Reference      string
	EstimatedHours float64
	Priority       int
	TechnicianID   string
}

// Technician is a shop floor worker jobs can be assigned to.
type Technician struct {
	ID        string
	ShopID    string
	Name      string
	Skills    []string
	CreatedAt time.Time
}
