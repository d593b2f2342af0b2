package jobstore

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"shopflow/internal/ledger"
	"shopflow/internal/stages"
	"shopflow/internal/transition"
)

const jobColumns = "id, shop_id, reference, current_stage, stage_entered_at, estimated_hours, priority, technician_id, version, created_at, updated_at"

const technicianColumns = "id, shop_id, name, skills, created_at"

const transitionColumns = "id, uuid, job_id, from_stage, to_stage, movement_type, movement_reason, transition_time, duration_minutes, technician_id, authorized_by, notes"

type scanner interface{ Scan(dest ...any) error }

func scanJob(row scanner) (*Job, error) {
	var (
		id           int64
		shopID       string
		reference    string
		stage        string
		enteredRaw   sql.NullString
		hours        sql.NullFloat64
		priority     sql.NullInt64
		technicianID sql.NullString
		version      int64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := row.Scan(
		&id,
		&shopID,
		&reference,
		&stage,
		&enteredRaw,
		&hours,
		&priority,
		&technicianID,
		&version,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                    id,
		ShopID:                shopID,
		Reference:             reference,
		CurrentStage:          stages.Code(stage),
		CompletedRequirements: stages.NewRequirementSet(),
		EstimatedHours:        hours.Float64,
		Priority:              int(priority.Int64),
		TechnicianID:          technicianID.String,
		Version:               version,
	}
	if enteredRaw.Valid {
		if entered, err := parseTimeString(enteredRaw.String); err == nil {
			job.StageEnteredAt = &entered
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func scanTechnician(row scanner) (*Technician, error) {
	var (
		tech       Technician
		skills     sql.NullString
		createdRaw sql.NullString
	)
	if err := row.Scan(&tech.ID, &tech.ShopID, &tech.Name, &skills, &createdRaw); err != nil {
		return nil, err
	}
	tech.Skills = splitSkills(skills.String)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		tech.CreatedAt = created
	}
	return &tech, nil
}

func scanRecord(row scanner) (ledger.Record, error) {
	var (
		rec          ledger.Record
		fromStage    string
		toStage      string
		movement     string
		atRaw        string
		duration     sql.NullInt64
		technicianID sql.NullString
		authorizedBy sql.NullString
		notes        sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UUID,
		&rec.JobID,
		&fromStage,
		&toStage,
		&movement,
		&rec.Reason,
		&atRaw,
		&duration,
		&technicianID,
		&authorizedBy,
		&notes,
	); err != nil {
		return ledger.Record{}, err
	}
	rec.FromStage = stages.Code(fromStage)
	rec.ToStage = stages.Code(toStage)
	rec.Movement = transition.Movement(movement)
	at, err := parseTimeString(atRaw)
	if err != nil {
		return ledger.Record{}, err
	}
	rec.TransitionTime = at
	if duration.Valid {
		minutes := duration.Int64
		rec.DurationMinutes = &minutes
	}
	rec.TechnicianID = technicianID.String
	rec.AuthorizedBy = authorizedBy.String
	rec.Notes = notes.String
	return rec, nil
}

func splitSkills(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if skill := strings.TrimSpace(part); skill != "" {
			out = append(out, skill)
		}
	}
	return out
}

func joinSkills(skills []string) string {
	cleaned := make([]string, 0, len(skills))
	for _, skill := range skills {
		if s := strings.ToLower(strings.TrimSpace(skill)); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return strings.Join(cleaned, ",")
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
