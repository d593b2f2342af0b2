package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shopflow/internal/stages"
)

// CreateJob opens a job in the registry's initial stage. The stage entry time
// stays empty until the first transition.
func (s *Store) CreateJob(ctx context.Context, in NewJob) (*Job, error) {
	shopID := strings.TrimSpace(in.ShopID)
	if shopID == "" {
		return nil, errors.New("create job: shop id required")
	}
	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		return nil, errors.New("create job: reference required")
	}
	if in.EstimatedHours < 0 {
		return nil, errors.New("create job: estimated hours must not be negative")
	}
	technicianID := strings.TrimSpace(in.TechnicianID)
	if technicianID != "" {
		if _, err := s.getTechnician(ctx, technicianID); err != nil {
			return nil, fmt.Errorf("create job: %w", err)
		}
	}

	timestamp := formatTime(s.now())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            shop_id, reference, current_stage, stage_entered_at,
            estimated_hours, priority, technician_id, version, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		shopID,
		reference,
		string(s.registry.Initial().Code),
		nil,
		in.EstimatedHours,
		in.Priority,
		nullableString(technicianID),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.ReadJob(ctx, id)
}

// ReadJob fetches a job with its completed requirements. It returns
// ErrJobNotFound for unknown ids.
func (s *Store) ReadJob(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	if err := s.attachRequirements(ctx, []*Job{job}); err != nil {
		return nil, err
	}
	return job, nil
}

// ListActiveJobs returns the shop's jobs that are not in a terminal stage,
// highest priority first.
func (s *Store) ListActiveJobs(ctx context.Context, shopID string) ([]*Job, error) {
	terminal := s.terminalCodes()
	args := append([]any{shopID}, terminal...)
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE shop_id = ?`
	if len(terminal) > 0 {
		query += ` AND current_stage NOT IN (` + makePlaceholders(len(terminal)) + `)`
	}
	query += ` ORDER BY priority DESC, id`
	return s.queryJobs(ctx, query, args...)
}

// ListJobs returns every job of the shop, including delivered ones.
func (s *Store) ListJobs(ctx context.Context, shopID string) ([]*Job, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE shop_id = ? ORDER BY priority DESC, id`, shopID)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachRequirements(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) attachRequirements(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	byID := make(map[int64]*Job, len(jobs))
	args := make([]any, 0, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
		args = append(args, job.ID)
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, requirement FROM job_requirements WHERE job_id IN (`+makePlaceholders(len(args))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("load requirements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			jobID int64
			raw   string
		)
		if err := rows.Scan(&jobID, &raw); err != nil {
			return fmt.Errorf("scan requirement: %w", err)
		}
		req, err := stages.ParseRequirement(raw)
		if err != nil {
			continue
		}
		if job := byID[jobID]; job != nil {
			job.CompletedRequirements[req] = struct{}{}
		}
	}
	return rows.Err()
}

// CompleteRequirement marks a precondition tag satisfied for the job.
// Completing an already satisfied tag is a no-op.
func (s *Store) CompleteRequirement(ctx context.Context, jobID int64, req stages.Requirement) (*Job, error) {
	if _, err := stages.ParseRequirement(string(req)); err != nil {
		return nil, err
	}
	if _, err := s.ReadJob(ctx, jobID); err != nil {
		return nil, err
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT OR IGNORE INTO job_requirements (job_id, requirement, completed_at) VALUES (?, ?, ?)`,
		jobID,
		string(req),
		formatTime(s.now()),
	); err != nil {
		return nil, fmt.Errorf("complete requirement: %w", err)
	}
	return s.ReadJob(ctx, jobID)
}

// AssignTechnician sets or clears (empty id) the job's technician. It does
// not change the stage version.
func (s *Store) AssignTechnician(ctx context.Context, jobID int64, technicianID string) (*Job, error) {
	technicianID = strings.TrimSpace(technicianID)
	if technicianID != "" {
		if _, err := s.getTechnician(ctx, technicianID); err != nil {
			return nil, err
		}
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET technician_id = ?, updated_at = ? WHERE id = ?`,
		nullableString(technicianID),
		formatTime(s.now()),
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("assign technician: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}
	return s.ReadJob(ctx, jobID)
}
