package jobstore

import (
	"context"
	"fmt"

	"shopflow/internal/ledger"
)

// CommitTransition moves the job to rec.ToStage and appends rec to the
// ledger in one transaction. The update only applies while the job still has
// expectedVersion and rec.FromStage; otherwise nothing is written and
// ErrConflict is returned.
func (s *Store) CommitTransition(ctx context.Context, rec ledger.Record, expectedVersion int64) (ledger.Record, error) {
	ctx = ensureContext(ctx)
	var committed ledger.Record
	err := retryOnBusy(ctx, func() error {
		var err error
		committed, err = s.commitTransition(ctx, rec, expectedVersion)
		return err
	})
	if err != nil {
		return ledger.Record{}, err
	}
	return committed, nil
}

func (s *Store) commitTransition(ctx context.Context, rec ledger.Record, expectedVersion int64) (ledger.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	at := formatTime(rec.TransitionTime)
	res, err := tx.ExecContext(
		ctx,
		`UPDATE jobs
            SET current_stage = ?, stage_entered_at = ?, version = version + 1, updated_at = ?
          WHERE id = ? AND version = ? AND current_stage = ?`,
		string(rec.ToStage),
		at,
		at,
		rec.JobID,
		expectedVersion,
		string(rec.FromStage),
	)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("advance job stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ledger.Record{}, fmt.Errorf("advance job stage: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, rec.JobID).Scan(&exists); err != nil {
			return ledger.Record{}, fmt.Errorf("check job: %w", err)
		}
		if exists == 0 {
			return ledger.Record{}, fmt.Errorf("%w: %d", ErrJobNotFound, rec.JobID)
		}
		return ledger.Record{}, fmt.Errorf("%w: job %d no longer at version %d in stage %s",
			ErrConflict, rec.JobID, expectedVersion, rec.FromStage)
	}

	res, err = tx.ExecContext(
		ctx,
		`INSERT INTO stage_transitions (
            uuid, job_id, from_stage, to_stage, movement_type, movement_reason,
            transition_time, duration_minutes, technician_id, authorized_by, notes
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UUID,
		rec.JobID,
		string(rec.FromStage),
		string(rec.ToStage),
		string(rec.Movement),
		rec.Reason,
		at,
		nullableInt64(rec.DurationMinutes),
		nullableString(rec.TechnicianID),
		nullableString(rec.AuthorizedBy),
		nullableString(rec.Notes),
	)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("append transition: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Record{}, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ledger.Record{}, fmt.Errorf("commit transition: %w", err)
	}
	rec.ID = id
	return rec, nil
}

// TransitionsForJob returns the job's ledger rows in commit order.
func (s *Store) TransitionsForJob(ctx context.Context, jobID int64) ([]ledger.Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+transitionColumns+` FROM stage_transitions WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountTransitions returns the total number of ledger rows.
func (s *Store) CountTransitions(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM stage_transitions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transitions: %w", err)
	}
	return count, nil
}

var _ ledger.Store = (*Store)(nil)
