package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateTechnician registers a technician for a shop.
func (s *Store) CreateTechnician(ctx context.Context, tech Technician) (*Technician, error) {
	tech.ID = strings.TrimSpace(tech.ID)
	tech.ShopID = strings.TrimSpace(tech.ShopID)
	tech.Name = strings.TrimSpace(tech.Name)
	if tech.ID == "" || tech.ShopID == "" {
		return nil, errors.New("create technician: id and shop id required")
	}
	if tech.Name == "" {
		tech.Name = tech.ID
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO technicians (id, shop_id, name, skills, created_at) VALUES (?, ?, ?, ?, ?)`,
		tech.ID,
		tech.ShopID,
		tech.Name,
		nullableString(joinSkills(tech.Skills)),
		formatTime(s.now()),
	); err != nil {
		return nil, fmt.Errorf("insert technician: %w", err)
	}
	return s.getTechnician(ctx, tech.ID)
}

func (s *Store) getTechnician(ctx context.Context, id string) (*Technician, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+technicianColumns+` FROM technicians WHERE id = ?`, id)
	tech, err := scanTechnician(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTechnicianNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get technician: %w", err)
	}
	return tech, nil
}

// ListTechnicians returns the shop's technicians ordered by id.
func (s *Store) ListTechnicians(ctx context.Context, shopID string) ([]Technician, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+technicianColumns+` FROM technicians WHERE shop_id = ? ORDER BY id`, shopID)
	if err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	defer rows.Close()

	var out []Technician
	for rows.Next() {
		tech, err := scanTechnician(rows)
		if err != nil {
			return nil, fmt.Errorf("scan technician: %w", err)
		}
		out = append(out, *tech)
	}
	return out, rows.Err()
}

// HoursFor sums the estimated hours of the technician's open jobs.
func (s *Store) HoursFor(ctx context.Context, technicianID string) (float64, error) {
	if _, err := s.getTechnician(ctx, technicianID); err != nil {
		return 0, err
	}
	terminal := s.terminalCodes()
	args := append([]any{technicianID}, terminal...)
	query := `SELECT COALESCE(SUM(estimated_hours), 0) FROM jobs WHERE technician_id = ?`
	if len(terminal) > 0 {
		query += ` AND current_stage NOT IN (` + makePlaceholders(len(terminal)) + `)`
	}
	var hours float64
	if err := s.db.QueryRowContext(ensureContext(ctx), query, args...).Scan(&hours); err != nil {
		return 0, fmt.Errorf("hours for technician: %w", err)
	}
	return hours, nil
}
