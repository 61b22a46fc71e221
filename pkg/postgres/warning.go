package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/study-scheduler/pkg/db"
)

// InsertWarning inserts a reconciliation warning
func (d *DB) InsertWarning(ctx context.Context, w *db.Warning) error {
	attempted := w.Attempted
	if attempted == nil {
		attempted = []string{}
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO reconciliation_warning
			(id, study_id, volunteer_id, appointment_id, group_id, operation, message, persisting, attempted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, w.ID, w.StudyID, w.VolunteerID, w.AppointmentID, w.GroupID, w.Operation, w.Message, w.Persisting, attempted, w.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert warning: %w", err)
	}
	return nil
}

// GetWarnings retrieves warnings oldest first
func (d *DB) GetWarnings(ctx context.Context, includeResolved bool) ([]db.Warning, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, study_id, volunteer_id, appointment_id, group_id, operation, message, persisting, attempted, created_at, resolved_at
		FROM reconciliation_warning
		WHERE $1 OR resolved_at IS NULL
		ORDER BY created_at, id
	`, includeResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()

	var warnings []db.Warning
	for rows.Next() {
		var w db.Warning
		if err := rows.Scan(&w.ID, &w.StudyID, &w.VolunteerID, &w.AppointmentID, &w.GroupID,
			&w.Operation, &w.Message, &w.Persisting, &w.Attempted, &w.CreatedAt, &w.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		warnings = append(warnings, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warnings: %w", err)
	}

	return warnings, nil
}

// ResolveWarning marks a warning as resolved
func (d *DB) ResolveWarning(ctx context.Context, id string, resolvedAt time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE reconciliation_warning SET resolved_at = $2 WHERE id = $1
	`, id, resolvedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to resolve warning %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to resolve warning %s: %w", id, db.ErrWarningNotFound)
	}
	return nil
}
