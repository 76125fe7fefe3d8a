package store

import (
	"context"
	"fmt"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
)

// DefaultActivityLimit caps ListActivity when no limit is given.
const DefaultActivityLimit = 50

// RecordActivity appends one audit record.
func (s *Store) RecordActivity(ctx context.Context, a domain.Activity) error {
	at := a.CreatedAt
	if at.IsZero() {
		at = timeNow()
	}
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO activity_logs (project_id, entity_kind, entity_id, action, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ProjectID, a.Entity.Kind, a.Entity.ID, a.Action, a.Detail, formatTime(at),
	); err != nil {
		return fmt.Errorf("inserting activity: %w", err)
	}
	return nil
}

// ListActivity returns a project's most recent audit records, newest first.
func (s *Store) ListActivity(ctx context.Context, project domain.ProjectID, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, entity_kind, entity_id, action, detail, created_at
		FROM activity_logs
		WHERE project_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var created string
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Entity.Kind, &a.Entity.ID, &a.Action, &a.Detail, &created); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing activity created_at: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
