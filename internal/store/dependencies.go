package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
)

// GraphSnapshot is a consistent read of one project's task set, edge set and
// graph version.
type GraphSnapshot struct {
	Nodes   []domain.TaskID
	Edges   []domain.Edge
	Version int64
}

const edgeColumns = `id, project_id, from_task, to_task, created_at`

func queryEdges(ctx context.Context, q queryer, query string, args ...any) ([]domain.Edge, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dependencies: %w", err)
	}
	defer rows.Close()

	var out []domain.Edge
	for rows.Next() {
		var e domain.Edge
		var created string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.From, &e.To, &created); err != nil {
			return nil, fmt.Errorf("scanning dependency: %w", err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing dependency created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GraphVersion returns a project's current graph version.
func (s *Store) GraphVersion(ctx context.Context, project domain.ProjectID) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT graph_version FROM projects WHERE id = ?`, project).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFound(domain.KindProject, string(project))
	}
	if err != nil {
		return 0, fmt.Errorf("querying graph version: %w", err)
	}
	return v, nil
}

// LoadGraph reads a project's tasks, edges and graph version in one
// transaction.
func (s *Store) LoadGraph(ctx context.Context, project domain.ProjectID) (GraphSnapshot, error) {
	var snap GraphSnapshot
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT graph_version FROM projects WHERE id = ?`, project).Scan(&snap.Version)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(domain.KindProject, string(project))
		}
		if err != nil {
			return fmt.Errorf("querying graph version: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE project_id = ? ORDER BY id`, project)
		if err != nil {
			return fmt.Errorf("querying task ids: %w", err)
		}
		for rows.Next() {
			var id domain.TaskID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scanning task id: %w", err)
			}
			snap.Nodes = append(snap.Nodes, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		snap.Edges, err = queryEdges(ctx, tx,
			`SELECT `+edgeColumns+` FROM task_dependencies WHERE project_id = ? ORDER BY id`, project)
		return err
	})
	return snap, err
}

// ListDependencies returns every edge of a project ordered by ID.
func (s *Store) ListDependencies(ctx context.Context, project domain.ProjectID) ([]domain.Edge, error) {
	return queryEdges(ctx, s.db,
		`SELECT `+edgeColumns+` FROM task_dependencies WHERE project_id = ? ORDER BY id`, project)
}

// InsertDependency persists an edge if the project's graph version still
// equals expected, and returns the new version. A moved version yields a
// ConcurrentModificationConflict; a duplicate pair or a self-loop yields
// InvalidEdge.
func (s *Store) InsertDependency(ctx context.Context, e domain.Edge, expected int64) (int64, error) {
	var version int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		v, err := s.bumpGraphVersion(ctx, tx, string(e.ProjectID), expected)
		if errors.Is(err, errVersionMismatch) {
			return domain.Conflict(e.ProjectID, err)
		}
		if err != nil {
			return err
		}
		version = v

		if _, err := s.execHook(ctx, tx,
			`INSERT INTO task_dependencies (`+edgeColumns+`) VALUES (?, ?, ?, ?, ?)`,
			e.ID, e.ProjectID, e.From, e.To, formatTime(e.CreatedAt),
		); err != nil {
			switch {
			case isUniqueViolation(err):
				return domain.InvalidEdge("dependency %s → %s already exists", e.From, e.To)
			case isConstraintViolation(err):
				return domain.InvalidEdge("dependency %s → %s rejected: %v", e.From, e.To, err)
			}
			return fmt.Errorf("inserting dependency: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// DeleteDependency removes an edge of project if the graph version still
// equals expected, and returns the new version.
func (s *Store) DeleteDependency(ctx context.Context, project domain.ProjectID, id domain.EdgeID, expected int64) (int64, error) {
	var version int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		v, err := s.bumpGraphVersion(ctx, tx, string(project), expected)
		if errors.Is(err, errVersionMismatch) {
			return domain.Conflict(project, err)
		}
		if err != nil {
			return err
		}
		version = v

		res, err := s.execHook(ctx, tx,
			`DELETE FROM task_dependencies WHERE id = ? AND project_id = ?`, id, project)
		if err != nil {
			return fmt.Errorf("deleting dependency: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.NotFound(domain.KindDependency, string(id))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}
