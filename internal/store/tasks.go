package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
)

// TaskParams holds the input for creating a task. The project is taken from
// the parent function.
type TaskParams struct {
	ID         domain.TaskID
	FunctionID domain.FunctionID
	Title      string
	Status     domain.Status
	StartDate  *time.Time
	Deadline   *time.Time
}

const taskColumns = `id, project_id, function_id, title, status, start_date, deadline, created_at`

func scanTask(sc interface{ Scan(...any) error }) (domain.Task, error) {
	var t domain.Task
	var start, deadline sql.NullString
	var created string
	if err := sc.Scan(&t.ID, &t.ProjectID, &t.FunctionID, &t.Title, &t.Status, &start, &deadline, &created); err != nil {
		return domain.Task{}, err
	}
	var err error
	if t.StartDate, err = scanNullableTime(start); err != nil {
		return domain.Task{}, fmt.Errorf("parsing start_date: %w", err)
	}
	if t.Deadline, err = scanNullableTime(deadline); err != nil {
		return domain.Task{}, fmt.Errorf("parsing deadline: %w", err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return domain.Task{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return t, nil
}

func queryTasks(ctx context.Context, q queryer, query string, args ...any) ([]domain.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTask inserts a task under an existing function and bumps the
// project's graph version. It returns the new version.
func (s *Store) CreateTask(ctx context.Context, params TaskParams) (domain.Task, int64, error) {
	if err := requireTitle(params.Title); err != nil {
		return domain.Task{}, 0, err
	}
	if params.Status == "" {
		return domain.Task{}, 0, domain.Invalid("task status is required")
	}
	parent, err := s.GetFunction(ctx, params.FunctionID)
	if err != nil {
		return domain.Task{}, 0, err
	}
	t := domain.Task{
		ID:         domain.TaskID(newID(string(params.ID))),
		ProjectID:  parent.ProjectID,
		FunctionID: parent.ID,
		Title:      params.Title,
		Status:     params.Status,
		StartDate:  params.StartDate,
		Deadline:   params.Deadline,
		CreatedAt:  timeNow().UTC(),
	}

	var version int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.execHook(ctx, tx,
			`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.ProjectID, t.FunctionID, t.Title, t.Status,
			nullableTime(t.StartDate), nullableTime(t.Deadline), formatTime(t.CreatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return domain.Invalid(fmt.Sprintf("task %q already exists", t.ID))
			}
			return fmt.Errorf("inserting task: %w", err)
		}
		v, err := s.bumpGraphVersion(ctx, tx, string(t.ProjectID), -1)
		version = v
		return err
	})
	if err != nil {
		return domain.Task{}, 0, err
	}
	return t, version, nil
}

// GetTask returns a task by ID.
func (s *Store) GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.NotFound(domain.KindTask, string(id))
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("querying task: %w", err)
	}
	return t, nil
}

// ListTasks returns every task of a project, oldest first.
func (s *Store) ListTasks(ctx context.Context, project domain.ProjectID) ([]domain.Task, error) {
	return queryTasks(ctx, s.db,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at, id`, project)
}

// ListFunctionTasks returns the tasks of one function, oldest first.
func (s *Store) ListFunctionTasks(ctx context.Context, function domain.FunctionID) ([]domain.Task, error) {
	return queryTasks(ctx, s.db,
		`SELECT `+taskColumns+` FROM tasks WHERE function_id = ? ORDER BY created_at, id`, function)
}

// SetTaskStatus writes a task's status and returns the previous one.
func (s *Store) SetTaskStatus(ctx context.Context, id domain.TaskID, status domain.Status) (domain.Status, error) {
	var old domain.Status
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&old)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(domain.KindTask, string(id))
		}
		if err != nil {
			return fmt.Errorf("querying task status: %w", err)
		}
		if _, err := s.execHook(ctx, tx, `UPDATE tasks SET status = ? WHERE id = ?`, status, id); err != nil {
			return fmt.Errorf("updating task status: %w", err)
		}
		return nil
	})
	return old, err
}

// DeleteTask removes a task together with every dependency edge that
// touches it, and bumps the project's graph version. It returns the removed
// task, the removed edges and the new version.
func (s *Store) DeleteTask(ctx context.Context, id domain.TaskID) (domain.Task, []domain.Edge, int64, error) {
	var (
		task    domain.Task
		removed []domain.Edge
		version int64
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(domain.KindTask, string(id))
		}
		if err != nil {
			return fmt.Errorf("querying task: %w", err)
		}
		task = t

		removed, err = queryEdges(ctx, tx,
			`SELECT `+edgeColumns+` FROM task_dependencies WHERE from_task = ? OR to_task = ? ORDER BY id`, id, id)
		if err != nil {
			return err
		}
		if _, err := s.execHook(ctx, tx, `DELETE FROM task_dependencies WHERE from_task = ? OR to_task = ?`, id, id); err != nil {
			return fmt.Errorf("deleting task dependencies: %w", err)
		}
		if _, err := s.execHook(ctx, tx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		version, err = s.bumpGraphVersion(ctx, tx, string(task.ProjectID), -1)
		return err
	})
	if err != nil {
		return domain.Task{}, nil, 0, err
	}
	return task, removed, version, nil
}

// ShiftTaskDates moves a task's start date and deadline by days. Unset
// dates stay unset.
func (s *Store) ShiftTaskDates(ctx context.Context, id domain.TaskID, days int) (domain.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	t.StartDate = shiftDate(t.StartDate, days)
	t.Deadline = shiftDate(t.Deadline, days)
	if _, err := s.execHook(ctx, s.db,
		`UPDATE tasks SET start_date = ?, deadline = ? WHERE id = ?`,
		nullableTime(t.StartDate), nullableTime(t.Deadline), id,
	); err != nil {
		return domain.Task{}, fmt.Errorf("shifting task dates: %w", err)
	}
	return t, nil
}
