package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
)

// ─── Parameters ──────────────────────────────────────────────────────────────

// MilestoneParams holds the input for creating a milestone. An empty ID is
// replaced by a generated one.
type MilestoneParams struct {
	ID        domain.MilestoneID
	ProjectID domain.ProjectID
	Title     string
	StartDate *time.Time
	Deadline  *time.Time
}

// FeatureParams holds the input for creating a feature.
type FeatureParams struct {
	ID        domain.FeatureID
	ProjectID domain.ProjectID
	Title     string
	Status    domain.Status
}

// FunctionParams holds the input for creating a function. The project is
// taken from the parent feature.
type FunctionParams struct {
	ID        domain.FunctionID
	FeatureID domain.FeatureID
	Title     string
	Status    domain.Status
}

func requireTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return domain.Invalid("title is required")
	}
	return nil
}

// ─── Projects ────────────────────────────────────────────────────────────────

// CreateProject inserts a project and returns it.
func (s *Store) CreateProject(ctx context.Context, id domain.ProjectID, name string) (domain.Project, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Project{}, domain.Invalid("project name is required")
	}
	p := domain.Project{
		ID:        domain.ProjectID(newID(string(id))),
		Name:      name,
		CreatedAt: timeNow().UTC(),
	}
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO projects (id, name, graph_version, created_at) VALUES (?, ?, 0, ?)`,
		p.ID, p.Name, formatTime(p.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return domain.Project{}, domain.Invalid(fmt.Sprintf("project %q already exists", p.ID))
		}
		return domain.Project{}, fmt.Errorf("inserting project: %w", err)
	}
	return p, nil
}

// GetProject returns a project by ID.
func (s *Store) GetProject(ctx context.Context, id domain.ProjectID) (domain.Project, error) {
	var p domain.Project
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, graph_version, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.GraphVersion, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, domain.NotFound(domain.KindProject, string(id))
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("querying project: %w", err)
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.Project{}, fmt.Errorf("parsing project created_at: %w", err)
	}
	return p, nil
}

// ─── Milestones ──────────────────────────────────────────────────────────────

// CreateMilestone inserts a milestone with zero progress.
func (s *Store) CreateMilestone(ctx context.Context, params MilestoneParams) (domain.Milestone, error) {
	if err := requireTitle(params.Title); err != nil {
		return domain.Milestone{}, err
	}
	if _, err := s.GetProject(ctx, params.ProjectID); err != nil {
		return domain.Milestone{}, err
	}
	m := domain.Milestone{
		ID:        domain.MilestoneID(newID(string(params.ID))),
		ProjectID: params.ProjectID,
		Title:     params.Title,
		StartDate: params.StartDate,
		Deadline:  params.Deadline,
		CreatedAt: timeNow().UTC(),
	}
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO milestones (id, project_id, title, start_date, deadline, progress, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		m.ID, m.ProjectID, m.Title, nullableTime(m.StartDate), nullableTime(m.Deadline), formatTime(m.CreatedAt),
	); err != nil {
		return domain.Milestone{}, fmt.Errorf("inserting milestone: %w", err)
	}
	return m, nil
}

const milestoneColumns = `id, project_id, title, start_date, deadline, progress, created_at`

func scanMilestone(sc interface{ Scan(...any) error }) (domain.Milestone, error) {
	var m domain.Milestone
	var start, deadline sql.NullString
	var created string
	if err := sc.Scan(&m.ID, &m.ProjectID, &m.Title, &start, &deadline, &m.Percentage, &created); err != nil {
		return domain.Milestone{}, err
	}
	var err error
	if m.StartDate, err = scanNullableTime(start); err != nil {
		return domain.Milestone{}, fmt.Errorf("parsing start_date: %w", err)
	}
	if m.Deadline, err = scanNullableTime(deadline); err != nil {
		return domain.Milestone{}, fmt.Errorf("parsing deadline: %w", err)
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return domain.Milestone{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return m, nil
}

// GetMilestone returns a milestone by ID.
func (s *Store) GetMilestone(ctx context.Context, id domain.MilestoneID) (domain.Milestone, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id)
	m, err := scanMilestone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Milestone{}, domain.NotFound(domain.KindMilestone, string(id))
	}
	if err != nil {
		return domain.Milestone{}, fmt.Errorf("querying milestone: %w", err)
	}
	return m, nil
}

// ListMilestones returns every milestone of a project, oldest first.
func (s *Store) ListMilestones(ctx context.Context, project domain.ProjectID) ([]domain.Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE project_id = ? ORDER BY created_at, id`, project)
	if err != nil {
		return nil, fmt.Errorf("querying milestones: %w", err)
	}
	defer rows.Close()

	var out []domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning milestone: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetMilestoneProgress writes back a milestone's derived percentage.
func (s *Store) SetMilestoneProgress(ctx context.Context, id domain.MilestoneID, pct int) error {
	res, err := s.execHook(ctx, s.db, `UPDATE milestones SET progress = ? WHERE id = ?`, pct, id)
	if err != nil {
		return fmt.Errorf("updating milestone progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound(domain.KindMilestone, string(id))
	}
	return nil
}

// DeleteMilestone removes a milestone and its feature links, returning the
// features that were linked to it.
func (s *Store) DeleteMilestone(ctx context.Context, id domain.MilestoneID) (domain.Milestone, []domain.FeatureID, error) {
	m, err := s.GetMilestone(ctx, id)
	if err != nil {
		return domain.Milestone{}, nil, err
	}
	features, err := s.milestoneFeatureIDs(ctx, id)
	if err != nil {
		return domain.Milestone{}, nil, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.execHook(ctx, tx, `DELETE FROM milestone_features WHERE milestone_id = ?`, id); err != nil {
			return fmt.Errorf("deleting milestone links: %w", err)
		}
		if _, err := s.execHook(ctx, tx, `DELETE FROM milestones WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting milestone: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Milestone{}, nil, err
	}
	return m, features, nil
}

// ShiftMilestoneDates moves a milestone's start date and deadline by days.
// Unset dates stay unset.
func (s *Store) ShiftMilestoneDates(ctx context.Context, id domain.MilestoneID, days int) (domain.Milestone, error) {
	m, err := s.GetMilestone(ctx, id)
	if err != nil {
		return domain.Milestone{}, err
	}
	m.StartDate = shiftDate(m.StartDate, days)
	m.Deadline = shiftDate(m.Deadline, days)
	if _, err := s.execHook(ctx, s.db,
		`UPDATE milestones SET start_date = ?, deadline = ? WHERE id = ?`,
		nullableTime(m.StartDate), nullableTime(m.Deadline), id,
	); err != nil {
		return domain.Milestone{}, fmt.Errorf("shifting milestone dates: %w", err)
	}
	return m, nil
}

func shiftDate(t *time.Time, days int) *time.Time {
	if t == nil {
		return nil
	}
	shifted := t.AddDate(0, 0, days)
	return &shifted
}

// ─── Features ────────────────────────────────────────────────────────────────

// CreateFeature inserts a feature.
func (s *Store) CreateFeature(ctx context.Context, params FeatureParams) (domain.Feature, error) {
	if err := requireTitle(params.Title); err != nil {
		return domain.Feature{}, err
	}
	if params.Status == "" {
		return domain.Feature{}, domain.Invalid("feature status is required")
	}
	if _, err := s.GetProject(ctx, params.ProjectID); err != nil {
		return domain.Feature{}, err
	}
	f := domain.Feature{
		ID:        domain.FeatureID(newID(string(params.ID))),
		ProjectID: params.ProjectID,
		Title:     params.Title,
		Status:    params.Status,
		CreatedAt: timeNow().UTC(),
	}
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO features (id, project_id, title, status, progress, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		f.ID, f.ProjectID, f.Title, f.Status, formatTime(f.CreatedAt),
	); err != nil {
		return domain.Feature{}, fmt.Errorf("inserting feature: %w", err)
	}
	return f, nil
}

const featureColumns = `id, project_id, title, status, progress, created_at`

func scanFeature(sc interface{ Scan(...any) error }) (domain.Feature, error) {
	var f domain.Feature
	var created string
	if err := sc.Scan(&f.ID, &f.ProjectID, &f.Title, &f.Status, &f.Percentage, &created); err != nil {
		return domain.Feature{}, err
	}
	var err error
	if f.CreatedAt, err = parseTime(created); err != nil {
		return domain.Feature{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return f, nil
}

// GetFeature returns a feature by ID.
func (s *Store) GetFeature(ctx context.Context, id domain.FeatureID) (domain.Feature, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id = ?`, id)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Feature{}, domain.NotFound(domain.KindFeature, string(id))
	}
	if err != nil {
		return domain.Feature{}, fmt.Errorf("querying feature: %w", err)
	}
	return f, nil
}

// SetFeatureProgress writes back a feature's derived status and percentage.
func (s *Store) SetFeatureProgress(ctx context.Context, id domain.FeatureID, status domain.Status, pct int) error {
	res, err := s.execHook(ctx, s.db, `UPDATE features SET status = ?, progress = ? WHERE id = ?`, status, pct, id)
	if err != nil {
		return fmt.Errorf("updating feature progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound(domain.KindFeature, string(id))
	}
	return nil
}

// ─── Functions ───────────────────────────────────────────────────────────────

// CreateFunction inserts a function under an existing feature.
func (s *Store) CreateFunction(ctx context.Context, params FunctionParams) (domain.Function, error) {
	if err := requireTitle(params.Title); err != nil {
		return domain.Function{}, err
	}
	if params.Status == "" {
		return domain.Function{}, domain.Invalid("function status is required")
	}
	parent, err := s.GetFeature(ctx, params.FeatureID)
	if err != nil {
		return domain.Function{}, err
	}
	fn := domain.Function{
		ID:        domain.FunctionID(newID(string(params.ID))),
		ProjectID: parent.ProjectID,
		FeatureID: parent.ID,
		Title:     params.Title,
		Status:    params.Status,
		CreatedAt: timeNow().UTC(),
	}
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO functions (id, project_id, feature_id, title, status, progress, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		fn.ID, fn.ProjectID, fn.FeatureID, fn.Title, fn.Status, formatTime(fn.CreatedAt),
	); err != nil {
		return domain.Function{}, fmt.Errorf("inserting function: %w", err)
	}
	return fn, nil
}

const functionColumns = `id, project_id, feature_id, title, status, progress, created_at`

func scanFunction(sc interface{ Scan(...any) error }) (domain.Function, error) {
	var fn domain.Function
	var created string
	if err := sc.Scan(&fn.ID, &fn.ProjectID, &fn.FeatureID, &fn.Title, &fn.Status, &fn.Percentage, &created); err != nil {
		return domain.Function{}, err
	}
	var err error
	if fn.CreatedAt, err = parseTime(created); err != nil {
		return domain.Function{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return fn, nil
}

// GetFunction returns a function by ID.
func (s *Store) GetFunction(ctx context.Context, id domain.FunctionID) (domain.Function, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+functionColumns+` FROM functions WHERE id = ?`, id)
	fn, err := scanFunction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Function{}, domain.NotFound(domain.KindFunction, string(id))
	}
	if err != nil {
		return domain.Function{}, fmt.Errorf("querying function: %w", err)
	}
	return fn, nil
}

// ListFunctions returns the functions of a feature, oldest first.
func (s *Store) ListFunctions(ctx context.Context, feature domain.FeatureID) ([]domain.Function, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+functionColumns+` FROM functions WHERE feature_id = ? ORDER BY created_at, id`, feature)
	if err != nil {
		return nil, fmt.Errorf("querying functions: %w", err)
	}
	defer rows.Close()

	var out []domain.Function
	for rows.Next() {
		fn, err := scanFunction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning function: %w", err)
		}
		out = append(out, fn)
	}
	return out, rows.Err()
}

// SetFunctionProgress writes back a function's derived status and percentage.
func (s *Store) SetFunctionProgress(ctx context.Context, id domain.FunctionID, status domain.Status, pct int) error {
	res, err := s.execHook(ctx, s.db, `UPDATE functions SET status = ?, progress = ? WHERE id = ?`, status, pct, id)
	if err != nil {
		return fmt.Errorf("updating function progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound(domain.KindFunction, string(id))
	}
	return nil
}

// ─── Milestone ↔ Feature links ──────────────────────────────────────────────

// LinkFeature links a feature to a milestone. Both must belong to the same
// project. Linking an already linked pair is a no-op that reports false.
func (s *Store) LinkFeature(ctx context.Context, milestone domain.MilestoneID, feature domain.FeatureID) (bool, error) {
	m, err := s.GetMilestone(ctx, milestone)
	if err != nil {
		return false, err
	}
	f, err := s.GetFeature(ctx, feature)
	if err != nil {
		return false, err
	}
	if m.ProjectID != f.ProjectID {
		return false, domain.Invalid(fmt.Sprintf("feature %q and milestone %q belong to different projects", feature, milestone))
	}
	res, err := s.execHook(ctx, s.db,
		`INSERT OR IGNORE INTO milestone_features (milestone_id, feature_id, created_at) VALUES (?, ?, ?)`,
		milestone, feature, formatTime(timeNow()),
	)
	if err != nil {
		return false, fmt.Errorf("linking feature: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UnlinkFeature removes a milestone–feature link.
func (s *Store) UnlinkFeature(ctx context.Context, milestone domain.MilestoneID, feature domain.FeatureID) error {
	res, err := s.execHook(ctx, s.db,
		`DELETE FROM milestone_features WHERE milestone_id = ? AND feature_id = ?`, milestone, feature)
	if err != nil {
		return fmt.Errorf("unlinking feature: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound(domain.KindFeature, fmt.Sprintf("%s (in milestone %s)", feature, milestone))
	}
	return nil
}

// MilestoneFeatures returns the features linked to a milestone, oldest first.
func (s *Store) MilestoneFeatures(ctx context.Context, milestone domain.MilestoneID) ([]domain.Feature, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.project_id, f.title, f.status, f.progress, f.created_at
		FROM features f
		JOIN milestone_features mf ON mf.feature_id = f.id
		WHERE mf.milestone_id = ?
		ORDER BY f.created_at, f.id`, milestone)
	if err != nil {
		return nil, fmt.Errorf("querying milestone features: %w", err)
	}
	defer rows.Close()

	var out []domain.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning feature: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) milestoneFeatureIDs(ctx context.Context, milestone domain.MilestoneID) ([]domain.FeatureID, error) {
	features, err := s.MilestoneFeatures(ctx, milestone)
	if err != nil {
		return nil, err
	}
	ids := make([]domain.FeatureID, len(features))
	for i, f := range features {
		ids[i] = f.ID
	}
	return ids, nil
}

// FeatureMilestones returns the IDs of every milestone a feature is linked to.
func (s *Store) FeatureMilestones(ctx context.Context, feature domain.FeatureID) ([]domain.MilestoneID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT milestone_id FROM milestone_features WHERE feature_id = ? ORDER BY milestone_id`, feature)
	if err != nil {
		return nil, fmt.Errorf("querying feature milestones: %w", err)
	}
	defer rows.Close()

	var out []domain.MilestoneID
	for rows.Next() {
		var id domain.MilestoneID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning milestone id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
