// Package gantt shapes Milestones, Features, Functions, Tasks and
// dependency edges into the structures a Gantt view renders: a
// Milestone → Feature → Function tree and a flat, dependency-ordered Task
// list. It also applies drag-to-reschedule date shifts.
package gantt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/events"
	"github.com/HendryAvila/capstone-tracker/internal/graph"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
	"github.com/HendryAvila/capstone-tracker/internal/progress"
	"github.com/HendryAvila/capstone-tracker/internal/projectlock"
)

// Store is the read and date-shift persistence the Assembler needs.
type Store interface {
	GetProject(ctx context.Context, id domain.ProjectID) (domain.Project, error)
	ListMilestones(ctx context.Context, project domain.ProjectID) ([]domain.Milestone, error)
	MilestoneFeatures(ctx context.Context, milestone domain.MilestoneID) ([]domain.Feature, error)
	ListFunctions(ctx context.Context, feature domain.FeatureID) ([]domain.Function, error)
	ListTasks(ctx context.Context, project domain.ProjectID) ([]domain.Task, error)
	GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error)
	GetMilestone(ctx context.Context, id domain.MilestoneID) (domain.Milestone, error)
	ShiftTaskDates(ctx context.Context, id domain.TaskID, days int) (domain.Task, error)
	ShiftMilestoneDates(ctx context.Context, id domain.MilestoneID, days int) (domain.Milestone, error)
}

// Grapher provides a consistent read-only graph of a project.
type Grapher interface {
	Snapshot(ctx context.Context, project domain.ProjectID) (*graph.Graph, error)
}

// Progress looks up cached aggregates without recomputing them.
type Progress interface {
	Peek(ref domain.EntityRef) (progress.CachedProgress, bool)
}

// ─── Output shapes ───────────────────────────────────────────────────────────

// FunctionNode is one Function under a Feature.
type FunctionNode struct {
	ID       domain.FunctionID `json:"_id"`
	Title    string            `json:"title"`
	Status   domain.Status     `json:"status"`
	Progress *int              `json:"progress,omitempty"`
}

// FeatureNode is one Feature under a Milestone.
type FeatureNode struct {
	ID        domain.FeatureID `json:"_id"`
	Title     string           `json:"title"`
	Status    domain.Status    `json:"status"`
	Progress  *int             `json:"progress,omitempty"`
	Functions []FunctionNode   `json:"functions"`
}

// MilestoneNode is one Milestone at the top of the hierarchy.
type MilestoneNode struct {
	ID        domain.MilestoneID `json:"_id"`
	Title     string             `json:"title"`
	StartDate *time.Time         `json:"startDate,omitempty"`
	Deadline  *time.Time         `json:"deadline,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	Progress  *int               `json:"progress,omitempty"`
	Features  []FeatureNode      `json:"features"`
}

// TaskBar is one Task of the flat list with its dependency annotations.
type TaskBar struct {
	domain.Task
	Dependencies []domain.TaskID `json:"dependencies"`
	Dependents   []domain.TaskID `json:"dependents"`
}

// TaskChart is the flat Task list plus every edge of the project.
type TaskChart struct {
	ProjectID domain.ProjectID `json:"projectId"`
	Tasks     []TaskBar        `json:"tasks"`
	Edges     []domain.Edge    `json:"edges"`
}

// Shift is the outcome of ShiftDates.
type Shift struct {
	Ref       domain.EntityRef `json:"ref"`
	DeltaDays int              `json:"deltaDays"`
	StartDate *time.Time       `json:"startDate,omitempty"`
	Deadline  *time.Time       `json:"deadline,omitempty"`
}

// ─── Assembler ───────────────────────────────────────────────────────────────

// Assembler builds Gantt views.
type Assembler struct {
	store    Store
	graphs   Grapher
	progress Progress
	locks    *projectlock.Arena
	bus      *events.Bus
}

// NewAssembler creates an Assembler. progress and bus may be nil.
func NewAssembler(store Store, graphs Grapher, progress Progress, locks *projectlock.Arena, bus *events.Bus) *Assembler {
	return &Assembler{store: store, graphs: graphs, progress: progress, locks: locks, bus: bus}
}

// percentage prefers the cached aggregate and falls back to the value
// last written back to the store, so a fresh process still reports
// progress.
func (a *Assembler) percentage(ref domain.EntityRef, stored int) *int {
	if a.progress != nil {
		if c, ok := a.progress.Peek(ref); ok {
			pct := c.Percentage()
			return &pct
		}
	}
	return &stored
}

// HierarchyFor returns the project's Milestones ordered by start date,
// then deadline, then newest first, each with its linked Features and
// their Functions.
func (a *Assembler) HierarchyFor(ctx context.Context, project domain.ProjectID) ([]MilestoneNode, error) {
	if _, err := a.store.GetProject(ctx, project); err != nil {
		return nil, err
	}
	unlock := a.locks.RLock(project)
	defer unlock()

	milestones, err := a.store.ListMilestones(ctx, project)
	if err != nil {
		return nil, err
	}
	SortMilestones(milestones)

	out := make([]MilestoneNode, 0, len(milestones))
	for _, m := range milestones {
		node := MilestoneNode{
			ID:        m.ID,
			Title:     m.Title,
			StartDate: m.StartDate,
			Deadline:  m.Deadline,
			CreatedAt: m.CreatedAt,
			Progress:  a.percentage(domain.MilestoneRef(m.ID), m.Percentage),
			Features:  []FeatureNode{},
		}
		features, err := a.store.MilestoneFeatures(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("milestone %s features: %w", m.ID, err)
		}
		for _, f := range features {
			fnode := FeatureNode{
				ID:        f.ID,
				Title:     f.Title,
				Status:    f.Status,
				Progress:  a.percentage(domain.FeatureRef(f.ID), f.Percentage),
				Functions: []FunctionNode{},
			}
			functions, err := a.store.ListFunctions(ctx, f.ID)
			if err != nil {
				return nil, fmt.Errorf("feature %s functions: %w", f.ID, err)
			}
			for _, fn := range functions {
				fnode.Functions = append(fnode.Functions, FunctionNode{
					ID:       fn.ID,
					Title:    fn.Title,
					Status:   fn.Status,
					Progress: a.percentage(domain.FunctionRef(fn.ID), fn.Percentage),
				})
			}
			node.Features = append(node.Features, fnode)
		}
		out = append(out, node)
	}
	return out, nil
}

// SortMilestones orders milestones by start date ascending, then deadline
// ascending, then creation time descending. Missing dates sort last.
func SortMilestones(ms []domain.Milestone) {
	sort.SliceStable(ms, func(i, j int) bool {
		if c := compareDates(ms[i].StartDate, ms[j].StartDate); c != 0 {
			return c < 0
		}
		if c := compareDates(ms[i].Deadline, ms[j].Deadline); c != 0 {
			return c < 0
		}
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

func compareDates(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	}
	return 0
}

// TasksWithDependencies returns every Task of the project annotated with
// the Tasks it waits for and the Tasks waiting for it. Tasks are ordered
// so that every Task follows the ones it depends on; ties go by start date,
// then title, then ID.
func (a *Assembler) TasksWithDependencies(ctx context.Context, project domain.ProjectID) (TaskChart, error) {
	if _, err := a.store.GetProject(ctx, project); err != nil {
		return TaskChart{}, err
	}
	g, err := a.graphs.Snapshot(ctx, project)
	if err != nil {
		return TaskChart{}, err
	}
	tasks, err := a.store.ListTasks(ctx, project)
	if err != nil {
		return TaskChart{}, err
	}

	byID := make(map[domain.TaskID]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		// Tasks created after the snapshot still render, without edges.
		g.AddNode(t.ID)
	}

	order, err := graph.TopologicalOrder(g, func(x, y domain.TaskID) bool {
		tx, ty := byID[x], byID[y]
		if c := compareDates(tx.StartDate, ty.StartDate); c != 0 {
			return c < 0
		}
		if tx.Title != ty.Title {
			return tx.Title < ty.Title
		}
		return x < y
	})
	if err != nil {
		return TaskChart{}, fmt.Errorf("ordering tasks of project %s: %w", project, err)
	}

	chart := TaskChart{ProjectID: project, Tasks: make([]TaskBar, 0, len(order)), Edges: g.Edges()}
	if chart.Edges == nil {
		chart.Edges = []domain.Edge{}
	}
	for _, id := range order {
		t, ok := byID[id]
		if !ok {
			// Removed after the snapshot.
			continue
		}
		bar := TaskBar{Task: t, Dependencies: []domain.TaskID{}, Dependents: []domain.TaskID{}}
		for _, e := range g.Incoming(id) {
			bar.Dependencies = append(bar.Dependencies, e.From)
		}
		for _, e := range g.Outgoing(id) {
			bar.Dependents = append(bar.Dependents, e.To)
		}
		chart.Tasks = append(chart.Tasks, bar)
	}
	return chart, nil
}

// ShiftDates moves the start date and deadline of one Milestone or Task by
// deltaDays. Nothing else moves: dependents keep their dates. A zero
// delta returns the current dates without writing or publishing.
func (a *Assembler) ShiftDates(ctx context.Context, ref domain.EntityRef, deltaDays int) (Shift, error) {
	var (
		project domain.ProjectID
		shift   = Shift{Ref: ref, DeltaDays: deltaDays}
	)
	switch ref.Kind {
	case domain.KindTask:
		t, err := a.store.GetTask(ctx, domain.TaskID(ref.ID))
		if err != nil {
			return Shift{}, err
		}
		project = t.ProjectID
		if deltaDays == 0 {
			shift.StartDate, shift.Deadline = t.StartDate, t.Deadline
			return shift, nil
		}
		unlock := a.locks.Lock(project)
		t, err = a.store.ShiftTaskDates(ctx, t.ID, deltaDays)
		unlock()
		if err != nil {
			return Shift{}, err
		}
		shift.StartDate, shift.Deadline = t.StartDate, t.Deadline
	case domain.KindMilestone:
		m, err := a.store.GetMilestone(ctx, domain.MilestoneID(ref.ID))
		if err != nil {
			return Shift{}, err
		}
		project = m.ProjectID
		if deltaDays == 0 {
			shift.StartDate, shift.Deadline = m.StartDate, m.Deadline
			return shift, nil
		}
		unlock := a.locks.Lock(project)
		m, err = a.store.ShiftMilestoneDates(ctx, m.ID, deltaDays)
		unlock()
		if err != nil {
			return Shift{}, err
		}
		shift.StartDate, shift.Deadline = m.StartDate, m.Deadline
	default:
		return Shift{}, domain.Invalid(fmt.Sprintf("cannot shift dates of a %s: only milestones and tasks have dates", ref.Kind))
	}

	logging.Info("Gantt", "shifted %s by %d day(s)", ref, deltaDays)
	if a.bus != nil {
		_ = a.bus.Publish(ctx, events.Event{
			Type:      events.DatesShifted,
			ProjectID: project,
			Entity:    ref,
			DeltaDays: deltaDays,
		})
	}
	return shift, nil
}
