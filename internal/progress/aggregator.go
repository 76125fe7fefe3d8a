// Package progress derives Function, Feature and Milestone progress from
// Task statuses.
//
// Only Tasks carry a human-set status. A Function's status and percentage
// follow from its Tasks, a Feature's from its Functions, and a Milestone's
// percentage from the Features linked to it. Every recompute is a pure
// function of the current child states and is written back to the store,
// so running it twice changes nothing.
//
// Status names are not hard-coded: a domain.Policy maps each Task status
// to a Phase and each Phase to the label written on derived entities.
package progress

import (
	"context"
	"fmt"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/events"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
	"github.com/HendryAvila/capstone-tracker/internal/projectlock"
	"github.com/HendryAvila/capstone-tracker/internal/store"
)

// TaskStore is the Task persistence the Aggregator needs.
type TaskStore interface {
	GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error)
	ListFunctionTasks(ctx context.Context, function domain.FunctionID) ([]domain.Task, error)
	SetTaskStatus(ctx context.Context, id domain.TaskID, status domain.Status) (domain.Status, error)
	CreateTask(ctx context.Context, params store.TaskParams) (domain.Task, int64, error)
	DeleteTask(ctx context.Context, id domain.TaskID) (domain.Task, []domain.Edge, int64, error)
}

// HierarchyStore is the Function/Feature/Milestone persistence the
// Aggregator needs, including write-back of derived values.
type HierarchyStore interface {
	GetFunction(ctx context.Context, id domain.FunctionID) (domain.Function, error)
	SetFunctionProgress(ctx context.Context, id domain.FunctionID, status domain.Status, pct int) error

	GetFeature(ctx context.Context, id domain.FeatureID) (domain.Feature, error)
	ListFunctions(ctx context.Context, feature domain.FeatureID) ([]domain.Function, error)
	SetFeatureProgress(ctx context.Context, id domain.FeatureID, status domain.Status, pct int) error
	FeatureMilestones(ctx context.Context, feature domain.FeatureID) ([]domain.MilestoneID, error)

	GetMilestone(ctx context.Context, id domain.MilestoneID) (domain.Milestone, error)
	MilestoneFeatures(ctx context.Context, milestone domain.MilestoneID) ([]domain.Feature, error)
	SetMilestoneProgress(ctx context.Context, id domain.MilestoneID, pct int) error
	LinkFeature(ctx context.Context, milestone domain.MilestoneID, feature domain.FeatureID) (bool, error)
	UnlinkFeature(ctx context.Context, milestone domain.MilestoneID, feature domain.FeatureID) error
	DeleteMilestone(ctx context.Context, id domain.MilestoneID) (domain.Milestone, []domain.FeatureID, error)
}

// Config holds the Aggregator's external configuration.
type Config struct {
	Policy domain.Policy
	// MilestoneBasis selects what a Milestone counts across its Features.
	MilestoneBasis domain.CountBasis
}

// DefaultConfig returns the To Do / Doing / Done policy counting Functions.
func DefaultConfig() Config {
	return Config{Policy: domain.DefaultPolicy(), MilestoneBasis: domain.BasisFunctions}
}

// Aggregator recomputes derived progress and owns the hierarchy writes
// that trigger it.
type Aggregator struct {
	policy domain.Policy
	basis  domain.CountBasis

	tasks TaskStore
	hier  HierarchyStore
	locks *projectlock.Arena
	bus   *events.Bus
	cache *Cache
}

// NewAggregator validates cfg and creates an Aggregator. bus may be nil.
func NewAggregator(cfg Config, tasks TaskStore, hier HierarchyStore, locks *projectlock.Arena, bus *events.Bus) (*Aggregator, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("progress: %w", err)
	}
	if cfg.MilestoneBasis == "" {
		cfg.MilestoneBasis = domain.BasisFunctions
	}
	if err := domain.ValidateBasis(cfg.MilestoneBasis); err != nil {
		return nil, fmt.Errorf("progress: %w", err)
	}
	a := &Aggregator{
		policy: cfg.Policy,
		basis:  cfg.MilestoneBasis,
		tasks:  tasks,
		hier:   hier,
		locks:  locks,
		bus:    bus,
	}
	a.cache = NewCache(a, a.computeLocked)
	return a, nil
}

// Policy returns the status policy in use.
func (a *Aggregator) Policy() domain.Policy { return a.policy }

// Cache returns the progress cache fed by this Aggregator.
func (a *Aggregator) Cache() *Cache { return a.cache }

func (a *Aggregator) publish(ctx context.Context, evs ...events.Event) {
	if a.bus == nil {
		return
	}
	_ = a.bus.PublishAll(ctx, evs...)
}

// ─── Pure computation ────────────────────────────────────────────────────────

// functionProgress derives a Function's progress from its Tasks.
func (a *Aggregator) functionProgress(ctx context.Context, id domain.FunctionID) (domain.Progress, int, int, error) {
	tasks, err := a.tasks.ListFunctionTasks(ctx, id)
	if err != nil {
		return domain.Progress{}, 0, 0, err
	}
	phases := make([]domain.Phase, 0, len(tasks))
	done := 0
	for _, t := range tasks {
		ph, err := a.policy.PhaseOf(t.Status)
		if err != nil {
			return domain.Progress{}, 0, 0, fmt.Errorf("task %s: %w", t.ID, err)
		}
		if ph == domain.PhaseCompleted {
			done++
		}
		phases = append(phases, ph)
	}
	phase := domain.Derive(phases)
	return domain.Progress{
		Ref:        domain.FunctionRef(id),
		Status:     a.policy.Label(phase),
		Phase:      phase,
		Completed:  done,
		Total:      len(tasks),
		Percentage: domain.Percent(done, len(tasks)),
	}, done, len(tasks), nil
}

// featureTotals derives a Feature's progress from its Functions, along with
// its task counts for the tasks basis.
func (a *Aggregator) featureTotals(ctx context.Context, id domain.FeatureID) (domain.Progress, []domain.Progress, int, int, error) {
	functions, err := a.hier.ListFunctions(ctx, id)
	if err != nil {
		return domain.Progress{}, nil, 0, 0, err
	}
	children := make([]domain.Progress, 0, len(functions))
	phases := make([]domain.Phase, 0, len(functions))
	completed, doneTasks, totalTasks := 0, 0, 0
	for _, fn := range functions {
		p, done, total, err := a.functionProgress(ctx, fn.ID)
		if err != nil {
			return domain.Progress{}, nil, 0, 0, err
		}
		if p.Phase == domain.PhaseCompleted {
			completed++
		}
		doneTasks += done
		totalTasks += total
		phases = append(phases, p.Phase)
		children = append(children, p)
	}
	phase := domain.Derive(phases)
	return domain.Progress{
		Ref:        domain.FeatureRef(id),
		Status:     a.policy.Label(phase),
		Phase:      phase,
		Completed:  completed,
		Total:      len(functions),
		Percentage: domain.Percent(completed, len(functions)),
	}, children, doneTasks, totalTasks, nil
}

// milestoneProgress derives a Milestone's progress from its linked Features.
func (a *Aggregator) milestoneProgress(ctx context.Context, id domain.MilestoneID) (domain.MilestoneProgress, error) {
	features, err := a.hier.MilestoneFeatures(ctx, id)
	if err != nil {
		return domain.MilestoneProgress{}, err
	}
	mp := domain.MilestoneProgress{MilestoneID: id, Basis: a.basis, ByFeature: []domain.FeatureBreakdown{}}
	for _, f := range features {
		fp, _, doneTasks, totalTasks, err := a.featureTotals(ctx, f.ID)
		if err != nil {
			return domain.MilestoneProgress{}, err
		}
		b := domain.FeatureBreakdown{FeatureID: f.ID, Title: f.Title}
		if a.basis == domain.BasisTasks {
			b.Completed, b.Total = doneTasks, totalTasks
		} else {
			b.Completed, b.Total = fp.Completed, fp.Total
		}
		b.Percentage = domain.Percent(b.Completed, b.Total)
		mp.Completed += b.Completed
		mp.Total += b.Total
		mp.ByFeature = append(mp.ByFeature, b)
	}
	mp.Percentage = domain.Percent(mp.Completed, mp.Total)
	return mp, nil
}

// ─── Recompute and write back (project lock held) ────────────────────────────

func (a *Aggregator) recomputeFunction(ctx context.Context, id domain.FunctionID) (domain.Progress, error) {
	p, _, _, err := a.functionProgress(ctx, id)
	if err != nil {
		return domain.Progress{}, err
	}
	if err := a.hier.SetFunctionProgress(ctx, id, p.Status, p.Percentage); err != nil {
		return domain.Progress{}, err
	}
	a.cache.Put(CachedProgress{Ref: p.Ref, Progress: &p})
	return p, nil
}

func (a *Aggregator) recomputeFeature(ctx context.Context, id domain.FeatureID) (domain.Progress, error) {
	p, _, _, _, err := a.featureTotals(ctx, id)
	if err != nil {
		return domain.Progress{}, err
	}
	if err := a.hier.SetFeatureProgress(ctx, id, p.Status, p.Percentage); err != nil {
		return domain.Progress{}, err
	}
	a.cache.Put(CachedProgress{Ref: p.Ref, Progress: &p})
	return p, nil
}

func (a *Aggregator) recomputeMilestone(ctx context.Context, id domain.MilestoneID) (domain.MilestoneProgress, error) {
	mp, err := a.milestoneProgress(ctx, id)
	if err != nil {
		return domain.MilestoneProgress{}, err
	}
	if err := a.hier.SetMilestoneProgress(ctx, id, mp.Percentage); err != nil {
		return domain.MilestoneProgress{}, err
	}
	a.cache.Put(CachedProgress{Ref: domain.MilestoneRef(id), Milestone: &mp})
	return mp, nil
}

// Chain is the result of recomputing everything above one Function.
type Chain struct {
	Function   domain.Progress            `json:"function"`
	Feature    domain.Progress            `json:"feature"`
	Milestones []domain.MilestoneProgress `json:"milestones"`
}

// recomputeChain recomputes a Function, its Feature and every Milestone
// linked to that Feature.
func (a *Aggregator) recomputeChain(ctx context.Context, id domain.FunctionID) (Chain, error) {
	fn, err := a.hier.GetFunction(ctx, id)
	if err != nil {
		return Chain{}, err
	}
	if err := a.cache.Invalidate(ctx, domain.FunctionRef(id)); err != nil {
		return Chain{}, err
	}

	var c Chain
	if c.Function, err = a.recomputeFunction(ctx, id); err != nil {
		return Chain{}, fmt.Errorf("recomputing function %s: %w", id, err)
	}
	if c.Feature, err = a.recomputeFeature(ctx, fn.FeatureID); err != nil {
		return Chain{}, fmt.Errorf("recomputing feature %s: %w", fn.FeatureID, err)
	}
	c.Milestones, err = a.recomputeFeatureMilestones(ctx, fn.FeatureID)
	if err != nil {
		return Chain{}, err
	}
	return c, nil
}

func (a *Aggregator) recomputeFeatureMilestones(ctx context.Context, feature domain.FeatureID) ([]domain.MilestoneProgress, error) {
	ids, err := a.hier.FeatureMilestones(ctx, feature)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MilestoneProgress, 0, len(ids))
	for _, mid := range ids {
		mp, err := a.recomputeMilestone(ctx, mid)
		if err != nil {
			return nil, fmt.Errorf("recomputing milestone %s: %w", mid, err)
		}
		out = append(out, mp)
	}
	return out, nil
}

// ─── Public recompute ────────────────────────────────────────────────────────

// RecomputeFunction recomputes and writes back one Function.
func (a *Aggregator) RecomputeFunction(ctx context.Context, id domain.FunctionID) (domain.Progress, error) {
	fn, err := a.hier.GetFunction(ctx, id)
	if err != nil {
		return domain.Progress{}, err
	}
	unlock := a.locks.Lock(fn.ProjectID)
	defer unlock()
	return a.recomputeFunction(ctx, id)
}

// RecomputeFeature recomputes and writes back one Feature.
func (a *Aggregator) RecomputeFeature(ctx context.Context, id domain.FeatureID) (domain.Progress, error) {
	f, err := a.hier.GetFeature(ctx, id)
	if err != nil {
		return domain.Progress{}, err
	}
	unlock := a.locks.Lock(f.ProjectID)
	defer unlock()
	return a.recomputeFeature(ctx, id)
}

// RecomputeMilestone recomputes and writes back one Milestone.
func (a *Aggregator) RecomputeMilestone(ctx context.Context, id domain.MilestoneID) (domain.MilestoneProgress, error) {
	m, err := a.hier.GetMilestone(ctx, id)
	if err != nil {
		return domain.MilestoneProgress{}, err
	}
	unlock := a.locks.Lock(m.ProjectID)
	defer unlock()
	return a.recomputeMilestone(ctx, id)
}

// computeLocked backs cache misses.
func (a *Aggregator) computeLocked(ctx context.Context, ref domain.EntityRef) (CachedProgress, error) {
	switch ref.Kind {
	case domain.KindFunction:
		p, err := a.RecomputeFunction(ctx, domain.FunctionID(ref.ID))
		if err != nil {
			return CachedProgress{}, err
		}
		return CachedProgress{Ref: ref, Progress: &p}, nil
	case domain.KindFeature:
		p, err := a.RecomputeFeature(ctx, domain.FeatureID(ref.ID))
		if err != nil {
			return CachedProgress{}, err
		}
		return CachedProgress{Ref: ref, Progress: &p}, nil
	case domain.KindMilestone:
		mp, err := a.RecomputeMilestone(ctx, domain.MilestoneID(ref.ID))
		if err != nil {
			return CachedProgress{}, err
		}
		return CachedProgress{Ref: ref, Milestone: &mp}, nil
	}
	return CachedProgress{}, domain.Invalid(fmt.Sprintf("no progress is derived for %s entities", ref.Kind))
}

// Parents implements Resolver over the hierarchy store.
func (a *Aggregator) Parents(ctx context.Context, ref domain.EntityRef) ([]domain.EntityRef, error) {
	switch ref.Kind {
	case domain.KindTask:
		t, err := a.tasks.GetTask(ctx, domain.TaskID(ref.ID))
		if err != nil {
			return nil, err
		}
		return []domain.EntityRef{domain.FunctionRef(t.FunctionID)}, nil
	case domain.KindFunction:
		fn, err := a.hier.GetFunction(ctx, domain.FunctionID(ref.ID))
		if err != nil {
			return nil, err
		}
		return []domain.EntityRef{domain.FeatureRef(fn.FeatureID)}, nil
	case domain.KindFeature:
		ids, err := a.hier.FeatureMilestones(ctx, domain.FeatureID(ref.ID))
		if err != nil {
			return nil, err
		}
		refs := make([]domain.EntityRef, len(ids))
		for i, id := range ids {
			refs[i] = domain.MilestoneRef(id)
		}
		return refs, nil
	}
	return nil, nil
}

// ─── Status changes ──────────────────────────────────────────────────────────

// StatusChange is the outcome of OnTaskStatusChanged.
type StatusChange struct {
	Task      domain.Task   `json:"task"`
	OldStatus domain.Status `json:"oldStatus"`
	Chain
}

// OnTaskStatusChanged validates status against the policy, writes it to
// the Task, and recomputes the parent Function, its Feature and every
// Milestone linked to that Feature.
func (a *Aggregator) OnTaskStatusChanged(ctx context.Context, id domain.TaskID, status domain.Status) (StatusChange, error) {
	if _, err := a.policy.PhaseOf(status); err != nil {
		return StatusChange{}, err
	}
	t, err := a.tasks.GetTask(ctx, id)
	if err != nil {
		return StatusChange{}, err
	}

	unlock := a.locks.Lock(t.ProjectID)
	old, err := a.tasks.SetTaskStatus(ctx, id, status)
	if err != nil {
		unlock()
		return StatusChange{}, err
	}
	t.Status = status
	chain, err := a.recomputeChain(ctx, t.FunctionID)
	unlock()
	if err != nil {
		return StatusChange{}, err
	}

	if old != status {
		logging.Info("Progress", "task %s: %s → %s (function %s now %d%%)", id, old, status, t.FunctionID, chain.Function.Percentage)
		a.publish(ctx, events.Event{
			Type:      events.StatusChanged,
			ProjectID: t.ProjectID,
			Entity:    domain.TaskRef(id),
			Task:      &t,
			OldStatus: old,
			NewStatus: status,
		})
	}
	return StatusChange{Task: t, OldStatus: old, Chain: chain}, nil
}
