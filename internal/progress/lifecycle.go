package progress

import (
	"context"
	"fmt"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/events"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
	"github.com/HendryAvila/capstone-tracker/internal/store"
)

// Attach subscribes the Aggregator to the events that change what it
// derives.
func (a *Aggregator) Attach(b *events.Bus) {
	b.Subscribe("progress", a.onTaskChanged, events.TaskCreated, events.TaskRemoved)
	b.Subscribe("progress", a.onLinkChanged, events.FeatureLinked, events.FeatureUnlinked)
	b.Subscribe("progress", a.onMilestoneRemoved, events.MilestoneRemoved)
}

// CreateTask creates a Task under an existing Function. An empty status
// defaults to the policy's initial status.
func (a *Aggregator) CreateTask(ctx context.Context, params store.TaskParams) (domain.Task, error) {
	if params.Status == "" {
		params.Status = a.policy.InitialStatus()
	}
	if _, err := a.policy.PhaseOf(params.Status); err != nil {
		return domain.Task{}, err
	}
	fn, err := a.hier.GetFunction(ctx, params.FunctionID)
	if err != nil {
		return domain.Task{}, err
	}

	unlock := a.locks.Lock(fn.ProjectID)
	t, version, err := a.tasks.CreateTask(ctx, params)
	unlock()
	if err != nil {
		return domain.Task{}, err
	}

	a.publish(ctx, events.Event{
		Type:         events.TaskCreated,
		ProjectID:    t.ProjectID,
		Entity:       domain.TaskRef(t.ID),
		Task:         &t,
		GraphVersion: version,
	})
	return t, nil
}

// RemoveTask deletes a Task. Its dependency edges go with it and its former
// Function is recomputed.
func (a *Aggregator) RemoveTask(ctx context.Context, id domain.TaskID) (domain.Task, error) {
	t, err := a.tasks.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}

	unlock := a.locks.Lock(t.ProjectID)
	t, removed, version, err := a.tasks.DeleteTask(ctx, id)
	unlock()
	if err != nil {
		return domain.Task{}, err
	}

	a.publish(ctx, events.Event{
		Type:         events.TaskRemoved,
		ProjectID:    t.ProjectID,
		Entity:       domain.TaskRef(t.ID),
		Task:         &t,
		Edges:        removed,
		GraphVersion: version,
	})
	return t, nil
}

// LinkFeature links a Feature to a Milestone and recomputes the Milestone.
func (a *Aggregator) LinkFeature(ctx context.Context, milestone domain.MilestoneID, feature domain.FeatureID) error {
	m, err := a.hier.GetMilestone(ctx, milestone)
	if err != nil {
		return err
	}

	unlock := a.locks.Lock(m.ProjectID)
	linked, err := a.hier.LinkFeature(ctx, milestone, feature)
	unlock()
	if err != nil {
		return err
	}
	if !linked {
		return nil
	}

	a.publish(ctx, events.Event{
		Type:        events.FeatureLinked,
		ProjectID:   m.ProjectID,
		Entity:      domain.MilestoneRef(milestone),
		MilestoneID: milestone,
		FeatureID:   feature,
	})
	return nil
}

// UnlinkFeature removes a Feature from a Milestone and recomputes the
// Milestone.
func (a *Aggregator) UnlinkFeature(ctx context.Context, milestone domain.MilestoneID, feature domain.FeatureID) error {
	m, err := a.hier.GetMilestone(ctx, milestone)
	if err != nil {
		return err
	}

	unlock := a.locks.Lock(m.ProjectID)
	err = a.hier.UnlinkFeature(ctx, milestone, feature)
	unlock()
	if err != nil {
		return err
	}

	a.publish(ctx, events.Event{
		Type:        events.FeatureUnlinked,
		ProjectID:   m.ProjectID,
		Entity:      domain.MilestoneRef(milestone),
		MilestoneID: milestone,
		FeatureID:   feature,
	})
	return nil
}

// RemoveMilestone deletes a Milestone and its Feature links. The Features
// survive.
func (a *Aggregator) RemoveMilestone(ctx context.Context, id domain.MilestoneID) error {
	m, err := a.hier.GetMilestone(ctx, id)
	if err != nil {
		return err
	}

	unlock := a.locks.Lock(m.ProjectID)
	_, features, err := a.hier.DeleteMilestone(ctx, id)
	unlock()
	if err != nil {
		return err
	}

	a.publish(ctx, events.Event{
		Type:        events.MilestoneRemoved,
		ProjectID:   m.ProjectID,
		Entity:      domain.MilestoneRef(id),
		MilestoneID: id,
		FeatureIDs:  features,
	})
	return nil
}

// ─── Event handlers ──────────────────────────────────────────────────────────

func (a *Aggregator) onTaskChanged(ctx context.Context, e events.Event) error {
	if e.Task == nil {
		return nil
	}
	unlock := a.locks.Lock(e.ProjectID)
	defer unlock()

	chain, err := a.recomputeChain(ctx, e.Task.FunctionID)
	if err != nil {
		return fmt.Errorf("recomputing after %s of task %s: %w", e.Type, e.Task.ID, err)
	}
	logging.Debug("Progress", "%s %s: function %s at %d%%, feature %s at %d%%",
		e.Type, e.Task.ID, chain.Function.Ref.ID, chain.Function.Percentage,
		chain.Feature.Ref.ID, chain.Feature.Percentage)
	return nil
}

func (a *Aggregator) onLinkChanged(ctx context.Context, e events.Event) error {
	unlock := a.locks.Lock(e.ProjectID)
	defer unlock()

	if _, err := a.recomputeMilestone(ctx, e.MilestoneID); err != nil {
		return fmt.Errorf("recomputing milestone %s after %s: %w", e.MilestoneID, e.Type, err)
	}
	return nil
}

func (a *Aggregator) onMilestoneRemoved(ctx context.Context, e events.Event) error {
	a.cache.Forget(domain.MilestoneRef(e.MilestoneID))
	return nil
}
