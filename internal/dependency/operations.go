package dependency

import (
	"context"
	"errors"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/events"
	"github.com/HendryAvila/capstone-tracker/internal/graph"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
)

// Validation is the outcome of a pre-flight check.
type Validation struct {
	Valid   bool             `json:"valid"`
	Reason  domain.ErrorKind `json:"reason,omitempty"`
	Message string           `json:"message,omitempty"`
	Path    []domain.TaskID  `json:"path,omitempty"`
}

// Link is one edge of a listing together with the task at its far end.
type Link struct {
	domain.Edge
	Task domain.Task `json:"task"`
}

// Listing holds the edges around one task.
type Listing struct {
	TaskID domain.TaskID `json:"taskId"`
	// Dependencies are edges into the task: what it waits for.
	Dependencies []Link `json:"dependencies"`
	// Dependents are edges out of the task: what waits for it.
	Dependents []Link `json:"dependents"`
}

// check runs the structural checks and then the cycle check for a
// candidate edge. It never mutates g.
func (s *Service) check(ctx context.Context, g *graph.Graph, project domain.ProjectID, from, to domain.TaskID) error {
	if from == to {
		return domain.InvalidEdge("task %s cannot depend on itself", from)
	}
	for _, id := range []domain.TaskID{from, to} {
		t, err := s.repo.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if t.ProjectID != project {
			return domain.InvalidEdge("task %s belongs to project %s, not %s", id, t.ProjectID, project)
		}
	}
	if g.HasEdge(from, to) {
		return domain.InvalidEdge("dependency %s → %s already exists", from, to)
	}
	if err := g.CheckEdge(from, to); err != nil {
		return err
	}
	if cyclic, path := graph.WouldCycle(g, from, to); cyclic {
		return domain.Circular(path)
	}
	return nil
}

// validationOf turns a check result into a Validation. Errors that are not
// part of the rule taxonomy are returned as errors.
func validationOf(err error) (Validation, error) {
	if err == nil {
		return Validation{Valid: true}, nil
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		return Validation{}, err
	}
	switch de.Kind {
	case domain.KindNotFound, domain.KindInvalidEdge, domain.KindCircularDependency:
		return Validation{Valid: false, Reason: de.Kind, Message: de.Message, Path: de.Path}, nil
	}
	return Validation{}, err
}

// Validate reports whether the edge from → to could be added to project
// right now. It never mutates anything.
func (s *Service) Validate(ctx context.Context, project domain.ProjectID, from, to domain.TaskID) (Validation, error) {
	unlock := s.locks.RLock(project)
	defer unlock()

	ent, err := s.graphFor(ctx, project)
	if err != nil {
		return Validation{}, err
	}
	return validationOf(s.check(ctx, ent.graph, project, from, to))
}

// Add validates and commits the edge from → to. It fails with
// CircularDependency, InvalidEdge or NotFound exactly when Validate would
// have reported the same reason under the same state.
func (s *Service) Add(ctx context.Context, project domain.ProjectID, from, to domain.TaskID) (domain.Edge, error) {
	unlock := s.locks.Lock(project)
	e, err := s.add(ctx, project, from, to)
	if domain.IsConflict(err) {
		logging.Warn("Dependency", "graph of project %s changed concurrently, retrying add %s → %s", project, from, to)
		s.evict(project)
		e, err = s.add(ctx, project, from, to)
	}
	unlock()
	if err != nil {
		return domain.Edge{}, err
	}

	logging.Info("Dependency", "added %s → %s in project %s", from, to, project)
	s.publish(ctx, events.Event{
		Type:      events.DependencyAdded,
		ProjectID: project,
		Entity:    domain.TaskRef(e.To),
		Edge:      &e,
	})
	return e, nil
}

func (s *Service) add(ctx context.Context, project domain.ProjectID, from, to domain.TaskID) (domain.Edge, error) {
	ent, err := s.graphFor(ctx, project)
	if err != nil {
		return domain.Edge{}, err
	}
	if err := s.check(ctx, ent.graph, project, from, to); err != nil {
		return domain.Edge{}, err
	}

	e := domain.Edge{
		ID:        s.newID(),
		ProjectID: project,
		From:      from,
		To:        to,
		CreatedAt: s.now().UTC(),
	}
	version, err := s.repo.InsertDependency(ctx, e, ent.version)
	if err != nil {
		return domain.Edge{}, err
	}
	if err := ent.graph.AddEdge(e); err != nil {
		// Persisted but not applicable in memory: drop the cache so the
		// next call rebuilds from the store.
		s.evict(project)
		return domain.Edge{}, err
	}
	ent.version = version
	return e, nil
}

// Remove deletes an edge of project. It fails with NotFound if the edge is
// absent or belongs to another project.
func (s *Service) Remove(ctx context.Context, project domain.ProjectID, id domain.EdgeID) (domain.Edge, error) {
	return s.removeEdge(ctx, project, "", id)
}

// RemoveForTask deletes an edge reached through task. It fails with
// NotFound unless task is one of the edge's endpoints.
func (s *Service) RemoveForTask(ctx context.Context, project domain.ProjectID, task domain.TaskID, id domain.EdgeID) (domain.Edge, error) {
	if task == "" {
		return domain.Edge{}, domain.Invalid("task is required")
	}
	return s.removeEdge(ctx, project, task, id)
}

func (s *Service) removeEdge(ctx context.Context, project domain.ProjectID, task domain.TaskID, id domain.EdgeID) (domain.Edge, error) {
	unlock := s.locks.Lock(project)
	e, err := s.remove(ctx, project, task, id)
	if domain.IsConflict(err) {
		logging.Warn("Dependency", "graph of project %s changed concurrently, retrying remove %s", project, id)
		s.evict(project)
		e, err = s.remove(ctx, project, task, id)
	}
	unlock()
	if err != nil {
		return domain.Edge{}, err
	}

	logging.Info("Dependency", "removed %s → %s in project %s", e.From, e.To, project)
	s.publish(ctx, events.Event{
		Type:      events.DependencyRemoved,
		ProjectID: project,
		Entity:    domain.TaskRef(e.To),
		Edge:      &e,
	})
	return e, nil
}

func (s *Service) remove(ctx context.Context, project domain.ProjectID, task domain.TaskID, id domain.EdgeID) (domain.Edge, error) {
	ent, err := s.graphFor(ctx, project)
	if err != nil {
		return domain.Edge{}, err
	}
	e, ok := ent.graph.Edge(id)
	if !ok || (task != "" && e.From != task && e.To != task) {
		return domain.Edge{}, domain.NotFound(domain.KindDependency, string(id))
	}
	version, err := s.repo.DeleteDependency(ctx, project, id, ent.version)
	if err != nil {
		return domain.Edge{}, err
	}
	if _, err := ent.graph.RemoveEdge(id); err != nil {
		s.evict(project)
		return domain.Edge{}, err
	}
	ent.version = version
	return e, nil
}

// List returns the edges into and out of a task.
func (s *Service) List(ctx context.Context, task domain.TaskID) (Listing, error) {
	t, err := s.repo.GetTask(ctx, task)
	if err != nil {
		return Listing{}, err
	}

	unlock := s.locks.RLock(t.ProjectID)
	ent, err := s.graphFor(ctx, t.ProjectID)
	if err != nil {
		unlock()
		return Listing{}, err
	}
	incoming := ent.graph.Incoming(task)
	outgoing := ent.graph.Outgoing(task)
	unlock()

	out := Listing{TaskID: task, Dependencies: []Link{}, Dependents: []Link{}}
	for _, e := range incoming {
		other, err := s.repo.GetTask(ctx, e.From)
		if err != nil {
			return Listing{}, err
		}
		out.Dependencies = append(out.Dependencies, Link{Edge: e, Task: other})
	}
	for _, e := range outgoing {
		other, err := s.repo.GetTask(ctx, e.To)
		if err != nil {
			return Listing{}, err
		}
		out.Dependents = append(out.Dependents, Link{Edge: e, Task: other})
	}
	return out, nil
}

// ─── Event handlers ──────────────────────────────────────────────────────────

func (s *Service) onTaskCreated(ctx context.Context, e events.Event) error {
	if e.Task == nil {
		return nil
	}
	unlock := s.locks.Lock(e.ProjectID)
	defer unlock()

	ent, ok := s.cached(e.ProjectID)
	if !ok {
		return nil
	}
	if ent.version+1 != e.GraphVersion {
		s.evict(e.ProjectID)
		return nil
	}
	ent.graph.AddNode(e.Task.ID)
	ent.version = e.GraphVersion
	return nil
}

func (s *Service) onTaskRemoved(ctx context.Context, e events.Event) error {
	if e.Task == nil {
		return nil
	}
	unlock := s.locks.Lock(e.ProjectID)
	if ent, ok := s.cached(e.ProjectID); ok {
		ent.graph.RemoveNode(e.Task.ID)
		if ent.version+1 == e.GraphVersion {
			ent.version = e.GraphVersion
		} else {
			s.evict(e.ProjectID)
		}
	}
	unlock()

	evs := make([]events.Event, 0, len(e.Edges))
	for i := range e.Edges {
		edge := e.Edges[i]
		evs = append(evs, events.Event{
			Type:      events.DependencyRemoved,
			ProjectID: e.ProjectID,
			Entity:    domain.TaskRef(edge.To),
			Edge:      &edge,
		})
	}
	if len(evs) > 0 {
		logging.Info("Dependency", "task %s removed, dropped %d dependencies", e.Task.ID, len(evs))
	}
	s.publish(ctx, evs...)
	return nil
}
