// Package dependency manages directed "must finish before" edges between
// Tasks of a Project and guarantees that each Project's edge set stays
// acyclic.
//
// The Service keeps one in-memory graph per Project, hydrated from the
// collaborator store on first use and refreshed whenever the store's
// graph_version moves. Writers hold the Project's write lock from
// validation through commit, so two concurrent adds whose combination
// would close a cycle are serialized and exactly one of them wins.
// Edge writes are conditional on the version the graph was read at; if
// another process got there first, the graph is reloaded and the whole
// validate-and-commit is retried once.
package dependency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/events"
	"github.com/HendryAvila/capstone-tracker/internal/graph"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
	"github.com/HendryAvila/capstone-tracker/internal/projectlock"
	"github.com/HendryAvila/capstone-tracker/internal/store"
)

// Repository is the persistence the Service needs.
type Repository interface {
	GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error)
	GraphVersion(ctx context.Context, project domain.ProjectID) (int64, error)
	LoadGraph(ctx context.Context, project domain.ProjectID) (store.GraphSnapshot, error)
	InsertDependency(ctx context.Context, e domain.Edge, expected int64) (int64, error)
	DeleteDependency(ctx context.Context, project domain.ProjectID, id domain.EdgeID, expected int64) (int64, error)
}

type entry struct {
	graph   *graph.Graph
	version int64
}

// Service validates, adds, removes and lists dependency edges.
type Service struct {
	repo  Repository
	locks *projectlock.Arena
	bus   *events.Bus

	mu    sync.Mutex
	cache map[domain.ProjectID]*entry

	newID func() domain.EdgeID
	now   func() time.Time
}

// NewService creates a Service. bus may be nil, in which case no events
// are published.
func NewService(repo Repository, locks *projectlock.Arena, bus *events.Bus) *Service {
	return &Service{
		repo:  repo,
		locks: locks,
		bus:   bus,
		cache: make(map[domain.ProjectID]*entry),
		newID: func() domain.EdgeID { return domain.EdgeID(uuid.NewString()) },
		now:   time.Now,
	}
}

// Attach subscribes the Service to the task lifecycle events it reacts to.
func (s *Service) Attach(b *events.Bus) {
	b.Subscribe("dependency", s.onTaskCreated, events.TaskCreated)
	b.Subscribe("dependency", s.onTaskRemoved, events.TaskRemoved)
}

// graphFor returns the cached graph of a project, reloading it when the
// persisted version has moved. Callers hold the project's lock.
func (s *Service) graphFor(ctx context.Context, project domain.ProjectID) (*entry, error) {
	version, err := s.repo.GraphVersion(ctx, project)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	ent, ok := s.cache[project]
	s.mu.Unlock()
	if ok && ent.version == version {
		return ent, nil
	}

	ent, err = s.load(ctx, project)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[project] = ent
	s.mu.Unlock()
	return ent, nil
}

func (s *Service) load(ctx context.Context, project domain.ProjectID) (*entry, error) {
	snap, err := s.repo.LoadGraph(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("loading dependency graph: %w", err)
	}
	g := graph.New(project)
	for _, id := range snap.Nodes {
		g.AddNode(id)
	}
	for _, e := range snap.Edges {
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("hydrating edge %s of project %s: %w", e.ID, project, err)
		}
	}
	if cycle := graph.DetectCycle(g); cycle != nil {
		return nil, fmt.Errorf("persisted dependency graph of project %s contains a cycle: %s",
			project, domain.FormatPath(cycle))
	}
	logging.Debug("Dependency", "loaded graph of project %s: %d tasks, %d edges, version %d",
		project, g.NodeCount(), g.EdgeCount(), snap.Version)
	return &entry{graph: g, version: snap.Version}, nil
}

func (s *Service) evict(project domain.ProjectID) {
	s.mu.Lock()
	delete(s.cache, project)
	s.mu.Unlock()
}

func (s *Service) cached(project domain.ProjectID) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.cache[project]
	return ent, ok
}

func (s *Service) publish(ctx context.Context, evs ...events.Event) {
	if s.bus == nil {
		return
	}
	// Handler failures are logged by the bus; the write itself has
	// already committed.
	_ = s.bus.PublishAll(ctx, evs...)
}

// ─── Snapshot ────────────────────────────────────────────────────────────────

// Snapshot returns a read-only clone of a project's graph.
func (s *Service) Snapshot(ctx context.Context, project domain.ProjectID) (*graph.Graph, error) {
	unlock := s.locks.RLock(project)
	defer unlock()

	ent, err := s.graphFor(ctx, project)
	if err != nil {
		return nil, err
	}
	return ent.graph.Clone(), nil
}
