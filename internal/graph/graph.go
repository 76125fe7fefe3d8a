// Package graph holds one Project's task dependency graph in memory.
//
// Graph is pure data access: node and edge membership, adjacency, and the
// structural rules every edge must satisfy (both endpoints present, no
// self-loop, no duplicate ordered pair). Acyclicity is decided by the
// cycle functions in cycle.go before an edge reaches AddEdge.
//
// A Graph is not safe for concurrent use; the dependency service guards
// each Project's graph with that Project's lock.
package graph

import (
	"sort"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
)

type pair struct {
	from, to domain.TaskID
}

// Graph is a directed graph of tasks. adj maps a task to the tasks that
// wait on it, revAdj maps a task to the tasks it waits on.
type Graph struct {
	project domain.ProjectID
	nodes   map[domain.TaskID]struct{}
	edges   map[domain.EdgeID]domain.Edge
	byPair  map[pair]domain.EdgeID
	adj     map[domain.TaskID]map[domain.TaskID]domain.EdgeID
	revAdj  map[domain.TaskID]map[domain.TaskID]domain.EdgeID
}

// New returns an empty graph for a project.
func New(project domain.ProjectID) *Graph {
	return &Graph{
		project: project,
		nodes:   make(map[domain.TaskID]struct{}),
		edges:   make(map[domain.EdgeID]domain.Edge),
		byPair:  make(map[pair]domain.EdgeID),
		adj:     make(map[domain.TaskID]map[domain.TaskID]domain.EdgeID),
		revAdj:  make(map[domain.TaskID]map[domain.TaskID]domain.EdgeID),
	}
}

// Project returns the project this graph belongs to.
func (g *Graph) Project() domain.ProjectID { return g.project }

// AddNode adds a task. Adding an existing task is a no-op.
func (g *Graph) AddNode(id domain.TaskID) {
	g.nodes[id] = struct{}{}
}

// HasNode reports whether the task is in the graph.
func (g *Graph) HasNode(id domain.TaskID) bool {
	_, ok := g.nodes[id]
	return ok
}

// RemoveNode removes a task and every edge touching it. The removed edges
// are returned sorted by ID so callers can record them.
func (g *Graph) RemoveNode(id domain.TaskID) []domain.Edge {
	if !g.HasNode(id) {
		return nil
	}
	var removed []domain.Edge
	for _, eid := range g.adj[id] {
		removed = append(removed, g.edges[eid])
	}
	for _, eid := range g.revAdj[id] {
		removed = append(removed, g.edges[eid])
	}
	for _, e := range removed {
		g.dropEdge(e)
	}
	delete(g.nodes, id)
	delete(g.adj, id)
	delete(g.revAdj, id)
	sortEdges(removed)
	return removed
}

// AddEdge commits an edge. It fails with InvalidEdge when an endpoint is
// missing, the edge is a self-loop, or the ordered pair or ID already
// exists. It does not check for cycles.
func (g *Graph) AddEdge(e domain.Edge) error {
	if err := g.CheckEdge(e.From, e.To); err != nil {
		return err
	}
	if _, ok := g.edges[e.ID]; ok {
		return domain.InvalidEdge("dependency %q already exists", e.ID)
	}
	e.ProjectID = g.project
	g.edges[e.ID] = e
	g.byPair[pair{e.From, e.To}] = e.ID
	if g.adj[e.From] == nil {
		g.adj[e.From] = make(map[domain.TaskID]domain.EdgeID)
	}
	g.adj[e.From][e.To] = e.ID
	if g.revAdj[e.To] == nil {
		g.revAdj[e.To] = make(map[domain.TaskID]domain.EdgeID)
	}
	g.revAdj[e.To][e.From] = e.ID
	return nil
}

// CheckEdge applies the structural edge rules without mutating the graph.
func (g *Graph) CheckEdge(from, to domain.TaskID) error {
	if from == to {
		return domain.InvalidEdge("task %q cannot depend on itself", from)
	}
	for _, id := range []domain.TaskID{from, to} {
		if !g.HasNode(id) {
			return domain.InvalidEdge("task %q is not part of project %q", id, g.project)
		}
	}
	if g.HasEdge(from, to) {
		return domain.InvalidEdge("dependency %s → %s already exists", from, to)
	}
	return nil
}

// RemoveEdge deletes an edge by ID. It fails with NotFound if absent.
func (g *Graph) RemoveEdge(id domain.EdgeID) (domain.Edge, error) {
	e, ok := g.edges[id]
	if !ok {
		return domain.Edge{}, domain.NotFound(domain.KindDependency, string(id))
	}
	g.dropEdge(e)
	return e, nil
}

func (g *Graph) dropEdge(e domain.Edge) {
	delete(g.edges, e.ID)
	delete(g.byPair, pair{e.From, e.To})
	delete(g.adj[e.From], e.To)
	delete(g.revAdj[e.To], e.From)
}

// HasEdge reports whether the ordered pair from → to exists.
func (g *Graph) HasEdge(from, to domain.TaskID) bool {
	_, ok := g.byPair[pair{from, to}]
	return ok
}

// Edge returns an edge by ID.
func (g *Graph) Edge(id domain.EdgeID) (domain.Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Outgoing returns the edges leaving a task (the tasks waiting on it),
// sorted by target.
func (g *Graph) Outgoing(id domain.TaskID) []domain.Edge {
	return g.collect(g.adj[id])
}

// Incoming returns the edges entering a task (the tasks it waits on),
// sorted by source.
func (g *Graph) Incoming(id domain.TaskID) []domain.Edge {
	return g.collect(g.revAdj[id])
}

// Successors returns the IDs of the tasks waiting on id, sorted.
func (g *Graph) Successors(id domain.TaskID) []domain.TaskID {
	return sortedKeys(g.adj[id])
}

func (g *Graph) collect(m map[domain.TaskID]domain.EdgeID) []domain.Edge {
	out := make([]domain.Edge, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, g.edges[m[k]])
	}
	return out
}

// Nodes returns all task IDs, sorted.
func (g *Graph) Nodes() []domain.TaskID {
	ids := make([]domain.TaskID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Edges returns all edges, sorted by ID.
func (g *Graph) Edges() []domain.Edge {
	out := make([]domain.Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sortEdges(out)
	return out
}

// NodeCount returns the number of tasks.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Clone returns a deep copy, used to hand readers a snapshot.
func (g *Graph) Clone() *Graph {
	c := New(g.project)
	for id := range g.nodes {
		c.nodes[id] = struct{}{}
	}
	for _, e := range g.edges {
		// Endpoints are present and the pair is unique in g, so this
		// cannot fail.
		_ = c.AddEdge(e)
	}
	return c
}

func sortedKeys(m map[domain.TaskID]domain.EdgeID) []domain.TaskID {
	keys := make([]domain.TaskID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortEdges(edges []domain.Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
}
