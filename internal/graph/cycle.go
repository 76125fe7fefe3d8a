package graph

import (
	"fmt"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
)

// WouldCycle reports whether committing the candidate edge from → to would
// close a cycle. That happens iff to already reaches from, so the search is
// a BFS from to along outgoing edges. When a cycle would form, the returned
// path reads from → to → … → from.
//
// from == to is rejected by CheckEdge and never reaches here.
func WouldCycle(g *Graph, from, to domain.TaskID) (bool, []domain.TaskID) {
	if !g.HasNode(from) || !g.HasNode(to) {
		return false, nil
	}

	parent := map[domain.TaskID]domain.TaskID{}
	visited := map[domain.TaskID]bool{to: true}
	queue := []domain.TaskID{to}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == from {
			// Walk parents back to `to`, then prepend the candidate edge.
			var back []domain.TaskID
			for cur := from; cur != to; cur = parent[cur] {
				back = append(back, cur)
			}
			back = append(back, to)
			path := []domain.TaskID{from}
			for i := len(back) - 1; i >= 0; i-- {
				path = append(path, back[i])
			}
			return true, path
		}

		for _, next := range g.Successors(current) {
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = current
			queue = append(queue, next)
		}
	}
	return false, nil
}

// DetectCycle returns a cycle path if the graph has one, or nil if it is
// acyclic. DFS with white/gray/black colouring; a gray successor closes a
// cycle.
func DetectCycle(g *Graph) []domain.TaskID {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[domain.TaskID]int)
	parent := make(map[domain.TaskID]domain.TaskID)

	var dfs func(node domain.TaskID) []domain.TaskID
	dfs = func(node domain.TaskID) []domain.TaskID {
		color[node] = gray
		for _, next := range g.Successors(node) {
			if color[next] == gray {
				cycle := []domain.TaskID{next, node}
				for cur := node; cur != next; {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, id := range g.Nodes() {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalOrder returns the tasks so that every edge's source comes
// before its target. Among tasks that are ready at the same time, less
// decides; a nil less falls back to ID order. It fails if the graph has
// a cycle.
func TopologicalOrder(g *Graph, less func(a, b domain.TaskID) bool) ([]domain.TaskID, error) {
	if less == nil {
		less = func(a, b domain.TaskID) bool { return a < b }
	}

	inDegree := make(map[domain.TaskID]int, g.NodeCount())
	for _, id := range g.Nodes() {
		inDegree[id] = len(g.revAdj[id])
	}

	var ready []domain.TaskID
	for _, id := range g.Nodes() {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]domain.TaskID, 0, g.NodeCount())
	for len(ready) > 0 {
		// Linear scan for the smallest ready task; project graphs are small.
		best := 0
		for i := 1; i < len(ready); i++ {
			if less(ready[i], ready[best]) {
				best = i
			}
		}
		id := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, id)

		for _, next := range g.Successors(id) {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != g.NodeCount() {
		return nil, fmt.Errorf("topological order: graph for project %q has a cycle: %s",
			g.project, domain.FormatPath(DetectCycle(g)))
	}
	return order, nil
}
