// Package depgraph implements the immutable dependency graph and its
// mutation-tracking overlay: cycle detection, topological ordering,
// blocking analysis, and traversal over a snapshot of dependency edges.
package depgraph

import (
	"github.com/marktoda/astrotask/internal/types"
)

// edge is an ordered pair recorded in insertion order.
type edge struct {
	dependent  string
	dependency string
}

// Graph is an immutable projection of dependency edges, optionally
// annotated with task statuses for blocking computation. All
// transformation methods return a new Graph; the receiver is never
// mutated.
type Graph struct {
	edges    []edge
	statuses map[string]types.Status // optional; missing entries treated as not-done
}

// New builds a Graph from a snapshot of edges. Edge order is preserved
// for deterministic iteration.
func New(edges []types.Dependency) *Graph {
	g := &Graph{}
	for _, e := range edges {
		g.edges = append(g.edges, edge{dependent: e.Dependent, dependency: e.Dependency})
	}
	return g
}

// WithStatuses returns a copy of g annotated with task statuses, used by
// getTaskDependencyGraph / getExecutableTasks / getBlockedTasks to decide
// whether a dependency is "done". Missing statuses are treated as
// not-done.
func (g *Graph) WithStatuses(statuses map[string]types.Status) *Graph {
	cp := g.clone()
	cp.statuses = make(map[string]types.Status, len(statuses))
	for k, v := range statuses {
		cp.statuses[k] = v
	}
	return cp
}

func (g *Graph) clone() *Graph {
	cp := &Graph{edges: make([]edge, len(g.edges))}
	copy(cp.edges, g.edges)
	if g.statuses != nil {
		cp.statuses = make(map[string]types.Status, len(g.statuses))
		for k, v := range g.statuses {
			cp.statuses[k] = v
		}
	}
	return cp
}

// WithDependency returns a new graph with the edge (dependent, dependency)
// added. Queries never fail on unknown ids; this transformation accepts
// arbitrary ids too, task existence is the caller's responsibility.
func (g *Graph) WithDependency(dependent, dependency string) *Graph {
	cp := g.clone()
	cp.edges = append(cp.edges, edge{dependent: dependent, dependency: dependency})
	return cp
}

// WithoutDependency returns a new graph with every matching edge
// removed (a no-op copy if no such edge exists).
func (g *Graph) WithoutDependency(dependent, dependency string) *Graph {
	cp := &Graph{statuses: g.statuses}
	for _, e := range g.edges {
		if e.dependent == dependent && e.dependency == dependency {
			continue
		}
		cp.edges = append(cp.edges, e)
	}
	return cp
}

// allIDs returns every task id referenced by any edge, in first-seen
// order.
func (g *Graph) allIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range g.edges {
		if !seen[e.dependent] {
			seen[e.dependent] = true
			ids = append(ids, e.dependent)
		}
		if !seen[e.dependency] {
			seen[e.dependency] = true
			ids = append(ids, e.dependency)
		}
	}
	return ids
}

// GetDependencies returns the ids id depends on, in insertion order. A
// copy is always returned.
func (g *Graph) GetDependencies(id string) []string {
	var out []string
	for _, e := range g.edges {
		if e.dependent == id {
			out = append(out, e.dependency)
		}
	}
	return out
}

// GetDependents returns the ids that depend on id, in insertion order. A
// copy is always returned.
func (g *Graph) GetDependents(id string) []string {
	var out []string
	for _, e := range g.edges {
		if e.dependency == id {
			out = append(out, e.dependent)
		}
	}
	return out
}

// statusOf returns the known status for id, or pending if unknown:
// missing status is treated as not-done.
func (g *Graph) statusOf(id string) types.Status {
	if g.statuses == nil {
		return types.StatusPending
	}
	if s, ok := g.statuses[id]; ok {
		return s
	}
	return types.StatusPending
}

// TaskDependencyInfo is the result of GetTaskDependencyGraph.
type TaskDependencyInfo struct {
	ID           string
	Dependencies []string
	Dependents   []string
	IsBlocked    bool
	BlockedBy    []string
}

// GetTaskDependencyGraph returns dependency/dependent lists plus blocking
// info for id. BlockedBy is every dependency whose task is not done
// (missing status treated as not-done).
func (g *Graph) GetTaskDependencyGraph(id string) TaskDependencyInfo {
	deps := g.GetDependencies(id)
	var blockedBy []string
	for _, d := range deps {
		if g.statusOf(d) != types.StatusDone {
			blockedBy = append(blockedBy, d)
		}
	}
	return TaskDependencyInfo{
		ID:           id,
		Dependencies: deps,
		Dependents:   g.GetDependents(id),
		IsBlocked:    len(blockedBy) > 0,
		BlockedBy:    blockedBy,
	}
}

// GetExecutableTasks returns every known id whose status is not done and
// not in-progress, and whose BlockedBy is empty.
func (g *Graph) GetExecutableTasks() []string {
	var out []string
	for _, id := range g.allIDs() {
		s := g.statusOf(id)
		if s == types.StatusDone || s == types.StatusInProgress {
			continue
		}
		info := g.GetTaskDependencyGraph(id)
		if !info.IsBlocked {
			out = append(out, id)
		}
	}
	return out
}

// GetBlockedTasks returns every id with a non-empty BlockedBy.
func (g *Graph) GetBlockedTasks() []string {
	var out []string
	for _, id := range g.allIDs() {
		if g.GetTaskDependencyGraph(id).IsBlocked {
			out = append(out, id)
		}
	}
	return out
}

// CycleReport is the result of FindCycles.
type CycleReport struct {
	HasCycles bool
	Cycles    [][]string
}

// FindCycles runs a DFS with a recursion stack over the dependency-edge
// direction (dependent -> dependency). When a node already on the stack
// is re-encountered, the path slice from that node's first occurrence
// through the current stack back to it is emitted as one cycle.
func (g *Graph) FindCycles() CycleReport {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, dep := range g.GetDependencies(id) {
			if onStack[dep] {
				// Found a back edge: slice the stack from dep's first
				// occurrence through the top, then close the loop.
				idx := indexOf(stack, dep)
				cycle := append([]string{}, stack[idx:]...)
				cycle = append(cycle, dep)
				cycles = append(cycles, cycle)
				continue
			}
			if !visited[dep] {
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
	}

	for _, id := range g.allIDs() {
		if !visited[id] {
			visit(id)
		}
	}

	return CycleReport{HasCycles: len(cycles) > 0, Cycles: cycles}
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// WouldCreateCycle reports whether adding (dependent, dependency) would
// introduce a cycle, by constructing a transient graph with the extra
// edge and running FindCycles.
func (g *Graph) WouldCreateCycle(dependent, dependency string) CycleReport {
	return g.WithDependency(dependent, dependency).FindCycles()
}

// GetTopologicalOrder runs Kahn's algorithm over every id in the graph,
// edges pointing from dependency to dependent, ties broken by insertion
// order.
func (g *Graph) GetTopologicalOrder() ([]string, error) {
	return g.GetTopologicalOrderForTasks(g.allIDs())
}

// GetTopologicalOrderForTasks is GetTopologicalOrder restricted to (and
// ordered consistently with insertion order among) the given ids.
func (g *Graph) GetTopologicalOrderForTasks(ids []string) ([]string, error) {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		inDegree[id] = 0
	}
	// edges point dependency -> dependent; an in-edge on "dependent" comes
	// from each of its dependencies.
	for _, e := range g.edges {
		if inSet[e.dependent] && inSet[e.dependency] {
			inDegree[e.dependent]++
		}
	}

	// Stable order of ids for deterministic tie-breaking.
	order := append([]string{}, ids...)

	var queue []string
	inQueue := make(map[string]bool)
	enqueueReady := func() {
		for _, id := range order {
			if !inQueue[id] && inDegree[id] == 0 {
				queue = append(queue, id)
				inQueue[id] = true
			}
		}
	}
	enqueueReady()

	var result []string
	processed := make(map[string]bool)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if processed[id] {
			continue
		}
		processed[id] = true
		result = append(result, id)

		for _, e := range g.edges {
			if e.dependency == id && inSet[e.dependent] {
				inDegree[e.dependent]--
			}
		}
		enqueueReady()
	}

	if len(result) != len(ids) {
		return nil, types.NewValidation("dependency graph has a cycle; cannot compute topological order")
	}
	return result, nil
}

// Visitor is called during a traversal with the current id and its depth
// from the start node.
type Visitor func(id string, depth int) (cont bool)

// WalkDepthFirst traverses forward (dependent direction: start -> its
// dependents -> ...) starting at startID, calling visitor with the
// current depth. If visitor returns false, that branch is not descended
// further (its dependents are skipped).
func (g *Graph) WalkDepthFirst(startID string, visitor Visitor) {
	visited := make(map[string]bool)
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if visited[id] {
			return
		}
		visited[id] = true
		if !visitor(id, depth) {
			return
		}
		for _, next := range g.GetDependents(id) {
			walk(next, depth+1)
		}
	}
	walk(startID, 0)
}

// WalkBreadthFirst traverses forward (dependent direction) in BFS order.
func (g *Graph) WalkBreadthFirst(startID string, visitor Visitor) {
	type item struct {
		id    string
		depth int
	}
	visited := map[string]bool{startID: true}
	queue := []item{{startID, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !visitor(cur.id, cur.depth) {
			continue
		}
		for _, next := range g.GetDependents(cur.id) {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, item{next, cur.depth + 1})
			}
		}
	}
}

// FindShortestPath returns the shortest forward path (dependent
// direction) from `from` to `to` via BFS, or nil if unreachable. Returns
// []string{from} if from == to.
func (g *Graph) FindShortestPath(from, to string) []string {
	if from == to {
		return []string{from}
	}

	type item struct {
		id   string
		path []string
	}
	visited := map[string]bool{from: true}
	queue := []item{{from, []string{from}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.GetDependents(cur.id) {
			if visited[next] {
				continue
			}
			path := append(append([]string{}, cur.path...), next)
			if next == to {
				return path
			}
			visited[next] = true
			queue = append(queue, item{next, path})
		}
	}
	return nil
}

// Metrics summarizes graph shape for observability.
type Metrics struct {
	TotalNodes      int
	Roots           int // nodes with no dependencies
	Leaves          int // nodes with no dependents
	MaxDepth        int
	AverageDeps     float64
	HasCycles       bool
	StronglyConnect int // in an acyclic graph this equals TotalNodes
}

// GetMetrics computes the summary in Metrics.
func (g *Graph) GetMetrics() Metrics {
	ids := g.allIDs()
	m := Metrics{TotalNodes: len(ids)}
	if len(ids) == 0 {
		return m
	}

	totalDeps := 0
	for _, id := range ids {
		deps := len(g.GetDependencies(id))
		dependents := len(g.GetDependents(id))
		totalDeps += deps
		if deps == 0 {
			m.Roots++
		}
		if dependents == 0 {
			m.Leaves++
		}
		if d := g.CalculateTaskDepth(id); d > m.MaxDepth {
			m.MaxDepth = d
		}
	}
	m.AverageDeps = float64(totalDeps) / float64(len(ids))

	report := g.FindCycles()
	m.HasCycles = report.HasCycles
	if m.HasCycles {
		m.StronglyConnect = countSCCApprox(ids, report.Cycles)
	} else {
		m.StronglyConnect = len(ids)
	}
	return m
}

// countSCCApprox approximates the number of strongly connected components
// by collapsing every id that appears in any reported cycle into a single
// component per cycle, and counting every other id as its own component.
// This is sufficient for observability metrics; it is not used by any
// correctness-critical path (cycle detection itself is exact).
func countSCCApprox(ids []string, cycles [][]string) int {
	inCycle := make(map[string]int) // id -> cycle index
	for i, cyc := range cycles {
		for _, id := range cyc {
			inCycle[id] = i
		}
	}
	seenCycle := make(map[int]bool)
	count := 0
	for _, id := range ids {
		if idx, ok := inCycle[id]; ok {
			if !seenCycle[idx] {
				seenCycle[idx] = true
				count++
			}
			continue
		}
		count++
	}
	return count
}

// CalculateTaskDepth returns the longest chain of dependencies back from
// id (cycle-safe via a visited set).
func (g *Graph) CalculateTaskDepth(id string) int {
	visited := make(map[string]bool)
	var depth func(id string) int
	depth = func(id string) int {
		if visited[id] {
			return 0
		}
		visited[id] = true
		best := 0
		for _, dep := range g.GetDependencies(id) {
			if d := 1 + depth(dep); d > best {
				best = d
			}
		}
		return best
	}
	return depth(id)
}
