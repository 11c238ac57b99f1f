// Package availability implements the effective-status, blocking, and
// next-task read services: pure functions over a materialized task tree
// plus a dependency graph snapshot.
package availability

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/marktoda/astrotask/internal/depgraph"
	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/types"
)

// Service answers availability and next-task questions over a fixed
// snapshot of a tree and its dependency graph. It holds no mutable
// state; build a new Service after every flush.
type Service struct {
	tree  *tasktree.Tree
	graph *depgraph.Graph
}

// New builds a Service over tree and graph. The graph is re-annotated
// with each tree task's own status so blocking analysis reflects the
// materialized tree; ids the tree does not know stay status-less and
// count as not-done.
func New(tree *tasktree.Tree, graph *depgraph.Graph) *Service {
	statuses := make(map[string]types.Status)
	tree.WalkDepthFirst(tree.GetRoot(), func(id string, depth int) bool {
		if task, ok := tree.Task(id); ok {
			statuses[id] = task.Status
		}
		return true
	})
	return &Service{tree: tree, graph: graph.WithStatuses(statuses)}
}

// TaskContext is the result of GetTaskWithContext.
type TaskContext struct {
	ID           string
	Task         types.Task
	Ancestors    []string
	Descendants  []string
	Root         string
	Dependencies []string
	Dependents   []string
	IsBlocked    bool
	BlockedBy    []string
}

// GetTaskWithContext gathers id's ancestors, descendants, root,
// dependencies, dependents, and blocking info. The independent lookups
// run concurrently via errgroup, since none depends on another's result
// and all are pure reads over immutable snapshots.
func (s *Service) GetTaskWithContext(ctx context.Context, id string) (TaskContext, bool) {
	task, ok := s.tree.Task(id)
	if !ok {
		return TaskContext{}, false
	}

	tc := TaskContext{ID: id, Task: task, Root: s.tree.GetRoot()}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		path := s.tree.GetPath(id)
		if len(path) > 0 {
			tc.Ancestors = path[:len(path)-1]
		}
		return nil
	})
	g.Go(func() error {
		tc.Descendants = s.tree.GetAllDescendants(id)
		return nil
	})
	g.Go(func() error {
		info := s.graph.GetTaskDependencyGraph(id)
		tc.Dependencies = info.Dependencies
		tc.Dependents = info.Dependents
		tc.IsBlocked = info.IsBlocked
		tc.BlockedBy = info.BlockedBy
		return nil
	})
	_ = g.Wait() // every Go func above is infallible

	return tc, true
}

func (s *Service) effectiveStatus(id string) types.Status {
	eff, err := s.tree.GetEffectiveStatus(id)
	if err != nil {
		return types.StatusPending
	}
	return eff
}

func (s *Service) isAvailable(id string) bool {
	eff := s.effectiveStatus(id)
	if eff == types.StatusDone || eff == types.StatusCancelled || eff == types.StatusArchived {
		return false
	}
	return !s.graph.GetTaskDependencyGraph(id).IsBlocked
}

// GetAvailableTasks returns every id matching filter whose effective
// status is not in {done, cancelled, archived} and whose blockedBy is
// empty.
func (s *Service) GetAvailableTasks(filter store.TaskFilter) []string {
	var out []string
	s.tree.WalkDepthFirst(s.tree.GetRoot(), func(id string, depth int) bool {
		task, ok := s.tree.Task(id)
		if ok && filter.Matches(task) && s.isAvailable(id) {
			out = append(out, id)
		}
		return true
	})
	return out
}

// GetNextTask returns the available task (per filter) with the highest
// priority score, ties broken by lexicographic id order.
func (s *Service) GetNextTask(filter store.TaskFilter) (string, bool) {
	available := s.GetAvailableTasks(filter)
	if len(available) == 0 {
		return "", false
	}
	sort.Slice(available, func(i, j int) bool {
		ti, _ := s.tree.Task(available[i])
		tj, _ := s.tree.Task(available[j])
		if ti.PriorityScore != tj.PriorityScore {
			return ti.PriorityScore > tj.PriorityScore
		}
		return available[i] < available[j]
	})
	return available[0], true
}
