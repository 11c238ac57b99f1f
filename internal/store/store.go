// Package store defines the abstract persistence contract the core
// depends on. The core never assumes a particular backend; this package
// also ships two reference implementations used by tests and small
// deployments: memstore (in-process map) and filestore
// (JSON-file-backed, fsnotify-watched).
package store

import (
	"context"

	"github.com/marktoda/astrotask/internal/types"
)

// TaskFilter narrows ListTasks / GetAvailableTasks queries. Zero-valued
// fields are unconstrained.
type TaskFilter struct {
	Status   []types.Status
	ParentID *string // nil: no constraint; pointer to "" selects roots
	MinScore *int
}

// Matches reports whether task satisfies the filter.
func (f TaskFilter) Matches(task types.Task) bool {
	if len(f.Status) > 0 {
		ok := false
		for _, s := range f.Status {
			if task.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.ParentID != nil && task.ParentID != *f.ParentID {
		return false
	}
	if f.MinScore != nil && task.PriorityScore < *f.MinScore {
		return false
	}
	return true
}

// ReconciliationPlan is the consolidated, ordered batch submitted to
// ExecuteReconciliationOperations.
type ReconciliationPlan struct {
	TreeID      string
	BaseVersion int
	Operations  []types.PendingOperation
}

// ReconciliationResult is returned by a successful
// ExecuteReconciliationOperations call: the provisional-to-stable id
// mapping produced by applying any child_add operations. It does not
// list the nodes the plan touched; callers re-materialize the tree.
type ReconciliationResult struct {
	IDMappings map[string]string
}

// Store is the persistence contract the core requires. The core
// treats every failure from this interface as grounds for a
// KindReconciliation (or, for the CRUD methods used outside a flush,
// KindNotFound/KindInternal) error; it never retries automatically.
type Store interface {
	AddTask(ctx context.Context, create types.CreateTask) (types.Task, error)
	GetTask(ctx context.Context, id string) (*types.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]types.Task, error)
	UpdateTask(ctx context.Context, id string, updates types.TaskUpdate) (*types.Task, error)
	DeleteTask(ctx context.Context, id string, cascade bool) (bool, error)

	ListContextSlices(ctx context.Context, taskID string) ([]types.ContextSlice, error)

	AddDependency(ctx context.Context, dependent, dependency string) error
	RemoveDependency(ctx context.Context, dependent, dependency string) error
	ListDependencies(ctx context.Context) ([]types.Dependency, error)

	ExecuteReconciliationOperations(ctx context.Context, plan ReconciliationPlan) (ReconciliationResult, error)
}
