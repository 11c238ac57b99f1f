package reconcile

import (
	"context"
	"time"

	"github.com/marktoda/astrotask/internal/depgraph"
	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/types"
)

// DependencyReconciler is the narrow surface FlushDependencyGraph needs
// from a Store to submit pending edge operations one at a time.
// store.Store satisfies this.
type DependencyReconciler interface {
	AddDependency(ctx context.Context, dependent, dependency string) error
	RemoveDependency(ctx context.Context, dependent, dependency string) error
}

// FlushTaskTree collects tt's pending operations, consolidates and
// orders them, and submits the resulting plan to st. On success
// it clears tt's pending operations, advances its baseVersion, and
// returns the freshly materialized tree plus the provisional-to-stable
// id mapping. On failure tt is left untouched so the caller can retry.
func FlushTaskTree(ctx context.Context, tt *tasktree.Tracking, st store.Store, treeID string) (*tasktree.Tree, map[string]string, error) {
	ops := tt.PendingOperations()
	if len(ops) == 0 {
		fresh, err := Materialize(ctx, st, treeID)
		if err != nil {
			return nil, nil, err
		}
		return fresh, map[string]string{}, nil
	}

	ordered := Order(Consolidate(ops))
	ordered = NormalizeChildAddDates(ordered, time.Now())

	plan := store.ReconciliationPlan{TreeID: treeID, BaseVersion: tt.BaseVersion(), Operations: ordered}
	result, err := st.ExecuteReconciliationOperations(ctx, plan)
	if err != nil {
		return nil, nil, err
	}

	tt.ClearPending(len(ops))
	fresh, err := Materialize(ctx, st, treeID)
	if err != nil {
		return nil, nil, err
	}
	return fresh, result.IDMappings, nil
}

// FlushDependencyGraph submits tdg's pending edge operations one at a
// time to dr, in recorded order. On the first failure it raises a
// reconciliation error carrying the full attempted list and the subset
// actually applied; operations already applied before the failure
// are not retried by the caller, matching the Store's own CRUD
// semantics (each edge call is independently committed).
func FlushDependencyGraph(ctx context.Context, tdg *depgraph.Tracking, dr DependencyReconciler) (*depgraph.Tracking, error) {
	ops := tdg.PendingOperations()
	if len(ops) == 0 {
		_, cleared := tdg.Flush(tdg.Snapshot())
		return cleared, nil
	}

	var applied []types.PendingOperation
	for _, op := range ops {
		switch o := op.(type) {
		case types.DependencyAddOp:
			if err := dr.AddDependency(ctx, o.Dependent, o.Dependency); err != nil {
				return nil, types.NewReconciliation(err, ops, applied)
			}
		case types.DependencyRemoveOp:
			if err := dr.RemoveDependency(ctx, o.Dependent, o.Dependency); err != nil {
				return nil, types.NewReconciliation(err, ops, applied)
			}
		}
		applied = append(applied, op)
	}

	snapshot := tdg.Snapshot()
	_, cleared := tdg.Flush(snapshot)
	return cleared, nil
}

// FlushWithDependencies implements the joint flush: flush the
// task tree first, rewrite pending dependency operations through the
// resulting id mappings, flush the dependency graph, and recompute
// availableSubtasks against the refreshed state. If either phase fails,
// its reconciliation error surfaces the unsubmitted half; the caller
// keeps whichever of tt/tdg did not yet flush for retry.
func FlushWithDependencies(
	ctx context.Context,
	tt *tasktree.Tracking,
	tdg *depgraph.Tracking,
	st store.Store,
	dr DependencyReconciler,
	treeID string,
) (*tasktree.Tracking, []string, error) {
	freshTree, idMappings, err := FlushTaskTree(ctx, tt, st, treeID)
	if err != nil {
		return nil, nil, err
	}

	remapped := tdg.ApplyIDMappings(idMappings)
	clearedGraph, err := FlushDependencyGraph(ctx, remapped, dr)
	if err != nil {
		return nil, nil, err
	}

	newTT := tasktree.NewTracking(freshTree, tt.Seq())
	newTT.WithDependencyGraph(clearedGraph)
	available := newTT.GetAvailableSubtasks(freshTree.GetRoot())
	return newTT, available, nil
}
