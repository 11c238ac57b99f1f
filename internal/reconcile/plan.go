// Package reconcile implements the consolidation, ordering, and
// submission algorithms that turn a tracking tree's pending operations
// into a ReconciliationPlan the Store can apply atomically.
package reconcile

import (
	"sort"
	"time"

	"github.com/marktoda/astrotask/internal/types"
)

// Consolidate merges every task_update operation targeting the same task
// id into one, in ascending sequence order (right-biased field merge:
// later operations overwrite earlier field values for the same key).
// child_add and child_remove operations pass through unmerged. The
// relative order of distinct task ids' first update is preserved; final
// positioning is decided by Order.
func Consolidate(ops []types.PendingOperation) []types.PendingOperation {
	sorted := append([]types.PendingOperation{}, ops...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Sequence() < sorted[j].Sequence() })

	order := []string{}
	merged := make(map[string]types.TaskUpdateOp)
	var others []types.PendingOperation

	for _, op := range sorted {
		u, ok := op.(types.TaskUpdateOp)
		if !ok {
			others = append(others, op)
			continue
		}
		existing, seen := merged[u.TaskID]
		if !seen {
			order = append(order, u.TaskID)
			merged[u.TaskID] = u
			continue
		}
		mergedUpdate := existing.Updates.Merge(u.Updates)
		merged[u.TaskID] = types.NewTaskUpdateOp(u.Sequence(), u.TaskID, mergedUpdate)
	}

	out := make([]types.PendingOperation, 0, len(order)+len(others))
	for _, id := range order {
		out = append(out, merged[id])
	}
	return append(out, others...)
}

// Order produces the final submission order:
//  1. consolidated task_updates, by sequence ascending;
//  2. child_adds, by parent depth ascending (parents before new
//     grandchildren), ties broken by sequence;
//  3. child_removes, by child depth descending (deepest first), ties
//     broken by sequence.
func Order(ops []types.PendingOperation) []types.PendingOperation {
	var updates, adds, removes []types.PendingOperation
	for _, op := range ops {
		switch op.(type) {
		case types.TaskUpdateOp:
			updates = append(updates, op)
		case types.ChildAddOp:
			adds = append(adds, op)
		case types.ChildRemoveOp:
			removes = append(removes, op)
		}
	}

	sort.SliceStable(updates, func(i, j int) bool { return updates[i].Sequence() < updates[j].Sequence() })
	sort.SliceStable(adds, func(i, j int) bool {
		ai, aj := adds[i].(types.ChildAddOp), adds[j].(types.ChildAddOp)
		if ai.ParentDepth != aj.ParentDepth {
			return ai.ParentDepth < aj.ParentDepth
		}
		return ai.Sequence() < aj.Sequence()
	})
	sort.SliceStable(removes, func(i, j int) bool {
		ri, rj := removes[i].(types.ChildRemoveOp), removes[j].(types.ChildRemoveOp)
		if ri.ChildDepth != rj.ChildDepth {
			return ri.ChildDepth > rj.ChildDepth
		}
		return ri.Sequence() < rj.Sequence()
	})

	out := make([]types.PendingOperation, 0, len(updates)+len(adds)+len(removes))
	out = append(out, updates...)
	out = append(out, adds...)
	out = append(out, removes...)
	return out
}

// NormalizeChildAddDates coerces the CreatedAt/UpdatedAt of every
// child_add's carried task to valid timestamps before the plan is
// emitted.
func NormalizeChildAddDates(ops []types.PendingOperation, now time.Time) []types.PendingOperation {
	out := make([]types.PendingOperation, len(ops))
	for i, op := range ops {
		add, ok := op.(types.ChildAddOp)
		if !ok {
			out[i] = op
			continue
		}
		add.ChildTask.CreatedAt = types.NormalizeTimestamp(add.ChildTask.CreatedAt, now)
		add.ChildTask.UpdatedAt = types.NormalizeTimestamp(add.ChildTask.UpdatedAt, now)
		out[i] = add
	}
	return out
}
