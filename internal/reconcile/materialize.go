package reconcile

import (
	"context"

	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/types"
)

// Materialize loads every task reachable from rootID (via the parent
// relation) out of st and builds a fresh tree. This is how a tree is
// constructed from store data.
func Materialize(ctx context.Context, st store.Store, rootID string) (*tasktree.Tree, error) {
	all, err := st.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]types.Task, len(all))
	childrenOf := make(map[string][]string)
	for _, t := range all {
		byID[t.ID] = t
		if t.ParentID != "" {
			childrenOf[t.ParentID] = append(childrenOf[t.ParentID], t.ID)
		}
	}

	if _, ok := byID[rootID]; !ok {
		return nil, types.NewNotFound("task", rootID)
	}

	var subtree []types.Task
	queue := []string{rootID}
	seen := map[string]bool{rootID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		subtree = append(subtree, byID[id])
		for _, c := range childrenOf[id] {
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}

	return tasktree.New(subtree, rootID)
}
