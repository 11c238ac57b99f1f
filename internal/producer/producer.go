// Package producer defines the pluggable contracts external task
// generators and analyzers must honor. LLM-driven generation and
// complexity analysis live outside the core; this package only fixes
// the shape a producer/analyzer plugs into, plus a helper to attach a
// produced subtree to a live tracking tree.
package producer

import (
	"context"

	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/types"
)

// Subtree is a new, not-yet-attached subtree of tasks a TaskProducer
// builds from a PRD. Tasks is flat, depth-first, parent-before-child
// order; every id is provisional (assigned by the producer, replaced by
// a stable id at the next reconciliation flush). Root identifies which
// entry in Tasks is the subtree's own root.
type Subtree struct {
	Root  string
	Tasks []types.Task
}

// TaskProducer reads a PRD/description and returns a subtree of new
// tasks to attach under a parent. Implementations assign their own
// provisional ids to every node.
type TaskProducer interface {
	Produce(ctx context.Context, prd string) (Subtree, error)
}

// TaskAnalyzer scores a task's complexity/priority, returning a
// suggested TaskUpdate. The update is never applied directly — the
// caller decides whether and how to fold it into a WithTask call.
type TaskAnalyzer interface {
	Analyze(ctx context.Context, t types.Task) (types.TaskUpdate, error)
}

// childrenOf indexes sub.Tasks by ParentID for AttachSubtree's
// depth-first walk.
func childrenOf(sub Subtree) map[string][]types.Task {
	byParent := make(map[string][]types.Task)
	for _, t := range sub.Tasks {
		byParent[t.ParentID] = append(byParent[t.ParentID], t)
	}
	return byParent
}

// AttachSubtree grafts sub onto tt under parentID: it walks sub
// depth-first, parent before child, calling tt.AddChild for every node
// so each child_add is recorded against a parent already present in the
// live tree (the ordering AddChild itself requires). The subtree's own
// root is attached directly under parentID regardless of what ParentID
// the producer set on it.
func AttachSubtree(tt *tasktree.Tracking, parentID string, sub Subtree) error {
	if len(sub.Tasks) == 0 {
		return nil
	}
	byParent := childrenOf(sub)

	var root types.Task
	found := false
	for _, t := range sub.Tasks {
		if t.ID == sub.Root {
			root, found = t, true
			break
		}
	}
	if !found {
		return types.NewValidation("producer: subtree root %q not present among its tasks", sub.Root)
	}

	var walk func(parent string, task types.Task) error
	walk = func(parent string, task types.Task) error {
		if err := tt.AddChild(parent, task); err != nil {
			return err
		}
		for _, child := range byParent[task.ID] {
			if err := walk(task.ID, child); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(parentID, root)
}
