package reconcile

import (
	"testing"
	"time"

	"github.com/marktoda/astrotask/internal/types"
)

func TestConsolidateRightBiasedMerge(t *testing.T) {
	titleA := "first"
	titleB := "second"
	descB := "desc"
	ops := []types.PendingOperation{
		types.NewTaskUpdateOp(1, "X", types.TaskUpdate{Title: &titleA}),
		types.NewTaskUpdateOp(2, "X", types.TaskUpdate{Title: &titleB, Description: &descB}),
	}
	out := Consolidate(ops)
	if len(out) != 1 {
		t.Fatalf("Consolidate = %d ops, want 1", len(out))
	}
	u := out[0].(types.TaskUpdateOp)
	if *u.Updates.Title != "second" {
		t.Errorf("Title = %q, want second (later update wins)", *u.Updates.Title)
	}
	if *u.Updates.Description != "desc" {
		t.Errorf("Description = %q, want desc (carried from the later update)", *u.Updates.Description)
	}
}

func TestConsolidateLeavesChildOpsUnmerged(t *testing.T) {
	ops := []types.PendingOperation{
		types.NewChildAddOp(1, "P", "c1", types.Task{ID: "c1", Title: "a"}, 0),
		types.NewChildAddOp(2, "P", "c2", types.Task{ID: "c2", Title: "b"}, 0),
	}
	out := Consolidate(ops)
	if len(out) != 2 {
		t.Errorf("Consolidate = %d ops, want 2 (child_add is never merged)", len(out))
	}
}

func TestOrderPutsUpdatesBeforeAddsBeforeRemoves(t *testing.T) {
	title := "x"
	ops := []types.PendingOperation{
		types.NewChildRemoveOp(1, "P", "old", 1),
		types.NewChildAddOp(2, "P", "new", types.Task{ID: "new"}, 0),
		types.NewTaskUpdateOp(3, "P", types.TaskUpdate{Title: &title}),
	}
	ordered := Order(ops)
	if len(ordered) != 3 {
		t.Fatalf("Order = %d ops, want 3", len(ordered))
	}
	if _, ok := ordered[0].(types.TaskUpdateOp); !ok {
		t.Errorf("ordered[0] = %T, want TaskUpdateOp", ordered[0])
	}
	if _, ok := ordered[1].(types.ChildAddOp); !ok {
		t.Errorf("ordered[1] = %T, want ChildAddOp", ordered[1])
	}
	if _, ok := ordered[2].(types.ChildRemoveOp); !ok {
		t.Errorf("ordered[2] = %T, want ChildRemoveOp", ordered[2])
	}
}

func TestOrderChildAddsByParentDepthAscending(t *testing.T) {
	ops := []types.PendingOperation{
		types.NewChildAddOp(1, "P-A", "grandchild", types.Task{ID: "grandchild"}, 1),
		types.NewChildAddOp(2, "P", "child", types.Task{ID: "child"}, 0),
	}
	ordered := Order(ops)
	first := ordered[0].(types.ChildAddOp)
	if first.ChildID != "child" {
		t.Errorf("first child_add = %q, want the shallower parent's child first", first.ChildID)
	}
}

func TestOrderChildRemovesByDepthDescending(t *testing.T) {
	ops := []types.PendingOperation{
		types.NewChildRemoveOp(1, "P", "shallow", 1),
		types.NewChildRemoveOp(2, "P-A", "deep", 2),
	}
	ordered := Order(ops)
	first := ordered[0].(types.ChildRemoveOp)
	if first.ChildID != "deep" {
		t.Errorf("first child_remove = %q, want the deepest node pruned first", first.ChildID)
	}
}

func TestNormalizeChildAddDates(t *testing.T) {
	now := time.Now()
	ops := []types.PendingOperation{
		types.NewChildAddOp(1, "P", "c", types.Task{ID: "c"}, 0),
	}
	out := NormalizeChildAddDates(ops, now)
	add := out[0].(types.ChildAddOp)
	if add.ChildTask.CreatedAt.IsZero() || add.ChildTask.UpdatedAt.IsZero() {
		t.Error("expected zero-value timestamps to be normalized to now")
	}
}
