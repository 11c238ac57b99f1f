package tasktree

import (
	"testing"

	"github.com/marktoda/astrotask/internal/depgraph"
	"github.com/marktoda/astrotask/internal/types"
)

func buildTracking(t *testing.T) *Tracking {
	t.Helper()
	tasks := []types.Task{
		task("P", "", types.StatusPending),
		task("P-A", "P", types.StatusPending),
		task("P-B", "P", types.StatusPending),
	}
	tree, err := New(tasks, "P")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return NewTracking(tree, &types.SeqCounter{})
}

func TestWithTaskRecordsAndApplies(t *testing.T) {
	tt := buildTracking(t)
	title := "renamed"
	if err := tt.WithTask("P-A", types.TaskUpdate{Title: &title}); err != nil {
		t.Fatalf("WithTask: %v", err)
	}
	got, _ := tt.Tree().Task("P-A")
	if got.Title != "renamed" {
		t.Errorf("Title = %q, want renamed", got.Title)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be stamped")
	}
	if !tt.HasPendingChanges("P") {
		t.Error("expected pending changes under P after mutating P-A")
	}
}

func TestAddChildAndRemoveChild(t *testing.T) {
	tt := buildTracking(t)
	child := types.Task{ID: "tmp-1", Title: "new", Status: types.StatusPending}
	if err := tt.AddChild("P-A", child); err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if got := tt.Tree().GetChildren("P-A"); len(got) != 1 || got[0] != "tmp-1" {
		t.Errorf("GetChildren(P-A) = %v, want [tmp-1]", got)
	}
	ops := tt.PendingOperations()
	foundAdd := false
	for _, op := range ops {
		if add, ok := op.(types.ChildAddOp); ok && add.ChildID == "tmp-1" {
			foundAdd = true
		}
	}
	if !foundAdd {
		t.Error("expected a ChildAddOp for tmp-1")
	}

	if err := tt.RemoveChild("P-A", "tmp-1"); err != nil {
		t.Fatalf("RemoveChild: %v", err)
	}
	if got := tt.Tree().GetChildren("P-A"); len(got) != 0 {
		t.Errorf("GetChildren(P-A) after remove = %v, want empty", got)
	}
	if tt.Tree().Has("tmp-1") {
		t.Error("tmp-1 should no longer exist in the tree")
	}
}

func TestMarkDoneCascade(t *testing.T) {
	tasks := []types.Task{
		task("P", "", types.StatusPending),
		task("P-A", "P", types.StatusPending),
		task("P-B", "P", types.StatusDone),
	}
	tree, err := New(tasks, "P")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tt := NewTracking(tree, &types.SeqCounter{})
	if err := tt.MarkDone("P", true); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	a, _ := tt.Tree().Task("P-A")
	if a.Status != types.StatusDone {
		t.Errorf("P-A status = %q, want done after cascade", a.Status)
	}
}

func TestMarkCancelledNeverOverwritesDone(t *testing.T) {
	tasks := []types.Task{
		task("P", "", types.StatusInProgress),
		task("P-A", "P", types.StatusDone),
		task("P-B", "P", types.StatusPending),
	}
	tree, err := New(tasks, "P")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tt := NewTracking(tree, &types.SeqCounter{})
	if err := tt.MarkCancelled("P", true); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	a, _ := tt.Tree().Task("P-A")
	if a.Status != types.StatusDone {
		t.Errorf("P-A status = %q, want done (cascading cancel must not overwrite done)", a.Status)
	}
	b, _ := tt.Tree().Task("P-B")
	if b.Status != types.StatusCancelled {
		t.Errorf("P-B status = %q, want cancelled", b.Status)
	}
}

func TestAvailabilityAndNextTask(t *testing.T) {
	// T1 done, T2 pending dep=[T1] score=60, T3 pending dep=[T4] score=80, T4 pending (default score).
	tasks := []types.Task{
		task("ROOT", "", types.StatusPending),
		{ID: "T1", ParentID: "ROOT", Title: "T1", Status: types.StatusDone},
		{ID: "T2", ParentID: "ROOT", Title: "T2", Status: types.StatusPending, PriorityScore: 60},
		{ID: "T3", ParentID: "ROOT", Title: "T3", Status: types.StatusPending, PriorityScore: 80},
		{ID: "T4", ParentID: "ROOT", Title: "T4", Status: types.StatusPending, PriorityScore: types.DefaultPriorityScore},
	}
	tree, err := New(tasks, "ROOT")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seq := &types.SeqCounter{}
	tt := NewTracking(tree, seq)

	// ROOT itself is blocked so next-task selection falls through to the
	// children.
	g := depgraph.New([]types.Dependency{
		{Dependent: "T2", Dependency: "T1"},
		{Dependent: "T3", Dependency: "T4"},
		{Dependent: "ROOT", Dependency: "T4"},
	})
	tt.WithDependencyGraph(depgraph.NewTracking(g, seq))

	if tt.IsBlocked("T2") {
		t.Error("T2 should not be blocked: its only dependency T1 is done")
	}
	if !tt.IsBlocked("T3") {
		t.Error("T3 should be blocked: its dependency T4 is pending")
	}

	next, ok := tt.GetNextAvailableTask("ROOT")
	if !ok {
		t.Fatal("expected a next available task")
	}
	if next != "T2" {
		t.Errorf("GetNextAvailableTask(ROOT) = %q, want T2 (score 60 > T4's default 50; T3 blocked)", next)
	}
}

func TestStartWorkAndCompleteAndStartNext(t *testing.T) {
	tasks := []types.Task{
		task("P", "", types.StatusPending),
		task("P-A", "P", types.StatusPending),
		task("P-B", "P", types.StatusPending),
	}
	tree, err := New(tasks, "P")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tt := NewTracking(tree, &types.SeqCounter{})

	ok, err := tt.StartWork("P-A")
	if err != nil || !ok {
		t.Fatalf("StartWork(P-A) = (%v, %v), want (true, nil)", ok, err)
	}
	a, _ := tt.Tree().Task("P-A")
	if a.Status != types.StatusInProgress {
		t.Errorf("P-A status = %q, want in-progress", a.Status)
	}

	started, err := tt.CompleteAndStartNext("P-A")
	if err != nil {
		t.Fatalf("CompleteAndStartNext: %v", err)
	}
	_ = started // P-A has no children; nothing to start
	a2, _ := tt.Tree().Task("P-A")
	if a2.Status != types.StatusDone {
		t.Errorf("P-A status = %q, want done", a2.Status)
	}
}

func TestStartWorkBlocked(t *testing.T) {
	tasks := []types.Task{
		task("P", "", types.StatusPending),
		task("X", "P", types.StatusPending),
		task("Y", "P", types.StatusPending),
	}
	tree, err := New(tasks, "P")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seq := &types.SeqCounter{}
	tt := NewTracking(tree, seq)
	g := depgraph.New([]types.Dependency{{Dependent: "X", Dependency: "Y"}})
	tt.WithDependencyGraph(depgraph.NewTracking(g, seq))

	ok, err := tt.StartWork("X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("StartWork(X) should fail while Y is pending")
	}
	x, _ := tt.Tree().Task("X")
	if x.Status != types.StatusPending {
		t.Errorf("X status = %q, want unchanged pending", x.Status)
	}
}
