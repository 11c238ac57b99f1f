package depgraph

import (
	"reflect"
	"testing"

	"github.com/marktoda/astrotask/internal/types"
)

func linear() *Graph {
	// B depends on A, C depends on B: A <- B <- C (C is the most "blocked").
	return New([]types.Dependency{
		{Dependent: "B", Dependency: "A"},
		{Dependent: "C", Dependency: "B"},
	})
}

func TestGetDependenciesAndDependents(t *testing.T) {
	g := linear()
	if got := g.GetDependencies("B"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("GetDependencies(B) = %v", got)
	}
	if got := g.GetDependents("B"); !reflect.DeepEqual(got, []string{"C"}) {
		t.Errorf("GetDependents(B) = %v", got)
	}
	if got := g.GetDependencies("A"); got != nil {
		t.Errorf("GetDependencies(A) = %v, want nil", got)
	}
}

func TestGetTaskDependencyGraphBlocking(t *testing.T) {
	g := linear().WithStatuses(map[string]types.Status{
		"A": types.StatusPending,
		"B": types.StatusPending,
		"C": types.StatusPending,
	})
	info := g.GetTaskDependencyGraph("B")
	if !info.IsBlocked || !reflect.DeepEqual(info.BlockedBy, []string{"A"}) {
		t.Errorf("GetTaskDependencyGraph(B) = %+v, want blocked by [A]", info)
	}

	done := linear().WithStatuses(map[string]types.Status{"A": types.StatusDone})
	info2 := done.GetTaskDependencyGraph("B")
	if info2.IsBlocked {
		t.Errorf("expected B unblocked once A is done, got %+v", info2)
	}
}

func TestGetExecutableAndBlockedTasks(t *testing.T) {
	g := linear().WithStatuses(map[string]types.Status{
		"A": types.StatusDone,
		"B": types.StatusPending,
		"C": types.StatusPending,
	})
	exec := g.GetExecutableTasks()
	if !reflect.DeepEqual(exec, []string{"B"}) {
		t.Errorf("GetExecutableTasks = %v, want [B] (A is done, C is blocked)", exec)
	}
	blocked := g.GetBlockedTasks()
	if !reflect.DeepEqual(blocked, []string{"C"}) {
		t.Errorf("GetBlockedTasks = %v, want [C]", blocked)
	}
}

func TestFindCyclesNone(t *testing.T) {
	g := linear()
	if report := g.FindCycles(); report.HasCycles {
		t.Errorf("expected no cycles, got %+v", report)
	}
}

func TestFindCyclesDetected(t *testing.T) {
	g := New([]types.Dependency{
		{Dependent: "A", Dependency: "B"},
		{Dependent: "B", Dependency: "C"},
		{Dependent: "C", Dependency: "A"},
	})
	report := g.FindCycles()
	if !report.HasCycles || len(report.Cycles) == 0 {
		t.Fatalf("expected a cycle, got %+v", report)
	}
}

func TestWouldCreateCycleReportsMembers(t *testing.T) {
	// T2 depends on T1, T3 depends on T2; proposing T1 -> T3 closes the loop.
	g := New([]types.Dependency{
		{Dependent: "T2", Dependency: "T1"},
		{Dependent: "T3", Dependency: "T2"},
	})
	report := g.WouldCreateCycle("T1", "T3")
	if !report.HasCycles || len(report.Cycles) == 0 {
		t.Fatalf("expected a cycle, got %+v", report)
	}
	members := map[string]bool{}
	for _, id := range report.Cycles[0] {
		members[id] = true
	}
	for _, want := range []string{"T1", "T2", "T3"} {
		if !members[want] {
			t.Errorf("cycle %v missing member %q", report.Cycles[0], want)
		}
	}
}

func TestWouldCreateCycle(t *testing.T) {
	g := linear()
	if report := g.WouldCreateCycle("A", "C"); !report.HasCycles {
		t.Error("expected adding A->C to create a cycle (C already transitively depends on A via B)")
	}
	if report := g.WouldCreateCycle("D", "A"); report.HasCycles {
		t.Error("did not expect D->A to create a cycle")
	}
}

func TestGetTopologicalOrder(t *testing.T) {
	g := linear()
	order, err := g.GetTopologicalOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if pos["A"] >= pos["B"] || pos["B"] >= pos["C"] {
		t.Errorf("topological order %v does not respect A before B before C", order)
	}
}

func TestGetTopologicalOrderCycleError(t *testing.T) {
	g := New([]types.Dependency{
		{Dependent: "A", Dependency: "B"},
		{Dependent: "B", Dependency: "A"},
	})
	if _, err := g.GetTopologicalOrder(); err == nil {
		t.Error("expected error computing topological order over a cyclic graph")
	}
}

func TestWalkDepthFirst(t *testing.T) {
	g := linear()
	var visitedOrder []string
	g.WalkDepthFirst("A", func(id string, depth int) bool {
		visitedOrder = append(visitedOrder, id)
		return true
	})
	if !reflect.DeepEqual(visitedOrder, []string{"A", "B", "C"}) {
		t.Errorf("WalkDepthFirst order = %v, want [A B C]", visitedOrder)
	}
}

func TestWalkBreadthFirst(t *testing.T) {
	g := linear()
	var visitedOrder []string
	g.WalkBreadthFirst("A", func(id string, depth int) bool {
		visitedOrder = append(visitedOrder, id)
		return true
	})
	if !reflect.DeepEqual(visitedOrder, []string{"A", "B", "C"}) {
		t.Errorf("WalkBreadthFirst order = %v, want [A B C]", visitedOrder)
	}
}

func TestFindShortestPath(t *testing.T) {
	g := linear()
	path := g.FindShortestPath("A", "C")
	if !reflect.DeepEqual(path, []string{"A", "B", "C"}) {
		t.Errorf("FindShortestPath(A,C) = %v, want [A B C]", path)
	}
	if g.FindShortestPath("C", "A") != nil {
		t.Error("expected no path from C to A (wrong direction)")
	}
	if got := g.FindShortestPath("A", "A"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("FindShortestPath(A,A) = %v, want [A]", got)
	}
}

func TestGetMetrics(t *testing.T) {
	g := linear()
	m := g.GetMetrics()
	if m.TotalNodes != 3 {
		t.Errorf("TotalNodes = %d, want 3", m.TotalNodes)
	}
	if m.Roots != 1 || m.Leaves != 1 {
		t.Errorf("Roots=%d Leaves=%d, want 1 and 1", m.Roots, m.Leaves)
	}
	if m.HasCycles {
		t.Error("expected HasCycles = false")
	}
	if m.StronglyConnect != 3 {
		t.Errorf("StronglyConnect = %d, want 3 for an acyclic graph", m.StronglyConnect)
	}
}

func TestCalculateTaskDepth(t *testing.T) {
	g := linear()
	if d := g.CalculateTaskDepth("A"); d != 0 {
		t.Errorf("depth(A) = %d, want 0", d)
	}
	if d := g.CalculateTaskDepth("C"); d != 2 {
		t.Errorf("depth(C) = %d, want 2", d)
	}
}

func TestWithAndWithoutDependency(t *testing.T) {
	g := New(nil)
	g2 := g.WithDependency("X", "Y")
	if got := g2.GetDependencies("X"); !reflect.DeepEqual(got, []string{"Y"}) {
		t.Errorf("after WithDependency, GetDependencies(X) = %v", got)
	}
	if got := g.GetDependencies("X"); got != nil {
		t.Error("original graph must not be mutated by WithDependency")
	}
	g3 := g2.WithoutDependency("X", "Y")
	if got := g3.GetDependencies("X"); got != nil {
		t.Errorf("after WithoutDependency, GetDependencies(X) = %v, want nil", got)
	}
}
