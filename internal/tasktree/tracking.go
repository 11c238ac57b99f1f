package tasktree

import (
	"sort"
	"time"

	"github.com/marktoda/astrotask/internal/depgraph"
	"github.com/marktoda/astrotask/internal/types"
)

// Tracking wraps a Tree and mutates it in place, recording each mutation
// as a PendingOperation against the affected node's id. Queries run
// against the live, already-mutated Tree; there is no separate snapshot
// step the way depgraph.Tracking has one.
type Tracking struct {
	tree        *Tree
	pending     map[string][]types.PendingOperation // node id -> ops recorded against it
	seq         *types.SeqCounter
	baseVersion int
	depGraph    *depgraph.Tracking
}

// NewTracking wraps tree for optimistic mutation. seq should be shared
// with any depgraph.Tracking attached via WithDependencyGraph so
// operations from both interleave in one monotonic order.
func NewTracking(tree *Tree, seq *types.SeqCounter) *Tracking {
	if seq == nil {
		seq = &types.SeqCounter{}
	}
	return &Tracking{tree: tree, pending: make(map[string][]types.PendingOperation), seq: seq}
}

// Tree exposes the live, read-only view for navigation/traversal methods.
func (tt *Tracking) Tree() *Tree { return tt.tree }

// BaseVersion returns the count of operations successfully flushed so far.
func (tt *Tracking) BaseVersion() int { return tt.baseVersion }

// Seq returns the sequence counter shared with any attached
// depgraph.Tracking, so a freshly-materialized Tracking built after
// a flush can keep ordering operations from both in one monotonic line.
func (tt *Tracking) Seq() *types.SeqCounter { return tt.seq }

func (tt *Tracking) record(id string, op types.PendingOperation) {
	tt.pending[id] = append(tt.pending[id], op)
}

// WithDependencyGraph attaches a depgraph.Tracking so dependency
// convenience methods (DependsOn, BlockedBy, ...) and availability
// queries (IsBlocked, CanStart, ...) have something to consult.
func (tt *Tracking) WithDependencyGraph(tdg *depgraph.Tracking) {
	tt.depGraph = tdg
}

// DependencyGraph returns the attached tracking graph, or nil if none has
// been attached.
func (tt *Tracking) DependencyGraph() *depgraph.Tracking { return tt.depGraph }

// WithTask merges updates into id's task in place and records a
// task_update operation. createdAt/updatedAt are left as given by the
// caller when set; updatedAt defaults to now when the caller leaves it
// nil. No other timestamp coercion happens here: the update payload is
// already typed, and types.NormalizeTimestamp is applied only to
// child_add tasks (by reconcile.NormalizeChildAddDates and by the
// stores when they insert a new child).
func (tt *Tracking) WithTask(id string, updates types.TaskUpdate) error {
	e, ok := tt.tree.nodes[id]
	if !ok {
		return types.NewNotFound("task", id)
	}
	now := time.Now()
	if updates.UpdatedAt == nil {
		updates.UpdatedAt = &now
	}
	e.task = updates.Apply(e.task)
	tt.record(id, types.NewTaskUpdateOp(tt.seq.Next(), id, updates))
	return nil
}

// AddChild appends child as a new child of parentID, converting it into
// part of the live tree and recording a child_add carrying child's own
// task. It adds one node; a subtree is added one AddChild call per node,
// parent first, and each call records its own child_add. child's own id
// is used as the new node's id (callers typically pass a provisional id
// for nodes not yet persisted).
func (tt *Tracking) AddChild(parentID string, child types.Task) error {
	if _, ok := tt.tree.nodes[parentID]; !ok {
		return types.NewNotFound("task", parentID)
	}
	if _, exists := tt.tree.nodes[child.ID]; exists {
		return types.NewConflict("task %q already exists in this tree", child.ID)
	}
	child.ParentID = parentID
	tt.tree.nodes[child.ID] = &entry{task: child, parentID: parentID}
	parent := tt.tree.nodes[parentID]
	parent.children = append(parent.children, child.ID)

	tt.record(parentID, types.NewChildAddOp(tt.seq.Next(), parentID, child.ID, child, tt.tree.GetDepth(parentID)))
	return nil
}

// RemoveChild detaches id from parentID's children and deletes its
// subtree from the live tree, recording a child_remove.
func (tt *Tracking) RemoveChild(parentID, id string) error {
	parent, ok := tt.tree.nodes[parentID]
	if !ok {
		return types.NewNotFound("task", parentID)
	}
	idx := -1
	for i, c := range parent.children {
		if c == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return types.NewNotFound("child", id)
	}
	depth := tt.tree.GetDepth(id)
	for _, d := range tt.tree.GetAllDescendants(id) {
		delete(tt.tree.nodes, d)
		delete(tt.pending, d)
	}
	delete(tt.tree.nodes, id)
	delete(tt.pending, id)
	parent.children = append(parent.children[:idx], parent.children[idx+1:]...)

	tt.record(parentID, types.NewChildRemoveOp(tt.seq.Next(), parentID, id, depth))
	return nil
}

func statusPtr(s types.Status) *types.Status { return &s }

// MarkDone sets id's status to done. When cascade is true, every
// descendant not already done is set to done too (without further
// recording per-descendant cascade metadata beyond their own task_update).
func (tt *Tracking) MarkDone(id string, cascade bool) error {
	return tt.setStatusCascade(id, types.StatusDone, cascade, nil)
}

// MarkInProgress sets id's status to in-progress.
func (tt *Tracking) MarkInProgress(id string) error {
	return tt.WithTask(id, types.TaskUpdate{Status: statusPtr(types.StatusInProgress)})
}

// MarkPending sets id's status to pending.
func (tt *Tracking) MarkPending(id string) error {
	return tt.WithTask(id, types.TaskUpdate{Status: statusPtr(types.StatusPending)})
}

// MarkCancelled sets id's status to cancelled. When cascade is true,
// every descendant not already cancelled AND not already done is set to
// cancelled (done tasks are never overwritten by a cascading cancel).
func (tt *Tracking) MarkCancelled(id string, cascade bool) error {
	skip := func(s types.Status) bool { return s == types.StatusDone }
	return tt.setStatusCascade(id, types.StatusCancelled, cascade, skip)
}

// MarkArchived sets id's status to archived. When cascade is true, every
// descendant not already archived is archived, including done tasks
// (archiving a done task is intentional — see the cascade-asymmetry
// design note).
func (tt *Tracking) MarkArchived(id string, cascade bool) error {
	return tt.setStatusCascade(id, types.StatusArchived, cascade, nil)
}

func (tt *Tracking) setStatusCascade(id string, status types.Status, cascade bool, skip func(types.Status) bool) error {
	if err := tt.WithTask(id, types.TaskUpdate{Status: statusPtr(status)}); err != nil {
		return err
	}
	if !cascade {
		return nil
	}
	for _, d := range tt.tree.GetAllDescendants(id) {
		task, ok := tt.tree.Task(d)
		if !ok || task.Status == status {
			continue
		}
		if skip != nil && skip(task.Status) {
			continue
		}
		if err := tt.WithTask(d, types.TaskUpdate{Status: statusPtr(status)}); err != nil {
			return err
		}
	}
	return nil
}

// WithPriority sets id's priority score.
func (tt *Tracking) WithPriority(id string, score int) error {
	return tt.WithTask(id, types.TaskUpdate{PriorityScore: &score})
}

// WithTitle sets id's title.
func (tt *Tracking) WithTitle(id, title string) error {
	return tt.WithTask(id, types.TaskUpdate{Title: &title})
}

// WithDescription sets id's description.
func (tt *Tracking) WithDescription(id, description string) error {
	return tt.WithTask(id, types.TaskUpdate{Description: &description})
}

// DependsOn queues a dependency from id on dependencyID against the
// attached graph. Returns an error (and attaches none) if no graph is
// attached or the edge would create a cycle.
func (tt *Tracking) DependsOn(id, dependencyID string) error {
	if tt.depGraph == nil {
		return types.NewInternal("tasktree: no dependency graph attached")
	}
	updated, err := tt.depGraph.WithDependency(id, dependencyID)
	if err != nil {
		return err
	}
	tt.depGraph = updated
	return nil
}

// BlockedBy queues dependencies from id on every id in dependencyIDs.
func (tt *Tracking) BlockedBy(id string, dependencyIDs []string) error {
	for _, dep := range dependencyIDs {
		if err := tt.DependsOn(id, dep); err != nil {
			return err
		}
	}
	return nil
}

// UnblockBy queues removal of the dependency from id on dependencyID.
func (tt *Tracking) UnblockBy(id, dependencyID string) error {
	if tt.depGraph == nil {
		return types.NewInternal("tasktree: no dependency graph attached")
	}
	tt.depGraph = tt.depGraph.WithoutDependency(id, dependencyID)
	return nil
}

// UnblockedBy queues removal of every dependency in dependencyIDs from id.
func (tt *Tracking) UnblockedBy(id string, dependencyIDs []string) error {
	for _, dep := range dependencyIDs {
		if err := tt.UnblockBy(id, dep); err != nil {
			return err
		}
	}
	return nil
}

func (tt *Tracking) statusOf(id string) types.Status {
	if task, ok := tt.tree.Task(id); ok {
		return task.Status
	}
	return types.StatusPending
}

// GetBlockingTasks returns the ids id depends on whose status (looked up
// in the tree when present, else treated as pending) is not done.
func (tt *Tracking) GetBlockingTasks(id string) []string {
	if tt.depGraph == nil {
		return nil
	}
	var out []string
	for _, dep := range tt.depGraph.Snapshot().GetDependencies(id) {
		if tt.statusOf(dep) != types.StatusDone {
			out = append(out, dep)
		}
	}
	return out
}

// IsBlocked reports whether id has any incomplete dependency.
func (tt *Tracking) IsBlocked(id string) bool {
	return len(tt.GetBlockingTasks(id)) > 0
}

// CanStart reports whether id is not blocked and its status is pending
// or in-progress.
func (tt *Tracking) CanStart(id string) bool {
	if tt.IsBlocked(id) {
		return false
	}
	s := tt.statusOf(id)
	return s == types.StatusPending || s == types.StatusInProgress
}

func isAvailableStatus(s types.Status) bool {
	switch s {
	case types.StatusDone, types.StatusCancelled, types.StatusArchived:
		return false
	default:
		return true
	}
}

// GetAvailableSubtasks returns id and every descendant whose effective
// status is not in {done, cancelled, archived} and which is not blocked.
func (tt *Tracking) GetAvailableSubtasks(id string) []string {
	var out []string
	tt.tree.WalkDepthFirst(id, func(nid string, depth int) bool {
		eff, err := tt.tree.GetEffectiveStatus(nid)
		if err == nil && isAvailableStatus(eff) && !tt.IsBlocked(nid) {
			out = append(out, nid)
		}
		return true
	})
	return out
}

// GetAvailableChildren returns id's immediate children matching the
// GetAvailableSubtasks predicate.
func (tt *Tracking) GetAvailableChildren(id string) []string {
	var out []string
	for _, c := range tt.tree.GetChildren(id) {
		eff, err := tt.tree.GetEffectiveStatus(c)
		if err == nil && isAvailableStatus(eff) && !tt.IsBlocked(c) {
			out = append(out, c)
		}
	}
	return out
}

// GetNextAvailableTask returns id if it CanStart; otherwise the available
// child with the highest priority score, ties broken by identifier order.
func (tt *Tracking) GetNextAvailableTask(id string) (string, bool) {
	if tt.CanStart(id) {
		return id, true
	}
	children := tt.GetAvailableChildren(id)
	if len(children) == 0 {
		return "", false
	}
	sort.Slice(children, func(i, j int) bool {
		ti, _ := tt.tree.Task(children[i])
		tj, _ := tt.tree.Task(children[j])
		if ti.PriorityScore != tj.PriorityScore {
			return ti.PriorityScore > tj.PriorityScore
		}
		return children[i] < children[j]
	})
	return children[0], true
}

// StartWork attempts to move id into in-progress. If blocked, returns
// false without mutation. If pending, marks in-progress and returns
// true. If already in-progress, returns true without further mutation.
// Otherwise (done/cancelled/archived) returns false.
func (tt *Tracking) StartWork(id string) (bool, error) {
	if tt.IsBlocked(id) {
		return false, nil
	}
	switch tt.statusOf(id) {
	case types.StatusInProgress:
		return true, nil
	case types.StatusPending:
		if err := tt.MarkInProgress(id); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, nil
	}
}

// CompleteAndStartNext marks id done, then calls StartWork on every
// available child, returning the ids that successfully transitioned.
func (tt *Tracking) CompleteAndStartNext(id string) ([]string, error) {
	if err := tt.MarkDone(id, false); err != nil {
		return nil, err
	}
	var started []string
	for _, c := range tt.GetAvailableChildren(id) {
		ok, err := tt.StartWork(c)
		if err != nil {
			return started, err
		}
		if ok {
			started = append(started, c)
		}
	}
	return started, nil
}

// HasPendingChanges reports whether any node in the subtree rooted at id
// has recorded operations.
func (tt *Tracking) HasPendingChanges(id string) bool {
	found := false
	tt.tree.WalkDepthFirst(id, func(nid string, depth int) bool {
		if len(tt.pending[nid]) > 0 {
			found = true
		}
		return true
	})
	return found
}

// PendingOperations returns every recorded operation across the whole
// tree, depth-first order by node then recording order within a node —
// reconcile.FlushTaskTree re-sorts this (via Consolidate and Order), so
// callers needing flush order should go through it rather than this
// accessor directly.
func (tt *Tracking) PendingOperations() []types.PendingOperation {
	var all []types.PendingOperation
	tt.tree.WalkDepthFirst(tt.tree.rootID, func(id string, depth int) bool {
		all = append(all, tt.pending[id]...)
		return true
	})
	return all
}

// ClearPending drops every recorded operation and advances baseVersion by
// the count cleared, used after a successful flush.
func (tt *Tracking) ClearPending(count int) {
	tt.pending = make(map[string][]types.PendingOperation)
	tt.baseVersion += count
}
