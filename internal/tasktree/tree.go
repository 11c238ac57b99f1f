// Package tasktree implements the hierarchical task view: an immutable,
// id-addressed Tree plus a mutable Tracking overlay that records field
// updates, child additions, and child removals as pending operations.
//
// Nodes are addressed by id and stored in a flat map rather than linked
// by pointers, so traversal is always an id lookup and the structure
// serializes trivially.
package tasktree

import "github.com/marktoda/astrotask/internal/types"

type entry struct {
	task     types.Task
	parentID string // "" for the tree root
	children []string
}

// Tree is an immutable, id-addressed view over a single rooted forest
// of tasks. Construct with New; mutate only through a Tracking overlay.
type Tree struct {
	rootID string
	nodes  map[string]*entry
}

// New builds a Tree from a flat task list. Every non-root task's
// ParentID must reference another task in the list; the tree is rooted
// at rootID. Returns a Validation error if any parent reference is
// missing or if more than one task claims to be the root.
func New(tasks []types.Task, rootID string) (*Tree, error) {
	t := &Tree{rootID: rootID, nodes: make(map[string]*entry, len(tasks))}
	for _, task := range tasks {
		t.nodes[task.ID] = &entry{task: task, parentID: task.ParentID}
	}
	root, ok := t.nodes[rootID]
	if !ok {
		return nil, types.NewValidation("tasktree: root id %q not present in task list", rootID)
	}
	// The declared root may itself be a mid-tree task with a parent
	// outside this view; within the tree it has none.
	root.parentID = ""
	for _, task := range tasks {
		if task.ID == rootID {
			continue
		}
		if task.ParentID == "" {
			return nil, types.NewValidation("tasktree: task %q has no parent but is not the declared root %q", task.ID, rootID)
		}
		parent, ok := t.nodes[task.ParentID]
		if !ok {
			return nil, types.NewValidation("tasktree: task %q references unknown parent %q", task.ID, task.ParentID)
		}
		parent.children = append(parent.children, task.ID)
	}
	return t, nil
}

// Single builds a one-node tree, useful as the root of a fresh Tracking
// to which new children are then attached with AddChild.
func Single(task types.Task) *Tree {
	return &Tree{rootID: task.ID, nodes: map[string]*entry{task.ID: {task: task}}}
}

// RootID returns the id of the tree's root node.
func (t *Tree) RootID() string { return t.rootID }

// Task returns the task stored at id.
func (t *Tree) Task(id string) (types.Task, bool) {
	e, ok := t.nodes[id]
	if !ok {
		return types.Task{}, false
	}
	return e.task, true
}

// Has reports whether id is present in the tree.
func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// GetParent returns the parent id of id, or "" if id is the root or
// unknown.
func (t *Tree) GetParent(id string) (string, bool) {
	e, ok := t.nodes[id]
	if !ok || e.parentID == "" {
		return "", false
	}
	return e.parentID, true
}

// GetChildren returns id's children in insertion order. Always a copy.
func (t *Tree) GetChildren(id string) []string {
	e, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return append([]string{}, e.children...)
}

// GetSiblings returns every other child of id's parent, in insertion
// order. A root has no siblings.
func (t *Tree) GetSiblings(id string) []string {
	parent, ok := t.GetParent(id)
	if !ok {
		return nil
	}
	var out []string
	for _, c := range t.GetChildren(parent) {
		if c != id {
			out = append(out, c)
		}
	}
	return out
}

// GetRoot returns the tree's root id (every node shares the same root).
func (t *Tree) GetRoot() string { return t.rootID }

// Visitor is called during a tree walk. Returning false stops the walk
// (depth-first or breadth-first) from descending into that node's
// children; the rest of the walk continues.
type Visitor func(id string, depth int) (descend bool)

// WalkDepthFirst visits startID and its descendants depth-first,
// preorder. If visitor returns false for a node, its children are not
// visited.
func (t *Tree) WalkDepthFirst(startID string, visitor Visitor) {
	if !t.Has(startID) {
		return
	}
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if !visitor(id, depth) {
			return
		}
		for _, c := range t.GetChildren(id) {
			walk(c, depth+1)
		}
	}
	walk(startID, 0)
}

// WalkBreadthFirst visits startID and its descendants breadth-first.
func (t *Tree) WalkBreadthFirst(startID string, visitor Visitor) {
	if !t.Has(startID) {
		return
	}
	type item struct {
		id    string
		depth int
	}
	queue := []item{{startID, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !visitor(cur.id, cur.depth) {
			continue
		}
		for _, c := range t.GetChildren(cur.id) {
			queue = append(queue, item{c, cur.depth + 1})
		}
	}
}

// Find returns the first id (depth-first, preorder, from the tree root)
// whose task matches predicate.
func (t *Tree) Find(predicate func(types.Task) bool) (string, bool) {
	var found string
	ok := false
	t.WalkDepthFirst(t.rootID, func(id string, depth int) bool {
		if ok {
			return false
		}
		if task, exists := t.Task(id); exists && predicate(task) {
			found, ok = id, true
			return false
		}
		return true
	})
	return found, ok
}

// Filter returns every id (depth-first, preorder, from the tree root)
// whose task matches predicate.
func (t *Tree) Filter(predicate func(types.Task) bool) []string {
	var out []string
	t.WalkDepthFirst(t.rootID, func(id string, depth int) bool {
		if task, exists := t.Task(id); exists && predicate(task) {
			out = append(out, id)
		}
		return true
	})
	return out
}

// GetPath returns the path from the tree root to id, inclusive.
func (t *Tree) GetPath(id string) []string {
	var reversed []string
	cur := id
	for {
		if !t.Has(cur) {
			return nil
		}
		reversed = append(reversed, cur)
		parent, ok := t.GetParent(cur)
		if !ok {
			break
		}
		cur = parent
	}
	path := make([]string, len(reversed))
	for i, v := range reversed {
		path[len(reversed)-1-i] = v
	}
	return path
}

// GetDepth returns id's distance from the tree root (root is depth 0).
func (t *Tree) GetDepth(id string) int {
	path := t.GetPath(id)
	if path == nil {
		return 0
	}
	return len(path) - 1
}

// GetAllDescendants returns every descendant of id (not including id
// itself), depth-first preorder.
func (t *Tree) GetAllDescendants(id string) []string {
	var out []string
	first := true
	t.WalkDepthFirst(id, func(nid string, depth int) bool {
		if first {
			first = false
			return true
		}
		out = append(out, nid)
		return true
	})
	return out
}

// GetDescendantCount returns len(GetAllDescendants(id)).
func (t *Tree) GetDescendantCount(id string) int {
	return len(t.GetAllDescendants(id))
}

// IsAncestorOf reports whether a is an ancestor of b.
func (t *Tree) IsAncestorOf(a, b string) bool {
	for _, id := range t.GetPath(b) {
		if id == b {
			continue
		}
		if id == a {
			return true
		}
	}
	return false
}

// IsDescendantOf reports whether a is a descendant of b.
func (t *Tree) IsDescendantOf(a, b string) bool {
	return t.IsAncestorOf(b, a)
}

// IsSiblingOf reports whether a and b share the same parent (and are
// distinct, known nodes).
func (t *Tree) IsSiblingOf(a, b string) bool {
	if a == b {
		return false
	}
	pa, okA := t.GetParent(a)
	pb, okB := t.GetParent(b)
	return okA && okB && pa == pb
}

// GetEffectiveStatus returns id's own status overridden by the nearest
// ancestor (walking from self toward root, self included) whose status
// is terminal-for-effective-status (done, cancelled, archived).
func (t *Tree) GetEffectiveStatus(id string) (types.Status, error) {
	task, ok := t.Task(id)
	if !ok {
		return "", types.NewNotFound("task", id)
	}
	if anc, found := t.GetAncestorWithStatus(id, types.StatusDone, types.StatusCancelled, types.StatusArchived); found {
		ancTask, _ := t.Task(anc)
		return ancTask.Status, nil
	}
	return task.Status, nil
}

// GetAncestorWithStatus returns the first node (starting at id, then
// walking toward the root) whose status is one of statuses.
func (t *Tree) GetAncestorWithStatus(id string, statuses ...types.Status) (string, bool) {
	want := make(map[types.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	cur := id
	for {
		task, ok := t.Task(cur)
		if !ok {
			return "", false
		}
		if want[task.Status] {
			return cur, true
		}
		parent, ok := t.GetParent(cur)
		if !ok {
			return "", false
		}
		cur = parent
	}
}
