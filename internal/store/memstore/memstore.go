// Package memstore is a minimal in-process, map-backed Store reference
// implementation, useful for tests and demos where no durable backend
// is needed.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/taskid"
	"github.com/marktoda/astrotask/internal/types"
)

// Store is a map-backed store.Store. Zero value is not usable; construct
// with New.
type Store struct {
	mu sync.Mutex

	tasks      map[string]types.Task
	deps       []types.Dependency
	context    map[string][]types.ContextSlice
	childCount map[string]int // parentID -> next child index
	rootCount  int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tasks:      make(map[string]types.Task),
		context:    make(map[string][]types.ContextSlice),
		childCount: make(map[string]int),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) nextChildID(parentID string) string {
	idx := s.childCount[parentID]
	s.childCount[parentID] = idx + 1
	return taskid.Child(parentID, idx)
}

func (s *Store) nextRootID() string {
	id := taskid.NumberToLetters(s.rootCount)
	s.rootCount++
	return id
}

// AddTask assigns a stable hierarchical id (root or next-available child
// segment of ParentID) and stores the task.
func (s *Store) AddTask(ctx context.Context, create types.CreateTask) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	if create.ParentID == "" {
		id = s.nextRootID()
	} else {
		if _, ok := s.tasks[create.ParentID]; !ok {
			return types.Task{}, types.NewNotFound("task", create.ParentID)
		}
		id = s.nextChildID(create.ParentID)
	}

	now := time.Now()
	status := create.Status
	if status == "" {
		status = types.StatusPending
	}
	priority := create.PriorityScore
	if priority == 0 {
		priority = types.DefaultPriorityScore
	}
	task := types.Task{
		ID:            id,
		ParentID:      create.ParentID,
		Title:         create.Title,
		Description:   create.Description,
		Status:        status,
		PriorityScore: priority,
		PRD:           create.PRD,
		ContextDigest: create.ContextDigest,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := task.Validate(); err != nil {
		return types.Task{}, err
	}
	s.tasks[id] = task
	return task, nil
}

// GetTask returns nil, nil when id is unknown; read operations never
// raise.
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

// ListTasks returns every task matching filter, sorted by id for a
// deterministic order.
func (s *Store) ListTasks(ctx context.Context, filter store.TaskFilter) ([]types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Task
	for _, task := range s.tasks {
		if filter.Matches(task) {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateTask applies updates to id, stamping UpdatedAt if the caller did
// not supply one.
func (s *Store) UpdateTask(ctx context.Context, id string, updates types.TaskUpdate) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, types.NewNotFound("task", id)
	}
	if updates.UpdatedAt == nil {
		now := time.Now()
		updates.UpdatedAt = &now
	}
	task = updates.Apply(task)
	s.tasks[id] = task
	return &task, nil
}

// DeleteTask removes id. Without cascade, deleting a task with children
// is a conflict. With cascade, the whole subtree is removed along with
// any dependency edges touching a removed id.
func (s *Store) DeleteTask(ctx context.Context, id string, cascade bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}

	toDelete := map[string]bool{id: true}
	if children := s.childrenOf(id); len(children) > 0 {
		if !cascade {
			return false, types.NewConflict("task %q has children; delete with cascade", id)
		}
		s.collectDescendants(id, toDelete)
	}

	for d := range toDelete {
		delete(s.tasks, d)
		delete(s.context, d)
	}
	var kept []types.Dependency
	for _, dep := range s.deps {
		if toDelete[dep.Dependent] || toDelete[dep.Dependency] {
			continue
		}
		kept = append(kept, dep)
	}
	s.deps = kept
	return true, nil
}

func (s *Store) childrenOf(id string) []string {
	var out []string
	for tid, task := range s.tasks {
		if task.ParentID == id {
			out = append(out, tid)
		}
	}
	return out
}

func (s *Store) collectDescendants(id string, into map[string]bool) {
	for _, c := range s.childrenOf(id) {
		if into[c] {
			continue
		}
		into[c] = true
		s.collectDescendants(c, into)
	}
}

// ListContextSlices returns the opaque context slices attached to taskID.
func (s *Store) ListContextSlices(ctx context.Context, taskID string) ([]types.ContextSlice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ContextSlice{}, s.context[taskID]...), nil
}

// AddContextSlice is a reference-store extension used by producers/tests
// to seed context slices (not part of the core Store contract, which
// treats slices as read-only from the core's perspective).
func (s *Store) AddContextSlice(slice types.ContextSlice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context[slice.TaskID] = append(s.context[slice.TaskID], slice)
}

// AddDependency appends a validated edge.
func (s *Store) AddDependency(ctx context.Context, dependent, dependency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addDependencyLocked(dependent, dependency)
}

func (s *Store) addDependencyLocked(dependent, dependency string) error {
	if dependent == dependency {
		return types.NewValidation("dependency: self-edge on %q", dependent)
	}
	if _, ok := s.tasks[dependent]; !ok {
		return types.NewNotFound("task", dependent)
	}
	if _, ok := s.tasks[dependency]; !ok {
		return types.NewNotFound("task", dependency)
	}
	for _, d := range s.deps {
		if d.Dependent == dependent && d.Dependency == dependency {
			return types.NewConflict("dependency %s -> %s already exists", dependent, dependency)
		}
	}
	s.deps = append(s.deps, types.Dependency{Dependent: dependent, Dependency: dependency})
	return nil
}

// RemoveDependency removes the first matching edge, or returns a
// NotFound error when no edge matches.
func (s *Store) RemoveDependency(ctx context.Context, dependent, dependency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.deps {
		if d.Dependent == dependent && d.Dependency == dependency {
			s.deps = append(s.deps[:i], s.deps[i+1:]...)
			return nil
		}
	}
	return types.NewNotFound("dependency", dependent+"->"+dependency)
}

// ListDependencies returns every edge.
func (s *Store) ListDependencies(ctx context.Context) ([]types.Dependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Dependency{}, s.deps...), nil
}

// ExecuteReconciliationOperations applies plan.Operations in order,
// atomically: operations are applied to a scratch copy of the store's
// state, and only committed once every operation in the plan succeeds.
func (s *Store) ExecuteReconciliationOperations(ctx context.Context, plan store.ReconciliationPlan) (store.ReconciliationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scratch := s.cloneLocked()
	mappings := make(map[string]string)

	for _, op := range plan.Operations {
		if err := scratch.apply(op, mappings); err != nil {
			return store.ReconciliationResult{}, types.NewReconciliation(err, plan.Operations, nil)
		}
	}

	s.tasks = scratch.tasks
	s.deps = scratch.deps
	s.context = scratch.context
	s.childCount = scratch.childCount
	s.rootCount = scratch.rootCount
	return store.ReconciliationResult{IDMappings: mappings}, nil
}

func (s *Store) cloneLocked() *Store {
	cp := &Store{
		tasks:      make(map[string]types.Task, len(s.tasks)),
		context:    make(map[string][]types.ContextSlice, len(s.context)),
		childCount: make(map[string]int, len(s.childCount)),
		rootCount:  s.rootCount,
	}
	for k, v := range s.tasks {
		cp.tasks[k] = v
	}
	for k, v := range s.context {
		cp.context[k] = append([]types.ContextSlice{}, v...)
	}
	for k, v := range s.childCount {
		cp.childCount[k] = v
	}
	cp.deps = append([]types.Dependency{}, s.deps...)
	return cp
}

func remapID(id string, mappings map[string]string) string {
	if stable, ok := mappings[id]; ok {
		return stable
	}
	return id
}

func (s *Store) apply(op types.PendingOperation, mappings map[string]string) error {
	switch o := op.(type) {
	case types.TaskUpdateOp:
		id := remapID(o.TaskID, mappings)
		task, ok := s.tasks[id]
		if !ok {
			return types.NewNotFound("task", id)
		}
		s.tasks[id] = o.Updates.Apply(task)
		return nil

	case types.ChildAddOp:
		parentID := remapID(o.ParentID, mappings)
		if _, ok := s.tasks[parentID]; !ok {
			return types.NewNotFound("task", parentID)
		}
		stableID := s.nextChildID(parentID)
		child := o.ChildTask
		child.ID = stableID
		child.ParentID = parentID
		now := time.Now()
		child.CreatedAt = types.NormalizeTimestamp(child.CreatedAt, now)
		child.UpdatedAt = types.NormalizeTimestamp(child.UpdatedAt, now)
		if err := child.Validate(); err != nil {
			return err
		}
		s.tasks[stableID] = child
		mappings[o.ChildID] = stableID
		return nil

	case types.ChildRemoveOp:
		childID := remapID(o.ChildID, mappings)
		toDelete := map[string]bool{childID: true}
		s.collectDescendants(childID, toDelete)
		for d := range toDelete {
			delete(s.tasks, d)
			delete(s.context, d)
		}
		return nil

	case types.DependencyAddOp:
		return s.addDependencyLocked(remapID(o.Dependent, mappings), remapID(o.Dependency, mappings))

	case types.DependencyRemoveOp:
		dependent, dependency := remapID(o.Dependent, mappings), remapID(o.Dependency, mappings)
		for i, d := range s.deps {
			if d.Dependent == dependent && d.Dependency == dependency {
				s.deps = append(s.deps[:i], s.deps[i+1:]...)
				return nil
			}
		}
		return nil

	default:
		return types.NewInternal("memstore: unknown operation type %T", op)
	}
}
