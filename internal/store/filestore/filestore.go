// Package filestore is a reference Store backed by one JSON file per
// task and per dependency edge, watched with fsnotify so
// external edits are picked up between flushes, and configured via a
// small toml file (see Config). It exists to give the core something
// concrete to run against without a database dependency, not as a
// production-grade persistence layer.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/taskid"
	"github.com/marktoda/astrotask/internal/types"
)

// Store is a JSON-file-backed store.Store.
type Store struct {
	mu sync.Mutex

	cfg      Config
	tasksDir string
	depsDir  string
	logger   *log.Logger

	tasks      map[string]types.Task
	deps       []types.Dependency
	context    map[string][]types.ContextSlice
	childCount map[string]int
	rootCount  int

	watcher *Watcher
}

var _ store.Store = (*Store)(nil)

// Open loads (or initializes) a filestore rooted at cfg.BaseDir and, if
// cfg.Watch is set, starts an fsnotify watcher picking up external edits.
// Callers should call Close when done to stop the watcher.
func Open(cfg Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "filestore: ", log.LstdFlags)
	}
	s := &Store{
		cfg:        cfg,
		tasksDir:   filepath.Join(cfg.BaseDir, "tasks"),
		depsDir:    filepath.Join(cfg.BaseDir, "deps"),
		logger:     logger,
		tasks:      make(map[string]types.Task),
		context:    make(map[string][]types.ContextSlice),
		childCount: make(map[string]int),
	}
	if err := os.MkdirAll(s.tasksDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create tasks dir: %w", err)
	}
	if err := os.MkdirAll(s.depsDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create deps dir: %w", err)
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}

	if cfg.Watch {
		w, err := newWatcher(s)
		if err != nil {
			return nil, err
		}
		if err := w.start(s.tasksDir, s.depsDir); err != nil {
			return nil, err
		}
		s.watcher = w
	}
	return s, nil
}

// Close stops the fsnotify watcher, if one was started.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.stop()
}

func (s *Store) loadAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.tasksDir)
	if err != nil {
		return fmt.Errorf("filestore: read tasks dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := s.loadTaskFileLocked(filepath.Join(s.tasksDir, entry.Name())); err != nil {
			s.logger.Printf("skipping malformed task file %s: %v", entry.Name(), err)
		}
	}

	depEntries, err := os.ReadDir(s.depsDir)
	if err != nil {
		return fmt.Errorf("filestore: read deps dir: %w", err)
	}
	for _, entry := range depEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := s.loadDepFileLocked(filepath.Join(s.depsDir, entry.Name())); err != nil {
			s.logger.Printf("skipping malformed dep file %s: %v", entry.Name(), err)
		}
	}

	s.recomputeCountersLocked()
	return nil
}

func (s *Store) loadTaskFileLocked(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := unmarshalTaskFile(data)
	if err != nil {
		return err
	}
	s.tasks[f.ID] = f.toTask()
	return nil
}

func (s *Store) loadDepFileLocked(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f depFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	dep := types.Dependency{Dependent: f.Dependent, Dependency: f.Dependency}
	for _, existing := range s.deps {
		if existing == dep {
			return nil
		}
	}
	s.deps = append(s.deps, dep)
	return nil
}

// recomputeCountersLocked derives rootCount/childCount from the ids
// already present on disk, so newly assigned ids never collide with
// loaded ones.
func (s *Store) recomputeCountersLocked() {
	for id := range s.tasks {
		parsed, err := taskid.Parse(id)
		if err != nil {
			continue
		}
		if parsed.Depth == 0 {
			if n, err := taskid.LettersToNumber(id); err == nil && n+1 > s.rootCount {
				s.rootCount = n + 1
			}
			continue
		}
		last := parsed.Segments[len(parsed.Segments)-1]
		if n, err := taskid.LettersToNumber(last); err == nil {
			parentID := strings.TrimSuffix(id, "-"+last)
			if n+1 > s.childCount[parentID] {
				s.childCount[parentID] = n + 1
			}
		}
	}
}

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

func (s *Store) persistTaskLocked(task types.Task) error {
	f := fromTask(task)
	data, err := f.marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.tasksDir, f.filename()), data, 0o644)
}

func (s *Store) removeTaskFileLocked(id string) error {
	err := os.Remove(filepath.Join(s.tasksDir, fmt.Sprintf("%s.json", id)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Store) persistDepLocked(dep types.Dependency) error {
	data, err := json.MarshalIndent(depFile{Dependent: dep.Dependent, Dependency: dep.Dependency}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.depsDir, depFilename(dep.Dependent, dep.Dependency)), data, 0o644)
}

func (s *Store) removeDepFileLocked(dependent, dependency string) error {
	err := os.Remove(filepath.Join(s.depsDir, depFilename(dependent, dependency)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// AddTask assigns a stable id and persists the new task file.
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
	if err := s.persistTaskLocked(task); err != nil {
		return types.Task{}, fmt.Errorf("filestore: persist task: %w", err)
	}
	s.tasks[id] = task
	return task, nil
}

// GetTask returns nil, nil when id is unknown.
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

// ListTasks returns every task matching filter, sorted by id.
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

// UpdateTask applies updates to id and rewrites its file.
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
	if err := s.persistTaskLocked(task); err != nil {
		return nil, fmt.Errorf("filestore: persist task: %w", err)
	}
	s.tasks[id] = task
	return &task, nil
}

// DeleteTask removes id's file (and, with cascade, its descendants').
func (s *Store) DeleteTask(ctx context.Context, id string, cascade bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false, nil
	}

	toDelete := map[string]bool{id: true}
	if children := s.childrenOfLocked(id); len(children) > 0 {
		if !cascade {
			return false, types.NewConflict("task %q has children; delete with cascade", id)
		}
		s.collectDescendantsLocked(id, toDelete)
	}

	var keptDeps []types.Dependency
	for _, dep := range s.deps {
		if toDelete[dep.Dependent] || toDelete[dep.Dependency] {
			if err := s.removeDepFileLocked(dep.Dependent, dep.Dependency); err != nil {
				return false, err
			}
			continue
		}
		keptDeps = append(keptDeps, dep)
	}
	s.deps = keptDeps

	for d := range toDelete {
		if err := s.removeTaskFileLocked(d); err != nil {
			return false, err
		}
		delete(s.tasks, d)
		delete(s.context, d)
	}
	return true, nil
}

func (s *Store) childrenOfLocked(id string) []string {
	var out []string
	for tid, task := range s.tasks {
		if task.ParentID == id {
			out = append(out, tid)
		}
	}
	return out
}

func (s *Store) collectDescendantsLocked(id string, into map[string]bool) {
	for _, c := range s.childrenOfLocked(id) {
		if into[c] {
			continue
		}
		into[c] = true
		s.collectDescendantsLocked(c, into)
	}
}

// ListContextSlices returns the in-memory context slices attached to
// taskID. The reference filestore does not persist these to disk; a
// backend that needs durability would add a context/ subdirectory
// following the same one-file-per-record convention.
func (s *Store) ListContextSlices(ctx context.Context, taskID string) ([]types.ContextSlice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ContextSlice{}, s.context[taskID]...), nil
}

// AddContextSlice seeds an in-memory context slice (test/producer helper,
// not part of the core Store contract).
func (s *Store) AddContextSlice(slice types.ContextSlice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context[slice.TaskID] = append(s.context[slice.TaskID], slice)
}

// AddDependency persists a new edge file.
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
	dep := types.Dependency{Dependent: dependent, Dependency: dependency}
	if err := s.persistDepLocked(dep); err != nil {
		return fmt.Errorf("filestore: persist dependency: %w", err)
	}
	s.deps = append(s.deps, dep)
	return nil
}

// RemoveDependency deletes the matching edge file.
func (s *Store) RemoveDependency(ctx context.Context, dependent, dependency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.deps {
		if d.Dependent == dependent && d.Dependency == dependency {
			if err := s.removeDepFileLocked(dependent, dependency); err != nil {
				return err
			}
			s.deps = append(s.deps[:i], s.deps[i+1:]...)
			return nil
		}
	}
	return types.NewNotFound("dependency", dependent+"->"+dependency)
}

// ListDependencies returns every known edge.
func (s *Store) ListDependencies(ctx context.Context) ([]types.Dependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Dependency{}, s.deps...), nil
}

// ExecuteReconciliationOperations applies plan.Operations to an in-memory
// scratch copy first; only once every operation succeeds are the
// resulting task/dependency files written to disk. This is "best
// effort" atomic: a crash mid-write-back can leave a partial set of
// files updated, unlike a transactional database backend.
func (s *Store) ExecuteReconciliationOperations(ctx context.Context, plan store.ReconciliationPlan) (store.ReconciliationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scratchTasks := make(map[string]types.Task, len(s.tasks))
	for k, v := range s.tasks {
		scratchTasks[k] = v
	}
	scratchDeps := append([]types.Dependency{}, s.deps...)
	scratchChildCount := make(map[string]int, len(s.childCount))
	for k, v := range s.childCount {
		scratchChildCount[k] = v
	}
	scratchRootCount := s.rootCount

	mappings := make(map[string]string)
	var touched []types.Task
	var removedTasks []string
	var addedDeps []types.Dependency
	var removedDeps []types.Dependency

	for _, op := range plan.Operations {
		switch o := op.(type) {
		case types.TaskUpdateOp:
			id := remapID(o.TaskID, mappings)
			task, ok := scratchTasks[id]
			if !ok {
				return store.ReconciliationResult{}, types.NewReconciliation(types.NewNotFound("task", id), plan.Operations, nil)
			}
			task = o.Updates.Apply(task)
			scratchTasks[id] = task
			touched = append(touched, task)

		case types.ChildAddOp:
			parentID := remapID(o.ParentID, mappings)
			if _, ok := scratchTasks[parentID]; !ok {
				return store.ReconciliationResult{}, types.NewReconciliation(types.NewNotFound("task", parentID), plan.Operations, nil)
			}
			idx := scratchChildCount[parentID]
			scratchChildCount[parentID] = idx + 1
			stableID := taskid.Child(parentID, idx)
			child := o.ChildTask
			child.ID = stableID
			child.ParentID = parentID
			now := time.Now()
			child.CreatedAt = types.NormalizeTimestamp(child.CreatedAt, now)
			child.UpdatedAt = types.NormalizeTimestamp(child.UpdatedAt, now)
			if err := child.Validate(); err != nil {
				return store.ReconciliationResult{}, types.NewReconciliation(err, plan.Operations, nil)
			}
			scratchTasks[stableID] = child
			mappings[o.ChildID] = stableID
			touched = append(touched, child)

		case types.ChildRemoveOp:
			childID := remapID(o.ChildID, mappings)
			toDelete := map[string]bool{childID: true}
			collectDescendantsIn(scratchTasks, childID, toDelete)
			for d := range toDelete {
				delete(scratchTasks, d)
				removedTasks = append(removedTasks, d)
			}

		case types.DependencyAddOp:
			dep := types.Dependency{Dependent: remapID(o.Dependent, mappings), Dependency: remapID(o.Dependency, mappings)}
			scratchDeps = append(scratchDeps, dep)
			addedDeps = append(addedDeps, dep)

		case types.DependencyRemoveOp:
			dep := types.Dependency{Dependent: remapID(o.Dependent, mappings), Dependency: remapID(o.Dependency, mappings)}
			for i, d := range scratchDeps {
				if d == dep {
					scratchDeps = append(scratchDeps[:i], scratchDeps[i+1:]...)
					break
				}
			}
			removedDeps = append(removedDeps, dep)

		default:
			return store.ReconciliationResult{}, types.NewReconciliation(types.NewInternal("filestore: unknown operation type %T", op), plan.Operations, nil)
		}
	}

	for _, task := range touched {
		if err := s.persistTaskLocked(task); err != nil {
			return store.ReconciliationResult{}, types.NewReconciliation(err, plan.Operations, nil)
		}
	}
	for _, id := range removedTasks {
		if err := s.removeTaskFileLocked(id); err != nil {
			return store.ReconciliationResult{}, types.NewReconciliation(err, plan.Operations, nil)
		}
	}
	for _, dep := range addedDeps {
		if err := s.persistDepLocked(dep); err != nil {
			return store.ReconciliationResult{}, types.NewReconciliation(err, plan.Operations, nil)
		}
	}
	for _, dep := range removedDeps {
		if err := s.removeDepFileLocked(dep.Dependent, dep.Dependency); err != nil {
			return store.ReconciliationResult{}, types.NewReconciliation(err, plan.Operations, nil)
		}
	}

	s.tasks = scratchTasks
	s.deps = scratchDeps
	s.childCount = scratchChildCount
	s.rootCount = scratchRootCount
	return store.ReconciliationResult{IDMappings: mappings}, nil
}

func collectDescendantsIn(tasks map[string]types.Task, id string, into map[string]bool) {
	for tid, task := range tasks {
		if task.ParentID == id && !into[tid] {
			into[tid] = true
			collectDescendantsIn(tasks, tid, into)
		}
	}
}

func remapID(id string, mappings map[string]string) string {
	if stable, ok := mappings[id]; ok {
		return stable
	}
	return id
}

// reloadTaskLocked is invoked by the watcher when an external process
// changes a task file; it re-reads the file and refreshes the cache.
func (s *Store) reloadTaskLocked(id string) {
	path := filepath.Join(s.tasksDir, fmt.Sprintf("%s.json", id))
	if err := s.loadTaskFileLocked(path); err != nil {
		s.logger.Printf("reload task %s: %v", id, err)
	}
}

func (s *Store) removeTaskFromCacheLocked(id string) {
	delete(s.tasks, id)
}
