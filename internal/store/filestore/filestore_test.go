package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marktoda/astrotask/internal/applog"
	"github.com/marktoda/astrotask/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Config{BaseDir: dir, Watch: false}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddTaskPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(Config{BaseDir: dir, Watch: false}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	root, err := s.AddTask(ctx, types.CreateTask{Title: "root"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	s.Close()

	reopened, err := Open(Config{BaseDir: dir, Watch: false}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	task, err := reopened.GetTask(ctx, root.ID)
	if err != nil || task == nil {
		t.Fatalf("GetTask after reopen = (%v, %v), want the persisted root", task, err)
	}
	if task.Title != "root" {
		t.Errorf("Title = %q, want root", task.Title)
	}

	next, err := reopened.AddTask(ctx, types.CreateTask{ParentID: root.ID, Title: "child"})
	if err != nil {
		t.Fatalf("AddTask child after reopen: %v", err)
	}
	if next.ID != root.ID+"-A" {
		t.Errorf("child ID after reopen = %q, want %s", next.ID, root.ID+"-A")
	}
}

func TestDependencyPersistence(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, _ := s.AddTask(ctx, types.CreateTask{Title: "a"})
	b, _ := s.AddTask(ctx, types.CreateTask{Title: "b"})
	if err := s.AddDependency(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	deps, err := s.ListDependencies(ctx)
	if err != nil || len(deps) != 1 {
		t.Fatalf("ListDependencies = (%v, %v), want 1 edge", deps, err)
	}
	if err := s.RemoveDependency(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("RemoveDependency: %v", err)
	}
	deps, _ = s.ListDependencies(ctx)
	if len(deps) != 0 {
		t.Errorf("ListDependencies after remove = %v, want empty", deps)
	}
}

func TestOpenWithRotatingLogger(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "filestore.log")
	logger := applog.New("filestore: ", applog.RotatingConfig{Path: logPath, MaxSizeMB: 1})

	s, err := Open(Config{BaseDir: filepath.Join(dir, "data"), Watch: false}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	// Force a malformed-file warning so the rotating logger actually
	// writes something to disk.
	tasksDir := filepath.Join(dir, "data", "tasks")
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tasksDir, "bad.json"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	reopened, err := Open(Config{BaseDir: filepath.Join(dir, "data"), Watch: false}, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("expected rotating log file at %s, stat failed: %v", logPath, err)
	}
}
