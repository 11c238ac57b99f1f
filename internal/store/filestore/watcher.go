package filestore

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a filestore's tasks/ and deps/ directories for
// external edits (another process, or a human editing JSON by hand) and
// refreshes the in-memory cache so reads stay current between flushes.
// Created, written, removed and renamed task files are applied to the
// cache; for deps/ only created and written edge files are loaded, and
// a removed edge file does not drop its edge from the cache.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func newWatcher(s *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("filestore: create fsnotify watcher: %w", err)
	}
	return &Watcher{store: s, watcher: w, done: make(chan struct{})}, nil
}

func (w *Watcher) start(tasksDir, depsDir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("filestore: watcher already running")
	}
	if err := w.watcher.Add(tasksDir); err != nil {
		return fmt.Errorf("filestore: watch tasks dir: %w", err)
	}
	if err := w.watcher.Add(depsDir); err != nil {
		w.watcher.Remove(tasksDir)
		return fmt.Errorf("filestore: watch deps dir: %w", err)
	}
	w.running = true
	w.wg.Add(1)
	go w.loop(tasksDir, depsDir)
	return nil
}

func (w *Watcher) stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(tasksDir, depsDir string) {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event, tasksDir, depsDir)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.logger.Printf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, tasksDir, depsDir string) {
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	dir := filepath.Dir(event.Name)
	base := strings.TrimSuffix(filepath.Base(event.Name), ".json")

	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	switch dir {
	case tasksDir:
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			w.store.removeTaskFromCacheLocked(base)
			return
		}
		w.store.reloadTaskLocked(base)
	case depsDir:
		if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
			_ = w.store.loadDepFileLocked(event.Name)
		}
	}
}
