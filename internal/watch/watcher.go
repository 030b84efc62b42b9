// Package watch turns filesystem changes into board refresh events. It
// watches the store database file for writes from other processes, and the
// repository's worktree registry for worktrees appearing or vanishing.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workbench/internal/domain/events"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// Trigger keys handed to the debouncer.
const (
	keyStore     = "store"
	keyWorktrees = "worktrees"
)

// Watcher publishes store_changed and board_updated events when the
// watched paths change.
type Watcher struct {
	projectID int64
	storePath string
	gitDir    string
	hub       ports.EventHub
	debounce  time.Duration

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	running   bool
	cancel    context.CancelFunc
}

// New creates a new Watcher for the given store file and repository root.
func New(projectID int64, storePath, repoRoot string, hub ports.EventHub, debounceMS int) *Watcher {
	return &Watcher{
		projectID: projectID,
		storePath: storePath,
		gitDir:    filepath.Join(repoRoot, ".git"),
		hub:       hub,
		debounce:  time.Duration(debounceMS) * time.Millisecond,
	}
}

// Start begins watching. Paths that do not exist yet are skipped; the git
// worktree registry is picked up when it appears.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.debouncer = NewDebouncer(w.debounce, w.fire)
	w.running = true
	w.mu.Unlock()

	for _, dir := range []string{filepath.Dir(w.storePath), w.gitDir, filepath.Join(w.gitDir, "worktrees")} {
		if err := watcher.Add(dir); err != nil {
			log.Debug().Str("path", dir).Err(err).Msg("not watching path")
		}
	}

	go w.eventLoop(watchCtx)

	log.Info().
		Str("store", w.storePath).
		Str("git_dir", w.gitDir).
		Dur("debounce", w.debounce).
		Msg("board watcher started")
	return nil
}

// Stop terminates watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false

	if w.cancel != nil {
		w.cancel()
	}
	if w.debouncer != nil {
		w.debouncer.Stop()
	}
	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		log.Info().Msg("board watcher stopped")
		return err
	}
	return nil
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("board watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	switch {
	case w.isStorePath(event.Name):
		w.debouncer.Add(keyStore)

	case w.isWorktreePath(event.Name):
		// A first worktree creates the registry directory itself; start
		// watching inside it.
		if event.Op&fsnotify.Create == fsnotify.Create && filepath.Base(event.Name) == "worktrees" {
			if err := w.watcher.Add(event.Name); err != nil {
				log.Debug().Str("path", event.Name).Err(err).Msg("not watching worktree registry")
			}
		}
		w.debouncer.Add(keyWorktrees)
	}
}

// isStorePath reports whether path is the store file or one of its
// SQLite sidecars (-wal, -shm, -journal).
func (w *Watcher) isStorePath(path string) bool {
	return strings.HasPrefix(filepath.Base(path), filepath.Base(w.storePath))
}

func (w *Watcher) isWorktreePath(path string) bool {
	registry := filepath.Join(w.gitDir, "worktrees")
	return path == registry || strings.HasPrefix(path, registry+string(filepath.Separator))
}

func (w *Watcher) fire(key string) {
	switch key {
	case keyStore:
		log.Debug().Str("store", w.storePath).Msg("store changed on disk")
		w.hub.Publish(events.NewStoreChangedEvent(w.storePath))
		w.hub.Publish(events.NewBoardUpdatedEvent(w.projectID, "store-changed"))
	case keyWorktrees:
		log.Debug().Msg("worktree registry changed")
		w.hub.Publish(events.NewBoardUpdatedEvent(w.projectID, "worktrees-changed"))
	}
}
