// Package app wires the workbench components together: store, engine,
// runtime adapters, event hub, and watcher. Commands build an App and pull
// the pieces they need from it.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workbench/internal/adapters/aifill"
	"github.com/brianly1003/workbench/internal/adapters/execrunner"
	"github.com/brianly1003/workbench/internal/adapters/gitworktree"
	"github.com/brianly1003/workbench/internal/adapters/sqlitestore"
	"github.com/brianly1003/workbench/internal/adapters/tmux"
	"github.com/brianly1003/workbench/internal/board"
	"github.com/brianly1003/workbench/internal/config"
	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/events"
	"github.com/brianly1003/workbench/internal/domain/ports"
	"github.com/brianly1003/workbench/internal/hub"
	"github.com/brianly1003/workbench/internal/reconcile"
	"github.com/brianly1003/workbench/internal/watch"
)

// App is the composition root. It owns the component lifecycles; everything
// it hands out stays valid until Stop.
type App struct {
	cfg *config.Config

	project    *domain.Project
	store      *sqlitestore.Store
	hub        *hub.Hub
	engine     *reconcile.Engine
	projection *board.Projection
	runtime    *tmux.Monitor
	workspace  *gitworktree.Provisioner
	filler     ports.FieldFiller
	watcher    *watch.Watcher

	mu      sync.Mutex
	running bool
}

// New builds the full component graph for the repository the config points
// at. The store is opened here; nothing is started yet.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	runner := execrunner.New(time.Duration(cfg.Tools.TimeoutSeconds) * time.Second)

	root, err := gitworktree.DetectRoot(ctx, runner, cfg.Git.Command, cfg.Repository.Path)
	if err != nil {
		return nil, fmt.Errorf("%s is not inside a git repository: %w", cfg.Repository.Path, err)
	}

	store, err := sqlitestore.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	project, err := store.EnsureProject(ctx, root, filepath.Base(root))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to register project: %w", err)
	}

	workspace := gitworktree.New(root, cfg.Git.Command, runner)
	runtime := tmux.NewMonitor(cfg.Tmux.Command, cfg.Tmux.SessionPrefix,
		cfg.Tmux.CaptureLines, runner, tmux.NewClassifier())

	var filler ports.FieldFiller = aifill.Disabled{}
	if cfg.AI.Enabled {
		aiRunner := execrunner.New(time.Duration(cfg.AI.TimeoutSeconds) * time.Second)
		filler = aifill.NewFiller(cfg.AI.Command, cfg.AI.Args, cfg.AI.ContextChars, aiRunner)
	}

	eventHub := hub.New()
	engine := reconcile.NewEngine(reconcile.Options{
		Project:   project,
		Store:     store,
		Workspace: workspace,
		Runtime:   runtime,
		Hub:       eventHub,
		Columns:   cfg.Board.Columns,
		Prefix:    cfg.Tmux.SessionPrefix,
		BaseRef:   cfg.Git.BaseRef,
	})
	projection := board.NewProjection(project, store, runtime, cfg.Board.Columns, cfg.Tmux.SessionPrefix)

	a := &App{
		cfg:        cfg,
		project:    project,
		store:      store,
		hub:        eventHub,
		engine:     engine,
		projection: projection,
		runtime:    runtime,
		workspace:  workspace,
		filler:     filler,
	}
	if cfg.Watcher.Enabled {
		a.watcher = watch.New(project.ID, store.Path(), root, eventHub, cfg.Watcher.DebounceMS)
	}
	return a, nil
}

// Start brings up the hub, the engine, and the watcher.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.mu.Unlock()

	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}
	a.hub.Subscribe(hub.NewLogSubscriber("event-log", func(event events.Event) {
		log.Debug().Str("type", string(event.Type())).Msg("event")
	}))
	if err := a.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	if a.watcher != nil {
		// A broken watcher only costs external-change refreshes.
		if err := a.watcher.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("file watcher failed to start")
			a.watcher = nil
		}
	}

	log.Info().
		Str("project", a.project.Name).
		Int64("project_id", a.project.ID).
		Str("store", a.store.Path()).
		Msg("workbench ready")
	return nil
}

// Stop tears the components down in reverse order and closes the store.
func (a *App) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			log.Warn().Err(err).Msg("watcher shutdown failed")
		}
	}
	if err := a.engine.Stop(); err != nil {
		log.Warn().Err(err).Msg("engine shutdown failed")
	}
	if err := a.hub.Stop(); err != nil {
		log.Warn().Err(err).Msg("event hub shutdown failed")
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("store close failed")
		return err
	}
	return nil
}

// Project returns the project record for the current repository.
func (a *App) Project() *domain.Project {
	return a.project
}

// Engine returns the reconciliation engine.
func (a *App) Engine() *reconcile.Engine {
	return a.engine
}

// Projection returns the board projection.
func (a *App) Projection() *board.Projection {
	return a.projection
}

// Store returns the session store.
func (a *App) Store() ports.SessionStore {
	return a.store
}

// Runtime returns the runtime monitor.
func (a *App) Runtime() ports.RuntimeMonitor {
	return a.runtime
}

// Filler returns the AI field filler, or the disabled stand-in.
func (a *App) Filler() ports.FieldFiller {
	return a.filler
}

// Hub returns the event hub.
func (a *App) Hub() ports.EventHub {
	return a.hub
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}
