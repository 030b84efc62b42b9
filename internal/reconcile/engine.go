// Package reconcile keeps the store, the repository and the terminal
// multiplexer describing the same set of sessions. All structural
// operations for a project funnel through one worker so no two of them
// ever interleave.
package reconcile

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/events"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// opQueueSize bounds how many submitted operations may wait for the worker.
const opQueueSize = 16

// OpResult is what an operation hands back on its result channel.
type OpResult struct {
	Op       string          `json:"op"`
	Session  *domain.Session `json:"session,omitempty"`
	Report   *OrphanReport   `json:"report,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Err      error           `json:"-"`
}

// CreateRequest describes a session to create.
type CreateRequest struct {
	Name    string
	BaseRef string // "" means the repository HEAD
	Column  string // "" means the first configured column
}

// DeleteRequest names a session to tear down.
type DeleteRequest struct {
	Name  string
	Force bool
}

// MoveRequest moves a session to another column.
type MoveRequest struct {
	Name   string
	Column string
}

type opKind int

const (
	opCreate opKind = iota
	opDelete
	opMove
	opSweep
	opKillUnmanaged
)

var opNames = map[opKind]string{
	opCreate:        "create",
	opDelete:        "delete",
	opMove:          "move",
	opSweep:         "sweep",
	opKillUnmanaged: "kill-unmanaged",
}

type opRequest struct {
	kind   opKind
	ctx    context.Context
	create CreateRequest
	delete DeleteRequest
	move   MoveRequest
	target string // kill-unmanaged runtime name
	result chan OpResult
}

// Engine implements the reconciliation operations for one project.
type Engine struct {
	project   *domain.Project
	store     ports.SessionStore
	workspace ports.WorkspaceProvisioner
	runtime   ports.RuntimeMonitor
	hub       ports.EventHub // nil drops events
	columns   []string
	prefix    string
	baseRef   string

	ops chan *opRequest

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// Options carries the construction parameters for an Engine.
type Options struct {
	Project   *domain.Project
	Store     ports.SessionStore
	Workspace ports.WorkspaceProvisioner
	Runtime   ports.RuntimeMonitor
	Hub       ports.EventHub
	Columns   []string
	Prefix    string
	BaseRef   string
}

// NewEngine creates a new Engine. Columns defaults to the standard board
// sequence when empty.
func NewEngine(opts Options) *Engine {
	columns := opts.Columns
	if len(columns) == 0 {
		columns = domain.DefaultColumns
	}
	return &Engine{
		project:   opts.Project,
		store:     opts.Store,
		workspace: opts.Workspace,
		runtime:   opts.Runtime,
		hub:       opts.Hub,
		columns:   columns,
		prefix:    opts.Prefix,
		baseRef:   opts.BaseRef,
		ops:       make(chan *opRequest, opQueueSize),
	}
}

// Columns returns the configured board column sequence.
func (e *Engine) Columns() []string {
	return e.columns
}

// Project returns the project this engine reconciles.
func (e *Engine) Project() *domain.Project {
	return e.project
}

// Start launches the worker goroutine.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	e.running = true
	e.done = make(chan struct{})
	e.stopped = make(chan struct{})
	go e.run()
	log.Debug().Int64("project_id", e.project.ID).Msg("reconciliation engine started")
	return nil
}

// Stop stops the worker after the current operation finishes. Queued
// operations that never ran fail with ErrEngineStopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	close(e.done)
	stopped := e.stopped
	e.mu.Unlock()

	<-stopped
	return nil
}

func (e *Engine) run() {
	defer close(e.stopped)
	for {
		select {
		case req := <-e.ops:
			e.handle(req)
		case <-e.done:
			// Fail whatever is still queued.
			for {
				select {
				case req := <-e.ops:
					req.result <- OpResult{Op: opNames[req.kind], Err: domain.ErrEngineStopped}
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) handle(req *opRequest) {
	name := opNames[req.kind]
	log.Debug().Str("op", name).Msg("reconciliation op started")

	var result OpResult
	switch req.kind {
	case opCreate:
		result = e.runCreate(req.ctx, req.create)
	case opDelete:
		result = e.runDelete(req.ctx, req.delete)
	case opMove:
		result = e.runMove(req.ctx, req.move)
	case opSweep:
		result = e.runSweep(req.ctx)
	case opKillUnmanaged:
		result = e.runKillUnmanaged(req.ctx, req.target)
	}
	result.Op = name

	if result.Err != nil {
		log.Warn().Str("op", name).Err(result.Err).Msg("reconciliation op failed")
	} else {
		log.Info().Str("op", name).Msg("reconciliation op completed")
	}

	e.publishOpCompleted(result)
	req.result <- result
}

func (e *Engine) submit(req *opRequest) <-chan OpResult {
	req.result = make(chan OpResult, 1)

	e.mu.Lock()
	running := e.running
	done := e.done
	e.mu.Unlock()
	if !running {
		req.result <- OpResult{Op: opNames[req.kind], Err: domain.ErrEngineStopped}
		return req.result
	}

	select {
	case e.ops <- req:
	case <-done:
		req.result <- OpResult{Op: opNames[req.kind], Err: domain.ErrEngineStopped}
	}
	return req.result
}

// SubmitCreate queues a create operation. The returned channel receives
// exactly one result.
func (e *Engine) SubmitCreate(ctx context.Context, req CreateRequest) <-chan OpResult {
	return e.submit(&opRequest{kind: opCreate, ctx: ctx, create: req})
}

// SubmitDelete queues a delete operation.
func (e *Engine) SubmitDelete(ctx context.Context, req DeleteRequest) <-chan OpResult {
	return e.submit(&opRequest{kind: opDelete, ctx: ctx, delete: req})
}

// SubmitMove queues a move operation.
func (e *Engine) SubmitMove(ctx context.Context, req MoveRequest) <-chan OpResult {
	return e.submit(&opRequest{kind: opMove, ctx: ctx, move: req})
}

// SubmitSweep queues an orphan sweep.
func (e *Engine) SubmitSweep(ctx context.Context) <-chan OpResult {
	return e.submit(&opRequest{kind: opSweep, ctx: ctx})
}

// SubmitKillUnmanaged queues the termination of one unmanaged runtime
// session.
func (e *Engine) SubmitKillUnmanaged(ctx context.Context, runtimeName string) <-chan OpResult {
	return e.submit(&opRequest{kind: opKillUnmanaged, ctx: ctx, target: runtimeName})
}

// Create runs a create operation and waits for its result.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*domain.Session, error) {
	result := <-e.SubmitCreate(ctx, req)
	return result.Session, result.Err
}

// Delete runs a delete operation and waits for its result.
func (e *Engine) Delete(ctx context.Context, req DeleteRequest) ([]string, error) {
	result := <-e.SubmitDelete(ctx, req)
	return result.Warnings, result.Err
}

// Move runs a move operation and waits for its result.
func (e *Engine) Move(ctx context.Context, req MoveRequest) (*domain.Session, error) {
	result := <-e.SubmitMove(ctx, req)
	return result.Session, result.Err
}

// Sweep runs an orphan sweep and waits for the report.
func (e *Engine) Sweep(ctx context.Context) (*OrphanReport, error) {
	result := <-e.SubmitSweep(ctx)
	return result.Report, result.Err
}

// KillUnmanaged terminates one unmanaged runtime session and waits.
func (e *Engine) KillUnmanaged(ctx context.Context, runtimeName string) error {
	result := <-e.SubmitKillUnmanaged(ctx, runtimeName)
	return result.Err
}

func (e *Engine) validColumn(column string) bool {
	for _, c := range e.columns {
		if c == column {
			return true
		}
	}
	return false
}

// resolveSession finds a session by name, falling back to ID lookup.
func (e *Engine) resolveSession(ctx context.Context, name string) (*domain.Session, error) {
	sess, err := e.store.GetSessionByName(ctx, e.project.ID, name)
	if err == nil {
		return sess, nil
	}
	return e.store.GetSession(ctx, name)
}

func (e *Engine) publish(event events.Event) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(event)
}

func (e *Engine) publishOpCompleted(result OpResult) {
	sessionID := ""
	name := ""
	if result.Session != nil {
		sessionID = result.Session.ID
		name = result.Session.Name
	}
	e.publish(events.NewOpCompletedEvent(e.project.ID, sessionID, result.Op, name, result.Err))
	e.publish(events.NewBoardUpdatedEvent(e.project.ID, result.Op))
}

func (e *Engine) publishSessionChanged(sess *domain.Session) {
	e.publish(events.NewSessionChangedEvent(e.project.ID, sess.ID, sess.Name, sess.Status, string(sess.ProvisioningState)))
}
