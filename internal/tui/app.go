// Package tui renders the kanban board in the terminal. It follows The Elm
// Architecture: the App model holds all state, Update folds messages into
// it, View draws it. Engine operations run as commands off the UI loop and
// come back as messages, so the board stays responsive while worktrees are
// built or torn down.
package tui

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/brianly1003/workbench/internal/board"
	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/events"
	"github.com/brianly1003/workbench/internal/domain/ports"
	"github.com/brianly1003/workbench/internal/hub"
	"github.com/brianly1003/workbench/internal/reconcile"
)

const (
	boardRefreshInterval = 3 * time.Second
	peekLines            = 40
	hubBufferSize        = 32
)

// viewState represents which "screen" we're on.
type viewState int

const (
	viewBoard viewState = iota
	viewCreate
	viewConfirmDelete
	viewEdit
	viewPeek
	viewOrphans
	viewConfirmKill
)

type boardMsg struct {
	board *board.Board
	err   error
}

type tickMsg time.Time

type opDoneMsg struct {
	result reconcile.OpResult
}

type hubEventMsg struct {
	event events.Event
}

type peekMsg struct {
	name    string
	content string
	err     error
}

type attachDoneMsg struct {
	err error
}

type fillDoneMsg struct {
	values []string
	err    error
}

// Options carries the collaborators the board app needs.
type Options struct {
	Engine      *reconcile.Engine
	Projection  *board.Projection
	Store       ports.SessionStore
	Runtime     ports.RuntimeMonitor
	Filler      ports.FieldFiller
	Hub         ports.EventHub
	Prefix      string
	TmuxCommand string
}

// App is the main application model. In bubbletea, this holds ALL state.
type App struct {
	engine     *reconcile.Engine
	projection *board.Projection
	store      ports.SessionStore
	runtime    ports.RuntimeMonitor
	filler     ports.FieldFiller
	hub        ports.EventHub
	prefix     string
	tmuxCmd    string
	columns    []string

	state viewState

	// Board snapshot and cursor
	board    *board.Board
	boardErr string
	selCol   int
	selRow   int

	// One engine operation may be in flight at a time from this screen.
	opPending bool
	opLabel   string
	opCancel  context.CancelFunc

	// Create modal
	nameInput textinput.Model

	// Delete confirm modal
	deleteTarget *domain.Session
	deleteForce  bool

	// Peek pane
	peek     viewport.Model
	peekName string

	// Orphan report view
	orphans    *reconcile.OrphanReport
	orphanSel  int
	killTarget string

	// Edit modal
	edit *editState

	sub *hub.ChannelSubscriber

	spin      spinner.Model
	statusMsg string

	width  int
	height int
}

// New creates the board app and subscribes it to the event hub.
func New(opts Options) *App {
	name := textinput.New()
	name.Placeholder = "session name"
	name.CharLimit = 80
	name.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	tmuxCmd := opts.TmuxCommand
	if tmuxCmd == "" {
		tmuxCmd = "tmux"
	}

	a := &App{
		engine:     opts.Engine,
		projection: opts.Projection,
		store:      opts.Store,
		runtime:    opts.Runtime,
		filler:     opts.Filler,
		hub:        opts.Hub,
		prefix:     opts.Prefix,
		tmuxCmd:    tmuxCmd,
		columns:    opts.Engine.Columns(),
		nameInput:  name,
		spin:       sp,
	}
	if a.hub != nil {
		a.sub = hub.NewChannelSubscriber("tui", hubBufferSize)
		a.hub.Subscribe(a.sub)
	}
	return a
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.refreshBoard(), a.scheduleTick(), a.spin.Tick}
	if a.sub != nil {
		cmds = append(cmds, a.waitForHubEvent())
	}
	return tea.Batch(cmds...)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.peek.Width = max(20, msg.Width-8)
		a.peek.Height = max(5, msg.Height-10)
		return a, nil

	case boardMsg:
		if msg.err != nil {
			a.boardErr = msg.err.Error()
		} else {
			a.boardErr = ""
			a.board = msg.board
			a.clampSelection()
		}
		return a, nil

	case tickMsg:
		return a, tea.Batch(a.refreshBoard(), a.scheduleTick())

	case hubEventMsg:
		cmds := []tea.Cmd{a.waitForHubEvent()}
		switch msg.event.Type() {
		case events.EventTypeBoardUpdated, events.EventTypeStoreChanged, events.EventTypeSessionChanged:
			cmds = append(cmds, a.refreshBoard())
		}
		return a, tea.Batch(cmds...)

	case opDoneMsg:
		return a.handleOpDone(msg.result)

	case peekMsg:
		if msg.err != nil {
			a.statusMsg = fmt.Sprintf("peek failed: %v", msg.err)
			return a, nil
		}
		a.peekName = msg.name
		a.peek.SetContent(msg.content)
		a.peek.GotoBottom()
		a.state = viewPeek
		return a, nil

	case attachDoneMsg:
		if msg.err != nil {
			a.statusMsg = fmt.Sprintf("attach ended: %v", msg.err)
		}
		return a, a.refreshBoard()

	case fillDoneMsg:
		if a.state == viewEdit && a.edit != nil {
			a.edit.applyFill(msg)
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, a.forwardToInput(msg)
}

// handleOpDone folds an engine result into the model.
func (a *App) handleOpDone(res reconcile.OpResult) (tea.Model, tea.Cmd) {
	a.opPending = false
	a.opCancel = nil
	a.opLabel = ""

	if res.Err != nil {
		a.statusMsg = fmt.Sprintf("%s failed: %v", res.Op, res.Err)
	} else {
		label := res.Op
		if res.Session != nil {
			label = fmt.Sprintf("%s %s", res.Op, res.Session.Name)
		}
		if len(res.Warnings) > 0 {
			label += fmt.Sprintf(" (%d warnings)", len(res.Warnings))
		}
		a.statusMsg = label + " done"
	}

	if res.Report != nil && res.Err == nil {
		a.orphans = res.Report
		a.orphanSel = 0
		a.state = viewOrphans
	}

	return a, a.refreshBoard()
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.state {
	case viewBoard:
		return a.handleBoardKey(msg)
	case viewCreate:
		return a.handleCreateKey(msg)
	case viewConfirmDelete:
		return a.handleConfirmDeleteKey(msg)
	case viewEdit:
		return a.handleEditKey(msg)
	case viewPeek:
		return a.handlePeekKey(msg)
	case viewOrphans:
		return a.handleOrphansKey(msg)
	case viewConfirmKill:
		return a.handleConfirmKillKey(msg)
	}
	return a, nil
}

func (a *App) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return a, tea.Quit

	case "esc":
		// Cancelling only stops steps that have not started yet.
		if a.opPending && a.opCancel != nil {
			a.opCancel()
			a.statusMsg = "cancelling " + a.opLabel + "..."
		}
		return a, nil

	case "left", "h":
		if a.selCol > 0 {
			a.selCol--
			a.clampRow()
		}

	case "right", "l":
		if a.selCol < len(a.visibleColumns())-1 {
			a.selCol++
			a.clampRow()
		}

	case "up", "k":
		if a.selRow > 0 {
			a.selRow--
		}

	case "down", "j":
		cols := a.visibleColumns()
		if a.selCol < len(cols) && a.selRow < len(cols[a.selCol].Cards)-1 {
			a.selRow++
		}

	case "H", "shift+left":
		return a, a.moveSelected(-1)

	case "L", "shift+right":
		return a, a.moveSelected(1)

	case "n":
		a.nameInput.SetValue("")
		a.nameInput.Focus()
		a.state = viewCreate
		return a, textinput.Blink

	case "d":
		if sess := a.selectedSession(); sess != nil {
			a.deleteTarget = sess
			a.deleteForce = false
			a.state = viewConfirmDelete
		}

	case "e":
		if sess := a.selectedSession(); sess != nil {
			return a, a.openEdit(sess)
		}

	case "enter":
		return a, a.attachSelected()

	case "p", " ":
		return a, a.peekSelected()

	case "o":
		if a.opPending {
			return a, nil
		}
		a.statusMsg = "sweeping..."
		return a, a.submitOp("sweep", func(ctx context.Context) <-chan reconcile.OpResult {
			return a.engine.SubmitSweep(ctx)
		})

	case "r":
		a.statusMsg = "refreshing..."
		return a, a.refreshBoard()
	}

	return a, nil
}

func (a *App) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.state = viewBoard
		a.nameInput.Blur()
		return a, nil

	case tea.KeyEnter:
		name := a.nameInput.Value()
		a.state = viewBoard
		a.nameInput.Blur()
		if name == "" {
			return a, nil
		}
		if a.opPending {
			a.statusMsg = "another operation is still running"
			return a, nil
		}
		a.statusMsg = fmt.Sprintf("creating %s...", name)
		return a, a.submitOp("create", func(ctx context.Context) <-chan reconcile.OpResult {
			return a.engine.SubmitCreate(ctx, reconcile.CreateRequest{Name: name})
		})
	}

	var cmd tea.Cmd
	a.nameInput, cmd = a.nameInput.Update(msg)
	return a, cmd
}

func (a *App) handleConfirmDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "f":
		a.deleteForce = !a.deleteForce
		return a, nil

	case "y", "Y":
		target := a.deleteTarget
		force := a.deleteForce
		a.deleteTarget = nil
		a.state = viewBoard
		if target == nil || a.opPending {
			return a, nil
		}
		a.statusMsg = fmt.Sprintf("deleting %s...", target.Name)
		return a, a.submitOp("delete", func(ctx context.Context) <-chan reconcile.OpResult {
			return a.engine.SubmitDelete(ctx, reconcile.DeleteRequest{Name: target.Name, Force: force})
		})

	case "n", "N", "esc":
		a.deleteTarget = nil
		a.state = viewBoard
		return a, nil
	}
	return a, nil
}

func (a *App) handlePeekKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "p", " ":
		a.state = viewBoard
		return a, nil
	}

	var cmd tea.Cmd
	a.peek, cmd = a.peek.Update(msg)
	return a, cmd
}

func (a *App) handleOrphansKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.state = viewBoard
		return a, nil

	case "up", "k":
		if a.orphanSel > 0 {
			a.orphanSel--
		}

	case "down", "j":
		if a.orphans != nil && a.orphanSel < len(a.orphans.UnmanagedRuntime)-1 {
			a.orphanSel++
		}

	case "x":
		if a.orphans != nil && a.orphanSel < len(a.orphans.UnmanagedRuntime) {
			a.killTarget = a.orphans.UnmanagedRuntime[a.orphanSel]
			a.state = viewConfirmKill
		}

	case "r":
		if a.opPending {
			return a, nil
		}
		a.statusMsg = "sweeping..."
		return a, a.submitOp("sweep", func(ctx context.Context) <-chan reconcile.OpResult {
			return a.engine.SubmitSweep(ctx)
		})
	}
	return a, nil
}

func (a *App) handleConfirmKillKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		name := a.killTarget
		a.killTarget = ""
		a.state = viewOrphans
		if name == "" || a.opPending {
			return a, nil
		}
		a.statusMsg = fmt.Sprintf("killing %s...", name)
		return a, a.submitOp("kill-unmanaged", func(ctx context.Context) <-chan reconcile.OpResult {
			return a.engine.SubmitKillUnmanaged(ctx, name)
		})

	case "n", "N", "esc":
		a.killTarget = ""
		a.state = viewOrphans
		return a, nil
	}
	return a, nil
}

// forwardToInput routes non-key messages (cursor blinks) to whichever text
// input is active.
func (a *App) forwardToInput(msg tea.Msg) tea.Cmd {
	switch a.state {
	case viewCreate:
		var cmd tea.Cmd
		a.nameInput, cmd = a.nameInput.Update(msg)
		return cmd
	case viewEdit:
		if a.edit != nil {
			return a.edit.forward(msg)
		}
	case viewPeek:
		var cmd tea.Cmd
		a.peek, cmd = a.peek.Update(msg)
		return cmd
	}
	return nil
}

// --- Selection helpers ---

func (a *App) visibleColumns() []board.Column {
	if a.board == nil {
		return nil
	}
	return a.board.Columns
}

func (a *App) selectedCard() *board.Card {
	cols := a.visibleColumns()
	if a.selCol >= len(cols) {
		return nil
	}
	cards := cols[a.selCol].Cards
	if a.selRow >= len(cards) {
		return nil
	}
	return &cards[a.selRow]
}

func (a *App) selectedSession() *domain.Session {
	card := a.selectedCard()
	if card == nil {
		return nil
	}
	return card.Session
}

func (a *App) clampSelection() {
	cols := a.visibleColumns()
	if len(cols) == 0 {
		a.selCol, a.selRow = 0, 0
		return
	}
	if a.selCol >= len(cols) {
		a.selCol = len(cols) - 1
	}
	a.clampRow()
}

func (a *App) clampRow() {
	cols := a.visibleColumns()
	if a.selCol >= len(cols) {
		a.selRow = 0
		return
	}
	count := len(cols[a.selCol].Cards)
	if count == 0 {
		a.selRow = 0
	} else if a.selRow >= count {
		a.selRow = count - 1
	}
}

// --- Commands ---

func (a *App) refreshBoard() tea.Cmd {
	return func() tea.Msg {
		b, err := a.projection.Refresh(context.Background())
		return boardMsg{board: b, err: err}
	}
}

func (a *App) scheduleTick() tea.Cmd {
	return tea.Tick(boardRefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) waitForHubEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-a.sub.Events()
		if !ok {
			return nil
		}
		return hubEventMsg{event: ev}
	}
}

// submitOp hands one operation to the engine and waits for its result off
// the UI thread. Esc cancels the context, which stops unstarted steps.
func (a *App) submitOp(label string, submit func(ctx context.Context) <-chan reconcile.OpResult) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	a.opPending = true
	a.opLabel = label
	a.opCancel = cancel
	ch := submit(ctx)
	return func() tea.Msg {
		res := <-ch
		cancel()
		return opDoneMsg{result: res}
	}
}

func (a *App) moveSelected(dir int) tea.Cmd {
	sess := a.selectedSession()
	if sess == nil || a.opPending {
		return nil
	}
	cols := a.visibleColumns()
	target := a.selCol + dir
	if target < 0 || target >= len(cols) {
		return nil
	}
	column := cols[target].Name
	a.statusMsg = fmt.Sprintf("moving %s to %s...", sess.Name, column)
	name := sess.Name
	return a.submitOp("move", func(ctx context.Context) <-chan reconcile.OpResult {
		return a.engine.SubmitMove(ctx, reconcile.MoveRequest{Name: name, Column: column})
	})
}

func (a *App) attachSelected() tea.Cmd {
	sess := a.selectedSession()
	if sess == nil {
		return nil
	}
	if sess.ProvisioningState != domain.StateProvisioned {
		a.statusMsg = fmt.Sprintf("%s is still %s", sess.Name, sess.ProvisioningState)
		return nil
	}
	name := domain.RuntimeSessionName(a.prefix, sess.ProjectID, sess.ID)
	cmd := exec.Command(a.tmuxCmd, "attach-session", "-t", "="+name)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return attachDoneMsg{err: err}
	})
}

func (a *App) peekSelected() tea.Cmd {
	sess := a.selectedSession()
	if sess == nil {
		return nil
	}
	name := domain.RuntimeSessionName(a.prefix, sess.ProjectID, sess.ID)
	display := sess.Name
	return func() tea.Msg {
		content, err := a.runtime.CapturePane(context.Background(), name, peekLines)
		return peekMsg{name: display, content: content, err: err}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
