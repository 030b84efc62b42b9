package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brianly1003/workbench/internal/board"
	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/events"
	"github.com/brianly1003/workbench/internal/domain/ports"
	"github.com/brianly1003/workbench/internal/reconcile"
	"github.com/brianly1003/workbench/internal/testutil"
)

type stubFiller struct {
	values []string
	err    error
	reqs   []ports.FillRequest
}

func (f *stubFiller) Fill(ctx context.Context, req ports.FillRequest) ([]string, error) {
	f.reqs = append(f.reqs, req)
	return f.values, f.err
}

type appFixture struct {
	app     *App
	engine  *reconcile.Engine
	store   *testutil.MemStore
	runtime *testutil.FakeRuntime
	filler  *stubFiller
	project *domain.Project
}

func newAppFixture(t *testing.T) *appFixture {
	t.Helper()

	store := testutil.NewMemStore()
	project, err := store.EnsureProject(context.Background(), "/work/repo", "repo")
	if err != nil {
		t.Fatalf("ensure project: %v", err)
	}
	runtime := testutil.NewFakeRuntime("workbench")
	engine := reconcile.NewEngine(reconcile.Options{
		Project:   project,
		Store:     store,
		Workspace: testutil.NewFakeWorkspace(),
		Runtime:   runtime,
		Hub:       testutil.NewMockEventHub(),
		Prefix:    "workbench",
	})
	if err := engine.Start(); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(func() { engine.Stop() })

	filler := &stubFiller{}
	app := New(Options{
		Engine:     engine,
		Projection: board.NewProjection(project, store, runtime, nil, "workbench"),
		Store:      store,
		Runtime:    runtime,
		Filler:     filler,
		Prefix:     "workbench",
	})
	return &appFixture{
		app:     app,
		engine:  engine,
		store:   store,
		runtime: runtime,
		filler:  filler,
		project: project,
	}
}

func (f *appFixture) mustCreate(t *testing.T, name string) *domain.Session {
	t.Helper()
	sess, err := f.engine.Create(context.Background(), reconcile.CreateRequest{Name: name})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return sess
}

// refresh runs the board refresh command synchronously and folds the result
// into the model.
func (f *appFixture) refresh(t *testing.T) {
	t.Helper()
	msg := f.app.refreshBoard()()
	bm, ok := msg.(boardMsg)
	if !ok {
		t.Fatalf("expected boardMsg, got %T", msg)
	}
	if bm.err != nil {
		t.Fatalf("refresh board: %v", bm.err)
	}
	f.app.Update(msg)
}

// press feeds one key into Update and returns the command it produced.
func press(t *testing.T, app *App, key string) tea.Cmd {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		msg = tea.KeyMsg{Type: tea.KeyShiftTab}
	case "ctrl+a":
		msg = tea.KeyMsg{Type: tea.KeyCtrlA}
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	_, cmd := app.Update(msg)
	return cmd
}

// runOp executes a submitted operation command and folds its result into
// the model.
func runOp(t *testing.T, app *App, cmd tea.Cmd) reconcile.OpResult {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected an operation command, got nil")
	}
	msg := cmd()
	od, ok := msg.(opDoneMsg)
	if !ok {
		t.Fatalf("expected opDoneMsg, got %T", msg)
	}
	app.Update(msg)
	return od.result
}

func TestNewAppDefaults(t *testing.T) {
	f := newAppFixture(t)

	if f.app.state != viewBoard {
		t.Fatalf("expected board view, got %d", f.app.state)
	}
	if f.app.board != nil {
		t.Fatalf("board should be empty before the first refresh")
	}
	if len(f.app.columns) != len(domain.DefaultColumns) {
		t.Fatalf("expected %d columns, got %d", len(domain.DefaultColumns), len(f.app.columns))
	}
}

func TestAppBoardNavigation(t *testing.T) {
	f := newAppFixture(t)
	f.mustCreate(t, "alpha")
	f.mustCreate(t, "beta")
	if _, err := f.engine.Move(context.Background(), reconcile.MoveRequest{Name: "beta", Column: "review"}); err != nil {
		t.Fatalf("move beta: %v", err)
	}
	f.refresh(t)

	if got := len(f.app.board.Columns); got != 4 {
		t.Fatalf("expected 4 columns, got %d", got)
	}
	if sess := f.app.selectedSession(); sess == nil || sess.Name != "alpha" {
		t.Fatalf("expected alpha selected, got %+v", sess)
	}

	press(t, f.app, "l")
	press(t, f.app, "l")
	if f.app.selCol != 2 {
		t.Fatalf("expected column 2 selected, got %d", f.app.selCol)
	}
	if sess := f.app.selectedSession(); sess == nil || sess.Name != "beta" {
		t.Fatalf("expected beta selected in review, got %+v", sess)
	}

	press(t, f.app, "h")
	if f.app.selCol != 1 {
		t.Fatalf("expected column 1 selected, got %d", f.app.selCol)
	}
	if sess := f.app.selectedSession(); sess != nil {
		t.Fatalf("in_progress is empty, expected no selection, got %s", sess.Name)
	}

	press(t, f.app, "j")
	press(t, f.app, "k")
	if f.app.selRow != 0 {
		t.Fatalf("row must stay clamped at 0, got %d", f.app.selRow)
	}
}

func TestAppCreateFlow(t *testing.T) {
	f := newAppFixture(t)
	f.refresh(t)

	press(t, f.app, "n")
	if f.app.state != viewCreate {
		t.Fatalf("expected create view, got %d", f.app.state)
	}

	f.app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("gamma")})
	cmd := press(t, f.app, "enter")
	if f.app.state != viewBoard {
		t.Fatalf("expected board view after submit, got %d", f.app.state)
	}
	if !f.app.opPending {
		t.Fatalf("expected a pending operation")
	}

	res := runOp(t, f.app, cmd)
	if res.Err != nil {
		t.Fatalf("create failed: %v", res.Err)
	}
	if f.app.opPending {
		t.Fatalf("operation must be cleared after the result")
	}
	if !strings.Contains(f.app.statusMsg, "done") {
		t.Fatalf("expected done status, got %q", f.app.statusMsg)
	}
	if _, err := f.store.GetSessionByName(context.Background(), f.project.ID, "gamma"); err != nil {
		t.Fatalf("gamma not in store: %v", err)
	}

	f.refresh(t)
	if got := f.app.board.CardCount(); got != 1 {
		t.Fatalf("expected 1 card, got %d", got)
	}
}

func TestAppCreateEmptyNameDoesNothing(t *testing.T) {
	f := newAppFixture(t)
	f.refresh(t)

	press(t, f.app, "n")
	cmd := press(t, f.app, "enter")
	if cmd != nil {
		t.Fatalf("empty name must not submit")
	}
	if f.app.state != viewBoard {
		t.Fatalf("expected board view, got %d", f.app.state)
	}
	if f.store.SessionCount() != 0 {
		t.Fatalf("no session should have been created")
	}
}

func TestAppDeleteConfirmFlow(t *testing.T) {
	f := newAppFixture(t)
	f.mustCreate(t, "alpha")
	f.refresh(t)

	press(t, f.app, "d")
	if f.app.state != viewConfirmDelete {
		t.Fatalf("expected delete confirm, got %d", f.app.state)
	}
	if f.app.deleteTarget == nil || f.app.deleteTarget.Name != "alpha" {
		t.Fatalf("expected alpha as delete target, got %+v", f.app.deleteTarget)
	}

	press(t, f.app, "f")
	if !f.app.deleteForce {
		t.Fatalf("f must toggle force on")
	}

	press(t, f.app, "n")
	if f.app.state != viewBoard || f.app.deleteTarget != nil {
		t.Fatalf("n must cancel the delete")
	}
	if _, err := f.store.GetSessionByName(context.Background(), f.project.ID, "alpha"); err != nil {
		t.Fatalf("alpha must survive a cancelled delete: %v", err)
	}

	press(t, f.app, "d")
	cmd := press(t, f.app, "y")
	res := runOp(t, f.app, cmd)
	if res.Err != nil {
		t.Fatalf("delete failed: %v", res.Err)
	}
	if _, err := f.store.GetSessionByName(context.Background(), f.project.ID, "alpha"); err == nil {
		t.Fatalf("alpha should be gone after delete")
	}
}

func TestAppMoveCardRight(t *testing.T) {
	f := newAppFixture(t)
	f.mustCreate(t, "alpha")
	f.refresh(t)

	cmd := press(t, f.app, "L")
	if !strings.Contains(f.app.statusMsg, "moving alpha to in_progress") {
		t.Fatalf("unexpected status: %q", f.app.statusMsg)
	}
	res := runOp(t, f.app, cmd)
	if res.Err != nil {
		t.Fatalf("move failed: %v", res.Err)
	}

	f.refresh(t)
	if got := len(f.app.board.Columns[1].Cards); got != 1 {
		t.Fatalf("expected alpha in in_progress, got %d cards", got)
	}

	// planned is now empty, so there is nothing to move from here
	if cmd := press(t, f.app, "H"); cmd != nil {
		t.Fatalf("move without a selected card must be a no-op")
	}
}

func TestAppMoveBlockedWhileOpPending(t *testing.T) {
	f := newAppFixture(t)
	f.mustCreate(t, "alpha")
	f.refresh(t)

	f.app.opPending = true
	if cmd := press(t, f.app, "L"); cmd != nil {
		t.Fatalf("move must wait for the running operation")
	}
}

func TestAppEscCancelsPendingOp(t *testing.T) {
	f := newAppFixture(t)
	f.refresh(t)

	cancelled := false
	f.app.opPending = true
	f.app.opLabel = "create"
	f.app.opCancel = func() { cancelled = true }

	press(t, f.app, "esc")
	if !cancelled {
		t.Fatalf("esc must cancel the pending operation's context")
	}
	if !strings.Contains(f.app.statusMsg, "cancelling") {
		t.Fatalf("unexpected status: %q", f.app.statusMsg)
	}
}

func TestAppPeekShowsPane(t *testing.T) {
	f := newAppFixture(t)
	sess := f.mustCreate(t, "alpha")
	f.runtime.SetPane(domain.RuntimeSessionName("workbench", f.project.ID, sess.ID), "$ make test\nok")
	f.refresh(t)

	cmd := press(t, f.app, "p")
	if cmd == nil {
		t.Fatalf("expected a peek command")
	}
	msg := cmd()
	pm, ok := msg.(peekMsg)
	if !ok {
		t.Fatalf("expected peekMsg, got %T", msg)
	}
	if pm.name != "alpha" || !strings.Contains(pm.content, "make test") {
		t.Fatalf("unexpected peek payload: %+v", pm)
	}

	f.app.Update(msg)
	if f.app.state != viewPeek {
		t.Fatalf("expected peek view, got %d", f.app.state)
	}

	press(t, f.app, "esc")
	if f.app.state != viewBoard {
		t.Fatalf("esc must return to the board")
	}
}

func TestAppEditSaveFieldsAndComment(t *testing.T) {
	f := newAppFixture(t)
	def := &domain.FieldDefinition{ProjectID: f.project.ID, Name: "priority", Description: "How urgent is this"}
	if err := f.store.AddFieldDef(context.Background(), def); err != nil {
		t.Fatalf("add field def: %v", err)
	}
	sess := f.mustCreate(t, "alpha")
	f.refresh(t)

	press(t, f.app, "e")
	if f.app.state != viewEdit {
		t.Fatalf("expected edit view, got %d", f.app.state)
	}
	if f.app.edit == nil || len(f.app.edit.inputs) != 1 {
		t.Fatalf("expected one field input")
	}

	f.app.edit.inputs[0].SetValue("high")
	f.app.edit.comment.SetValue("looks good")
	press(t, f.app, "enter")

	if f.app.state != viewBoard {
		t.Fatalf("save must close the modal")
	}
	values, err := f.store.GetFieldValues(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get field values: %v", err)
	}
	if values[def.ID] != "high" {
		t.Fatalf("expected priority high, got %q", values[def.ID])
	}
	comments, err := f.store.ListComments(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 || comments[0].Body != "looks good" {
		t.Fatalf("unexpected comments: %+v", comments)
	}
}

func TestAppEditFocusCycle(t *testing.T) {
	f := newAppFixture(t)
	for _, name := range []string{"priority", "reviewer"} {
		def := &domain.FieldDefinition{ProjectID: f.project.ID, Name: name}
		if err := f.store.AddFieldDef(context.Background(), def); err != nil {
			t.Fatalf("add field def: %v", err)
		}
	}
	f.mustCreate(t, "alpha")
	f.refresh(t)
	press(t, f.app, "e")

	if f.app.edit.focus != 0 {
		t.Fatalf("focus must start on the first field")
	}
	press(t, f.app, "tab")
	press(t, f.app, "tab")
	if f.app.edit.focus != 2 {
		t.Fatalf("expected comment row focused, got %d", f.app.edit.focus)
	}
	press(t, f.app, "tab")
	if f.app.edit.focus != 0 {
		t.Fatalf("tab must wrap back to the first field, got %d", f.app.edit.focus)
	}
	press(t, f.app, "shift+tab")
	if f.app.edit.focus != 2 {
		t.Fatalf("shift+tab must wrap to the comment row, got %d", f.app.edit.focus)
	}
}

func TestAppEditAIFill(t *testing.T) {
	f := newAppFixture(t)
	f.filler.values = []string{"urgent"}
	def := &domain.FieldDefinition{ProjectID: f.project.ID, Name: "priority", Description: "How urgent is this"}
	if err := f.store.AddFieldDef(context.Background(), def); err != nil {
		t.Fatalf("add field def: %v", err)
	}
	sess := f.mustCreate(t, "alpha")
	f.runtime.SetPane(domain.RuntimeSessionName("workbench", f.project.ID, sess.ID), "compiling...")
	f.refresh(t)

	press(t, f.app, "e")
	press(t, f.app, "ctrl+a")
	if f.app.edit.mode != editAI {
		t.Fatalf("ctrl+a must switch to AI mode")
	}

	f.app.edit.notes.SetValue("ship it")
	cmd := press(t, f.app, "enter")
	if cmd == nil {
		t.Fatalf("expected a fill command")
	}
	if !f.app.edit.filling {
		t.Fatalf("fill must be marked in flight")
	}

	msg := cmd()
	f.app.Update(msg)

	if f.app.edit.filling {
		t.Fatalf("fill must be done")
	}
	if got := f.app.edit.inputs[0].Value(); got != "urgent" {
		t.Fatalf("expected proposed value, got %q", got)
	}
	if f.app.edit.mode != editManual {
		t.Fatalf("a successful fill must drop back to manual mode")
	}

	if len(f.filler.reqs) != 1 {
		t.Fatalf("expected one fill request, got %d", len(f.filler.reqs))
	}
	req := f.filler.reqs[0]
	if req.UserText != "ship it" || req.PaneText != "compiling..." {
		t.Fatalf("unexpected fill request: %+v", req)
	}
	if len(req.Fields) != 1 || req.Fields[0].Name != "priority" {
		t.Fatalf("unexpected fill fields: %+v", req.Fields)
	}
}

func TestAppEditAIFillError(t *testing.T) {
	f := newAppFixture(t)
	f.filler.err = errors.New("model unavailable")
	def := &domain.FieldDefinition{ProjectID: f.project.ID, Name: "priority"}
	if err := f.store.AddFieldDef(context.Background(), def); err != nil {
		t.Fatalf("add field def: %v", err)
	}
	f.mustCreate(t, "alpha")
	f.refresh(t)

	press(t, f.app, "e")
	f.app.edit.inputs[0].SetValue("keep me")
	press(t, f.app, "ctrl+a")
	cmd := press(t, f.app, "enter")

	msg := cmd()
	f.app.Update(msg)

	if f.app.edit.fillErr == "" {
		t.Fatalf("expected the fill error to be surfaced")
	}
	if f.app.edit.mode != editAI {
		t.Fatalf("a failed fill must stay in AI mode")
	}
	if got := f.app.edit.inputs[0].Value(); got != "keep me" {
		t.Fatalf("a failed fill must not touch field values, got %q", got)
	}
}

func TestAppOrphanFlow(t *testing.T) {
	f := newAppFixture(t)
	stray := domain.RuntimeSessionName("workbench", f.project.ID, "feedface")
	f.runtime.SeedSession(stray)
	f.refresh(t)

	cmd := press(t, f.app, "o")
	res := runOp(t, f.app, cmd)
	if res.Err != nil {
		t.Fatalf("sweep failed: %v", res.Err)
	}
	if f.app.state != viewOrphans {
		t.Fatalf("sweep result must open the orphan view")
	}
	if len(f.app.orphans.UnmanagedRuntime) != 1 {
		t.Fatalf("expected one unmanaged session, got %+v", f.app.orphans)
	}

	press(t, f.app, "x")
	if f.app.state != viewConfirmKill || f.app.killTarget != stray {
		t.Fatalf("x must ask before killing %q", stray)
	}

	cmd = press(t, f.app, "y")
	res = runOp(t, f.app, cmd)
	if res.Err != nil {
		t.Fatalf("kill failed: %v", res.Err)
	}
	if f.runtime.HasSession(stray) {
		t.Fatalf("stray session must be gone")
	}

	cmd = press(t, f.app, "r")
	runOp(t, f.app, cmd)
	if !f.app.orphans.Empty() {
		t.Fatalf("re-sweep must come back clean, got %+v", f.app.orphans)
	}
}

func TestAppAttachRequiresProvisioned(t *testing.T) {
	f := newAppFixture(t)
	sess := f.mustCreate(t, "alpha")
	if err := f.store.SetProvisioningState(context.Background(), sess.ID, domain.StateProvisioning); err != nil {
		t.Fatalf("set state: %v", err)
	}
	f.refresh(t)

	if cmd := press(t, f.app, "enter"); cmd != nil {
		t.Fatalf("attach must be blocked while provisioning")
	}
	if !strings.Contains(f.app.statusMsg, "provisioning") {
		t.Fatalf("unexpected status: %q", f.app.statusMsg)
	}
}

func TestAppQuitKey(t *testing.T) {
	f := newAppFixture(t)
	f.refresh(t)

	cmd := press(t, f.app, "q")
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q must quit")
	}
}

func TestAppHubEventsArriveAsMessages(t *testing.T) {
	f := newAppFixture(t)
	hub := testutil.NewMockEventHub()
	app := New(Options{
		Engine:     f.engine,
		Projection: board.NewProjection(f.project, f.store, f.runtime, nil, "workbench"),
		Store:      f.store,
		Runtime:    f.runtime,
		Filler:     f.filler,
		Hub:        hub,
		Prefix:     "workbench",
	})
	if app.sub == nil {
		t.Fatalf("expected a hub subscription")
	}

	if err := app.sub.Send(events.NewBoardUpdatedEvent(f.project.ID, "store-changed")); err != nil {
		t.Fatalf("send event: %v", err)
	}
	msg := app.waitForHubEvent()()
	hm, ok := msg.(hubEventMsg)
	if !ok {
		t.Fatalf("expected hubEventMsg, got %T", msg)
	}
	if hm.event.Type() != events.EventTypeBoardUpdated {
		t.Fatalf("unexpected event type %s", hm.event.Type())
	}
	if _, cmd := app.Update(msg); cmd == nil {
		t.Fatalf("a board update must schedule work")
	}
}
