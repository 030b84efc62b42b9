package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/events"
)

func TestCreateMaterializesTriple(t *testing.T) {
	f := newFixture(t)

	sess, err := f.engine.Create(context.Background(), CreateRequest{Name: "Fix Login!"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if sess.Name != "Fix Login!" {
		t.Errorf("Name = %q, want the raw name", sess.Name)
	}
	if sess.BranchName != "wb/fix-login" {
		t.Errorf("BranchName = %q, want %q", sess.BranchName, "wb/fix-login")
	}
	if sess.WorktreePath != "/work/repo-fix-login" {
		t.Errorf("WorktreePath = %q, want %q", sess.WorktreePath, "/work/repo-fix-login")
	}
	if sess.Status != "planned" {
		t.Errorf("Status = %q, want first column", sess.Status)
	}
	if sess.ProvisioningState != domain.StateProvisioned {
		t.Errorf("ProvisioningState = %q, want %q", sess.ProvisioningState, domain.StateProvisioned)
	}

	if !f.ws.HasBranch("wb/fix-login") {
		t.Error("branch was not created")
	}
	if !f.ws.HasDir("/work/repo-fix-login") {
		t.Error("worktree was not created")
	}
	runtimeName := domain.RuntimeSessionName("workbench", f.project.ID, sess.ID)
	if !f.runtime.HasSession(runtimeName) {
		t.Errorf("runtime session %s was not created", runtimeName)
	}

	stored, err := f.store.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.ProvisioningState != domain.StateProvisioned {
		t.Errorf("stored state = %q, want %q", stored.ProvisioningState, domain.StateProvisioned)
	}

	if got := f.hub.EventsOfType(events.EventTypeOpCompleted); len(got) != 1 {
		t.Errorf("op_completed events = %d, want 1", len(got))
	}
	if got := f.hub.EventsOfType(events.EventTypeBoardUpdated); len(got) == 0 {
		t.Error("no board_updated event published")
	}
}

func TestCreateExplicitColumnAndBase(t *testing.T) {
	f := newFixture(t)

	sess, err := f.engine.Create(context.Background(), CreateRequest{
		Name:    "experiment",
		Column:  "review",
		BaseRef: "main",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.Status != "review" {
		t.Errorf("Status = %q, want %q", sess.Status, "review")
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"empty name", CreateRequest{Name: "   "}},
		{"unknown column", CreateRequest{Name: "ok", Column: "nonexistent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Create(context.Background(), tt.req)
			var rerr *domain.ReconciliationError
			if !errors.As(err, &rerr) {
				t.Fatalf("Create() error = %v, want ReconciliationError", err)
			}
			if rerr.Step != domain.StepValidate {
				t.Errorf("Step = %q, want %q", rerr.Step, domain.StepValidate)
			}
			if f.store.SessionCount() != 0 {
				t.Errorf("session count = %d, want 0", f.store.SessionCount())
			}
		})
	}
}

func TestCreateCollidingSanitizedNames(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "Fix Login")

	// "fix login" sanitizes to the same branch and worktree.
	_, err := f.engine.Create(context.Background(), CreateRequest{Name: "fix login"})
	var rerr *domain.ReconciliationError
	if !errors.As(err, &rerr) {
		t.Fatalf("Create() error = %v, want ReconciliationError", err)
	}
	if rerr.Step != domain.StepValidate {
		t.Errorf("Step = %q, want %q", rerr.Step, domain.StepValidate)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("cause = %v, want ValidationError", rerr.Cause)
	}

	// The second call must not have touched anything external.
	createCalls := 0
	for _, call := range f.ws.Calls() {
		if strings.HasPrefix(call, "CreateWorkspace") {
			createCalls++
		}
	}
	if createCalls != 1 {
		t.Errorf("CreateWorkspace calls = %d, want 1", createCalls)
	}
	if f.store.SessionCount() != 1 {
		t.Errorf("session count = %d, want 1", f.store.SessionCount())
	}
}

func TestCreateRejectsExistingBranch(t *testing.T) {
	f := newFixture(t)
	f.ws.SeedWorkspace("wb/taken", "/somewhere/else")

	_, err := f.engine.Create(context.Background(), CreateRequest{Name: "taken"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Create() error = %v, want ValidationError cause", err)
	}
	if verr.Field != "branch" {
		t.Errorf("Field = %q, want %q", verr.Field, "branch")
	}
	if f.store.SessionCount() != 0 {
		t.Errorf("session count = %d, want 0", f.store.SessionCount())
	}
}

func TestCreateRollsBackWhenWorkspaceFails(t *testing.T) {
	f := newFixture(t)
	f.ws.FailOn["CreateWorkspace"] = errors.New("git exploded")

	_, err := f.engine.Create(context.Background(), CreateRequest{Name: "doomed"})
	var rerr *domain.ReconciliationError
	if !errors.As(err, &rerr) {
		t.Fatalf("Create() error = %v, want ReconciliationError", err)
	}
	if rerr.Step != domain.StepProvisionWorkspace {
		t.Errorf("Step = %q, want %q", rerr.Step, domain.StepProvisionWorkspace)
	}
	if !rerr.RollbackOK {
		t.Error("RollbackOK = false, want true")
	}
	if f.store.SessionCount() != 0 {
		t.Errorf("session count = %d, want 0", f.store.SessionCount())
	}
	for _, call := range f.runtime.Calls() {
		if strings.HasPrefix(call, "Create") {
			t.Errorf("runtime was started for a failed workspace: %s", call)
		}
	}
}

func TestCreateRollsBackWhenRuntimeFails(t *testing.T) {
	f := newFixture(t)
	f.runtime.FailOn["Create"] = errors.New("no multiplexer")

	_, err := f.engine.Create(context.Background(), CreateRequest{Name: "doomed"})
	var rerr *domain.ReconciliationError
	if !errors.As(err, &rerr) {
		t.Fatalf("Create() error = %v, want ReconciliationError", err)
	}
	if rerr.Step != domain.StepStartRuntime {
		t.Errorf("Step = %q, want %q", rerr.Step, domain.StepStartRuntime)
	}
	if !rerr.RollbackOK {
		t.Error("RollbackOK = false, want true")
	}

	// No leftover branch, worktree or record.
	if f.ws.HasBranch("wb/doomed") {
		t.Error("branch survived the rollback")
	}
	if f.ws.HasDir("/work/repo-doomed") {
		t.Error("worktree survived the rollback")
	}
	if f.store.SessionCount() != 0 {
		t.Errorf("session count = %d, want 0", f.store.SessionCount())
	}
}

func TestCreateReportsIncompleteRollback(t *testing.T) {
	f := newFixture(t)
	f.runtime.FailOn["Create"] = errors.New("no multiplexer")
	f.ws.FailOn["RemoveWorktree"] = errors.New("directory busy")

	_, err := f.engine.Create(context.Background(), CreateRequest{Name: "doomed"})
	var rerr *domain.ReconciliationError
	if !errors.As(err, &rerr) {
		t.Fatalf("Create() error = %v, want ReconciliationError", err)
	}
	if rerr.RollbackOK {
		t.Error("RollbackOK = true, want false")
	}
}

func TestCreateCancelledBetweenSteps(t *testing.T) {
	f := newFixture(t)
	gated := newGatedWorkspace()
	engine := NewEngine(Options{
		Project:   f.project,
		Store:     f.store,
		Workspace: gated,
		Runtime:   f.runtime,
		Prefix:    "workbench",
	})
	if err := engine.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = engine.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := engine.SubmitCreate(ctx, CreateRequest{Name: "cancelled"})

	select {
	case <-gated.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("create never reached the workspace step")
	}
	// Cancel while the workspace step runs; it still completes, then the
	// next step must not start.
	cancel()
	close(gated.gate)

	result := <-resultCh
	if !errors.Is(result.Err, domain.ErrOpCancelled) {
		t.Fatalf("result.Err = %v, want ErrOpCancelled", result.Err)
	}
	for _, call := range f.runtime.Calls() {
		if strings.HasPrefix(call, "Create") {
			t.Errorf("runtime started after cancellation: %s", call)
		}
	}
	// The finished workspace step was rolled back.
	if gated.HasBranch("wb/cancelled") {
		t.Error("branch survived the cancellation rollback")
	}
	if f.store.SessionCount() != 0 {
		t.Errorf("session count = %d, want 0", f.store.SessionCount())
	}
}

func TestDeleteRemovesTriple(t *testing.T) {
	f := newFixture(t)
	sess := f.mustCreate(t, "done-soon")
	runtimeName := domain.RuntimeSessionName("workbench", f.project.ID, sess.ID)

	warnings, err := f.engine.Delete(context.Background(), DeleteRequest{Name: "done-soon"})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	if f.ws.HasBranch(sess.BranchName) {
		t.Error("branch survived the delete")
	}
	if f.ws.HasDir(sess.WorktreePath) {
		t.Error("worktree survived the delete")
	}
	if f.runtime.HasSession(runtimeName) {
		t.Error("runtime session survived the delete")
	}
	if _, err := f.store.GetSession(context.Background(), sess.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("GetSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestDeleteRefusesDirtyWorktree(t *testing.T) {
	f := newFixture(t)
	sess := f.mustCreate(t, "precious")
	f.ws.SetDirty(sess.WorktreePath, 1, 2, 3)

	_, err := f.engine.Delete(context.Background(), DeleteRequest{Name: "precious"})
	var dirty *domain.DirtyWorktreeError
	if !errors.As(err, &dirty) {
		t.Fatalf("Delete() error = %v, want DirtyWorktreeError", err)
	}
	if dirty.Staged != 1 || dirty.Unstaged != 2 || dirty.Untracked != 3 {
		t.Errorf("counts = %d/%d/%d, want 1/2/3", dirty.Staged, dirty.Unstaged, dirty.Untracked)
	}

	// Nothing was touched: no kill, record intact and still provisioned.
	for _, call := range f.runtime.Calls() {
		if strings.HasPrefix(call, "Kill") {
			t.Errorf("runtime killed before the dirty check: %s", call)
		}
	}
	stored, err := f.store.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.ProvisioningState != domain.StateProvisioned {
		t.Errorf("state = %q, want %q", stored.ProvisioningState, domain.StateProvisioned)
	}
}

func TestDeleteForcesPastDirtyWorktree(t *testing.T) {
	f := newFixture(t)
	sess := f.mustCreate(t, "scratch")
	f.ws.SetDirty(sess.WorktreePath, 0, 5, 0)

	if _, err := f.engine.Delete(context.Background(), DeleteRequest{Name: "scratch", Force: true}); err != nil {
		t.Fatalf("Delete(force) error = %v", err)
	}
	if f.store.SessionCount() != 0 {
		t.Errorf("session count = %d, want 0", f.store.SessionCount())
	}
}

func TestDeleteHaltsWhenWorktreeRemovalFails(t *testing.T) {
	f := newFixture(t)
	sess := f.mustCreate(t, "stuck")
	f.ws.FailOn["RemoveWorktree"] = errors.New("device busy")

	_, err := f.engine.Delete(context.Background(), DeleteRequest{Name: "stuck"})
	var rerr *domain.ReconciliationError
	if !errors.As(err, &rerr) {
		t.Fatalf("Delete() error = %v, want ReconciliationError", err)
	}
	if rerr.Step != domain.StepDestroyWorkspace {
		t.Errorf("Step = %q, want %q", rerr.Step, domain.StepDestroyWorkspace)
	}

	// The record stays so the worktree remains discoverable.
	stored, err := f.store.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.ProvisioningState != domain.StateTearingDown {
		t.Errorf("state = %q, want %q", stored.ProvisioningState, domain.StateTearingDown)
	}
}

func TestDeleteContinuesPastSecondaryFailures(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "messy")
	f.runtime.FailOn["Kill"] = errors.New("kill refused")
	f.ws.FailOn["DeleteBranch"] = errors.New("unmerged commits")

	warnings, err := f.engine.Delete(context.Background(), DeleteRequest{Name: "messy"})
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2 entries", warnings)
	}
	if f.store.SessionCount() != 0 {
		t.Errorf("session count = %d, want 0", f.store.SessionCount())
	}
}

func TestDeleteUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Delete(context.Background(), DeleteRequest{Name: "nope"})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Delete() error = %v, want ErrSessionNotFound", err)
	}
}

func TestMove(t *testing.T) {
	f := newFixture(t)
	sess := f.mustCreate(t, "on-the-move")

	moved, err := f.engine.Move(context.Background(), MoveRequest{Name: "on-the-move", Column: "in_progress"})
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if moved.Status != "in_progress" {
		t.Errorf("Status = %q, want %q", moved.Status, "in_progress")
	}

	stored, _ := f.store.GetSession(context.Background(), sess.ID)
	if stored.Status != "in_progress" {
		t.Errorf("stored Status = %q, want %q", stored.Status, "in_progress")
	}
	if stored.BranchName != sess.BranchName || stored.WorktreePath != sess.WorktreePath {
		t.Error("move touched more than the column")
	}
}

func TestMoveRejectsUnknownColumn(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, "stationary")

	_, err := f.engine.Move(context.Background(), MoveRequest{Name: "stationary", Column: "limbo"})
	if !errors.Is(err, domain.ErrUnknownColumn) {
		t.Errorf("Move() error = %v, want ErrUnknownColumn", err)
	}
}

func TestMoveUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Move(context.Background(), MoveRequest{Name: "ghost", Column: "done"})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Move() error = %v, want ErrSessionNotFound", err)
	}
}
