package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workbench/internal/domain"
)

// runCreate materializes a new session: record first, then branch+worktree,
// then the runtime session, then the provisioned mark. Any failure after
// the record exists undoes whatever was already built.
func (e *Engine) runCreate(opCtx context.Context, req CreateRequest) OpResult {
	// Cancellation stops steps from starting; a step that began finishes
	// under its own tool timeout.
	stepCtx := context.WithoutCancel(opCtx)

	fail := func(step domain.ReconcileStep, cause error, rollbackOK bool) OpResult {
		return OpResult{Err: domain.NewReconciliationError("create", step, cause, rollbackOK)}
	}

	if strings.TrimSpace(req.Name) == "" {
		return fail(domain.StepValidate, domain.NewValidationError("name", "a session name is required"), true)
	}
	column := req.Column
	if column == "" {
		column = e.columns[0]
	}
	if !e.validColumn(column) {
		return fail(domain.StepValidate, domain.ErrUnknownColumn, true)
	}

	branch := domain.BranchName(req.Name)
	path := domain.WorktreePath(e.project.RootPath, req.Name)

	exists, err := e.workspace.BranchExists(stepCtx, branch)
	if err != nil {
		return fail(domain.StepValidate, err, true)
	}
	if exists {
		return fail(domain.StepValidate,
			domain.NewValidationError("branch", fmt.Sprintf("branch %s already exists in the repository", branch)), true)
	}
	if e.workspace.WorktreeDirExists(path) {
		return fail(domain.StepValidate,
			domain.NewValidationError("worktree", fmt.Sprintf("%s already exists on disk", path)), true)
	}

	now := time.Now()
	sess := &domain.Session{
		ID:                uuid.NewString(),
		ProjectID:         e.project.ID,
		Name:              req.Name,
		Status:            column,
		BranchName:        branch,
		WorktreePath:      path,
		ProvisioningState: domain.StateProvisioning,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// The record goes in before any external resource so a crash leaves a
	// discoverable provisioning entry, never an unlisted worktree.
	if err := e.store.CreateSession(stepCtx, sess); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return fail(domain.StepValidate, err, true)
		}
		return fail(domain.StepCommitStore, err, true)
	}
	e.publishSessionChanged(sess)

	if err := opCtx.Err(); err != nil {
		ok := e.rollbackCreate(stepCtx, sess, false, false)
		return fail(domain.StepProvisionWorkspace, domain.ErrOpCancelled, ok)
	}

	baseRef := req.BaseRef
	if baseRef == "" {
		baseRef = e.baseRef
	}
	if err := e.workspace.CreateWorkspace(stepCtx, branch, path, baseRef); err != nil {
		ok := e.rollbackCreate(stepCtx, sess, false, false)
		return fail(domain.StepProvisionWorkspace, err, ok)
	}

	if err := opCtx.Err(); err != nil {
		ok := e.rollbackCreate(stepCtx, sess, true, false)
		return fail(domain.StepStartRuntime, domain.ErrOpCancelled, ok)
	}

	runtimeName := domain.RuntimeSessionName(e.prefix, e.project.ID, sess.ID)
	if err := e.runtime.Create(stepCtx, runtimeName, path); err != nil {
		ok := e.rollbackCreate(stepCtx, sess, true, false)
		return fail(domain.StepStartRuntime, err, ok)
	}

	if err := e.store.SetProvisioningState(stepCtx, sess.ID, domain.StateProvisioned); err != nil {
		ok := e.rollbackCreate(stepCtx, sess, true, true)
		return fail(domain.StepCommitStore, err, ok)
	}
	sess.ProvisioningState = domain.StateProvisioned
	e.publishSessionChanged(sess)

	return OpResult{Session: sess}
}

// rollbackCreate undoes a partially built session in reverse order and
// reports whether every undo succeeded.
func (e *Engine) rollbackCreate(ctx context.Context, sess *domain.Session, workspaceCreated, runtimeStarted bool) bool {
	ok := true
	if runtimeStarted {
		runtimeName := domain.RuntimeSessionName(e.prefix, e.project.ID, sess.ID)
		if err := e.runtime.Kill(ctx, runtimeName); err != nil {
			log.Warn().Str("session", sess.Name).Err(err).Msg("rollback: runtime kill failed")
			ok = false
		}
	}
	if workspaceCreated {
		if err := e.workspace.RemoveWorktree(ctx, sess.WorktreePath, true); err != nil {
			log.Warn().Str("session", sess.Name).Err(err).Msg("rollback: worktree removal failed")
			ok = false
		}
		if err := e.workspace.DeleteBranch(ctx, sess.BranchName); err != nil {
			log.Warn().Str("session", sess.Name).Err(err).Msg("rollback: branch deletion failed")
			ok = false
		}
	}
	if err := e.store.DeleteSession(ctx, sess.ID); err != nil {
		log.Warn().Str("session", sess.Name).Err(err).Msg("rollback: record removal failed")
		ok = false
	}
	return ok
}

// runDelete tears a session down: runtime first, then worktree and branch,
// then the record. The record outlives the resources so a crash strands a
// findable entry instead of an unlisted worktree.
func (e *Engine) runDelete(opCtx context.Context, req DeleteRequest) OpResult {
	stepCtx := context.WithoutCancel(opCtx)

	fail := func(step domain.ReconcileStep, cause error) OpResult {
		return OpResult{Err: domain.NewReconciliationError("delete", step, cause, true)}
	}

	sess, err := e.resolveSession(stepCtx, req.Name)
	if err != nil {
		return fail(domain.StepValidate, err)
	}
	result := OpResult{Session: sess}

	// Uncommitted work blocks deletion before any side effect, not after
	// the runtime session is already gone.
	if !req.Force && e.workspace.WorktreeDirExists(sess.WorktreePath) {
		staged, unstaged, untracked, err := e.workspace.IsDirty(stepCtx, sess.WorktreePath)
		if err != nil {
			return fail(domain.StepValidate, err)
		}
		if staged+unstaged+untracked > 0 {
			return fail(domain.StepValidate,
				domain.NewDirtyWorktreeError(sess.WorktreePath, staged, unstaged, untracked))
		}
	}

	if err := e.store.SetProvisioningState(stepCtx, sess.ID, domain.StateTearingDown); err != nil {
		return fail(domain.StepCommitStore, err)
	}
	sess.ProvisioningState = domain.StateTearingDown
	e.publishSessionChanged(sess)

	if err := opCtx.Err(); err != nil {
		return fail(domain.StepKillRuntime, domain.ErrOpCancelled)
	}

	// A runtime session that is already gone, or refuses to die, never
	// blocks teardown.
	runtimeName := domain.RuntimeSessionName(e.prefix, e.project.ID, sess.ID)
	if err := e.runtime.Kill(stepCtx, runtimeName); err != nil {
		log.Warn().Str("session", sess.Name).Err(err).Msg("runtime kill failed, continuing teardown")
		result.Warnings = append(result.Warnings, fmt.Sprintf("runtime session %s not killed: %v", runtimeName, err))
	}

	if err := opCtx.Err(); err != nil {
		return fail(domain.StepDestroyWorkspace, domain.ErrOpCancelled)
	}

	// Worktree removal failing is not secondary: stopping here keeps the
	// record visible so the worktree stays discoverable.
	if err := e.workspace.RemoveWorktree(stepCtx, sess.WorktreePath, req.Force); err != nil {
		result.Err = domain.NewReconciliationError("delete", domain.StepDestroyWorkspace, err, true)
		return result
	}

	if err := e.workspace.DeleteBranch(stepCtx, sess.BranchName); err != nil {
		log.Warn().Str("branch", sess.BranchName).Err(err).Msg("branch deletion failed, continuing teardown")
		result.Warnings = append(result.Warnings, fmt.Sprintf("branch %s not deleted: %v", sess.BranchName, err))
	}

	if err := e.store.DeleteSession(stepCtx, sess.ID); err != nil {
		result.Err = domain.NewReconciliationError("delete", domain.StepRemoveRecord, err, true)
		return result
	}
	return result
}

// runMove changes the board column of a session. Store-only.
func (e *Engine) runMove(opCtx context.Context, req MoveRequest) OpResult {
	stepCtx := context.WithoutCancel(opCtx)

	if !e.validColumn(req.Column) {
		return OpResult{Err: fmt.Errorf("%w: %q", domain.ErrUnknownColumn, req.Column)}
	}
	sess, err := e.resolveSession(stepCtx, req.Name)
	if err != nil {
		return OpResult{Err: err}
	}
	if err := e.store.MoveSession(stepCtx, sess.ID, req.Column); err != nil {
		return OpResult{Err: err}
	}
	sess.Status = req.Column
	e.publishSessionChanged(sess)
	return OpResult{Session: sess}
}
