package reconcile

import (
	"context"
	"fmt"

	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// OrphanReport lists every disagreement between the store, the repository
// and the multiplexer. Reports never remove anything; cleanup stays a
// user decision.
type OrphanReport struct {
	// MissingRuntime holds provisioned sessions whose runtime session is gone.
	MissingRuntime []*domain.Session `json:"missing_runtime"`
	// MissingWorktree holds provisioned sessions whose worktree directory is gone.
	MissingWorktree []*domain.Session `json:"missing_worktree"`
	// UnmanagedRuntime holds live runtime session names with no record.
	UnmanagedRuntime []string `json:"unmanaged_runtime"`
	// Stalled holds records stuck mid-provision or mid-teardown.
	Stalled []*domain.Session `json:"stalled"`
}

// Empty reports whether the sweep found nothing out of place.
func (r *OrphanReport) Empty() bool {
	return len(r.MissingRuntime) == 0 &&
		len(r.MissingWorktree) == 0 &&
		len(r.UnmanagedRuntime) == 0 &&
		len(r.Stalled) == 0
}

// runSweep cross-checks the three resource worlds and reports drift.
func (e *Engine) runSweep(opCtx context.Context) OpResult {
	stepCtx := context.WithoutCancel(opCtx)

	sessions, err := e.store.ListSessions(stepCtx, e.project.ID)
	if err != nil {
		return OpResult{Err: err}
	}

	report := &OrphanReport{}
	knownIDs := make(map[string]struct{}, len(sessions))
	var refs []ports.RuntimeRef
	for _, sess := range sessions {
		knownIDs[sess.ID] = struct{}{}
		if sess.ProvisioningState != domain.StateProvisioned {
			report.Stalled = append(report.Stalled, sess)
			continue
		}
		refs = append(refs, ports.RuntimeRef{
			SessionID:   sess.ID,
			RuntimeName: domain.RuntimeSessionName(e.prefix, e.project.ID, sess.ID),
		})
		if !e.workspace.WorktreeDirExists(sess.WorktreePath) {
			report.MissingWorktree = append(report.MissingWorktree, sess)
		}
	}

	statuses, err := e.runtime.Snapshot(stepCtx, refs)
	if err != nil {
		return OpResult{Err: err}
	}
	for _, sess := range sessions {
		if statuses[sess.ID] == domain.RuntimeInactive {
			report.MissingRuntime = append(report.MissingRuntime, sess)
		}
	}

	unmanaged, err := e.runtime.Unmanaged(stepCtx, e.project.ID, knownIDs)
	if err != nil {
		return OpResult{Err: err}
	}
	report.UnmanagedRuntime = unmanaged

	return OpResult{Report: report}
}

// runKillUnmanaged terminates one runtime session, but only after
// re-checking it really is unmanaged. A name that parses to a recorded
// session is refused.
func (e *Engine) runKillUnmanaged(opCtx context.Context, runtimeName string) OpResult {
	stepCtx := context.WithoutCancel(opCtx)

	projectID, sessionID, ok := domain.ParseRuntimeSessionName(e.prefix, runtimeName)
	if !ok || projectID != e.project.ID {
		return OpResult{Err: domain.NewValidationError("name",
			fmt.Sprintf("%s is not a runtime session of this project", runtimeName))}
	}
	if _, err := e.store.GetSession(stepCtx, sessionID); err == nil {
		return OpResult{Err: domain.NewValidationError("name",
			fmt.Sprintf("%s belongs to a recorded session; delete the session instead", runtimeName))}
	}

	if err := e.runtime.Kill(stepCtx, runtimeName); err != nil {
		return OpResult{Err: err}
	}
	return OpResult{}
}
