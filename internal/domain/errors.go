package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrFieldNotFound    = errors.New("field definition not found")
	ErrUnknownColumn    = errors.New("unknown board column")
	ErrOpCancelled      = errors.New("operation cancelled")
	ErrEngineStopped    = errors.New("reconciliation engine is not running")
	ErrAIDisabled       = errors.New("ai assist is disabled")
	ErrHubNotRunning    = errors.New("event hub is not running")
	ErrSubscriberClosed = errors.New("subscriber is closed")
)

// ToolErrorKind distinguishes the ways an external tool invocation fails.
type ToolErrorKind string

const (
	ToolErrExit          ToolErrorKind = "exit"
	ToolErrMissingBinary ToolErrorKind = "missing-binary"
	ToolErrTimeout       ToolErrorKind = "timeout"
)

// ExternalToolError represents a failed git/tmux/AI subprocess invocation.
type ExternalToolError struct {
	Tool     string        // Binary that was invoked (git, tmux, ...)
	Op       string        // Operation that failed
	Kind     ToolErrorKind // How it failed
	ExitCode int           // Exit code when Kind is ToolErrExit
	Stderr   string        // Captured stderr, trimmed
	Err      error         // Underlying error
}

func (e *ExternalToolError) Error() string {
	switch e.Kind {
	case ToolErrMissingBinary:
		return fmt.Sprintf("%s %s: binary not found: %v", e.Tool, e.Op, e.Err)
	case ToolErrTimeout:
		return fmt.Sprintf("%s %s: timed out: %v", e.Tool, e.Op, e.Err)
	default:
		if e.Stderr != "" {
			return fmt.Sprintf("%s %s: exit code %d: %s", e.Tool, e.Op, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("%s %s: exit code %d: %v", e.Tool, e.Op, e.ExitCode, e.Err)
	}
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// NewToolError creates a new ExternalToolError. ExitCode and Stderr are set
// by callers that have them.
func NewToolError(tool, op string, kind ToolErrorKind, err error) *ExternalToolError {
	return &ExternalToolError{
		Tool: tool,
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// DirtyWorktreeError is returned when a destroy is refused because the
// worktree still holds uncommitted work.
type DirtyWorktreeError struct {
	Path      string
	Staged    int
	Unstaged  int
	Untracked int
}

func (e *DirtyWorktreeError) Error() string {
	return fmt.Sprintf("worktree %s has uncommitted changes (%d staged, %d unstaged, %d untracked)",
		e.Path, e.Staged, e.Unstaged, e.Untracked)
}

// NewDirtyWorktreeError creates a new DirtyWorktreeError.
func NewDirtyWorktreeError(path string, staged, unstaged, untracked int) *DirtyWorktreeError {
	return &DirtyWorktreeError{
		Path:      path,
		Staged:    staged,
		Unstaged:  unstaged,
		Untracked: untracked,
	}
}

// ReconcileStep identifies the step of a structural operation.
type ReconcileStep string

const (
	StepValidate           ReconcileStep = "validate"
	StepProvisionWorkspace ReconcileStep = "provision-workspace"
	StepStartRuntime       ReconcileStep = "start-runtime"
	StepCommitStore        ReconcileStep = "commit-store"
	StepKillRuntime        ReconcileStep = "kill-runtime"
	StepDestroyWorkspace   ReconcileStep = "destroy-workspace"
	StepRemoveRecord       ReconcileStep = "remove-record"
)

// ReconciliationError reports a structural operation that failed partway.
// RollbackOK is true when every completed side effect was undone.
type ReconciliationError struct {
	Op         string
	Step       ReconcileStep
	Cause      error
	RollbackOK bool
}

func (e *ReconciliationError) Error() string {
	if e.RollbackOK {
		return fmt.Sprintf("%s failed at %s (rolled back): %v", e.Op, e.Step, e.Cause)
	}
	return fmt.Sprintf("%s failed at %s (rollback incomplete): %v", e.Op, e.Step, e.Cause)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Cause
}

// NewReconciliationError creates a new ReconciliationError.
func NewReconciliationError(op string, step ReconcileStep, cause error, rollbackOK bool) *ReconciliationError {
	return &ReconciliationError{
		Op:         op,
		Step:       step,
		Cause:      cause,
		RollbackOK: rollbackOK,
	}
}

// StoreError represents an error from the session store.
type StoreError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{
		Op:  op,
		Err: err,
	}
}

// AIError represents a failed AI field-fill attempt. AI errors are always
// non-fatal: they surface to the user and never abort the surrounding flow.
type AIError struct {
	Op  string
	Err error
}

func (e *AIError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *AIError) Unwrap() error {
	return e.Err
}

// NewAIError creates a new AIError.
func NewAIError(op string, err error) *AIError {
	return &AIError{
		Op:  op,
		Err: err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
