// Package execrunner runs external tools as subprocesses with a
// per-invocation timeout.
package execrunner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// Runner implements ports.CommandRunner on top of os/exec.
type Runner struct {
	timeout time.Duration
}

// New creates a Runner. A zero timeout disables the per-invocation limit.
func New(timeout time.Duration) *Runner {
	return &Runner{timeout: timeout}
}

// Run executes name with args in dir. Output is captured even when the
// command fails. Deadline overruns surface as context.DeadlineExceeded.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) (ports.CommandResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ports.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(err),
	}

	if err != nil {
		// The process is killed when the context expires; report the
		// deadline rather than the kill signal.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, err
	}
	return result, nil
}

// LookPath reports where name resolves on PATH.
func (r *Runner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// WrapError classifies a failed Run into an ExternalToolError for the
// given tool and operation.
func WrapError(tool, op string, result ports.CommandResult, err error) *domain.ExternalToolError {
	kind := domain.ToolErrExit
	switch {
	case errors.Is(err, exec.ErrNotFound):
		kind = domain.ToolErrMissingBinary
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.ToolErrTimeout
	}

	toolErr := domain.NewToolError(tool, op, kind, err)
	toolErr.ExitCode = result.ExitCode
	toolErr.Stderr = strings.TrimSpace(result.Stderr)
	return toolErr
}

// Ensure Runner implements ports.CommandRunner.
var _ ports.CommandRunner = (*Runner)(nil)
