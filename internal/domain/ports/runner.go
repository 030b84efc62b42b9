// Package ports defines the capability interfaces the application is wired
// from. Adapters implement them; tests substitute fakes.
package ports

import "context"

// CommandResult holds the captured output of a finished subprocess.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner is the subprocess capability. Implementations apply the
// configured per-invocation timeout; callers get whatever output was
// captured even on failure.
type CommandRunner interface {
	// Run executes name with args in dir (empty dir means inherit).
	Run(ctx context.Context, dir, name string, args ...string) (CommandResult, error)

	// LookPath reports where name resolves on PATH.
	LookPath(name string) (string, error)
}
