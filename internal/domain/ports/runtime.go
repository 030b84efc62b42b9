package ports

import (
	"context"

	"github.com/brianly1003/workbench/internal/domain"
)

// RuntimeRef pairs a session record with the runtime session name derived
// for it, for snapshot queries.
type RuntimeRef struct {
	SessionID   string
	RuntimeName string
}

// RuntimeMonitor observes and manages the terminal-multiplexer sessions
// behind cards. The multiplexer is externally mutable; all answers are
// point-in-time.
type RuntimeMonitor interface {
	// Snapshot classifies each ref in one pass, keyed by session ID. A ref
	// whose runtime session is gone maps to RuntimeInactive; one whose pane
	// cannot be read maps to RuntimeUnknown.
	Snapshot(ctx context.Context, refs []RuntimeRef) (map[string]domain.RuntimeStatus, error)

	// Unmanaged returns runtime session names that carry this project's
	// naming prefix but match no known session ID.
	Unmanaged(ctx context.Context, projectID int64, knownIDs map[string]struct{}) ([]string, error)

	// Create starts a detached runtime session named name rooted at dir.
	Create(ctx context.Context, name, dir string) error

	// Kill terminates a runtime session. Only called from explicit cleanup.
	Kill(ctx context.Context, name string) error

	// Has reports whether a runtime session named name exists.
	Has(ctx context.Context, name string) (bool, error)

	// CapturePane returns the trailing lines of a session's visible pane.
	CapturePane(ctx context.Context, name string, lines int) (string, error)
}

// ActivityClassifier decides what an existing runtime session is doing from
// its captured pane text. Implementations are heuristics; misclassification
// must be survivable for callers.
type ActivityClassifier interface {
	Classify(pane string) domain.RuntimeStatus
}
