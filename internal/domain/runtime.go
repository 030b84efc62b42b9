package domain

// RuntimeStatus classifies the runtime session behind a card. Statuses are
// derived from pane heuristics and may be wrong; callers must treat them as
// advisory.
type RuntimeStatus string

const (
	// RuntimeActive means the session exists and appears to be doing work.
	RuntimeActive RuntimeStatus = "active"
	// RuntimeWaiting means the session exists and appears blocked on input.
	RuntimeWaiting RuntimeStatus = "waiting"
	// RuntimeInactive means no runtime session exists for the card.
	RuntimeInactive RuntimeStatus = "inactive"
	// RuntimeUnknown means the session exists but its pane could not be read.
	RuntimeUnknown RuntimeStatus = "unknown"
)
