package events

// --- Board Event Payloads ---

// BoardUpdatedPayload represents the payload for board_updated events.
type BoardUpdatedPayload struct {
	Reason string `json:"reason"` // op, watcher, refresh
}

// NewBoardUpdatedEvent creates a new board_updated event.
func NewBoardUpdatedEvent(projectID int64, reason string) *BaseEvent {
	return NewEventWithContext(EventTypeBoardUpdated, BoardUpdatedPayload{
		Reason: reason,
	}, projectID, "")
}

// --- Session Event Payloads ---

// SessionChangedPayload represents the payload for session_changed events.
type SessionChangedPayload struct {
	Name              string `json:"name"`
	Status            string `json:"status"`
	ProvisioningState string `json:"provisioning_state"`
}

// NewSessionChangedEvent creates a new session_changed event.
func NewSessionChangedEvent(projectID int64, sessionID, name, status, provisioningState string) *BaseEvent {
	return NewEventWithContext(EventTypeSessionChanged, SessionChangedPayload{
		Name:              name,
		Status:            status,
		ProvisioningState: provisioningState,
	}, projectID, sessionID)
}

// --- Reconciliation Event Payloads ---

// OpCompletedPayload represents the payload for op_completed events.
type OpCompletedPayload struct {
	Op      string `json:"op"` // create, delete, move, sweep
	Name    string `json:"name,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewOpCompletedEvent creates a new op_completed event.
func NewOpCompletedEvent(projectID int64, sessionID, op, name string, opErr error) *BaseEvent {
	payload := OpCompletedPayload{
		Op:      op,
		Name:    name,
		Success: opErr == nil,
	}
	if opErr != nil {
		payload.Error = opErr.Error()
	}
	return NewEventWithContext(EventTypeOpCompleted, payload, projectID, sessionID)
}

// --- Store Event Payloads ---

// StoreChangedPayload represents the payload for store_changed events.
// Emitted when another process or a human mutates watched state on disk.
type StoreChangedPayload struct {
	Path string `json:"path"`
}

// NewStoreChangedEvent creates a new store_changed event.
func NewStoreChangedEvent(path string) *BaseEvent {
	return NewEvent(EventTypeStoreChanged, StoreChangedPayload{
		Path: path,
	})
}
