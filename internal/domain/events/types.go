// Package events defines all event types used in workbench.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Board events
	EventTypeBoardUpdated EventType = "board_updated"

	// Session events
	EventTypeSessionChanged EventType = "session_changed"

	// Reconciliation events
	EventTypeOpCompleted EventType = "op_completed"

	// Store events
	EventTypeStoreChanged EventType = "store_changed"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// GetProjectID returns the project ID (0 when not project-scoped).
	GetProjectID() int64

	// GetSessionID returns the session ID (may be empty).
	GetSessionID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType   `json:"event"`
	EventTime time.Time   `json:"timestamp"`
	ProjectID int64       `json:"project_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

// SetContext sets the project and session context for an event.
func (e *BaseEvent) SetContext(projectID int64, sessionID string) {
	e.ProjectID = projectID
	e.SessionID = sessionID
}

// GetProjectID returns the project ID.
func (e *BaseEvent) GetProjectID() int64 {
	return e.ProjectID
}

// GetSessionID returns the session ID.
func (e *BaseEvent) GetSessionID() string {
	return e.SessionID
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewEventWithContext creates a new event with project and session context.
func NewEventWithContext(eventType EventType, payload interface{}, projectID int64, sessionID string) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		ProjectID: projectID,
		SessionID: sessionID,
		Payload:   payload,
	}
}
