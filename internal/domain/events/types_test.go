package events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	e := NewEvent(EventTypeBoardUpdated, BoardUpdatedPayload{Reason: "refresh"})
	after := time.Now().UTC()

	if e.Type() != EventTypeBoardUpdated {
		t.Errorf("Type() = %v, want %v", e.Type(), EventTypeBoardUpdated)
	}
	if e.Timestamp().Before(before) || e.Timestamp().After(after) {
		t.Errorf("Timestamp() = %v, want between %v and %v", e.Timestamp(), before, after)
	}
	if e.GetProjectID() != 0 {
		t.Errorf("GetProjectID() = %d, want 0", e.GetProjectID())
	}
	if e.GetSessionID() != "" {
		t.Errorf("GetSessionID() = %q, want empty", e.GetSessionID())
	}
}

func TestNewEventWithContext(t *testing.T) {
	e := NewEventWithContext(EventTypeSessionChanged, nil, 3, "abc-123")
	if e.GetProjectID() != 3 {
		t.Errorf("GetProjectID() = %d, want 3", e.GetProjectID())
	}
	if e.GetSessionID() != "abc-123" {
		t.Errorf("GetSessionID() = %q, want abc-123", e.GetSessionID())
	}
}

func TestSetContext(t *testing.T) {
	e := NewEvent(EventTypeStoreChanged, nil)
	e.SetContext(7, "sess-1")
	if e.GetProjectID() != 7 || e.GetSessionID() != "sess-1" {
		t.Errorf("SetContext not applied: project=%d session=%q", e.GetProjectID(), e.GetSessionID())
	}
}

func TestToJSON(t *testing.T) {
	e := NewEventWithContext(EventTypeBoardUpdated, BoardUpdatedPayload{Reason: "watcher"}, 2, "")
	data, err := e.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["event"] != string(EventTypeBoardUpdated) {
		t.Errorf("event = %v, want %v", decoded["event"], EventTypeBoardUpdated)
	}
	if decoded["project_id"] != float64(2) {
		t.Errorf("project_id = %v, want 2", decoded["project_id"])
	}
	payload, ok := decoded["payload"].(map[string]interface{})
	if !ok {
		t.Fatalf("payload missing or wrong shape: %v", decoded["payload"])
	}
	if payload["reason"] != "watcher" {
		t.Errorf("payload.reason = %v, want watcher", payload["reason"])
	}
}

func TestToJSONOmitsEmptyContext(t *testing.T) {
	e := NewEvent(EventTypeStoreChanged, StoreChangedPayload{Path: "/tmp/wb.db"})
	data, err := e.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if strings.Contains(string(data), "session_id") {
		t.Errorf("JSON should omit empty session_id: %s", data)
	}
	if strings.Contains(string(data), "project_id") {
		t.Errorf("JSON should omit zero project_id: %s", data)
	}
}
