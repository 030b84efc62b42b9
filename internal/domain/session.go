// Package domain contains the core model types and domain errors used
// throughout the application.
package domain

import "time"

// DefaultColumns is the board column sequence used when the configuration
// does not override it.
var DefaultColumns = []string{"planned", "in_progress", "review", "done"}

// ProvisioningState tracks where a session is in its structural lifecycle.
type ProvisioningState string

const (
	// StateProvisioning marks a record whose workspace is still being created.
	StateProvisioning ProvisioningState = "provisioning"
	// StateProvisioned marks a fully materialized session.
	StateProvisioned ProvisioningState = "provisioned"
	// StateTearingDown marks a record whose workspace is being destroyed.
	StateTearingDown ProvisioningState = "tearing_down"
)

// Project is a git repository the board is scoped to.
type Project struct {
	ID        int64     `json:"id"`
	RootPath  string    `json:"root_path"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a unit of work bound to a branch, a worktree and a runtime
// session. Status is the board column the card sits in.
type Session struct {
	ID                string            `json:"id"`
	ProjectID         int64             `json:"project_id"`
	Name              string            `json:"name"`
	Status            string            `json:"status"`
	BranchName        string            `json:"branch_name"`
	WorktreePath      string            `json:"worktree_path"`
	ProvisioningState ProvisioningState `json:"provisioning_state"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// FieldDefinition is a per-project custom field sessions can carry values for.
type FieldDefinition struct {
	ID           int64  `json:"id"`
	ProjectID    int64  `json:"project_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

// Comment is an append-only note attached to a session.
type Comment struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
