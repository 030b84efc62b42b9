package ports

import (
	"context"

	"github.com/brianly1003/workbench/internal/domain"
)

// SessionStore is the persistence contract for projects, sessions, fields,
// comments and settings. Every write is atomic; list reads used by board
// refresh observe a single consistent snapshot.
type SessionStore interface {
	// EnsureProject returns the project for rootPath, creating it on first use.
	EnsureProject(ctx context.Context, rootPath, name string) (*domain.Project, error)

	// GetProject returns a project by ID.
	GetProject(ctx context.Context, id int64) (*domain.Project, error)

	// CreateSession inserts a new session record.
	// Duplicate name, branch or worktree within the project → ValidationError.
	CreateSession(ctx context.Context, s *domain.Session) error

	// GetSession returns a session by ID.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// GetSessionByName returns a session by its exact name within a project.
	GetSessionByName(ctx context.Context, projectID int64, name string) (*domain.Session, error)

	// ListSessions returns all sessions of a project ordered by creation
	// time, read in one transaction.
	ListSessions(ctx context.Context, projectID int64) ([]*domain.Session, error)

	// MoveSession updates only the status column of a session.
	MoveSession(ctx context.Context, id, status string) error

	// SetProvisioningState updates only the provisioning state of a session.
	SetProvisioningState(ctx context.Context, id string, state domain.ProvisioningState) error

	// DeleteSession removes a session record and its field values and comments.
	DeleteSession(ctx context.Context, id string) error

	// ListFieldDefs returns a project's field definitions in display order.
	ListFieldDefs(ctx context.Context, projectID int64) ([]*domain.FieldDefinition, error)

	// AddFieldDef appends a field definition for a project.
	AddFieldDef(ctx context.Context, def *domain.FieldDefinition) error

	// RemoveFieldDef deletes a field definition by name, with its values.
	RemoveFieldDef(ctx context.Context, projectID int64, name string) error

	// GetFieldValues returns a session's field values keyed by field ID.
	GetFieldValues(ctx context.Context, sessionID string) (map[int64]string, error)

	// SaveFieldValues upserts the given field values in one transaction.
	SaveFieldValues(ctx context.Context, sessionID string, values map[int64]string) error

	// AddComment appends a comment to a session.
	AddComment(ctx context.Context, sessionID, body string) (*domain.Comment, error)

	// ListComments returns a session's comments oldest first.
	ListComments(ctx context.Context, sessionID string) ([]*domain.Comment, error)

	// GetSetting returns a per-project setting value ("" when unset).
	GetSetting(ctx context.Context, projectID int64, key string) (string, error)

	// SetSetting upserts a per-project setting.
	SetSetting(ctx context.Context, projectID int64, key, value string) error

	// Close releases the underlying database.
	Close() error
}
