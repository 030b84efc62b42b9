// Package sqlitestore persists projects, sessions, custom fields, comments
// and settings in a single SQLite database file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
	"github.com/brianly1003/workbench/internal/pathutil"
)

// schemaVersion is incremented when the schema changes. Unlike a cache this
// database is the system of record, so a mismatch never drops tables; a
// newer on-disk version is refused instead.
const schemaVersion = 1

// Store implements the SessionStore port interface on SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, domain.NewStoreError("open", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.NewStoreError("open", err)
	}

	// WAL keeps readers live while the CLI or server writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, domain.NewStoreError("open", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, domain.NewStoreError("open", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, domain.NewStoreError("open", err)
	}

	log.Debug().Str("path", path).Msg("session store opened")
	return &Store{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the tables and stamps the schema version.
func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`)
	if err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'")
	if err := row.Scan(&currentVersion); err != nil {
		// No version found, this is a new database
		currentVersion = 0
	}
	if currentVersion > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, schemaVersion)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			root_path TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			branch_name TEXT NOT NULL,
			worktree_path TEXT NOT NULL,
			provisioning_state TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(project_id, name),
			UNIQUE(project_id, branch_name),
			UNIQUE(project_id, worktree_path)
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id, created_at);
		CREATE TABLE IF NOT EXISTS field_defs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			display_order INTEGER NOT NULL,
			UNIQUE(project_id, name)
		);
		CREATE TABLE IF NOT EXISTS field_values (
			session_id TEXT NOT NULL,
			field_id INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (session_id, field_id)
		);
		CREATE TABLE IF NOT EXISTS comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_session ON comments(session_id, id);
		CREATE TABLE IF NOT EXISTS settings (
			project_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (project_id, key)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	_, err = db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)", schemaVersion)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// EnsureProject returns the project for rootPath, creating it on first use.
func (s *Store) EnsureProject(ctx context.Context, rootPath, name string) (*domain.Project, error) {
	// Projects are keyed by canonical root so symlinked aliases of the same
	// checkout resolve to one record.
	rootPath, err := pathutil.Canonical(rootPath)
	if err != nil {
		return nil, domain.NewStoreError("ensure-project", err)
	}

	project, err := s.projectByRoot(ctx, rootPath)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, domain.ErrProjectNotFound) {
		return nil, err
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO projects (root_path, name, created_at) VALUES (?, ?, ?)",
		rootPath, name, formatTime(now))
	if err != nil {
		return nil, domain.NewStoreError("ensure-project", err)
	}
	log.Info().Str("root", rootPath).Str("name", name).Msg("project registered")
	return s.projectByRoot(ctx, rootPath)
}

func (s *Store) projectByRoot(ctx context.Context, rootPath string) (*domain.Project, error) {
	var p domain.Project
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, root_path, name, created_at FROM projects WHERE root_path = ?",
		rootPath).Scan(&p.ID, &p.RootPath, &p.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("get-project", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// GetProject returns a project by ID.
func (s *Store) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	var p domain.Project
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, root_path, name, created_at FROM projects WHERE id = ?",
		id).Scan(&p.ID, &p.RootPath, &p.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("get-project", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

const sessionColumns = "id, project_id, name, status, branch_name, worktree_path, provisioning_state, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var createdAt, updatedAt string
	err := row.Scan(&sess.ID, &sess.ProjectID, &sess.Name, &sess.Status,
		&sess.BranchName, &sess.WorktreePath, &sess.ProvisioningState,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)
	return &sess, nil
}

// CreateSession inserts a new session record. Name, branch and worktree
// collisions within the project are reported as validation errors before
// the UNIQUE constraints ever fire.
func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStoreError("create-session", err)
	}
	defer func() { _ = tx.Rollback() }()

	checks := []struct {
		field  string
		query  string
		arg    string
		detail string
	}{
		{"name", "SELECT COUNT(*) FROM sessions WHERE project_id = ? AND name = ?", sess.Name, "a session with this name already exists"},
		{"branch", "SELECT COUNT(*) FROM sessions WHERE project_id = ? AND branch_name = ?", sess.BranchName, "branch is already bound to another session"},
		{"worktree", "SELECT COUNT(*) FROM sessions WHERE project_id = ? AND worktree_path = ?", sess.WorktreePath, "worktree path is already bound to another session"},
	}
	for _, check := range checks {
		var n int
		if err := tx.QueryRowContext(ctx, check.query, sess.ProjectID, check.arg).Scan(&n); err != nil {
			return domain.NewStoreError("create-session", err)
		}
		if n > 0 {
			return domain.NewValidationError(check.field, check.detail)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sess.ID, sess.ProjectID, sess.Name, sess.Status,
		sess.BranchName, sess.WorktreePath, string(sess.ProvisioningState),
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt))
	if err != nil {
		return domain.NewStoreError("create-session", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStoreError("create-session", err)
	}
	return nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("get-session", err)
	}
	return sess, nil
}

// GetSessionByName returns a session by its exact name within a project.
func (s *Store) GetSessionByName(ctx context.Context, projectID int64, name string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE project_id = ? AND name = ?",
		projectID, name)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("get-session", err)
	}
	return sess, nil
}

// ListSessions returns all sessions of a project ordered by creation time.
// The read runs in one transaction so board refreshes see a consistent
// snapshot.
func (s *Store) ListSessions(ctx context.Context, projectID int64) ([]*domain.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewStoreError("list-sessions", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE project_id = ? ORDER BY created_at, rowid",
		projectID)
	if err != nil {
		return nil, domain.NewStoreError("list-sessions", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, domain.NewStoreError("list-sessions", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list-sessions", err)
	}
	return sessions, nil
}

// MoveSession updates only the status column of a session.
func (s *Store) MoveSession(ctx context.Context, id, status string) error {
	return s.updateSession(ctx, "move-session",
		"UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?",
		status, formatTime(time.Now()), id)
}

// SetProvisioningState updates only the provisioning state of a session.
func (s *Store) SetProvisioningState(ctx context.Context, id string, state domain.ProvisioningState) error {
	return s.updateSession(ctx, "set-provisioning-state",
		"UPDATE sessions SET provisioning_state = ?, updated_at = ? WHERE id = ?",
		string(state), formatTime(time.Now()), id)
}

func (s *Store) updateSession(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.NewStoreError(op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError(op, err)
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session record with its field values and
// comments in one transaction.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStoreError("delete-session", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM field_values WHERE session_id = ?", id); err != nil {
		return domain.NewStoreError("delete-session", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM comments WHERE session_id = ?", id); err != nil {
		return domain.NewStoreError("delete-session", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return domain.NewStoreError("delete-session", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError("delete-session", err)
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStoreError("delete-session", err)
	}
	log.Info().Str("session_id", id).Msg("session record deleted")
	return nil
}

// Ensure Store implements ports.SessionStore.
var _ ports.SessionStore = (*Store)(nil)
