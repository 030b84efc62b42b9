package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/brianly1003/workbench/internal/domain"
)

// ListFieldDefs returns a project's field definitions in display order.
func (s *Store) ListFieldDefs(ctx context.Context, projectID int64) ([]*domain.FieldDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, project_id, name, description, display_order FROM field_defs WHERE project_id = ? ORDER BY display_order, id",
		projectID)
	if err != nil {
		return nil, domain.NewStoreError("list-field-defs", err)
	}
	defer func() { _ = rows.Close() }()

	var defs []*domain.FieldDefinition
	for rows.Next() {
		var def domain.FieldDefinition
		if err := rows.Scan(&def.ID, &def.ProjectID, &def.Name, &def.Description, &def.DisplayOrder); err != nil {
			return nil, domain.NewStoreError("list-field-defs", err)
		}
		defs = append(defs, &def)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list-field-defs", err)
	}
	return defs, nil
}

// AddFieldDef appends a field definition for a project. A zero display
// order places it after the existing fields. Sets def.ID on success.
func (s *Store) AddFieldDef(ctx context.Context, def *domain.FieldDefinition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStoreError("add-field-def", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM field_defs WHERE project_id = ? AND name = ?",
		def.ProjectID, def.Name).Scan(&n)
	if err != nil {
		return domain.NewStoreError("add-field-def", err)
	}
	if n > 0 {
		return domain.NewValidationError("name", "a field with this name already exists")
	}

	order := def.DisplayOrder
	if order == 0 {
		err = tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(display_order), 0) + 1 FROM field_defs WHERE project_id = ?",
			def.ProjectID).Scan(&order)
		if err != nil {
			return domain.NewStoreError("add-field-def", err)
		}
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO field_defs (project_id, name, description, display_order) VALUES (?, ?, ?, ?)",
		def.ProjectID, def.Name, def.Description, order)
	if err != nil {
		return domain.NewStoreError("add-field-def", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return domain.NewStoreError("add-field-def", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStoreError("add-field-def", err)
	}

	def.ID = id
	def.DisplayOrder = order
	return nil
}

// RemoveFieldDef deletes a field definition by name together with every
// value stored for it.
func (s *Store) RemoveFieldDef(ctx context.Context, projectID int64, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStoreError("remove-field-def", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM field_defs WHERE project_id = ? AND name = ?",
		projectID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrFieldNotFound
	}
	if err != nil {
		return domain.NewStoreError("remove-field-def", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM field_values WHERE field_id = ?", id); err != nil {
		return domain.NewStoreError("remove-field-def", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM field_defs WHERE id = ?", id); err != nil {
		return domain.NewStoreError("remove-field-def", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStoreError("remove-field-def", err)
	}
	return nil
}

// GetFieldValues returns a session's field values keyed by field ID.
func (s *Store) GetFieldValues(ctx context.Context, sessionID string) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT field_id, value FROM field_values WHERE session_id = ?", sessionID)
	if err != nil {
		return nil, domain.NewStoreError("get-field-values", err)
	}
	defer func() { _ = rows.Close() }()

	values := make(map[int64]string)
	for rows.Next() {
		var fieldID int64
		var value string
		if err := rows.Scan(&fieldID, &value); err != nil {
			return nil, domain.NewStoreError("get-field-values", err)
		}
		values[fieldID] = value
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("get-field-values", err)
	}
	return values, nil
}

// SaveFieldValues upserts the given field values in one transaction.
// An empty string is stored as-is; it means the field was cleared.
func (s *Store) SaveFieldValues(ctx context.Context, sessionID string, values map[int64]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStoreError("save-field-values", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO field_values (session_id, field_id, value) VALUES (?, ?, ?)
		ON CONFLICT(session_id, field_id) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return domain.NewStoreError("save-field-values", err)
	}
	defer func() { _ = stmt.Close() }()

	for fieldID, value := range values {
		if _, err := stmt.ExecContext(ctx, sessionID, fieldID, value); err != nil {
			return domain.NewStoreError("save-field-values", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStoreError("save-field-values", err)
	}
	return nil
}

// AddComment appends a comment to a session.
func (s *Store) AddComment(ctx context.Context, sessionID, body string) (*domain.Comment, error) {
	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO comments (session_id, body, created_at) VALUES (?, ?, ?)",
		sessionID, body, formatTime(now))
	if err != nil {
		return nil, domain.NewStoreError("add-comment", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, domain.NewStoreError("add-comment", err)
	}
	return &domain.Comment{
		ID:        id,
		SessionID: sessionID,
		Body:      body,
		CreatedAt: now.UTC().Truncate(time.Second),
	}, nil
}

// ListComments returns a session's comments oldest first.
func (s *Store) ListComments(ctx context.Context, sessionID string) ([]*domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, body, created_at FROM comments WHERE session_id = ? ORDER BY id",
		sessionID)
	if err != nil {
		return nil, domain.NewStoreError("list-comments", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*domain.Comment
	for rows.Next() {
		var c domain.Comment
		var createdAt string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Body, &createdAt); err != nil {
			return nil, domain.NewStoreError("list-comments", err)
		}
		c.CreatedAt = parseTime(createdAt)
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list-comments", err)
	}
	return comments, nil
}

// GetSetting returns a per-project setting value, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, projectID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE project_id = ? AND key = ?",
		projectID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", domain.NewStoreError("get-setting", err)
	}
	return value, nil
}

// SetSetting upserts a per-project setting.
func (s *Store) SetSetting(ctx context.Context, projectID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO settings (project_id, key, value) VALUES (?, ?, ?)",
		projectID, key, value)
	if err != nil {
		return domain.NewStoreError("set-setting", err)
	}
	return nil
}
