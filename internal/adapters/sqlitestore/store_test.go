package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brianly1003/workbench/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "workbench.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestSession(projectID int64, name string) *domain.Session {
	now := time.Now()
	return &domain.Session{
		ID:                uuid.NewString(),
		ProjectID:         projectID,
		Name:              name,
		Status:            "planned",
		BranchName:        domain.BranchName(name),
		WorktreePath:      "/work/repo-" + name,
		ProvisioningState: domain.StateProvisioning,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestEnsureProjectIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.EnsureProject(ctx, "/work/repo", "repo")
	if err != nil {
		t.Fatalf("EnsureProject() error = %v", err)
	}
	if first.ID == 0 {
		t.Fatal("EnsureProject() returned zero ID")
	}

	second, err := store.EnsureProject(ctx, "/work/repo", "repo")
	if err != nil {
		t.Fatalf("EnsureProject() second call error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second EnsureProject ID = %d, want %d", second.ID, first.ID)
	}

	other, err := store.EnsureProject(ctx, "/work/other", "other")
	if err != nil {
		t.Fatalf("EnsureProject() error = %v", err)
	}
	if other.ID == first.ID {
		t.Error("distinct roots share a project ID")
	}
}

func TestEnsureProjectCanonicalizesRoot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.EnsureProject(ctx, "/work/repo", "repo")
	if err != nil {
		t.Fatalf("EnsureProject() error = %v", err)
	}

	alias, err := store.EnsureProject(ctx, "/work/repo/../repo", "repo")
	if err != nil {
		t.Fatalf("EnsureProject() alias error = %v", err)
	}
	if alias.ID != first.ID {
		t.Errorf("aliased root got project %d, want %d", alias.ID, first.ID)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetProject(context.Background(), 999)
	if !errors.Is(err, domain.ErrProjectNotFound) {
		t.Errorf("GetProject() error = %v, want ErrProjectNotFound", err)
	}
}

func TestCreateAndGetSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	project, err := store.EnsureProject(ctx, "/work/repo", "repo")
	if err != nil {
		t.Fatalf("EnsureProject() error = %v", err)
	}

	sess := newTestSession(project.ID, "fix-login")
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Name != "fix-login" || got.BranchName != "wb/fix-login" || got.Status != "planned" {
		t.Errorf("GetSession() = %+v", got)
	}
	if got.ProvisioningState != domain.StateProvisioning {
		t.Errorf("ProvisioningState = %q, want %q", got.ProvisioningState, domain.StateProvisioning)
	}

	byName, err := store.GetSessionByName(ctx, project.ID, "fix-login")
	if err != nil {
		t.Fatalf("GetSessionByName() error = %v", err)
	}
	if byName.ID != sess.ID {
		t.Errorf("GetSessionByName() ID = %q, want %q", byName.ID, sess.ID)
	}

	_, err = store.GetSession(ctx, uuid.NewString())
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("GetSession(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestCreateSessionDuplicatesRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	project, err := store.EnsureProject(ctx, "/work/repo", "repo")
	if err != nil {
		t.Fatalf("EnsureProject() error = %v", err)
	}
	if err := store.CreateSession(ctx, newTestSession(project.ID, "fix-login")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	tests := []struct {
		name      string
		mutate    func(*domain.Session)
		wantField string
	}{
		{
			name:      "duplicate name",
			mutate:    func(s *domain.Session) { s.BranchName = "wb/other"; s.WorktreePath = "/work/repo-other" },
			wantField: "name",
		},
		{
			name:      "duplicate branch",
			mutate:    func(s *domain.Session) { s.Name = "other" },
			wantField: "branch",
		},
		{
			name: "duplicate worktree",
			mutate: func(s *domain.Session) {
				s.Name = "other"
				s.BranchName = "wb/other"
				s.WorktreePath = "/work/repo-fix-login"
			},
			wantField: "worktree",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dup := newTestSession(project.ID, "fix-login")
			tt.mutate(dup)
			err := store.CreateSession(ctx, dup)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("CreateSession() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}

	// Same triple under a different project is fine.
	other, err := store.EnsureProject(ctx, "/work/other", "other")
	if err != nil {
		t.Fatalf("EnsureProject() error = %v", err)
	}
	if err := store.CreateSession(ctx, newTestSession(other.ID, "fix-login")); err != nil {
		t.Errorf("CreateSession() across projects error = %v", err)
	}
}

func TestListSessionsOrderedByCreation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	project, err := store.EnsureProject(ctx, "/work/repo", "repo")
	if err != nil {
		t.Fatalf("EnsureProject() error = %v", err)
	}

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"first", "second", "third"} {
		sess := newTestSession(project.ID, name)
		sess.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		sess.UpdatedAt = sess.CreatedAt
		if err := store.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession(%s) error = %v", name, err)
		}
	}

	sessions, err := store.ListSessions(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("len(sessions) = %d, want 3", len(sessions))
	}
	for i, want := range []string{"first", "second", "third"} {
		if sessions[i].Name != want {
			t.Errorf("sessions[%d].Name = %q, want %q", i, sessions[i].Name, want)
		}
	}

	empty, err := store.ListSessions(ctx, 999)
	if err != nil {
		t.Fatalf("ListSessions(empty) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListSessions(empty) = %d rows, want 0", len(empty))
	}
}

func TestMoveSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	project, _ := store.EnsureProject(ctx, "/work/repo", "repo")
	sess := newTestSession(project.ID, "fix-login")
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := store.MoveSession(ctx, sess.ID, "review"); err != nil {
		t.Fatalf("MoveSession() error = %v", err)
	}
	got, _ := store.GetSession(ctx, sess.ID)
	if got.Status != "review" {
		t.Errorf("Status = %q, want %q", got.Status, "review")
	}
	if got.BranchName != sess.BranchName {
		t.Errorf("BranchName changed to %q", got.BranchName)
	}

	if err := store.MoveSession(ctx, uuid.NewString(), "review"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("MoveSession(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestSetProvisioningState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	project, _ := store.EnsureProject(ctx, "/work/repo", "repo")
	sess := newTestSession(project.ID, "fix-login")
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := store.SetProvisioningState(ctx, sess.ID, domain.StateProvisioned); err != nil {
		t.Fatalf("SetProvisioningState() error = %v", err)
	}
	got, _ := store.GetSession(ctx, sess.ID)
	if got.ProvisioningState != domain.StateProvisioned {
		t.Errorf("ProvisioningState = %q, want %q", got.ProvisioningState, domain.StateProvisioned)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	project, _ := store.EnsureProject(ctx, "/work/repo", "repo")
	sess := newTestSession(project.ID, "fix-login")
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	def := &domain.FieldDefinition{ProjectID: project.ID, Name: "goal"}
	if err := store.AddFieldDef(ctx, def); err != nil {
		t.Fatalf("AddFieldDef() error = %v", err)
	}
	if err := store.SaveFieldValues(ctx, sess.ID, map[int64]string{def.ID: "ship it"}); err != nil {
		t.Fatalf("SaveFieldValues() error = %v", err)
	}
	if _, err := store.AddComment(ctx, sess.ID, "first note"); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}

	if _, err := store.GetSession(ctx, sess.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("GetSession() after delete error = %v, want ErrSessionNotFound", err)
	}
	values, err := store.GetFieldValues(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetFieldValues() error = %v", err)
	}
	if len(values) != 0 {
		t.Errorf("field values survived delete: %v", values)
	}
	comments, err := store.ListComments(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 0 {
		t.Errorf("comments survived delete: %v", comments)
	}

	if err := store.DeleteSession(ctx, sess.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("second DeleteSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workbench.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	project, _ := store.EnsureProject(ctx, "/work/repo", "repo")
	sess := newTestSession(project.ID, "fix-login")
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() after reopen error = %v", err)
	}
	if got.Name != "fix-login" {
		t.Errorf("Name = %q, want %q", got.Name, "fix-login")
	}
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workbench.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_, err = store.db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)", schemaVersion+1)
	if err != nil {
		t.Fatalf("bump version error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Error("Open() with newer schema succeeded, want error")
	}
}
