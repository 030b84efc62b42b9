package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// MemStore is an in-memory SessionStore for tests. Individual methods can
// be forced to fail through FailOn.
type MemStore struct {
	mu          sync.Mutex
	nextProject int64
	nextField   int64
	nextComment int64
	projects    map[int64]*domain.Project
	sessions    map[string]*domain.Session
	fieldDefs   map[int64]*domain.FieldDefinition
	fieldValues map[string]map[int64]string
	comments    map[string][]*domain.Comment
	settings    map[string]string

	// FailOn maps a method name to the error it should return.
	FailOn map[string]error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		projects:    make(map[int64]*domain.Project),
		sessions:    make(map[string]*domain.Session),
		fieldDefs:   make(map[int64]*domain.FieldDefinition),
		fieldValues: make(map[string]map[int64]string),
		comments:    make(map[string][]*domain.Comment),
		settings:    make(map[string]string),
		FailOn:      make(map[string]error),
	}
}

func (m *MemStore) fail(method string) error {
	return m.FailOn[method]
}

func (m *MemStore) EnsureProject(ctx context.Context, rootPath, name string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("EnsureProject"); err != nil {
		return nil, err
	}
	for _, p := range m.projects {
		if p.RootPath == rootPath {
			return p, nil
		}
	}
	m.nextProject++
	p := &domain.Project{ID: m.nextProject, RootPath: rootPath, Name: name, CreatedAt: time.Now()}
	m.projects[p.ID] = p
	return p, nil
}

func (m *MemStore) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetProject"); err != nil {
		return nil, err
	}
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return p, nil
}

func (m *MemStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateSession"); err != nil {
		return err
	}
	for _, existing := range m.sessions {
		if existing.ProjectID != sess.ProjectID {
			continue
		}
		switch {
		case existing.Name == sess.Name:
			return domain.NewValidationError("name", "a session with this name already exists")
		case existing.BranchName == sess.BranchName:
			return domain.NewValidationError("branch", "branch is already bound to another session")
		case existing.WorktreePath == sess.WorktreePath:
			return domain.NewValidationError("worktree", "worktree path is already bound to another session")
		}
	}
	clone := *sess
	m.sessions[sess.ID] = &clone
	return nil
}

func (m *MemStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetSession"); err != nil {
		return nil, err
	}
	sess, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *sess
	return &clone, nil
}

func (m *MemStore) GetSessionByName(ctx context.Context, projectID int64, name string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetSessionByName"); err != nil {
		return nil, err
	}
	for _, sess := range m.sessions {
		if sess.ProjectID == projectID && sess.Name == name {
			clone := *sess
			return &clone, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (m *MemStore) ListSessions(ctx context.Context, projectID int64) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListSessions"); err != nil {
		return nil, err
	}
	var sessions []*domain.Session
	for _, sess := range m.sessions {
		if sess.ProjectID == projectID {
			clone := *sess
			sessions = append(sessions, &clone)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].Name < sessions[j].Name
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (m *MemStore) MoveSession(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MoveSession"); err != nil {
		return err
	}
	sess, ok := m.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.Status = status
	sess.UpdatedAt = time.Now()
	return nil
}

func (m *MemStore) SetProvisioningState(ctx context.Context, id string, state domain.ProvisioningState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetProvisioningState"); err != nil {
		return err
	}
	sess, ok := m.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.ProvisioningState = state
	sess.UpdatedAt = time.Now()
	return nil
}

func (m *MemStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteSession"); err != nil {
		return err
	}
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	delete(m.fieldValues, id)
	delete(m.comments, id)
	return nil
}

func (m *MemStore) ListFieldDefs(ctx context.Context, projectID int64) ([]*domain.FieldDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListFieldDefs"); err != nil {
		return nil, err
	}
	var defs []*domain.FieldDefinition
	for _, def := range m.fieldDefs {
		if def.ProjectID == projectID {
			clone := *def
			defs = append(defs, &clone)
		}
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].DisplayOrder == defs[j].DisplayOrder {
			return defs[i].ID < defs[j].ID
		}
		return defs[i].DisplayOrder < defs[j].DisplayOrder
	})
	return defs, nil
}

func (m *MemStore) AddFieldDef(ctx context.Context, def *domain.FieldDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AddFieldDef"); err != nil {
		return err
	}
	maxOrder := 0
	for _, existing := range m.fieldDefs {
		if existing.ProjectID != def.ProjectID {
			continue
		}
		if existing.Name == def.Name {
			return domain.NewValidationError("name", "a field with this name already exists")
		}
		if existing.DisplayOrder > maxOrder {
			maxOrder = existing.DisplayOrder
		}
	}
	m.nextField++
	def.ID = m.nextField
	if def.DisplayOrder == 0 {
		def.DisplayOrder = maxOrder + 1
	}
	clone := *def
	m.fieldDefs[def.ID] = &clone
	return nil
}

func (m *MemStore) RemoveFieldDef(ctx context.Context, projectID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RemoveFieldDef"); err != nil {
		return err
	}
	for id, def := range m.fieldDefs {
		if def.ProjectID == projectID && def.Name == name {
			delete(m.fieldDefs, id)
			for _, values := range m.fieldValues {
				delete(values, id)
			}
			return nil
		}
	}
	return domain.ErrFieldNotFound
}

func (m *MemStore) GetFieldValues(ctx context.Context, sessionID string) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetFieldValues"); err != nil {
		return nil, err
	}
	values := make(map[int64]string, len(m.fieldValues[sessionID]))
	for k, v := range m.fieldValues[sessionID] {
		values[k] = v
	}
	return values, nil
}

func (m *MemStore) SaveFieldValues(ctx context.Context, sessionID string, values map[int64]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SaveFieldValues"); err != nil {
		return err
	}
	if m.fieldValues[sessionID] == nil {
		m.fieldValues[sessionID] = make(map[int64]string)
	}
	for k, v := range values {
		m.fieldValues[sessionID][k] = v
	}
	return nil
}

func (m *MemStore) AddComment(ctx context.Context, sessionID, body string) (*domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AddComment"); err != nil {
		return nil, err
	}
	m.nextComment++
	c := &domain.Comment{ID: m.nextComment, SessionID: sessionID, Body: body, CreatedAt: time.Now()}
	m.comments[sessionID] = append(m.comments[sessionID], c)
	return c, nil
}

func (m *MemStore) ListComments(ctx context.Context, sessionID string) ([]*domain.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListComments"); err != nil {
		return nil, err
	}
	return append([]*domain.Comment{}, m.comments[sessionID]...), nil
}

func (m *MemStore) GetSetting(ctx context.Context, projectID int64, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetSetting"); err != nil {
		return "", err
	}
	return m.settings[settingKey(projectID, key)], nil
}

func (m *MemStore) SetSetting(ctx context.Context, projectID int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SetSetting"); err != nil {
		return err
	}
	m.settings[settingKey(projectID, key)] = value
	return nil
}

func (m *MemStore) Close() error {
	return nil
}

func settingKey(projectID int64, key string) string {
	return fmt.Sprintf("%d/%s", projectID, key)
}

// SessionCount returns how many sessions the store holds.
func (m *MemStore) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// FakeWorkspace is an in-memory WorkspaceProvisioner for tests.
type FakeWorkspace struct {
	mu       sync.Mutex
	branches map[string]bool
	dirs     map[string]bool
	dirty    map[string][3]int
	calls    []string

	// FailOn maps a method name to the error it should return.
	FailOn map[string]error
}

// NewFakeWorkspace creates an empty FakeWorkspace.
func NewFakeWorkspace() *FakeWorkspace {
	return &FakeWorkspace{
		branches: make(map[string]bool),
		dirs:     make(map[string]bool),
		dirty:    make(map[string][3]int),
		FailOn:   make(map[string]error),
	}
}

// SeedWorkspace marks branch and path as existing.
func (f *FakeWorkspace) SeedWorkspace(branch, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches[branch] = true
	f.dirs[path] = true
}

// SetDirty marks the worktree at path as carrying uncommitted work.
func (f *FakeWorkspace) SetDirty(path string, staged, unstaged, untracked int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty[path] = [3]int{staged, unstaged, untracked}
}

// Calls returns the recorded method invocations in order.
func (f *FakeWorkspace) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

// HasBranch reports whether branch currently exists.
func (f *FakeWorkspace) HasBranch(branch string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branches[branch]
}

// HasDir reports whether path currently exists.
func (f *FakeWorkspace) HasDir(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path]
}

func (f *FakeWorkspace) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *FakeWorkspace) CreateWorkspace(ctx context.Context, branch, path, baseRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateWorkspace " + branch)
	if err := f.FailOn["CreateWorkspace"]; err != nil {
		return err
	}
	f.branches[branch] = true
	f.dirs[path] = true
	return nil
}

func (f *FakeWorkspace) RemoveWorktree(ctx context.Context, path string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RemoveWorktree " + path)
	if err := f.FailOn["RemoveWorktree"]; err != nil {
		return err
	}
	if counts, ok := f.dirty[path]; ok && !force {
		return domain.NewDirtyWorktreeError(path, counts[0], counts[1], counts[2])
	}
	delete(f.dirs, path)
	delete(f.dirty, path)
	return nil
}

func (f *FakeWorkspace) DeleteBranch(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteBranch " + branch)
	if err := f.FailOn["DeleteBranch"]; err != nil {
		return err
	}
	delete(f.branches, branch)
	return nil
}

func (f *FakeWorkspace) BranchExists(ctx context.Context, branch string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailOn["BranchExists"]; err != nil {
		return false, err
	}
	return f.branches[branch], nil
}

func (f *FakeWorkspace) WorktreeDirExists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path]
}

func (f *FakeWorkspace) HeadRef(ctx context.Context) (string, error) {
	if err := f.FailOn["HeadRef"]; err != nil {
		return "", err
	}
	return "0000000000000000000000000000000000000000", nil
}

func (f *FakeWorkspace) IsDirty(ctx context.Context, path string) (int, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailOn["IsDirty"]; err != nil {
		return 0, 0, 0, err
	}
	counts := f.dirty[path]
	return counts[0], counts[1], counts[2], nil
}

// FakeRuntime is an in-memory RuntimeMonitor for tests. Present sessions
// classify as Active unless an explicit status override is set.
type FakeRuntime struct {
	Prefix string

	mu       sync.Mutex
	sessions map[string]bool
	statuses map[string]domain.RuntimeStatus
	panes    map[string]string
	calls    []string

	// FailOn maps a method name to the error it should return.
	FailOn map[string]error
}

// NewFakeRuntime creates an empty FakeRuntime using prefix for name parsing.
func NewFakeRuntime(prefix string) *FakeRuntime {
	return &FakeRuntime{
		Prefix:   prefix,
		sessions: make(map[string]bool),
		statuses: make(map[string]domain.RuntimeStatus),
		panes:    make(map[string]string),
		FailOn:   make(map[string]error),
	}
}

// SeedSession marks a runtime session name as live.
func (f *FakeRuntime) SeedSession(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[name] = true
}

// SetPane sets the text CapturePane returns for a runtime session name.
func (f *FakeRuntime) SetPane(name, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panes[name] = content
}

// SetStatus overrides the classification for a session ID.
func (f *FakeRuntime) SetStatus(sessionID string, status domain.RuntimeStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[sessionID] = status
}

// HasSession reports whether the named runtime session is live.
func (f *FakeRuntime) HasSession(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[name]
}

// Calls returns the recorded method invocations in order.
func (f *FakeRuntime) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *FakeRuntime) Snapshot(ctx context.Context, refs []ports.RuntimeRef) (map[string]domain.RuntimeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Snapshot")
	if err := f.FailOn["Snapshot"]; err != nil {
		return nil, err
	}
	statuses := make(map[string]domain.RuntimeStatus, len(refs))
	for _, ref := range refs {
		if !f.sessions[ref.RuntimeName] {
			statuses[ref.SessionID] = domain.RuntimeInactive
			continue
		}
		if status, ok := f.statuses[ref.SessionID]; ok {
			statuses[ref.SessionID] = status
		} else {
			statuses[ref.SessionID] = domain.RuntimeActive
		}
	}
	return statuses, nil
}

func (f *FakeRuntime) Unmanaged(ctx context.Context, projectID int64, knownIDs map[string]struct{}) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Unmanaged")
	if err := f.FailOn["Unmanaged"]; err != nil {
		return nil, err
	}
	var orphans []string
	for name := range f.sessions {
		pid, sessionID, ok := domain.ParseRuntimeSessionName(f.Prefix, name)
		if !ok || pid != projectID {
			continue
		}
		if _, known := knownIDs[sessionID]; !known {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

func (f *FakeRuntime) Create(ctx context.Context, name, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Create "+name)
	if err := f.FailOn["Create"]; err != nil {
		return err
	}
	f.sessions[name] = true
	return nil
}

func (f *FakeRuntime) Kill(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Kill "+name)
	if err := f.FailOn["Kill"]; err != nil {
		return err
	}
	delete(f.sessions, name)
	return nil
}

func (f *FakeRuntime) Has(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailOn["Has"]; err != nil {
		return false, err
	}
	return f.sessions[name], nil
}

func (f *FakeRuntime) CapturePane(ctx context.Context, name string, lines int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailOn["CapturePane"]; err != nil {
		return "", err
	}
	return f.panes[name], nil
}

// Interface checks.
var (
	_ ports.SessionStore         = (*MemStore)(nil)
	_ ports.WorkspaceProvisioner = (*FakeWorkspace)(nil)
	_ ports.RuntimeMonitor       = (*FakeRuntime)(nil)
)
