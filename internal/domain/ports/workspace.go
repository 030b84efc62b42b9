package ports

import "context"

// WorkspaceProvisioner manages the branch+worktree pair behind a session.
type WorkspaceProvisioner interface {
	// CreateWorkspace creates branch at baseRef (HEAD when empty) together
	// with a worktree at path. Refuses paths or branches that already exist.
	CreateWorkspace(ctx context.Context, branch, path, baseRef string) error

	// RemoveWorktree removes the worktree at path. Without force, uncommitted
	// work inside it → DirtyWorktreeError before anything is touched. A
	// worktree whose directory already vanished is pruned instead.
	RemoveWorktree(ctx context.Context, path string, force bool) error

	// DeleteBranch force-deletes a branch. Failure never recreates the
	// worktree; callers report it as a partial result.
	DeleteBranch(ctx context.Context, branch string) error

	// BranchExists reports whether branch exists in the repository.
	BranchExists(ctx context.Context, branch string) (bool, error)

	// WorktreeDirExists reports whether path exists on disk.
	WorktreeDirExists(path string) bool

	// HeadRef returns the current HEAD commit of the repository.
	HeadRef(ctx context.Context) (string, error)

	// IsDirty reports uncommitted work in the worktree at path, broken down
	// into staged, unstaged and untracked counts.
	IsDirty(ctx context.Context, path string) (staged, unstaged, untracked int, err error)
}
