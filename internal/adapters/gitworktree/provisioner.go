// Package gitworktree provisions the branch+worktree pair behind a session
// through the Git CLI.
package gitworktree

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workbench/internal/adapters/execrunner"
	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// Provisioner implements the WorkspaceProvisioner port interface.
type Provisioner struct {
	repoRoot string
	command  string
	runner   ports.CommandRunner
}

// New creates a new Provisioner rooted at repoRoot.
func New(repoRoot, command string, runner ports.CommandRunner) *Provisioner {
	return &Provisioner{
		repoRoot: repoRoot,
		command:  command,
		runner:   runner,
	}
}

// DetectRoot resolves the repository top-level directory for path.
func DetectRoot(ctx context.Context, runner ports.CommandRunner, command, path string) (string, error) {
	result, err := runner.Run(ctx, path, command, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", execrunner.WrapError(command, "rev-parse", result, err)
	}
	root := strings.TrimSpace(result.Stdout)
	if root == "" {
		return "", fmt.Errorf("empty repository root for %s", path)
	}
	return root, nil
}

// CreateWorkspace creates branch at baseRef together with a worktree at path.
func (p *Provisioner) CreateWorkspace(ctx context.Context, branch, path, baseRef string) error {
	if p.WorktreeDirExists(path) {
		return domain.NewValidationError("worktree_path", fmt.Sprintf("directory already exists: %s", path))
	}
	exists, err := p.BranchExists(ctx, branch)
	if err != nil {
		return err
	}
	if exists {
		return domain.NewValidationError("branch", fmt.Sprintf("branch already exists: %s", branch))
	}

	base := baseRef
	if base == "" {
		base = "HEAD"
	}

	result, err := p.runner.Run(ctx, p.repoRoot, p.command, "worktree", "add", "-b", branch, path, base)
	if err != nil {
		return execrunner.WrapError(p.command, "worktree add", result, err)
	}

	log.Info().
		Str("branch", branch).
		Str("path", path).
		Str("base", base).
		Msg("workspace created")
	return nil
}

// RemoveWorktree removes the worktree at path. Without force, uncommitted
// work refuses the removal before anything is touched. When the directory
// already vanished the stale registration is pruned instead.
func (p *Provisioner) RemoveWorktree(ctx context.Context, path string, force bool) error {
	if !p.WorktreeDirExists(path) {
		result, err := p.runner.Run(ctx, p.repoRoot, p.command, "worktree", "prune")
		if err != nil {
			return execrunner.WrapError(p.command, "worktree prune", result, err)
		}
		log.Debug().Str("path", path).Msg("worktree directory already gone, pruned registration")
		return nil
	}

	if !force {
		staged, unstaged, untracked, err := p.IsDirty(ctx, path)
		if err != nil {
			return err
		}
		if staged+unstaged+untracked > 0 {
			return domain.NewDirtyWorktreeError(path, staged, unstaged, untracked)
		}
	}

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	result, err := p.runner.Run(ctx, p.repoRoot, p.command, args...)
	if err != nil {
		return execrunner.WrapError(p.command, "worktree remove", result, err)
	}

	log.Info().Str("path", path).Bool("force", force).Msg("worktree removed")
	return nil
}

// DeleteBranch force-deletes branch.
func (p *Provisioner) DeleteBranch(ctx context.Context, branch string) error {
	result, err := p.runner.Run(ctx, p.repoRoot, p.command, "branch", "-D", branch)
	if err != nil {
		return execrunner.WrapError(p.command, "branch -D", result, err)
	}
	log.Debug().Str("branch", branch).Msg("branch deleted")
	return nil
}

// BranchExists reports whether branch exists in the repository.
func (p *Provisioner) BranchExists(ctx context.Context, branch string) (bool, error) {
	ref := "refs/heads/" + branch
	result, err := p.runner.Run(ctx, p.repoRoot, p.command, "show-ref", "--verify", "--quiet", ref)
	if err == nil {
		return true, nil
	}
	// show-ref exits 1 for a missing ref
	if result.ExitCode == 1 {
		return false, nil
	}
	return false, execrunner.WrapError(p.command, "show-ref", result, err)
}

// WorktreeDirExists reports whether path exists on disk.
func (p *Provisioner) WorktreeDirExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HeadRef returns the current HEAD commit of the repository.
func (p *Provisioner) HeadRef(ctx context.Context) (string, error) {
	result, err := p.runner.Run(ctx, p.repoRoot, p.command, "rev-parse", "HEAD")
	if err != nil {
		return "", execrunner.WrapError(p.command, "rev-parse HEAD", result, err)
	}
	return strings.TrimSpace(result.Stdout), nil
}

// IsDirty reports uncommitted work in the worktree at path.
func (p *Provisioner) IsDirty(ctx context.Context, path string) (staged, unstaged, untracked int, err error) {
	result, runErr := p.runner.Run(ctx, path, p.command, "status", "--porcelain")
	if runErr != nil {
		return 0, 0, 0, execrunner.WrapError(p.command, "status", result, runErr)
	}

	for _, line := range strings.Split(result.Stdout, "\n") {
		if len(line) < 2 {
			continue
		}
		x, y := line[0], line[1]
		if x == '?' && y == '?' {
			untracked++
			continue
		}
		if x != ' ' {
			staged++
		}
		if y != ' ' {
			unstaged++
		}
	}
	return staged, unstaged, untracked, nil
}

// Ensure Provisioner implements ports.WorkspaceProvisioner.
var _ ports.WorkspaceProvisioner = (*Provisioner)(nil)
