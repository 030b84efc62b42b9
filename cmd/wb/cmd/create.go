package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
	"github.com/brianly1003/workbench/internal/reconcile"
)

var (
	createBase   string
	createColumn string
)

// createCmd creates a session with its full workspace.
var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a session with its branch, worktree, and tmux session",
	Long: `Create a new session card.

The name is sanitized into a branch name (wb/<name>) and a worktree
directory next to the repository. A tmux session starts inside the
worktree. If any step fails, everything already created is rolled back.

Examples:
  wb create fix-login
  wb create api-v2 --base origin/main
  wb create hotfix --column in_progress`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createBase, "base", "", "base ref for the new branch (default: repository HEAD)")
	createCmd.Flags().StringVar(&createColumn, "column", "", "board column for the new card (default: first column)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer application.Stop()

	sess, err := application.Engine().Create(ctx, reconcile.CreateRequest{
		Name:    args[0],
		BaseRef: createBase,
		Column:  createColumn,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", sess.Name)
	fmt.Printf("  Branch:   %s\n", sess.BranchName)
	fmt.Printf("  Worktree: %s\n", sess.WorktreePath)
	fmt.Printf("  Column:   %s\n", sess.Status)
	fmt.Printf("\nAttach with: wb attach %s\n", sess.Name)
	return nil
}
