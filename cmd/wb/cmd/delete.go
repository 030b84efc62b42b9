package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
	"github.com/brianly1003/workbench/internal/reconcile"
)

var deleteForce bool

// deleteCmd tears a session down.
var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a session and tear down its workspace",
	Long: `Delete a session: kill its tmux session, remove the worktree,
delete the branch, and drop the card.

A worktree with uncommitted changes stops the teardown unless --force
is given. Pieces that are already gone are skipped with a warning.

Examples:
  wb delete fix-login
  wb delete fix-login --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "delete even if the worktree has uncommitted changes")
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	warnings, err := application.Engine().Delete(ctx, reconcile.DeleteRequest{
		Name:  args[0],
		Force: deleteForce,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %s\n", args[0])
	for _, w := range warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}
