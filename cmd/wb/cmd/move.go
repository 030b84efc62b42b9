package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/reconcile"
)

// moveCmd moves a card to another column.
var moveCmd = &cobra.Command{
	Use:   "move <name> <column>",
	Short: "Move a session card to another column",
	Long: `Move a session's card to another board column.

Moving only changes the card position. The branch, worktree, and tmux
session are untouched.

Examples:
  wb move fix-login in_progress
  wb move fix-login done`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

func runMove(cmd *cobra.Command, args []string) error {
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

	sess, err := application.Engine().Move(ctx, reconcile.MoveRequest{
		Name:   args[0],
		Column: args[1],
	})
	if errors.Is(err, domain.ErrUnknownColumn) {
		return fmt.Errorf("%w (columns: %s)", err, strings.Join(application.Engine().Columns(), ", "))
	}
	if err != nil {
		return err
	}

	fmt.Printf("Moved %s to %s\n", sess.Name, sess.Status)
	return nil
}
