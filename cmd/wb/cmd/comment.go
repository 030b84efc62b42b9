package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
)

// commentCmd appends a timestamped note to a session.
var commentCmd = &cobra.Command{
	Use:   "comment <name> <text>",
	Short: "Add a comment to a session",
	Long: `Append a timestamped comment to a session's card. Comments are
append-only and show up in the card editor.

Examples:
  wb comment fix-login "waiting on the API team"`,
	Args: cobra.ExactArgs(2),
	RunE: runComment,
}

func runComment(cmd *cobra.Command, args []string) error {
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

	sess, err := application.Store().GetSessionByName(ctx, application.Project().ID, args[0])
	if err != nil {
		return err
	}
	comment, err := application.Store().AddComment(ctx, sess.ID, args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Commented on %s at %s\n", sess.Name, comment.CreatedAt.Format("15:04:05"))
	return nil
}
