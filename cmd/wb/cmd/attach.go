package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
	"github.com/brianly1003/workbench/internal/domain"
)

// attachCmd replaces the current process's terminal with a tmux client.
var attachCmd = &cobra.Command{
	Use:   "attach <name>",
	Short: "Attach to a session's tmux session",
	Long: `Attach the terminal to the tmux session backing a card.

Detach with the usual tmux binding (Ctrl-b d by default) to return
to the shell.

Examples:
  wb attach fix-login`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func runAttach(cmd *cobra.Command, args []string) error {
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

	sess, err := application.Store().GetSessionByName(ctx, application.Project().ID, args[0])
	if err != nil {
		application.Stop()
		return err
	}
	if sess.ProvisioningState != domain.StateProvisioned {
		application.Stop()
		return fmt.Errorf("session %s is still %s", sess.Name, sess.ProvisioningState)
	}

	target := domain.RuntimeSessionName(cfg.Tmux.SessionPrefix, sess.ProjectID, sess.ID)

	// Release the store before handing the terminal to tmux. The attach
	// can outlive this process's patience by hours.
	if err := application.Stop(); err != nil {
		return err
	}

	tmuxCmd := exec.Command(cfg.Tmux.Command, "attach-session", "-t", "="+target)
	tmuxCmd.Stdin = os.Stdin
	tmuxCmd.Stdout = os.Stdout
	tmuxCmd.Stderr = os.Stderr
	return tmuxCmd.Run()
}
