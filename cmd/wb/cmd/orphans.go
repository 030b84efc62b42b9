package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
)

var orphansKillUnmanaged bool

// orphansCmd compares recorded sessions against what actually exists.
var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Report sessions whose pieces are missing or unmanaged",
	Long: `Compare recorded sessions against the live tmux server and the
filesystem, and report anything out of line:

  - recorded sessions whose tmux session is gone
  - recorded sessions whose worktree directory is gone
  - tmux sessions under the configured prefix that no card owns
  - sessions stuck mid-provision or mid-teardown

The report is read-only. Pass --kill-unmanaged to also terminate the
unmanaged tmux sessions it finds.

Examples:
  wb orphans
  wb orphans --kill-unmanaged`,
	RunE: runOrphans,
}

func init() {
	orphansCmd.Flags().BoolVar(&orphansKillUnmanaged, "kill-unmanaged", false, "kill unmanaged tmux sessions found by the sweep")
}

func runOrphans(cmd *cobra.Command, args []string) error {
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

	report, err := application.Engine().Sweep(ctx)
	if err != nil {
		return err
	}

	if report.Empty() {
		fmt.Println("Everything lines up. Nothing orphaned.")
		return nil
	}

	if len(report.MissingRuntime) > 0 {
		fmt.Printf("Missing tmux session (%d)\n", len(report.MissingRuntime))
		for _, sess := range report.MissingRuntime {
			fmt.Printf("  %s\n", sess.Name)
		}
	}
	if len(report.MissingWorktree) > 0 {
		fmt.Printf("Missing worktree (%d)\n", len(report.MissingWorktree))
		for _, sess := range report.MissingWorktree {
			fmt.Printf("  %s (%s)\n", sess.Name, sess.WorktreePath)
		}
	}
	if len(report.Stalled) > 0 {
		fmt.Printf("Stalled (%d)\n", len(report.Stalled))
		for _, sess := range report.Stalled {
			fmt.Printf("  %s (%s)\n", sess.Name, sess.ProvisioningState)
		}
	}
	if len(report.UnmanagedRuntime) > 0 {
		fmt.Printf("Unmanaged tmux sessions (%d)\n", len(report.UnmanagedRuntime))
		for _, name := range report.UnmanagedRuntime {
			fmt.Printf("  %s\n", name)
		}
		if orphansKillUnmanaged {
			fmt.Println()
			for _, name := range report.UnmanagedRuntime {
				if err := application.Engine().KillUnmanaged(ctx, name); err != nil {
					fmt.Printf("  failed to kill %s: %v\n", name, err)
					continue
				}
				fmt.Printf("  killed %s\n", name)
			}
		}
	}
	return nil
}
