package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
	"github.com/brianly1003/workbench/internal/domain"
)

var listJSON bool

// listCmd prints the board to stdout.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions grouped by column",
	Long: `List all sessions of the current repository grouped by board column,
with the live runtime status of each.

Examples:
  wb list
  wb list --json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output the board as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
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

	b, err := application.Projection().Refresh(ctx)
	if err != nil {
		return err
	}

	if listJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(b)
	}

	fmt.Printf("%s (%d sessions)\n", b.Project.Name, b.CardCount())
	for _, col := range b.Columns {
		fmt.Printf("\n%s (%d)\n", col.Name, len(col.Cards))
		for _, card := range col.Cards {
			marker := runtimeMarker(card.Runtime)
			line := fmt.Sprintf("  %s %s", marker, card.Session.Name)
			if card.Session.ProvisioningState != domain.StateProvisioned {
				line += fmt.Sprintf(" [%s]", card.Session.ProvisioningState)
			}
			fmt.Println(line)
		}
	}
	return nil
}

func runtimeMarker(status domain.RuntimeStatus) string {
	switch status {
	case domain.RuntimeActive:
		return "●"
	case domain.RuntimeWaiting:
		return "◐"
	case domain.RuntimeInactive:
		return "○"
	default:
		return "?"
	}
}
