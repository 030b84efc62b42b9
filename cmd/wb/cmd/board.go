package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brianly1003/workbench/internal/app"
	"github.com/brianly1003/workbench/internal/config"
	"github.com/brianly1003/workbench/internal/tui"
)

// boardCmd opens the kanban board. Bare `wb` routes here too.
var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the kanban board",
	Long: `Open the interactive kanban board for the current repository.

The board shows one card per session with a live runtime indicator.
Create, move, edit, attach, and delete without leaving the terminal.`,
	RunE: runBoard,
}

func runBoard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The board owns the terminal, so logs go to a file instead of stderr.
	closeLog, err := redirectLogToFile(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closeLog()

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := application.Stop(); err != nil {
			log.Warn().Err(err).Msg("shutdown incomplete")
		}
	}()

	model := tui.New(tui.Options{
		Engine:      application.Engine(),
		Projection:  application.Projection(),
		Store:       application.Store(),
		Runtime:     application.Runtime(),
		Filler:      application.Filler(),
		Hub:         application.Hub(),
		Prefix:      cfg.Tmux.SessionPrefix,
		TmuxCommand: cfg.Tmux.Command,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("board error: %w", err)
	}
	return nil
}

// redirectLogToFile points the global logger at ~/.workbench/wb.log while
// the TUI runs.
func redirectLogToFile(cfg *config.Config) (func(), error) {
	dir, err := config.EnsureConfigDir()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "wb.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()

	return func() { _ = f.Close() }, nil
}
