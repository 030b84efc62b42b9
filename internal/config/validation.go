package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateRepository(&cfg.Repository); err != nil {
		return err
	}
	if err := validateBoard(&cfg.Board); err != nil {
		return err
	}
	if err := validateGit(&cfg.Git); err != nil {
		return err
	}
	if err := validateTmux(&cfg.Tmux); err != nil {
		return err
	}
	if err := validateTools(&cfg.Tools); err != nil {
		return err
	}
	if err := validateAI(&cfg.AI); err != nil {
		return err
	}
	if err := validateWatcher(&cfg.Watcher); err != nil {
		return err
	}
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	return nil
}

func validateRepository(cfg *RepositoryConfig) error {
	info, err := os.Stat(cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("repository.path does not exist: %s", cfg.Path)
		}
		return fmt.Errorf("error accessing repository.path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository.path is not a directory: %s", cfg.Path)
	}
	return nil
}

func validateBoard(cfg *BoardConfig) error {
	if len(cfg.Columns) == 0 {
		return fmt.Errorf("board.columns cannot be empty")
	}
	seen := make(map[string]bool, len(cfg.Columns))
	for _, col := range cfg.Columns {
		if seen[col] {
			return fmt.Errorf("board.columns contains duplicate column: %s", col)
		}
		seen[col] = true
	}
	return nil
}

func validateGit(cfg *GitConfig) error {
	if cfg.Command == "" {
		return fmt.Errorf("git.command cannot be empty")
	}
	return nil
}

func validateTmux(cfg *TmuxConfig) error {
	if cfg.Command == "" {
		return fmt.Errorf("tmux.command cannot be empty")
	}
	if cfg.SessionPrefix == "" {
		return fmt.Errorf("tmux.session_prefix cannot be empty")
	}
	if strings.ContainsAny(cfg.SessionPrefix, " \t:") {
		return fmt.Errorf("tmux.session_prefix cannot contain whitespace or colons")
	}
	if cfg.CaptureLines < 1 {
		return fmt.Errorf("tmux.capture_lines must be at least 1")
	}
	if cfg.CaptureLines > 10000 {
		return fmt.Errorf("tmux.capture_lines cannot exceed 10000")
	}
	return nil
}

func validateTools(cfg *ToolsConfig) error {
	if cfg.TimeoutSeconds < 1 {
		return fmt.Errorf("tools.timeout_seconds must be at least 1")
	}
	if cfg.TimeoutSeconds > 600 {
		return fmt.Errorf("tools.timeout_seconds cannot exceed 600")
	}
	return nil
}

func validateAI(cfg *AIConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Command == "" {
		return fmt.Errorf("ai.command cannot be empty when ai.enabled is true")
	}
	if cfg.TimeoutSeconds < 1 {
		return fmt.Errorf("ai.timeout_seconds must be at least 1")
	}
	if cfg.TimeoutSeconds > 600 {
		return fmt.Errorf("ai.timeout_seconds cannot exceed 600")
	}
	if cfg.ContextChars < 0 {
		return fmt.Errorf("ai.context_chars cannot be negative")
	}
	return nil
}

func validateWatcher(cfg *WatcherConfig) error {
	if cfg.DebounceMS < 0 {
		return fmt.Errorf("watcher.debounce_ms cannot be negative")
	}
	if cfg.DebounceMS > 10000 {
		return fmt.Errorf("watcher.debounce_ms cannot exceed 10000ms")
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Host == "" {
		return fmt.Errorf("server.host cannot be empty")
	}
	return nil
}
