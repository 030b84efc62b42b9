package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Git.Command != "git" {
		t.Errorf("Git.Command = %q, want git", cfg.Git.Command)
	}
	if cfg.Tmux.SessionPrefix != "workbench" {
		t.Errorf("Tmux.SessionPrefix = %q, want workbench", cfg.Tmux.SessionPrefix)
	}
	if cfg.Tools.TimeoutSeconds != 30 {
		t.Errorf("Tools.TimeoutSeconds = %d, want 30", cfg.Tools.TimeoutSeconds)
	}
	want := []string{"planned", "in_progress", "review", "done"}
	if !reflect.DeepEqual(cfg.Board.Columns, want) {
		t.Errorf("Board.Columns = %v, want %v", cfg.Board.Columns, want)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d, want 8787", cfg.Server.Port)
	}
	if !cfg.AI.Enabled {
		t.Error("AI.Enabled = false, want true")
	}

	// Empty repository path resolves to the working directory
	cwd, _ := os.Getwd()
	if cfg.Repository.Path != cwd {
		t.Errorf("Repository.Path = %q, want %q", cfg.Repository.Path, cwd)
	}

	// Empty store path resolves under the config directory
	wantStore := filepath.Join(home, ".workbench", "workbench.db")
	if cfg.Store.Path != wantStore {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, wantStore)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	repo := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
repository:
  path: ` + repo + `
board:
  columns: [todo, doing, " ", done]
tmux:
  session_prefix: bench
  capture_lines: 120
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Repository.Path != repo {
		t.Errorf("Repository.Path = %q, want %q", cfg.Repository.Path, repo)
	}
	// Blank column entries are dropped
	want := []string{"todo", "doing", "done"}
	if !reflect.DeepEqual(cfg.Board.Columns, want) {
		t.Errorf("Board.Columns = %v, want %v", cfg.Board.Columns, want)
	}
	if cfg.Tmux.SessionPrefix != "bench" {
		t.Errorf("Tmux.SessionPrefix = %q, want bench", cfg.Tmux.SessionPrefix)
	}
	if cfg.Tmux.CaptureLines != 120 {
		t.Errorf("Tmux.CaptureLines = %d, want 120", cfg.Tmux.CaptureLines)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Unset sections keep defaults
	if cfg.Git.Command != "git" {
		t.Errorf("Git.Command = %q, want git", cfg.Git.Command)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WB_LOGGING_LEVEL", "trace")
	t.Setenv("WB_SERVER_PORT", "9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "trace" {
		t.Errorf("Logging.Level = %q, want trace (env override)", cfg.Logging.Level)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env override)", cfg.Server.Port)
	}
}

func TestLoadRejectsMissingRepository(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
repository:
  path: /nonexistent/path/for/workbench/test
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() error = nil, want error for missing repository path")
	}
}

func TestGetConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join(home, ".workbench") {
		t.Errorf("GetConfigDir() = %q, want %q", dir, filepath.Join(home, ".workbench"))
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := EnsureConfigDir()
	if err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("config dir was not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("config dir is not a directory: %s", dir)
	}
}
