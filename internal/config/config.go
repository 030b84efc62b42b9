// Package config handles configuration management for workbench.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/brianly1003/workbench/internal/domain"
)

// Config holds all configuration for the application.
type Config struct {
	Repository RepositoryConfig `mapstructure:"repository" yaml:"repository"`
	Board      BoardConfig      `mapstructure:"board" yaml:"board"`
	Git        GitConfig        `mapstructure:"git" yaml:"git"`
	Tmux       TmuxConfig       `mapstructure:"tmux" yaml:"tmux"`
	Tools      ToolsConfig      `mapstructure:"tools" yaml:"tools"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	AI         AIConfig         `mapstructure:"ai" yaml:"ai"`
	Watcher    WatcherConfig    `mapstructure:"watcher" yaml:"watcher"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// RepositoryConfig holds repository-related configuration.
type RepositoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// BoardConfig holds board layout configuration.
type BoardConfig struct {
	Columns []string `mapstructure:"columns" yaml:"columns"`
}

// GitConfig holds Git configuration.
type GitConfig struct {
	Command string `mapstructure:"command" yaml:"command"`
	BaseRef string `mapstructure:"base_ref" yaml:"base_ref"`
}

// TmuxConfig holds tmux configuration.
type TmuxConfig struct {
	Command       string `mapstructure:"command" yaml:"command"`
	SessionPrefix string `mapstructure:"session_prefix" yaml:"session_prefix"`
	CaptureLines  int    `mapstructure:"capture_lines" yaml:"capture_lines"`
}

// ToolsConfig holds limits applied to every external tool invocation.
type ToolsConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// StoreConfig holds session store configuration.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AIConfig holds AI field-fill configuration.
type AIConfig struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	Command        string   `mapstructure:"command" yaml:"command"`
	Args           []string `mapstructure:"args" yaml:"args"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	ContextChars   int      `mapstructure:"context_chars" yaml:"context_chars"`
}

// WatcherConfig holds file watcher configuration.
type WatcherConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	DebounceMS int  `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// ServerConfig holds the local status server configuration.
type ServerConfig struct {
	Host   string `mapstructure:"host" yaml:"host"`
	Port   int    `mapstructure:"port" yaml:"port"`
	ShowQR bool   `mapstructure:"show_qr" yaml:"show_qr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default search paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.workbench")
	}

	// Environment variable prefix
	v.SetEnvPrefix("WB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file (optional - not an error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Post-process configuration
	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Repository defaults
	v.SetDefault("repository.path", "")

	// Board defaults
	v.SetDefault("board.columns", domain.DefaultColumns)

	// Git defaults
	v.SetDefault("git.command", "git")
	v.SetDefault("git.base_ref", "")

	// Tmux defaults
	v.SetDefault("tmux.command", "tmux")
	v.SetDefault("tmux.session_prefix", "workbench")
	v.SetDefault("tmux.capture_lines", 50)

	// Tool defaults
	v.SetDefault("tools.timeout_seconds", 30)

	// Store defaults - empty resolves to ~/.workbench/workbench.db
	v.SetDefault("store.path", "")

	// AI defaults
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.command", "claude")
	v.SetDefault("ai.args", []string{"-p"})
	v.SetDefault("ai.timeout_seconds", 60)
	v.SetDefault("ai.context_chars", 2000)

	// Watcher defaults
	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.debounce_ms", 200)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.show_qr", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	// If repository path is empty, use current directory
	if cfg.Repository.Path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		cfg.Repository.Path = cwd
	}

	// Resolve to absolute path
	absPath, err := filepath.Abs(cfg.Repository.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve repository path: %w", err)
	}
	cfg.Repository.Path = absPath

	// Resolve the store path under the config directory when unset
	if cfg.Store.Path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve store path: %w", err)
		}
		cfg.Store.Path = filepath.Join(dir, "workbench.db")
	}

	// Normalize column names: trim whitespace, drop empties
	columns := make([]string, 0, len(cfg.Board.Columns))
	for _, col := range cfg.Board.Columns {
		col = strings.TrimSpace(col)
		if col != "" {
			columns = append(columns, col)
		}
	}
	cfg.Board.Columns = columns

	return nil
}

// GetConfigDir returns the user config directory for workbench.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".workbench"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
