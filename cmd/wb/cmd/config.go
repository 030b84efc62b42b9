package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brianly1003/workbench/internal/config"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage wb configuration.

Without subcommands, shows the current effective configuration.

Examples:
  wb config              # Show current config
  wb config show         # Same, explicit
  wb config init         # Create config file with defaults
  wb config path         # Show config file location
  wb config get <key>    # Get a config value
  wb config set <key> <value>  # Set a config value`,
	Run: runConfigShow,
}

// configShowCmd prints the effective configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current effective configuration",
	Long: `Show the current effective configuration as YAML, after defaults,
config file, and environment overrides are applied.

Examples:
  wb config show`,
	Run: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering config: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(out))
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings and documentation.

By default, creates ~/.workbench/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  wb config init          # Create ~/.workbench/config.yaml
  wb config init --local  # Create ./config.yaml
  wb config init --force  # Overwrite existing file`,
	RunE: runConfigInit,
}

// configPathCmd shows config file location.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	Long: `Show where the config file is located and whether it exists.

Examples:
  wb config path`,
	Run: runConfigPath,
}

// configGetCmd gets a config value.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by key.

Keys use dot notation to access nested values.

Examples:
  wb config get tmux.session_prefix
  wb config get logging.level
  wb config get ai.command`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a config value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by key.

Creates the config file if it doesn't exist.
Keys use dot notation to access nested values.

Examples:
  wb config set server.port 9000
  wb config set logging.level debug
  wb config set ai.enabled false`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	// Add subcommands to config
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	// Flags for init
	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.workbench/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string

	if configInitLocal {
		configPath = "config.yaml"
	} else {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	// Check if file exists
	if _, err := os.Stat(configPath); err == nil {
		if !configInitForce {
			return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
		}
	}

	// Write default config with comments
	if err := writeDefaultConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("Edit this file to customize wb behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting config dir: %v\n", err)
		os.Exit(1)
	}

	configPath := filepath.Join(configDir, "config.yaml")

	// Check various locations
	locations := []string{
		"./config.yaml",
		configPath,
	}

	fmt.Println("Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, loc, exists)
	}

	fmt.Printf("\nConfig directory: %s\n", configDir)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigValue(cfg, key)
	if err != nil {
		return err
	}

	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Determine config path
	configDir, err := config.EnsureConfigDir()
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Load existing config or create new one
	var data map[string]interface{}

	if content, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}

	if data == nil {
		data = make(map[string]interface{})
	}

	// Set the value
	if err := setNestedValue(data, key, value); err != nil {
		return err
	}

	// Write back
	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, configPath)
	return nil
}

func getConfigValue(cfg *config.Config, key string) (interface{}, error) {
	parts := strings.Split(key, ".")

	switch parts[0] {
	case "repository":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "path":
			return cfg.Repository.Path, nil
		}
	case "board":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "columns":
			return strings.Join(cfg.Board.Columns, ", "), nil
		}
	case "git":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "command":
			return cfg.Git.Command, nil
		case "base_ref":
			return cfg.Git.BaseRef, nil
		}
	case "tmux":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "command":
			return cfg.Tmux.Command, nil
		case "session_prefix":
			return cfg.Tmux.SessionPrefix, nil
		case "capture_lines":
			return cfg.Tmux.CaptureLines, nil
		}
	case "tools":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "timeout_seconds":
			return cfg.Tools.TimeoutSeconds, nil
		}
	case "store":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "path":
			return cfg.Store.Path, nil
		}
	case "ai":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "enabled":
			return cfg.AI.Enabled, nil
		case "command":
			return cfg.AI.Command, nil
		case "args":
			return strings.Join(cfg.AI.Args, " "), nil
		case "timeout_seconds":
			return cfg.AI.TimeoutSeconds, nil
		case "context_chars":
			return cfg.AI.ContextChars, nil
		}
	case "watcher":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "enabled":
			return cfg.Watcher.Enabled, nil
		case "debounce_ms":
			return cfg.Watcher.DebounceMS, nil
		}
	case "server":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "host":
			return cfg.Server.Host, nil
		case "port":
			return cfg.Server.Port, nil
		case "show_qr":
			return cfg.Server.ShowQR, nil
		}
	case "logging":
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid key: %s", key)
		}
		switch parts[1] {
		case "level":
			return cfg.Logging.Level, nil
		case "format":
			return cfg.Logging.Format, nil
		}
	}

	return nil, fmt.Errorf("unknown config key: %s", key)
}

func setNestedValue(data map[string]interface{}, key string, value string) error {
	parts := strings.Split(key, ".")

	// Navigate to the parent
	current := data
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := current[parts[i]]; !ok {
			current[parts[i]] = make(map[string]interface{})
		}
		if nested, ok := current[parts[i]].(map[string]interface{}); ok {
			current = nested
		} else {
			return fmt.Errorf("cannot set nested value: %s is not a map", parts[i])
		}
	}

	// Convert value to appropriate type based on key
	finalKey := parts[len(parts)-1]
	current[finalKey] = parseValue(key, value)

	return nil
}

func parseValue(key string, value string) interface{} {
	// Boolean values
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}

	// Integer values for known int fields
	intKeys := []string{"port", "debounce_ms", "timeout_seconds",
		"capture_lines", "context_chars"}
	for _, k := range intKeys {
		if strings.HasSuffix(key, k) {
			var i int
			if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
				return i
			}
		}
	}

	// Default to string
	return value
}

func writeDefaultConfig(path string) error {
	content := `# wb Configuration
# Documentation: https://github.com/brianly1003/workbench
# Copy this file to ~/.workbench/config.yaml and modify as needed

# Repository settings
repository:
  # Repository to manage (defaults to the current directory)
  # path: "/home/you/src/project"

# Board layout
board:
  # Column names, left to right. The first column receives new cards.
  columns:
    - "planned"
    - "in_progress"
    - "review"
    - "done"

# Git integration
git:
  # Path to git CLI executable
  command: "git"

  # Base ref new branches start from (empty means the repository HEAD)
  # base_ref: "main"

# Tmux integration
tmux:
  # Path to tmux CLI executable
  command: "tmux"

  # Prefix for the tmux sessions wb creates and watches
  session_prefix: "workbench"

  # Pane lines captured for status classification and peek
  capture_lines: 50

# External tool limits
tools:
  # Timeout for git and tmux invocations in seconds
  timeout_seconds: 30

# Session store
store:
  # SQLite database path (empty means ~/.workbench/workbench.db)
  # path: "/home/you/.workbench/workbench.db"

# AI field fill
ai:
  # Enable the AI collaborator for filling card fields
  enabled: true

  # Command and arguments for one-shot prompting
  command: "claude"
  args: ["-p"]

  # Timeout for a single fill in seconds
  timeout_seconds: 60

  # Pane text budget passed as context (characters)
  context_chars: 2000

# File watcher
watcher:
  # Refresh the board when the store or repository changes on disk
  enabled: true

  # Debounce rapid changes (milliseconds)
  debounce_ms: 200

# Status server (wb serve)
server:
  # Bind address (use 0.0.0.0 to allow external connections)
  host: "127.0.0.1"

  # Port for HTTP API and WebSocket connections
  port: 8787

  # Print a pairing QR code on startup
  show_qr: true

# Logging settings
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log format: console (human-readable) or json
  format: "console"
`

	return os.WriteFile(path, []byte(content), 0644)
}
