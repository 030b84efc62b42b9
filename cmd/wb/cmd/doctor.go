package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brianly1003/workbench/internal/adapters/execrunner"
	"github.com/brianly1003/workbench/internal/adapters/gitworktree"
	"github.com/brianly1003/workbench/internal/config"
)

var (
	doctorJSON        bool
	doctorStrict      bool
	doctorHTTPTimeout int
)

type doctorStatus string

const (
	doctorStatusOK   doctorStatus = "ok"
	doctorStatusWarn doctorStatus = "warn"
	doctorStatusFail doctorStatus = "fail"
)

type doctorCheck struct {
	ID          string                 `json:"id"`
	Status      doctorStatus           `json:"status"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Remediation string                 `json:"remediation,omitempty"`
}

type doctorSummary struct {
	Total int `json:"total"`
	OK    int `json:"ok"`
	Warn  int `json:"warn"`
	Fail  int `json:"fail"`
}

type doctorReport struct {
	Version      string        `json:"version"`
	GeneratedAt  string        `json:"generated_at"`
	Overall      doctorStatus  `json:"overall_status"`
	Summary      doctorSummary `json:"summary"`
	Checks       []doctorCheck `json:"checks"`
	SearchConfig []string      `json:"config_search_paths,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run local diagnostics with remediation hints",
	Long: `Run read-only diagnostics against local wb setup and print actionable hints.

By default the output is human-readable text.
Use --json for machine-readable output.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output machine-readable JSON")
	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false, "return non-zero on warnings")
	doctorCmd.Flags().IntVar(&doctorHTTPTimeout, "http-timeout", 2, "health endpoint timeout in seconds")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := collectDoctorReport()

	if doctorJSON {
		if err := printDoctorJSON(report); err != nil {
			return err
		}
	} else {
		printDoctorText(report)
	}

	if report.Summary.Fail > 0 {
		return fmt.Errorf("doctor found %d failing check(s)", report.Summary.Fail)
	}
	if doctorStrict && report.Summary.Warn > 0 {
		return fmt.Errorf("doctor strict mode failed with %d warning(s)", report.Summary.Warn)
	}
	return nil
}

func collectDoctorReport() doctorReport {
	checks := make([]doctorCheck, 0, 16)

	cfg := defaultDoctorConfig()
	loadedCfg, cfgCheck := checkConfigLoad(cfgFile)
	checks = append(checks, cfgCheck)
	if loadedCfg != nil {
		cfg = loadedCfg
	}

	checks = append(checks, checkConfigDirectory())
	checks = append(checks, checkOptionalYAMLFile(
		"config.file",
		defaultConfigFilePath(),
		"Config file is readable",
		"Run `wb config init` to create it with documented defaults.",
	))
	checks = append(checks, checkStoreFile(cfg.Store.Path))
	checks = append(checks, checkRepositoryPath(cfg.Repository.Path))
	checks = append(checks, checkGitRepository(cfg.Git.Command, cfg.Repository.Path))

	checks = append(checks, checkCommandBinary("runtime.git", cfg.Git.Command, true))
	checks = append(checks, checkCommandBinary("runtime.tmux", cfg.Tmux.Command, true))
	checks = append(checks, checkAICommand(cfg))

	checks = append(checks, checkHealthEndpoint(cfg.Server.Host, cfg.Server.Port, doctorHTTPTimeout))

	summary := summarizeDoctorChecks(checks)
	return doctorReport{
		Version:      "1.0",
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Overall:      overallStatus(summary),
		Summary:      summary,
		Checks:       checks,
		SearchConfig: configSearchPaths(cfgFile),
	}
}

func checkConfigLoad(path string) (*config.Config, doctorCheck) {
	cfg, err := config.Load(path)
	searchPaths := configSearchPaths(path)
	if err != nil {
		return nil, doctorCheck{
			ID:      "config.load",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to load config: %v", err),
			Details: map[string]interface{}{
				"config_path":  strings.TrimSpace(path),
				"search_paths": searchPaths,
			},
			Remediation: "Fix the config file syntax, or run `wb config init --force` to regenerate defaults.",
		}
	}

	source := findFirstExistingPath(searchPaths)
	msg := "Configuration loaded using built-in defaults and environment overrides"
	if source != "" {
		msg = "Configuration loaded successfully"
	}

	return cfg, doctorCheck{
		ID:      "config.load",
		Status:  doctorStatusOK,
		Message: msg,
		Details: map[string]interface{}{
			"loaded_from":  source,
			"search_paths": searchPaths,
		},
	}
}

func checkConfigDirectory() doctorCheck {
	dir, err := config.GetConfigDir()
	if err != nil {
		return doctorCheck{
			ID:          "config.directory",
			Status:      doctorStatusFail,
			Message:     fmt.Sprintf("Failed to resolve config directory: %v", err),
			Remediation: "Verify your HOME environment and filesystem permissions.",
		}
	}

	info, statErr := os.Stat(dir)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return doctorCheck{
				ID:      "config.directory",
				Status:  doctorStatusWarn,
				Message: "Config directory does not exist yet",
				Details: map[string]interface{}{
					"path": dir,
				},
				Remediation: "Run `wb config init` to create initial local configuration.",
			}
		}
		return doctorCheck{
			ID:      "config.directory",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to access config directory: %v", statErr),
			Details: map[string]interface{}{
				"path": dir,
			},
			Remediation: "Fix directory permissions or create the directory manually.",
		}
	}

	if !info.IsDir() {
		return doctorCheck{
			ID:      "config.directory",
			Status:  doctorStatusFail,
			Message: "Config path exists but is not a directory",
			Details: map[string]interface{}{
				"path": dir,
			},
			Remediation: "Remove the file and recreate directory with `mkdir -p ~/.workbench`.",
		}
	}

	return doctorCheck{
		ID:      "config.directory",
		Status:  doctorStatusOK,
		Message: "Config directory is available",
		Details: map[string]interface{}{
			"path": dir,
		},
	}
}

func checkOptionalYAMLFile(id, path, okMessage, missingRemediation string) doctorCheck {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doctorCheck{
				ID:      id,
				Status:  doctorStatusWarn,
				Message: "File not found",
				Details: map[string]interface{}{
					"path": path,
				},
				Remediation: missingRemediation,
			}
		}
		return doctorCheck{
			ID:      id,
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to read file: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Check file permissions and ownership.",
		}
	}

	var payload interface{}
	if err := yaml.Unmarshal(content, &payload); err != nil {
		return doctorCheck{
			ID:      id,
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Invalid YAML format: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Fix YAML syntax errors in the file or regenerate it.",
		}
	}

	return doctorCheck{
		ID:      id,
		Status:  doctorStatusOK,
		Message: okMessage,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

func checkStoreFile(path string) doctorCheck {
	if strings.TrimSpace(path) == "" {
		return doctorCheck{
			ID:          "store.file",
			Status:      doctorStatusFail,
			Message:     "Store path is empty",
			Remediation: "Set `store.path` in config or leave it unset for the default location.",
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doctorCheck{
				ID:      "store.file",
				Status:  doctorStatusWarn,
				Message: "Session store not created yet",
				Details: map[string]interface{}{
					"path": path,
				},
				Remediation: "The database is created on first use. Run `wb list` to initialize it.",
			}
		}
		return doctorCheck{
			ID:      "store.file",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to inspect store file: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Check file permissions and ownership.",
		}
	}

	if info.IsDir() {
		return doctorCheck{
			ID:      "store.file",
			Status:  doctorStatusFail,
			Message: "Store path is a directory",
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Point `store.path` at a file, not a directory.",
		}
	}

	return doctorCheck{
		ID:      "store.file",
		Status:  doctorStatusOK,
		Message: "Session store is present",
		Details: map[string]interface{}{
			"path":       path,
			"size_bytes": info.Size(),
		},
	}
}

func checkRepositoryPath(path string) doctorCheck {
	if strings.TrimSpace(path) == "" {
		return doctorCheck{
			ID:      "repository.path",
			Status:  doctorStatusOK,
			Message: "repository.path is empty (defaults to the current directory)",
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return doctorCheck{
				ID:      "repository.path",
				Status:  doctorStatusFail,
				Message: "Configured repository path does not exist",
				Details: map[string]interface{}{
					"path": path,
				},
				Remediation: "Update `repository.path` in config or run wb from inside the repository.",
			}
		}
		return doctorCheck{
			ID:      "repository.path",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Failed to inspect repository path: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Check filesystem permissions and path validity.",
		}
	}

	if !info.IsDir() {
		return doctorCheck{
			ID:      "repository.path",
			Status:  doctorStatusFail,
			Message: "Configured repository path is not a directory",
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Set `repository.path` to a directory path.",
		}
	}

	return doctorCheck{
		ID:      "repository.path",
		Status:  doctorStatusOK,
		Message: "Configured repository path is valid",
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

func checkGitRepository(command, path string) doctorCheck {
	if strings.TrimSpace(path) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return doctorCheck{
				ID:          "repository.git_root",
				Status:      doctorStatusFail,
				Message:     fmt.Sprintf("Failed to resolve current directory: %v", err),
				Remediation: "Run wb from a readable working directory.",
			}
		}
		path = cwd
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runner := execrunner.New(5 * time.Second)
	root, err := gitworktree.DetectRoot(ctx, runner, command, path)
	if err != nil {
		return doctorCheck{
			ID:      "repository.git_root",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Not a usable git repository: %v", err),
			Details: map[string]interface{}{
				"path": path,
			},
			Remediation: "Run wb from inside a git repository, or point `repository.path` at one.",
		}
	}

	return doctorCheck{
		ID:      "repository.git_root",
		Status:  doctorStatusOK,
		Message: "Repository root resolved",
		Details: map[string]interface{}{
			"path": path,
			"root": root,
		},
	}
}

func checkCommandBinary(id, command string, recommended bool) doctorCheck {
	execName := extractCommandName(command)
	if execName == "" {
		return doctorCheck{
			ID:          id,
			Status:      doctorStatusFail,
			Message:     "Command is empty",
			Remediation: "Set the command in config to a valid executable name or absolute path.",
		}
	}

	resolved, err := exec.LookPath(execName)
	if err != nil {
		status := doctorStatusWarn
		remediation := fmt.Sprintf("Install `%s` and ensure it is available in PATH.", execName)
		if recommended {
			status = doctorStatusFail
			remediation = fmt.Sprintf("Install `%s` or update config to a valid command path.", execName)
		}
		return doctorCheck{
			ID:      id,
			Status:  status,
			Message: fmt.Sprintf("Command not found in PATH: %s", execName),
			Details: map[string]interface{}{
				"configured": command,
			},
			Remediation: remediation,
		}
	}

	return doctorCheck{
		ID:      id,
		Status:  doctorStatusOK,
		Message: "Command is available",
		Details: map[string]interface{}{
			"configured": command,
			"resolved":   resolved,
		},
	}
}

func checkAICommand(cfg *config.Config) doctorCheck {
	if !cfg.AI.Enabled {
		return doctorCheck{
			ID:      "runtime.ai_cli",
			Status:  doctorStatusOK,
			Message: "AI field fill is disabled",
		}
	}
	return checkCommandBinary("runtime.ai_cli", cfg.AI.Command, false)
}

func checkHealthEndpoint(host string, port, timeoutSeconds int) doctorCheck {
	if strings.TrimSpace(host) == "" {
		host = "127.0.0.1"
	}
	if port <= 0 {
		port = 8787
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 2
	}

	url := fmt.Sprintf("http://%s:%d/health", host, port)
	client := &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return doctorCheck{
			ID:      "server.health_endpoint",
			Status:  doctorStatusWarn,
			Message: fmt.Sprintf("Health endpoint is not reachable: %v", err),
			Details: map[string]interface{}{
				"url": url,
			},
			Remediation: "Start the status server with `wb serve` and verify host/port configuration.",
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return doctorCheck{
			ID:      "server.health_endpoint",
			Status:  doctorStatusFail,
			Message: fmt.Sprintf("Health endpoint returned non-200 status: %d", resp.StatusCode),
			Details: map[string]interface{}{
				"url":         url,
				"status_code": resp.StatusCode,
				"body":        strings.TrimSpace(string(body)),
			},
			Remediation: "Check server logs (`wb serve -v`) to diagnose HTTP startup issues.",
		}
	}

	return doctorCheck{
		ID:      "server.health_endpoint",
		Status:  doctorStatusOK,
		Message: "Health endpoint is reachable",
		Details: map[string]interface{}{
			"url":         url,
			"status_code": resp.StatusCode,
		},
	}
}

func summarizeDoctorChecks(checks []doctorCheck) doctorSummary {
	summary := doctorSummary{Total: len(checks)}
	for _, check := range checks {
		switch check.Status {
		case doctorStatusOK:
			summary.OK++
		case doctorStatusWarn:
			summary.Warn++
		case doctorStatusFail:
			summary.Fail++
		}
	}
	return summary
}

func overallStatus(summary doctorSummary) doctorStatus {
	if summary.Fail > 0 {
		return doctorStatusFail
	}
	if summary.Warn > 0 {
		return doctorStatusWarn
	}
	return doctorStatusOK
}

func printDoctorJSON(report doctorReport) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func printDoctorText(report doctorReport) {
	fmt.Printf("wb doctor v%s\n", report.Version)
	fmt.Printf("generated_at: %s\n", report.GeneratedAt)
	fmt.Printf("overall: %s  (ok=%d warn=%d fail=%d total=%d)\n\n",
		strings.ToUpper(string(report.Overall)),
		report.Summary.OK,
		report.Summary.Warn,
		report.Summary.Fail,
		report.Summary.Total,
	)

	for _, check := range report.Checks {
		label := "[OK]"
		if check.Status == doctorStatusWarn {
			label = "[WARN]"
		}
		if check.Status == doctorStatusFail {
			label = "[FAIL]"
		}

		fmt.Printf("%s %s: %s\n", label, check.ID, check.Message)
		if check.Remediation != "" && check.Status != doctorStatusOK {
			fmt.Printf("  fix: %s\n", check.Remediation)
		}
	}

	fmt.Println()
	fmt.Println("Tip: run `wb doctor --json` for machine-readable output.")
}

func defaultDoctorConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Git: config.GitConfig{
			Command: "git",
		},
		Tmux: config.TmuxConfig{
			Command: "tmux",
		},
		AI: config.AIConfig{
			Enabled: true,
			Command: "claude",
		},
	}
}

func defaultConfigFilePath() string {
	dir, err := config.GetConfigDir()
	if err != nil {
		return filepath.Join(userHomeDir(), ".workbench", "config.yaml")
	}
	return filepath.Join(dir, "config.yaml")
}

func configSearchPaths(explicit string) []string {
	if strings.TrimSpace(explicit) != "" {
		return []string{explicit}
	}

	home := userHomeDir()
	return []string{
		filepath.Join(".", "config.yaml"),
		filepath.Join(home, ".workbench", "config.yaml"),
	}
}

func findFirstExistingPath(paths []string) string {
	for _, candidate := range paths {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func extractCommandName(command string) string {
	parts := strings.Fields(strings.TrimSpace(command))
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
