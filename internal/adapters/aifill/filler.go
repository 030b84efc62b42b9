// Package aifill proposes custom-field values by prompting an external
// AI CLI and parsing its reply.
package aifill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workbench/internal/adapters/execrunner"
	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// Filler implements the FieldFiller port interface by shelling out to a
// prompt-mode AI CLI such as `claude -p`.
type Filler struct {
	command      string
	args         []string
	contextChars int
	runner       ports.CommandRunner
}

// NewFiller creates a new Filler. The runner should carry the AI timeout,
// which is usually longer than the one used for git and tmux.
func NewFiller(command string, args []string, contextChars int, runner ports.CommandRunner) *Filler {
	return &Filler{
		command:      command,
		args:         args,
		contextChars: contextChars,
		runner:       runner,
	}
}

// Fill asks the CLI for one value per requested field. The reply must
// contain a JSON array of strings; surrounding prose is tolerated. The
// result always has exactly len(req.Fields) entries, padded with "" when
// the model answered short.
func (f *Filler) Fill(ctx context.Context, req ports.FillRequest) ([]string, error) {
	if len(req.Fields) == 0 {
		return nil, nil
	}

	prompt := buildPrompt(req, f.contextChars)
	args := append(append([]string{}, f.args...), prompt)

	result, err := f.runner.Run(ctx, "", f.command, args...)
	if err != nil {
		return nil, domain.NewAIError("invoke", execrunner.WrapError(f.command, "fill", result, err))
	}

	values, err := parseReply(result.Stdout, len(req.Fields))
	if err != nil {
		log.Debug().Str("output", truncateForLog(result.Stdout)).Msg("unparseable ai reply")
		return nil, domain.NewAIError("parse", err)
	}
	return values, nil
}

// buildPrompt lays out the fields, the user's notes and the recent pane
// output for the model.
func buildPrompt(req ports.FillRequest, contextChars int) string {
	var b strings.Builder
	b.WriteString("You fill in fields on a development task card.\n")
	b.WriteString("Fields, in order:\n")
	for i, field := range req.Fields {
		fmt.Fprintf(&b, "%d. %s", i+1, field.Name)
		if field.Description != "" {
			fmt.Fprintf(&b, " (%s)", field.Description)
		}
		b.WriteString("\n")
	}
	if req.UserText != "" {
		b.WriteString("\nNotes from the user:\n")
		b.WriteString(req.UserText)
		b.WriteString("\n")
	}
	if req.PaneText != "" {
		b.WriteString("\nRecent terminal output from the task:\n")
		b.WriteString(tail(req.PaneText, contextChars))
		b.WriteString("\n")
	}
	b.WriteString("\nReply with only a JSON array of strings, one per field, in the order listed. ")
	b.WriteString("Use \"\" for any field you cannot fill.")
	return b.String()
}

// parseReply extracts the outermost JSON array from out and sizes it to
// fieldCount entries.
func parseReply(out string, fieldCount int) ([]string, error) {
	start := strings.Index(out, "[")
	end := strings.LastIndex(out, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var values []string
	if err := json.Unmarshal([]byte(out[start:end+1]), &values); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}

	if len(values) > fieldCount {
		values = values[:fieldCount]
	}
	for len(values) < fieldCount {
		values = append(values, "")
	}
	return values, nil
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func truncateForLog(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Disabled is the FieldFiller used when ai assist is turned off in the
// configuration. Every call reports ErrAIDisabled.
type Disabled struct{}

// Fill always fails with ErrAIDisabled.
func (Disabled) Fill(ctx context.Context, req ports.FillRequest) ([]string, error) {
	return nil, domain.ErrAIDisabled
}

// Ensure both implementations satisfy ports.FieldFiller.
var (
	_ ports.FieldFiller = (*Filler)(nil)
	_ ports.FieldFiller = Disabled{}
)
