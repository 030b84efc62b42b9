package tmux

import (
	"strings"

	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// busyMarkers appear while an agent is mid-turn and interruptible.
var busyMarkers = []string{
	"ctrl+c to interrupt",
	"esc to interrupt",
}

// spinnerMarks are the braille animation frames agents draw while working.
var spinnerMarks = []string{
	"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏",
}

// waitingPatterns indicate a pending confirmation prompt. They are only
// trusted near the bottom of the pane; higher up they are usually
// scrollback from an already-answered prompt.
var waitingPatterns = []string{
	"do you want",
	"(y/n)",
	"[y/n]",
	"allow edit",
	"allow bash",
	"press enter",
	"continue?",
	"approve",
	"confirm",
}

const (
	// spinnerWindow is how many trailing lines are scanned for spinner
	// frames and busy markers.
	spinnerWindow = 25
	// promptWindow is how many trailing non-blank lines are scanned for
	// waiting patterns.
	promptWindow = 5
)

// Classifier assigns a runtime status from visible pane text. The rules
// are heuristics tuned against interactive agent CLIs; treat the result
// as advisory.
type Classifier struct{}

// NewClassifier creates a new Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify maps captured pane text to a runtime status.
func (c *Classifier) Classify(pane string) domain.RuntimeStatus {
	content := strings.TrimSpace(pane)
	if content == "" {
		// Nothing rendered yet, or a bare shell cleared the screen.
		return domain.RuntimeWaiting
	}
	lower := strings.ToLower(content)

	tail := lastLines(lower, spinnerWindow)
	for _, marker := range busyMarkers {
		if strings.Contains(tail, marker) {
			return domain.RuntimeActive
		}
	}
	for _, mark := range spinnerMarks {
		if strings.Contains(tail, mark) {
			return domain.RuntimeActive
		}
	}
	if strings.Contains(tail, "tokens") &&
		(strings.Contains(tail, "thinking") ||
			strings.Contains(tail, "connecting") ||
			strings.Contains(tail, "running")) {
		return domain.RuntimeActive
	}

	recent := lastNonBlankLines(lower, promptWindow)
	for _, line := range recent {
		for _, pattern := range waitingPatterns {
			if strings.Contains(line, pattern) {
				return domain.RuntimeWaiting
			}
		}
	}

	if len(recent) > 0 && endsAtShellPrompt(recent[len(recent)-1]) {
		return domain.RuntimeWaiting
	}

	// Output is present and nothing signals a prompt: assume the
	// process is still producing it.
	return domain.RuntimeActive
}

// lastLines returns the trailing n lines of s joined back together.
func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// lastNonBlankLines returns up to n trailing lines that contain any
// non-whitespace text, oldest first.
func lastNonBlankLines(s string, n int) []string {
	lines := strings.Split(s, "\n")
	var kept []string
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			kept = append(kept, line)
		}
	}
	// Reverse into pane order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// endsAtShellPrompt reports whether line looks like an idle shell prompt.
// Only the final pane line is ever tested; prompt glyphs in scrollback
// are too common to trust.
func endsAtShellPrompt(line string) bool {
	for _, suffix := range []string{"$", "%", "#", "❯", ">"} {
		if strings.HasSuffix(line, suffix) {
			return true
		}
	}
	return false
}

// Ensure Classifier implements ports.ActivityClassifier.
var _ ports.ActivityClassifier = (*Classifier)(nil)
