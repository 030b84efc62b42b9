// Package tmux observes and manages the terminal-multiplexer sessions
// behind cards through the tmux CLI.
package tmux

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/workbench/internal/adapters/execrunner"
	"github.com/brianly1003/workbench/internal/domain"
	"github.com/brianly1003/workbench/internal/domain/ports"
)

// maxConcurrentCaptures limits how many capture-pane subprocesses run in
// parallel during a snapshot.
const maxConcurrentCaptures = 8

// Monitor implements the RuntimeMonitor port interface.
type Monitor struct {
	command      string
	prefix       string
	captureLines int
	runner       ports.CommandRunner
	classifier   ports.ActivityClassifier
}

// NewMonitor creates a new Monitor.
func NewMonitor(command, prefix string, captureLines int, runner ports.CommandRunner, classifier ports.ActivityClassifier) *Monitor {
	return &Monitor{
		command:      command,
		prefix:       prefix,
		captureLines: captureLines,
		runner:       runner,
		classifier:   classifier,
	}
}

// listSessions returns the names of all live tmux sessions in one query.
// A stopped server means no sessions, not an error.
func (m *Monitor) listSessions(ctx context.Context) ([]string, error) {
	result, err := m.runner.Run(ctx, "", m.command, "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if strings.Contains(result.Stderr, "no server running") ||
			strings.Contains(result.Stderr, "no sessions") {
			return nil, nil
		}
		return nil, execrunner.WrapError(m.command, "list-sessions", result, err)
	}

	var names []string
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Snapshot classifies each ref in one pass over the live session list.
// Pane captures run in parallel, bounded by a semaphore.
func (m *Monitor) Snapshot(ctx context.Context, refs []ports.RuntimeRef) (map[string]domain.RuntimeStatus, error) {
	live, err := m.listSessions(ctx)
	if err != nil {
		return nil, err
	}
	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}

	statuses := make(map[string]domain.RuntimeStatus, len(refs))
	var mu sync.Mutex

	sem := make(chan struct{}, maxConcurrentCaptures)
	var wg sync.WaitGroup

	for _, ref := range refs {
		if !liveSet[ref.RuntimeName] {
			mu.Lock()
			statuses[ref.SessionID] = domain.RuntimeInactive
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(ref ports.RuntimeRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			status := domain.RuntimeUnknown
			pane, err := m.CapturePane(ctx, ref.RuntimeName, m.captureLines)
			if err == nil {
				status = m.classifier.Classify(pane)
			} else {
				log.Debug().
					Str("session", ref.RuntimeName).
					Err(err).
					Msg("pane capture failed, status unknown")
			}

			mu.Lock()
			statuses[ref.SessionID] = status
			mu.Unlock()
		}(ref)
	}

	wg.Wait()
	return statuses, nil
}

// Unmanaged returns live session names that carry this project's naming
// prefix but match no known session ID.
func (m *Monitor) Unmanaged(ctx context.Context, projectID int64, knownIDs map[string]struct{}) ([]string, error) {
	live, err := m.listSessions(ctx)
	if err != nil {
		return nil, err
	}

	var orphans []string
	for _, name := range live {
		pid, sessionID, ok := domain.ParseRuntimeSessionName(m.prefix, name)
		if !ok || pid != projectID {
			continue
		}
		if _, known := knownIDs[sessionID]; !known {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

// Create starts a detached session named name rooted at dir.
func (m *Monitor) Create(ctx context.Context, name, dir string) error {
	result, err := m.runner.Run(ctx, "", m.command, "new-session", "-d", "-s", name, "-c", dir)
	if err != nil {
		return execrunner.WrapError(m.command, "new-session", result, err)
	}
	log.Info().Str("session", name).Str("dir", dir).Msg("runtime session created")
	return nil
}

// Kill terminates a session. A session that is already gone counts as
// killed.
func (m *Monitor) Kill(ctx context.Context, name string) error {
	result, err := m.runner.Run(ctx, "", m.command, "kill-session", "-t", exactTarget(name))
	if err != nil {
		if strings.Contains(result.Stderr, "can't find session") ||
			strings.Contains(result.Stderr, "no server running") {
			return nil
		}
		return execrunner.WrapError(m.command, "kill-session", result, err)
	}
	log.Info().Str("session", name).Msg("runtime session killed")
	return nil
}

// Has reports whether a session named name exists.
func (m *Monitor) Has(ctx context.Context, name string) (bool, error) {
	result, err := m.runner.Run(ctx, "", m.command, "has-session", "-t", exactTarget(name))
	if err == nil {
		return true, nil
	}
	if strings.Contains(result.Stderr, "can't find session") ||
		strings.Contains(result.Stderr, "no server running") ||
		result.ExitCode == 1 {
		return false, nil
	}
	return false, execrunner.WrapError(m.command, "has-session", result, err)
}

// CapturePane returns the trailing lines of a session's visible pane.
func (m *Monitor) CapturePane(ctx context.Context, name string, lines int) (string, error) {
	result, err := m.runner.Run(ctx, "", m.command,
		"capture-pane", "-p", "-t", exactTarget(name), "-S", fmt.Sprintf("-%d", lines))
	if err != nil {
		return "", execrunner.WrapError(m.command, "capture-pane", result, err)
	}
	return result.Stdout, nil
}

// exactTarget disables tmux's prefix matching so "wb-1-a" never resolves
// a lookup for "wb-1".
func exactTarget(name string) string {
	return "=" + name
}

// Ensure Monitor implements ports.RuntimeMonitor.
var _ ports.RuntimeMonitor = (*Monitor)(nil)
