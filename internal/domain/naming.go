package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// BranchPrefix is prepended to every managed branch name.
const BranchPrefix = "wb/"

// SanitizeName normalizes a session name for use in branch names, directory
// names and runtime session names. Lowercases, keeps [a-z0-9], maps every
// other rune to '-', collapses runs, trims leading/trailing dashes. An empty
// result falls back to "session".
func SanitizeName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
		}
		dash = true
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "session"
	}
	return out
}

// BranchName returns the managed branch name for a session name.
func BranchName(name string) string {
	return BranchPrefix + SanitizeName(name)
}

// WorktreePath returns the worktree directory for a session: a sibling of the
// project root named "<root>-<sanitized>".
func WorktreePath(projectRoot, name string) string {
	return filepath.Clean(projectRoot) + "-" + SanitizeName(name)
}

// RuntimeSessionName returns the runtime session name for a session:
// "<prefix>-<projectID>-<sessionID>".
func RuntimeSessionName(prefix string, projectID int64, sessionID string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, projectID, sessionID)
}

// ParseRuntimeSessionName splits a runtime session name produced by
// RuntimeSessionName back into its project and session IDs. Returns false for
// names that don't carry the prefix or don't parse.
func ParseRuntimeSessionName(prefix, name string) (projectID int64, sessionID string, ok bool) {
	rest, found := strings.CutPrefix(name, prefix+"-")
	if !found {
		return 0, "", false
	}
	idPart, sessionID, found := strings.Cut(rest, "-")
	if !found || sessionID == "" {
		return 0, "", false
	}
	projectID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return projectID, sessionID, true
}
