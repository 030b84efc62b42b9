// Package pathutil provides path normalization helpers for workbench.
package pathutil

import (
	"path/filepath"
)

// Canonical returns the absolute, symlink-resolved form of path. Projects
// are keyed by this form so aliases of the same directory (symlinked
// checkouts, macOS /tmp vs /private/tmp) resolve to one record.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Path may not exist yet; fall back to the cleaned absolute form.
		return filepath.Clean(abs), nil
	}
	return resolved, nil
}

// PathsEqual reports whether two paths refer to the same location after
// canonicalization.
func PathsEqual(a, b string) bool {
	ca, err := Canonical(a)
	if err != nil {
		return false
	}
	cb, err := Canonical(b)
	if err != nil {
		return false
	}
	return ca == cb
}
