// Package pathutil canonicalizes codebase paths the same way everywhere:
// resolve symlinks, normalize separators, strip trailing separators. Satori
// uses the canonical path as identity across the snapshot store, the
// completion-marker proof, and the search pipeline.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Canonicalize resolves symlinks and normalizes p into a stable identity
// string. If symlink resolution fails (e.g. the path does not exist yet),
// it falls back to filepath.Abs + Clean so callers can still canonicalize
// paths that are about to be created.
func Canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Path may not exist yet (e.g. pre-create validation); normalize
		// without symlink resolution rather than failing outright.
		return normalizeSeparators(abs), nil
	}
	return normalizeSeparators(resolved), nil
}

func normalizeSeparators(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimRight(p, "/")
	return p
}
