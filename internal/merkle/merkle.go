// Package merkle computes a deterministic content fingerprint for a
// codebase: a per-file SHA-256 hash and a single root hash over the sorted
// file list, used to detect whether a codebase has changed since it was
// last indexed (SPEC_FULL.md component A) without requiring Git.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// builtinIgnores are directory/file names skipped regardless of config,
// mirroring the teacher's ExcludeGlobs defaults (node_modules/**, .git/**, etc).
var builtinIgnores = []string{
	".git", ".satori", "node_modules", "dist", "build", "vendor",
	".venv", "venv", "__pycache__", ".tox", "target", ".next", ".cache",
}

// FileEntry is one file's canonical path (relative, slash-separated) and
// content hash.
type FileEntry struct {
	Path string
	Hash string
}

// Tree is a computed snapshot of a codebase's file contents.
type Tree struct {
	Root    string
	Files   []FileEntry
	ByPath  map[string]string
}

// Matcher decides whether a relative path should be skipped during a walk.
type Matcher struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob    string
	negate  bool
}

// NewMatcher builds a Matcher from .satoriignore (if present under root),
// the built-in defaults, and any additional patterns from configuration.
// Patterns follow .gitignore syntax: a leading "!" negates a prior match.
func NewMatcher(root string, extra []string) *Matcher {
	m := &Matcher{}
	for _, p := range builtinIgnores {
		m.patterns = append(m.patterns, ignorePattern{glob: p})
	}
	m.patterns = append(m.patterns, parsePatternLines(extra)...)

	if data, err := os.ReadFile(filepath.Join(root, ".satoriignore")); err == nil {
		lines := strings.Split(string(data), "\n")
		m.patterns = append(m.patterns, parsePatternLines(lines)...)
	}
	return m
}

func parsePatternLines(lines []string) []ignorePattern {
	var out []ignorePattern
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		negate := strings.HasPrefix(line, "!")
		if negate {
			line = line[1:]
		}
		out = append(out, ignorePattern{glob: line, negate: negate})
	}
	return out
}

// Match reports whether relPath (slash-separated, relative to root) should
// be ignored. Later patterns override earlier ones, matching .gitignore
// precedence.
func (m *Matcher) Match(relPath string) bool {
	ignored := false
	base := filepath.Base(relPath)
	for _, p := range m.patterns {
		if matchesPattern(p.glob, relPath, base) {
			ignored = !p.negate
		}
	}
	return ignored
}

func matchesPattern(glob, relPath, base string) bool {
	if ok, _ := filepath.Match(glob, base); ok {
		return true
	}
	if ok, _ := filepath.Match(glob, relPath); ok {
		return true
	}
	// directory-style prefix match: "node_modules" matches "node_modules/x.go"
	trimmed := strings.TrimSuffix(glob, "/")
	if trimmed == base {
		return true
	}
	if strings.HasPrefix(relPath, trimmed+"/") {
		return true
	}
	return false
}

// Build walks root, hashing every non-ignored regular file under
// maxFileSize bytes, and returns the resulting Tree. Files are walked in
// lexical order (filepath.Walk's guarantee), so Build is deterministic.
func Build(root string, matcher *Matcher, maxFileSize int64) (*Tree, error) {
	var entries []FileEntry

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel) {
			return nil
		}
		if maxFileSize > 0 && info.Size() > maxFileSize {
			return nil
		}

		hash, hashErr := hashFile(path)
		if hashErr != nil {
			return nil // unreadable file (permissions, broken symlink): skip, not fatal
		}
		entries = append(entries, FileEntry{Path: rel, Hash: hash})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	byPath := make(map[string]string, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e.Hash
	}

	return &Tree{
		Root:   rootHash(entries),
		Files:  entries,
		ByPath: byPath,
	}, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// rootHash combines sorted (path, hash) pairs into a single digest. Because
// entries are sorted by path before this is called, the result depends only
// on file contents and relative paths, not walk order.
func rootHash(sortedEntries []FileEntry) string {
	h := sha256.New()
	for _, e := range sortedEntries {
		h.Write([]byte(e.Path))
		h.Write([]byte{0})
		h.Write([]byte(e.Hash))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Delta is the set of path-level changes between two trees.
type Delta struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// IsEmpty reports whether the delta contains no changes.
func (d Delta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}

// Diff computes the file-level delta from prev to current. A nil prev is
// treated as empty (every current file is Added).
func Diff(prev, current *Tree) Delta {
	var d Delta
	var prevByPath map[string]string
	if prev != nil {
		prevByPath = prev.ByPath
	}

	for _, f := range current.Files {
		oldHash, existed := prevByPath[f.Path]
		switch {
		case !existed:
			d.Added = append(d.Added, f.Path)
		case oldHash != f.Hash:
			d.Modified = append(d.Modified, f.Path)
		}
	}

	if prev != nil {
		for _, f := range prev.Files {
			if _, stillExists := current.ByPath[f.Path]; !stillExists {
				d.Deleted = append(d.Deleted, f.Path)
			}
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Modified)
	sort.Strings(d.Deleted)
	return d
}
