package merkle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuildIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a")
	writeFile(t, dir, "sub/b.go", "package sub")

	m := NewMatcher(dir, nil)
	tree1, err := Build(dir, m, 0)
	require.NoError(t, err)
	tree2, err := Build(dir, m, 0)
	require.NoError(t, err)

	assert.Equal(t, tree1.Root, tree2.Root)
	assert.Len(t, tree1.Files, 2)
}

func TestBuildIgnoresBuiltinDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a")
	writeFile(t, dir, "node_modules/pkg/index.js", "module.exports = {}")
	writeFile(t, dir, ".git/HEAD", "ref: refs/heads/main")

	m := NewMatcher(dir, nil)
	tree, err := Build(dir, m, 0)
	require.NoError(t, err)

	assert.Len(t, tree.Files, 1)
	assert.Equal(t, "a.go", tree.Files[0].Path)
}

func TestMatcherRespectsNegation(t *testing.T) {
	dir := t.TempDir()
	m := NewMatcher(dir, []string{"*.log", "!keep.log"})

	assert.True(t, m.Match("debug.log"))
	assert.False(t, m.Match("keep.log"))
}

func TestDiffDetectsAddedModifiedDeleted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a")
	writeFile(t, dir, "b.go", "package b")
	m := NewMatcher(dir, nil)
	prev, err := Build(dir, m, 0)
	require.NoError(t, err)

	writeFile(t, dir, "a.go", "package a // changed")
	require.NoError(t, os.Remove(filepath.Join(dir, "b.go")))
	writeFile(t, dir, "c.go", "package c")

	current, err := Build(dir, m, 0)
	require.NoError(t, err)

	delta := Diff(prev, current)
	assert.Equal(t, []string{"c.go"}, delta.Added)
	assert.Equal(t, []string{"a.go"}, delta.Modified)
	assert.Equal(t, []string{"b.go"}, delta.Deleted)
}

func TestDiffNilPrevTreatsAllAsAdded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a")
	m := NewMatcher(dir, nil)
	current, err := Build(dir, m, 0)
	require.NoError(t, err)

	delta := Diff(nil, current)
	assert.Equal(t, []string{"a.go"}, delta.Added)
	assert.Empty(t, delta.Modified)
	assert.Empty(t, delta.Deleted)
}

func TestMaxFileSizeSkipsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.go", "ok")
	writeFile(t, dir, "big.go", string(make([]byte, 1024)))

	m := NewMatcher(dir, nil)
	tree, err := Build(dir, m, 100)
	require.NoError(t, err)

	assert.Len(t, tree.Files, 1)
	assert.Equal(t, "small.go", tree.Files[0].Path)
}
