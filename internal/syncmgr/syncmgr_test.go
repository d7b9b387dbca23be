package syncmgr

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	lastSynced     map[string]time.Time
	deletedPaths   []string
	reembedPaths   []string
	callGraphBuild int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{lastSynced: map[string]time.Time{}}
}

func (f *fakeBackend) DeleteChunksByPath(ctx context.Context, codebasePath string, paths []string) error {
	f.deletedPaths = append(f.deletedPaths, paths...)
	return nil
}

func (f *fakeBackend) ReembedAndUpsert(ctx context.Context, codebasePath string, paths []string) error {
	f.reembedPaths = append(f.reembedPaths, paths...)
	return nil
}

func (f *fakeBackend) RebuildCallGraph(ctx context.Context, codebasePath string) error {
	f.callGraphBuild++
	return nil
}

func (f *fakeBackend) LastSyncedAt(codebasePath string) (time.Time, bool) {
	t, ok := f.lastSynced[codebasePath]
	return t, ok
}

func TestEnsureFreshnessUnknownCodebaseIsSynced(t *testing.T) {
	m := New(newFakeBackend(), t.TempDir())
	fixedNow := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	result := m.EnsureFreshness("/some/path", func() time.Time { return fixedNow })
	assert.Equal(t, ModeSynced, result.Mode)
}

func TestEnsureFreshnessRecentlyIndexedIsFresh(t *testing.T) {
	backend := newFakeBackend()
	fixedNow := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	backend.lastSynced["/some/path"] = fixedNow.Add(-5 * time.Minute)

	m := New(backend, t.TempDir())
	result := m.EnsureFreshness("/some/path", func() time.Time { return fixedNow })
	assert.Equal(t, ModeFresh, result.Mode)
}

func TestEnsureFreshnessOldIndexIsAging(t *testing.T) {
	backend := newFakeBackend()
	fixedNow := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	backend.lastSynced["/some/path"] = fixedNow.Add(-48 * time.Hour)

	m := New(backend, t.TempDir())
	result := m.EnsureFreshness("/some/path", func() time.Time { return fixedNow })
	assert.Equal(t, ModeAging, result.Mode)
}

func TestEnsureFreshnessDebouncesRepeatedChecks(t *testing.T) {
	backend := newFakeBackend()
	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	backend.lastSynced["/some/path"] = base.Add(-5 * time.Minute)

	m := New(backend, t.TempDir())
	first := m.EnsureFreshness("/some/path", func() time.Time { return base })
	assert.Equal(t, ModeFresh, first.Mode)

	second := m.EnsureFreshness("/some/path", func() time.Time { return base.Add(30 * time.Second) })
	assert.Equal(t, ModeSkippedRecent, second.Mode)
}

func TestReindexByChangeDetectsAddedAndModifiedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))

	backend := newFakeBackend()
	m := New(backend, t.TempDir())

	first, err := m.ReindexByChange(context.Background(), root, nil, 0)
	require.NoError(t, err)
	assert.Contains(t, first.Added, "a.go")

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"), []byte("x = 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n\nvar X = 1"), 0o644))

	second, err := m.ReindexByChange(context.Background(), root, nil, 0)
	require.NoError(t, err)
	assert.Contains(t, second.Added, "b.py")
	assert.Contains(t, second.Modified, "a.go")
	assert.Equal(t, 1, backend.callGraphBuild, "changing a .py file should trigger a call-graph rebuild")
	assert.Contains(t, backend.reembedPaths, "a.go")
	assert.Contains(t, backend.reembedPaths, "b.py")
}

func TestReindexByChangeDetectsDeletedFiles(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "gone.go")
	require.NoError(t, os.WriteFile(target, []byte("package a"), 0o644))

	backend := newFakeBackend()
	m := New(backend, t.TempDir())

	_, err := m.ReindexByChange(context.Background(), root, nil, 0)
	require.NoError(t, err)

	require.NoError(t, os.Remove(target))

	second, err := m.ReindexByChange(context.Background(), root, nil, 0)
	require.NoError(t, err)
	assert.Contains(t, second.Removed, "gone.go")
	assert.Contains(t, backend.deletedPaths, "gone.go")
}

func TestReindexByChangeNoOpWhenUnchanged(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))

	backend := newFakeBackend()
	m := New(backend, t.TempDir())

	_, err := m.ReindexByChange(context.Background(), root, nil, 0)
	require.NoError(t, err)
	backend.reembedPaths = nil // the first run re-embeds a.go as newly added

	second, err := m.ReindexByChange(context.Background(), root, nil, 0)
	require.NoError(t, err)
	assert.True(t, len(second.ChangedFiles) == 0)
	assert.Empty(t, backend.reembedPaths)
}

func TestRecentChangedFilesReflectsLastReindex(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))

	backend := newFakeBackend()
	m := New(backend, t.TempDir())

	_, err := m.ReindexByChange(context.Background(), root, nil, 0)
	require.NoError(t, err)

	files, ok := m.RecentChangedFiles(root, 5*time.Second)
	require.True(t, ok)
	assert.Contains(t, files, "a.go")

	_, expired := m.RecentChangedFiles(root, 0)
	assert.False(t, expired)
}

func TestChangeTouchesSupportedSource(t *testing.T) {
	assert.True(t, changeTouchesSupportedSource([]string{"src/main.py"}))
	assert.True(t, changeTouchesSupportedSource([]string{"ui/App.tsx"}))
	assert.False(t, changeTouchesSupportedSource([]string{"README.md"}))
}
