package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/satori/internal/fingerprint"
	"github.com/kraklabs/satori/internal/snapshot"
	"github.com/kraklabs/satori/internal/syncmgr"
	"github.com/kraklabs/satori/internal/vectorstore"
)

type fakeStore struct {
	collections map[string]int
	chunks      map[string][]vectorstore.Chunk
	markers     map[string]*vectorstore.CompletionMarker
	limitOK     bool
	provider    fingerprint.VectorStoreProvider
	managed     []vectorstore.CollectionInfo
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: map[string]int{},
		chunks:      map[string][]vectorstore.Chunk{},
		markers:     map[string]*vectorstore.CompletionMarker{},
		limitOK:     true,
		provider:    fingerprint.VectorStoreMilvus,
	}
}

func (f *fakeStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	f.collections[name] = dim
	return nil
}

func (f *fakeStore) DropCollection(ctx context.Context, name string) (bool, error) {
	_, existed := f.collections[name]
	delete(f.collections, name)
	delete(f.chunks, name)
	delete(f.markers, name)
	return existed, nil
}

func (f *fakeStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeStore) UpsertChunks(ctx context.Context, name string, chunks []vectorstore.Chunk) error {
	f.chunks[name] = append(f.chunks[name], chunks...)
	return nil
}

func (f *fakeStore) DeleteChunksByPath(ctx context.Context, name string, paths []string) error {
	set := map[string]bool{}
	for _, p := range paths {
		set[p] = true
	}
	var kept []vectorstore.Chunk
	for _, c := range f.chunks[name] {
		if !set[c.Path] {
			kept = append(kept, c)
		}
	}
	f.chunks[name] = kept
	return nil
}

func (f *fakeStore) Search(ctx context.Context, name string, q vectorstore.SearchQuery) ([]vectorstore.SearchHit, error) {
	return nil, nil
}

func (f *fakeStore) WriteCompletionMarker(ctx context.Context, name string, m vectorstore.CompletionMarker) error {
	f.markers[name] = &m
	return nil
}

func (f *fakeStore) ReadCompletionMarker(ctx context.Context, name string) (*vectorstore.CompletionMarker, error) {
	return f.markers[name], nil
}

func (f *fakeStore) CheckCollectionLimit(ctx context.Context) (bool, error) { return f.limitOK, nil }

func (f *fakeStore) ListManagedCollections(ctx context.Context) ([]vectorstore.CollectionInfo, error) {
	return f.managed, nil
}

func (f *fakeStore) Provider() fingerprint.VectorStoreProvider { return f.provider }
func (f *fakeStore) Close() error                              { return nil }

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) GetEmbedding(text, purpose string) ([]float32, error) {
	return f.GetDocumentEmbedding(text)
}
func (f *fakeEmbedder) GetDocumentEmbedding(text string) ([]float32, error) {
	v := make([]float32, f.dims)
	v[0] = 1
	return v, nil
}
func (f *fakeEmbedder) GetQueryEmbedding(text string) ([]float32, error) { return f.GetDocumentEmbedding(text) }
func (f *fakeEmbedder) Name() string                                     { return "fake" }
func (f *fakeEmbedder) Model() string                                    { return "fake-model" }
func (f *fakeEmbedder) Dimensions() int                                  { return f.dims }

func testFP() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		EmbeddingProvider:   fingerprint.ProviderOllama,
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimension:  8,
		VectorStoreProvider: fingerprint.VectorStoreMilvus,
		SchemaVersion:       fingerprint.CurrentSchemaVersion,
	}
}

func newManager(t *testing.T, store *fakeStore) *Manager {
	t.Helper()
	snapPath := filepath.Join(t.TempDir(), "snapshot.json")
	snap, err := snapshot.NewStore(snapPath, testFP())
	require.NoError(t, err)

	mgr := New(snap, store, &fakeEmbedder{dims: 8})
	sm := syncmgr.New(mgr, t.TempDir())
	mgr.SetSyncManager(sm)
	return mgr
}

func writeRepoFixture(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(`package main

func Add(a, b int) int {
	return a + b
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# hello"), 0o644))
}

func TestCreateIndexesSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeRepoFixture(t, root)

	store := newFakeStore()
	mgr := newManager(t, store)

	result, err := mgr.Create(context.Background(), CreateOptions{Path: root})
	require.NoError(t, err)
	assert.Equal(t, 1, result.IndexedFiles) // only main.go is indexable by default
	assert.Greater(t, result.TotalChunks, 0)
	assert.Equal(t, CollectionName(root), result.CollectionName)

	info, ok := mgr.snapshot.GetCodebaseInfo(root)
	require.True(t, ok)
	assert.Equal(t, snapshot.StatusIndexed, info.Status)

	marker := store.markers[CollectionName(root)]
	require.NotNil(t, marker)
	assert.Equal(t, vectorstore.MarkerKind, marker.Kind)
}

func TestCreateRejectsMissingPath(t *testing.T) {
	store := newFakeStore()
	mgr := newManager(t, store)

	_, err := mgr.Create(context.Background(), CreateOptions{Path: filepath.Join(t.TempDir(), "does-not-exist")})
	assert.Error(t, err)
}

func TestCreateForceDropsExistingCollections(t *testing.T) {
	root := t.TempDir()
	writeRepoFixture(t, root)

	store := newFakeStore()
	mgr := newManager(t, store)

	_, err := mgr.Create(context.Background(), CreateOptions{Path: root})
	require.NoError(t, err)

	result, err := mgr.Create(context.Background(), CreateOptions{Path: root, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DroppedCollections)
}

func TestCreateBlockedByZillizCollectionLimitBuildsGuidance(t *testing.T) {
	root := t.TempDir()
	writeRepoFixture(t, root)

	store := newFakeStore()
	store.limitOK = false
	store.provider = fingerprint.VectorStoreZilliz
	store.managed = []vectorstore.CollectionInfo{
		{Name: "hybrid_code_chunks_aaa", CodebasePath: "/old/repo", CreatedAt: time.Now().Add(-48 * time.Hour)},
		{Name: "hybrid_code_chunks_bbb", CodebasePath: "/new/repo", CreatedAt: time.Now()},
	}
	mgr := newManager(t, store)

	result, err := mgr.Create(context.Background(), CreateOptions{Path: root})
	require.Error(t, err)
	require.NotNil(t, result.EvictionGuidance)
	assert.Equal(t, "[oldest]", result.EvictionGuidance.Entries[0].Marker)
	assert.Equal(t, "[newest]", result.EvictionGuidance.Entries[1].Marker)
}

func TestStatusReflectsCompletionMarkerFingerprintMismatch(t *testing.T) {
	root := t.TempDir()
	writeRepoFixture(t, root)

	store := newFakeStore()
	mgr := newManager(t, store)

	_, err := mgr.Create(context.Background(), CreateOptions{Path: root})
	require.NoError(t, err)

	staleFP := testFP()
	staleFP.EmbeddingDimension = 1536
	marker := store.markers[CollectionName(root)]
	marker.Fingerprint = staleFP

	info, found, err := mgr.Status(context.Background(), root)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snapshot.StatusRequiresReindex, info.Status)
}

func TestClearRemovesCollectionAndSnapshotEntry(t *testing.T) {
	root := t.TempDir()
	writeRepoFixture(t, root)

	store := newFakeStore()
	mgr := newManager(t, store)

	_, err := mgr.Create(context.Background(), CreateOptions{Path: root})
	require.NoError(t, err)

	require.NoError(t, mgr.Clear(context.Background(), root))

	_, ok := mgr.snapshot.GetCodebaseInfo(root)
	assert.False(t, ok)
	_, existed := store.collections[CollectionName(root)]
	assert.False(t, existed)
}
