package toolserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/satori/internal/callgraph"
	"github.com/kraklabs/satori/internal/capability"
	"github.com/kraklabs/satori/internal/fingerprint"
	"github.com/kraklabs/satori/internal/index"
	"github.com/kraklabs/satori/internal/search"
	"github.com/kraklabs/satori/internal/snapshot"
	"github.com/kraklabs/satori/internal/syncmgr"
	"github.com/kraklabs/satori/internal/vectorstore"
)

type fakeStore struct{ limitOK bool }

func (f *fakeStore) EnsureCollection(ctx context.Context, name string, dim int) error { return nil }
func (f *fakeStore) DropCollection(ctx context.Context, name string) (bool, error)     { return false, nil }
func (f *fakeStore) CollectionExists(ctx context.Context, name string) (bool, error)   { return true, nil }
func (f *fakeStore) UpsertChunks(ctx context.Context, name string, chunks []vectorstore.Chunk) error {
	return nil
}
func (f *fakeStore) DeleteChunksByPath(ctx context.Context, name string, paths []string) error {
	return nil
}
func (f *fakeStore) Search(ctx context.Context, name string, q vectorstore.SearchQuery) ([]vectorstore.SearchHit, error) {
	return nil, nil
}
func (f *fakeStore) WriteCompletionMarker(ctx context.Context, name string, m vectorstore.CompletionMarker) error {
	return nil
}
func (f *fakeStore) ReadCompletionMarker(ctx context.Context, name string) (*vectorstore.CompletionMarker, error) {
	return nil, nil
}
func (f *fakeStore) CheckCollectionLimit(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeStore) ListManagedCollections(ctx context.Context) ([]vectorstore.CollectionInfo, error) {
	return nil, nil
}
func (f *fakeStore) Provider() fingerprint.VectorStoreProvider { return fingerprint.VectorStoreMilvus }
func (f *fakeStore) Close() error                              { return nil }

type fakeEmbedder struct{}

func (f *fakeEmbedder) GetEmbedding(text, purpose string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (f *fakeEmbedder) GetDocumentEmbedding(text string) ([]float32, error) { return f.GetEmbedding(text, "document") }
func (f *fakeEmbedder) GetQueryEmbedding(text string) ([]float32, error)    { return f.GetEmbedding(text, "query") }
func (f *fakeEmbedder) Name() string                                       { return "fake" }
func (f *fakeEmbedder) Model() string                                      { return "fake-model" }
func (f *fakeEmbedder) Dimensions() int                                    { return 3 }

func testFP() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		EmbeddingProvider:   fingerprint.ProviderOllama,
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimension:  3,
		VectorStoreProvider: fingerprint.VectorStoreMilvus,
		SchemaVersion:       fingerprint.CurrentSchemaVersion,
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *index.Manager, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n"), 0o644))

	snapPath := filepath.Join(t.TempDir(), "snapshot.json")
	snap, err := snapshot.NewStore(snapPath, testFP())
	require.NoError(t, err)

	store := &fakeStore{}
	idx := index.New(snap, store, &fakeEmbedder{})
	sm := syncmgr.New(idx, t.TempDir())
	idx.SetSyncManager(sm)

	caps := capability.Resolve(capability.Inputs{EmbeddingProvider: fingerprint.ProviderOllama})
	eng := search.New(store, &fakeEmbedder{}, sm, snap, testFP(), caps, nil)
	cg := callgraph.New(t.TempDir())
	idx.SetCallGraphRebuilder(cg.RebuildForCodebase)

	return New(idx, eng, cg, snap), idx, root
}

func TestToolsDeclaresAllSixTools(t *testing.T) {
	names := map[string]bool{}
	for _, tool := range Tools() {
		names[tool.Name] = true
	}
	for _, required := range []string{"manage_index", "search_codebase", "call_graph", "read_file", "list_codebases", "file_outline"} {
		assert.True(t, names[required], "missing tool %s", required)
	}
}

func TestCallRejectsMissingRequiredArgs(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	result := d.Call(context.Background(), "search_codebase", map[string]any{"path": "/repo"})
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Error: Invalid arguments for 'search_codebase'.")
	assert.Contains(t, result.Content[0].Text, "query")
}

func TestCallRejectsInvalidEnum(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	result := d.Call(context.Background(), "search_codebase", map[string]any{"path": "/repo", "query": "widget", "scope": "bogus"})
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "scope")
}

func TestManageIndexCreateThenStatusReportsFullyIndexed(t *testing.T) {
	d, idx, root := newTestDispatcher(t)
	ctx := context.Background()

	createResult := d.Call(ctx, "manage_index", map[string]any{"action": "create", "path": root})
	require.False(t, createResult.IsError)
	assert.Contains(t, createResult.Content[0].Text, `"status":"ok"`)

	// Create runs in a background goroutine in the real dispatcher; drive it
	// synchronously here so status is deterministic for the test.
	_, err := idx.Create(ctx, indexCreateOptionsFor(root))
	require.NoError(t, err)

	statusResult := d.Call(ctx, "manage_index", map[string]any{"action": "status", "path": root})
	require.False(t, statusResult.IsError)
	assert.Contains(t, statusResult.Content[0].Text, "fully indexed")
}

func TestReadFileRejectsPathEscape(t *testing.T) {
	d, _, root := newTestDispatcher(t)
	result := d.Call(context.Background(), "read_file", map[string]any{"path": root, "relativePath": "../../etc/passwd"})
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "escapes the codebase root")
}

func TestReadFileReturnsLineRange(t *testing.T) {
	d, _, root := newTestDispatcher(t)
	result := d.Call(context.Background(), "read_file", map[string]any{
		"path": root, "relativePath": "main.go", "startLine": float64(4), "endLine": float64(4),
	})
	require.False(t, result.IsError)
	assert.Equal(t, "\treturn a + b", result.Content[0].Text)
}

func TestListCodebasesReturnsKnownEntries(t *testing.T) {
	d, idx, root := newTestDispatcher(t)
	ctx := context.Background()
	_, err := idx.Create(ctx, indexCreateOptionsFor(root))
	require.NoError(t, err)

	result := d.Call(ctx, "list_codebases", map[string]any{})
	require.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, root)
}

func indexCreateOptionsFor(root string) index.CreateOptions {
	return index.CreateOptions{Path: root}
}
