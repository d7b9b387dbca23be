package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/satori/internal/capability"
	"github.com/kraklabs/satori/internal/fingerprint"
	"github.com/kraklabs/satori/internal/snapshot"
	"github.com/kraklabs/satori/internal/syncmgr"
	"github.com/kraklabs/satori/internal/vectorstore"
)

type fakeStore struct {
	hits []vectorstore.SearchHit
}

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
	return f.hits, nil
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

func chunkHit(path string, startLine int, text string, score float64) vectorstore.SearchHit {
	return vectorstore.SearchHit{
		Chunk: vectorstore.Chunk{
			ID:        path + ":" + text,
			Path:      path,
			StartLine: startLine,
			EndLine:   startLine + 5,
			Text:      text,
			Scope:     "function",
			Language:  "go",
		},
		Score: score,
	}
}

func newTestEngine(t *testing.T, store *fakeStore) (*Engine, *snapshot.Store) {
	t.Helper()
	snapPath := filepath.Join(t.TempDir(), "snapshot.json")
	snap, err := snapshot.NewStore(snapPath, testFP())
	require.NoError(t, err)

	caps := capability.Resolve(capability.Inputs{EmbeddingProvider: fingerprint.ProviderOllama})
	sm := syncmgr.New(fakeSyncBackend{}, t.TempDir())

	engine := New(store, &fakeEmbedder{}, sm, snap, testFP(), caps, nil)
	return engine, snap
}

type fakeSyncBackend struct{}

func (fakeSyncBackend) DeleteChunksByPath(ctx context.Context, path string, paths []string) error {
	return nil
}
func (fakeSyncBackend) ReembedAndUpsert(ctx context.Context, path string, paths []string) error {
	return nil
}
func (fakeSyncBackend) RebuildCallGraph(ctx context.Context, path string) error { return nil }
func (fakeSyncBackend) LastSyncedAt(path string) (time.Time, bool)             { return time.Time{}, false }

func TestSearchReturnsOrderedResults(t *testing.T) {
	store := &fakeStore{hits: []vectorstore.SearchHit{
		chunkHit("internal/core/widget.go", 10, "func Widget() {}", 0.9),
		chunkHit("widget_test.go", 1, "func TestWidget(t *testing.T) {}", 0.95),
	}}
	engine, _ := newTestEngine(t, store)

	result := engine.Search(context.Background(), Query{Path: "/repo", QueryText: "widget", Scope: ScopeRuntime})
	require.Equal(t, "ok", result.Status)
	require.NotEmpty(t, result.Results)
	// runtime scope suppresses test files, so the core file should rank first
	// even though the test file had a higher raw store score.
	assert.Equal(t, "internal/core/widget.go", result.Results[0].RelativePath)
}

func TestSearchDocsScopeSuppressesRuntimeFiles(t *testing.T) {
	store := &fakeStore{hits: []vectorstore.SearchHit{
		chunkHit("internal/core/widget.go", 10, "func Widget() {}", 0.9),
		chunkHit("docs/widget.md", 1, "# Widget docs", 0.5),
	}}
	engine, _ := newTestEngine(t, store)

	result := engine.Search(context.Background(), Query{Path: "/repo", QueryText: "widget", Scope: ScopeDocs})
	require.Equal(t, "ok", result.Status)
	require.NotEmpty(t, result.Results)
	assert.Equal(t, "docs/widget.md", result.Results[0].RelativePath)
}

func TestSearchRequiresReindexOnFingerprintMismatch(t *testing.T) {
	store := &fakeStore{}
	engine, snap := newTestEngine(t, store)

	staleFP := testFP()
	staleFP.EmbeddingDimension = 1536
	require.NoError(t, snap.SetCodebaseIndexed("/repo", snapshot.IndexStats{IndexedFiles: 1, TotalChunks: 1}, staleFP, fingerprint.SourceVerified))

	result := engine.Search(context.Background(), Query{Path: "/repo", QueryText: "widget"})
	assert.Equal(t, "requires_reindex", result.Status)
	assert.Equal(t, "fingerprint_mismatch", result.Reason)
}

func TestExtractMustClauses(t *testing.T) {
	assert.Equal(t, []string{"widget"}, extractMustClauses("find +widget please"))
	assert.Nil(t, extractMustClauses("no operators here"))
}

func TestClassifyPathCategory(t *testing.T) {
	assert.Equal(t, categoryEntrypoint, classifyPathCategory("cmd/satori/main.go"))
	assert.Equal(t, categoryTests, classifyPathCategory("internal/search/search_test.go"))
	assert.Equal(t, categoryDocs, classifyPathCategory("docs/guide.md"))
	assert.Equal(t, categoryCore, classifyPathCategory("internal/search/search.go"))
	assert.Equal(t, categorySrcRuntime, classifyPathCategory("scripts/build.py"))
	assert.Equal(t, categoryNeutral, classifyPathCategory("assets/logo.svg"))
}

func TestApplyDiversityCapsPerFile(t *testing.T) {
	hits := []scoredHit{
		{hit: chunkHit("a.go", 1, "one", 1.0), score: 1.0},
		{hit: chunkHit("a.go", 10, "two", 0.9), score: 0.9},
		{hit: chunkHit("a.go", 20, "three", 0.8), score: 0.8},
	}
	capped := applyDiversity(hits, 10)
	assert.LessOrEqual(t, len(capped), 3)
}
