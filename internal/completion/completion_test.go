package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/satori/internal/fingerprint"
	"github.com/kraklabs/satori/internal/vectorstore"
)

type fakeStore struct {
	marker  *vectorstore.CompletionMarker
	readErr error
}

func (f *fakeStore) EnsureCollection(ctx context.Context, name string, dim int) error { return nil }
func (f *fakeStore) DropCollection(ctx context.Context, name string) (bool, error)    { return false, nil }
func (f *fakeStore) CollectionExists(ctx context.Context, name string) (bool, error)  { return true, nil }
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
	f.marker = &m
	return nil
}
func (f *fakeStore) ReadCompletionMarker(ctx context.Context, name string) (*vectorstore.CompletionMarker, error) {
	return f.marker, f.readErr
}
func (f *fakeStore) CheckCollectionLimit(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeStore) ListManagedCollections(ctx context.Context) ([]vectorstore.CollectionInfo, error) {
	return nil, nil
}
func (f *fakeStore) Provider() fingerprint.VectorStoreProvider { return fingerprint.VectorStoreMilvus }
func (f *fakeStore) Close() error                              { return nil }

func testFP() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		EmbeddingProvider:   fingerprint.ProviderOllama,
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimension:  768,
		VectorStoreProvider: fingerprint.VectorStoreMilvus,
		SchemaVersion:       fingerprint.CurrentSchemaVersion,
	}
}

func TestVerifyMissingMarker(t *testing.T) {
	store := &fakeStore{}
	result := Verify(context.Background(), store, "coll", "/repo", testFP())
	assert.Equal(t, OutcomeStaleLocal, result.Outcome)
	assert.Equal(t, StaleReasonMissingMarkerDoc, result.StaleReason)
}

func TestVerifyProbeFailedIsNonAuthoritative(t *testing.T) {
	store := &fakeStore{readErr: errors.New("connection reset")}
	result := Verify(context.Background(), store, "coll", "/repo", testFP())
	assert.Equal(t, OutcomeProbeFailed, result.Outcome)

	decision := DecideRecovery(result)
	assert.Equal(t, RecoveryKeepIndexingNoChange, decision.Action)
}

func TestVerifyValid(t *testing.T) {
	store := &fakeStore{marker: &vectorstore.CompletionMarker{
		Kind:         vectorstore.MarkerKind,
		CodebasePath: "/repo",
		Fingerprint:  testFP(),
		IndexedFiles: 5,
		TotalChunks:  20,
		CompletedAt:  time.Now(),
		RunID:        "run-1",
	}}
	result := Verify(context.Background(), store, "coll", "/repo", testFP())
	require.Equal(t, OutcomeValid, result.Outcome)

	decision := DecideRecovery(result)
	assert.Equal(t, RecoveryPromoteToIndexed, decision.Action)
	assert.Equal(t, 5, decision.IndexedFiles)
	assert.Equal(t, 20, decision.TotalChunks)
}

func TestVerifyFingerprintMismatch(t *testing.T) {
	staleFP := testFP()
	staleFP.EmbeddingDimension = 1536
	store := &fakeStore{marker: &vectorstore.CompletionMarker{
		Kind:         vectorstore.MarkerKind,
		CodebasePath: "/repo",
		Fingerprint:  staleFP,
		CompletedAt:  time.Now(),
	}}
	result := Verify(context.Background(), store, "coll", "/repo", testFP())
	assert.Equal(t, OutcomeFingerprintMismatch, result.Outcome)
	assert.Equal(t, RecoveryMarkFailedMismatch, DecideRecovery(result).Action)
}

func TestVerifyInvalidKind(t *testing.T) {
	store := &fakeStore{marker: &vectorstore.CompletionMarker{Kind: "something_else", CompletedAt: time.Now()}}
	result := Verify(context.Background(), store, "coll", "/repo", testFP())
	assert.Equal(t, OutcomeStaleLocal, result.Outcome)
	assert.Equal(t, StaleReasonInvalidKind, result.StaleReason)
}
