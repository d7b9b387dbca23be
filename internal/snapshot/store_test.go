package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/satori/internal/fingerprint"
)

func testFP() fingerprint.Fingerprint {
	return fingerprint.Fingerprint{
		EmbeddingProvider:   fingerprint.ProviderOllama,
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimension:  768,
		VectorStoreProvider: fingerprint.VectorStoreMilvus,
		SchemaVersion:       fingerprint.CurrentSchemaVersion,
	}
}

func TestStoreSetAndGetIndexed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "snapshot.json"), testFP())
	require.NoError(t, err)

	codebase := filepath.Join(dir, "project")
	require.NoError(t, s.SetCodebaseIndexed(codebase, IndexStats{IndexedFiles: 10, TotalChunks: 42}, testFP(), fingerprint.SourceVerified))

	info, ok := s.GetCodebaseInfo(codebase)
	require.True(t, ok)
	assert.Equal(t, StatusIndexed, info.Status)
	assert.Equal(t, 10, info.IndexedFiles)
	assert.Equal(t, 42, info.TotalChunks)
}

func TestStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	codebase := filepath.Join(dir, "project")

	s1, err := NewStore(path, testFP())
	require.NoError(t, err)
	require.NoError(t, s1.SetCodebaseIndexed(codebase, IndexStats{IndexedFiles: 3, TotalChunks: 9}, testFP(), fingerprint.SourceVerified))

	s2, err := NewStore(path, testFP())
	require.NoError(t, err)
	info, ok := s2.GetCodebaseInfo(codebase)
	require.True(t, ok)
	assert.Equal(t, StatusIndexed, info.Status)
	assert.Equal(t, 3, info.IndexedFiles)
}

func TestEnsureFingerprintCompatibilityOnAccessMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "snapshot.json"), testFP())
	require.NoError(t, err)

	codebase := filepath.Join(dir, "project")
	staleFP := testFP()
	staleFP.EmbeddingModel = "text-embedding-3-small"
	require.NoError(t, s.SetCodebaseIndexed(codebase, IndexStats{IndexedFiles: 1, TotalChunks: 1}, staleFP, fingerprint.SourceVerified))

	result, err := s.EnsureFingerprintCompatibilityOnAccess(codebase)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, fingerprint.ReasonFingerprintMismatch, result.Reason)

	info, ok := s.GetCodebaseInfo(codebase)
	require.True(t, ok)
	assert.Equal(t, StatusRequiresReindex, info.Status)
}

func TestEnsureFingerprintCompatibilityOnAccessLegacyV2(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "snapshot.json"), testFP())
	require.NoError(t, err)

	codebase := filepath.Join(dir, "project")
	require.NoError(t, s.SetCodebaseIndexed(codebase, IndexStats{IndexedFiles: 1, TotalChunks: 1}, testFP(), fingerprint.SourceAssumedV2))

	result, err := s.EnsureFingerprintCompatibilityOnAccess(codebase)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, fingerprint.ReasonLegacyUnverifiedFP, result.Reason)
}

func TestRemoveCodebaseCompletely(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "snapshot.json"), testFP())
	require.NoError(t, err)

	codebase := filepath.Join(dir, "project")
	require.NoError(t, s.SetCodebaseIndexing(codebase, 50))
	require.NoError(t, s.RemoveCodebaseCompletely(codebase))

	_, ok := s.GetCodebaseInfo(codebase)
	assert.False(t, ok)
}
