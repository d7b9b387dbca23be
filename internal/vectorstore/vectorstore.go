// Package vectorstore defines the storage abstraction every backend
// (sqlite-vec locally, Milvus/Zilliz remotely) implements: chunk upsert,
// hybrid retrieval, collection lifecycle, and the completion-marker
// document that proves an index run finished under a given fingerprint.
package vectorstore

import (
	"context"
	"time"

	"github.com/kraklabs/satori/internal/fingerprint"
)

// MarkerKind identifies a completion-marker document among ordinary chunks.
const MarkerKind = "satori_index_completion_v1"

// Chunk is one unit of embedded, searchable code.
type Chunk struct {
	ID         string
	Path       string
	StartLine  int
	EndLine    int
	Text       string
	Vector     []float32
	SparseTerms map[string]float32
	Scope      string // e.g. "function", "class", "module"
	Language   string
}

// CompletionMarker is the reserved document proving an index run finished.
type CompletionMarker struct {
	Kind         string                  `json:"kind"`
	CodebasePath string                  `json:"codebasePath"`
	Fingerprint  fingerprint.Fingerprint `json:"fingerprint"`
	IndexedFiles int                     `json:"indexedFiles"`
	TotalChunks  int                     `json:"totalChunks"`
	CompletedAt  time.Time               `json:"completedAt"`
	RunID        string                  `json:"runId"`
}

// SearchQuery parameterizes a hybrid retrieval call.
type SearchQuery struct {
	CollectionName string
	DenseVector    []float32
	SparseTerms    map[string]float32
	TopK           int
	ScopeWeights   map[string]float64
	PathBoosts     map[string]float64
}

// SearchHit is a single scored result.
type SearchHit struct {
	Chunk Chunk
	Score float64
}

// CollectionInfo describes a Satori-managed collection for eviction guidance.
type CollectionInfo struct {
	Name         string
	CodebasePath string
	CreatedAt    time.Time
}

// Store is implemented by every vector-store backend.
type Store interface {
	// EnsureCollection creates collectionName if absent, sized for dimension.
	EnsureCollection(ctx context.Context, collectionName string, dimension int) error

	// DropCollection removes collectionName if it exists; returns whether it existed.
	DropCollection(ctx context.Context, collectionName string) (bool, error)

	// CollectionExists reports whether collectionName is present.
	CollectionExists(ctx context.Context, collectionName string) (bool, error)

	// UpsertChunks writes or overwrites chunks in collectionName.
	UpsertChunks(ctx context.Context, collectionName string, chunks []Chunk) error

	// DeleteChunksByPath removes every chunk under the given source paths.
	DeleteChunksByPath(ctx context.Context, collectionName string, paths []string) error

	// Search runs a dense-vector query against collectionName. Neither
	// backend in this package reads q.SparseTerms.
	Search(ctx context.Context, collectionName string, q SearchQuery) ([]SearchHit, error)

	// WriteCompletionMarker upserts the reserved completion-marker document.
	WriteCompletionMarker(ctx context.Context, collectionName string, marker CompletionMarker) error

	// ReadCompletionMarker fetches the completion-marker document, if any.
	ReadCompletionMarker(ctx context.Context, collectionName string) (*CompletionMarker, error)

	// CheckCollectionLimit reports whether a new collection may be created.
	// Always true for backends with no hard cap (e.g. local sqlite-vec).
	CheckCollectionLimit(ctx context.Context) (bool, error)

	// ListManagedCollections enumerates Satori-managed collections, used to
	// build eviction guidance when CheckCollectionLimit returns false.
	ListManagedCollections(ctx context.Context) ([]CollectionInfo, error)

	// Provider identifies the backend for fingerprinting (Milvus or Zilliz).
	Provider() fingerprint.VectorStoreProvider

	// Close releases backend resources.
	Close() error
}

// COLLECTION_LIMIT_MESSAGE is the generic guidance returned for backends
// without per-collection metadata for eviction planning (non-Zilliz).
const COLLECTION_LIMIT_MESSAGE = "Vector store collection limit reached. Remove unused collections with `manage_index clear` before indexing a new codebase."
