// Package snapshot implements the persistent per-codebase state machine
// (SPEC_FULL.md component B): atomic load/save of the snapshot envelope,
// v2->v3 migration, and the fingerprint-gated access path (component C).
package snapshot

import (
	"time"

	"github.com/kraklabs/satori/internal/fingerprint"
)

// Status is the lifecycle state of a single codebase entry.
type Status string

const (
	StatusIndexing       Status = "indexing"
	StatusIndexed        Status = "indexed"
	StatusSyncCompleted  Status = "sync_completed"
	StatusRequiresReindex Status = "requires_reindex"
	StatusIndexFailed    Status = "indexfailed"
)

// CodebaseInfo is a single entry in the snapshot, keyed by canonical path.
type CodebaseInfo struct {
	Status              Status                `json:"status"`
	IndexedFiles        int                   `json:"indexedFiles,omitempty"`
	TotalChunks         int                   `json:"totalChunks,omitempty"`
	IndexingPercentage  int                   `json:"indexingPercentage,omitempty"`
	ReindexReason       string                `json:"reindexReason,omitempty"`
	ErrorMessage        string                `json:"errorMessage,omitempty"`
	Fingerprint         fingerprint.Fingerprint `json:"fingerprint"`
	FingerprintSource   fingerprint.Source    `json:"fingerprintSource"`
	LastUpdated         time.Time             `json:"lastUpdated"`
}

// Envelope is the persisted snapshot file's top-level shape.
type Envelope struct {
	FormatVersion string                  `json:"formatVersion"`
	Codebases     map[string]CodebaseInfo `json:"codebases"`
	LastUpdated   time.Time               `json:"lastUpdated"`
}

// FormatV3 is the current envelope format version.
const FormatV3 = "v3"

// formatV2 identifies a legacy envelope requiring migration.
const formatV2 = "v2"

// IndexStats carries terminal-success statistics for setCodebaseIndexed.
type IndexStats struct {
	IndexedFiles int
	TotalChunks  int
}
