// Package completion implements the completion-marker proof (SPEC_FULL.md
// component D): the authoritative check of whether a vector-store
// collection really finished indexing under the runtime's fingerprint, plus
// the interruption-recovery decision applied to any "indexing" entry found
// on startup.
package completion

import (
	"context"
	"time"

	"github.com/kraklabs/satori/internal/fingerprint"
	"github.com/kraklabs/satori/internal/pathutil"
	"github.com/kraklabs/satori/internal/vectorstore"
)

// Outcome is the result of validating a completion marker.
type Outcome string

const (
	OutcomeValid              Outcome = "valid"
	OutcomeFingerprintMismatch Outcome = "fingerprint_mismatch"
	OutcomeStaleLocal         Outcome = "stale_local"
	OutcomeProbeFailed        Outcome = "probe_failed"
)

// StaleReason further classifies an OutcomeStaleLocal result.
type StaleReason string

const (
	StaleReasonMissingMarkerDoc StaleReason = "missing_marker_doc"
	StaleReasonInvalidKind      StaleReason = "invalid_marker_kind"
	StaleReasonInvalidPayload   StaleReason = "invalid_payload"
	StaleReasonPathMismatch     StaleReason = "path_mismatch"
)

// ProofResult is the outcome of probing a collection's completion marker.
type ProofResult struct {
	Outcome     Outcome
	StaleReason StaleReason
	Marker      *vectorstore.CompletionMarker
}

// Verify probes store for collectionName's completion marker and validates
// it against expectedPath and runtimeFP, following spec.md §4.D's sequence.
// Probe (transport/backend) errors return OutcomeProbeFailed, which callers
// must treat as non-authoritative: never mutate local status on it.
func Verify(ctx context.Context, store vectorstore.Store, collectionName, expectedPath string, runtimeFP fingerprint.Fingerprint) ProofResult {
	marker, err := store.ReadCompletionMarker(ctx, collectionName)
	if err != nil {
		return ProofResult{Outcome: OutcomeProbeFailed}
	}
	if marker == nil {
		return ProofResult{Outcome: OutcomeStaleLocal, StaleReason: StaleReasonMissingMarkerDoc}
	}
	if marker.Kind != vectorstore.MarkerKind {
		return ProofResult{Outcome: OutcomeStaleLocal, StaleReason: StaleReasonInvalidKind, Marker: marker}
	}
	if marker.CodebasePath == "" || marker.IndexedFiles < 0 || marker.TotalChunks < 0 || marker.CompletedAt.IsZero() {
		return ProofResult{Outcome: OutcomeStaleLocal, StaleReason: StaleReasonInvalidPayload, Marker: marker}
	}

	wantPath := canonicalOrRaw(expectedPath)
	gotPath := canonicalOrRaw(marker.CodebasePath)
	if wantPath != gotPath {
		return ProofResult{Outcome: OutcomeStaleLocal, StaleReason: StaleReasonPathMismatch, Marker: marker}
	}

	if !marker.Fingerprint.Equal(runtimeFP) {
		return ProofResult{Outcome: OutcomeFingerprintMismatch, Marker: marker}
	}

	return ProofResult{Outcome: OutcomeValid, Marker: marker}
}

func canonicalOrRaw(p string) string {
	c, err := pathutil.Canonicalize(p)
	if err != nil {
		return p
	}
	return c
}

// RecoveryAction is the decision for an "indexing" entry found on startup.
type RecoveryAction string

const (
	RecoveryPromoteToIndexed       RecoveryAction = "promote_to_indexed"
	RecoveryMarkFailedMissing      RecoveryAction = "mark_failed_missing_marker"
	RecoveryMarkFailedMismatch     RecoveryAction = "mark_failed_fingerprint_mismatch"
	RecoveryKeepIndexingNoChange   RecoveryAction = "keep_indexing_no_change" // probe_failed: non-authoritative
)

// RecoveryDecision is what to do with an interrupted "indexing" entry, and
// the stats to apply if promoting.
type RecoveryDecision struct {
	Action       RecoveryAction
	IndexedFiles int
	TotalChunks  int
}

// DecideRecovery implements spec.md §4.D's interruption-recovery rule for
// an entry found in the "indexing" state on startup.
func DecideRecovery(proof ProofResult) RecoveryDecision {
	switch proof.Outcome {
	case OutcomeValid:
		return RecoveryDecision{
			Action:       RecoveryPromoteToIndexed,
			IndexedFiles: proof.Marker.IndexedFiles,
			TotalChunks:  proof.Marker.TotalChunks,
		}
	case OutcomeFingerprintMismatch:
		return RecoveryDecision{Action: RecoveryMarkFailedMismatch}
	case OutcomeStaleLocal:
		return RecoveryDecision{Action: RecoveryMarkFailedMissing}
	default: // OutcomeProbeFailed
		return RecoveryDecision{Action: RecoveryKeepIndexingNoChange}
	}
}

// NewMarker builds the completion marker written on a successful index run.
func NewMarker(codebasePath string, fp fingerprint.Fingerprint, indexedFiles, totalChunks int, runID string) vectorstore.CompletionMarker {
	return vectorstore.CompletionMarker{
		Kind:         vectorstore.MarkerKind,
		CodebasePath: canonicalOrRaw(codebasePath),
		Fingerprint:  fp,
		IndexedFiles: indexedFiles,
		TotalChunks:  totalChunks,
		CompletedAt:  time.Now().UTC(),
		RunID:        runID,
	}
}
