package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kraklabs/satori/internal/errs"
	"github.com/kraklabs/satori/internal/fingerprint"
	"github.com/kraklabs/satori/internal/logging"
	"github.com/kraklabs/satori/internal/pathutil"
)

// defaultSnapshotPath returns ~/.context/mcp-codebase-snapshot.json.
func defaultSnapshotPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".context", "mcp-codebase-snapshot.json"), nil
}

// Store is the process-wide, lock-guarded owner of in-memory codebase state.
// Every public method is a critical section (SPEC_FULL.md §5): all
// transitions are non-suspending and serialized by mu.
type Store struct {
	mu       sync.Mutex
	path     string
	envelope Envelope
	runtime  fingerprint.Fingerprint
}

// NewStore creates a snapshot store backed by path (empty string uses the
// default ~/.context location) and associates it with the runtime
// fingerprint used for gate decisions.
func NewStore(path string, runtimeFP fingerprint.Fingerprint) (*Store, error) {
	if path == "" {
		var err error
		path, err = defaultSnapshotPath()
		if err != nil {
			return nil, errs.NewInternalError(
				"Cannot determine snapshot path",
				"Failed to resolve home directory",
				"Set HOME explicitly and retry",
				err,
			)
		}
	}
	s := &Store{
		path:    path,
		runtime: runtimeFP,
		envelope: Envelope{
			FormatVersion: FormatV3,
			Codebases:     map[string]CodebaseInfo{},
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the snapshot file, migrating v2 envelopes to v3 in memory
// (every entry becomes FingerprintSource=assumed_v2, status unchanged) and
// rewriting the file as v3 (I4: persistence is atomic).
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil // fresh install: empty envelope is fine
	}
	if err != nil {
		return errs.NewDatabaseError(
			"Cannot read snapshot file",
			fmt.Sprintf("Failed to read %s", s.path),
			"Check file permissions",
			err,
		)
	}

	var raw struct {
		FormatVersion string                  `json:"formatVersion"`
		Codebases     map[string]CodebaseInfo `json:"codebases"`
		LastUpdated   time.Time               `json:"lastUpdated"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.NewDatabaseError(
			"Cannot parse snapshot file",
			fmt.Sprintf("%s contains invalid JSON", s.path),
			"Remove or repair the file; Satori will recreate it on next index",
			err,
		)
	}

	migrated := raw.FormatVersion == formatV2
	if migrated {
		for p, info := range raw.Codebases {
			info.FingerprintSource = fingerprint.SourceAssumedV2
			raw.Codebases[p] = info
		}
	}

	s.envelope = Envelope{
		FormatVersion: FormatV3,
		Codebases:     raw.Codebases,
		LastUpdated:   raw.LastUpdated,
	}
	if s.envelope.Codebases == nil {
		s.envelope.Codebases = map[string]CodebaseInfo{}
	}

	if migrated {
		return s.saveLocked()
	}
	return nil
}

// saveCodebaseSnapshot persists the envelope atomically (temp-file + rename).
func (s *Store) saveCodebaseSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	s.envelope.LastUpdated = time.Now().UTC()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.NewDatabaseError(
			"Cannot create snapshot directory",
			fmt.Sprintf("Failed to create %s", dir),
			"Check directory permissions",
			err,
		)
	}

	data, err := json.MarshalIndent(s.envelope, "", "  ")
	if err != nil {
		return errs.NewInternalError(
			"Cannot encode snapshot",
			"JSON marshaling failed unexpectedly",
			"This is a bug; please report it",
			err,
		)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return errs.NewDatabaseError(
			"Cannot write snapshot file",
			"Failed to create temporary file",
			"Check directory permissions and available disk space",
			err,
		)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.NewDatabaseError("Cannot write snapshot file", "Write failed", "Check available disk space", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.NewDatabaseError("Cannot write snapshot file", "Close failed", "Check available disk space", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errs.NewDatabaseError("Cannot write snapshot file", "Rename failed", "Check filesystem permissions", err)
	}
	return nil
}

// canonical resolves p to its canonical identity, the key used everywhere.
func canonical(p string) string {
	c, err := pathutil.Canonicalize(p)
	if err != nil {
		return p
	}
	return c
}

// GetCodebaseInfo returns the entry for path, if any.
func (s *Store) GetCodebaseInfo(path string) (CodebaseInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.envelope.Codebases[canonical(path)]
	return info, ok
}

// GetAllCodebases returns a snapshot copy of every tracked entry.
func (s *Store) GetAllCodebases() map[string]CodebaseInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]CodebaseInfo, len(s.envelope.Codebases))
	for k, v := range s.envelope.Codebases {
		out[k] = v
	}
	return out
}

// GetIndexingCodebases returns entries currently in the indexing state.
func (s *Store) GetIndexingCodebases() map[string]CodebaseInfo {
	return s.filterByStatus(StatusIndexing)
}

// GetIndexedCodebases returns entries in a terminal-success state.
func (s *Store) GetIndexedCodebases() map[string]CodebaseInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]CodebaseInfo{}
	for k, v := range s.envelope.Codebases {
		if v.Status == StatusIndexed || v.Status == StatusSyncCompleted {
			out[k] = v
		}
	}
	return out
}

func (s *Store) filterByStatus(status Status) map[string]CodebaseInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]CodebaseInfo{}
	for k, v := range s.envelope.Codebases {
		if v.Status == status {
			out[k] = v
		}
	}
	return out
}

// GetCodebaseStatus returns just the status of path, if tracked.
func (s *Store) GetCodebaseStatus(path string) (Status, bool) {
	info, ok := s.GetCodebaseInfo(path)
	if !ok {
		return "", false
	}
	return info.Status, true
}

// SetCodebaseIndexing marks path as indexing at the given percentage (0-100).
func (s *Store) SetCodebaseIndexing(path string, pct int) error {
	s.mu.Lock()
	key := canonical(path)
	s.envelope.Codebases[key] = CodebaseInfo{
		Status:             StatusIndexing,
		IndexingPercentage: pct,
		LastUpdated:        time.Now().UTC(),
	}
	s.mu.Unlock()
	return s.saveCodebaseSnapshot()
}

// SetCodebaseIndexed marks path as indexed (terminal success) with stats,
// fingerprint, and fingerprint source.
func (s *Store) SetCodebaseIndexed(path string, stats IndexStats, fp fingerprint.Fingerprint, source fingerprint.Source) error {
	s.mu.Lock()
	key := canonical(path)
	s.envelope.Codebases[key] = CodebaseInfo{
		Status:            StatusIndexed,
		IndexedFiles:      stats.IndexedFiles,
		TotalChunks:       stats.TotalChunks,
		Fingerprint:       fp,
		FingerprintSource: source,
		LastUpdated:       time.Now().UTC(),
	}
	s.mu.Unlock()
	logStoreEvent("codebase.indexed", "path", path, "files", stats.IndexedFiles, "chunks", stats.TotalChunks)
	return s.saveCodebaseSnapshot()
}

// SetCodebaseSyncCompleted marks path sync_completed with updated stats.
func (s *Store) SetCodebaseSyncCompleted(path string, stats IndexStats) error {
	s.mu.Lock()
	key := canonical(path)
	existing := s.envelope.Codebases[key]
	existing.Status = StatusSyncCompleted
	existing.IndexedFiles = stats.IndexedFiles
	existing.TotalChunks = stats.TotalChunks
	existing.LastUpdated = time.Now().UTC()
	s.envelope.Codebases[key] = existing
	s.mu.Unlock()
	return s.saveCodebaseSnapshot()
}

// SetCodebaseRequiresReindex marks path as requiring reindex with a reason.
func (s *Store) SetCodebaseRequiresReindex(path string, reason string) error {
	s.mu.Lock()
	key := canonical(path)
	existing := s.envelope.Codebases[key]
	existing.Status = StatusRequiresReindex
	existing.ReindexReason = reason
	existing.LastUpdated = time.Now().UTC()
	s.envelope.Codebases[key] = existing
	s.mu.Unlock()
	logStoreEvent("codebase.requires_reindex", "path", path, "reason", reason)
	return s.saveCodebaseSnapshot()
}

// SetCodebaseFailed marks path as failed with an error message.
func (s *Store) SetCodebaseFailed(path string, errorMessage string) error {
	s.mu.Lock()
	key := canonical(path)
	s.envelope.Codebases[key] = CodebaseInfo{
		Status:       StatusIndexFailed,
		ErrorMessage: errorMessage,
		LastUpdated:  time.Now().UTC(),
	}
	s.mu.Unlock()
	logStoreEvent("codebase.failed", "path", path, "error", errorMessage)
	return s.saveCodebaseSnapshot()
}

// RemoveCodebaseCompletely deletes path's entry entirely (used by clear).
func (s *Store) RemoveCodebaseCompletely(path string) error {
	s.mu.Lock()
	delete(s.envelope.Codebases, canonical(path))
	s.mu.Unlock()
	logStoreEvent("codebase.removed", "path", path)
	return s.saveCodebaseSnapshot()
}

// EnsureFingerprintCompatibilityOnAccess implements the fingerprint gate
// (component C): on first access to an entry, decide whether it's
// compatible with the runtime fingerprint, mutating status to
// requires_reindex on any negative outcome.
func (s *Store) EnsureFingerprintCompatibilityOnAccess(path string) (fingerprint.GateResult, error) {
	s.mu.Lock()
	key := canonical(path)
	info, ok := s.envelope.Codebases[key]
	if !ok {
		s.mu.Unlock()
		return fingerprint.GateResult{Allowed: false, Reason: fingerprint.ReasonFingerprintMismatch}, nil
	}

	result := fingerprint.Decide(info.Fingerprint, info.FingerprintSource, s.runtime)
	if !result.Allowed {
		info.Status = StatusRequiresReindex
		info.ReindexReason = string(result.Reason)
		info.LastUpdated = time.Now().UTC()
		s.envelope.Codebases[key] = info
		s.mu.Unlock()
		if err := s.saveCodebaseSnapshot(); err != nil {
			return result, err
		}
		return result, nil
	}
	s.mu.Unlock()
	return result, nil
}

// RuntimeFingerprint returns the fingerprint this store gates against.
func (s *Store) RuntimeFingerprint() fingerprint.Fingerprint {
	return s.runtime
}

// Path returns the filesystem path this store persists to.
func (s *Store) Path() string { return s.path }

// logStoreEvent logs a structured line around a terminal status mutation,
// in the teacher's dotted event-name style (hash_delta.go).
func logStoreEvent(event string, kv ...any) {
	logging.With("snapshot").Info(event, kv...)
}
