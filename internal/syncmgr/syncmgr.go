// Package syncmgr tracks codebase freshness and drives incremental
// re-indexing: a pure ensureFreshness check, a Merkle-diff-driven
// reindexByChange, a periodic background sweep, and an fsnotify-based
// watcher with debounce (SPEC_FULL.md component E).
package syncmgr

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kraklabs/satori/internal/errs"
	"github.com/kraklabs/satori/internal/logging"
	"github.com/kraklabs/satori/internal/merkle"
	"github.com/kraklabs/satori/internal/pathutil"
)

// Freshness thresholds (SPEC_FULL.md §4.E).
const (
	ThresholdFreshMs  = 30 * 60 * 1000
	ThresholdAgingMs  = 24 * 60 * 60 * 1000
	CheckDebounceMs   = 3 * 60 * 1000
)

// Mode is the outcome of a freshness check.
type Mode string

const (
	ModeFresh         Mode = "fresh"
	ModeAging         Mode = "aging"
	ModeSkippedRecent Mode = "skipped_recent"
	ModeSynced        Mode = "synced"
)

// FreshnessResult is the outcome of ensureFreshness.
type FreshnessResult struct {
	Mode        Mode
	CheckedAt   time.Time
	ThresholdMs int64
}

// ChangeResult is the outcome of reindexByChange.
type ChangeResult struct {
	Added        []string
	Removed      []string
	Modified     []string
	ChangedFiles []string
}

// supportedSourceExtensions are the extensions whose changes trigger a
// call-graph sidecar rebuild (SPEC_FULL.md §4.E's supported-source delta policy).
var supportedSourceExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".py": true,
}

// Backend is implemented by the index orchestrator: the embedding/vector
// store operations syncmgr needs without importing that package directly.
type Backend interface {
	DeleteChunksByPath(ctx context.Context, codebasePath string, paths []string) error
	ReembedAndUpsert(ctx context.Context, codebasePath string, paths []string) error
	RebuildCallGraph(ctx context.Context, codebasePath string) error
	LastSyncedAt(codebasePath string) (time.Time, bool)
}

// Manager coordinates freshness checks, incremental reindex, and watching.
type Manager struct {
	backend   Backend
	merkleDir string

	mu           sync.Mutex
	inFlight     map[string]bool
	watchers     map[string]*watcherHandle
	lastChecks   map[string]time.Time
	lastChanges  map[string]changeRecord
}

type changeRecord struct {
	files []string
	at    time.Time
}

type watcherHandle struct {
	stop chan struct{}
}

// New constructs a Manager persisting Merkle snapshots under merkleDir
// (e.g. ~/.context/merkle).
func New(backend Backend, merkleDir string) *Manager {
	return &Manager{
		backend:     backend,
		merkleDir:   merkleDir,
		inFlight:    map[string]bool{},
		watchers:    map[string]*watcherHandle{},
		lastChecks:  map[string]time.Time{},
		lastChanges: map[string]changeRecord{},
	}
}

// EnsureFreshness reports whether path needs reindexing, without doing it.
// now is injectable for deterministic tests.
func (m *Manager) EnsureFreshness(path string, now func() time.Time) FreshnessResult {
	nowT := now()

	m.mu.Lock()
	lastCheck, checkedRecently := m.lastChecks[path]
	m.mu.Unlock()
	if checkedRecently && nowT.Sub(lastCheck) < CheckDebounceMs*time.Millisecond {
		return FreshnessResult{Mode: ModeSkippedRecent, CheckedAt: nowT, ThresholdMs: CheckDebounceMs}
	}

	m.mu.Lock()
	m.lastChecks[path] = nowT
	m.mu.Unlock()

	lastSynced, ok := m.backend.LastSyncedAt(path)
	if !ok {
		return FreshnessResult{Mode: ModeSynced, CheckedAt: nowT, ThresholdMs: ThresholdFreshMs}
	}

	age := nowT.Sub(lastSynced)
	switch {
	case age < ThresholdFreshMs*time.Millisecond:
		return FreshnessResult{Mode: ModeFresh, CheckedAt: nowT, ThresholdMs: ThresholdFreshMs}
	case age < ThresholdAgingMs*time.Millisecond:
		return FreshnessResult{Mode: ModeAging, CheckedAt: nowT, ThresholdMs: ThresholdAgingMs}
	default:
		return FreshnessResult{Mode: ModeAging, CheckedAt: nowT, ThresholdMs: ThresholdAgingMs}
	}
}

func merkleKey(codebasePath string) string {
	canonical, err := pathutil.Canonicalize(codebasePath)
	if err != nil {
		canonical = codebasePath
	}
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])[:8]
}

func (m *Manager) merklePath(codebasePath string) string {
	return filepath.Join(m.merkleDir, merkleKey(codebasePath)+".json")
}

func (m *Manager) loadPersistedTree(codebasePath string) *merkle.Tree {
	data, err := os.ReadFile(m.merklePath(codebasePath))
	if err != nil {
		return nil
	}
	var persisted struct {
		Root  string             `json:"root"`
		Files []merkle.FileEntry `json:"files"`
	}
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil
	}
	byPath := make(map[string]string, len(persisted.Files))
	for _, f := range persisted.Files {
		byPath[f.Path] = f.Hash
	}
	return &merkle.Tree{Root: persisted.Root, Files: persisted.Files, ByPath: byPath}
}

func (m *Manager) persistTree(codebasePath string, tree *merkle.Tree) error {
	if err := os.MkdirAll(m.merkleDir, 0o755); err != nil {
		return errs.NewDatabaseError("Cannot create Merkle state directory", m.merkleDir, "", err)
	}
	payload := struct {
		Root  string             `json:"root"`
		Files []merkle.FileEntry `json:"files"`
	}{Root: tree.Root, Files: tree.Files}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errs.NewInternalError("Cannot encode Merkle state", "", "", err)
	}

	tmp, err := os.CreateTemp(m.merkleDir, ".merkle-*.tmp")
	if err != nil {
		return errs.NewDatabaseError("Cannot write Merkle state", "", "", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errs.NewDatabaseError("Cannot write Merkle state", "", "", err)
	}
	tmp.Close()
	return os.Rename(tmp.Name(), m.merklePath(codebasePath))
}

// PersistInitialTree seeds the persisted Merkle state for path right after
// an index create, so the first later ReindexByChange diffs against the
// tree the create run actually indexed rather than treating every file as
// newly added.
func (m *Manager) PersistInitialTree(path string, tree *merkle.Tree) error {
	return m.persistTree(path, tree)
}

// ReindexByChange computes the current Merkle tree for path, diffs it
// against the persisted tree, and feeds the delta to the backend.
func (m *Manager) ReindexByChange(ctx context.Context, path string, ignoreExtra []string, maxFileSize int64) (ChangeResult, error) {
	m.mu.Lock()
	if m.inFlight[path] {
		m.mu.Unlock()
		return ChangeResult{}, errs.NewInternalError(
			"Reindex already in progress",
			path,
			"Wait for the current sync to finish before triggering another",
			nil,
		)
	}
	m.inFlight[path] = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.inFlight, path)
		m.mu.Unlock()
	}()

	matcher := merkle.NewMatcher(path, ignoreExtra)
	current, err := merkle.Build(path, matcher, maxFileSize)
	if err != nil {
		return ChangeResult{}, errs.NewInternalError("Cannot scan codebase", path, "", err)
	}

	prev := m.loadPersistedTree(path)
	delta := merkle.Diff(prev, current)

	result := ChangeResult{Added: delta.Added, Removed: delta.Deleted, Modified: delta.Modified}
	result.ChangedFiles = append(result.ChangedFiles, delta.Added...)
	result.ChangedFiles = append(result.ChangedFiles, delta.Deleted...)
	result.ChangedFiles = append(result.ChangedFiles, delta.Modified...)
	sort.Strings(result.ChangedFiles)

	m.mu.Lock()
	m.lastChanges[path] = changeRecord{files: append([]string{}, result.ChangedFiles...), at: time.Now()}
	m.mu.Unlock()

	if delta.IsEmpty() {
		return result, nil
	}

	if len(delta.Deleted) > 0 {
		if err := m.backend.DeleteChunksByPath(ctx, path, delta.Deleted); err != nil {
			return result, err
		}
	}
	toReembed := append(append([]string{}, delta.Added...), delta.Modified...)
	if len(toReembed) > 0 {
		if err := m.backend.ReembedAndUpsert(ctx, path, toReembed); err != nil {
			return result, err
		}
	}

	if changeTouchesSupportedSource(result.ChangedFiles) {
		if err := m.backend.RebuildCallGraph(ctx, path); err != nil {
			logging.With("syncmgr").Warn("callgraph_rebuild_failed", "path", path, "err", err)
		}
	}

	if err := m.persistTree(path, current); err != nil {
		return result, err
	}
	return result, nil
}

// RecentChangedFiles returns the changed-file set from path's most recent
// ReindexByChange call if it completed within ttl, for the search
// pipeline's changed-first ranking boost (SPEC_FULL.md §4.G stage 6).
func (m *Manager) RecentChangedFiles(path string, ttl time.Duration) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.lastChanges[path]
	if !ok || time.Since(rec.at) > ttl {
		return nil, false
	}
	return rec.files, true
}

func changeTouchesSupportedSource(paths []string) bool {
	for _, p := range paths {
		if supportedSourceExtensions[filepath.Ext(p)] {
			return true
		}
	}
	return false
}

// StartBackgroundSync runs a periodic full sweep of codebases in indexedPaths
// until ctx is cancelled. Nothing here is gated by configuration: the sweep
// runs whenever a caller starts it (MCP_ENABLE_WATCHER only gates
// StartWatcherMode in the mcp lifecycle).
func (m *Manager) StartBackgroundSync(ctx context.Context, interval time.Duration, indexedPaths func() []string) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, p := range indexedPaths() {
					if _, err := m.ReindexByChange(ctx, p, nil, 0); err != nil {
						logging.With("syncmgr").Warn("background_sync_failed", "path", p, "err", err)
					}
				}
			}
		}
	}()
}

// StartWatcherMode watches path's directory tree and debounces changed
// files into batched reindexByChange calls.
func (m *Manager) StartWatcherMode(ctx context.Context, path string, debounce time.Duration, ignoreExtra []string, maxFileSize int64) error {
	m.mu.Lock()
	if _, exists := m.watchers[path]; exists {
		m.mu.Unlock()
		return errs.NewInternalError("Watcher already registered", path, "", nil)
	}
	handle := &watcherHandle{stop: make(chan struct{})}
	m.watchers[path] = handle
	m.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.NewInternalError("Cannot create filesystem watcher", path, "", err)
	}

	matcher := merkle.NewMatcher(path, ignoreExtra)
	for _, dir := range watchableDirs(path, matcher) {
		_ = w.Add(dir)
	}

	logger := logging.With("syncmgr")
	go func() {
		defer w.Close()
		var mu sync.Mutex
		var timer *time.Timer
		flush := func() {
			if _, err := m.ReindexByChange(ctx, path, ignoreExtra, maxFileSize); err != nil {
				logger.Warn("watcher_reindex_failed", "path", path, "err", err)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-handle.stop:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, flush)
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher_error", "path", path, "err", err)
			}
		}
	}()
	return nil
}

// StopWatcher unregisters path's watcher, if any.
func (m *Manager) StopWatcher(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if handle, ok := m.watchers[path]; ok {
		close(handle.stop)
		delete(m.watchers, path)
	}
}

func watchableDirs(root string, matcher *merkle.Matcher) []string {
	var dirs []string
	_ = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		if rel != "." && matcher.Match(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		return nil
	})
	return dirs
}
