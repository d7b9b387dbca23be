// Package index implements the manage_index lifecycle orchestrator
// (SPEC_FULL.md component F): create, sync, status, and clear for a single
// codebase, including collection-limit eviction guidance and force-reindex
// cleanup.
package index

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/satori/internal/completion"
	"github.com/kraklabs/satori/internal/embedding"
	"github.com/kraklabs/satori/internal/errs"
	"github.com/kraklabs/satori/internal/fingerprint"
	"github.com/kraklabs/satori/internal/logging"
	"github.com/kraklabs/satori/internal/merkle"
	"github.com/kraklabs/satori/internal/metrics"
	"github.com/kraklabs/satori/internal/pathutil"
	"github.com/kraklabs/satori/internal/snapshot"
	"github.com/kraklabs/satori/internal/splitter"
	"github.com/kraklabs/satori/internal/syncmgr"
	"github.com/kraklabs/satori/internal/vectorstore"
)

const (
	legacyCollectionPrefix = "code_chunks_"
	modernCollectionPrefix = "hybrid_code_chunks_"
	upsertBatchSize        = 64
)

// defaultLanguageExtensions maps a file extension to the language name the
// splitter dispatches on. Anything outside this map, and not present in a
// CreateOptions.CustomExtensions list, is tracked for freshness but not
// chunked or embedded.
var defaultLanguageExtensions = map[string]string{
	".go":  "go",
	".py":  "python",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
}

// CollectionName returns the modern collection name for path.
func CollectionName(path string) string {
	return modernCollectionPrefix + collectionHash(path)
}

// LegacyCollectionName returns the collection name Satori used before the
// hybrid dense+sparse schema.
func LegacyCollectionName(path string) string {
	return legacyCollectionPrefix + collectionHash(path)
}

func collectionHash(path string) string {
	canonical, err := pathutil.Canonicalize(path)
	if err != nil {
		canonical = path
	}
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])[:8]
}

// CreateOptions parameterizes a manage_index create call.
type CreateOptions struct {
	Path                 string
	Force                bool
	Splitter             string // "" (tree-sitter, default) or "linewindow"
	CustomExtensions     []string
	IgnorePatterns       []string
	ZillizDropCollection string
	MaxFileSize          int64
}

// CreateResult reports what a create call did.
type CreateResult struct {
	CollectionName      string
	DroppedCollections  int
	IndexedFiles        int
	TotalChunks          int
	EvictionGuidance    *EvictionGuidance
}

// EvictionGuidance is the human-facing message built when a Zilliz
// collection limit blocks a new create.
type EvictionGuidance struct {
	Message     string
	Entries     []EvictionEntry
	Suggestion  string
}

// EvictionEntry describes one Satori-managed collection in oldest->newest order.
type EvictionEntry struct {
	Name         string
	CodebasePath string
	CreatedAt    time.Time
	Marker       string // "[oldest]", "[newest]", or ""
}

// Manager owns the full index lifecycle for every codebase path it is asked
// to operate on.
type Manager struct {
	snapshot  *snapshot.Store
	store     vectorstore.Store
	embedder  embedding.Provider
	sync      *syncmgr.Manager
	runtimeFP fingerprint.Fingerprint

	callGraphRebuild func(ctx context.Context, path string) error

	mu       sync.Mutex
	inFlight map[string]bool
}

// New constructs a Manager. Callers must invoke SetSyncManager once a
// *syncmgr.Manager has been constructed with this Manager as its Backend
// (the two types are mutually dependent at construction time).
func New(snap *snapshot.Store, store vectorstore.Store, embedder embedding.Provider) *Manager {
	return &Manager{
		snapshot:  snap,
		store:     store,
		embedder:  embedder,
		runtimeFP: snap.RuntimeFingerprint(),
		inFlight:  map[string]bool{},
	}
}

// SetSyncManager wires the sync manager Create/Sync/Clear delegate to.
func (m *Manager) SetSyncManager(sm *syncmgr.Manager) { m.sync = sm }

// SetCallGraphRebuilder wires the call-graph sidecar rebuild hook invoked
// after a sync touches a supported-source file. A nil rebuilder is a no-op.
func (m *Manager) SetCallGraphRebuilder(fn func(ctx context.Context, path string) error) {
	m.callGraphRebuild = fn
}

// DeleteChunksByPath implements syncmgr.Backend.
func (m *Manager) DeleteChunksByPath(ctx context.Context, codebasePath string, paths []string) error {
	return m.store.DeleteChunksByPath(ctx, CollectionName(codebasePath), paths)
}

// ReembedAndUpsert implements syncmgr.Backend: re-splits and re-embeds the
// given changed paths (relative to codebasePath) and upserts the result.
func (m *Manager) ReembedAndUpsert(ctx context.Context, codebasePath string, paths []string) error {
	split := splitter.NewTreeSitterSplitter()
	collectionName := CollectionName(codebasePath)

	var batch []vectorstore.Chunk
	for _, rel := range paths {
		lang, indexable := languageFor(rel, nil)
		if !indexable {
			continue
		}
		full := filepath.Join(codebasePath, rel)
		content, err := os.ReadFile(full)
		if err != nil {
			continue // deleted or unreadable between diff and reembed; next sync will reconcile
		}
		chunks, err := split.Split(rel, lang, content)
		if err != nil || len(chunks) == 0 {
			continue
		}
		// A file being re-embedded may have shrunk or grown its chunk count;
		// drop the old chunks for this path before inserting the new set.
		if err := m.store.DeleteChunksByPath(ctx, collectionName, []string{rel}); err != nil {
			return err
		}
		for _, c := range chunks {
			vec, embedErr := m.embedder.GetDocumentEmbedding(c.Text)
			if embedErr != nil {
				continue
			}
			batch = append(batch, vectorstore.Chunk{
				ID:        fmt.Sprintf("%s:%d:%d", rel, c.StartLine, c.EndLine),
				Path:      rel,
				StartLine: c.StartLine,
				EndLine:   c.EndLine,
				Text:      c.Text,
				Vector:    vec,
				Scope:     c.Scope,
				Language:  c.Language,
			})
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return m.store.UpsertChunks(ctx, collectionName, batch)
}

// RebuildCallGraph implements syncmgr.Backend.
func (m *Manager) RebuildCallGraph(ctx context.Context, codebasePath string) error {
	if m.callGraphRebuild == nil {
		return nil
	}
	return m.callGraphRebuild(ctx, codebasePath)
}

// LastSyncedAt implements syncmgr.Backend.
func (m *Manager) LastSyncedAt(codebasePath string) (time.Time, bool) {
	info, ok := m.snapshot.GetCodebaseInfo(codebasePath)
	if !ok || info.LastUpdated.IsZero() {
		return time.Time{}, false
	}
	return info.LastUpdated, true
}

func (m *Manager) claim(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[path] {
		return errs.NewInputError(
			"Index operation already in progress",
			fmt.Sprintf("%s has an active indexing or sync operation", path),
			"Wait for it to finish, or check status with manage_index action=status",
		)
	}
	m.inFlight[path] = true
	return nil
}

func (m *Manager) release(path string) {
	m.mu.Lock()
	delete(m.inFlight, path)
	m.mu.Unlock()
}

func pickSplitter(name string) splitter.Splitter {
	if name == "linewindow" {
		return splitter.NewLineWindowSplitter()
	}
	return splitter.NewTreeSitterSplitter()
}

func languageFor(path string, custom []string) (string, bool) {
	ext := filepath.Ext(path)
	if lang, ok := defaultLanguageExtensions[ext]; ok {
		return lang, true
	}
	for _, c := range custom {
		if c == ext {
			return "text", true
		}
	}
	return "", false
}

// Create runs the full 7-step create sequence (SPEC_FULL.md §4.F).
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (CreateResult, error) {
	logger := logging.With("index")

	canonicalPath, err := pathutil.Canonicalize(opts.Path)
	if err != nil {
		return CreateResult{}, errs.NewInputError("Invalid codebase path", err.Error(), "Provide an absolute or resolvable path")
	}
	if info, statErr := os.Stat(canonicalPath); statErr != nil || !info.IsDir() {
		return CreateResult{}, errs.NewInputError(
			"Codebase path does not exist",
			canonicalPath,
			"Check the path and try again",
		)
	}

	if err := m.claim(canonicalPath); err != nil {
		return CreateResult{}, err
	}
	defer m.release(canonicalPath)

	result := CreateResult{CollectionName: CollectionName(canonicalPath)}

	if opts.Force {
		dropped, dropErr := m.dropLegacyAndModern(ctx, canonicalPath)
		if dropErr != nil {
			return result, dropErr
		}
		result.DroppedCollections = dropped
	}

	if opts.ZillizDropCollection != "" {
		if m.store.Provider() != fingerprint.VectorStoreZilliz {
			return result, errs.NewInputError(
				"zillizDropCollection is only valid for a Zilliz backend",
				fmt.Sprintf("current vector store backend is %s", m.store.Provider()),
				"Omit zillizDropCollection or switch the vector store provider",
			)
		}
		existed, dropErr := m.store.DropCollection(ctx, opts.ZillizDropCollection)
		if dropErr != nil {
			return result, flattenStoreError(dropErr, "Cannot drop collection", opts.ZillizDropCollection)
		}
		if !existed {
			return result, errs.NewInputError(
				"Collection not found",
				fmt.Sprintf("%s does not exist", opts.ZillizDropCollection),
				"Check the collection name with manage_index action=status",
			)
		}
	}

	withinLimit, limitErr := m.store.CheckCollectionLimit(ctx)
	if limitErr != nil {
		return result, flattenStoreError(limitErr, "Cannot check collection limit", "")
	}
	if !withinLimit {
		if m.store.Provider() == fingerprint.VectorStoreZilliz {
			guidance, guidanceErr := m.buildEvictionGuidance(ctx, canonicalPath)
			if guidanceErr != nil {
				return result, guidanceErr
			}
			result.EvictionGuidance = guidance
			return result, errs.NewConfigError(
				"Zilliz collection limit reached",
				guidance.Message,
				guidance.Suggestion,
				nil,
			)
		}
		return result, errs.NewConfigError(
			"Vector store collection limit reached",
			vectorstore.COLLECTION_LIMIT_MESSAGE,
			"Remove unused collections with manage_index action=clear before indexing a new codebase",
			nil,
		)
	}

	if err := m.snapshot.SetCodebaseIndexing(canonicalPath, 0); err != nil {
		return result, err
	}

	stats, runErr := m.runIndexPass(ctx, canonicalPath, opts)
	if runErr != nil {
		if saveErr := m.snapshot.SetCodebaseFailed(canonicalPath, runErr.Error()); saveErr != nil {
			logger.Warn("set_codebase_failed_error", "path", canonicalPath, "err", saveErr)
		}
		metrics.IndexRuns.WithLabelValues("create", "failed").Inc()
		return result, runErr
	}

	runID := uuid.NewString()
	marker := completion.NewMarker(canonicalPath, m.runtimeFP, stats.IndexedFiles, stats.TotalChunks, runID)
	if err := m.store.WriteCompletionMarker(ctx, result.CollectionName, marker); err != nil {
		setErr := m.snapshot.SetCodebaseFailed(canonicalPath, err.Error())
		if setErr != nil {
			logger.Warn("set_codebase_failed_error", "path", canonicalPath, "err", setErr)
		}
		metrics.IndexRuns.WithLabelValues("create", "failed").Inc()
		return result, flattenStoreError(err, "Cannot write completion marker", result.CollectionName)
	}

	if err := m.snapshot.SetCodebaseIndexed(canonicalPath, stats, m.runtimeFP, fingerprint.SourceVerified); err != nil {
		return result, err
	}

	result.IndexedFiles = stats.IndexedFiles
	result.TotalChunks = stats.TotalChunks
	metrics.IndexRuns.WithLabelValues("create", "indexed").Inc()
	metrics.IndexedChunks.WithLabelValues(canonicalPath).Observe(float64(stats.TotalChunks))
	return result, nil
}

func (m *Manager) dropLegacyAndModern(ctx context.Context, canonicalPath string) (int, error) {
	dropped := 0
	for _, name := range []string{LegacyCollectionName(canonicalPath), CollectionName(canonicalPath)} {
		existed, err := m.store.DropCollection(ctx, name)
		if err != nil {
			return dropped, flattenStoreError(err, "Cannot drop collection", name)
		}
		if existed {
			dropped++
		}
	}
	return dropped, nil
}

func (m *Manager) buildEvictionGuidance(ctx context.Context, blockedPath string) (*EvictionGuidance, error) {
	collections, err := m.store.ListManagedCollections(ctx)
	if err != nil {
		return nil, flattenStoreError(err, "Cannot list managed collections", "")
	}
	sort.Slice(collections, func(i, j int) bool { return collections[i].CreatedAt.Before(collections[j].CreatedAt) })

	entries := make([]EvictionEntry, len(collections))
	for i, c := range collections {
		marker := ""
		if i == 0 {
			marker = "[oldest]"
		}
		if i == len(collections)-1 {
			marker = "[newest]"
		}
		entries[i] = EvictionEntry{Name: c.Name, CodebasePath: c.CodebasePath, CreatedAt: c.CreatedAt, Marker: marker}
	}

	var b strings.Builder
	b.WriteString("Zilliz collection limit reached. Satori-managed collections, oldest to newest:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s %s (codebase: %s, created: %s)\n", e.Marker, e.Name, e.CodebasePath, e.CreatedAt.Format(time.RFC3339))
	}
	b.WriteString("Do not delete a collection without explicit user confirmation.")

	suggestion := fmt.Sprintf(
		`manage_index {"action":"create","path":"%s","zillizDropCollection":"<name-to-drop>"}`,
		blockedPath,
	)

	return &EvictionGuidance{Message: b.String(), Entries: entries, Suggestion: suggestion}, nil
}

func flattenStoreError(err error, title, detail string) error {
	if ue, ok := errs.AsUserError(err); ok {
		return ue
	}
	return errs.NewDatabaseError(title, detail, "", err)
}

// runIndexPass walks the codebase, splits + embeds every indexable file,
// streams chunks into the vector store in batches, and tracks percentage.
func (m *Manager) runIndexPass(ctx context.Context, canonicalPath string, opts CreateOptions) (snapshot.IndexStats, error) {
	logger := logging.With("index")

	matcher := merkle.NewMatcher(canonicalPath, opts.IgnorePatterns)
	tree, err := merkle.Build(canonicalPath, matcher, opts.MaxFileSize)
	if err != nil {
		return snapshot.IndexStats{}, errs.NewInternalError("Cannot scan codebase", canonicalPath, "", err)
	}

	split := pickSplitter(opts.Splitter)
	if err := m.store.EnsureCollection(ctx, CollectionName(canonicalPath), m.embedder.Dimensions()); err != nil {
		return snapshot.IndexStats{}, flattenStoreError(err, "Cannot create collection", CollectionName(canonicalPath))
	}

	var (
		batch        []vectorstore.Chunk
		indexedFiles int
		totalChunks  int
	)
	collectionName := CollectionName(canonicalPath)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := m.store.UpsertChunks(ctx, collectionName, batch); err != nil {
			return flattenStoreError(err, "Cannot write chunks", collectionName)
		}
		batch = batch[:0]
		return nil
	}

	for i, entry := range tree.Files {
		select {
		case <-ctx.Done():
			return snapshot.IndexStats{}, ctx.Err()
		default:
		}

		lang, indexable := languageFor(entry.Path, opts.CustomExtensions)
		if !indexable {
			continue
		}

		full := filepath.Join(canonicalPath, entry.Path)
		content, readErr := os.ReadFile(full)
		if readErr != nil {
			logger.Warn("read_file_failed", "path", full, "err", readErr)
			continue
		}

		chunks, splitErr := split.Split(entry.Path, lang, content)
		if splitErr != nil {
			logger.Warn("split_failed", "path", full, "err", splitErr)
			continue
		}
		if len(chunks) == 0 {
			continue
		}

		fileHadChunk := false
		for _, c := range chunks {
			vec, embedErr := m.embedder.GetDocumentEmbedding(c.Text)
			if embedErr != nil {
				logger.Warn("embed_failed", "path", full, "err", embedErr)
				continue
			}
			batch = append(batch, vectorstore.Chunk{
				ID:        fmt.Sprintf("%s:%d:%d", entry.Path, c.StartLine, c.EndLine),
				Path:      entry.Path,
				StartLine: c.StartLine,
				EndLine:   c.EndLine,
				Text:      c.Text,
				Vector:    vec,
				Scope:     c.Scope,
				Language:  c.Language,
			})
			totalChunks++
			fileHadChunk = true

			if len(batch) >= upsertBatchSize {
				if err := flush(); err != nil {
					return snapshot.IndexStats{}, err
				}
			}
		}
		if fileHadChunk {
			indexedFiles++
		}

		if len(tree.Files) > 0 && i%10 == 0 {
			pct := int(float64(i+1) / float64(len(tree.Files)) * 100)
			if err := m.snapshot.SetCodebaseIndexing(canonicalPath, pct); err != nil {
				logger.Warn("set_codebase_indexing_percentage_error", "path", canonicalPath, "err", err)
			}
		}
	}

	if err := flush(); err != nil {
		return snapshot.IndexStats{}, err
	}
	if err := m.sync.PersistInitialTree(canonicalPath, tree); err != nil {
		logger.Warn("persist_merkle_tree_error", "path", canonicalPath, "err", err)
	}

	return snapshot.IndexStats{IndexedFiles: indexedFiles, TotalChunks: totalChunks}, nil
}

// Sync delegates to the sync manager's Merkle-diff-driven reindex.
func (m *Manager) Sync(ctx context.Context, path string, ignorePatterns []string, maxFileSize int64) (syncmgr.ChangeResult, error) {
	canonicalPath, err := pathutil.Canonicalize(path)
	if err != nil {
		return syncmgr.ChangeResult{}, errs.NewInputError("Invalid codebase path", err.Error(), "")
	}
	if err := m.claim(canonicalPath); err != nil {
		return syncmgr.ChangeResult{}, err
	}
	defer m.release(canonicalPath)

	result, err := m.sync.ReindexByChange(ctx, canonicalPath, ignorePatterns, maxFileSize)
	if err != nil {
		metrics.IndexRuns.WithLabelValues("sync", "failed").Inc()
		return result, err
	}

	if !resultIsEmpty(result) {
		stats := snapshot.IndexStats{}
		if info, ok := m.snapshot.GetCodebaseInfo(canonicalPath); ok {
			stats = snapshot.IndexStats{IndexedFiles: info.IndexedFiles, TotalChunks: info.TotalChunks}
		}
		if err := m.snapshot.SetCodebaseSyncCompleted(canonicalPath, stats); err != nil {
			return result, err
		}
	}
	metrics.IndexRuns.WithLabelValues("sync", "ok").Inc()
	return result, nil
}

// resultIsEmpty reports whether a change result touched nothing.
func resultIsEmpty(r syncmgr.ChangeResult) bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0
}

// Status reports a codebase's snapshot entry, applying the completion-marker
// proof to terminal states per SPEC_FULL.md's list_codebases authority rules.
func (m *Manager) Status(ctx context.Context, path string) (snapshot.CodebaseInfo, bool, error) {
	canonicalPath, err := pathutil.Canonicalize(path)
	if err != nil {
		return snapshot.CodebaseInfo{}, false, errs.NewInputError("Invalid codebase path", err.Error(), "")
	}
	info, ok := m.snapshot.GetCodebaseInfo(canonicalPath)
	if !ok {
		return info, false, nil
	}

	if info.Status != snapshot.StatusIndexed && info.Status != snapshot.StatusSyncCompleted {
		return info, true, nil
	}

	proof := completion.Verify(ctx, m.store, CollectionName(canonicalPath), canonicalPath, m.runtimeFP)
	switch proof.Outcome {
	case completion.OutcomeValid:
		return info, true, nil
	case completion.OutcomeFingerprintMismatch:
		if err := m.snapshot.SetCodebaseRequiresReindex(canonicalPath, "fingerprint_mismatch"); err != nil {
			return info, true, err
		}
		info.Status = snapshot.StatusRequiresReindex
		return info, true, nil
	case completion.OutcomeStaleLocal:
		msg := "completion marker proof failed: " + string(proof.StaleReason)
		if err := m.snapshot.SetCodebaseFailed(canonicalPath, msg); err != nil {
			return info, true, err
		}
		info.Status = snapshot.StatusIndexFailed
		info.ErrorMessage = msg
		return info, true, nil
	default: // probe_failed: non-authoritative, never mutate
		return info, true, nil
	}
}

// Clear drops the codebase's collection, removes its snapshot entry, and
// stops its watcher if registered.
func (m *Manager) Clear(ctx context.Context, path string) error {
	canonicalPath, err := pathutil.Canonicalize(path)
	if err != nil {
		return errs.NewInputError("Invalid codebase path", err.Error(), "")
	}
	if err := m.claim(canonicalPath); err != nil {
		return err
	}
	defer m.release(canonicalPath)

	m.sync.StopWatcher(canonicalPath)

	if _, err := m.store.DropCollection(ctx, CollectionName(canonicalPath)); err != nil {
		return flattenStoreError(err, "Cannot drop collection", CollectionName(canonicalPath))
	}
	if _, err := m.store.DropCollection(ctx, LegacyCollectionName(canonicalPath)); err != nil {
		return flattenStoreError(err, "Cannot drop legacy collection", LegacyCollectionName(canonicalPath))
	}

	if err := m.snapshot.RemoveCodebaseCompletely(canonicalPath); err != nil {
		return err
	}
	metrics.IndexRuns.WithLabelValues("clear", "ok").Inc()
	return nil
}
