// Package search implements the hybrid search_codebase pipeline
// (SPEC_FULL.md component G): fingerprint gate, freshness check, candidate
// retrieval with must-clause retry, scope/path weighting, noise hinting,
// changed-first boosting, optional reranking, diversity capping, grouping,
// and deterministic ordering, with a stderr telemetry line per search.
package search

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kraklabs/satori/internal/capability"
	"github.com/kraklabs/satori/internal/embedding"
	"github.com/kraklabs/satori/internal/fingerprint"
	"github.com/kraklabs/satori/internal/logging"
	"github.com/kraklabs/satori/internal/merkle"
	"github.com/kraklabs/satori/internal/metrics"
	"github.com/kraklabs/satori/internal/pathutil"
	"github.com/kraklabs/satori/internal/snapshot"
	"github.com/kraklabs/satori/internal/syncmgr"
	"github.com/kraklabs/satori/internal/vectorstore"
)

// Named pipeline constants (SPEC_FULL.md §4.G).
const (
	MaxCandidates             = 80
	RRFK                      = 60.0
	MustRetryRounds           = 2
	MustRetryMultiplier       = 2
	NoiseHintTopK             = 5
	NoiseHintThreshold        = 0.60
	ChangedFirstMaxFiles      = 50
	ChangedFirstTTL           = 5 * time.Second
	ChangedFirstMultiplier    = 1.10
	RerankTopK                = 50
	RerankDocMaxLines         = 200
	RerankDocMaxChars         = 4000
	RerankRRFK                = 10.0
	RerankWeight              = 1.0
	DiversityMaxPerFileBase   = 2
	DiversityMaxPerFileRelax  = 3
	DiversityMaxPerSymbol     = 1
	GitignoreForceReloadEvery = 25
)

// Scope selects the path-category weighting table.
type Scope string

const (
	ScopeRuntime Scope = "runtime"
	ScopeMixed   Scope = "mixed"
	ScopeDocs    Scope = "docs"
)

// ResultMode selects whether hits are grouped or returned raw.
type ResultMode string

const (
	ResultGrouped ResultMode = "grouped"
	ResultRaw     ResultMode = "raw"
)

// GroupBy selects the grouping key when ResultMode is grouped.
type GroupBy string

const (
	GroupBySymbol GroupBy = "symbol"
	GroupByFile   GroupBy = "file"
)

// pathCategory classifies a relative path for scope/path weighting.
type pathCategory string

const (
	categoryEntrypoint pathCategory = "entrypoint"
	categoryCore       pathCategory = "core"
	categorySrcRuntime pathCategory = "srcRuntime"
	categoryNeutral    pathCategory = "neutral"
	categoryTests      pathCategory = "tests"
	categoryDocs       pathCategory = "docs"
	categoryGenerated  pathCategory = "generated"
)

// scopePathMultipliers is the {scope -> category -> multiplier} table. Not
// pinned by spec.md (it references "the exact table in constants" without
// reproducing it); this table is this implementation's resolution of that
// gap, recorded as an Open Question decision in DESIGN.md.
var scopePathMultipliers = map[Scope]map[pathCategory]float64{
	ScopeRuntime: {
		categoryEntrypoint: 1.20, categoryCore: 1.15, categorySrcRuntime: 1.10,
		categoryNeutral: 1.0, categoryTests: 0.05, categoryDocs: 0.05, categoryGenerated: 0.30,
	},
	ScopeMixed: {
		categoryEntrypoint: 1.10, categoryCore: 1.05, categorySrcRuntime: 1.05,
		categoryNeutral: 1.0, categoryTests: 0.80, categoryDocs: 0.80, categoryGenerated: 0.50,
	},
	ScopeDocs: {
		categoryEntrypoint: 0.20, categoryCore: 0.20, categorySrcRuntime: 0.20,
		categoryNeutral: 0.60, categoryTests: 0.30, categoryDocs: 1.20, categoryGenerated: 0.30,
	},
}

var (
	entrypointRe = regexp.MustCompile(`(^|/)(main\.go|main\.py|index\.ts|index\.js|__main__\.py|cmd/[^/]+/main\.go)$`)
	testsRe      = regexp.MustCompile(`(^|/)(test|tests|__tests__|fixtures?|testdata)(/|$)|_test\.go$|\.test\.[jt]sx?$|\.spec\.[jt]sx?$|test_[^/]+\.py$`)
	docsRe       = regexp.MustCompile(`(^|/)(docs?)(/|$)|\.md$|\.mdx$|\.rst$|^README`)
	generatedRe  = regexp.MustCompile(`(^|/)(generated|gen|vendor|node_modules|dist|build)(/|$)|\.pb\.go$|_pb2\.py$|\.generated\.[jt]s$`)
	coreRe       = regexp.MustCompile(`(^|/)(internal|pkg|lib|core)(/|$)`)
	srcRuntimeRe = regexp.MustCompile(`\.(go|py|js|jsx|ts|tsx|java|rb|rs|c|cc|cpp|h|hpp|cs|php|swift|kt|scala)$`)
)

// classifyPathCategory classifies relPath into exactly one of the seven
// categories spec.md:138 requires. srcRuntime covers recognized source
// files that aren't under a core/ or entrypoint path; anything left over
// (no recognized extension, not test/docs/generated) is neutral.
func classifyPathCategory(relPath string) pathCategory {
	switch {
	case entrypointRe.MatchString(relPath):
		return categoryEntrypoint
	case testsRe.MatchString(relPath):
		return categoryTests
	case generatedRe.MatchString(relPath):
		return categoryGenerated
	case docsRe.MatchString(relPath):
		return categoryDocs
	case coreRe.MatchString(relPath):
		return categoryCore
	case srcRuntimeRe.MatchString(relPath):
		return categorySrcRuntime
	default:
		return categoryNeutral
	}
}

// noiseHintPatterns classify a path as "noisy" for the noise-hint advisory.
var noiseHintPatterns = []*regexp.Regexp{testsRe, regexp.MustCompile(`coverage`)}

func isNoisy(relPath string) bool {
	for _, re := range noiseHintPatterns {
		if re.MatchString(relPath) {
			return true
		}
	}
	return false
}

// Reranker scores docs against query, in query order.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
}

// Query is search_codebase's validated input.
type Query struct {
	Path         string
	QueryText    string
	Limit        int
	Scope        Scope
	ResultMode   ResultMode
	GroupBy      GroupBy
	UseReranker  *bool
	RankingMode  string // "" or "auto_changed_first"
	IgnoreExtra  []string
	Debug        bool
}

// Hit is a single result after all pipeline stages.
type Hit struct {
	RelativePath string  `json:"relativePath"`
	StartLine    int      `json:"startLine"`
	EndLine      int      `json:"endLine"`
	SymbolID     string   `json:"symbolId"`
	Score        float64  `json:"score"`
	Scope        string   `json:"scope"`
	Language     string   `json:"language"`
	Snippet      string   `json:"snippet"`
	GroupSize    int      `json:"groupSize,omitempty"`
}

// Result is search_codebase's output.
type Result struct {
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Results  []Hit  `json:"results,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Engine runs the search pipeline against one vector store + embedder.
type Engine struct {
	store     vectorstore.Store
	embedder  embedding.Provider
	sync      *syncmgr.Manager
	snapshot  *snapshot.Store
	runtimeFP fingerprint.Fingerprint
	caps      capability.Capabilities
	reranker  Reranker

	mu            sync.Mutex
	ignoreReloads map[string]int
	matchers      map[string]*merkle.Matcher
}

// New constructs an Engine. reranker may be nil.
func New(store vectorstore.Store, embedder embedding.Provider, sm *syncmgr.Manager, snap *snapshot.Store, runtimeFP fingerprint.Fingerprint, caps capability.Capabilities, reranker Reranker) *Engine {
	return &Engine{
		store:         store,
		embedder:      embedder,
		sync:          sm,
		snapshot:      snap,
		runtimeFP:     runtimeFP,
		caps:          caps,
		reranker:      reranker,
		ignoreReloads: map[string]int{},
		matchers:      map[string]*merkle.Matcher{},
	}
}

// collectionName mirrors internal/index.CollectionName's naming exactly
// (same md5(canonical path)[0:8] scheme) without importing internal/index,
// which depends on internal/syncmgr and would otherwise cycle back here
// once the orchestrator wires search in.
func collectionName(path string) string {
	canonicalPath, err := pathutil.Canonicalize(path)
	if err != nil {
		canonicalPath = path
	}
	sum := md5.Sum([]byte(canonicalPath))
	return "hybrid_code_chunks_" + hex.EncodeToString(sum[:])[:8]
}

// Search runs the full pipeline for q.
func (e *Engine) Search(ctx context.Context, q Query) Result {
	start := time.Now()
	logger := logging.With("search")

	limit := q.Limit
	if limit <= 0 {
		limit = e.caps.DefaultSearchLimit
	}
	if limit > e.caps.MaxSearchLimit {
		limit = e.caps.MaxSearchLimit
	}
	if q.Scope == "" {
		q.Scope = ScopeRuntime
	}
	if q.ResultMode == "" {
		q.ResultMode = ResultGrouped
	}
	if q.GroupBy == "" {
		q.GroupBy = GroupBySymbol
	}

	telemetry := telemetryEvent{
		Event:          "search_executed",
		ToolName:       "search_codebase",
		Profile:        string(e.caps.PerformanceProfile),
		QueryLength:    len(q.QueryText),
		LimitRequested: limit,
	}
	defer func() {
		telemetry.LatencyMs = time.Since(start).Milliseconds()
		emitTelemetry(telemetry)
		metrics.SearchTotal.WithLabelValues(telemetry.Profile).Inc()
		metrics.SearchLatency.WithLabelValues(telemetry.Profile).Observe(time.Since(start).Seconds())
	}()

	// Stage 1: gate.
	info, found := e.snapshot.GetCodebaseInfo(q.Path)
	if found {
		gate := fingerprint.Decide(info.Fingerprint, info.FingerprintSource, e.runtimeFP)
		if !gate.Allowed {
			telemetry.Error = string(gate.Reason)
			return Result{Status: "requires_reindex", Reason: string(gate.Reason)}
		}
	}

	// Stage 2: freshness (never fails the search).
	freshness := e.sync.EnsureFreshness(q.Path, time.Now)
	telemetry.FreshnessMode = string(freshness.Mode)

	// Stage 3: candidate retrieval with must-clause retry.
	mustTerms := extractMustClauses(q.QueryText)
	denseVec, err := e.embedder.GetQueryEmbedding(q.QueryText)
	if err != nil {
		logger.Warn("embed_query_failed", "err", err)
		telemetry.Error = "embed_failed"
		return Result{Status: "error", Reason: "embed_failed"}
	}
	sparseQuery := bagOfWords(q.QueryText)

	collection := collectionName(q.Path)
	candLimit := MaxCandidates
	var hits []vectorstore.SearchHit
	for round := 0; round <= MustRetryRounds; round++ {
		hits, err = e.store.Search(ctx, collection, vectorstore.SearchQuery{
			CollectionName: collection,
			DenseVector:    denseVec,
			SparseTerms:    sparseQuery,
			TopK:           candLimit,
		})
		if err != nil {
			logger.Warn("candidate_search_failed", "err", err)
			telemetry.Error = "search_failed"
			return Result{Status: "error", Reason: "search_failed"}
		}
		if len(mustTerms) == 0 {
			break
		}
		filtered := filterMustTerms(hits, mustTerms)
		if len(filtered) > 0 || round == MustRetryRounds {
			hits = filtered
			break
		}
		candLimit *= MustRetryMultiplier
	}
	telemetry.ResultsBeforeFilter = len(hits)

	// RRF-fuse the store's dense-weighted ranking with a client-side sparse
	// bag-of-words ranking, so SEARCH_RRF_K materially affects fused order
	// rather than being purely documentary.
	fused := rrfFuseWithSparse(hits, sparseQuery, RRFK)

	// Stage 4: scope/path weighting + ignore-pattern exclusion.
	matcher := e.matcherFor(q.Path, q.IgnoreExtra)
	excludedByIgnore := 0
	var afterScope []scoredHit
	multipliers := scopePathMultipliers[q.Scope]
	for _, h := range fused {
		rel := filepath.ToSlash(h.hit.Chunk.Path)
		if matcher.Match(rel) {
			excludedByIgnore++
			continue
		}
		category := classifyPathCategory(rel)
		h.score *= multipliers[category]
		afterScope = append(afterScope, h)
	}
	sort.SliceStable(afterScope, func(i, j int) bool { return afterScope[i].score > afterScope[j].score })
	telemetry.ExcludedByIgnore = excludedByIgnore
	telemetry.ResultsAfterFilter = len(afterScope)

	// Stage 5: noise hint.
	if len(afterScope) > 0 {
		topN := afterScope
		if len(topN) > NoiseHintTopK {
			topN = topN[:NoiseHintTopK]
		}
		noisy := 0
		for _, h := range topN {
			if isNoisy(filepath.ToSlash(h.hit.Chunk.Path)) {
				noisy++
			}
		}
		if float64(noisy)/float64(len(topN)) > NoiseHintThreshold {
			telemetry.NoiseHint = true
		}
	}

	// Stage 6: changed-first (auto).
	if q.RankingMode == "auto_changed_first" {
		if changed, ok := e.sync.RecentChangedFiles(q.Path, ChangedFirstTTL); ok && len(changed) <= ChangedFirstMaxFiles {
			changedSet := make(map[string]bool, len(changed))
			for _, c := range changed {
				changedSet[c] = true
			}
			for i := range afterScope {
				if changedSet[filepath.ToSlash(afterScope[i].hit.Chunk.Path)] {
					afterScope[i].score *= ChangedFirstMultiplier
				}
			}
			sort.SliceStable(afterScope, func(i, j int) bool { return afterScope[i].score > afterScope[j].score })
		}
	}

	// Stage 7: optional rerank.
	useReranker := e.reranker != nil && e.caps.DefaultRerankEnable && e.caps.PerformanceProfile != capability.ProfileSlow
	if q.UseReranker != nil {
		useReranker = useReranker && *q.UseReranker
	}
	telemetry.RerankerUsed = useReranker
	if useReranker {
		afterScope = e.rerank(ctx, q.QueryText, afterScope)
	}

	// Stage 8: diversity capping.
	capped := applyDiversity(afterScope, limit)

	// Stage 9: grouping.
	var groupedHits []Hit
	if q.ResultMode == ResultGrouped {
		groupedHits = groupHits(capped, q.GroupBy)
	} else {
		for _, h := range capped {
			groupedHits = append(groupedHits, toHit(h))
		}
	}

	// Stage 10: deterministic ordering.
	sortHitsDeterministic(groupedHits)
	if len(groupedHits) > limit {
		groupedHits = groupedHits[:limit]
	}

	telemetry.ResultsReturned = len(groupedHits)
	metrics.SearchResultsReturned.WithLabelValues(q.Path).Observe(float64(len(groupedHits)))

	result := Result{Status: "ok", Results: groupedHits}
	if telemetry.NoiseHint {
		result.Warnings = append(result.Warnings, "top results are dominated by test/fixture/coverage files")
	}
	return result
}

func (e *Engine) matcherFor(path string, ignoreExtra []string) *merkle.Matcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := e.ignoreReloads[path]
	m, ok := e.matchers[path]
	if !ok || count%GitignoreForceReloadEvery == 0 {
		m = merkle.NewMatcher(path, ignoreExtra)
		e.matchers[path] = m
	}
	e.ignoreReloads[path] = count + 1
	return m
}

type scoredHit struct {
	hit   vectorstore.SearchHit
	score float64
}

// rrfFuseWithSparse combines the store's dense-ranked hits with a
// client-side sparse bag-of-words ranking via reciprocal rank fusion,
// K=RRFK (SEARCH_RRF_K).
func rrfFuseWithSparse(hits []vectorstore.SearchHit, sparseQuery map[string]float64, k float64) []scoredHit {
	denseRank := make(map[string]int, len(hits))
	for i, h := range hits {
		denseRank[h.Chunk.ID] = i + 1
	}

	type sparseScored struct {
		id    string
		score float64
	}
	sparseRanked := make([]sparseScored, 0, len(hits))
	for _, h := range hits {
		sparseRanked = append(sparseRanked, sparseScored{id: h.Chunk.ID, score: sparseDot(sparseQuery, h.Chunk.SparseTerms)})
	}
	sort.SliceStable(sparseRanked, func(i, j int) bool { return sparseRanked[i].score > sparseRanked[j].score })
	sparseRank := make(map[string]int, len(sparseRanked))
	for i, s := range sparseRanked {
		sparseRank[s.id] = i + 1
	}

	out := make([]scoredHit, 0, len(hits))
	for _, h := range hits {
		rrf := 1.0/(k+float64(denseRank[h.Chunk.ID])) + 1.0/(k+float64(sparseRank[h.Chunk.ID]))
		out = append(out, scoredHit{hit: h, score: rrf})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func sparseDot(a map[string]float64, b map[string]float32) float64 {
	var sum float64
	for term, w := range a {
		if bw, ok := b[term]; ok {
			sum += w * float64(bw)
		}
	}
	return sum
}

var wordRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

func bagOfWords(text string) map[string]float64 {
	terms := map[string]float64{}
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		terms[w]++
	}
	return terms
}

// extractMustClauses pulls "+token" must-have terms out of a query ≤200
// chars, per SPEC_FULL.md §4.G stage 3's operator-prefix handling.
func extractMustClauses(query string) []string {
	if len(query) > 200 {
		return nil
	}
	var must []string
	for _, tok := range strings.Fields(query) {
		if strings.HasPrefix(tok, "+") && len(tok) > 1 {
			must = append(must, strings.ToLower(tok[1:]))
		}
	}
	return must
}

func filterMustTerms(hits []vectorstore.SearchHit, mustTerms []string) []vectorstore.SearchHit {
	var out []vectorstore.SearchHit
	for _, h := range hits {
		text := strings.ToLower(h.Chunk.Text)
		matchesAll := true
		for _, term := range mustTerms {
			if !strings.Contains(text, term) {
				matchesAll = false
				break
			}
		}
		if matchesAll {
			out = append(out, h)
		}
	}
	return out
}

func (e *Engine) rerank(ctx context.Context, query string, hits []scoredHit) []scoredHit {
	top := hits
	if len(top) > RerankTopK {
		top = top[:RerankTopK]
	}
	docs := make([]string, len(top))
	for i, h := range top {
		docs[i] = truncateDoc(h.hit.Chunk.Text)
	}
	scores, err := e.reranker.Rerank(ctx, query, docs)
	if err != nil || len(scores) != len(top) {
		return hits
	}

	origRank := make(map[string]int, len(top))
	for i, h := range top {
		origRank[h.hit.Chunk.ID] = i + 1
	}
	type rs struct {
		id    string
		score float64
	}
	rerankRanked := make([]rs, len(top))
	for i, s := range scores {
		rerankRanked[i] = rs{id: top[i].hit.Chunk.ID, score: s}
	}
	sort.SliceStable(rerankRanked, func(i, j int) bool { return rerankRanked[i].score > rerankRanked[j].score })
	rerankRank := make(map[string]int, len(rerankRanked))
	for i, r := range rerankRanked {
		rerankRank[r.id] = i + 1
	}

	fused := make([]scoredHit, len(top))
	copy(fused, top)
	for i := range fused {
		id := fused[i].hit.Chunk.ID
		fused[i].score = RerankWeight * (1.0/(RerankRRFK+float64(origRank[id])) + 1.0/(RerankRRFK+float64(rerankRank[id])))
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].score > fused[j].score })

	if len(hits) > len(top) {
		fused = append(fused, hits[len(top):]...)
	}
	return fused
}

func truncateDoc(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > RerankDocMaxLines {
		lines = lines[:RerankDocMaxLines]
	}
	truncated := strings.Join(lines, "\n")
	if len(truncated) > RerankDocMaxChars {
		truncated = truncated[:RerankDocMaxChars]
	}
	return truncated
}

func applyDiversity(hits []scoredHit, limit int) []scoredHit {
	maxPerFile := DiversityMaxPerFileBase
	if capped := countWithCap(hits, maxPerFile, DiversityMaxPerSymbol); capped < limit {
		maxPerFile = DiversityMaxPerFileRelax
	}

	perFile := map[string]int{}
	perSymbol := map[string]int{}
	var out []scoredHit
	for _, h := range hits {
		path := h.hit.Chunk.Path
		symbol := symbolKey(h.hit.Chunk)
		if perFile[path] >= maxPerFile {
			continue
		}
		if perSymbol[symbol] >= DiversityMaxPerSymbol {
			continue
		}
		perFile[path]++
		perSymbol[symbol]++
		out = append(out, h)
	}
	return out
}

func countWithCap(hits []scoredHit, maxPerFile, maxPerSymbol int) int {
	perFile := map[string]int{}
	perSymbol := map[string]int{}
	count := 0
	for _, h := range hits {
		path := h.hit.Chunk.Path
		symbol := symbolKey(h.hit.Chunk)
		if perFile[path] >= maxPerFile || perSymbol[symbol] >= maxPerSymbol {
			continue
		}
		perFile[path]++
		perSymbol[symbol]++
		count++
	}
	return count
}

// symbolKey derives a stable grouping key in the absence of a true
// symbolId on vectorstore.Chunk (the splitter does not yet attach one);
// documented as a practical simplification in DESIGN.md.
func symbolKey(c vectorstore.Chunk) string {
	return fmt.Sprintf("%s:%d", c.Path, c.StartLine)
}

func toHit(h scoredHit) Hit {
	c := h.hit.Chunk
	return Hit{
		RelativePath: c.Path,
		StartLine:    c.StartLine,
		EndLine:      c.EndLine,
		SymbolID:     symbolKey(c),
		Score:        h.score,
		Scope:        c.Scope,
		Language:     c.Language,
		Snippet:      c.Text,
	}
}

func groupHits(hits []scoredHit, groupBy GroupBy) []Hit {
	type group struct {
		head  Hit
		count int
	}
	order := []string{}
	groups := map[string]*group{}
	for _, h := range hits {
		c := h.hit.Chunk
		key := c.Path
		if groupBy == GroupBySymbol {
			key = symbolKey(c)
		}
		if g, ok := groups[key]; ok {
			g.count++
			continue
		}
		groups[key] = &group{head: toHit(h), count: 1}
		order = append(order, key)
	}
	out := make([]Hit, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.head.GroupSize = g.count
		out = append(out, g.head)
	}
	return out
}

func sortHitsDeterministic(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.RelativePath != b.RelativePath {
			return a.RelativePath < b.RelativePath
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.SymbolID < b.SymbolID
	})
}

// telemetryEvent mirrors SearchTelemetryEvent (spec.md §6), emitted as a
// single [TELEMETRY] stderr line per search.
type telemetryEvent struct {
	Event               string `json:"event"`
	ToolName            string `json:"tool_name"`
	Profile             string `json:"profile"`
	QueryLength         int    `json:"query_length"`
	LimitRequested      int    `json:"limit_requested"`
	ResultsBeforeFilter int    `json:"results_before_filter"`
	ResultsAfterFilter  int    `json:"results_after_filter"`
	ResultsReturned     int    `json:"results_returned"`
	ExcludedByIgnore    int    `json:"excluded_by_ignore"`
	RerankerUsed        bool   `json:"reranker_used"`
	LatencyMs           int64  `json:"latency_ms"`
	FreshnessMode       string `json:"freshness_mode,omitempty"`
	NoiseHint           bool   `json:"-"`
	Error               string `json:"error,omitempty"`
}

func emitTelemetry(e telemetryEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintln(os.Stderr, "[TELEMETRY] "+string(data))
}
