// Package callgraph builds and queries the call-graph sidecar (SPEC_FULL.md
// component H): a JSON file of symbol definitions and call edges derived
// from tree-sitter parses of supported-source files, kept separate from the
// embedding index so it can be rebuilt independently and queried by BFS.
package callgraph

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/satori/internal/errs"
	"github.com/kraklabs/satori/internal/merkle"
	"github.com/kraklabs/satori/internal/pathutil"
)

// NodeKind classifies a definition extracted from source.
type NodeKind string

const (
	NodeFunction NodeKind = "function"
	NodeMethod   NodeKind = "method"
	NodeClass    NodeKind = "class"
)

// Node is one symbol definition.
type Node struct {
	SymbolID  string   `json:"symbolId"`
	Name      string   `json:"name"`
	Kind      NodeKind `json:"kind"`
	File      string   `json:"file"`
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
}

// EdgeKind classifies an edge between two nodes.
type EdgeKind string

const (
	EdgeCalls EdgeKind = "calls"
)

// Site locates where an edge's call expression occurs.
type Site struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
}

// Edge is a resolved call from one symbol to another.
type Edge struct {
	SrcSymbolID string   `json:"srcSymbolId"`
	DstSymbolID string   `json:"dstSymbolId"`
	Kind        EdgeKind `json:"kind"`
	Site        Site     `json:"site"`
}

// NoteType classifies a diagnostic note attached to the sidecar.
type NoteType string

const (
	NoteMissingSymbolMetadata NoteType = "missing_symbol_metadata"
	NoteUnresolvedEdge        NoteType = "unresolved_edge"
	NoteDynamicEdge           NoteType = "dynamic_edge"
)

// Note is a diagnostic attached to the sidecar for a construct the builder
// could not fully resolve.
type Note struct {
	File      string   `json:"file"`
	StartLine int      `json:"startLine"`
	Type      NoteType `json:"type"`
	Message   string   `json:"message,omitempty"`
}

// Sidecar is the persisted call-graph artifact for one codebase.
type Sidecar struct {
	CodebasePath string    `json:"codebasePath"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Nodes        []Node    `json:"nodes"`
	Edges        []Edge    `json:"edges"`
	Notes        []Note    `json:"notes"`
}

// supportedExtensions maps extension to tree-sitter language name.
var supportedExtensions = map[string]string{
	".go":  "go",
	".py":  "python",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
}

// scopeNodeTypes mirrors internal/splitter's definition-node classification,
// kept independent so callgraph can evolve its own symbol granularity.
var scopeNodeTypes = map[string]map[string]NodeKind{
	"go": {
		"function_declaration": NodeFunction,
		"method_declaration":   NodeMethod,
	},
	"python": {
		"function_definition": NodeFunction,
		"class_definition":    NodeClass,
	},
	"javascript": {
		"function_declaration": NodeFunction,
		"method_definition":    NodeMethod,
		"class_declaration":    NodeClass,
	},
	"typescript": {
		"function_declaration": NodeFunction,
		"method_definition":    NodeMethod,
		"class_declaration":    NodeClass,
	},
}

// callNodeType is the tree-sitter node type representing a call expression,
// per language.
var callNodeType = map[string]string{
	"go":         "call_expression",
	"python":     "call",
	"javascript": "call_expression",
	"typescript": "call_expression",
}

func languageFor(name string) *sitter.Language {
	switch name {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	default:
		return nil
	}
}

// Manager rebuilds and queries call-graph sidecars under sidecarDir
// (e.g. ~/.context/call-graph).
type Manager struct {
	sidecarDir string
}

// New constructs a Manager.
func New(sidecarDir string) *Manager {
	return &Manager{sidecarDir: sidecarDir}
}

func (m *Manager) sidecarPath(codebasePath string) string {
	canonical, err := pathutil.Canonicalize(codebasePath)
	if err != nil {
		canonical = codebasePath
	}
	sum := md5.Sum([]byte(canonical))
	return filepath.Join(m.sidecarDir, hex.EncodeToString(sum[:])[:8]+".sidecar.json")
}

func symbolID(file, name string, startLine, endLine int) string {
	h := sha256.New()
	h.Write([]byte(file))
	h.Write([]byte{'|'})
	h.Write([]byte(name))
	h.Write([]byte{'|'})
	fmt.Fprintf(h, "%d-%d", startLine, endLine)
	return "fn:" + hex.EncodeToString(h.Sum(nil))[:16]
}

type definition struct {
	node     *sitter.Node
	name     string
	kind     NodeKind
	symbolID string
}

// RebuildForCodebase walks path's supported-source files, extracts symbol
// definitions and call edges, and writes the sidecar atomically.
func (m *Manager) RebuildForCodebase(ctx context.Context, path string) error {
	canonicalPath, err := pathutil.Canonicalize(path)
	if err != nil {
		return errs.NewInputError("Invalid codebase path", err.Error(), "")
	}

	matcher := merkle.NewMatcher(canonicalPath, nil)
	var files []string
	err = filepath.Walk(canonicalPath, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, relErr := filepath.Rel(canonicalPath, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel) {
			return nil
		}
		if _, ok := supportedExtensions[filepath.Ext(rel)]; ok {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return errs.NewInternalError("Cannot scan codebase for call-graph rebuild", canonicalPath, "", err)
	}
	sort.Strings(files)

	nodesByName := map[string]string{} // name -> first symbolId (deterministic by sorted file order)
	var nodes []Node
	var notes []Note
	perFileDefs := map[string][]definition{}
	perFileContent := map[string][]byte{}

	for _, rel := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lang := supportedExtensions[filepath.Ext(rel)]
		content, readErr := os.ReadFile(filepath.Join(canonicalPath, rel))
		if readErr != nil {
			continue
		}
		tree, parseErr := parse(lang, content)
		if parseErr != nil || tree == nil {
			continue
		}
		perFileContent[rel] = content

		defs := collectDefinitions(tree.RootNode(), lang, rel, content, &notes)
		perFileDefs[rel] = defs
		for _, d := range defs {
			nodes = append(nodes, Node{
				SymbolID:  d.symbolID,
				Name:      d.name,
				Kind:      d.kind,
				File:      rel,
				StartLine: int(d.node.StartPoint().Row) + 1,
				EndLine:   int(d.node.EndPoint().Row) + 1,
			})
			if _, exists := nodesByName[d.name]; !exists {
				nodesByName[d.name] = d.symbolID
			}
		}
	}

	var edges []Edge
	for rel, defs := range perFileDefs {
		content := perFileContent[rel]
		lang := supportedExtensions[filepath.Ext(rel)]
		callType := callNodeType[lang]
		for _, d := range defs {
			edges = append(edges, collectCalls(d, callType, content, rel, nodesByName, &notes)...)
		}
	}

	edges = dedupeEdges(edges)
	sortEdges(edges)
	sortNotes(notes)
	sortNodes(nodes)

	sidecar := Sidecar{
		CodebasePath: canonicalPath,
		GeneratedAt:  time.Now().UTC(),
		Nodes:        nodes,
		Edges:        edges,
		Notes:        notes,
	}
	return m.writeSidecar(canonicalPath, sidecar)
}

func parse(lang string, content []byte) (*sitter.Tree, error) {
	language := languageFor(lang)
	if language == nil {
		return nil, fmt.Errorf("unsupported language %q", lang)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(language)
	return parser.ParseCtx(context.Background(), nil, content)
}

// collectDefinitions walks the tree and returns one definition per matching
// scope node, skipping anonymous constructs (emitted as missing_symbol_metadata).
func collectDefinitions(root *sitter.Node, lang, file string, content []byte, notes *[]Note) []definition {
	var out []definition
	types := scopeNodeTypes[lang]
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if kind, ok := types[n.Type()]; ok {
			name := nodeName(n, content)
			startLine := int(n.StartPoint().Row) + 1
			if name == "" {
				*notes = append(*notes, Note{
					File:      file,
					StartLine: startLine,
					Type:      NoteMissingSymbolMetadata,
					Message:   "anonymous " + string(kind) + " has no stable name",
				})
			} else {
				out = append(out, definition{
					node:     n,
					name:     name,
					kind:     kind,
					symbolID: symbolID(file, name, startLine, int(n.EndPoint().Row)+1),
				})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return out
}

func nodeName(n *sitter.Node, content []byte) string {
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		return string(content[nameNode.StartByte():nameNode.EndByte()])
	}
	return ""
}

// collectCalls walks a definition's body for call expressions, resolving
// each callee against nodesByName (same pattern as the Go ingestion
// pipeline's funcNameToID resolution, generalized codebase-wide).
func collectCalls(d definition, callType string, content []byte, file string, nodesByName map[string]string, notes *[]Note) []Edge {
	var edges []Edge
	seen := map[string]bool{}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == callType {
			processCall(n, content, d, file, nodesByName, &edges, seen, notes)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(d.node)
	return edges
}

func processCall(call *sitter.Node, content []byte, caller definition, file string, nodesByName map[string]string, edges *[]Edge, seen map[string]bool, notes *[]Note) {
	funcNode := call.ChildByFieldName("function")
	if funcNode == nil {
		return
	}
	callLine := int(call.StartPoint().Row) + 1

	switch funcNode.Type() {
	case "identifier":
		name := string(content[funcNode.StartByte():funcNode.EndByte()])
		resolveOrNote(name, caller, file, callLine, nodesByName, edges, seen, notes)
	case "selector_expression", "attribute", "member_expression":
		// Dynamic/indirect dispatch through a receiver or object: resolve by
		// the trailing field name if it happens to name a known symbol,
		// otherwise record as dynamic (not unresolved — it is a real
		// reference, just not statically resolvable to one definition).
		fieldNode := funcNode.ChildByFieldName("field")
		if fieldNode == nil {
			fieldNode = funcNode.ChildByFieldName("attribute")
		}
		if fieldNode == nil {
			fieldNode = funcNode.ChildByFieldName("property")
		}
		name := ""
		if fieldNode != nil {
			name = string(content[fieldNode.StartByte():fieldNode.EndByte()])
		}
		if name != "" {
			if dstID, ok := nodesByName[name]; ok && dstID != caller.symbolID {
				addEdge(edges, seen, caller.symbolID, dstID, file, callLine)
				return
			}
		}
		*notes = append(*notes, Note{File: file, StartLine: callLine, Type: NoteDynamicEdge, Message: "indirect call through a receiver/object"})
	default:
		// Unparseable callee shape (e.g. immediately-invoked expression).
	}
}

func resolveOrNote(name string, caller definition, file string, callLine int, nodesByName map[string]string, edges *[]Edge, seen map[string]bool, notes *[]Note) {
	dstID, ok := nodesByName[name]
	if !ok {
		*notes = append(*notes, Note{File: file, StartLine: callLine, Type: NoteUnresolvedEdge, Message: "call to \"" + name + "\" has no known definition"})
		return
	}
	if dstID == caller.symbolID {
		return // declaration self-loop suppressed
	}
	addEdge(edges, seen, caller.symbolID, dstID, file, callLine)
}

func addEdge(edges *[]Edge, seen map[string]bool, src, dst, file string, line int) {
	key := src + "->" + dst + "@" + file + fmt.Sprintf(":%d", line)
	if seen[key] {
		return
	}
	seen[key] = true
	*edges = append(*edges, Edge{SrcSymbolID: src, DstSymbolID: dst, Kind: EdgeCalls, Site: Site{File: file, StartLine: line}})
}

func dedupeEdges(edges []Edge) []Edge {
	seen := map[string]bool{}
	var out []Edge
	for _, e := range edges {
		key := fmt.Sprintf("%s->%s|%s|%d", e.SrcSymbolID, e.DstSymbolID, e.Kind, e.Site.StartLine)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.SrcSymbolID != b.SrcSymbolID {
			return a.SrcSymbolID < b.SrcSymbolID
		}
		if a.DstSymbolID != b.DstSymbolID {
			return a.DstSymbolID < b.DstSymbolID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Site.StartLine < b.Site.StartLine
	})
}

func sortNotes(notes []Note) {
	sort.Slice(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.Type < b.Type
	})
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].File != nodes[j].File {
			return nodes[i].File < nodes[j].File
		}
		return nodes[i].StartLine < nodes[j].StartLine
	})
}

func (m *Manager) writeSidecar(codebasePath string, sidecar Sidecar) error {
	if err := os.MkdirAll(m.sidecarDir, 0o755); err != nil {
		return errs.NewDatabaseError("Cannot create call-graph directory", m.sidecarDir, "", err)
	}
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return errs.NewInternalError("Cannot encode call-graph sidecar", "", "", err)
	}
	tmp, err := os.CreateTemp(m.sidecarDir, ".sidecar-*.tmp")
	if err != nil {
		return errs.NewDatabaseError("Cannot write call-graph sidecar", "", "", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errs.NewDatabaseError("Cannot write call-graph sidecar", "", "", err)
	}
	tmp.Close()
	return os.Rename(tmp.Name(), m.sidecarPath(codebasePath))
}

func (m *Manager) loadSidecar(codebasePath string) (*Sidecar, error) {
	data, err := os.ReadFile(m.sidecarPath(codebasePath))
	if err != nil {
		return nil, err
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Direction selects which edges queryGraph traverses from the start node.
type Direction string

const (
	DirectionCallers Direction = "callers"
	DirectionCallees Direction = "callees"
	DirectionBoth    Direction = "both"
)

// NormalizeDirection rewrites the "bidirectional" synonym to "both" before
// schema validation, per SPEC_FULL.md §4.H.
func NormalizeDirection(raw string) string {
	if raw == "bidirectional" {
		return string(DirectionBoth)
	}
	return raw
}

// QueryOptions parameterizes queryGraph.
type QueryOptions struct {
	Direction Direction
	Depth     int
	Limit     int
}

// QueryResult is the outcome of a graph query.
type QueryResult struct {
	Supported bool
	Reason    string
	Hints     map[string]string
	Nodes     []Node
	Edges     []Edge
	Notes     []Note
}

// QueryGraph loads path's sidecar and BFS-traverses from the node matching
// symbolRef up to opts.Depth hops in opts.Direction, collecting up to
// opts.Limit nodes.
func (m *Manager) QueryGraph(ctx context.Context, path, symbolRef string, opts QueryOptions) (QueryResult, error) {
	canonicalPath, err := pathutil.Canonicalize(path)
	if err != nil {
		return QueryResult{}, errs.NewInputError("Invalid codebase path", err.Error(), "")
	}

	if ext := filepath.Ext(symbolRef); ext != "" {
		if _, ok := supportedExtensions[ext]; !ok {
			return QueryResult{
				Supported: false,
				Reason:    "unsupported_language",
				Hints:     map[string]string{"extension": ext, "supported": ".go, .py, .js, .jsx, .ts, .tsx"},
			}, nil
		}
	}

	sidecar, err := m.loadSidecar(canonicalPath)
	if err != nil {
		return QueryResult{}, errs.NewInputError(
			"No call-graph sidecar found",
			canonicalPath,
			"Run manage_index action=create (or sync) first to build the call graph",
		)
	}

	start := findNode(sidecar.Nodes, symbolRef)
	if start == nil {
		return QueryResult{}, errs.NewInputError("Symbol not found", symbolRef, "Check the symbol name or symbolId and try again")
	}

	byID := map[string]Node{}
	for _, n := range sidecar.Nodes {
		byID[n.SymbolID] = n
	}
	outgoing := map[string][]Edge{}
	incoming := map[string][]Edge{}
	for _, e := range sidecar.Edges {
		outgoing[e.SrcSymbolID] = append(outgoing[e.SrcSymbolID], e)
		incoming[e.DstSymbolID] = append(incoming[e.DstSymbolID], e)
	}

	depth := opts.Depth
	if depth <= 0 {
		depth = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	visited := map[string]bool{start.SymbolID: true}
	queue := []string{start.SymbolID}
	var resultNodes []Node
	var resultEdges []Edge
	resultNodes = append(resultNodes, *start)

	for hop := 0; hop < depth && len(queue) > 0 && len(resultNodes) < limit; hop++ {
		var next []string
		for _, id := range queue {
			var candidates []Edge
			if opts.Direction == DirectionCallees || opts.Direction == DirectionBoth {
				candidates = append(candidates, outgoing[id]...)
			}
			if opts.Direction == DirectionCallers || opts.Direction == DirectionBoth {
				candidates = append(candidates, incoming[id]...)
			}
			for _, e := range candidates {
				other := e.DstSymbolID
				if other == id {
					other = e.SrcSymbolID
				}
				resultEdges = append(resultEdges, e)
				if !visited[other] {
					visited[other] = true
					if node, ok := byID[other]; ok {
						resultNodes = append(resultNodes, node)
					}
					next = append(next, other)
					if len(resultNodes) >= limit {
						break
					}
				}
			}
			if len(resultNodes) >= limit {
				break
			}
		}
		queue = next
	}

	resultEdges = dedupeEdges(resultEdges)
	sortEdges(resultEdges)
	sortNodes(resultNodes)

	var relevantNotes []Note
	relevantFiles := map[string]bool{}
	for _, n := range resultNodes {
		relevantFiles[n.File] = true
	}
	for _, note := range sidecar.Notes {
		if relevantFiles[note.File] {
			relevantNotes = append(relevantNotes, note)
		}
	}
	sortNotes(relevantNotes)

	return QueryResult{
		Supported: true,
		Nodes:     resultNodes,
		Edges:     resultEdges,
		Notes:     relevantNotes,
	}, nil
}

// FileOutline returns the sidecar nodes defined in relativePath, ordered by
// startLine, for the file_outline tool (SPEC_FULL.md §4.I+). It reuses the
// same sidecar RebuildForCodebase already produces rather than running a
// separate parse pass.
func (m *Manager) FileOutline(path, relativePath string) ([]Node, error) {
	canonicalPath, err := pathutil.Canonicalize(path)
	if err != nil {
		return nil, errs.NewInputError("Invalid codebase path", err.Error(), "")
	}
	sidecar, err := m.loadSidecar(canonicalPath)
	if err != nil {
		return nil, errs.NewInputError(
			"No call-graph sidecar found",
			canonicalPath,
			"Run manage_index action=create (or sync) first to build the call graph",
		)
	}
	rel := filepath.ToSlash(relativePath)
	var out []Node
	for _, n := range sidecar.Nodes {
		if n.File == rel {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out, nil
}

func findNode(nodes []Node, ref string) *Node {
	for i := range nodes {
		if nodes[i].SymbolID == ref {
			return &nodes[i]
		}
	}
	var matches []*Node
	for i := range nodes {
		if nodes[i].Name == ref {
			matches = append(matches, &nodes[i])
		}
	}
	if len(matches) == 1 {
		return matches[0]
	}
	if len(matches) > 1 {
		sort.Slice(matches, func(i, j int) bool {
			if matches[i].File != matches[j].File {
				return matches[i].File < matches[j].File
			}
			return matches[i].StartLine < matches[j].StartLine
		})
		return matches[0]
	}
	return nil
}
