package splitter

import (
	"context"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// scopeNodeTypes maps tree-sitter node types that should become their own
// chunk to a human-readable scope label, per language.
var scopeNodeTypes = map[string]map[string]string{
	"go": {
		"function_declaration": "function",
		"method_declaration":   "method",
		"type_declaration":     "class",
	},
	"python": {
		"function_definition": "function",
		"class_definition":    "class",
	},
	"javascript": {
		"function_declaration":    "function",
		"method_definition":       "method",
		"class_declaration":       "class",
		"arrow_function":          "function",
		"lexical_declaration":     "module",
	},
	"typescript": {
		"function_declaration": "function",
		"method_definition":    "method",
		"class_declaration":    "class",
		"interface_declaration": "class",
		"arrow_function":       "function",
	},
}

// TreeSitterSplitter carves function/class/method-level chunks out of
// source files using tree-sitter grammars. Parsers are pooled because
// *sitter.Parser is not safe for concurrent use.
type TreeSitterSplitter struct {
	fallback *LineWindowSplitter

	initOnce sync.Once
	goPool   sync.Pool
	pyPool   sync.Pool
	jsPool   sync.Pool
	tsPool   sync.Pool
}

// NewTreeSitterSplitter constructs a TreeSitterSplitter.
func NewTreeSitterSplitter() *TreeSitterSplitter {
	return &TreeSitterSplitter{fallback: NewLineWindowSplitter()}
}

func (s *TreeSitterSplitter) initParsers() {
	s.initOnce.Do(func() {
		s.goPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(golang.GetLanguage())
			return p
		}
		s.pyPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(python.GetLanguage())
			return p
		}
		s.jsPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(javascript.GetLanguage())
			return p
		}
		s.tsPool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(typescript.GetLanguage())
			return p
		}
	})
}

func (s *TreeSitterSplitter) poolFor(language string) *sync.Pool {
	switch language {
	case "go":
		return &s.goPool
	case "python":
		return &s.pyPool
	case "javascript":
		return &s.jsPool
	case "typescript":
		return &s.tsPool
	default:
		return nil
	}
}

func (s *TreeSitterSplitter) Split(path, language string, content []byte) ([]Chunk, error) {
	s.initParsers()

	pool := s.poolFor(language)
	scopeTypes := scopeNodeTypes[language]
	if pool == nil || scopeTypes == nil {
		return s.fallback.Split(path, language, content)
	}

	parser := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return s.fallback.Split(path, language, content)
	}
	defer tree.Close()

	var chunks []Chunk
	collectScopedNodes(tree.RootNode(), scopeTypes, content, path, language, &chunks)

	if len(chunks) == 0 {
		return s.fallback.Split(path, language, content)
	}
	return chunks, nil
}

// collectScopedNodes walks the tree depth-first, emitting a chunk for every
// node whose type is a configured scope boundary, and recursing into
// children so nested functions/methods each get their own chunk too.
func collectScopedNodes(node *sitter.Node, scopeTypes map[string]string, content []byte, path, language string, out *[]Chunk) {
	if node == nil {
		return
	}

	if scope, ok := scopeTypes[node.Type()]; ok {
		start := node.StartPoint()
		end := node.EndPoint()
		*out = append(*out, Chunk{
			Path:      path,
			StartLine: int(start.Row) + 1,
			EndLine:   int(end.Row) + 1,
			Text:      string(content[node.StartByte():node.EndByte()]),
			Scope:     scope,
			Language:  language,
		})
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectScopedNodes(node.Child(i), scopeTypes, content, path, language, out)
	}
}
