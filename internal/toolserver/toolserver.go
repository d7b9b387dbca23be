// Package toolserver implements the tool dispatcher (SPEC_FULL.md component
// I): five public tools (manage_index, search_codebase, call_graph,
// read_file, list_codebases) plus file_outline, each with a declared JSON
// Schema, a description, and an executor that validates arguments, routes to
// a handler, and returns {content:[{type:"text",text}], isError?}.
package toolserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/kraklabs/satori/internal/callgraph"
	"github.com/kraklabs/satori/internal/index"
	"github.com/kraklabs/satori/internal/search"
	"github.com/kraklabs/satori/internal/snapshot"
)

// ContentBlock is one block of a tool result's content array.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is what every tool executor returns.
type Result struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

func textResult(text string) *Result {
	return &Result{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) *Result {
	return &Result{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

// Tool describes one dispatchable tool: its schema and its handler.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Dispatcher wires the tool surface to its concrete backends.
type Dispatcher struct {
	index     *index.Manager
	search    *search.Engine
	callgraph *callgraph.Manager
	snapshot  *snapshot.Store
}

// New constructs a Dispatcher.
func New(idx *index.Manager, eng *search.Engine, cg *callgraph.Manager, snap *snapshot.Store) *Dispatcher {
	return &Dispatcher{index: idx, search: eng, callgraph: cg, snapshot: snap}
}

type toolHandler func(ctx context.Context, d *Dispatcher, args map[string]any) *Result

var handlers = map[string]toolHandler{
	"manage_index":    handleManageIndex,
	"search_codebase": handleSearchCodebase,
	"call_graph":      handleCallGraph,
	"read_file":       handleReadFile,
	"list_codebases":  handleListCodebases,
	"file_outline":    handleFileOutline,
}

// Tools returns the declared tool surface, in a stable order.
func Tools() []Tool {
	return []Tool{
		manageIndexTool,
		searchCodebaseTool,
		callGraphTool,
		readFileTool,
		listCodebasesTool,
		fileOutlineTool,
	}
}

// Call validates args against name's declared schema, routes to its
// handler, and returns the MCP tool-call envelope.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) *Result {
	handler, ok := handlers[name]
	if !ok {
		return errorResult(fmt.Sprintf("Error: Unknown tool %q", name))
	}
	if verrs := validateArgs(name, args); len(verrs) > 0 {
		return errorResult(formatValidationError(name, verrs))
	}
	return handler(ctx, d, args)
}

// argError is one field-level validation failure.
type argError struct {
	path string
	msg  string
}

// formatValidationError renders validation failures as
// "Error: Invalid arguments for '<tool>'. <path>: <msg>; …" (SPEC_FULL.md §4.I).
func formatValidationError(tool string, errs []argError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("%s: %s", e.path, e.msg)
	}
	return fmt.Sprintf("Error: Invalid arguments for '%s'. %s", tool, strings.Join(parts, "; "))
}

func requiredString(args map[string]any, key string) (string, *argError) {
	v, ok := args[key]
	if !ok {
		return "", &argError{path: key, msg: "is required"}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &argError{path: key, msg: "must be a non-empty string"}
	}
	return s, nil
}

func optionalString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func optionalBoolPtr(args map[string]any, key string) *bool {
	if v, ok := args[key].(bool); ok {
		return &v
	}
	return nil
}

func optionalInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func optionalStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
