// Package stdio implements the stdout guard, the MCP JSON-RPC server loop,
// and the CLI bridge session (SPEC_FULL.md component J). It is the only
// package allowed to write to os.Stdout for protocol framing; every other
// package logs exclusively to stderr via internal/logging.
package stdio

import "encoding/json"

const protocolVersion = "2024-11-05"

// request is a JSON-RPC 2.0 request, grounded on the teacher's
// jsonRPCRequest (cmd/cie/mcp.go).
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools map[string]any `json:"tools,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    capabilities `json:"capabilities"`
	ServerInfo      serverInfo   `json:"serverInfo"`
	Instructions    string       `json:"instructions"`
}

type mcpTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []mcpTool `json:"tools"`
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolCallResult is the wire shape every tool call returns: {content, isError?}.
type toolCallResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

const satoriInstructions = `Satori indexes a codebase into a hybrid semantic + keyword search collection plus a call-graph sidecar. Call manage_index with action="create" first, poll action="status" until the text contains "fully indexed", then use search_codebase and call_graph to navigate the code. read_file and file_outline fetch raw content and per-file symbol lists without re-running search.`
