package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/kraklabs/satori/internal/toolserver"
)

const serverName = "satori"

// Server drives the MCP JSON-RPC-over-stdio protocol loop around a
// toolserver.Dispatcher, grounded on the teacher's serveMCPLoop/handleRequest/
// handleToolCall (cmd/cie/mcp.go): line-delimited JSON-RPC on stdin, one
// response object per line on stdout, everything else on stderr.
type Server struct {
	dispatcher *toolserver.Dispatcher
	version    string
	logger     *slog.Logger
}

func NewServer(dispatcher *toolserver.Dispatcher, version string, logger *slog.Logger) *Server {
	return &Server{dispatcher: dispatcher, version: version, logger: logger}
}

// Serve reads JSON-RPC requests from r and writes responses to w until r is
// exhausted or a read error occurs. w must be the real stdout handle
// captured before any stdout guard is installed.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("invalid_json_rpc_request", "err", err)
			continue
		}

		s.logger.Debug("mcp_request", "method", req.Method)
		resp := s.handle(ctx, req)

		if resp.ID == nil && resp.Result == nil && resp.Error == nil {
			continue
		}

		data, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error("mcp_response_encode_failed", "err", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return err
		}
		if f, ok := w.(interface{ Sync() error }); ok {
			_ = f.Sync()
		}
		s.logger.Debug("mcp_response_sent", "method", req.Method)
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req request) response {
	switch req.Method {
	case "initialize":
		return response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: initializeResult{
				ProtocolVersion: protocolVersion,
				Capabilities:    capabilities{Tools: map[string]any{"listChanged": true}},
				ServerInfo:      serverInfo{Name: serverName, Version: s.version},
				Instructions:    satoriInstructions,
			},
		}

	case "notifications/initialized":
		return response{}

	case "tools/list":
		tools := make([]mcpTool, 0, len(toolserver.Tools()))
		for _, t := range toolserver.Tools() {
			tools = append(tools, mcpTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		return response{JSONRPC: "2.0", ID: req.ID, Result: toolsListResult{Tools: tools}}

	case "tools/call":
		var params toolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "Invalid params", Data: err.Error()}}
		}
		result := s.dispatcher.Call(ctx, params.Name, params.Arguments)
		content := make([]toolContent, 0, len(result.Content))
		for _, c := range result.Content {
			content = append(content, toolContent{Type: c.Type, Text: c.Text})
		}
		return response{JSONRPC: "2.0", ID: req.ID, Result: toolCallResult{Content: content, IsError: result.IsError}}

	default:
		return response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "Method not found", Data: req.Method}}
	}
}
