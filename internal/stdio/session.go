package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Protocol failure tokens emitted on stderr by the CLI bridge (spec §4.J,
// §6). ExitProtocolFailure is the process exit code paired with
// E_PROTOCOL_FAILURE.
const (
	TokenStartupTimeout  = "E_STARTUP_TIMEOUT"
	TokenCallTimeout     = "E_CALL_TIMEOUT"
	TokenProtocolFailure = "E_PROTOCOL_FAILURE"
	TokenToolError       = "E_TOOL_ERROR"

	ExitProtocolFailure = 3
)

// ProtocolError wraps a CLI bridge protocol-layer failure with its token
// and the exit code the CLI should terminate with.
type ProtocolError struct {
	Token    string
	ExitCode int
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Token, e.Err)
	}
	return e.Token
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SessionOptions configures a CLI bridge Session.
type SessionOptions struct {
	Command          string
	Args             []string
	StartupTimeoutMs int
	CallTimeoutMs    int
	Stderr           io.Writer
}

// Session spawns the Satori binary's own "mcp" server mode as a child
// process and speaks line-delimited JSON-RPC over its stdin/stdout, the
// way the teacher's CLI tool-call mode spawns and drives an embedded
// server in-process but generalized to a real subprocess boundary (spec
// §4.J "CLI session"). Stderr from the child is piped straight through to
// the caller's stderr.
type Session struct {
	opts SessionOptions
	cmd  *exec.Cmd

	stdin  io.WriteCloser
	reader *bufio.Scanner

	nextID  int64
	closeMu sync.Mutex
	closed  bool
}

// Start spawns the child process and performs the initialize handshake,
// bounded by StartupTimeoutMs.
func Start(ctx context.Context, opts SessionOptions) (*Session, error) {
	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	cmd.Stderr = opts.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ProtocolError{Token: TokenProtocolFailure, ExitCode: ExitProtocolFailure, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProtocolError{Token: TokenProtocolFailure, ExitCode: ExitProtocolFailure, Err: err}
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	s := &Session{opts: opts, cmd: cmd, stdin: stdin, reader: scanner}

	if err := cmd.Start(); err != nil {
		return nil, &ProtocolError{Token: TokenProtocolFailure, ExitCode: ExitProtocolFailure, Err: err}
	}

	startupTimeout := durationOrDefault(opts.StartupTimeoutMs, 10_000)
	result := make(chan error, 1)
	go func() {
		_, err := s.roundTrip("initialize", map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{},
		})
		result <- err
	}()

	select {
	case err := <-result:
		if err != nil {
			_ = s.Close()
			return nil, &ProtocolError{Token: TokenStartupTimeout, ExitCode: ExitProtocolFailure, Err: err}
		}
		return s, nil
	case <-time.After(startupTimeout):
		_ = s.Close()
		return nil, &ProtocolError{Token: TokenStartupTimeout, ExitCode: ExitProtocolFailure, Err: fmt.Errorf("server did not respond to initialize within %s", startupTimeout)}
	}
}

// Call invokes a tool, bounded by CallTimeoutMs, and returns the decoded
// {content, isError} result.
func (s *Session) Call(ctx context.Context, name string, args map[string]any) (CallToolPayload, error) {
	callTimeout := durationOrDefault(s.opts.CallTimeoutMs, 30_000)

	type outcome struct {
		payload CallToolPayload
		err     error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		raw, err := s.roundTrip("tools/call", toolCallParams{Name: name, Arguments: args})
		if err != nil {
			resultCh <- outcome{err: err}
			return
		}
		payload, ok := isCallToolPayload(raw)
		if !ok {
			resultCh <- outcome{err: fmt.Errorf("response is not a valid call-tool payload")}
			return
		}
		resultCh <- outcome{payload: payload}
	}()

	select {
	case o := <-resultCh:
		if o.err != nil {
			return CallToolPayload{}, &ProtocolError{Token: TokenProtocolFailure, ExitCode: ExitProtocolFailure, Err: o.err}
		}
		return o.payload, nil
	case <-time.After(callTimeout):
		return CallToolPayload{}, &ProtocolError{Token: TokenCallTimeout, ExitCode: ExitProtocolFailure, Err: fmt.Errorf("tool %q did not respond within %s", name, callTimeout)}
	case <-ctx.Done():
		return CallToolPayload{}, &ProtocolError{Token: TokenCallTimeout, ExitCode: ExitProtocolFailure, Err: ctx.Err()}
	}
}

// PollUntilIndexed implements the manage_index special case (spec §4.J):
// the CLI polls action:status on path until the text contains "fully
// indexed", subject to CallTimeoutMs on each poll. polls is the number of
// action:status calls made, including the one that returned the final
// payload — reported by the CLI as "polls=N" alongside the result text.
func (s *Session) PollUntilIndexed(ctx context.Context, path string, pollInterval time.Duration) (payload CallToolPayload, polls int, err error) {
	for {
		polls++
		payload, err = s.Call(ctx, "manage_index", map[string]any{"action": "status", "path": path})
		if err != nil {
			return CallToolPayload{}, polls, err
		}
		if len(payload.Content) > 0 && strings.Contains(payload.Content[0].Text, "fully indexed") {
			return payload, polls, nil
		}
		select {
		case <-ctx.Done():
			return CallToolPayload{}, polls, &ProtocolError{Token: TokenCallTimeout, ExitCode: ExitProtocolFailure, Err: ctx.Err()}
		case <-time.After(pollInterval):
		}
	}
}

func (s *Session) roundTrip(method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&s.nextID, 1)
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req := request{JSONRPC: "2.0", ID: id, Method: method, Params: paramsJSON}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(s.stdin, "%s\n", line); err != nil {
		return nil, err
	}

	if !s.reader.Scan() {
		if err := s.reader.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("server closed stdout without responding")
	}

	var resp response
	if err := json.Unmarshal(s.reader.Bytes(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	return json.Marshal(resp.Result)
}

// Close terminates the child process and releases its pipes.
func (s *Session) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}

func durationOrDefault(ms int, fallback int) time.Duration {
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}
