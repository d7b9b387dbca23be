package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kraklabs/satori/internal/stdio"
)

const maxBridgeRetries = 1

// runToolCall implements the CLI's one-shot tool-invocation surface:
// spawn this same binary in "mcp" mode as a child process (the CLI
// session, spec §4.J), call toolName once with args parsed from the
// "--field value" flags, print content[0].text to stdout, and exit 0 on
// success, 1 on a tool error, 3 on protocol failure. manage_index's
// create/reindex actions get the special-case polling treatment. A
// protocol-layer failure is retried once if classifyRetryEligibility says
// it's eligible (spec §4.J); anything else is surfaced immediately.
func runToolCall(flags wrapperFlags, toolName string, rawArgs []string) int {
	args, err := parseToolArgs(rawArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	sessionOpts := stdio.SessionOptions{
		Command:          os.Args[0],
		Args:             []string{"--config", flags.ConfigPath, "mcp"},
		StartupTimeoutMs: flags.StartupTimeoutMs,
		CallTimeoutMs:    flags.CallTimeoutMs,
		Stderr:           os.Stderr,
	}

	// One session (one child "mcp" server process) is kept open across the
	// initial call and, for manage_index create/reindex, every status poll:
	// the background indexing goroutine lives inside that child process, so
	// closing the session and respawning a new one would abandon it.
	var (
		session *stdio.Session
		payload stdio.CallToolPayload
	)
	for attempt := 0; ; attempt++ {
		session, err = stdio.Start(ctx, sessionOpts)
		if err == nil {
			payload, err = session.Call(ctx, toolName, args)
		}
		if err == nil || attempt >= maxBridgeRetries || !retryEligible(toolName, err) {
			break
		}
		if session != nil {
			session.Close()
		}
	}
	if err != nil {
		return reportProtocolError(err)
	}
	defer session.Close()

	if toolName == "manage_index" {
		if action, _ := args["action"].(string); action == "create" || action == "reindex" {
			if payload.IsError || isNotReady(payload) {
				return reportToolError(payload)
			}

			path, _ := args["path"].(string)
			final, polls, err := session.PollUntilIndexed(ctx, path, 2*time.Second)
			if err != nil {
				return reportProtocolError(err)
			}
			printPayloadWithPolls(final, polls)
			return 0
		}
	}

	if payload.IsError {
		return reportToolError(payload)
	}

	printPayload(payload)
	return 0
}

// retryEligible consults the protocol-failure retry classifier (spec
// §4.J's classifyRetryEligibility) for a failed session start/call.
func retryEligible(toolName string, err error) bool {
	protoErr, ok := err.(*stdio.ProtocolError)
	if !ok {
		return false
	}
	verdict := stdio.ClassifyRetryEligibility(stdio.RetryInput{
		CommandType: "tool_call",
		ToolName:    toolName,
		ExitCode:    protoErr.ExitCode,
		Stderr:      protoErr.Error(),
	})
	return verdict.Retryable
}

func isNotReady(payload stdio.CallToolPayload) bool {
	status, _ := stdio.ExtractEnvelope(payload)
	return status == "not_ready"
}

func printPayload(payload stdio.CallToolPayload) {
	if len(payload.Content) > 0 {
		fmt.Println(payload.Content[0].Text)
	}
}

// printPayloadWithPolls prints the final status text followed by the poll
// count (spec scenario S4: stdout must contain both "fully indexed" and
// "polls=N").
func printPayloadWithPolls(payload stdio.CallToolPayload, polls int) {
	if len(payload.Content) > 0 {
		fmt.Printf("%s polls=%d\n", payload.Content[0].Text, polls)
		return
	}
	fmt.Printf("polls=%d\n", polls)
}

// reportToolError prints the E_TOOL_ERROR stderr line in the
// "status=<status> reason=<reason>" form spec §6/scenario S3 require, then
// echoes the raw payload text to stdout.
func reportToolError(payload stdio.CallToolPayload) int {
	text := ""
	if len(payload.Content) > 0 {
		text = payload.Content[0].Text
	}
	status, reason := stdio.ExtractEnvelope(payload)
	fmt.Fprintf(os.Stderr, "%s status=%s reason=%s\n", stdio.TokenToolError, status, reason)
	fmt.Println(text)
	return 1
}

func reportProtocolError(err error) int {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	return stdio.ExitProtocolFailure
}

// parseToolArgs turns CLI flags into the map[string]any a tool call
// expects. "--field value" becomes a string field; a bare "--field" (no
// following value, or followed by another flag) becomes args.field=true —
// this is how "--debug" forwards into tool arguments per spec §4.J's
// wrapper flag passthrough rule. Values that parse as numbers or booleans
// are coerced accordingly so numeric/boolean tool fields still type-check
// against the JSON Schema.
func parseToolArgs(rawArgs []string) (map[string]any, error) {
	args := map[string]any{}
	i := 0
	for i < len(rawArgs) {
		tok := rawArgs[i]
		if !strings.HasPrefix(tok, "--") {
			return nil, fmt.Errorf("unexpected argument %q (expected --field value)", tok)
		}
		field := strings.TrimPrefix(tok, "--")
		i++

		if i >= len(rawArgs) || strings.HasPrefix(rawArgs[i], "--") {
			args[field] = true
			continue
		}
		args[field] = coerceArgValue(rawArgs[i])
		i++
	}
	return args, nil
}

func coerceArgValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
