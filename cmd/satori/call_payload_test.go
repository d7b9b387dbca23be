package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/kraklabs/satori/internal/stdio"
)

// captureStderr redirects os.Stderr for the duration of fn and returns
// everything written to it.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("unexpected error creating pipe: %v", err)
	}
	original := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = original }()

	fn()

	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("unexpected error creating pipe: %v", err)
	}
	original := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = original }()

	fn()

	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

// TestReportToolErrorFormatsStatusAndReason is scenario S3: a tool call
// returning {isError:false, content:[{type:"text",
// text:"{\"status\":\"not_ready\",\"reason\":\"indexing\"}"}]} must produce
// a stderr line containing "E_TOOL_ERROR status=not_ready reason=indexing",
// not the raw JSON dumped after the token.
func TestReportToolErrorFormatsStatusAndReason(t *testing.T) {
	payload := stdio.CallToolPayload{Content: []struct {
		Type string
		Text string
	}{{Type: "text", Text: `{"status":"not_ready","reason":"indexing"}`}}}

	var exitCode int
	stderr := captureStderr(t, func() {
		captureStdout(t, func() {
			exitCode = reportToolError(payload)
		})
	})

	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
	want := "E_TOOL_ERROR status=not_ready reason=indexing"
	if !strings.Contains(stderr, want) {
		t.Fatalf("expected stderr to contain %q, got %q", want, stderr)
	}
	if strings.Contains(stderr, `{"status"`) {
		t.Fatalf("expected stderr not to dump the raw JSON payload, got %q", stderr)
	}
}

// TestPrintPayloadWithPollsIncludesPollCount is scenario S4: the CLI's
// final stdout line must contain both "fully indexed" and "polls=N".
func TestPrintPayloadWithPollsIncludesPollCount(t *testing.T) {
	payload := stdio.CallToolPayload{Content: []struct {
		Type string
		Text string
	}{{Type: "text", Text: "✅ 12 files / 40 chunks — fully indexed"}}}

	stdout := captureStdout(t, func() {
		printPayloadWithPolls(payload, 3)
	})

	if !strings.Contains(stdout, "fully indexed") {
		t.Fatalf("expected stdout to contain \"fully indexed\", got %q", stdout)
	}
	if !strings.Contains(stdout, "polls=3") {
		t.Fatalf("expected stdout to contain \"polls=3\", got %q", stdout)
	}
}

func TestIsNotReadyDetectsStatusField(t *testing.T) {
	payload := stdio.CallToolPayload{Content: []struct {
		Type string
		Text string
	}{{Type: "text", Text: `{"status":"not_ready","reason":"indexing"}`}}}
	if !isNotReady(payload) {
		t.Fatal("expected isNotReady to detect the not_ready status field")
	}
}

func TestIsNotReadyFalseForUnrelatedPayload(t *testing.T) {
	payload := stdio.CallToolPayload{Content: []struct {
		Type string
		Text string
	}{{Type: "text", Text: `{"status":"fully indexed"}`}}}
	if isNotReady(payload) {
		t.Fatal("expected isNotReady to be false for an unrelated payload")
	}
}

func TestIsNotReadyFalseForEmptyContent(t *testing.T) {
	if isNotReady(stdio.CallToolPayload{}) {
		t.Fatal("expected isNotReady to be false for empty content")
	}
}
