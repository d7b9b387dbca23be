package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/kraklabs/satori/internal/toolserver"
)

func TestToolsListJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toolserver.Tools()); err != nil {
		t.Fatalf("unexpected error encoding tools: %v", err)
	}

	var decoded []toolserver.Tool
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unexpected error decoding tools: %v", err)
	}
	if len(decoded) != len(toolserver.Tools()) {
		t.Fatalf("expected %d tools, got %d", len(toolserver.Tools()), len(decoded))
	}
}
