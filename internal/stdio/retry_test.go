package stdio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasRetryableProtocolSignature(t *testing.T) {
	cases := map[string]bool{
		"boom: E_PROTOCOL_FAILURE occurred":  true,
		"timeout: E_STARTUP_TIMEOUT":         true,
		"E_CALL_TIMEOUT hit":                 true,
		"MCP error -32000":                   true,
		"Request timed out waiting for pong": true,
		"[STDOUT_BLOCKED_BINARY len=128]":    true,
		"nothing unusual here":               false,
	}
	for text, want := range cases {
		assert.Equal(t, want, hasRetryableProtocolSignature(text), "text=%q", text)
	}
}

func TestClassifyRetryEligibilityValidResponse(t *testing.T) {
	payload := `{"content":[{"type":"text","text":"{\"status\":\"ok\"}"}]}`
	got := ClassifyRetryEligibility(RetryInput{ParsedPayload: json.RawMessage(payload)})
	assert.Equal(t, RetryEligibility{Retryable: false, Reason: "valid_response"}, got)
}

func TestClassifyRetryEligibilityManageIndexBlocked(t *testing.T) {
	got := ClassifyRetryEligibility(RetryInput{
		ToolName: "manage_index",
		Stderr:   "E_CALL_TIMEOUT while waiting",
	})
	assert.Equal(t, RetryEligibility{Retryable: false, Reason: "manage_index_retry_blocked"}, got)
}

func TestClassifyRetryEligibilityManageIndexStartupTimeoutAllowed(t *testing.T) {
	got := ClassifyRetryEligibility(RetryInput{
		ToolName: "manage_index",
		Stderr:   "E_STARTUP_TIMEOUT while waiting",
	})
	assert.Equal(t, RetryEligibility{Retryable: true, Reason: "protocol_retry_allowed"}, got)
}

func TestClassifyRetryEligibilityOtherToolRetryable(t *testing.T) {
	got := ClassifyRetryEligibility(RetryInput{
		ToolName: "search_codebase",
		Stderr:   "E_CALL_TIMEOUT while waiting",
	})
	assert.Equal(t, RetryEligibility{Retryable: true, Reason: "protocol_retry_allowed"}, got)
}

func TestClassifyRetryEligibilityNoSignature(t *testing.T) {
	got := ClassifyRetryEligibility(RetryInput{Stderr: "totally unrelated failure"})
	assert.Equal(t, RetryEligibility{Retryable: false, Reason: "no_signature"}, got)
}

func TestIsCallToolPayloadRejectsNonTextContent(t *testing.T) {
	_, ok := isCallToolPayload(json.RawMessage(`{"content":[{"type":"image","text":""}]}`))
	assert.False(t, ok)
}
