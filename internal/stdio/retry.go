package stdio

import (
	"encoding/json"
	"regexp"
	"strings"
)

var retryableSignature = regexp.MustCompile(`E_PROTOCOL_FAILURE|E_STARTUP_TIMEOUT|E_CALL_TIMEOUT|MCP error -?\d+|Request timed out|\[STDOUT_BLOCKED_BINARY len=`)

// hasRetryableProtocolSignature reports whether text carries one of the
// known protocol-failure markers the CLI bridge treats as transient.
func hasRetryableProtocolSignature(text string) bool {
	return retryableSignature.MatchString(text)
}

// envelope is the minimal shape a tool-call payload's first JSON object in
// content[0].text is expected to have.
type envelope struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// extractEnvelopeStatus returns the status field of the first JSON object
// inside payload's content[0].text, or "" if it isn't parseable.
func extractEnvelopeStatus(payload CallToolPayload) string {
	status, _ := ExtractEnvelope(payload)
	return status
}

// ExtractEnvelope returns the status and reason fields of the first JSON
// object inside payload's content[0].text, or "" for either that isn't
// present or isn't parseable. Used to format the E_TOOL_ERROR stderr line
// (spec.md §6's "status=<status> reason=<reason>" form).
func ExtractEnvelope(payload CallToolPayload) (status, reason string) {
	if len(payload.Content) == 0 {
		return "", ""
	}
	var env envelope
	if err := json.Unmarshal([]byte(payload.Content[0].Text), &env); err != nil {
		return "", ""
	}
	return env.Status, env.Reason
}

// CallToolPayload mirrors the {isError, content:[{type,text}]} shape the
// CLI bridge receives back from a tools/call response.
type CallToolPayload struct {
	IsError bool `json:"isError"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// isCallToolPayload reports whether raw decodes into the call-tool payload
// shape (content is an array of {type:"text", text:string} blocks).
func isCallToolPayload(raw json.RawMessage) (CallToolPayload, bool) {
	var payload CallToolPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CallToolPayload{}, false
	}
	for _, c := range payload.Content {
		if c.Type != "text" {
			return CallToolPayload{}, false
		}
	}
	return payload, true
}

// RetryEligibility is the result of classifyRetryEligibility.
type RetryEligibility struct {
	Retryable bool
	Reason    string
}

// RetryInput bundles the observations classifyRetryEligibility needs.
type RetryInput struct {
	CommandType   string
	ToolName      string
	ExitCode      int
	Stderr        string
	ParsedPayload json.RawMessage
}

// ClassifyRetryEligibility decides whether the CLI bridge should retry a
// failed tool/call attempt (spec §4.J). Pure function: given identical
// input it always returns the same verdict.
func ClassifyRetryEligibility(in RetryInput) RetryEligibility {
	if payload, ok := isCallToolPayload(in.ParsedPayload); ok {
		if status := extractEnvelopeStatus(payload); status != "" {
			return RetryEligibility{Retryable: false, Reason: "valid_response"}
		}
	}

	if hasRetryableProtocolSignature(in.Stderr) {
		if in.ToolName == "manage_index" && !strings.Contains(in.Stderr, "E_STARTUP_TIMEOUT") {
			return RetryEligibility{Retryable: false, Reason: "manage_index_retry_blocked"}
		}
		return RetryEligibility{Retryable: true, Reason: "protocol_retry_allowed"}
	}

	return RetryEligibility{Retryable: false, Reason: "no_signature"}
}
