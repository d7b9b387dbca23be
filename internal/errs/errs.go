// Package errs provides structured, user-facing error values for Satori.
//
// Every error surfaced to a human or to an MCP tool caller carries a title,
// a detail explaining what went wrong, and a suggestion for what to do about
// it. This mirrors the title/detail/suggestion shape exercised throughout
// the teacher codebase's cmd/cie package (errors.NewConfigError(...).Format).
package errs

import (
	"encoding/json"
	"fmt"
)

// Category classifies a UserError for exit-code and retry-policy purposes.
type Category string

const (
	CategoryInput    Category = "input"    // schema/argument validation failures
	CategoryConfig   Category = "config"   // configuration/capacity errors
	CategoryDatabase Category = "database" // vector store / persistence errors
	CategoryInternal Category = "internal" // bugs, should never happen
	CategoryProtocol Category = "protocol" // stdio/child-process framing failures
)

// UserError is a structured error with a human-facing explanation.
type UserError struct {
	Category   Category
	Title      string
	Detail     string
	Suggestion string
	Cause      error
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func (e *UserError) Unwrap() error { return e.Cause }

// Format renders the error either as a plain-text block (for stderr/CLI) or
// as a JSON object (for MCP tool-error payloads).
func (e *UserError) Format(asJSON bool) string {
	if asJSON {
		payload := map[string]string{
			"category":   string(e.Category),
			"title":      e.Title,
			"detail":     e.Detail,
			"suggestion": e.Suggestion,
		}
		if e.Cause != nil {
			payload["cause"] = e.Cause.Error()
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return e.Error()
		}
		return string(b)
	}

	out := fmt.Sprintf("Error: %s\n  %s", e.Title, e.Detail)
	if e.Cause != nil {
		out += fmt.Sprintf("\n  Cause: %v", e.Cause)
	}
	if e.Suggestion != "" {
		out += fmt.Sprintf("\n  Suggestion: %s", e.Suggestion)
	}
	return out
}

// NewInputError builds a CategoryInput UserError.
func NewInputError(title, detail, suggestion string) *UserError {
	return &UserError{Category: CategoryInput, Title: title, Detail: detail, Suggestion: suggestion}
}

// NewConfigError builds a CategoryConfig UserError.
func NewConfigError(title, detail, suggestion string, cause error) *UserError {
	return &UserError{Category: CategoryConfig, Title: title, Detail: detail, Suggestion: suggestion, Cause: cause}
}

// NewDatabaseError builds a CategoryDatabase UserError.
func NewDatabaseError(title, detail, suggestion string, cause error) *UserError {
	return &UserError{Category: CategoryDatabase, Title: title, Detail: detail, Suggestion: suggestion, Cause: cause}
}

// NewInternalError builds a CategoryInternal UserError.
func NewInternalError(title, detail, suggestion string, cause error) *UserError {
	return &UserError{Category: CategoryInternal, Title: title, Detail: detail, Suggestion: suggestion, Cause: cause}
}

// NewProtocolError builds a CategoryProtocol UserError.
func NewProtocolError(title, detail string, cause error) *UserError {
	return &UserError{Category: CategoryProtocol, Title: title, Detail: detail, Cause: cause}
}

// AsUserError extracts a *UserError from err, if any.
func AsUserError(err error) (*UserError, bool) {
	ue, ok := err.(*UserError)
	return ue, ok
}
