// Package logging provides Satori's process-wide structured logger.
//
// Every log record goes to stderr, never stdout — stdout is reserved for
// the MCP JSON-RPC stream (see internal/stdio). This mirrors the
// *slog.Logger usage in the teacher's ingestion package (hash_delta.go),
// generalized into a single process-wide default logger with a
// configurable level.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu      sync.Mutex
	current *slog.Logger
)

// Level names recognized by SATORI_LOG_LEVEL.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init configures the process-wide logger from SATORI_LOG_LEVEL (default info).
// It is safe to call multiple times; the last call wins.
func Init() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	level := parseLevel(os.Getenv("SATORI_LOG_LEVEL"))
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	current = slog.New(handler)
	return current
}

// Default returns the process-wide logger, initializing it on first use.
func Default() *slog.Logger {
	mu.Lock()
	l := current
	mu.Unlock()
	if l != nil {
		return l
	}
	return Init()
}

// With returns a logger scoped to a component, e.g. logging.With("sync").
func With(component string) *slog.Logger {
	return Default().With("component", component)
}

// SetOutput swaps the process-wide logger's destination to w, preserving the
// current level, and returns a restore func that reinstates the previous
// logger by identity. Used by internal/stdio's console-redirect installer
// so stray log output during CLI stdio sessions never reaches stdout.
func SetOutput(w io.Writer) (restore func()) {
	mu.Lock()
	previous := current
	level := parseLevel(os.Getenv("SATORI_LOG_LEVEL"))
	current = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	mu.Unlock()

	return func() {
		mu.Lock()
		current = previous
		mu.Unlock()
	}
}
