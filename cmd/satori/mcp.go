package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kraklabs/satori/internal/logging"
	"github.com/kraklabs/satori/internal/stdio"
)

// runMCP starts the long-lived MCP server: build the service stack, guard
// stdout against accidental writes from dependencies, then drive the
// JSON-RPC loop on the real stdin/stdout. Grounded on the teacher's
// runMCPServer/serveMCPLoop (cmd/cie/mcp.go).
func runMCP(flags wrapperFlags) {
	logger := logging.Init()
	ctx := context.Background()

	fmt.Fprintf(os.Stderr, "Satori MCP server v%s starting...\n", version)

	application, err := buildApp(ctx, flags.ConfigPath)
	if err != nil {
		logger.Error("mcp_startup_failed", "err", err)
		os.Exit(1)
	}

	// Capture the real stdout handle before installing the guard, so the
	// JSON-RPC loop writes protocol frames directly to it rather than
	// through the intercepted os.Stdout.
	realStdout := os.Stdout

	guardMode := stdio.ResolveGuardMode(os.Getenv("SATORI_CLI_STDOUT_GUARD"))
	restoreGuard, err := stdio.InstallStdoutGuard(guardMode, os.Stderr)
	if err != nil {
		logger.Error("stdout_guard_install_failed", "err", err)
		os.Exit(1)
	}
	defer restoreGuard()

	restoreConsole := stdio.InstallConsoleRedirect(os.Stderr)
	defer restoreConsole()

	verifyCloudState(ctx, application, logger)
	startBackgroundLifecycle(ctx, application, logger)

	server := stdio.NewServer(application.dispatcher, version, logger)
	if err := server.Serve(ctx, os.Stdin, realStdout); err != nil {
		logger.Error("mcp_serve_failed", "err", err)
		os.Exit(1)
	}
}

// verifyCloudState is the one-shot probe runMCP runs before serving: confirm
// the configured vector store backend is reachable before serving any tool
// calls, logging but not failing startup on error so local-only workflows
// (no vector store configured yet) still get a usable index-status/tool
// listing. The CLI bridge process (runToolCall) does not call it; the
// "satori mcp" child that the bridge spawns runs it through runMCP.
func verifyCloudState(ctx context.Context, a *app, logger interface {
	Warn(msg string, args ...any)
}) {
	if !a.caps.HasVectorStore {
		return
	}
	if _, err := a.store.CheckCollectionLimit(ctx); err != nil {
		logger.Warn("verify_cloud_state_failed", "err", err)
	}
}

// startBackgroundLifecycle starts periodic background sync for every
// already-indexed codebase (and, if enabled, a filesystem watcher per
// codebase) once runMCP's verifyCloudState probe completes. runMCP calls it
// in every server process, including the "satori mcp" child that the CLI
// bridge spawns for a one-shot tool call; no cli-mode path skips it.
func startBackgroundLifecycle(ctx context.Context, a *app, logger interface {
	Warn(msg string, args ...any)
}) {
	indexedPaths := func() []string {
		indexed := a.snapshot.GetIndexedCodebases()
		paths := make([]string, 0, len(indexed))
		for path := range indexed {
			paths = append(paths, path)
		}
		return paths
	}

	a.sync.StartBackgroundSync(ctx, 5*time.Minute, indexedPaths)

	if !a.cfg.Watcher.Enabled {
		return
	}
	debounce := time.Duration(a.cfg.Watcher.DebounceMs) * time.Millisecond
	for _, path := range indexedPaths() {
		if err := a.sync.StartWatcherMode(ctx, path, debounce, nil, a.cfg.Indexing.MaxFileSizeBytes); err != nil {
			logger.Warn("watcher_start_failed", "path", path, "err", err)
		}
	}
}
