package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kraklabs/satori/internal/errs"
	"github.com/kraklabs/satori/internal/index"
	"github.com/kraklabs/satori/internal/logging"
	"github.com/kraklabs/satori/internal/snapshot"
)

func handleManageIndex(ctx context.Context, d *Dispatcher, args map[string]any) *Result {
	action, _ := args["action"].(string)
	path, _ := args["path"].(string)

	switch action {
	case "create":
		return handleCreate(ctx, d, path, args)
	case "sync", "reindex":
		return handleSync(ctx, d, path, args)
	case "status":
		return handleStatus(ctx, d, path)
	case "clear":
		return handleClear(ctx, d, path)
	default:
		return errorResult(fmt.Sprintf("Error: Invalid arguments for 'manage_index'. action: unknown action %q", action))
	}
}

// handleCreate kicks indexing off in a detached goroutine and returns
// immediately: manage_index create is async, and callers poll
// action=status until the text contains "fully indexed" (SPEC_FULL.md §4.J).
func handleCreate(ctx context.Context, d *Dispatcher, path string, args map[string]any) *Result {
	if info, ok, _ := d.index.Status(ctx, path); ok && info.Status == snapshot.StatusIndexing {
		return textResult(toEnvelope(map[string]any{
			"status": "not_ready",
			"reason": "indexing",
			"path":   path,
		}))
	}

	opts := index.CreateOptions{
		Path:                 path,
		Force:                optionalBoolValue(args, "force"),
		Splitter:             optionalString(args, "splitter"),
		CustomExtensions:     optionalStringSlice(args, "customExtensions"),
		IgnorePatterns:       optionalStringSlice(args, "ignorePatterns"),
		ZillizDropCollection: optionalString(args, "zillizDropCollection"),
	}

	go func() {
		logger := logging.With("toolserver")
		if _, err := d.index.Create(context.Background(), opts); err != nil {
			logger.Warn("manage_index_create_failed", "path", path, "err", err)
		}
	}()

	return textResult(toEnvelope(map[string]any{
		"status":         "ok",
		"message":        "indexing started",
		"path":           path,
		"collectionName": index.CollectionName(path),
	}))
}

func handleSync(ctx context.Context, d *Dispatcher, path string, args map[string]any) *Result {
	ignorePatterns := optionalStringSlice(args, "ignorePatterns")
	result, err := d.index.Sync(ctx, path, ignorePatterns, 0)
	if err != nil {
		return toolErrorResult(err)
	}
	return textResult(toEnvelope(map[string]any{
		"status":       "ok",
		"changedFiles": result.ChangedFiles,
		"added":        result.Added,
		"modified":     result.Modified,
		"removed":      result.Removed,
	}))
}

func handleStatus(ctx context.Context, d *Dispatcher, path string) *Result {
	info, ok, err := d.index.Status(ctx, path)
	if err != nil {
		return toolErrorResult(err)
	}
	if !ok {
		return textResult(toEnvelope(map[string]any{"status": "not_ready", "reason": "not_indexed", "path": path}))
	}
	return textResult(statusText(info))
}

func handleClear(ctx context.Context, d *Dispatcher, path string) *Result {
	if err := d.index.Clear(ctx, path); err != nil {
		return toolErrorResult(err)
	}
	return textResult(toEnvelope(map[string]any{"status": "ok", "path": path}))
}

// statusText renders a codebase's snapshot entry as a human-readable line
// whose terminal success state contains the literal substring "fully
// indexed", which the CLI bridge polls for (SPEC_FULL.md §4.J).
func statusText(info snapshot.CodebaseInfo) string {
	switch info.Status {
	case snapshot.StatusIndexing:
		return fmt.Sprintf("🔄 %d%% — being indexed", info.IndexingPercentage)
	case snapshot.StatusIndexed, snapshot.StatusSyncCompleted:
		return fmt.Sprintf("✅ %d files / %d chunks — fully indexed", info.IndexedFiles, info.TotalChunks)
	case snapshot.StatusRequiresReindex:
		return fmt.Sprintf("⚠️ requires reindex: %s", info.ReindexReason)
	case snapshot.StatusIndexFailed:
		return fmt.Sprintf("❌ indexing failed: %s", info.ErrorMessage)
	default:
		return "unknown status"
	}
}

func optionalBoolValue(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func toEnvelope(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// toolErrorResult renders a *errs.UserError (or any error) as an isError
// tool result, flattening it to plain text rather than "[object Object]"
// (SPEC_FULL.md §6).
func toolErrorResult(err error) *Result {
	if ue, ok := errs.AsUserError(err); ok {
		return errorResult(ue.Format(false))
	}
	return errorResult("Error: " + err.Error())
}
