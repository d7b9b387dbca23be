package toolserver

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/kraklabs/satori/internal/snapshot"
)

type codebaseEntry struct {
	Path          string `json:"path"`
	Status        string `json:"status"`
	IndexedFiles  int    `json:"indexedFiles,omitempty"`
	TotalChunks   int    `json:"totalChunks,omitempty"`
	ReindexReason string `json:"reindexReason,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

// handleListCodebases treats each indexed/sync_completed entry
// authoritatively unless the completion-marker proof changes the outcome
// (SPEC_FULL.md §4.I / §4.D): valid->ready, fingerprint_mismatch->requires
// reindex, stale_local:*->failed, probe_failed->keep local status.
func handleListCodebases(ctx context.Context, d *Dispatcher, args map[string]any) *Result {
	all := d.snapshot.GetAllCodebases()
	paths := make([]string, 0, len(all))
	for p := range all {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := make([]codebaseEntry, 0, len(paths))
	for _, p := range paths {
		info := all[p]
		if info.Status == snapshot.StatusIndexed || info.Status == snapshot.StatusSyncCompleted {
			if authoritative, ok, err := d.index.Status(ctx, p); err == nil && ok {
				info = authoritative
			}
		}
		entries = append(entries, codebaseEntry{
			Path:          p,
			Status:        string(info.Status),
			IndexedFiles:  info.IndexedFiles,
			TotalChunks:   info.TotalChunks,
			ReindexReason: info.ReindexReason,
			ErrorMessage:  info.ErrorMessage,
		})
	}

	data, err := json.Marshal(map[string]any{"codebases": entries})
	if err != nil {
		return errorResult("Error: cannot encode codebase list: " + err.Error())
	}
	return textResult(string(data))
}
