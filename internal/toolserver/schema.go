package toolserver

var manageIndexTool = Tool{
	Name: "manage_index",
	Description: "Create, sync, check the status of, or clear the search index for a codebase. " +
		"action=create starts (or restarts with force=true) indexing; returns immediately while indexing " +
		"continues in the background — poll action=status until the text contains \"fully indexed\". " +
		"action=sync (alias: reindex) re-embeds only the files that changed since the last index. " +
		"action=clear drops the codebase's collection and forgets it.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"create", "sync", "reindex", "status", "clear"},
				"description": "Which index lifecycle operation to run.",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Absolute path to the codebase root.",
			},
			"force": map[string]any{
				"type":        "boolean",
				"description": "action=create only: drop any existing collection for this path before indexing.",
			},
			"splitter": map[string]any{
				"type":        "string",
				"enum":        []string{"", "linewindow"},
				"description": "action=create only: chunking strategy. Default is tree-sitter aware.",
			},
			"customExtensions": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "action=create only: additional file extensions to index as plain text.",
			},
			"ignorePatterns": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Extra .gitignore-style patterns to exclude, on top of .satoriignore.",
			},
			"zillizDropCollection": map[string]any{
				"type":        "string",
				"description": "action=create only: name of an unrelated Zilliz collection to drop first (Zilliz backend only).",
			},
		},
		"required": []string{"action", "path"},
	},
}

var searchCodebaseTool = Tool{
	Name: "search_codebase",
	Description: "Hybrid dense+sparse semantic search over an indexed codebase, with scope-aware path " +
		"weighting, optional reranking, and result diversity capping.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":  map[string]any{"type": "string", "description": "Absolute path to the codebase root."},
			"query": map[string]any{"type": "string", "description": "Natural-language or keyword search query. Prefix a token with '+' to require it verbatim."},
			"limit": map[string]any{"type": "integer", "description": "Maximum results to return (clamped to the runtime's capability-resolved maximum)."},
			"scope": map[string]any{
				"type": "string", "enum": []string{"runtime", "mixed", "docs"},
				"description": "Path-category weighting profile. \"runtime\" (default) suppresses tests/docs, \"docs\" suppresses runtime code, \"mixed\" applies mild preferences.",
			},
			"resultMode": map[string]any{
				"type": "string", "enum": []string{"grouped", "raw"},
				"description": "\"grouped\" (default) collapses hits by groupBy; \"raw\" returns every hit.",
			},
			"groupBy": map[string]any{
				"type": "string", "enum": []string{"symbol", "file"},
				"description": "Grouping key when resultMode=grouped.",
			},
			"useReranker": map[string]any{"type": "boolean", "description": "Force-enable or disable the optional neural reranker for this call."},
			"rankingMode": map[string]any{"type": "string", "description": "Set to \"auto_changed_first\" to boost recently changed files."},
			"ignorePatterns": map[string]any{
				"type": "array", "items": map[string]any{"type": "string"},
				"description": "Extra ignore patterns applied only to this search's candidate filtering.",
			},
			"debug": map[string]any{"type": "boolean", "description": "Accepted for compatibility; the search pipeline does not read it, so it changes neither results nor the telemetry line."},
		},
		"required": []string{"path", "query"},
	},
}

var callGraphTool = Tool{
	Name:        "call_graph",
	Description: "Query the call-graph sidecar: BFS from a function/method/class symbol to its callers, callees, or both.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string", "description": "Absolute path to the codebase root."},
			"symbolRef": map[string]any{"type": "string", "description": "A symbolId (e.g. \"fn:ab12cd34ef56ab12\") or a symbol name (e.g. \"HandleAuth\")."},
			"direction": map[string]any{
				"type": "string", "enum": []string{"callers", "callees", "both", "bidirectional"},
				"description": "Traversal direction. \"bidirectional\" is accepted as a synonym for \"both\".",
			},
			"depth": map[string]any{"type": "integer", "description": "Maximum BFS hop count (default 1)."},
			"limit": map[string]any{"type": "integer", "description": "Maximum nodes to collect (default 50)."},
		},
		"required": []string{"path", "symbolRef"},
	},
}

var readFileTool = Tool{
	Name:        "read_file",
	Description: "Read a file (or a line range within it) from an indexed codebase, by path relative to the codebase root.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":         map[string]any{"type": "string", "description": "Absolute path to the codebase root."},
			"relativePath": map[string]any{"type": "string", "description": "Path to the file, relative to the codebase root."},
			"startLine":    map[string]any{"type": "integer", "description": "1-based first line to include (default: file start)."},
			"endLine":      map[string]any{"type": "integer", "description": "1-based last line to include (default: file end)."},
		},
		"required": []string{"path", "relativePath"},
	},
}

var listCodebasesTool = Tool{
	Name:        "list_codebases",
	Description: "List every codebase Satori knows about, with its authoritative indexing status.",
	InputSchema: map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	},
}

var fileOutlineTool = Tool{
	Name:        "file_outline",
	Description: "List the top-level symbols (name, kind, line range) defined in one file, from the call-graph sidecar.",
	InputSchema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":         map[string]any{"type": "string", "description": "Absolute path to the codebase root."},
			"relativePath": map[string]any{"type": "string", "description": "Path to the file, relative to the codebase root."},
		},
		"required": []string{"path", "relativePath"},
	},
}
