package toolserver

// validateArgs runs the per-tool required-field / enum checks declared
// alongside each tool's schema, returning every failure (not just the
// first) so the error text lists them all.
func validateArgs(tool string, args map[string]any) []argError {
	var errs []argError
	requireNonEmptyString := func(key string) {
		if _, e := requiredString(args, key); e != nil {
			errs = append(errs, *e)
		}
	}
	requireEnum := func(key string, allowed ...string) {
		v := optionalString(args, key)
		if v == "" {
			return
		}
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		errs = append(errs, argError{path: key, msg: "must be one of " + joinEnum(allowed)})
	}

	switch tool {
	case "manage_index":
		requireNonEmptyString("path")
		requireNonEmptyString("action")
		requireEnum("action", "create", "sync", "reindex", "status", "clear")
		requireEnum("splitter", "", "linewindow")
	case "search_codebase":
		requireNonEmptyString("path")
		requireNonEmptyString("query")
		requireEnum("scope", "runtime", "mixed", "docs")
		requireEnum("resultMode", "grouped", "raw")
		requireEnum("groupBy", "symbol", "file")
	case "call_graph":
		requireNonEmptyString("path")
		requireNonEmptyString("symbolRef")
		requireEnum("direction", "callers", "callees", "both", "bidirectional")
	case "read_file":
		requireNonEmptyString("path")
		requireNonEmptyString("relativePath")
	case "list_codebases":
		// No required fields.
	case "file_outline":
		requireNonEmptyString("path")
		requireNonEmptyString("relativePath")
	}
	return errs
}

func joinEnum(values []string) string {
	out := ""
	for _, v := range values {
		if v == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += "\"" + v + "\""
	}
	return out
}
