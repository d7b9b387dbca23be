package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kraklabs/satori/internal/toolserver"
)

// runTools implements the "tools" subcommand. Its only form is
// "tools list", which prints the declared tool surface (name,
// description, JSON Schema) so a caller can discover arguments without
// starting an MCP session.
func runTools(args []string) {
	if len(args) == 0 || args[0] != "list" {
		fmt.Fprintln(os.Stderr, "Usage: satori tools list")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toolserver.Tools()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot encode tool list: %v\n", err)
		os.Exit(1)
	}
}
