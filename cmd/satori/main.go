// Package main implements the Satori CLI: a long-lived MCP server mode
// (JSON-RPC over stdio) plus one-shot tool invocation, grounded on the
// teacher's cmd/cie/main.go wrapper-flag-then-subcommand dispatch pattern.
//
// Usage:
//
//	satori mcp                          Start as MCP server (JSON-RPC over stdio)
//	satori tools list                   Print the declared tool schemas as JSON
//	satori <toolName> --<field> <value> Invoke a tool once and print its result
//	satori config                       Print effective resolved configuration
//	satori completion bash|zsh|fish     Generate a shell completion script
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		showVersion      = flag.BoolP("version", "V", false, "Show version and exit")
		callTimeoutMs    = flag.Int("call-timeout-ms", 30_000, "Timeout in milliseconds for a single tool call")
		startupTimeoutMs = flag.Int("startup-timeout-ms", 10_000, "Timeout in milliseconds for the server startup handshake")
		configPath       = flag.StringP("config", "c", "", "Path to .satori/project.yaml (default: auto-detected)")
	)

	// Stop parsing at the first non-flag argument (the subcommand/tool
	// name), so tool-specific flags like "search_codebase --query foo"
	// pass through untouched rather than being rejected by the wrapper
	// parser.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Satori - MCP code search and call-graph service

Usage:
  satori [wrapper-flags] <subcommand|toolName> [args...]

Wrapper Flags (must appear before the subcommand):
  --call-timeout-ms <int>      Per-call timeout in milliseconds (default 30000)
  --startup-timeout-ms <int>   Startup handshake timeout in milliseconds (default 10000)
  -c, --config <path>          Path to .satori/project.yaml
  -V, --version                 Show version and exit

Subcommands:
  mcp                    Start as MCP server (JSON-RPC over stdio)
  tools list             Print the declared tool schemas as JSON
  config                 Print effective resolved configuration
  completion bash|zsh|fish   Generate a shell completion script
  <toolName> --field val  Invoke a tool once; stdout is content[0].text

Exit codes: 0 success, 1 tool error, 3 protocol failure.
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("satori version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	wrapperFlags := wrapperFlags{
		ConfigPath:       *configPath,
		CallTimeoutMs:    *callTimeoutMs,
		StartupTimeoutMs: *startupTimeoutMs,
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "mcp":
		runMCP(wrapperFlags)
	case "tools":
		runTools(cmdArgs)
	case "config":
		runConfig(wrapperFlags)
	case "completion":
		runCompletion(cmdArgs)
	default:
		os.Exit(runToolCall(wrapperFlags, command, cmdArgs))
	}
}

type wrapperFlags struct {
	ConfigPath       string
	CallTimeoutMs    int
	StartupTimeoutMs int
}
