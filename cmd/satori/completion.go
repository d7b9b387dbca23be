package main

import (
	"fmt"
	"os"
)

// runCompletion implements the "completion" subcommand. No source for the
// teacher's equivalent (cmd/cie's runCompletion, referenced in its main.go
// subcommand switch) exists anywhere in the retrieval pack, so these
// scripts are hand-written against the conventions every other shell's
// "program completion <shell>" generator follows, not copied from any
// example (see DESIGN.md).
func runCompletion(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: satori completion bash|zsh|fish")
		os.Exit(1)
	}

	var script string
	switch args[0] {
	case "bash":
		script = bashCompletion
	case "zsh":
		script = zshCompletion
	case "fish":
		script = fishCompletion
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported shell %q (want bash, zsh, or fish)\n", args[0])
		os.Exit(1)
	}

	fmt.Print(script)
}

const completionSubcommands = "mcp tools config completion search_codebase manage_index call_graph read_file list_codebases file_outline"

const bashCompletion = `_satori_completions() {
    local cur prev
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [ "$COMP_CWORD" -eq 1 ]; then
        COMPREPLY=( $(compgen -W "` + completionSubcommands + `" -- "$cur") )
        return 0
    fi

    if [ "$prev" = "completion" ]; then
        COMPREPLY=( $(compgen -W "bash zsh fish" -- "$cur") )
        return 0
    fi

    if [ "$prev" = "tools" ]; then
        COMPREPLY=( $(compgen -W "list" -- "$cur") )
        return 0
    fi
}
complete -F _satori_completions satori
`

const zshCompletion = `#compdef satori

_satori() {
    local -a subcommands
    subcommands=(` + completionSubcommands + `)

    if (( CURRENT == 2 )); then
        _describe 'command' subcommands
        return
    fi

    case "${words[2]}" in
        completion)
            _values 'shell' bash zsh fish
            ;;
        tools)
            _values 'tools subcommand' list
            ;;
    esac
}

_satori
`

const fishCompletion = `complete -c satori -f
complete -c satori -n "__fish_use_subcommand" -a "` + completionSubcommands + `"
complete -c satori -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
complete -c satori -n "__fish_seen_subcommand_from tools" -a "list"
`
