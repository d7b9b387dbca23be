package toolserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/satori/internal/pathutil"
)

func handleReadFile(ctx context.Context, d *Dispatcher, args map[string]any) *Result {
	path := args["path"].(string)
	relativePath := args["relativePath"].(string)

	canonicalRoot, err := pathutil.Canonicalize(path)
	if err != nil {
		return errorResult("Error: invalid codebase path: " + err.Error())
	}

	target := filepath.Clean(filepath.Join(canonicalRoot, relativePath))
	if target != canonicalRoot && !strings.HasPrefix(target, canonicalRoot+string(filepath.Separator)) {
		return errorResult(fmt.Sprintf("Error: relativePath %q escapes the codebase root", relativePath))
	}

	content, err := os.ReadFile(target)
	if err != nil {
		return errorResult(fmt.Sprintf("Error: cannot read %q: %v", relativePath, err))
	}

	startLine := optionalInt(args, "startLine", 0)
	endLine := optionalInt(args, "endLine", 0)
	if startLine <= 0 && endLine <= 0 {
		return textResult(string(content))
	}
	return textResult(sliceLines(string(content), startLine, endLine))
}

func sliceLines(text string, startLine, endLine int) string {
	lines := strings.Split(text, "\n")
	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > len(lines) {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}
