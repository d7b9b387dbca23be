package stdio

import (
	"io"

	"github.com/kraklabs/satori/internal/logging"
)

// InstallConsoleRedirect is the guard's second installer (spec §4.J):
// it redirects all structured log output to w for the duration of a CLI
// bridge session, returning a restore function that reinstates the
// previous logger by identity. Satori's logger already writes exclusively
// to stderr (internal/logging), so in practice w is always the same
// stderr stream the CLI bridge pipes through — this installer exists so a
// future destination (a log file, a parent-process pipe) can be swapped in
// without touching call sites.
func InstallConsoleRedirect(w io.Writer) (restore func()) {
	return logging.SetOutput(w)
}
