package stdio

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

// GuardMode selects how the stdout guard handles stray writes to os.Stdout
// once installed (spec §4.J). "drop" discards the content and only reports
// its length; "redirect" also forwards the content to stderr; "off"
// disables interception entirely.
type GuardMode string

const (
	GuardDrop     GuardMode = "drop"
	GuardRedirect GuardMode = "redirect"
	GuardOff      GuardMode = "off"
)

// ResolveGuardMode maps SATORI_CLI_STDOUT_GUARD's raw value to a GuardMode.
// Unset defaults to drop; "false" or "off" disables the guard.
func ResolveGuardMode(raw string) GuardMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return GuardDrop
	case "false", "off":
		return GuardOff
	case "redirect":
		return GuardRedirect
	case "drop":
		return GuardDrop
	default:
		return GuardDrop
	}
}

// InstallStdoutGuard replaces the package os.Stdout handle with a pipe for
// the duration of a CLI bridge session, so any stray write made by a
// misbehaving dependency (an embedding SDK that logs to stdout, say) never
// corrupts the JSON-RPC stream the real Server writes on a separately
// captured handle. It returns a restore function that reinstates the
// original *os.File by identity; restore is idempotent.
//
// mode==GuardOff is a no-op: os.Stdout is left untouched.
func InstallStdoutGuard(mode GuardMode, stderr io.Writer) (restore func(), err error) {
	if mode == GuardOff {
		return func() {}, nil
	}

	original := os.Stdout
	r, w, pipeErr := os.Pipe()
	if pipeErr != nil {
		return func() {}, pipeErr
	}
	os.Stdout = w

	done := make(chan struct{})
	go drainGuardedStdout(r, stderr, mode, done)

	var once sync.Once
	restore = func() {
		once.Do(func() {
			_ = w.Close()
			<-done
			os.Stdout = original
		})
	}
	return restore, nil
}

func drainGuardedStdout(r *os.File, stderr io.Writer, mode GuardMode, done chan<- struct{}) {
	defer close(done)
	defer r.Close()

	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			emitBlockedChunk(stderr, buf[:n], mode)
		}
		if err != nil {
			return
		}
	}
}

func emitBlockedChunk(stderr io.Writer, chunk []byte, mode GuardMode) {
	if utf8.Valid(chunk) {
		_, _ = fmt.Fprintf(stderr, "[STDOUT_BLOCKED] %d\n", len(chunk))
	} else {
		_, _ = fmt.Fprintf(stderr, "[STDOUT_BLOCKED_BINARY len=%d]\n", len(chunk))
	}
	if mode == GuardRedirect {
		_, _ = stderr.Write(chunk)
		if len(chunk) == 0 || chunk[len(chunk)-1] != '\n' {
			_, _ = fmt.Fprintln(stderr)
		}
	}
}
