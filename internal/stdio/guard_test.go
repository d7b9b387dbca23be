package stdio

import (
	"bytes"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveGuardMode(t *testing.T) {
	cases := map[string]GuardMode{
		"":         GuardDrop,
		"false":    GuardOff,
		"off":      GuardOff,
		"OFF":      GuardOff,
		"redirect": GuardRedirect,
		"drop":     GuardDrop,
		"bogus":    GuardDrop,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ResolveGuardMode(raw), "raw=%q", raw)
	}
}

func TestInstallStdoutGuardOffIsNoop(t *testing.T) {
	original := os.Stdout
	restore, err := InstallStdoutGuard(GuardOff, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Same(t, original, os.Stdout)
	restore()
	assert.Same(t, original, os.Stdout)
}

func TestInstallStdoutGuardDropBlocksAndRestores(t *testing.T) {
	original := os.Stdout
	var stderr bytes.Buffer

	restore, err := InstallStdoutGuard(GuardDrop, &stderr)
	require.NoError(t, err)
	require.NotSame(t, original, os.Stdout)

	fmt.Fprint(os.Stdout, "accidental library output")
	// Give the drain goroutine a moment to observe the write before restoring.
	time.Sleep(20 * time.Millisecond)

	restore()
	assert.Same(t, original, os.Stdout)
	assert.Contains(t, stderr.String(), "[STDOUT_BLOCKED]")
	assert.NotContains(t, stderr.String(), "accidental library output")
}

func TestInstallStdoutGuardRedirectForwardsContent(t *testing.T) {
	original := os.Stdout
	var stderr bytes.Buffer

	restore, err := InstallStdoutGuard(GuardRedirect, &stderr)
	require.NoError(t, err)

	fmt.Fprint(os.Stdout, "leaked text")
	time.Sleep(20 * time.Millisecond)

	restore()
	assert.Same(t, original, os.Stdout)
	assert.Contains(t, stderr.String(), "[STDOUT_BLOCKED]")
	assert.Contains(t, stderr.String(), "leaked text")
}

func TestInstallStdoutGuardRestoreIsIdempotent(t *testing.T) {
	restore, err := InstallStdoutGuard(GuardDrop, &bytes.Buffer{})
	require.NoError(t, err)
	restore()
	assert.NotPanics(t, restore)
}
