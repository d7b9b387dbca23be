package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineWindowSplitterProducesOverlappingWindows(t *testing.T) {
	lines := make([]byte, 0)
	for i := 0; i < 200; i++ {
		lines = append(lines, []byte("line\n")...)
	}
	s := NewLineWindowSplitter()
	chunks, err := s.Split("big.txt", "text", lines)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 1, chunks[0].StartLine)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, 60, chunks[0].EndLine)
	assert.Equal(t, 51, chunks[1].StartLine)
}

func TestTreeSitterSplitterExtractsGoFunctions(t *testing.T) {
	src := []byte(`package main

func Add(a, b int) int {
	return a + b
}

func Sub(a, b int) int {
	return a - b
}
`)
	s := NewTreeSitterSplitter()
	chunks, err := s.Split("math.go", "go", src)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "function", chunks[0].Scope)
	assert.Contains(t, chunks[0].Text, "func Add")
	assert.Contains(t, chunks[1].Text, "func Sub")
}

func TestTreeSitterSplitterFallsBackForUnknownLanguage(t *testing.T) {
	s := NewTreeSitterSplitter()
	chunks, err := s.Split("README.md", "markdown", []byte("# hello\n\nworld\n"))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "module", chunks[0].Scope)
}
