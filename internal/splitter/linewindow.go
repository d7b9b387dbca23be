package splitter

import "strings"

// LineWindowSplitter splits content into fixed-size, overlapping line
// windows. Used for languages tree-sitter doesn't have a grammar for.
type LineWindowSplitter struct{}

// NewLineWindowSplitter constructs a LineWindowSplitter.
func NewLineWindowSplitter() *LineWindowSplitter {
	return &LineWindowSplitter{}
}

func (s *LineWindowSplitter) Split(path, language string, content []byte) ([]Chunk, error) {
	lines := strings.Split(string(content), "\n")
	if len(lines) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	step := windowLines - windowOverlap
	if step <= 0 {
		step = windowLines
	}

	for start := 0; start < len(lines); start += step {
		end := start + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, Chunk{
				Path:      path,
				StartLine: start + 1,
				EndLine:   end,
				Text:      text,
				Scope:     "module",
				Language:  language,
			})
		}
		if end == len(lines) {
			break
		}
	}
	return chunks, nil
}
