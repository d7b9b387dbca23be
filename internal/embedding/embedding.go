// Package embedding provides the pluggable embedding backends Satori can
// index with: OpenAI, VoyageAI, Gemini, and a local Ollama instance.
// Switching providers changes the runtime fingerprint and forces reindex.
package embedding

import (
	"fmt"
	"math"

	"github.com/kraklabs/satori/internal/errs"
)

// Provider generates embedding vectors from text. All providers must
// produce vectors of consistent dimensionality within a single index.
type Provider interface {
	// GetEmbedding returns a vector for text, tuned for purpose ("document"
	// for indexing, "query" for search).
	GetEmbedding(text string, purpose string) ([]float32, error)

	// GetDocumentEmbedding is a convenience wrapper for purpose="document".
	GetDocumentEmbedding(text string) ([]float32, error)

	// GetQueryEmbedding is a convenience wrapper for purpose="query".
	GetQueryEmbedding(text string) ([]float32, error)

	Name() string
	Model() string
	Dimensions() int
}

// Config holds embedding provider settings, mirroring internal/config's
// EmbeddingConfig but decoupled so this package has no config dependency.
type Config struct {
	Provider   string // openai, voyageai, gemini, ollama
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewProvider constructs a Provider from cfg.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return newOllamaProvider(cfg)
	case "openai":
		return newOpenAIProvider(cfg)
	case "voyageai":
		return newVoyageProvider(cfg)
	case "gemini":
		return newGeminiProvider(cfg)
	default:
		return nil, errs.NewConfigError(
			"Unknown embedding provider",
			fmt.Sprintf("embedding.provider %q is not recognized", cfg.Provider),
			"Use one of: openai, voyageai, gemini, ollama",
			nil,
		)
	}
}

// validateEmbedding checks that a returned vector is well-formed: matches
// the expected dimension (if known) and isn't all-zeros (a common signal
// that a provider silently failed).
func validateEmbedding(vec []float32, expectedDims int) error {
	if expectedDims > 0 && len(vec) != expectedDims {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", expectedDims, len(vec))
	}
	allZero := true
	for _, v := range vec {
		if math.Float32bits(v) != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return fmt.Errorf("embedding is all zeros (provider returned invalid vector)")
	}
	return nil
}
