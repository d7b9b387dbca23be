package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderOllamaDefaults(t *testing.T) {
	p, err := NewProvider(Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
	assert.Equal(t, "nomic-embed-text", p.Model())
	assert.Equal(t, 768, p.Dimensions())
}

func TestNewProviderOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewProvider(Config{Provider: "openai"})
	assert.Error(t, err)
}

func TestNewProviderVoyageRequiresAPIKey(t *testing.T) {
	_, err := NewProvider(Config{Provider: "voyageai"})
	assert.Error(t, err)
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "bogus"})
	assert.Error(t, err)
}

func TestValidateEmbeddingRejectsAllZero(t *testing.T) {
	err := validateEmbedding(make([]float32, 8), 8)
	assert.Error(t, err)
}

func TestValidateEmbeddingRejectsWrongDimension(t *testing.T) {
	err := validateEmbedding([]float32{1, 2, 3}, 8)
	assert.Error(t, err)
}

func TestValidateEmbeddingAcceptsValid(t *testing.T) {
	err := validateEmbedding([]float32{1, 2, 3}, 3)
	assert.NoError(t, err)
}
