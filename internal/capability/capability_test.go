package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/satori/internal/fingerprint"
)

func TestResolveOllamaIsSlowLocal(t *testing.T) {
	caps := Resolve(Inputs{EmbeddingProvider: fingerprint.ProviderOllama})
	assert.Equal(t, LocalityLocal, caps.EmbeddingLocality)
	assert.Equal(t, ProfileSlow, caps.PerformanceProfile)
	assert.Equal(t, 10, caps.DefaultSearchLimit)
	assert.Equal(t, 15, caps.MaxSearchLimit)
	assert.False(t, caps.DefaultRerankEnable)
}

func TestResolveOpenAIIsFastCloud(t *testing.T) {
	caps := Resolve(Inputs{EmbeddingProvider: fingerprint.ProviderOpenAI, VoyageAPIKey: "key"})
	assert.Equal(t, LocalityCloud, caps.EmbeddingLocality)
	assert.Equal(t, ProfileFast, caps.PerformanceProfile)
	assert.Equal(t, 50, caps.DefaultSearchLimit)
	assert.True(t, caps.HasReranker)
	assert.True(t, caps.DefaultRerankEnable)
}

func TestResolveGeminiIsStandard(t *testing.T) {
	caps := Resolve(Inputs{EmbeddingProvider: fingerprint.ProviderGemini})
	assert.Equal(t, ProfileStandard, caps.PerformanceProfile)
	assert.Equal(t, 25, caps.DefaultSearchLimit)
}

func TestResolveHasVectorStore(t *testing.T) {
	caps := Resolve(Inputs{MilvusEndpoint: "https://cluster.zillizcloud.com"})
	assert.True(t, caps.HasVectorStore)
}
