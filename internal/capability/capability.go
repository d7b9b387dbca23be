// Package capability derives a runtime performance profile and search
// limits from the active embedding/vector-store configuration
// (SPEC_FULL.md component K), so the rest of the service never has to
// reason about provider locality directly.
package capability

import "github.com/kraklabs/satori/internal/fingerprint"

// Locality classifies where embedding inference runs.
type Locality string

const (
	LocalityLocal Locality = "local"
	LocalityCloud Locality = "cloud"
)

// Profile classifies expected request latency, driving search defaults.
type Profile string

const (
	ProfileFast     Profile = "fast"
	ProfileStandard Profile = "standard"
	ProfileSlow     Profile = "slow"
)

// Inputs are the configuration facts the resolver needs.
type Inputs struct {
	EmbeddingProvider fingerprint.EmbeddingProvider
	MilvusEndpoint    string
	MilvusAPIToken    string
	VoyageAPIKey      string
}

// Capabilities is the resolved set of derived facts.
type Capabilities struct {
	EmbeddingLocality   Locality
	PerformanceProfile  Profile
	HasVectorStore      bool
	HasReranker         bool
	DefaultSearchLimit  int
	MaxSearchLimit      int
	DefaultRerankEnable bool
}

var defaultSearchLimits = map[Profile]int{ProfileFast: 50, ProfileStandard: 25, ProfileSlow: 10}
var maxSearchLimits = map[Profile]int{ProfileFast: 50, ProfileStandard: 30, ProfileSlow: 15}

// Resolve derives Capabilities from Inputs.
func Resolve(in Inputs) Capabilities {
	locality := LocalityCloud
	if in.EmbeddingProvider == fingerprint.ProviderOllama {
		locality = LocalityLocal
	}

	var profile Profile
	switch {
	case locality == LocalityLocal:
		profile = ProfileSlow
	case in.EmbeddingProvider == fingerprint.ProviderVoyageAI || in.EmbeddingProvider == fingerprint.ProviderOpenAI:
		profile = ProfileFast
	default:
		profile = ProfileStandard
	}

	hasVectorStore := in.MilvusEndpoint != "" || in.MilvusAPIToken != ""
	hasReranker := in.VoyageAPIKey != ""

	return Capabilities{
		EmbeddingLocality:   locality,
		PerformanceProfile:  profile,
		HasVectorStore:      hasVectorStore,
		HasReranker:         hasReranker,
		DefaultSearchLimit:  defaultSearchLimits[profile],
		MaxSearchLimit:      maxSearchLimits[profile],
		DefaultRerankEnable: hasReranker && profile != ProfileSlow,
	}
}
