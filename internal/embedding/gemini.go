package embedding

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/kraklabs/satori/internal/errs"
)

// GeminiProvider generates embeddings via the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
	dims   int
}

func newGeminiProvider(cfg Config) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errs.NewConfigError(
			"Gemini API key required",
			"embedding.provider is \"gemini\" but no API key was configured",
			"Set GEMINI_API_KEY or embedding.api_key in .satori/project.yaml",
			nil,
		)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-embedding-001"
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = 768
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errs.NewConfigError("Cannot create Gemini client", "", "Check GEMINI_API_KEY", err)
	}

	return &GeminiProvider{client: client, model: model, dims: dims}, nil
}

func (p *GeminiProvider) Name() string    { return "gemini" }
func (p *GeminiProvider) Model() string   { return p.model }
func (p *GeminiProvider) Dimensions() int { return p.dims }

func (p *GeminiProvider) GetEmbedding(text, purpose string) ([]float32, error) {
	taskType := "RETRIEVAL_DOCUMENT"
	if purpose == "query" {
		taskType = "RETRIEVAL_QUERY"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := p.client.Models.EmbedContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType:             taskType,
			OutputDimensionality: genai.Ptr[int32](int32(p.dims)),
		})
	if err != nil {
		return nil, errs.NewDatabaseError("Gemini embedding request failed", "", "Check network connectivity and GEMINI_API_KEY", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, errs.NewDatabaseError("Gemini returned no embeddings", "", "", nil)
	}

	vec := resp.Embeddings[0].Values
	if err := validateEmbedding(vec, p.dims); err != nil {
		return nil, err
	}
	return vec, nil
}

func (p *GeminiProvider) GetDocumentEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "document")
}

func (p *GeminiProvider) GetQueryEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "query")
}
