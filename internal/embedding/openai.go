package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kraklabs/satori/internal/errs"
)

const (
	openaiMaxRetries = 3
	openaiRetryBase  = 2 * time.Second
)

// OpenAIProvider generates embeddings via the OpenAI API or any
// OpenAI-compatible endpoint.
type OpenAIProvider struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	dims       int
}

func newOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if cfg.APIKey == "" {
		return nil, errs.NewConfigError(
			"OpenAI API key required",
			"embedding.provider is \"openai\" but no API key was configured",
			"Set OPENAI_API_KEY or embedding.api_key in .satori/project.yaml",
			nil,
		)
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = openaiDefaultDims(model)
	}
	return &OpenAIProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		model:      model,
		apiKey:     cfg.APIKey,
		dims:       dims,
	}, nil
}

func openaiDefaultDims(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-ada-002":
		return 1536
	default: // text-embedding-3-small
		return 1536
	}
}

func (p *OpenAIProvider) Name() string    { return "openai" }
func (p *OpenAIProvider) Model() string   { return p.model }
func (p *OpenAIProvider) Dimensions() int { return p.dims }

type openaiEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openaiEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *OpenAIProvider) GetEmbedding(text, purpose string) ([]float32, error) {
	reqBody, err := json.Marshal(openaiEmbeddingRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= openaiMaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * openaiRetryBase)
		}

		req, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/embeddings", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("openai returned %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
			continue
		}

		var parsed openaiEmbeddingResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = err
			continue
		}
		if len(parsed.Data) == 0 {
			lastErr = fmt.Errorf("openai returned no embedding data")
			continue
		}
		if err := validateEmbedding(parsed.Data[0].Embedding, p.dims); err != nil {
			lastErr = err
			continue
		}
		return parsed.Data[0].Embedding, nil
	}
	return nil, lastErr
}

func (p *OpenAIProvider) GetDocumentEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "document")
}

func (p *OpenAIProvider) GetQueryEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "query")
}
