package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kraklabs/satori/internal/errs"
)

const voyageRetryBase = 2 * time.Second

// VoyageProvider generates embeddings via the VoyageAI API, also used as
// Satori's optional neural reranker backend (shared API key).
type VoyageProvider struct {
	httpClient *http.Client
	model      string
	apiKey     string
	dims       int
}

func newVoyageProvider(cfg Config) (*VoyageProvider, error) {
	if cfg.APIKey == "" {
		return nil, errs.NewConfigError(
			"VoyageAI API key required",
			"embedding.provider is \"voyageai\" but no API key was configured",
			"Set VOYAGEAI_API_KEY or embedding.api_key in .satori/project.yaml",
			nil,
		)
	}
	model := cfg.Model
	if model == "" {
		model = "voyage-code-3"
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = 1024
	}
	return &VoyageProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		model:      model,
		apiKey:     cfg.APIKey,
		dims:       dims,
	}, nil
}

// NewVoyageReranker constructs a VoyageProvider for reranking only, keyed by
// its own API key independent of whatever embedding provider is configured —
// a codebase can embed with Ollama and still rerank with VoyageAI.
func NewVoyageReranker(apiKey string) *VoyageProvider {
	return &VoyageProvider{httpClient: &http.Client{Timeout: 30 * time.Second}, apiKey: apiKey}
}

func (p *VoyageProvider) Name() string    { return "voyageai" }
func (p *VoyageProvider) Model() string   { return p.model }
func (p *VoyageProvider) Dimensions() int { return p.dims }

type voyageEmbeddingRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type voyageEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *VoyageProvider) GetEmbedding(text, purpose string) ([]float32, error) {
	inputType := "document"
	if purpose == "query" {
		inputType = "query"
	}
	reqBody, err := json.Marshal(voyageEmbeddingRequest{
		Input:     []string{text},
		Model:     p.model,
		InputType: inputType,
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * voyageRetryBase)
		}

		req, err := http.NewRequest(http.MethodPost, "https://api.voyageai.com/v1/embeddings", bytes.NewReader(reqBody))
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
			lastErr = fmt.Errorf("voyageai returned %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
			continue
		}

		var parsed voyageEmbeddingResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = err
			continue
		}
		if len(parsed.Data) == 0 {
			lastErr = fmt.Errorf("voyageai returned no embedding data")
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

func (p *VoyageProvider) GetDocumentEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "document")
}

func (p *VoyageProvider) GetQueryEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "query")
}

type voyageRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
}

type voyageRerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"data"`
}

// Rerank scores docs against query using VoyageAI's rerank endpoint, in
// query order (result[i] is the relevance score for docs[i]).
func (p *VoyageProvider) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	reqBody, err := json.Marshal(voyageRerankRequest{
		Query:     query,
		Documents: docs,
		Model:     "rerank-2",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.voyageai.com/v1/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voyageai rerank returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed voyageRerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	scores := make([]float64, len(docs))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(scores) {
			scores[d.Index] = d.RelevanceScore
		}
	}
	return scores, nil
}
