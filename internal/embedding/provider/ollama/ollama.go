// Package ollama implements the local Ollama-compatible /api/embeddings
// backend. No auth; the endpoint has no native batch call, so EmbedBatch
// issues one request per text.
package ollama

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ysksm/jd-sub000/internal/embedding/providerhttp"
	"github.com/ysksm/jd-sub000/internal/errs"
)

const (
	defaultModel     = "nomic-embed-text"
	defaultBaseURL   = "http://localhost:11434"
	defaultDimension = 768
)

// Provider speaks the local Ollama embeddings API.
type Provider struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// New constructs an Ollama-compatible provider. baseURL and model fall
// back to the local default install and its usual embedding model.
func New(baseURL, model string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Provider{baseURL: baseURL, model: model, dimension: defaultDimension, client: providerhttp.NewClient()}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	var result embedResponse
	err := providerhttp.PostJSON(ctx, p.client, p.baseURL+"/api/embeddings", nil,
		embedRequest{Model: p.model, Prompt: text}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Embedding) == 0 {
		return nil, errs.Wrap(errs.ExternalService, "ollama.Embed", fmt.Errorf("empty embedding returned"))
	}
	return result.Embedding, nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (p *Provider) Dimension() int       { return p.dimension }
func (p *Provider) ProviderName() string { return "ollama" }
func (p *Provider) ModelName() string    { return p.model }
