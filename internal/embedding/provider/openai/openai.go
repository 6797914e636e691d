// Package openai implements the OpenAI-compatible /v1/embeddings backend.
package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ysksm/jd-sub000/internal/embedding/providerhttp"
	"github.com/ysksm/jd-sub000/internal/errs"
)

const (
	defaultModel     = "text-embedding-3-small"
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultDimension = 1536
)

// Provider speaks the OpenAI-compatible embeddings endpoint, Bearer auth,
// one request per batch.
type Provider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New constructs an OpenAI-compatible provider. baseURL and model fall
// back to OpenAI's own API and its default embedding model; apiKey is
// required.
func New(baseURL, apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, errs.Wrap(errs.Configuration, "openai.New", fmt.Errorf("api key required"))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Provider{baseURL: baseURL, apiKey: apiKey, model: model, client: providerhttp.NewClient()}, nil
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result embedResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := providerhttp.PostJSON(ctx, p.client, p.baseURL+"/embeddings", headers,
		embedRequest{Input: texts, Model: p.model}, &result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, errs.Wrap(errs.ExternalService, "openai.EmbedBatch",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data)))
	}
	vectors := make([][]float32, len(result.Data))
	for _, d := range result.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (p *Provider) Dimension() int       { return defaultDimension }
func (p *Provider) ProviderName() string { return "openai" }
func (p *Provider) ModelName() string    { return p.model }
