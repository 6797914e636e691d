// Package cohere implements the Cohere-compatible /v1/embed backend.
package cohere

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ysksm/jd-sub000/internal/embedding/providerhttp"
	"github.com/ysksm/jd-sub000/internal/errs"
)

const (
	defaultModel   = "embed-english-v3.0"
	defaultBaseURL = "https://api.cohere.ai/v1"
)

// Provider speaks the Cohere-compatible embed endpoint, Bearer auth.
type Provider struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

// New constructs a Cohere-compatible provider. dimension is derived from
// model (the light variants embed to 384, everything else to 1024),
// matching Cohere's published model table.
func New(baseURL, apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, errs.Wrap(errs.Configuration, "cohere.New", fmt.Errorf("api key required"))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Provider{
		baseURL: baseURL, apiKey: apiKey, model: model, dimension: dimensionForModel(model),
		client: providerhttp.NewClient(),
	}, nil
}

func dimensionForModel(model string) int {
	if strings.Contains(model, "light") {
		return 384
	}
	return 1024
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
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
	err := providerhttp.PostJSON(ctx, p.client, p.baseURL+"/embed", headers,
		embedRequest{Texts: texts, Model: p.model, InputType: "search_document"}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, errs.Wrap(errs.ExternalService, "cohere.EmbedBatch",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings)))
	}
	return result.Embeddings, nil
}

func (p *Provider) Dimension() int       { return p.dimension }
func (p *Provider) ProviderName() string { return "cohere" }
func (p *Provider) ModelName() string    { return p.model }
