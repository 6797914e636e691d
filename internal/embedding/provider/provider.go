// Package provider defines the embedding-provider abstraction implemented
// by the openai, cohere, and ollama subpackages, each speaking its own
// wire format over plain net/http.
package provider

import "context"

// Provider turns text into vectors for one embedding backend.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ProviderName() string
	ModelName() string
}
