// Package embeddings generates vector embeddings for narrative text. Two
// providers are available: the OpenAI API and a deterministic local mock
// for development without network access.
package embeddings

import "context"

// Provider turns a batch of texts into embedding vectors, one per input,
// in input order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}
