package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
)

const mockDimensions = 384

// MockProvider produces deterministic unit vectors derived from the text
// itself. The same text always maps to the same vector, so local runs are
// reproducible and similar pipelines can be tested offline.
type MockProvider struct{}

// NewMock creates a mock embedding provider.
func NewMock() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Dimensions() int { return mockDimensions }

func (m *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = mockVector(text)
	}
	return out, nil
}

func mockVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0))

	vec := make([]float32, mockDimensions)
	var norm float64
	for i := range vec {
		v := rng.Float64()*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
