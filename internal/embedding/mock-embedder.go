package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder is a deterministic embedder for tests. Each text maps to a
// fixed unit vector derived from its hash, so equal texts always embed
// identically and distinct texts almost surely differ.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed derives one pseudo-random component per dimension from the full text
// hash, then normalizes to unit length for cosine similarity.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	emb := make([]float32, e.dimensions)
	var sum float64
	for i := range emb {
		// Knuth's MMIX multiplier; the top bits are well mixed.
		state = state*6364136223846793005 + 1442695040888963407
		v := float32(float64(state>>11)/float64(1<<53)*2 - 1) // in [-1, 1)
		emb[i] = v
		sum += float64(v * v)
	}
	if sum > 0 {
		inv := float32(1 / math.Sqrt(sum))
		for i := range emb {
			emb[i] *= inv
		}
	}
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
