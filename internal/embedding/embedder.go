// Package embedding provides text embedding backends.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kotaeru/internal/config"
)

// ErrUnavailable reports that the embedding backend could not produce a
// vector (unreachable, misconfigured, or rejected the request).
var ErrUnavailable = errors.New("embedding backend unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New creates the embedder selected by cfg.Provider.
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "huggingface":
		return NewHuggingFaceEmbedder(cfg.Model, cfg.Dimensions, cfg.BaseURL, ""), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.Model, cfg.Dimensions, "")
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
