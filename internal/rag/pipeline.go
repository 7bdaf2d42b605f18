// Package rag orchestrates retrieval-augmented question answering: embed the
// question, retrieve passages, gate on relevance, build the grounding prompt,
// and delegate generation to the selected backend.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/llm"
	"github.com/hyperjump/kotaeru/internal/vector"
	"go.uber.org/zap"
)

// Fixed short-circuit answers. Retrieval that finds nothing, or only weak
// matches, terminates here without ever invoking the generation backend.
const (
	MsgNoResults   = "No relevant information found."
	MsgNotRelevant = "The document does not contain information related to your question."
)

// Pipeline answers questions against the vector index. It is stateless across
// requests; all state lives in the index and the request itself.
type Pipeline struct {
	embedder embedding.Embedder
	index    *vector.Index
	topK     int
	minScore float64
	logger   *zap.Logger // optional; when set, logs retrieval decisions
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for debug output (retrieval scores, gate decisions).
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline with the given dependencies. cfg supplies
// the default top-k and the relevance threshold.
func NewPipeline(embedder embedding.Embedder, index *vector.Index, cfg *config.RAGConfig, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		embedder: embedder,
		index:    index,
		topK:     cfg.TopK,
		minScore: cfg.MinScore,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer runs the full flow for one question: embed once, retrieve topK
// passages, gate on the top score, build the grounding prompt, and generate.
// topK 0 means the configured default; negative values are rejected by the
// index with ErrInvalidTopK. The returned answer is trimmed of surrounding
// whitespace.
func (p *Pipeline) Answer(ctx context.Context, question string, gen llm.Generator, topK int) (string, error) {
	if topK == 0 {
		topK = p.topK
	}
	queryVec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}

	results, err := p.index.Search(ctx, queryVec, topK)
	if err != nil {
		return "", fmt.Errorf("search index: %w", err)
	}
	if len(results) == 0 {
		return MsgNoResults, nil
	}
	if results[0].Score < p.minScore {
		if p.logger != nil {
			p.logger.Debug("relevance gate rejected retrieval",
				zap.Float64("top_score", results[0].Score),
				zap.Float64("min_score", p.minScore))
		}
		return MsgNotRelevant, nil
	}

	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Text
	}
	prompt := BuildPrompt(passages, question)

	answer, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
