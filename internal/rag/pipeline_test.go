package rag

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/vector"
)

// memStore is an in-memory passage store for pipeline tests.
type memStore struct {
	passages []string
}

func (m *memStore) Existed() bool                                 { return false }
func (m *memStore) All(ctx context.Context) ([]string, error)     { return m.passages, nil }
func (m *memStore) ReplaceAll(ctx context.Context, p []string) error {
	m.passages = append([]string(nil), p...)
	return nil
}
func (m *memStore) Close() error { return nil }

// stubEmbedder returns a fixed vector per text.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.vectors[text]
	if !ok {
		return nil, errors.New("no stub vector for text")
	}
	return v, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }
func (s *stubEmbedder) Close() error    { return nil }

// spyGenerator records the prompt it was called with.
type spyGenerator struct {
	answer string
	err    error
	called bool
	prompt string
}

func (g *spyGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.called = true
	g.prompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func ragConfig() *config.RAGConfig {
	return &config.RAGConfig{ChunkSize: 500, TopK: 3, MinScore: 0.3}
}

func newTestIndex(t *testing.T) *vector.Index {
	t.Helper()
	idx, err := vector.Open(context.Background(), 2,
		filepath.Join(t.TempDir(), "vectors.bin"), &memStore{})
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

// unitAt returns a unit vector whose inner product with (1, 0) equals score.
func unitAt(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

func TestPipeline_AnswerHappyPath(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Insert(ctx,
		[][]float32{unitAt(0.9), unitAt(0.5), unitAt(0.1)},
		[]string{"highly relevant passage", "somewhat relevant", "barely related"},
	); err != nil {
		t.Fatal(err)
	}
	emb := &stubEmbedder{vectors: map[string][]float32{"what is this about?": {1, 0}}}
	gen := &spyGenerator{answer: "  It is about testing.\n"}
	p := NewPipeline(emb, idx, ragConfig())

	answer, err := p.Answer(ctx, "what is this about?", gen, 0)
	if err != nil {
		t.Fatal(err)
	}
	if answer != "It is about testing." {
		t.Errorf("answer = %q, not trimmed", answer)
	}
	if !gen.called {
		t.Fatal("generator was not invoked")
	}
	for _, want := range []string{"highly relevant passage", "somewhat relevant", "what is this about?", "CONTEXT:", "ANSWER:"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
}

func TestPipeline_EmptyIndexShortCircuits(t *testing.T) {
	idx := newTestIndex(t)
	emb := &stubEmbedder{vectors: map[string][]float32{"anything": {1, 0}}}
	gen := &spyGenerator{answer: "should never be used"}
	p := NewPipeline(emb, idx, ragConfig())

	answer, err := p.Answer(context.Background(), "anything", gen, 0)
	if err != nil {
		t.Fatal(err)
	}
	if answer != MsgNoResults {
		t.Errorf("answer = %q, want %q", answer, MsgNoResults)
	}
	if gen.called {
		t.Error("generator invoked on empty index")
	}
}

func TestPipeline_RelevanceGate(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	// Three entries, top similarity 0.25: below the 0.3 gate.
	if err := idx.Insert(ctx,
		[][]float32{unitAt(0.25), unitAt(0.1), unitAt(0)},
		[]string{"p1", "p2", "p3"},
	); err != nil {
		t.Fatal(err)
	}
	emb := &stubEmbedder{vectors: map[string][]float32{"unrelated question": {1, 0}}}
	gen := &spyGenerator{answer: "should never be used"}
	p := NewPipeline(emb, idx, ragConfig())

	answer, err := p.Answer(ctx, "unrelated question", gen, 0)
	if err != nil {
		t.Fatal(err)
	}
	if answer != MsgNotRelevant {
		t.Errorf("answer = %q, want %q", answer, MsgNotRelevant)
	}
	if gen.called {
		t.Error("generator invoked despite failed relevance gate")
	}
}

func TestPipeline_EmbeddingFailure(t *testing.T) {
	idx := newTestIndex(t)
	emb := &stubEmbedder{err: embedding.ErrUnavailable}
	p := NewPipeline(emb, idx, ragConfig())

	_, err := p.Answer(context.Background(), "q", &spyGenerator{}, 0)
	if !errors.Is(err, embedding.ErrUnavailable) {
		t.Errorf("expected embedding.ErrUnavailable, got %v", err)
	}
}

func TestPipeline_GeneratorFailure(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Insert(ctx, [][]float32{unitAt(0.9)}, []string{"p"}); err != nil {
		t.Fatal(err)
	}
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	genErr := errors.New("backend down")
	_, err := NewPipeline(emb, idx, ragConfig()).Answer(ctx, "q", &spyGenerator{err: genErr}, 0)
	if !errors.Is(err, genErr) {
		t.Errorf("expected generator error, got %v", err)
	}
}

func TestPipeline_TopKOverride(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Insert(ctx,
		[][]float32{unitAt(0.9), unitAt(0.8), unitAt(0.7)},
		[]string{"first", "second", "third"},
	); err != nil {
		t.Fatal(err)
	}
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	gen := &spyGenerator{answer: "ok"}
	if _, err := NewPipeline(emb, idx, ragConfig()).Answer(ctx, "q", gen, 1); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(gen.prompt, "second") || strings.Contains(gen.prompt, "third") {
		t.Errorf("top_k=1 prompt includes extra passages:\n%s", gen.prompt)
	}
}

func TestPipeline_NegativeTopKRejected(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Insert(ctx, [][]float32{unitAt(0.9)}, []string{"p"}); err != nil {
		t.Fatal(err)
	}
	emb := &stubEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	gen := &spyGenerator{answer: "should never be used"}

	_, err := NewPipeline(emb, idx, ragConfig()).Answer(ctx, "q", gen, -5)
	if !errors.Is(err, vector.ErrInvalidTopK) {
		t.Fatalf("expected ErrInvalidTopK, got %v", err)
	}
	if gen.called {
		t.Error("generator invoked despite invalid top_k")
	}
}

func TestBuildPrompt_Pinned(t *testing.T) {
	got := BuildPrompt([]string{"chunk one", "chunk two"}, "the question?")
	want := `You are a helpful assistant.
Answer the question using ONLY the context below.
If the answer is not present in the context or not relevant to the question, say:
"I could not find the answer in the provided document."

CONTEXT:
chunk one

chunk two

QUESTION:
the question?

ANSWER:`
	if got != want {
		t.Errorf("prompt changed:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}
