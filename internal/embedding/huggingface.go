package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultHFBaseURL = "https://api-inference.huggingface.co"

// HuggingFaceEmbedder embeds text through the Hugging Face Inference API
// feature-extraction pipeline (sentence-transformers models).
type HuggingFaceEmbedder struct {
	client     *http.Client
	baseURL    string
	model      string
	token      string
	dimensions int
}

// NewHuggingFaceEmbedder creates an embedder for the given model. baseURL
// overrides the inference endpoint when non-empty (tests, proxies). token is
// optional; when empty, HF_API_TOKEN from the environment is used if set.
func NewHuggingFaceEmbedder(model string, dimensions int, baseURL, token string) *HuggingFaceEmbedder {
	if baseURL == "" {
		baseURL = defaultHFBaseURL
	}
	if token == "" {
		token = os.Getenv("HF_API_TOKEN")
	}
	return &HuggingFaceEmbedder{
		client:     &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		model:      model,
		token:      token,
		dimensions: dimensions,
	}
}

type hfEmbedRequest struct {
	Inputs  []string       `json:"inputs"`
	Options map[string]any `json:"options,omitempty"`
}

// EmbedBatch embeds texts in one request, preserving input order.
func (e *HuggingFaceEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(hfEmbedRequest{
		Inputs:  texts,
		Options: map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: inference API returned %d: %s", ErrUnavailable, resp.StatusCode, string(b))
	}
	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrUnavailable, len(vectors), len(texts))
	}
	for i, vec := range vectors {
		if len(vec) != e.dimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(vec), e.dimensions)
		}
	}
	return vectors, nil
}

// Embed embeds a single text.
func (e *HuggingFaceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions returns the embedding dimension.
func (e *HuggingFaceEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HuggingFaceEmbedder.
func (e *HuggingFaceEmbedder) Close() error {
	return nil
}
