package llm

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

// HuggingFaceGenerator generates answers via the Hugging Face Inference API
// text-generation pipeline. A token is optional for public models.
type HuggingFaceGenerator struct {
	client  *http.Client
	baseURL string
	model   string
	token   string
}

// NewHuggingFaceGenerator creates a Hugging Face generator. token falls back
// to HF_API_TOKEN; baseURL overrides the inference endpoint when non-empty.
func NewHuggingFaceGenerator(token, model, baseURL string) *HuggingFaceGenerator {
	if token == "" {
		token = os.Getenv("HF_API_TOKEN")
	}
	if baseURL == "" {
		baseURL = defaultHFBaseURL
	}
	return &HuggingFaceGenerator{
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: baseURL,
		model:   model,
		token:   token,
	}
}

type hfGenerateRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

type hfGenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Generate posts the prompt to the model endpoint and returns the generated text.
func (g *HuggingFaceGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(hfGenerateRequest{
		Inputs:     prompt,
		Parameters: map[string]any{"max_new_tokens": 256},
		Options:    map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: huggingface: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: huggingface: inference API returned %d: %s",
			ErrProviderUnavailable, resp.StatusCode, string(b))
	}
	var out []hfGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: huggingface: decode response: %v", ErrProviderUnavailable, err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%w: huggingface: empty response", ErrProviderUnavailable)
	}
	return out[0].GeneratedText, nil
}
