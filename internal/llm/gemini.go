package llm

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// GeminiGenerator generates answers via the Google Gemini API.
type GeminiGenerator struct {
	apiKey string
	model  string
}

// NewGeminiGenerator creates a Gemini generator. apiKey falls back to
// GEMINI_API_KEY; a missing key fails with ErrProviderUnavailable.
func NewGeminiGenerator(apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini: GEMINI_API_KEY not set", ErrProviderUnavailable)
	}
	return &GeminiGenerator{apiKey: apiKey, model: model}, nil
}

// Generate sends the prompt as plain text content and returns the reply.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrProviderUnavailable, err)
	}
	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrProviderUnavailable, err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini: empty response", ErrProviderUnavailable)
	}
	return text, nil
}
