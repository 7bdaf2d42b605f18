// Package llm provides pluggable answer-generation backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedProvider reports a provider name outside the supported set.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrProviderUnavailable reports a backend that is misconfigured or
	// unreachable (missing credential, network failure, API error).
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// Generator turns a prompt into an answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Default models per provider, matching each backend's cheapest sensible default.
const (
	DefaultOpenAIModel      = "gpt-4o-mini"
	DefaultGeminiModel      = "gemini-1.5-flash"
	DefaultHuggingFaceModel = "google/flan-t5-base"
)

// New maps a provider name to a generator. Matching is case-insensitive.
// apiKey and model are optional; each provider falls back to its environment
// credential and default model. Unknown names fail with ErrUnsupportedProvider
// naming the offending value.
func New(provider, apiKey, model string) (Generator, error) {
	switch strings.ToLower(provider) {
	case "openai":
		if model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAIGenerator(apiKey, model)
	case "gemini":
		if model == "" {
			model = DefaultGeminiModel
		}
		return NewGeminiGenerator(apiKey, model)
	case "huggingface":
		if model == "" {
			model = DefaultHuggingFaceModel
		}
		return NewHuggingFaceGenerator(apiKey, model, ""), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}
