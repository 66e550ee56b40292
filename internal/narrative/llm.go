// Package narrative drives AI-backed storytelling for a play session.
// It defines a provider-agnostic LLM interface with concrete implementations
// for OpenAI and Gemini plus a deterministic mock for testing, the rolling
// context window used for prompt assembly, the ending generation pipeline
// and the store that owns segments and the session-ending lock.
package narrative

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate produces text from a prompt using the configured model.
	// Returns the generated text or an error if generation fails.
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Provider selects the backend: "openai", "gemini" or "mock"
	Provider string

	// Model specifies the model identifier (e.g., "gpt-4o", "gemini-1.5-flash")
	Model string

	// Temperature controls randomness (0.0 = deterministic, 2.0 = very random)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string
}

// DefaultLLMConfig returns sensible defaults for narrative generation.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "openai",
		Model:       "gpt-4o",
		Temperature: 0.8,
		MaxTokens:   2000,
	}
}

// NewLLM builds the provider named by config.Provider.
func NewLLM(ctx context.Context, config LLMConfig) (LLM, error) {
	switch config.Provider {
	case "", "openai":
		return NewOpenAILLM(config)
	case "gemini":
		return NewGeminiLLM(ctx, config)
	case "mock":
		return NewMockLLM(""), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, config.Provider)
	}
}
