package narrative

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiLLM implements the LLM interface using Google's Gemini API.
type GeminiLLM struct {
	client *genai.Client
	config LLMConfig
}

// NewGeminiLLM creates a Gemini-backed LLM implementation.
func NewGeminiLLM(ctx context.Context, config LLMConfig) (*GeminiLLM, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key (set GEMINI_API_KEY or provide in config)", ErrInvalidConfig)
	}
	if config.Model == "" || strings.HasPrefix(config.Model, "gpt-") {
		config.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &GeminiLLM{client: client, config: config}, nil
}

// Generate sends the prompt to Gemini and returns the first text part.
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	model := g.client.GenerativeModel(g.config.Model)
	if g.config.Temperature > 0 {
		model.SetTemperature(g.config.Temperature)
	}
	if g.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.config.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLLMFailed, err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
		break
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrLLMFailed)
	}
	return b.String(), nil
}

// Close releases the underlying gRPC connection.
func (g *GeminiLLM) Close() error {
	return g.client.Close()
}
