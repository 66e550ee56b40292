package orchestrator

import (
	"fmt"

	"github.com/Yates-Labs/narraitor/internal/config"
	"github.com/Yates-Labs/narraitor/internal/narrative"
	"github.com/rs/zerolog"
)

// llmConfigFrom selects the API key matching the configured provider.
func llmConfigFrom(cfg *config.Config) narrative.LLMConfig {
	lc := narrative.DefaultLLMConfig()
	lc.Provider = cfg.AIProvider
	if cfg.AIModel != "" {
		lc.Model = cfg.AIModel
	}
	if cfg.AITemperature > 0 {
		lc.Temperature = cfg.AITemperature
	}
	if cfg.AIMaxTokens > 0 {
		lc.MaxTokens = cfg.AIMaxTokens
	}
	switch cfg.AIProvider {
	case "gemini":
		lc.APIKey = cfg.GeminiAPIKey
	default:
		lc.APIKey = cfg.OpenAIAPIKey
	}
	return lc
}

func generatorOptions(cfg *config.Config, templates *narrative.TemplateSet, log zerolog.Logger) []narrative.GeneratorOption {
	opts := []narrative.GeneratorOption{
		narrative.WithTemplates(templates),
		narrative.WithLogger(log),
	}
	if cfg.EndingMaxAttempts > 0 {
		opts = append(opts, narrative.WithMaxAttempts(cfg.EndingMaxAttempts))
	}
	if cfg.EndingRetryDelay > 0 {
		opts = append(opts, narrative.WithRetryDelay(cfg.EndingRetryDelay))
	}
	return opts
}

func loadTemplates(cfg *config.Config) (*narrative.TemplateSet, error) {
	if cfg.PromptTemplate == "" {
		return narrative.DefaultTemplates(), nil
	}
	ts, err := narrative.LoadTemplatesFile(cfg.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return ts, nil
}

// newImager uses OpenAI images when a key is configured and the placeholder
// otherwise.
func newImager(cfg *config.Config, log zerolog.Logger) narrative.ImageGenerator {
	if cfg.AIProvider == "mock" || cfg.OpenAIAPIKey == "" {
		return narrative.PlaceholderImager{}
	}
	imager, err := narrative.NewOpenAIImager(cfg.OpenAIAPIKey, cfg.ImageModel)
	if err != nil {
		log.Warn().Err(err).Msg("image generation falls back to placeholder")
		return narrative.PlaceholderImager{}
	}
	return imager
}
