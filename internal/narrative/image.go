package narrative

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ImageRequest describes the ending an illustration is made for.
type ImageRequest struct {
	Ending          engine.StoryEnding `json:"ending"`
	World           engine.World       `json:"world"`
	Character       engine.Character   `json:"character"`
	RecentNarrative []string           `json:"recentNarrative,omitempty"`
	PromptOnly      bool               `json:"promptOnly,omitempty"`
}

// ImageResult mirrors the response of the ending image endpoint.
type ImageResult struct {
	ImageURL    string `json:"imageUrl,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	AIGenerated bool   `json:"aiGenerated"`
	Service     string `json:"service,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// ImageGenerator turns a prompt into an image URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (ImageResult, error)
}

var toneStyles = map[engine.EndingTone]string{
	engine.ToneTriumphant:  "golden light, heroic composition",
	engine.ToneBittersweet: "soft dusk colours, quiet melancholy",
	engine.ToneMysterious:  "mist, deep shadows, hidden details",
	engine.ToneTragic:      "stormy sky, muted palette",
	engine.ToneHopeful:     "dawn light, open horizon",
}

// BuildImagePrompt describes the closing scene of an ending for an image model.
func BuildImagePrompt(req ImageRequest) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Epic fantasy illustration of %s", nonEmpty(req.Character.Name, "a lone adventurer")))
	if req.Character.Description != "" {
		b.WriteString(fmt.Sprintf(" (%s)", truncate(req.Character.Description, 120)))
	}
	b.WriteString(fmt.Sprintf(" in %s", nonEmpty(req.World.Name, "a distant land")))
	if req.World.Theme != "" {
		b.WriteString(fmt.Sprintf(", a %s world", req.World.Theme))
	}
	b.WriteString(". ")

	if req.Ending.Epilogue != "" {
		b.WriteString("Scene: " + truncate(req.Ending.Epilogue, 300) + " ")
	} else if len(req.RecentNarrative) > 0 {
		b.WriteString("Scene: " + truncate(req.RecentNarrative[0], 300) + " ")
	}

	if style, ok := toneStyles[req.Ending.Tone]; ok {
		b.WriteString("Mood: " + style + ". ")
	}
	b.WriteString("Painterly, cinematic, no text.")
	return b.String()
}

func nonEmpty(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

// OpenAIImager generates images with the OpenAI Images API.
type OpenAIImager struct {
	client openai.Client
	model  string
}

func NewOpenAIImager(apiKey, model string) (*OpenAIImager, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key for image generation", ErrInvalidConfig)
	}
	if model == "" {
		model = string(openai.ImageModelDallE3)
	}
	return &OpenAIImager{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (o *OpenAIImager) GenerateImage(ctx context.Context, prompt string) (ImageResult, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("%w: image API: %w", ErrLLMFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return ImageResult{}, fmt.Errorf("%w: image API returned no data", ErrLLMFailed)
	}
	return ImageResult{
		ImageURL:    resp.Data[0].URL,
		Prompt:      prompt,
		AIGenerated: true,
		Service:     "openai",
	}, nil
}

// PlaceholderImager returns a static placeholder URL. It is used when no
// image provider is configured or the provider fails.
type PlaceholderImager struct {
	BaseURL string
}

func (p PlaceholderImager) GenerateImage(ctx context.Context, prompt string) (ImageResult, error) {
	base := p.BaseURL
	if base == "" {
		base = "https://placehold.co/1024x1024/1a1a2e/eaeaea"
	}
	return ImageResult{
		ImageURL:    base + "?text=" + url.QueryEscape("The End"),
		Prompt:      prompt,
		AIGenerated: false,
		Service:     "placeholder",
		Placeholder: true,
	}, nil
}
