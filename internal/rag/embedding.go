package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/lore"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	ErrEmptyTexts      = errors.New("no texts provided for embedding")
	ErrMissingAPIKey   = errors.New("no OpenAI API key configured for embeddings")
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

const (
	DefaultEmbeddingModel     = "text-embedding-3-small"
	DefaultEmbeddingDimension = 1536

	// MaxInputRunes keeps a single input inside the embedding model's
	// context window (about 8k tokens at four characters per token).
	MaxInputRunes = 30000
)

// EmbeddingRecord is one embedded input. Text is the caller's text, not the
// clamped input sent to the model.
type EmbeddingRecord struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
	Model     string    `json:"model"`
}

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	// Embed returns one record per text, in input order.
	Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error)
	GetModel() string
	GetDimension() int
}

// OpenAIEmbedder embeds lore through the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an OpenAI embedder. An empty apiKey falls back to
// the OPENAI_API_KEY environment variable.
func NewOpenAIEmbedder(apiKey, model string, dimension int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if dimension <= 0 {
		dimension = DefaultEmbeddingDimension
	}

	return &OpenAIEmbedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		dimension: dimension,
	}, nil
}

func (e *OpenAIEmbedder) GetModel() string { return e.model }

func (e *OpenAIEmbedder) GetDimension() int { return e.dimension }

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	inputs, err := embeddingInputs(texts)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model:          e.model,
		Dimensions:     openai.Int(int64(e.dimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(texts), len(resp.Data))
	}

	records := make([]EmbeddingRecord, len(texts))
	for _, data := range resp.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, idx)
		}
		records[idx] = EmbeddingRecord{
			Text:      texts[idx],
			Embedding: toFloat32(data.Embedding),
			Index:     idx,
			Model:     e.model,
		}
	}
	return records, nil
}

// EmbedFacts embeds the given facts and pairs each vector with its fact's
// metadata, ready for VectorStore.Insert.
func EmbedFacts(ctx context.Context, embedder Embedder, facts []lore.Fact) ([]FactRecord, error) {
	texts := make([]string, len(facts))
	for i, f := range facts {
		texts[i] = FactText(f)
	}

	embeddings, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(facts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(facts), len(embeddings))
	}

	records := make([]FactRecord, len(facts))
	for i, f := range facts {
		records[i] = FactRecord{
			FactID:    f.ID,
			WorldID:   f.WorldID,
			Category:  string(f.Category),
			Title:     f.Title,
			Text:      texts[i],
			Embedding: embeddings[i].Embedding,
		}
	}
	return records, nil
}

// embeddingInputs validates texts and clamps each to MaxInputRunes.
func embeddingInputs(texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: text %d is blank", ErrEmptyTexts, i)
		}
		inputs[i] = clampRunes(t, MaxInputRunes)
	}
	return inputs, nil
}

func clampRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
