package rag

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/Yates-Labs/narraitor/internal/lore"
)

func TestNewOpenAIEmbedder_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIEmbedder("", "text-embedding-3-small", 1536)
	if err != ErrMissingAPIKey {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewOpenAIEmbedder_Defaults(t *testing.T) {
	embedder, err := NewOpenAIEmbedder("sk-test", "", 0)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	if embedder.GetModel() != DefaultEmbeddingModel {
		t.Errorf("GetModel() = %q, want %q", embedder.GetModel(), DefaultEmbeddingModel)
	}
	if embedder.GetDimension() != DefaultEmbeddingDimension {
		t.Errorf("GetDimension() = %d, want %d", embedder.GetDimension(), DefaultEmbeddingDimension)
	}
}

func TestOpenAIEmbedder_EmptyTexts(t *testing.T) {
	embedder, err := NewOpenAIEmbedder("sk-test", "text-embedding-3-large", 3072)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	_, err = embedder.Embed(context.Background(), []string{})
	if err != ErrEmptyTexts {
		t.Errorf("expected ErrEmptyTexts, got %v", err)
	}
}

func TestOpenAIEmbedder_BlankText(t *testing.T) {
	embedder, err := NewOpenAIEmbedder("sk-test", "", 0)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	_, err = embedder.Embed(context.Background(), []string{"Sir Aldric", "  "})
	if !errors.Is(err, ErrEmptyTexts) {
		t.Errorf("expected ErrEmptyTexts, got %v", err)
	}
}

func TestClampRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "gate", 10, "gate"},
		{"exact", "gate", 4, "gate"},
		{"ascii cut", "gatehouse", 4, "gate"},
		{"multibyte kept whole", "éé", 2, "éé"},
		{"multibyte cut", "ééé", 2, "éé"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampRunes(tt.in, tt.max); got != tt.want {
				t.Errorf("clampRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}

	inputs, err := embeddingInputs([]string{strings.Repeat("a", MaxInputRunes+5)})
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs[0]) != MaxInputRunes {
		t.Errorf("expected input clamped to %d, got %d", MaxInputRunes, len(inputs[0]))
	}
}

func TestEmbedFacts(t *testing.T) {
	facts := []lore.Fact{
		{ID: "f1", WorldID: "w1", Category: lore.CategoryCharacters, Title: "Sir Aldric", Content: "Guards the gate."},
		{ID: "f2", WorldID: "w1", Category: lore.CategoryLocations, Title: "Tower of Dawn", Content: "A ruin."},
	}

	records, err := EmbedFacts(context.Background(), &mockEmbedder{}, facts)
	if err != nil {
		t.Fatalf("EmbedFacts failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].FactID != "f2" || records[1].Category != "locations" || records[1].Text != "Tower of Dawn: A ruin." {
		t.Errorf("unexpected record: %+v", records[1])
	}
	if len(records[0].Embedding) != 3 {
		t.Errorf("expected mock embedding, got %v", records[0].Embedding)
	}

	short := &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
		return []EmbeddingRecord{{Text: texts[0]}}, nil
	}}
	if _, err := EmbedFacts(context.Background(), short, facts); !errors.Is(err, ErrEmbeddingFailed) {
		t.Errorf("expected ErrEmbeddingFailed on count mismatch, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	embedder, err := NewOpenAIEmbedder("", "text-embedding-3-small", 1536)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	texts := []string{"Sir Aldric guards the gate", "the Tower of Dawn"}
	records, err := embedder.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(records) != len(texts) {
		t.Errorf("expected %d records, got %d", len(texts), len(records))
	}
	for i, record := range records {
		if record.Text != texts[i] {
			t.Errorf("record[%d].Text = %q, want %q", i, record.Text, texts[i])
		}
		if len(record.Embedding) != 1536 {
			t.Errorf("record[%d] embedding dimension = %d, want 1536", i, len(record.Embedding))
		}
	}
}
