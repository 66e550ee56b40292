package rag

import (
	"context"
	"os"
	"testing"

	"github.com/Yates-Labs/narraitor/internal/config"
	"github.com/Yates-Labs/narraitor/internal/lore"
)

func TestDefaultMilvusConfig(t *testing.T) {
	cfg := DefaultMilvusConfig()

	if cfg.Address == "" {
		t.Error("Expected non-empty address")
	}
	if cfg.CollectionName != "narraitor_lore" {
		t.Errorf("Expected collection narraitor_lore, got %s", cfg.CollectionName)
	}
	if cfg.Dimension != DefaultEmbeddingDimension {
		t.Errorf("Expected dimension %d, got %d", DefaultEmbeddingDimension, cfg.Dimension)
	}
	if cfg.IndexType != "HNSW" || cfg.MetricType != "COSINE" {
		t.Errorf("unexpected index settings: %s/%s", cfg.IndexType, cfg.MetricType)
	}
}

func TestMilvusConfigFrom(t *testing.T) {
	c := config.NewForTesting()
	c.MilvusAddress = "milvus:19530"
	c.EmbeddingDimension = 256

	cfg := MilvusConfigFrom(c)
	if cfg.Address != "milvus:19530" {
		t.Errorf("Address = %s", cfg.Address)
	}
	if cfg.CollectionName != c.MilvusCollection {
		t.Errorf("CollectionName = %s, want %s", cfg.CollectionName, c.MilvusCollection)
	}
	if cfg.Dimension != 256 {
		t.Errorf("Dimension = %d", cfg.Dimension)
	}
}

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name string
		opts *SearchOptions
		want string
	}{
		{"nil", nil, ""},
		{"empty", &SearchOptions{}, ""},
		{"world", &SearchOptions{WorldID: "w1"}, `world_id == "w1"`},
		{"facts", &SearchOptions{FactIDs: []string{"a", "b"}}, `fact_id in ["a", "b"]`},
		{"both", &SearchOptions{WorldID: "w1", FactIDs: []string{"a"}}, `world_id == "w1" && fact_id in ["a"]`},
		{"quoted", &SearchOptions{WorldID: `w"1`}, `world_id == "w\"1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filterExpr(tt.opts); got != tt.want {
				t.Errorf("filterExpr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMilvusStore_EmptyBatches(t *testing.T) {
	ctx := context.Background()
	store := &MilvusStore{config: DefaultMilvusConfig()}

	if err := store.Insert(ctx, nil); err != nil {
		t.Errorf("Expected nil for empty records, got: %v", err)
	}
	if err := store.Delete(ctx, nil); err != nil {
		t.Errorf("Expected nil for empty delete, got: %v", err)
	}
	got, err := store.Query(ctx, nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Expected empty query result, got %v, %v", got, err)
	}
	if _, err := store.Search(ctx, []float32{1, 2}, 1, nil); err == nil {
		t.Error("Expected dimension error")
	}
}

// Integration test: index, recall and delete against a live Milvus.
func TestMilvusStore_Integration_RecallWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	addr := os.Getenv("NARRAITOR_MILVUS_ADDRESS")
	if addr == "" || os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("NARRAITOR_MILVUS_ADDRESS or OPENAI_API_KEY not set")
	}

	ctx := context.Background()
	cfg := DefaultMilvusConfig()
	cfg.Address = addr
	cfg.CollectionName = "narraitor_lore_test"

	store, err := NewMilvusStore(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	embedder, err := NewOpenAIEmbedder("", DefaultEmbeddingModel, cfg.Dimension)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	facts := []lore.Fact{
		{ID: "it-knight", WorldID: "it-world", Category: lore.CategoryCharacters, Title: "Sir Aldric", Content: "A knight sworn to guard the eastern gate.", IsCanonical: true},
		{ID: "it-tower", WorldID: "it-world", Category: lore.CategoryLocations, Title: "Tower of Dawn", Content: "A ruined observatory on the cliffs.", IsCanonical: true},
	}
	defer store.Delete(ctx, []string{"it-knight", "it-tower"})

	opts := DefaultIndexOptions()
	opts.ForceReindex = true
	if _, err := IndexFacts(ctx, facts, embedder, store, opts); err != nil {
		t.Fatalf("IndexFacts failed: %v", err)
	}

	retriever, err := NewRetriever(embedder, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := retriever.RecallFacts(ctx, "who guards the gate?", "it-world", 1)
	if err != nil {
		t.Fatalf("RecallFacts failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].FactID != "it-knight" {
		t.Errorf("Expected it-knight, got %+v", chunks)
	}
}
