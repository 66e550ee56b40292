package rag

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/Yates-Labs/narraitor/internal/lore"
	"github.com/rs/zerolog"
)

// mockEmbedder implements Embedder interface for testing
type mockEmbedder struct {
	embedFunc func(ctx context.Context, texts []string) ([]EmbeddingRecord, error)
	calls     int
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	m.calls++
	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}
	records := make([]EmbeddingRecord, len(texts))
	for i, text := range texts {
		records[i] = EmbeddingRecord{
			Text:      text,
			Embedding: []float32{float32(len(text)), float32(i), 1.0},
			Index:     i,
			Model:     "mock",
		}
	}
	return records, nil
}

func (m *mockEmbedder) GetModel() string  { return "mock" }
func (m *mockEmbedder) GetDimension() int { return 3 }

// mockVectorStore implements VectorStore interface for testing
type mockVectorStore struct {
	records    map[string]FactRecord
	inserts    int
	flushes    int
	deleted    []string
	searchOpts *SearchOptions
	searchErr  error
	queryErr   error
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{records: make(map[string]FactRecord)}
}

func (m *mockVectorStore) Insert(ctx context.Context, records []FactRecord) error {
	m.inserts++
	for _, r := range records {
		m.records[r.FactID] = r
	}
	return nil
}

func (m *mockVectorStore) Flush(ctx context.Context) error {
	m.flushes++
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]FactChunk, error) {
	m.searchOpts = opts
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	ids := make([]string, 0, len(m.records))
	for id, r := range m.records {
		if opts != nil && opts.WorldID != "" && r.WorldID != opts.WorldID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	chunks := []FactChunk{}
	for _, id := range ids {
		if len(chunks) >= topK {
			break
		}
		r := m.records[id]
		chunks = append(chunks, FactChunk{
			FactID:   r.FactID,
			WorldID:  r.WorldID,
			Category: r.Category,
			Title:    r.Title,
			Text:     r.Text,
			Score:    0.9,
		})
	}
	return chunks, nil
}

func (m *mockVectorStore) Query(ctx context.Context, factIDs []string) (map[string]bool, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	out := make(map[string]bool, len(factIDs))
	for _, id := range factIDs {
		_, ok := m.records[id]
		out[id] = ok
	}
	return out, nil
}

func (m *mockVectorStore) Delete(ctx context.Context, factIDs []string) error {
	for _, id := range factIDs {
		delete(m.records, id)
	}
	m.deleted = append(m.deleted, factIDs...)
	return nil
}

func (m *mockVectorStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"row_count": len(m.records)}, nil
}

func (m *mockVectorStore) Close() error { return nil }

func TestNewRetriever(t *testing.T) {
	embedder := &mockEmbedder{}
	store := newMockVectorStore()

	t.Run("Valid parameters", func(t *testing.T) {
		retriever, err := NewRetriever(embedder, store, nil)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if retriever == nil {
			t.Fatal("Expected retriever to be non-nil")
		}
	})

	t.Run("Nil embedder", func(t *testing.T) {
		if _, err := NewRetriever(nil, store, nil); err == nil {
			t.Fatal("Expected error for nil embedder")
		}
	})

	t.Run("Nil vector store", func(t *testing.T) {
		if _, err := NewRetriever(embedder, nil, nil); err == nil {
			t.Fatal("Expected error for nil vector store")
		}
	})
}

func TestRecallFacts(t *testing.T) {
	ctx := context.Background()
	store := newMockVectorStore()
	store.records["f1"] = FactRecord{FactID: "f1", WorldID: "w1", Title: "Sir Aldric", Text: "Sir Aldric: guards the gate"}
	store.records["f2"] = FactRecord{FactID: "f2", WorldID: "w2", Title: "Tower of Dawn", Text: "Tower of Dawn: a ruin"}

	retriever, err := NewRetriever(&mockEmbedder{}, store, nil)
	if err != nil {
		t.Fatalf("Failed to create retriever: %v", err)
	}

	t.Run("Filters by world", func(t *testing.T) {
		chunks, err := retriever.RecallFacts(ctx, "who guards the gate", "w1", 5)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(chunks) != 1 || chunks[0].FactID != "f1" {
			t.Fatalf("Expected only f1, got %+v", chunks)
		}
		if store.searchOpts == nil || store.searchOpts.WorldID != "w1" {
			t.Errorf("Expected world filter w1, got %+v", store.searchOpts)
		}
	})

	t.Run("Empty query", func(t *testing.T) {
		if _, err := retriever.RecallFacts(ctx, "", "w1", 2); err == nil {
			t.Fatal("Expected error for empty query")
		}
	})

	t.Run("Invalid topK", func(t *testing.T) {
		if _, err := retriever.RecallFacts(ctx, "gate", "w1", 0); err == nil {
			t.Fatal("Expected error for topK <= 0")
		}
	})
}

func TestRecallLore_ResolvesCurrentFacts(t *testing.T) {
	ctx := context.Background()
	facts := lore.NewStore(ctx, nil, zerolog.Nop())

	kept, err := facts.CreateFact(ctx, lore.Fact{WorldID: "w1", Category: lore.CategoryCharacters, Title: "Sir Aldric", Content: "Guards the gate.", IsCanonical: true})
	if err != nil {
		t.Fatal(err)
	}
	demoted, err := facts.CreateFact(ctx, lore.Fact{WorldID: "w1", Category: lore.CategoryLocations, Title: "Old Mill", Content: "Burned down.", IsCanonical: true})
	if err != nil {
		t.Fatal(err)
	}

	store := newMockVectorStore()
	if _, err := IndexFacts(ctx, facts.All(), &mockEmbedder{}, store, DefaultIndexOptions()); err != nil {
		t.Fatal(err)
	}
	canonical := false
	if _, _, err := facts.UpdateFact(ctx, demoted.ID, lore.FactPatch{IsCanonical: &canonical}); err != nil {
		t.Fatal(err)
	}
	store.records["gone"] = FactRecord{FactID: "gone", WorldID: "w1"}

	retriever, err := NewRetriever(&mockEmbedder{}, store, facts)
	if err != nil {
		t.Fatal(err)
	}
	got, err := retriever.RecallLore(ctx, "gate", "w1", 10)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 1 || got[0].ID != kept.ID {
		t.Fatalf("Expected only %s, got %+v", kept.ID, got)
	}
}

func TestRecallLore_WithoutLookup(t *testing.T) {
	store := newMockVectorStore()
	store.records["f1"] = FactRecord{FactID: "f1", WorldID: "w1", Category: "items", Title: "Dawnblade", Text: "Dawnblade: a sword"}

	retriever, _ := NewRetriever(&mockEmbedder{}, store, nil)
	got, err := retriever.RecallLore(context.Background(), "sword", "w1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Category != lore.CategoryItems || got[0].Content != "Dawnblade: a sword" {
		t.Errorf("unexpected facts: %+v", got)
	}
}

func TestEmbeddingError(t *testing.T) {
	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
			return nil, fmt.Errorf("embedding service unavailable")
		},
	}
	retriever, _ := NewRetriever(embedder, newMockVectorStore(), nil)

	if _, err := retriever.RecallFacts(context.Background(), "test", "w1", 5); err == nil {
		t.Fatal("Expected error when embedding fails")
	}
}

func TestSearchError(t *testing.T) {
	store := newMockVectorStore()
	store.searchErr = fmt.Errorf("search service unavailable")
	retriever, _ := NewRetriever(&mockEmbedder{}, store, nil)

	if _, err := retriever.RecallFacts(context.Background(), "test", "w1", 5); err == nil {
		t.Fatal("Expected error when search fails")
	}
}
