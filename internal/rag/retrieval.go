package rag

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/narraitor/internal/lore"
)

// FactLookup resolves indexed fact IDs back to current lore.
type FactLookup interface {
	GetFact(id string) (lore.Fact, bool)
}

// Retriever provides semantic recall over indexed lore facts.
type Retriever struct {
	embedder    Embedder
	vectorStore VectorStore
	facts       FactLookup
}

// NewRetriever creates a new Retriever. facts may be nil, in which case
// RecallLore rebuilds facts from the indexed chunks.
func NewRetriever(embedder Embedder, vectorStore VectorStore, facts FactLookup) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}

	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
		facts:       facts,
	}, nil
}

// RecallFacts returns the topK indexed facts of a world closest to query.
func (r *Retriever) RecallFacts(ctx context.Context, query, worldID string, topK int) ([]FactChunk, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding generated for query")
	}

	chunks, err := r.vectorStore.Search(ctx, embeddings[0].Embedding, topK, &SearchOptions{WorldID: worldID})
	if err != nil {
		return nil, fmt.Errorf("failed to search for query: %w", err)
	}
	return chunks, nil
}

// RecallLore is RecallFacts resolved to lore facts. Facts deleted or made
// non-canonical since indexing are dropped.
func (r *Retriever) RecallLore(ctx context.Context, query, worldID string, topK int) ([]lore.Fact, error) {
	chunks, err := r.RecallFacts(ctx, query, worldID, topK)
	if err != nil {
		return nil, err
	}

	facts := make([]lore.Fact, 0, len(chunks))
	for _, c := range chunks {
		if r.facts == nil {
			facts = append(facts, lore.Fact{
				ID:          c.FactID,
				WorldID:     c.WorldID,
				Category:    lore.Category(c.Category),
				Title:       c.Title,
				Content:     c.Text,
				IsCanonical: true,
			})
			continue
		}
		f, ok := r.facts.GetFact(c.FactID)
		if !ok || !f.IsCanonical {
			continue
		}
		facts = append(facts, f)
	}
	return facts, nil
}
