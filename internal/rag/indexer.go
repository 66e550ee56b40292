package rag

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/narraitor/internal/lore"
)

// DefaultIndexOptions returns sensible defaults for indexing
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BatchSize:    10, // Batch size for embedding API calls
		ForceReindex: false,
		SkipExisting: true,
	}
}

// IndexFacts embeds canonical facts in batches and writes them to the vector
// store, returning how many were indexed. Non-canonical facts are skipped.
// ForceReindex deletes the given facts first; SkipExisting leaves facts that
// are already indexed alone.
func IndexFacts(
	ctx context.Context,
	facts []lore.Fact,
	embedder Embedder,
	vectorStore VectorStore,
	opts IndexOptions,
) (int, error) {
	if embedder == nil {
		return 0, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return 0, fmt.Errorf("vector store cannot be nil")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}

	canonical := make([]lore.Fact, 0, len(facts))
	for _, f := range facts {
		if f.IsCanonical {
			canonical = append(canonical, f)
		}
	}
	if len(canonical) == 0 {
		return 0, nil
	}

	if opts.ForceReindex {
		if err := vectorStore.Delete(ctx, factIDs(canonical)); err != nil {
			return 0, fmt.Errorf("failed to delete existing facts: %w", err)
		}
	}

	toIndex := canonical
	if opts.SkipExisting && !opts.ForceReindex {
		toIndex = filterNewFacts(ctx, canonical, vectorStore)
	}

	indexed := 0
	for batchStart := 0; batchStart < len(toIndex); batchStart += opts.BatchSize {
		batchEnd := batchStart + opts.BatchSize
		if batchEnd > len(toIndex) {
			batchEnd = len(toIndex)
		}
		batch := toIndex[batchStart:batchEnd]

		records, err := EmbedFacts(ctx, embedder, batch)
		if err != nil {
			return indexed, fmt.Errorf("failed to embed batch starting at %d: %w", batchStart, err)
		}

		if err := vectorStore.Insert(ctx, records); err != nil {
			return indexed, fmt.Errorf("failed to insert batch starting at %d: %w", batchStart, err)
		}
		if err := vectorStore.Flush(ctx); err != nil {
			return indexed, fmt.Errorf("failed to flush batch starting at %d: %w", batchStart, err)
		}
		indexed += len(batch)
	}

	return indexed, nil
}

// filterNewFacts removes facts that already exist in the vector store. A
// failed lookup indexes everything.
func filterNewFacts(ctx context.Context, facts []lore.Fact, vectorStore VectorStore) []lore.Fact {
	existing, err := vectorStore.Query(ctx, factIDs(facts))
	if err != nil {
		return facts
	}

	fresh := make([]lore.Fact, 0, len(facts))
	for _, f := range facts {
		if !existing[f.ID] {
			fresh = append(fresh, f)
		}
	}
	return fresh
}

func factIDs(facts []lore.Fact) []string {
	ids := make([]string, len(facts))
	for i, f := range facts {
		ids[i] = f.ID
	}
	return ids
}
