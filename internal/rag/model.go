// Package rag keeps an optional semantic index of canonical lore facts in a
// vector store so scenes can recall lore that matches what the player does.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/lore"
)

// FactRecord is one embedded lore fact as written to the vector store.
type FactRecord struct {
	FactID    string    `json:"fact_id"`
	WorldID   string    `json:"world_id"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// FactChunk is a recalled fact with its similarity score.
type FactChunk struct {
	FactID   string  `json:"fact_id"`
	WorldID  string  `json:"world_id"`
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

// SearchOptions narrows a vector search.
type SearchOptions struct {
	WorldID string   `json:"world_id,omitempty"`
	FactIDs []string `json:"fact_ids,omitempty"`
}

// VectorStore defines the interface for vector storage and similarity search
type VectorStore interface {
	// Insert writes a batch of embedded facts
	Insert(ctx context.Context, records []FactRecord) error

	// Flush ensures all pending data is persisted
	Flush(ctx context.Context) error

	// Search performs top-K similarity search with optional filtering
	Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]FactChunk, error)

	// Query reports which fact IDs are already indexed
	Query(ctx context.Context, factIDs []string) (map[string]bool, error)

	// Delete removes records by fact ID
	Delete(ctx context.Context, factIDs []string) error

	// GetStats returns collection statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close releases resources and closes connections
	Close() error
}

// IndexOptions provides configuration for fact indexing
type IndexOptions struct {
	// BatchSize determines how many facts to embed at once
	BatchSize int

	// ForceReindex deletes and re-inserts facts even if they exist
	ForceReindex bool

	// SkipExisting leaves already indexed facts untouched
	SkipExisting bool
}

// FactText is the text embedded for a fact.
func FactText(f lore.Fact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", f.Title, f.Content)
	if len(f.Tags) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(f.Tags, ", "))
	}
	return b.String()
}
