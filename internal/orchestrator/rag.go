package orchestrator

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/narraitor/internal/config"
	"github.com/Yates-Labs/narraitor/internal/lore"
	"github.com/Yates-Labs/narraitor/internal/rag"
	"github.com/rs/zerolog"
)

// RAGConfig holds configuration for the semantic lore pipeline.
type RAGConfig struct {
	// TopK is the number of facts recalled per query
	TopK int

	// BatchSize is the number of facts embedded per API call
	BatchSize int

	// EmbedderModel is the model to use for embeddings (e.g., "text-embedding-3-small")
	EmbedderModel string

	// EmbedderDimension is the vector dimension for embeddings
	EmbedderDimension int

	// APIKey authenticates the embedder; empty falls back to OPENAI_API_KEY
	APIKey string

	// MilvusConfig holds the Milvus vector store configuration
	MilvusConfig rag.MilvusConfig
}

// DefaultRAGConfig returns sensible defaults for the lore pipeline.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		TopK:              5,
		BatchSize:         10,
		EmbedderModel:     rag.DefaultEmbeddingModel,
		EmbedderDimension: rag.DefaultEmbeddingDimension,
		MilvusConfig:      rag.DefaultMilvusConfig(),
	}
}

// RAGConfigFrom derives the pipeline configuration from service settings.
func RAGConfigFrom(cfg *config.Config) RAGConfig {
	rc := DefaultRAGConfig()
	if cfg.EmbeddingModel != "" {
		rc.EmbedderModel = cfg.EmbeddingModel
	}
	if cfg.EmbeddingDimension > 0 {
		rc.EmbedderDimension = cfg.EmbeddingDimension
	}
	rc.APIKey = cfg.OpenAIAPIKey
	rc.MilvusConfig = rag.MilvusConfigFrom(cfg)
	return rc
}

// LorePipeline indexes a world's canonical lore and recalls it by meaning.
type LorePipeline struct {
	config      RAGConfig
	embedder    rag.Embedder
	vectorStore rag.VectorStore
	retriever   *rag.Retriever
	facts       *lore.Store
	log         zerolog.Logger
}

// NewLorePipeline connects the embedder and Milvus store.
func NewLorePipeline(ctx context.Context, config RAGConfig, facts *lore.Store, log zerolog.Logger) (*LorePipeline, error) {
	embedder, err := rag.NewOpenAIEmbedder(config.APIKey, config.EmbedderModel, config.EmbedderDimension)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	config.MilvusConfig.Dimension = embedder.GetDimension()
	vectorStore, err := rag.NewMilvusStore(ctx, config.MilvusConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	p, err := newLorePipeline(config, embedder, vectorStore, facts, log)
	if err != nil {
		vectorStore.Close()
		return nil, err
	}
	return p, nil
}

func newLorePipeline(config RAGConfig, embedder rag.Embedder, vectorStore rag.VectorStore, facts *lore.Store, log zerolog.Logger) (*LorePipeline, error) {
	if facts == nil {
		return nil, fmt.Errorf("lore store cannot be nil")
	}
	retriever, err := rag.NewRetriever(embedder, vectorStore, facts)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}
	return &LorePipeline{
		config:      config,
		embedder:    embedder,
		vectorStore: vectorStore,
		retriever:   retriever,
		facts:       facts,
		log:         log.With().Str("component", "lore_pipeline").Logger(),
	}, nil
}

// Close releases resources held by the pipeline.
func (p *LorePipeline) Close() error {
	if p.vectorStore != nil {
		return p.vectorStore.Close()
	}
	return nil
}

// Retriever exposes the recall side for scene generation.
func (p *LorePipeline) Retriever() *rag.Retriever { return p.retriever }

// IndexWorld embeds the canonical facts of a world. An empty worldID
// indexes every world.
func (p *LorePipeline) IndexWorld(ctx context.Context, worldID string, force bool) (int, error) {
	var facts []lore.Fact
	if worldID == "" {
		facts = p.facts.All()
	} else {
		facts = p.facts.GetFactsByWorld(worldID)
	}

	p.log.Info().Str("stage", "index").Str("world_id", worldID).Int("facts", len(facts)).Msg("indexing lore")

	opts := rag.IndexOptions{
		BatchSize:    p.config.BatchSize,
		ForceReindex: force,
		SkipExisting: !force,
	}
	n, err := rag.IndexFacts(ctx, facts, p.embedder, p.vectorStore, opts)
	if err != nil {
		return n, fmt.Errorf("failed to index lore: %w", err)
	}

	p.log.Info().Str("stage", "index").Int("indexed", n).Msg("lore indexed")
	return n, nil
}

// Recall returns the facts of a world closest in meaning to query. A
// non-positive topK uses the configured default.
func (p *LorePipeline) Recall(ctx context.Context, query, worldID string, topK int) ([]lore.Fact, error) {
	if topK <= 0 {
		topK = p.config.TopK
	}
	facts, err := p.retriever.RecallLore(ctx, query, worldID, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	p.log.Debug().Str("stage", "recall").Str("world_id", worldID).Int("facts", len(facts)).Msg("lore recalled")
	return facts, nil
}

// Forget removes facts from the index, e.g. after they are deleted.
func (p *LorePipeline) Forget(ctx context.Context, factIDs ...string) error {
	return p.vectorStore.Delete(ctx, factIDs)
}

// Stats reports the vector collection statistics.
func (p *LorePipeline) Stats(ctx context.Context) (map[string]interface{}, error) {
	return p.vectorStore.GetStats(ctx)
}
