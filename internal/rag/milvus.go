package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/config"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Common errors for Milvus operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
	ErrMissingFactID    = errors.New("record is missing fact_id")
)

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string
	Dimension      int // must match the embedder
	IndexType      string
	MetricType     string

	// HNSW index parameters
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultMilvusConfig returns the local development defaults.
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		CollectionName: "narraitor_lore",
		Dimension:      DefaultEmbeddingDimension,
		IndexType:      "HNSW",
		MetricType:     "COSINE",
		M:              16,
		EfConstruction: 256,
		EfSearch:       64,
	}
}

// MilvusConfigFrom overlays the service configuration on the defaults.
func MilvusConfigFrom(cfg *config.Config) MilvusConfig {
	mc := DefaultMilvusConfig()
	if cfg.MilvusAddress != "" {
		mc.Address = cfg.MilvusAddress
	}
	if cfg.MilvusCollection != "" {
		mc.CollectionName = cfg.MilvusCollection
	}
	if cfg.EmbeddingDimension > 0 {
		mc.Dimension = cfg.EmbeddingDimension
	}
	return mc
}

// MilvusStore implements VectorStore using Milvus
type MilvusStore struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusStore connects to Milvus and ensures the lore collection exists.
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &MilvusStore{
		client: c,
		config: config,
	}

	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return store, nil
}

func varchar(name string, maxLen int) *entity.Field {
	return &entity.Field{
		Name:     name,
		DataType: entity.FieldTypeVarChar,
		TypeParams: map[string]string{
			"max_length": strconv.Itoa(maxLen),
		},
	}
}

// ensureCollection creates the collection with schema if it doesn't exist
func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if has {
		return m.client.LoadCollection(ctx, m.config.CollectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: m.config.CollectionName,
		Description:    "canonical lore facts",
		AutoID:         true,
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			varchar("fact_id", 64),
			varchar("world_id", 64),
			varchar("category", 32),
			varchar("title", 512),
			varchar("text", 65535),
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(m.config.Dimension),
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.config.CollectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// Insert writes embedded facts. An empty batch is a no-op.
func (m *MilvusStore) Insert(ctx context.Context, records []FactRecord) error {
	if len(records) == 0 {
		return nil
	}

	factIDs := make([]string, len(records))
	worldIDs := make([]string, len(records))
	categories := make([]string, len(records))
	titles := make([]string, len(records))
	texts := make([]string, len(records))
	embeddings := make([][]float32, len(records))

	for i, r := range records {
		if r.FactID == "" {
			return fmt.Errorf("%w: record %d", ErrMissingFactID, i)
		}
		if len(r.Embedding) != m.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(r.Embedding))
		}
		factIDs[i] = r.FactID
		worldIDs[i] = r.WorldID
		categories[i] = r.Category
		titles[i] = r.Title
		texts[i] = r.Text
		embeddings[i] = r.Embedding
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("fact_id", factIDs),
		entity.NewColumnVarChar("world_id", worldIDs),
		entity.NewColumnVarChar("category", categories),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("embedding", m.config.Dimension, embeddings),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return nil
}

// Flush ensures inserted data is persisted
func (m *MilvusStore) Flush(ctx context.Context) error {
	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}
	return nil
}

// Search performs top-K similarity search with optional filtering
func (m *MilvusStore) Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]FactChunk, error) {
	if len(queryVector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryVector))
	}

	sp, err := entity.NewIndexHNSWSearchParam(m.config.EfSearch)
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	vectors := []entity.Vector{entity.FloatVector(queryVector)}
	outputFields := []string{"fact_id", "world_id", "category", "title", "text"}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		filterExpr(opts),
		outputFields,
		vectors,
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	if len(results) == 0 {
		return []FactChunk{}, nil
	}

	res := results[0]
	chunks := make([]FactChunk, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		chunk := FactChunk{Score: res.Scores[i]}
		for _, field := range res.Fields {
			col, ok := field.(*entity.ColumnVarChar)
			if !ok {
				continue
			}
			v := col.Data()[i]
			switch field.Name() {
			case "fact_id":
				chunk.FactID = v
			case "world_id":
				chunk.WorldID = v
			case "category":
				chunk.Category = v
			case "title":
				chunk.Title = v
			case "text":
				chunk.Text = v
			}
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// Query reports which fact IDs are already indexed
func (m *MilvusStore) Query(ctx context.Context, factIDs []string) (map[string]bool, error) {
	if len(factIDs) == 0 {
		return map[string]bool{}, nil
	}

	results, err := m.client.Query(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		inExpr("fact_id", factIDs),
		[]string{"fact_id"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}

	existing := make(map[string]bool, len(factIDs))
	for _, id := range factIDs {
		existing[id] = false
	}
	for _, column := range results {
		if column.Name() != "fact_id" {
			continue
		}
		if col, ok := column.(*entity.ColumnVarChar); ok {
			for _, id := range col.Data() {
				existing[id] = true
			}
		}
	}

	return existing, nil
}

// Delete removes records by fact ID
func (m *MilvusStore) Delete(ctx context.Context, factIDs []string) error {
	if len(factIDs) == 0 {
		return nil
	}
	if err := m.client.Delete(ctx, m.config.CollectionName, "", inExpr("fact_id", factIDs)); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// GetStats returns collection statistics
func (m *MilvusStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.config.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return map[string]interface{}{
		"collection": m.config.CollectionName,
		"row_count":  stats["row_count"],
	}, nil
}

// Close releases resources and closes the Milvus connection
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// filterExpr builds the boolean expression for a search, empty when opts
// carries no filter.
func filterExpr(opts *SearchOptions) string {
	if opts == nil {
		return ""
	}
	var parts []string
	if opts.WorldID != "" {
		parts = append(parts, fmt.Sprintf("world_id == %s", strconv.Quote(opts.WorldID)))
	}
	if len(opts.FactIDs) > 0 {
		parts = append(parts, inExpr("fact_id", opts.FactIDs))
	}
	return strings.Join(parts, " && ")
}

func inExpr(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return fmt.Sprintf("%s in [%s]", field, strings.Join(quoted, ", "))
}
