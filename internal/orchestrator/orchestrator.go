// Package orchestrator builds the narrative engine from configuration: the
// persistence adapter, collaborator stores, AI clients, generators and the
// optional semantic lore pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"io"

	"github.com/Yates-Labs/narraitor/internal/config"
	"github.com/Yates-Labs/narraitor/internal/kv"
	"github.com/Yates-Labs/narraitor/internal/lore"
	"github.com/Yates-Labs/narraitor/internal/narrative"
	"github.com/Yates-Labs/narraitor/internal/state"
	"github.com/rs/zerolog"
)

// Orchestrator holds the process-wide services. It is built once at startup
// and shared by the HTTP API and the CLI.
type Orchestrator struct {
	Config *config.Config
	Log    zerolog.Logger

	KV         kv.Store
	Worlds     *state.WorldStore
	Characters *state.CharacterStore
	Journal    *state.JournalStore
	Sessions   *state.SessionStore

	Narrative *narrative.Store
	Endings   *narrative.EndingGenerator
	Scenes    *narrative.SceneGenerator
	Images    narrative.ImageGenerator
	Templates *narrative.TemplateSet
	Lore      *lore.Store

	// LoreIndex is nil when semantic recall is disabled or unreachable.
	LoreIndex *LorePipeline

	llm narrative.LLM
}

// New wires every service. Storage and lore recall degrade to in-memory and
// disabled respectively; an unusable LLM configuration is an error.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Orchestrator, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before startup: %w", err)
	}

	templates, err := loadTemplates(cfg)
	if err != nil {
		return nil, err
	}

	llm, err := narrative.NewLLM(ctx, llmConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}

	return build(ctx, cfg, log, llm, templates), nil
}

// NewWithLLM wires every service around an existing LLM.
func NewWithLLM(ctx context.Context, cfg *config.Config, log zerolog.Logger, llm narrative.LLM) (*Orchestrator, error) {
	templates, err := loadTemplates(cfg)
	if err != nil {
		return nil, err
	}
	return build(ctx, cfg, log, llm, templates), nil
}

func build(ctx context.Context, cfg *config.Config, log zerolog.Logger, llm narrative.LLM, templates *narrative.TemplateSet) *Orchestrator {
	store := kv.Open(ctx, cfg, log)

	o := &Orchestrator{
		Config:     cfg,
		Log:        log,
		KV:         store,
		Worlds:     state.NewWorldStore(ctx, store, log),
		Characters: state.NewCharacterStore(ctx, store, log),
		Journal:    state.NewJournalStore(ctx, store, log),
		Sessions:   state.NewSessionStore(ctx, store, log),
		Narrative:  narrative.NewStore(ctx, store, log),
		Templates:  templates,
		Lore:       lore.NewStore(ctx, store, log),
		llm:        llm,
	}

	o.Endings = narrative.NewEndingGenerator(llm, o.ContextManager(), generatorOptions(cfg, templates, log)...)
	o.Narrative.SetGenerator(o.Endings)
	o.Scenes = narrative.NewSceneGenerator(llm, o.Narrative, o.Lore, o.Worlds, o.Characters, templates, log)
	o.Images = newImager(cfg, log)

	if cfg.LoreRecallEnabled() {
		pipeline, err := NewLorePipeline(ctx, RAGConfigFrom(cfg), o.Lore, log)
		if err != nil {
			log.Warn().Err(err).Str("address", cfg.MilvusAddress).Msg("semantic lore recall disabled")
		} else {
			o.LoreIndex = pipeline
			o.Scenes.SetRecaller(pipeline.Retriever())
		}
	}

	log.Info().
		Str("storage", cfg.StorageDriver).
		Str("provider", cfg.AIProvider).
		Bool("lore_recall", o.LoreIndex != nil).
		Msg("narrative engine ready")
	return o
}

// ContextManager returns a fresh context manager reading from the stores.
func (o *Orchestrator) ContextManager(opts ...narrative.ContextOption) *narrative.ContextManager {
	opts = append(opts, narrative.WithSources(narrative.Sources{
		Worlds:     o.Worlds,
		Characters: o.Characters,
		Journal:    o.Journal,
		Sessions:   o.Sessions,
		Segments:   o.Narrative,
	}))
	return narrative.NewContextManager(opts...)
}

// Close releases the lore index, the LLM client and the storage backend.
func (o *Orchestrator) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if o.LoreIndex != nil {
		keep(o.LoreIndex.Close())
	}
	if c, ok := o.llm.(io.Closer); ok {
		keep(c.Close())
	}
	if o.KV != nil {
		keep(o.KV.Close())
	}
	return firstErr
}
