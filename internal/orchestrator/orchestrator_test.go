package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Yates-Labs/narraitor/internal/config"
	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/narrative"
	"github.com/rs/zerolog"
)

const endingJSON = `{"epilogue":"E","characterLegacy":"L","worldImpact":"W","tone":"triumphant","achievements":["A"]}`

func TestNew_MockProvider(t *testing.T) {
	o, err := New(context.Background(), config.NewForTesting(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer o.Close()

	if o.Narrative == nil || o.Endings == nil || o.Scenes == nil || o.Lore == nil {
		t.Fatal("expected core services to be wired")
	}
	if o.LoreIndex != nil {
		t.Error("lore recall should be disabled without a Milvus address")
	}
	if _, ok := o.Images.(narrative.PlaceholderImager); !ok {
		t.Errorf("expected placeholder imager, got %T", o.Images)
	}
}

func TestNew_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(ctx, config.NewForTesting(), zerolog.Nop()); err == nil {
		t.Error("Expected error when context is cancelled")
	}
}

func TestNew_Errors(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.AIProvider = "openai"
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New(context.Background(), cfg, zerolog.Nop()); !errors.Is(err, narrative.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig without an API key, got %v", err)
	}

	cfg = config.NewForTesting()
	cfg.PromptTemplate = "/does/not/exist.yaml"
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for a missing template file")
	}
}

func TestOrchestrator_EndingLocksSession(t *testing.T) {
	ctx := context.Background()
	llm := narrative.NewFlakyMockLLM(2, endingJSON)
	o, err := NewWithLLM(ctx, config.NewForTesting(), zerolog.Nop(), llm)
	if err != nil {
		t.Fatal(err)
	}

	w, err := o.Worlds.CreateWorld(ctx, engine.World{Name: "Eldoria"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := o.Characters.CreateCharacter(ctx, engine.Character{Name: "Aria", WorldID: w.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Narrative.AddSegment(ctx, "s1", engine.NarrativeSegment{Content: "The gate opens.", Type: engine.SegmentScene, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	ending, err := o.Narrative.GenerateEnding(ctx, engine.EndingStoryComplete, narrative.EndingParams{SessionID: "s1", CharacterID: c.ID, WorldID: w.ID})
	if err != nil {
		t.Fatalf("GenerateEnding failed: %v", err)
	}
	if ending.Tone != engine.ToneTriumphant || ending.Type != engine.EndingStoryComplete {
		t.Errorf("unexpected ending: %+v", ending)
	}
	if llm.Calls() != 3 {
		t.Errorf("expected 3 LLM calls, got %d", llm.Calls())
	}
	if !o.Narrative.IsSessionEnded("s1") {
		t.Error("session should be ended")
	}
	if _, err := o.Narrative.AddSegment(ctx, "s1", engine.NarrativeSegment{Content: "more", Type: engine.SegmentScene}); !errors.Is(err, narrative.ErrSessionEnded) {
		t.Errorf("expected ErrSessionEnded, got %v", err)
	}
}

func TestOrchestrator_SharedStorageSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewForTesting()
	cfg.StorageDriver = "sqlite"
	cfg.SQLitePath = t.TempDir() + "/narraitor.db"

	first, err := New(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	w, err := first.Worlds.CreateWorld(ctx, engine.World{Name: "Eldoria"})
	if err != nil {
		t.Fatal(err)
	}
	first.Narrative.MarkSessionEnded(ctx, "s1")
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := New(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()
	if _, ok := second.Worlds.GetWorld(w.ID); !ok {
		t.Error("world not restored")
	}
	if !second.Narrative.IsSessionEnded("s1") {
		t.Error("session lock not restored")
	}
}

func TestLLMConfigFrom(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantKey  string
	}{
		{"openai", "openai", "sk-openai"},
		{"gemini", "gemini", "g-key"},
		{"mock", "mock", "sk-openai"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewForTesting()
			cfg.AIProvider = tt.provider
			cfg.AIModel = "m"
			cfg.AITemperature = 0.3
			cfg.OpenAIAPIKey = "sk-openai"
			cfg.GeminiAPIKey = "g-key"

			lc := llmConfigFrom(cfg)
			if lc.Provider != tt.provider || lc.Model != "m" || lc.Temperature != 0.3 {
				t.Errorf("unexpected config: %+v", lc)
			}
			if lc.APIKey != tt.wantKey {
				t.Errorf("APIKey = %q, want %q", lc.APIKey, tt.wantKey)
			}
		})
	}
}

func TestNewImager(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.AIProvider = "openai"
	cfg.OpenAIAPIKey = "sk-test"
	if _, ok := newImager(cfg, zerolog.Nop()).(*narrative.OpenAIImager); !ok {
		t.Error("expected OpenAI imager when a key is configured")
	}

	cfg.OpenAIAPIKey = ""
	if _, ok := newImager(cfg, zerolog.Nop()).(narrative.PlaceholderImager); !ok {
		t.Error("expected placeholder imager without a key")
	}
}
