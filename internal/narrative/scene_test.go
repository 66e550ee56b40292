package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/lore"
	"github.com/rs/zerolog"
)

func newSceneFixture(t *testing.T, llm LLM) (*SceneGenerator, *Store, *lore.Store) {
	t.Helper()
	ctx := context.Background()
	store := NewStore(ctx, nil, zerolog.Nop())
	loreStore := lore.NewStore(ctx, nil, zerolog.Nop())
	src := newFakeSources()
	return NewSceneGenerator(llm, store, loreStore, src, src, nil, zerolog.Nop()), store, loreStore
}

func TestSceneGenerator_AppendsSceneAndExtractsLore(t *testing.T) {
	mockLLM := NewMockLLM("")
	gen, store, loreStore := newSceneFixture(t, mockLLM)
	ctx := context.Background()

	if _, err := loreStore.CreateFact(ctx, lore.Fact{
		Category: lore.CategoryRules, Title: "Iron burns fae", Content: "Cold iron wounds the fae.",
		IsCanonical: true, WorldID: "w1",
	}); err != nil {
		t.Fatal(err)
	}
	store.AddSegment(ctx, "s1", engine.NarrativeSegment{Content: "You wake by the river.", Type: engine.SegmentScene})

	result, err := gen.Generate(ctx, SceneRequest{SessionID: "s1", WorldID: "w1", CharacterID: "c1", PlayerChoice: "cross the bridge"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := mockLLM.Prompt()
	for _, want := range []string{"Eldoria", "Aria", "[scene] You wake by the river.", "Player choice: cross the bridge", "World lore includes 1 rule.", "Iron burns fae"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	if !strings.Contains(result.Segment.Content, "cross the bridge") {
		t.Errorf("unexpected scene: %q", result.Segment.Content)
	}
	segs := store.GetSessionSegments("s1")
	if len(segs) != 2 || segs[1].ID != result.Segment.ID || segs[1].Type != engine.SegmentScene {
		t.Errorf("scene not appended: %+v", segs)
	}

	titles := map[string]bool{}
	for _, f := range result.ExtractedFacts {
		titles[f.Title] = true
	}
	if !titles["Sir Aldric"] || !titles["Tower of Dawn"] {
		t.Errorf("expected lore extracted from scene, got %v", titles)
	}
}

func TestSceneGenerator_RefusesEndedSession(t *testing.T) {
	mockLLM := NewMockLLM("")
	gen, store, _ := newSceneFixture(t, mockLLM)
	store.MarkSessionEnded(context.Background(), "s1")

	_, err := gen.Generate(context.Background(), SceneRequest{SessionID: "s1", WorldID: "w1", CharacterID: "c1"})
	if !errors.Is(err, ErrSessionEnded) {
		t.Errorf("expected ErrSessionEnded, got %v", err)
	}
	if mockLLM.Calls() != 0 {
		t.Error("LLM called for ended session")
	}
}

func TestSceneGenerator_Errors(t *testing.T) {
	gen, _, _ := newSceneFixture(t, NewMockLLM(""))
	_, err := gen.Generate(context.Background(), SceneRequest{SessionID: "s1", WorldID: "nope", CharacterID: "c1"})
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	failing, store, _ := newSceneFixture(t, NewMockLLMWithError(errors.New("API down")))
	_, err = failing.Generate(context.Background(), SceneRequest{SessionID: "s1", WorldID: "w1", CharacterID: "c1"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
	if len(store.GetSessionSegments("s1")) != 0 {
		t.Error("segment stored despite failure")
	}
}

type stubRecaller struct {
	facts []lore.Fact
	err   error
	query string
}

func (s *stubRecaller) RecallLore(ctx context.Context, query, worldID string, topK int) ([]lore.Fact, error) {
	s.query = query
	return s.facts, s.err
}

func TestSceneGenerator_MergesRecalledLore(t *testing.T) {
	mockLLM := NewMockLLM("")
	gen, _, loreStore := newSceneFixture(t, mockLLM)
	ctx := context.Background()

	known, err := loreStore.CreateFact(ctx, lore.Fact{
		Category: lore.CategoryRules, Title: "Iron burns fae", Content: "Cold iron wounds the fae.",
		IsCanonical: true, WorldID: "w1",
	})
	if err != nil {
		t.Fatal(err)
	}
	recaller := &stubRecaller{facts: []lore.Fact{
		known,
		{ID: "bridge", Category: lore.CategoryLocations, Title: "Troll Bridge", Content: "Tolls are paid in riddles.", IsCanonical: true, WorldID: "w1"},
	}}
	gen.SetRecaller(recaller)

	if _, err := gen.Generate(ctx, SceneRequest{SessionID: "s1", WorldID: "w1", CharacterID: "c1", PlayerChoice: "cross the bridge"}); err != nil {
		t.Fatal(err)
	}

	prompt := mockLLM.Prompt()
	if recaller.query != "cross the bridge" {
		t.Errorf("recall query = %q", recaller.query)
	}
	if !strings.Contains(prompt, "Troll Bridge") || strings.Count(prompt, "Iron burns fae") != 1 {
		t.Errorf("recalled lore not merged once:\n%s", prompt)
	}
	if !strings.Contains(prompt, "World lore includes 1 location, 1 rule.") {
		t.Errorf("summary should cover recalled facts:\n%s", prompt)
	}
}

func TestSceneGenerator_RecallFailureIsIgnored(t *testing.T) {
	gen, _, _ := newSceneFixture(t, NewMockLLM(""))
	gen.SetRecaller(&stubRecaller{err: errors.New("milvus down")})

	if _, err := gen.Generate(context.Background(), SceneRequest{SessionID: "s1", WorldID: "w1", CharacterID: "c1", PlayerChoice: "wait"}); err != nil {
		t.Errorf("recall failure should not fail the scene: %v", err)
	}
}
