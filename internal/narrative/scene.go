package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/lore"
	"github.com/rs/zerolog"
)

// DefaultSceneContextTokens is the history budget for a scene prompt.
const DefaultSceneContextTokens = 1500

// DefaultRecallFacts caps the facts semantic recall adds to a scene prompt.
const DefaultRecallFacts = 5

// LoreRecaller finds canonical facts semantically close to a query.
type LoreRecaller interface {
	RecallLore(ctx context.Context, query, worldID string, topK int) ([]lore.Fact, error)
}

// SceneRequest asks for the next scene of a session.
type SceneRequest struct {
	SessionID        string `json:"sessionId"`
	WorldID          string `json:"worldId"`
	CharacterID      string `json:"characterId"`
	PlayerChoice     string `json:"playerChoice,omitempty"`
	MaxContextTokens int    `json:"maxContextTokens,omitempty"`
}

// SceneResult is the stored scene plus any lore extracted from it.
type SceneResult struct {
	Segment        engine.NarrativeSegment `json:"segment"`
	ExtractedFacts []lore.Fact             `json:"extractedFacts"`
}

// SceneGenerator continues a session's story one scene at a time.
type SceneGenerator struct {
	llm        LLM
	store      *Store
	lore       *lore.Store
	worlds     WorldSource
	characters CharacterSource
	templates  *TemplateSet
	recaller   LoreRecaller
	log        zerolog.Logger
}

func NewSceneGenerator(llm LLM, store *Store, loreStore *lore.Store, worlds WorldSource, characters CharacterSource, templates *TemplateSet, log zerolog.Logger) *SceneGenerator {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &SceneGenerator{
		llm:        llm,
		store:      store,
		lore:       loreStore,
		worlds:     worlds,
		characters: characters,
		templates:  templates,
		log:        log.With().Str("component", "scene_generator").Logger(),
	}
}

// SetRecaller enables semantic lore recall keyed on the player's choice.
func (g *SceneGenerator) SetRecaller(r LoreRecaller) { g.recaller = r }

// Generate renders the scene prompt from the session's recent history and
// canonical lore, calls the LLM once and appends the result as a scene
// segment. Lore extraction on the new text is best-effort.
func (g *SceneGenerator) Generate(ctx context.Context, req SceneRequest) (*SceneResult, error) {
	if g.store.IsSessionEnded(req.SessionID) {
		return nil, &SessionEndedError{SessionID: req.SessionID}
	}

	world, ok := g.worlds.GetWorld(req.WorldID)
	if !ok {
		return nil, fmt.Errorf("world %s not found: %w", req.WorldID, engine.ErrNotFound)
	}
	character, ok := g.characters.GetCharacter(req.CharacterID)
	if !ok {
		return nil, fmt.Errorf("character %s not found: %w", req.CharacterID, engine.ErrNotFound)
	}

	budget := req.MaxContextTokens
	if budget <= 0 {
		budget = DefaultSceneContextTokens
	}
	window := NewContextManager()
	window.LoadSegments(g.store.GetSessionSegments(req.SessionID))

	vars := map[string]string{
		"worldName":            world.Name,
		"worldDescription":     world.Description,
		"characterName":        character.Name,
		"characterDescription": character.Description,
		"recentNarrative":      window.GetOptimizedContext(budget),
		"playerChoice":         strings.TrimSpace(req.PlayerChoice),
	}
	if g.lore != nil {
		lc := g.lore.GetLoreContext(req.WorldID, nil, lore.DefaultMaxFacts)
		facts := g.recall(ctx, req, lc.RelevantFacts)
		if len(facts) > 0 {
			vars["loreSummary"] = lore.Summarize(facts)
			vars["loreFacts"] = lore.FormatFacts(facts)
		}
	}
	prompt := strings.TrimSpace(RenderTemplate(g.templates.Scene, vars))

	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: scene generation: %w", ErrGenerationFailed, err)
	}

	segment, err := g.store.AddSegment(ctx, req.SessionID, engine.NarrativeSegment{
		WorldID:      req.WorldID,
		Content:      strings.TrimSpace(text),
		Type:         engine.SegmentScene,
		CharacterIDs: []string{req.CharacterID},
		Metadata: engine.SegmentMetadata{
			CharacterIDs: []string{PrimaryCharacterID},
		},
	})
	if err != nil {
		return nil, err
	}

	result := &SceneResult{Segment: segment, ExtractedFacts: []lore.Fact{}}
	if g.lore != nil {
		result.ExtractedFacts = g.lore.ExtractFactsFromText(ctx, segment.Content, req.WorldID, lore.SourceNarrative)
	}

	g.log.Info().
		Str("session_id", req.SessionID).
		Int("prompt_tokens", EstimateTokens(prompt)).
		Int("extracted_facts", len(result.ExtractedFacts)).
		Msg("scene generated")
	return result, nil
}

// recall appends recalled facts not already in base. Recall failures only
// cost the extra context.
func (g *SceneGenerator) recall(ctx context.Context, req SceneRequest, base []lore.Fact) []lore.Fact {
	choice := strings.TrimSpace(req.PlayerChoice)
	if g.recaller == nil || choice == "" {
		return base
	}
	recalled, err := g.recaller.RecallLore(ctx, choice, req.WorldID, DefaultRecallFacts)
	if err != nil {
		g.log.Warn().Err(err).Str("world_id", req.WorldID).Msg("lore recall failed")
		return base
	}

	seen := make(map[string]bool, len(base))
	for _, f := range base {
		seen[f.ID] = true
	}
	out := base
	for _, f := range recalled {
		if !seen[f.ID] {
			seen[f.ID] = true
			out = append(out, f)
		}
	}
	return out
}
