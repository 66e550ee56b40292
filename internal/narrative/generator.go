package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/rs/zerolog"
)

var (
	ErrGenerationFailed = errors.New("narrative generation failed")

	// ErrGenerationExhausted is wrapped when every LLM attempt failed.
	ErrGenerationExhausted = errors.New("Failed to generate ending")
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second

	recentSegmentLimit = 10
	journalEntryLimit  = 5
	toneSampleSize     = 5
)

// EndingContextBuilder assembles the inputs of an ending.
type EndingContextBuilder interface {
	BuildEndingContext(ctx context.Context, req engine.EndingRequest) (*engine.EndingContext, error)
}

// EndingGenerator turns an EndingRequest into a shaped ending result.
type EndingGenerator struct {
	llm         LLM
	contexts    EndingContextBuilder
	templates   *TemplateSet
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// GeneratorOption configures an EndingGenerator.
type GeneratorOption func(*EndingGenerator)

// WithRetryDelay sets the base delay; attempt n waits delay*n before retrying.
func WithRetryDelay(d time.Duration) GeneratorOption {
	return func(g *EndingGenerator) { g.retryDelay = d }
}

func WithMaxAttempts(n int) GeneratorOption {
	return func(g *EndingGenerator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithClock replaces time.Now for play time computation.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *EndingGenerator) { g.now = now }
}

func WithTemplates(ts *TemplateSet) GeneratorOption {
	return func(g *EndingGenerator) {
		if ts != nil {
			g.templates = ts
		}
	}
}

func WithLogger(log zerolog.Logger) GeneratorOption {
	return func(g *EndingGenerator) { g.log = log }
}

// NewEndingGenerator creates an ending generator with the given LLM and context source.
func NewEndingGenerator(llm LLM, contexts EndingContextBuilder, opts ...GeneratorOption) *EndingGenerator {
	g := &EndingGenerator{
		llm:         llm,
		contexts:    contexts,
		templates:   DefaultTemplates(),
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		now:         time.Now,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the ending context, renders the prompt, calls the LLM with
// bounded retries and parses the response. Only context assembly and retry
// exhaustion are fatal; malformed responses fall back to plain text.
func (g *EndingGenerator) Generate(ctx context.Context, req engine.EndingRequest) (*engine.EndingGenerationResult, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrGenerationFailed)
	}
	log := g.log.With().Str("session_id", req.SessionID).Str("ending_type", string(req.EndingType)).Logger()

	// Stage 1: context
	ec, err := g.contexts.BuildEndingContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Failed to generate ending: %w", err)
	}
	log.Debug().Int("segments", len(ec.Segments)).Int("journal_entries", len(ec.JournalEntries)).Msg("ending context built")

	// Stage 2: prompt
	tone := SelectTone(req.DesiredTone, ec.Segments)
	prompt, err := g.buildPrompt(req, ec, tone)
	if err != nil {
		return nil, fmt.Errorf("Failed to generate ending: %w", err)
	}

	// Stage 3: LLM with retry
	response, err := g.generateWithRetry(ctx, prompt, log)
	if err != nil {
		return nil, err
	}

	// Stage 4: parse and shape
	parsed := ParseEndingResponse(response)
	log.Debug().Str("parse", parsed.Kind.String()).Msg("ending response parsed")

	result := &engine.EndingGenerationResult{
		Epilogue:        parsed.Epilogue,
		CharacterLegacy: parsed.CharacterLegacy,
		WorldImpact:     parsed.WorldImpact,
		Tone:            parsed.Tone,
		Achievements:    parsed.Achievements,
		PlayTime:        parsed.PlayTime,
	}

	// host-computed play time wins over anything the model claimed
	if ec.SessionStartTime != nil {
		secs := int64(g.now().Sub(*ec.SessionStartTime) / time.Second)
		result.PlayTime = &secs
	}

	promptTokens := EstimateTokens(prompt)
	completionTokens := EstimateTokens(response)
	result.TokenUsage = &engine.TokenUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}

	log.Info().Str("tone", string(result.Tone)).Int("achievements", len(result.Achievements)).Msg("ending generated")
	return result, nil
}

func (g *EndingGenerator) buildPrompt(req engine.EndingRequest, ec *engine.EndingContext, tone engine.EndingTone) (string, error) {
	tmpl, err := g.templates.Ending(req.EndingType)
	if err != nil {
		return "", err
	}

	vars := map[string]string{
		"worldName":            ec.World.Name,
		"worldDescription":     ec.World.Description,
		"characterName":        ec.Character.Name,
		"characterDescription": ec.Character.Description,
		"recentNarrative":      strings.Join(RecentNarrative(ec.Segments, recentSegmentLimit), "\n"),
		"journalEntries":       strings.Join(ImportantJournalEntries(ec.JournalEntries, journalEntryLimit), "\n"),
		"tone":                 string(tone),
		"endingType":           string(req.EndingType),
	}
	vars["responseFormat"] = RenderTemplate(g.templates.Shared.ResponseFormat, vars)

	prompt := strings.TrimSpace(RenderTemplate(tmpl, vars))
	if custom := strings.TrimSpace(req.CustomPrompt); custom != "" {
		prompt += "\n\nAdditional instruction: " + custom
	}
	return prompt, nil
}

func (g *EndingGenerator) generateWithRetry(ctx context.Context, prompt string, log zerolog.Logger) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		response, err := g.llm.Generate(ctx, prompt)
		if err == nil {
			return response, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", g.maxAttempts).Msg("ending generation attempt failed")

		if attempt == g.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("Failed to generate ending: %w", ctx.Err())
		case <-time.After(g.retryDelay * time.Duration(attempt)):
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %w", ErrGenerationExhausted, g.maxAttempts, lastErr)
}

// RecentNarrative returns up to limit segment texts, newest first, with
// dialogue prefixed.
func RecentNarrative(segments []engine.NarrativeSegment, limit int) []string {
	out := make([]string, 0, limit)
	for i := len(segments) - 1; i >= 0 && len(out) < limit; i-- {
		s := segments[i]
		if s.Type == engine.SegmentDialogue {
			out = append(out, "Dialogue: "+s.Content)
			continue
		}
		out = append(out, s.Content)
	}
	return out
}

// ImportantJournalEntries returns up to limit contents of major or
// achievement entries.
func ImportantJournalEntries(entries []engine.JournalEntry, limit int) []string {
	var out []string
	for _, e := range entries {
		if len(out) == limit {
			break
		}
		if e.Important() {
			out = append(out, e.Content)
		}
	}
	return out
}

// SelectTone returns desired when it is valid. Otherwise it derives a tone
// from the moods of the most recent segments.
func SelectTone(desired engine.EndingTone, segments []engine.NarrativeSegment) engine.EndingTone {
	if desired.Valid() {
		return desired
	}

	moods := make(map[string]bool)
	for i := len(segments) - 1; i >= 0 && len(segments)-i <= toneSampleSize; i-- {
		moods[strings.ToLower(segments[i].Metadata.Mood)] = true
	}

	switch {
	case moods["action"] || moods["tense"]:
		return engine.ToneTriumphant
	case moods["emotional"]:
		return engine.ToneBittersweet
	case moods["mysterious"]:
		return engine.ToneMysterious
	default:
		return engine.ToneHopeful
	}
}
