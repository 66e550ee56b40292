package narrative

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Yates-Labs/narraitor/internal/engine"
)

const (
	// DefaultWindowSize is the number of segments the context window holds.
	DefaultWindowSize = 10

	// PrimaryCharacterID marks a segment as involving the player's character.
	PrimaryCharacterID = "main-character"

	// PlotCriticalTag boosts a segment's priority in prompt ordering.
	PlotCriticalTag = "plot-critical"
)

// WorldSource looks up worlds by id.
type WorldSource interface {
	GetWorld(id string) (engine.World, bool)
}

// CharacterSource looks up characters by id.
type CharacterSource interface {
	GetCharacter(id string) (engine.Character, bool)
}

// JournalSource lists the journal entries recorded for a session.
type JournalSource interface {
	EntriesForSession(sessionID string) []engine.JournalEntry
}

// SessionSource looks up saved session records.
type SessionSource interface {
	GetSession(id string) (engine.SavedSession, bool)
}

// SegmentSource lists a session's segments in append order.
type SegmentSource interface {
	GetSessionSegments(sessionID string) []engine.NarrativeSegment
}

// Sources bundles the collaborators BuildEndingContext reads from.
type Sources struct {
	Worlds     WorldSource
	Characters CharacterSource
	Journal    JournalSource
	Sessions   SessionSource
	Segments   SegmentSource
}

// ContextManager holds a bounded recency window of segments for prompt assembly.
type ContextManager struct {
	mu         sync.RWMutex
	segments   []engine.NarrativeSegment
	windowSize int
	sources    Sources
}

// ContextOption configures a ContextManager.
type ContextOption func(*ContextManager)

// WithWindowSize overrides the number of segments held.
func WithWindowSize(n int) ContextOption {
	return func(c *ContextManager) {
		if n > 0 {
			c.windowSize = n
		}
	}
}

// WithSources injects the stores BuildEndingContext reads from.
func WithSources(s Sources) ContextOption {
	return func(c *ContextManager) {
		c.sources = s
	}
}

func NewContextManager(opts ...ContextOption) *ContextManager {
	c := &ContextManager{windowSize: DefaultWindowSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddSegment appends a segment, evicting the oldest once the window is full.
func (c *ContextManager) AddSegment(segment engine.NarrativeSegment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.segments = append(c.segments, segment)
	if over := len(c.segments) - c.windowSize; over > 0 {
		c.segments = append([]engine.NarrativeSegment(nil), c.segments[over:]...)
	}
}

// LoadSegments replays segments in order through AddSegment.
func (c *ContextManager) LoadSegments(segments []engine.NarrativeSegment) {
	for _, s := range segments {
		c.AddSegment(s)
	}
}

// Len returns the number of segments currently held.
func (c *ContextManager) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.segments)
}

// Clear empties the window.
func (c *ContextManager) Clear() {
	c.mu.Lock()
	c.segments = nil
	c.mu.Unlock()
}

// GetOptimizedContext returns the newest segments that fit maxTokens, in
// chronological order and separated by blank lines. Selection is greedy:
// the walk stops at the first segment that would overflow the budget.
func (c *ContextManager) GetOptimizedContext(maxTokens int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.segments) == 0 {
		return ""
	}

	var (
		included []string
		used     int
	)
	for i := len(c.segments) - 1; i >= 0; i-- {
		line := formatContextLine(c.segments[i])
		cost := EstimateTokens(line)
		if used+cost > maxTokens {
			break
		}
		used += cost
		included = append(included, line)
	}

	// reverse into oldest-first order
	for i, j := 0, len(included)-1; i < j; i, j = i+1, j-1 {
		included[i], included[j] = included[j], included[i]
	}
	return strings.Join(included, "\n\n")
}

func formatContextLine(s engine.NarrativeSegment) string {
	return fmt.Sprintf("[%s] %s", s.Type, s.Content)
}

// GetPrioritizedElements scores every held segment and returns them by
// non-increasing priority. Equal priorities keep window order.
func (c *ContextManager) GetPrioritizedElements() []engine.PrioritizedElement {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.segments)
	elements := make([]engine.PrioritizedElement, 0, total)
	for i, s := range c.segments {
		priority := 1 + (float64(i)/float64(total))*5
		if s.Metadata.HasTag(PlotCriticalTag) {
			priority += 10
		}
		if s.Metadata.MentionsCharacter(PrimaryCharacterID) {
			priority += 5
		}
		elements = append(elements, engine.PrioritizedElement{
			Type:     s.Type,
			Content:  s.Content,
			Priority: priority,
		})
	}

	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].Priority > elements[j].Priority
	})
	return elements
}

// BuildEndingContext gathers the world, character, ordered session segments,
// journal entries and session start time for an ending request.
func (c *ContextManager) BuildEndingContext(ctx context.Context, req engine.EndingRequest) (*engine.EndingContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := c.sources

	if src.Worlds == nil {
		return nil, fmt.Errorf("world %s not found: %w", req.WorldID, engine.ErrNotFound)
	}
	world, ok := src.Worlds.GetWorld(req.WorldID)
	if !ok {
		return nil, fmt.Errorf("world %s not found: %w", req.WorldID, engine.ErrNotFound)
	}

	if src.Characters == nil {
		return nil, fmt.Errorf("character %s not found: %w", req.CharacterID, engine.ErrNotFound)
	}
	character, ok := src.Characters.GetCharacter(req.CharacterID)
	if !ok {
		return nil, fmt.Errorf("character %s not found: %w", req.CharacterID, engine.ErrNotFound)
	}

	ec := &engine.EndingContext{
		World:     world,
		Character: character,
	}

	if src.Segments != nil {
		segments := src.Segments.GetSessionSegments(req.SessionID)
		sort.SliceStable(segments, func(i, j int) bool {
			return segments[i].Timestamp.Before(segments[j].Timestamp)
		})
		ec.Segments = segments
	}

	if src.Journal != nil {
		if entries := src.Journal.EntriesForSession(req.SessionID); len(entries) > 0 {
			ec.JournalEntries = entries
		}
	}

	if src.Sessions != nil {
		if session, ok := src.Sessions.GetSession(req.SessionID); ok && !session.LastPlayed.IsZero() {
			start := session.LastPlayed
			ec.SessionStartTime = &start
		}
	}

	return ec, nil
}
