package engine

import (
	"errors"
	"time"
)

// SchemaVersion is the current version of the persisted narrative data model.
const SchemaVersion = "v1"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

// SegmentType classifies a unit of story text.
type SegmentType string

const (
	SegmentScene      SegmentType = "scene"
	SegmentDialogue   SegmentType = "dialogue"
	SegmentAction     SegmentType = "action"
	SegmentTransition SegmentType = "transition"
	SegmentEnding     SegmentType = "ending"
)

// Valid reports whether t is one of the known segment types.
func (t SegmentType) Valid() bool {
	switch t {
	case SegmentScene, SegmentDialogue, SegmentAction, SegmentTransition, SegmentEnding:
		return true
	}
	return false
}

// SegmentMetadata carries the optional descriptive fields of a segment.
type SegmentMetadata struct {
	Mood         string   `json:"mood,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Location     string   `json:"location,omitempty"`
	Tone         string   `json:"tone,omitempty"`
	CharacterIDs []string `json:"characterIds,omitempty"`

	// Set only on segments of type ending.
	EndingID   string       `json:"endingId,omitempty"`
	EndingData *StoryEnding `json:"endingData,omitempty"`
}

// HasTag reports whether the metadata carries tag.
func (m SegmentMetadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MentionsCharacter reports whether characterID is listed in the metadata.
func (m SegmentMetadata) MentionsCharacter(characterID string) bool {
	for _, id := range m.CharacterIDs {
		if id == characterID {
			return true
		}
	}
	return false
}

// NarrativeSegment is one unit of story text belonging to a session.
type NarrativeSegment struct {
	ID           string          `json:"id"`
	WorldID      string          `json:"worldId,omitempty"`
	SessionID    string          `json:"sessionId,omitempty"`
	Content      string          `json:"content"`
	Type         SegmentType     `json:"type"`
	CharacterIDs []string        `json:"characterIds,omitempty"`
	Metadata     SegmentMetadata `json:"metadata"`
	Timestamp    time.Time       `json:"timestamp"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// EndingType is the reason a session's story was brought to a close.
type EndingType string

const (
	EndingPlayerChoice        EndingType = "player-choice"
	EndingStoryComplete       EndingType = "story-complete"
	EndingSessionLimit        EndingType = "session-limit"
	EndingCharacterRetirement EndingType = "character-retirement"
)

// EndingTypes lists every accepted ending type in declaration order.
var EndingTypes = []EndingType{
	EndingPlayerChoice,
	EndingStoryComplete,
	EndingSessionLimit,
	EndingCharacterRetirement,
}

func (t EndingType) Valid() bool {
	for _, v := range EndingTypes {
		if v == t {
			return true
		}
	}
	return false
}

// EndingTone is the emotional register applied to an ending.
type EndingTone string

const (
	ToneTriumphant  EndingTone = "triumphant"
	ToneBittersweet EndingTone = "bittersweet"
	ToneMysterious  EndingTone = "mysterious"
	ToneTragic      EndingTone = "tragic"
	ToneHopeful     EndingTone = "hopeful"
)

var EndingTones = []EndingTone{
	ToneTriumphant,
	ToneBittersweet,
	ToneMysterious,
	ToneTragic,
	ToneHopeful,
}

func (t EndingTone) Valid() bool {
	for _, v := range EndingTones {
		if v == t {
			return true
		}
	}
	return false
}

// TokenUsage is an estimate of the prompt and completion sizes of a generation call.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// StoryEnding is the terminal narrative artifact of a session.
type StoryEnding struct {
	ID              string      `json:"id"`
	SessionID       string      `json:"sessionId"`
	CharacterID     string      `json:"characterId"`
	WorldID         string      `json:"worldId"`
	Type            EndingType  `json:"type"`
	Tone            EndingTone  `json:"tone"`
	Epilogue        string      `json:"epilogue"`
	CharacterLegacy string      `json:"characterLegacy"`
	WorldImpact     string      `json:"worldImpact"`
	Timestamp       time.Time   `json:"timestamp"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Achievements    []string    `json:"achievements"`
	PlayTime        *int64      `json:"playTime,omitempty"` // seconds
	TokenUsage      *TokenUsage `json:"tokenUsage,omitempty"`
}

// EndingRequest asks for an ending to be generated for a session.
type EndingRequest struct {
	SessionID    string     `json:"sessionId"`
	CharacterID  string     `json:"characterId"`
	WorldID      string     `json:"worldId"`
	EndingType   EndingType `json:"endingType"`
	DesiredTone  EndingTone `json:"desiredTone,omitempty"`
	CustomPrompt string     `json:"customPrompt,omitempty"`
}

// EndingGenerationResult is the shaped output of the ending generator.
type EndingGenerationResult struct {
	Epilogue        string      `json:"epilogue"`
	CharacterLegacy string      `json:"characterLegacy"`
	WorldImpact     string      `json:"worldImpact"`
	Tone            EndingTone  `json:"tone"`
	Achievements    []string    `json:"achievements"`
	PlayTime        *int64      `json:"playTime,omitempty"`
	TokenUsage      *TokenUsage `json:"tokenUsage,omitempty"`
}

// World is the setting a session takes place in.
type World struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Theme       string            `json:"theme"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Character is the player's protagonist within a world.
type Character struct {
	ID          string    `json:"id"`
	WorldID     string    `json:"worldId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Background  string    `json:"background,omitempty"`
	Level       int       `json:"level,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type JournalEntryType string

const (
	JournalAchievement    JournalEntryType = "achievement"
	JournalDiscovery      JournalEntryType = "discovery"
	JournalCharacterEvent JournalEntryType = "character_event"
	JournalWorldEvent     JournalEntryType = "world_event"
	JournalQuest          JournalEntryType = "quest"
	JournalItem           JournalEntryType = "item"
)

type Significance string

const (
	SignificanceMinor    Significance = "minor"
	SignificanceModerate Significance = "moderate"
	SignificanceMajor    Significance = "major"
)

// JournalEntry records a notable event of a session.
type JournalEntry struct {
	ID           string           `json:"id"`
	SessionID    string           `json:"sessionId"`
	CharacterID  string           `json:"characterId,omitempty"`
	WorldID      string           `json:"worldId,omitempty"`
	Type         JournalEntryType `json:"type"`
	Significance Significance     `json:"significance"`
	Title        string           `json:"title"`
	Content      string           `json:"content"`
	IsRead       bool             `json:"isRead"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Important reports whether the entry is worth surfacing in an ending prompt.
func (j JournalEntry) Important() bool {
	return j.Significance == SignificanceMajor || j.Type == JournalAchievement
}

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// SavedSession is the resumable record of a play session.
type SavedSession struct {
	ID          string        `json:"id"`
	WorldID     string        `json:"worldId"`
	CharacterID string        `json:"characterId"`
	LastPlayed  time.Time     `json:"lastPlayed"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// EndingContext aggregates everything an ending is generated from.
// It is built per generation call and never persisted.
type EndingContext struct {
	World            World
	Character        Character
	Segments         []NarrativeSegment
	JournalEntries   []JournalEntry
	SessionStartTime *time.Time
}

// PrioritizedElement is a segment scored for prompt ordering.
type PrioritizedElement struct {
	Type     SegmentType `json:"type"`
	Content  string      `json:"content"`
	Priority float64     `json:"priority"`
}

// Result returns the generation fields of the ending.
func (e StoryEnding) Result() EndingGenerationResult {
	return EndingGenerationResult{
		Epilogue:        e.Epilogue,
		CharacterLegacy: e.CharacterLegacy,
		WorldImpact:     e.WorldImpact,
		Tone:            e.Tone,
		Achievements:    e.Achievements,
		PlayTime:        e.PlayTime,
		TokenUsage:      e.TokenUsage,
	}
}
