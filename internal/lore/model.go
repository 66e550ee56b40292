// Package lore stores world facts used to keep generated narrative consistent.
package lore

import (
	"fmt"
	"strings"
	"time"

	"github.com/Yates-Labs/narraitor/internal/engine"
)

// Category groups facts by what they describe.
type Category string

const (
	CategoryCharacters    Category = "characters"
	CategoryLocations     Category = "locations"
	CategoryEvents        Category = "events"
	CategoryRules         Category = "rules"
	CategoryItems         Category = "items"
	CategoryOrganizations Category = "organizations"
)

// Categories lists every category in summary order.
var Categories = []Category{
	CategoryCharacters,
	CategoryLocations,
	CategoryEvents,
	CategoryRules,
	CategoryItems,
	CategoryOrganizations,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Singular is the category name used when exactly one fact is counted.
func (c Category) Singular() string {
	switch c {
	case CategoryCharacters:
		return "character"
	case CategoryLocations:
		return "location"
	case CategoryEvents:
		return "event"
	case CategoryRules:
		return "rule"
	case CategoryItems:
		return "item"
	case CategoryOrganizations:
		return "organization"
	}
	return string(c)
}

// Source records where a fact came from.
type Source string

const (
	SourceNarrative   Source = "narrative"
	SourceManual      Source = "manual"
	SourceAIGenerated Source = "ai_generated"
	SourceImported    Source = "imported"
)

func (s Source) Valid() bool {
	switch s {
	case SourceNarrative, SourceManual, SourceAIGenerated, SourceImported:
		return true
	}
	return false
}

// ExtractedTag marks facts produced by text extraction.
const ExtractedTag = "extracted"

// Fact is a unit of world knowledge.
type Fact struct {
	ID           string    `json:"id"`
	Category     Category  `json:"category"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Source       Source    `json:"source"`
	Tags         []string  `json:"tags"`
	IsCanonical  bool      `json:"isCanonical"`
	RelatedFacts []string  `json:"relatedFacts"`
	WorldID      string    `json:"worldId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasTag reports whether the fact carries tag.
func (f Fact) HasTag(tag string) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FactPatch holds the fields UpdateFact may change. Nil fields are kept.
type FactPatch struct {
	Category     *Category
	Title        *string
	Content      *string
	Source       *Source
	Tags         []string
	IsCanonical  *bool
	RelatedFacts []string
}

// Validate applies the CreateFact rules to the fields the patch sets.
func (p FactPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: fact title is required", engine.ErrValidation)
	}
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", engine.ErrValidation, *p.Category)
	}
	if p.Source != nil && !p.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", engine.ErrValidation, *p.Source)
	}
	return nil
}

// SearchOptions filters SearchFacts. Zero values are ignored and all
// provided filters must match.
type SearchOptions struct {
	WorldID     string
	Category    Category
	Source      Source
	IsCanonical *bool
	Tags        []string
	SearchTerm  string
}

// Context is the digest of canonical lore handed to prompts.
type Context struct {
	RelevantFacts  []Fact `json:"relevantFacts"`
	ContextSummary string `json:"contextSummary"`
	FactCount      int    `json:"factCount"`
}
