package lore

import (
	"context"
	"regexp"
	"strings"
)

// FactExtractor proposes candidate facts found in narrative text.
type FactExtractor interface {
	Extract(ctx context.Context, text, worldID string, source Source) ([]Fact, error)
}

type extractionRule struct {
	pattern  *regexp.Regexp
	category Category
	title    func(m []string) string
}

// RegexExtractor is a zero-configuration heuristic extractor. It looks for
// titled names and "X the Y" epithets as characters, and "the X of Y" and
// "in the X Y" phrases as locations. False positives are expected.
type RegexExtractor struct {
	rules []extractionRule
}

// sentence starters that would otherwise read as names
var ignoredLeadWords = map[string]bool{
	"The": true, "Then": true, "And": true, "But": true, "When": true,
	"As": true, "In": true, "At": true, "You": true, "Your": true,
	"It": true, "He": true, "She": true, "They": true, "With": true,
}

func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{rules: []extractionRule{
		{
			pattern:  regexp.MustCompile(`\b(Sir|Lady|Lord)\s+([A-Z][a-z]+)`),
			category: CategoryCharacters,
			title:    func(m []string) string { return m[1] + " " + m[2] },
		},
		{
			pattern:  regexp.MustCompile(`\b([A-Z][a-z]+)\s+the\s+([A-Z][a-z]+)`),
			category: CategoryCharacters,
			title: func(m []string) string {
				if ignoredLeadWords[m[1]] {
					return ""
				}
				return m[1] + " the " + m[2]
			},
		},
		{
			pattern:  regexp.MustCompile(`\bthe\s+([A-Z][a-z]+)\s+of\s+([A-Z][a-z]+)`),
			category: CategoryLocations,
			title:    func(m []string) string { return m[1] + " of " + m[2] },
		},
		{
			pattern:  regexp.MustCompile(`\b[Ii]n\s+the\s+([A-Z][a-z]+)\s+([A-Z][a-z]+)`),
			category: CategoryLocations,
			title:    func(m []string) string { return m[1] + " " + m[2] },
		},
	}}
}

// Extract runs every rule over text and returns one candidate per distinct title.
func (r *RegexExtractor) Extract(ctx context.Context, text, worldID string, source Source) ([]Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var facts []Fact
	for _, rule := range r.rules {
		for _, idx := range rule.pattern.FindAllStringSubmatchIndex(text, -1) {
			m := submatches(text, idx)
			title := rule.title(m)
			if title == "" {
				continue
			}
			key := strings.ToLower(title)
			if seen[key] {
				continue
			}
			seen[key] = true

			facts = append(facts, Fact{
				Category:    rule.category,
				Title:       title,
				Content:     sentenceAround(text, idx[0], idx[1]),
				Source:      source,
				Tags:        []string{ExtractedTag, string(rule.category)},
				IsCanonical: false,
				WorldID:     worldID,
			})
		}
	}
	return facts, nil
}

func submatches(text string, idx []int) []string {
	m := make([]string, len(idx)/2)
	for i := range m {
		if idx[2*i] >= 0 {
			m[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return m
}

// sentenceAround returns the sentence enclosing text[start:end].
func sentenceAround(text string, start, end int) string {
	from := strings.LastIndexAny(text[:start], ".!?\n")
	from++
	to := strings.IndexAny(text[end:], ".!?\n")
	if to < 0 {
		to = len(text)
	} else {
		to = end + to + 1
	}
	return strings.TrimSpace(text[from:to])
}
