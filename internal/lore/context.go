package lore

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultMaxFacts = 20
	maxSummaryTags  = 5
)

const emptyLoreSummary = "No established lore for this world."

// GetLoreContext returns up to maxFacts canonical facts for a world,
// narrowed to relevantTags when given, with a one-line summary for prompts.
// A non-positive maxFacts uses DefaultMaxFacts.
func (s *Store) GetLoreContext(worldID string, relevantTags []string, maxFacts int) Context {
	if maxFacts <= 0 {
		maxFacts = DefaultMaxFacts
	}

	canonical := true
	facts := s.SearchFacts(SearchOptions{
		WorldID:     worldID,
		IsCanonical: &canonical,
		Tags:        relevantTags,
	})
	if len(facts) > maxFacts {
		facts = facts[:maxFacts]
	}

	return Context{
		RelevantFacts:  facts,
		ContextSummary: Summarize(facts),
		FactCount:      len(facts),
	}
}

// Summarize counts facts per category and lists up to five tags carried by
// more than one fact, most frequent first.
func Summarize(facts []Fact) string {
	if len(facts) == 0 {
		return emptyLoreSummary
	}

	counts := make(map[Category]int)
	tagFreq := make(map[string]int)
	for _, f := range facts {
		counts[f.Category]++
		seen := make(map[string]bool, len(f.Tags))
		for _, t := range f.Tags {
			if !seen[t] {
				seen[t] = true
				tagFreq[t]++
			}
		}
	}

	var parts []string
	for _, c := range Categories {
		n := counts[c]
		switch {
		case n == 1:
			parts = append(parts, fmt.Sprintf("1 %s", c.Singular()))
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %s", n, c))
		}
	}

	summary := fmt.Sprintf("World lore includes %s.", strings.Join(parts, ", "))

	var themes []string
	for t, n := range tagFreq {
		if n > 1 {
			themes = append(themes, t)
		}
	}
	sort.Slice(themes, func(i, j int) bool {
		if tagFreq[themes[i]] != tagFreq[themes[j]] {
			return tagFreq[themes[i]] > tagFreq[themes[j]]
		}
		return themes[i] < themes[j]
	})
	if len(themes) > maxSummaryTags {
		themes = themes[:maxSummaryTags]
	}
	if len(themes) > 0 {
		summary += fmt.Sprintf(" Key themes: %s.", strings.Join(themes, ", "))
	}
	return summary
}

// FormatFacts renders facts as prompt bullet lines.
func FormatFacts(facts []Fact) string {
	var b strings.Builder
	for _, f := range facts {
		b.WriteString(fmt.Sprintf("- [%s] %s: %s\n", f.Category.Singular(), f.Title, f.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}
