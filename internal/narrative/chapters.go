package narrative

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Yates-Labs/narraitor/internal/engine"
)

// ChapterConfig defines the heuristics used to split a session into chapters.
type ChapterConfig struct {
	// Maximum time gap between segments in the same chapter
	MaxTimeGap time.Duration

	// Minimum number of segments to keep a chapter; smaller ones merge into
	// the previous chapter
	MinSegments int

	// Weight factors for similarity scoring (should sum to 1.0)
	TimeWeight      float64
	LocationWeight  float64
	CharacterWeight float64
	KeywordWeight   float64

	MinSimilarityScore float64
}

// DefaultChapterConfig returns the grouping used by session exports.
func DefaultChapterConfig() ChapterConfig {
	return ChapterConfig{
		MaxTimeGap:         30 * time.Minute,
		MinSegments:        1,
		TimeWeight:         0.4,
		LocationWeight:     0.25,
		CharacterWeight:    0.2,
		KeywordWeight:      0.15,
		MinSimilarityScore: 0.55,
	}
}

// Chapter is a run of segments that belong to the same stretch of story.
type Chapter struct {
	ID         string                    `json:"id"`
	Location   string                    `json:"location,omitempty"`
	StartedAt  time.Time                 `json:"startedAt"`
	EndedAt    time.Time                 `json:"endedAt"`
	SegmentIDs []string                  `json:"segmentIds"`
	Segments   []engine.NarrativeSegment `json:"-"`
}

// Duration is the time between the first and last segment of the chapter.
func (c Chapter) Duration() time.Duration {
	if len(c.Segments) < 2 {
		return 0
	}
	return c.EndedAt.Sub(c.StartedAt)
}

// GroupIntoChapters walks the segments oldest first and starts a new chapter
// whenever a segment is too dissimilar from the current one. A transition
// segment always closes its chapter. Ending segments are left out.
func GroupIntoChapters(segments []engine.NarrativeSegment, config ChapterConfig) []Chapter {
	ordered := make([]engine.NarrativeSegment, 0, len(segments))
	for _, s := range segments {
		if s.Type != engine.SegmentEnding {
			ordered = append(ordered, s)
		}
	}
	if len(ordered) == 0 {
		return []Chapter{}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var runs [][]engine.NarrativeSegment
	var current []engine.NarrativeSegment
	closed := false
	for _, seg := range ordered {
		if current != nil && (closed || chapterSimilarity(current, seg, config) < config.MinSimilarityScore) {
			runs = append(runs, current)
			current = nil
		}
		current = append(current, seg)
		closed = seg.Type == engine.SegmentTransition
	}
	runs = append(runs, current)

	var chapters []Chapter
	for _, run := range runs {
		if len(run) < config.MinSegments && len(chapters) > 0 {
			last := &chapters[len(chapters)-1]
			*last = newChapter(last.ID, append(last.Segments, run...))
			continue
		}
		chapters = append(chapters, newChapter(fmt.Sprintf("C%d", len(chapters)+1), run))
	}
	return chapters
}

func newChapter(id string, segments []engine.NarrativeSegment) Chapter {
	c := Chapter{
		ID:         id,
		Location:   dominantLocation(segments),
		StartedAt:  segments[0].Timestamp,
		EndedAt:    segments[len(segments)-1].Timestamp,
		SegmentIDs: make([]string, len(segments)),
		Segments:   segments,
	}
	for i, s := range segments {
		c.SegmentIDs[i] = s.ID
	}
	return c
}

// chapterSimilarity scores how well seg continues the chapter.
func chapterSimilarity(chapter []engine.NarrativeSegment, seg engine.NarrativeSegment, config ChapterConfig) float64 {
	last := chapter[len(chapter)-1]
	return timeScore(last, seg, config.MaxTimeGap)*config.TimeWeight +
		locationScore(last, seg)*config.LocationWeight +
		characterScore(chapter, seg)*config.CharacterWeight +
		keywordScore(chapter, seg)*config.KeywordWeight
}

// timeScore returns 1.0 for no gap and decays linearly to 0 at maxGap.
func timeScore(last, seg engine.NarrativeSegment, maxGap time.Duration) float64 {
	diff := seg.Timestamp.Sub(last.Timestamp)
	if diff < 0 {
		diff = -diff
	}
	if diff > maxGap || maxGap <= 0 {
		return 0
	}
	return 1.0 - float64(diff)/float64(maxGap)
}

// locationScore is neutral when either segment has no location.
func locationScore(last, seg engine.NarrativeSegment) float64 {
	a := strings.ToLower(strings.TrimSpace(last.Metadata.Location))
	b := strings.ToLower(strings.TrimSpace(seg.Metadata.Location))
	switch {
	case a == "" || b == "":
		return 0.5
	case a == b:
		return 1.0
	}
	return 0
}

// characterScore is the Jaccard overlap of the characters present, neutral
// when either side lists none.
func characterScore(chapter []engine.NarrativeSegment, seg engine.NarrativeSegment) float64 {
	present := make(map[string]bool)
	for _, s := range chapter {
		for _, id := range segmentCharacters(s) {
			present[id] = true
		}
	}
	incoming := segmentCharacters(seg)
	if len(present) == 0 || len(incoming) == 0 {
		return 0.5
	}

	intersection := 0
	union := len(present)
	seen := make(map[string]bool)
	for _, id := range incoming {
		if seen[id] {
			continue
		}
		seen[id] = true
		if present[id] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

func segmentCharacters(s engine.NarrativeSegment) []string {
	out := make([]string, 0, len(s.CharacterIDs)+len(s.Metadata.CharacterIDs))
	out = append(out, s.CharacterIDs...)
	return append(out, s.Metadata.CharacterIDs...)
}

// keywordScore is the best keyword overlap with any segment of the chapter.
func keywordScore(chapter []engine.NarrativeSegment, seg engine.NarrativeSegment) float64 {
	words := extractKeywords(seg.Content)
	if len(words) == 0 {
		return 0
	}
	best := 0.0
	for _, s := range chapter {
		other := extractKeywords(s.Content)
		overlap := 0
		for w := range words {
			if other[w] {
				overlap++
			}
		}
		if score := float64(overlap) / float64(len(words)); score > best {
			best = score
		}
	}
	return best
}

var (
	wordPattern = regexp.MustCompile(`\w+`)
	stopWords   = map[string]bool{
		"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
		"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
		"it": true, "of": true, "on": true, "or": true, "that": true, "the": true,
		"to": true, "was": true, "will": true, "with": true, "you": true, "your": true,
		"his": true, "her": true, "their": true, "they": true, "into": true,
	}
)

// extractKeywords extracts meaningful lowercase words from text.
func extractKeywords(text string) map[string]bool {
	keywords := make(map[string]bool)
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(word) > 2 && !stopWords[word] {
			keywords[word] = true
		}
	}
	return keywords
}

func dominantLocation(segments []engine.NarrativeSegment) string {
	counts := make(map[string]int)
	best := ""
	for _, s := range segments {
		loc := strings.TrimSpace(s.Metadata.Location)
		if loc == "" {
			continue
		}
		counts[loc]++
		if counts[loc] > counts[best] || best == "" {
			best = loc
		}
	}
	return best
}
