package narrative

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Yates-Labs/narraitor/internal/engine"
)

// ExportFormat represents supported export formats
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
)

// SessionExport is a session transcript with summary counts.
type SessionExport struct {
	SessionID     string                    `json:"sessionId"`
	SegmentCount  int                       `json:"segmentCount"`
	DialogueCount int                       `json:"dialogueCount"`
	StartedAt     time.Time                 `json:"startedAt"`
	EndedAt       time.Time                 `json:"endedAt"`
	Duration      string                    `json:"duration"`
	Ended         bool                      `json:"ended"`
	Segments      []engine.NarrativeSegment `json:"segments"`
	Chapters      []Chapter                 `json:"chapters"`
	Ending        *engine.StoryEnding       `json:"ending,omitempty"`
}

// BuildSessionExport collects a session's transcript from the store.
func BuildSessionExport(store *Store, sessionID string) SessionExport {
	segments := store.GetSessionSegments(sessionID)
	ending, _ := store.GetEndingForSession(sessionID)

	exp := SessionExport{
		SessionID:    sessionID,
		SegmentCount: len(segments),
		Ended:        store.IsSessionEnded(sessionID),
		Segments:     segments,
		Chapters:     GroupIntoChapters(segments, DefaultChapterConfig()),
		Ending:       ending,
	}
	for _, s := range segments {
		if s.Type == engine.SegmentDialogue {
			exp.DialogueCount++
		}
	}
	if len(segments) > 0 {
		exp.StartedAt = segments[0].Timestamp
		exp.EndedAt = segments[len(segments)-1].Timestamp
		exp.Duration = exp.EndedAt.Sub(exp.StartedAt).String()
	}
	return exp
}

// ExportSession writes a session transcript in the given format.
func ExportSession(exp SessionExport, format string, writer io.Writer) error {
	switch ExportFormat(strings.ToLower(format)) {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(exp)
	case FormatMarkdown:
		return exportMarkdown(exp, writer)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, markdown)", format)
	}
}

func exportMarkdown(exp SessionExport, w io.Writer) error {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Session %s\n\n", exp.SessionID))
	for i, c := range exp.Chapters {
		heading := fmt.Sprintf("## Chapter %d", i+1)
		if c.Location != "" {
			heading += ": " + c.Location
		}
		b.WriteString(heading + "\n\n")
		for _, s := range c.Segments {
			if s.Type == engine.SegmentDialogue {
				b.WriteString("> " + s.Content + "\n\n")
				continue
			}
			b.WriteString(s.Content + "\n\n")
		}
	}

	if e := exp.Ending; e != nil {
		b.WriteString(fmt.Sprintf("## Ending (%s, %s)\n\n", e.Type, e.Tone))
		b.WriteString(e.Epilogue + "\n\n")
		b.WriteString("### Legacy\n\n" + e.CharacterLegacy + "\n\n")
		b.WriteString("### World Impact\n\n" + e.WorldImpact + "\n\n")
		if len(e.Achievements) > 0 {
			b.WriteString("### Achievements\n\n")
			for _, a := range e.Achievements {
				b.WriteString("- " + a + "\n")
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
