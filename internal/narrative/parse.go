package narrative

import (
	"regexp"
	"strings"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/tidwall/gjson"
)

// Literal defaults used when a plain-text response has fewer than three paragraphs.
const (
	DefaultEpilogue        = "The story comes to an end..."
	DefaultCharacterLegacy = "Your character's legacy will be remembered."
	DefaultWorldImpact     = "The world has been forever changed by your actions."
)

// ParseKind tells which stage of the parser produced a ParsedEnding.
type ParseKind int

const (
	// Structured endings were read from a JSON object in the response.
	Structured ParseKind = iota
	// Fallback endings were cut from the raw text by paragraph.
	Fallback
)

func (k ParseKind) String() string {
	if k == Structured {
		return "structured"
	}
	return "fallback"
}

// ParsedEnding is the result of ParseEndingResponse.
type ParsedEnding struct {
	Kind            ParseKind
	Epilogue        string
	CharacterLegacy string
	WorldImpact     string
	Tone            engine.EndingTone
	Achievements    []string
	PlayTime        *int64
}

// ParseEndingResponse reads an AI ending response. It tries the first
// top-level JSON object, then falls back to splitting paragraphs on blank
// lines. It never fails.
func ParseEndingResponse(raw string) ParsedEnding {
	if p, ok := parseStructured(raw); ok {
		return p
	}
	return parseFallback(raw)
}

func parseStructured(raw string) (ParsedEnding, bool) {
	block, ok := firstJSONObject(raw)
	if !ok || !gjson.Valid(block) {
		return ParsedEnding{}, false
	}

	doc := gjson.Parse(block)
	epilogue := strings.TrimSpace(doc.Get("epilogue").String())
	legacy := strings.TrimSpace(doc.Get("characterLegacy").String())
	impact := strings.TrimSpace(doc.Get("worldImpact").String())
	if epilogue == "" || legacy == "" || impact == "" {
		return ParsedEnding{}, false
	}

	p := ParsedEnding{
		Kind:            Structured,
		Epilogue:        epilogue,
		CharacterLegacy: legacy,
		WorldImpact:     impact,
		Tone:            normalizeTone(doc.Get("tone").String()),
		Achievements:    []string{},
	}

	for _, a := range doc.Get("achievements").Array() {
		if s := strings.TrimSpace(a.String()); s != "" {
			p.Achievements = append(p.Achievements, s)
		}
	}

	if pt := doc.Get("playTime"); pt.Type == gjson.Number {
		v := pt.Int()
		p.PlayTime = &v
	}

	return p, true
}

var blankLinePattern = regexp.MustCompile(`\n\s*\n`)

func parseFallback(raw string) ParsedEnding {
	var paragraphs []string
	for _, part := range blankLinePattern.Split(strings.TrimSpace(raw), -1) {
		if s := strings.TrimSpace(part); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}

	pick := func(i int, def string) string {
		if i < len(paragraphs) {
			return paragraphs[i]
		}
		return def
	}

	return ParsedEnding{
		Kind:            Fallback,
		Epilogue:        pick(0, DefaultEpilogue),
		CharacterLegacy: pick(1, DefaultCharacterLegacy),
		WorldImpact:     pick(2, DefaultWorldImpact),
		Tone:            engine.ToneHopeful,
		Achievements:    []string{},
	}
}

// firstJSONObject returns the first balanced {...} block in s, skipping
// braces that appear inside JSON strings.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func normalizeTone(s string) engine.EndingTone {
	t := engine.EndingTone(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return engine.ToneHopeful
}
