package narrative

import (
	"testing"

	"github.com/Yates-Labs/narraitor/internal/engine"
)

func TestParseEndingResponse_Structured(t *testing.T) {
	raw := "Here is your ending:\n```json\n" +
		`{"epilogue":"E","characterLegacy":"L","worldImpact":"W","tone":"triumphant","achievements":["A"],"playTime":99}` +
		"\n```\nEnjoy!"

	p := ParseEndingResponse(raw)
	if p.Kind != Structured {
		t.Fatalf("expected structured parse, got %s", p.Kind)
	}
	if p.Epilogue != "E" || p.CharacterLegacy != "L" || p.WorldImpact != "W" {
		t.Errorf("unexpected fields: %+v", p)
	}
	if p.Tone != engine.ToneTriumphant {
		t.Errorf("expected triumphant, got %s", p.Tone)
	}
	if len(p.Achievements) != 1 || p.Achievements[0] != "A" {
		t.Errorf("unexpected achievements: %v", p.Achievements)
	}
	if p.PlayTime == nil || *p.PlayTime != 99 {
		t.Errorf("expected playTime 99, got %v", p.PlayTime)
	}
}

func TestParseEndingResponse_StructuredDefaults(t *testing.T) {
	p := ParseEndingResponse(`{"epilogue":"E","characterLegacy":"L","worldImpact":"W"}`)
	if p.Kind != Structured {
		t.Fatalf("expected structured parse, got %s", p.Kind)
	}
	if p.Tone != engine.ToneHopeful {
		t.Errorf("expected default tone hopeful, got %s", p.Tone)
	}
	if p.Achievements == nil || len(p.Achievements) != 0 {
		t.Errorf("expected empty achievements, got %v", p.Achievements)
	}
	if p.PlayTime != nil {
		t.Errorf("expected no playTime, got %v", *p.PlayTime)
	}
}

func TestParseEndingResponse_InvalidToneNormalised(t *testing.T) {
	p := ParseEndingResponse(`{"epilogue":"E","characterLegacy":"L","worldImpact":"W","tone":"ecstatic"}`)
	if p.Tone != engine.ToneHopeful {
		t.Errorf("expected hopeful, got %s", p.Tone)
	}
}

func TestParseEndingResponse_BracesInsideStrings(t *testing.T) {
	p := ParseEndingResponse(`{"epilogue":"The {sealed} door","characterLegacy":"L}","worldImpact":"W"} trailing {junk}`)
	if p.Kind != Structured {
		t.Fatalf("expected structured parse, got %s", p.Kind)
	}
	if p.Epilogue != "The {sealed} door" || p.CharacterLegacy != "L}" {
		t.Errorf("unexpected fields: %+v", p)
	}
}

func TestParseEndingResponse_Fallback(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want [3]string
	}{
		{
			name: "missing characterLegacy",
			raw:  `{"epilogue":"E","worldImpact":"W"}`,
			want: [3]string{`{"epilogue":"E","worldImpact":"W"}`, DefaultCharacterLegacy, DefaultWorldImpact},
		},
		{
			name: "malformed json with paragraphs",
			raw:  "{\"epilogue\": \"E\",\n\nThe hero rests.\n\nThe world remembers.",
			want: [3]string{"{\"epilogue\": \"E\",", "The hero rests.", "The world remembers."},
		},
		{
			name: "plain text",
			raw:  "First paragraph.\n\nSecond paragraph.\n  \nThird paragraph.\n\nFourth.",
			want: [3]string{"First paragraph.", "Second paragraph.", "Third paragraph."},
		},
		{
			name: "empty",
			raw:  "",
			want: [3]string{DefaultEpilogue, DefaultCharacterLegacy, DefaultWorldImpact},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseEndingResponse(tt.raw)
			if p.Kind != Fallback {
				t.Fatalf("expected fallback parse, got %s", p.Kind)
			}
			got := [3]string{p.Epilogue, p.CharacterLegacy, p.WorldImpact}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			for _, s := range got {
				if s == "" {
					t.Error("fallback produced an empty field")
				}
			}
			if p.Tone != engine.ToneHopeful || len(p.Achievements) != 0 {
				t.Errorf("unexpected fallback tone/achievements: %s %v", p.Tone, p.Achievements)
			}
		})
	}
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`no braces`, "", false},
		{`x {"a":{"b":1}} y {"c":2}`, `{"a":{"b":1}}`, true},
		{`{"a":"\"}"}`, `{"a":"\"}"}`, true},
		{`{"unterminated":`, "", false},
	}
	for _, tt := range tests {
		got, ok := firstJSONObject(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("firstJSONObject(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
