package narrative

import (
	"context"
	"strings"
	"testing"

	"github.com/Yates-Labs/narraitor/internal/engine"
)

func TestBuildImagePrompt(t *testing.T) {
	prompt := BuildImagePrompt(ImageRequest{
		Ending:    engine.StoryEnding{Epilogue: "Aria watches the sunrise over the harbour.", Tone: engine.ToneBittersweet},
		World:     engine.World{Name: "Eldoria", Theme: "high fantasy"},
		Character: engine.Character{Name: "Aria", Description: "A wandering bard"},
	})

	for _, want := range []string{"Aria (A wandering bard)", "in Eldoria, a high fantasy world", "Scene: Aria watches the sunrise", "soft dusk colours"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q: %s", want, prompt)
		}
	}
}

func TestBuildImagePrompt_Defaults(t *testing.T) {
	prompt := BuildImagePrompt(ImageRequest{RecentNarrative: []string{"The last candle goes out."}})
	if !strings.Contains(prompt, "a lone adventurer") || !strings.Contains(prompt, "a distant land") {
		t.Errorf("expected defaults: %s", prompt)
	}
	if !strings.Contains(prompt, "Scene: The last candle goes out.") {
		t.Errorf("expected narrative fallback: %s", prompt)
	}
}

func TestPlaceholderImager(t *testing.T) {
	res, err := PlaceholderImager{}.GenerateImage(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Placeholder || res.AIGenerated || res.ImageURL == "" || res.Prompt != "p" {
		t.Errorf("unexpected placeholder result: %+v", res)
	}
}

func TestNewOpenAIImager_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIImager("", ""); err == nil {
		t.Error("expected error without API key")
	}
}

func TestMockLLM_Defaults(t *testing.T) {
	m := NewMockLLM("")
	out, err := m.Generate(context.Background(), `respond with "epilogue"`)
	if err != nil {
		t.Fatal(err)
	}
	if p := ParseEndingResponse(out); p.Kind != Structured {
		t.Errorf("mock ending response did not parse: %q", out)
	}

	out, _ = m.Generate(context.Background(), "Player choice: open the door\n")
	if !strings.HasPrefix(out, "You decide to open the door.") {
		t.Errorf("unexpected scene response: %q", out)
	}
	if m.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", m.Calls())
	}
}

func TestNewLLM_Providers(t *testing.T) {
	llm, err := NewLLM(context.Background(), LLMConfig{Provider: "mock"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := llm.(*MockLLM); !ok {
		t.Errorf("expected *MockLLM, got %T", llm)
	}

	if _, err := NewLLM(context.Background(), LLMConfig{Provider: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
