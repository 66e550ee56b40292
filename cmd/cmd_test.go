package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/lore"
)

func TestEndingTypeList(t *testing.T) {
	got := endingTypeList()
	want := "player-choice, story-complete, session-limit, character-retirement"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestEndingGenerate_RejectsInvalidType(t *testing.T) {
	rootCmd.SetArgs([]string{"ending", "generate", "--session", "s1", "--character", "c1", "--world", "w1", "--type", "invalid"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	defer func() { endingType = string(engine.EndingStoryComplete) }()

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "character-retirement") {
		t.Errorf("expected error listing the ending types, got %v", err)
	}
}

func TestLoreExtract_RequiresWorld(t *testing.T) {
	loreWorld = ""
	rootCmd.SetArgs([]string{"lore", "extract", "The Tower of Dawn stands tall."})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})

	if err := rootCmd.Execute(); err != errWorldRequired {
		t.Errorf("expected errWorldRequired, got %v", err)
	}
}

func TestPrintEnding(t *testing.T) {
	playTime := int64(95)
	var buf bytes.Buffer
	printEnding(&buf, &engine.StoryEnding{
		Type:            engine.EndingStoryComplete,
		Tone:            engine.ToneTriumphant,
		Epilogue:        "E",
		CharacterLegacy: "L",
		WorldImpact:     "W",
		Achievements:    []string{"Slew the dragon"},
		PlayTime:        &playTime,
	})

	out := buf.String()
	for _, want := range []string{"story-complete", "triumphant", "Legacy", "Slew the dragon", "95s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintFacts(t *testing.T) {
	var buf bytes.Buffer
	printFacts(&buf, nil)
	if !strings.Contains(buf.String(), "No facts found") {
		t.Errorf("expected empty message, got %q", buf.String())
	}

	buf.Reset()
	printFacts(&buf, []lore.Fact{{Title: "Tower of Dawn", Category: lore.CategoryLocations, Content: "A white spire.", Tags: []string{"landmark"}}})
	out := buf.String()
	for _, want := range []string{"Tower of Dawn [locations]", "(non-canonical)", "A white spire.", "tags: landmark"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
