package story

import (
	"strings"
	"testing"
)

func openingTestFallback() OpeningScene {
	return OpeningFallback("space explorers")
}

func assertCompleteOpening(t *testing.T, scene OpeningScene) {
	t.Helper()
	if scene.StoryTitle == "" {
		t.Error("missing story title")
	}
	if len(scene.Paragraphs) == 0 {
		t.Error("missing paragraphs")
	}
	if len(scene.Choices) == 0 {
		t.Error("missing choices")
	}
	if len(scene.IllustrationPrompts) == 0 {
		t.Error("missing illustration prompts")
	}
	if scene.Mood == "" {
		t.Error("missing mood")
	}
	if scene.EducationalTheme == "" {
		t.Error("missing educational theme")
	}
}

func TestNormalizeOpeningWellFormed(t *testing.T) {
	scene := NormalizeOpening(openingJSON, openingTestFallback())

	if scene.StoryTitle != "The Star Garden" {
		t.Errorf("expected parsed title, got %q", scene.StoryTitle)
	}
	assertCompleteOpening(t, scene)
}

func TestNormalizeOpeningProseWrapped(t *testing.T) {
	raw := `Sure! Here's your story: {"story_title": "Moon Trip", "paragraphs": ["Zara packed her bag for the moon."], "choices": ["explore", "rest", "call home"], "illustration_prompts": ["A child packing a space bag"], "mood": "excited", "educational_theme": "Preparation matters."} Hope you like it!`

	scene := NormalizeOpening(raw, openingTestFallback())

	if scene.StoryTitle != "Moon Trip" {
		t.Errorf("expected recovered title Moon Trip, got %q", scene.StoryTitle)
	}
	assertCompleteOpening(t, scene)
}

func TestNormalizeOpeningMalformedInputs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated", `{"story_title": "Half a Story", "paragraphs": ["Once upon a`},
		{"single quotes", `{'story_title': 'Quoted', 'paragraphs': ['One.'], 'choices': ['a', 'b', 'c']}`},
		{"trailing commas", `{"story_title": "Commas", "paragraphs": ["One.",], "choices": ["a", "b", "c",],}`},
		{"fully garbled", `!!!! not even close to structured output !!!!`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene := NormalizeOpening(tt.raw, openingTestFallback())
			assertCompleteOpening(t, scene)
		})
	}
}

func TestNormalizeOpeningPartialMergesFallback(t *testing.T) {
	// Only title and paragraphs present; everything else comes from fallback.
	raw := `{"story_title": "Sparse", "paragraphs": ["Just one paragraph."]}`

	scene := NormalizeOpening(raw, openingTestFallback())

	if scene.StoryTitle != "Sparse" {
		t.Errorf("parsed field overwritten: %q", scene.StoryTitle)
	}
	if len(scene.Paragraphs) != 1 {
		t.Errorf("expected the parsed paragraph to win, got %d", len(scene.Paragraphs))
	}
	assertCompleteOpening(t, scene)
}

func TestNormalizeOpeningExtractionFromCorruptedStructure(t *testing.T) {
	// Unbalanced braces defeat brace matching, but labels survive.
	raw := `{{{ "story_title": "Lost Braces", "paragraphs": ["The map blew away.", "But the stars pointed home."] nonsense "mood": "calm"`

	scene := NormalizeOpening(raw, openingTestFallback())

	if scene.StoryTitle != "Lost Braces" {
		t.Errorf("expected extracted title, got %q", scene.StoryTitle)
	}
	if scene.Mood != "calm" {
		t.Errorf("expected extracted mood, got %q", scene.Mood)
	}
	assertCompleteOpening(t, scene)
}

func TestNormalizeContinuationWellFormed(t *testing.T) {
	cont := NormalizeContinuation(continuationJSON, ContinuationFallback("water the sprout"))

	if len(cont.Paragraphs) != 3 {
		t.Errorf("expected 3 paragraphs, got %d", len(cont.Paragraphs))
	}
	if cont.StoryComplete {
		t.Error("story_complete should be false")
	}
}

func TestNormalizeContinuationGarbledUsesChoiceFallback(t *testing.T) {
	fallback := ContinuationFallback("Explore the Moon Base")
	cont := NormalizeContinuation("$$$ nothing usable $$$", fallback)

	if len(cont.Paragraphs) == 0 || len(cont.Choices) == 0 {
		t.Fatal("expected complete fallback continuation")
	}
	joined := strings.ToLower(strings.Join(cont.Paragraphs, " "))
	if !strings.Contains(joined, "explore the moon base") {
		t.Error("fallback should reference the reader's choice")
	}
}

func TestNormalizeContinuationCompleteStoryKeepsEmptyChoices(t *testing.T) {
	raw := `{"continuation_paragraphs": ["And they all went home happy."], "choices": [], "story_complete": true, "educational_message": "Friends stick together."}`

	cont := NormalizeContinuation(raw, ContinuationFallback("go home"))

	if !cont.StoryComplete {
		t.Error("expected story_complete true")
	}
	if len(cont.Choices) != 0 {
		t.Errorf("a finished story should offer no choices, got %v", cont.Choices)
	}
}
