package jsonutil

import (
	"reflect"
	"testing"
)

type storyPayload struct {
	StoryTitle string   `json:"story_title"`
	Paragraphs []string `json:"paragraphs"`
	Choices    []string `json:"choices"`
}

func TestParseJSONDirect(t *testing.T) {
	raw := `{"story_title": "Moon Trip", "paragraphs": ["One.", "Two."], "choices": ["a", "b", "c"]}`

	result, err := ParseJSON[storyPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StoryTitle != "Moon Trip" {
		t.Errorf("expected title %q, got %q", "Moon Trip", result.StoryTitle)
	}
	if len(result.Paragraphs) != 2 {
		t.Errorf("expected 2 paragraphs, got %d", len(result.Paragraphs))
	}
}

func TestParseJSONFenced(t *testing.T) {
	raw := "```json\n{\"story_title\": \"Fenced\", \"paragraphs\": [\"p\"], \"choices\": []}\n```"

	result, err := ParseJSON[storyPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StoryTitle != "Fenced" {
		t.Errorf("expected title %q, got %q", "Fenced", result.StoryTitle)
	}
}

func TestParseJSONProseWrapped(t *testing.T) {
	raw := `Sure! Here's your story: {"story_title": "Moon Trip", "paragraphs": ["Zara packed her bag."], "choices": ["explore", "rest", "call home"]} Hope you like it!`

	result, err := ParseJSON[storyPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StoryTitle != "Moon Trip" {
		t.Errorf("expected title %q, got %q", "Moon Trip", result.StoryTitle)
	}
	if len(result.Choices) != 3 {
		t.Errorf("expected 3 choices, got %d", len(result.Choices))
	}
}

func TestParseJSONNoContent(t *testing.T) {
	if _, err := ParseJSON[storyPayload]("just a friendly sentence"); err == nil {
		t.Error("expected error for text without JSON")
	}
}

func TestParseLenientSingleQuotes(t *testing.T) {
	raw := `{'story_title': 'Quote Trouble', 'paragraphs': ['A brave fox.'], 'choices': ['go', 'stay']}`

	result, err := ParseLenient[storyPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StoryTitle != "Quote Trouble" {
		t.Errorf("expected title %q, got %q", "Quote Trouble", result.StoryTitle)
	}
}

func TestParseLenientTrailingCommas(t *testing.T) {
	raw := `{"story_title": "Commas", "paragraphs": ["One.",], "choices": ["a", "b",],}`

	result, err := ParseLenient[storyPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.Choices, []string{"a", "b"}) {
		t.Errorf("unexpected choices: %v", result.Choices)
	}
}

func TestParseLenientAdjacentFragments(t *testing.T) {
	// A dropped comma between two string fragments in a list.
	raw := `{"story_title": "Frag", "paragraphs": ["The dragon" "sneezed."], "choices": ["a"]}`

	result, err := ParseLenient[storyPayload](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Paragraphs) != 1 || result.Paragraphs[0] != "The dragon sneezed." {
		t.Errorf("unexpected paragraphs: %v", result.Paragraphs)
	}
}

func TestRepairPreservesDoubleQuotedText(t *testing.T) {
	raw := `{"story_title": "Ann's Day"}`

	repaired := Repair(raw)
	result, err := ParseJSON[storyPayload](repaired)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StoryTitle != "Ann's Day" {
		t.Errorf("apostrophe inside string was mangled: %q", result.StoryTitle)
	}
}

func TestExtractStringFromGarbledText(t *testing.T) {
	raw := `story output!! "story_title": "Lost Braces" ... "mood": "magical" [unterminated`

	title, ok := ExtractString(raw, "story_title")
	if !ok {
		t.Fatal("expected to extract story_title")
	}
	if title != "Lost Braces" {
		t.Errorf("expected %q, got %q", "Lost Braces", title)
	}
}

func TestExtractStringMissing(t *testing.T) {
	if _, ok := ExtractString("nothing to see", "story_title"); ok {
		t.Error("expected extraction to fail")
	}
}

func TestExtractStringList(t *testing.T) {
	raw := `garbage before "choices": ["swim deeper", 'surface now', "follow the whale"] garbage after`

	choices, ok := ExtractStringList(raw, "choices")
	if !ok {
		t.Fatal("expected to extract choices")
	}
	want := []string{"swim deeper", "surface now", "follow the whale"}
	if !reflect.DeepEqual(choices, want) {
		t.Errorf("expected %v, got %v", want, choices)
	}
}

func TestExtractStringListEmpty(t *testing.T) {
	if _, ok := ExtractStringList(`"choices": []`, "choices"); ok {
		t.Error("expected extraction to fail on empty list")
	}
}

func TestExtractBool(t *testing.T) {
	v, ok := ExtractBool(`..."story_complete": true ...`, "story_complete")
	if !ok || !v {
		t.Errorf("expected true, got ok=%v v=%v", ok, v)
	}
}

func TestStripMarkdownFencesNoFences(t *testing.T) {
	text := `{"a": 1}`
	if got := StripMarkdownFences(text); got != text {
		t.Errorf("expected unchanged text, got %q", got)
	}
}
