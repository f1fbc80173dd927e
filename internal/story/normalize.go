package story

import (
	"github.com/khuang/storyweaver/internal/jsonutil"
	"github.com/rs/zerolog/log"
)

// OpeningScene is the structured result of an opening-turn generation call.
type OpeningScene struct {
	StoryTitle          string   `json:"story_title"`
	Paragraphs          []string `json:"paragraphs"`
	Choices             []string `json:"choices"`
	IllustrationPrompts []string `json:"illustration_prompts"`
	Mood                string   `json:"mood"`
	EducationalTheme    string   `json:"educational_theme"`
}

// Continuation is the structured result of a continuation-turn generation call.
type Continuation struct {
	Paragraphs          []string `json:"continuation_paragraphs"`
	Choices             []string `json:"choices"`
	IllustrationPrompts []string `json:"illustration_prompts"`
	StoryComplete       bool     `json:"story_complete"`
	EducationalMessage  string   `json:"educational_message"`
}

// NormalizeOpening resolves raw model output into a complete OpeningScene.
// Strategies are tried in order of strictness: direct/lenient JSON parsing,
// then per-field extraction from the raw text, then the fallback. Missing
// fields in a partial result are filled from the fallback, so the returned
// scene always has every field populated. Never fails.
func NormalizeOpening(raw string, fallback OpeningScene) OpeningScene {
	if parsed, err := jsonutil.ParseLenient[OpeningScene](raw); err == nil {
		return mergeOpening(parsed, fallback)
	}

	extracted, ok := extractOpening(raw)
	if ok {
		log.Warn().Msg("Opening scene recovered by field extraction")
		return mergeOpening(extracted, fallback)
	}

	log.Warn().Int("raw_length", len(raw)).Msg("Opening scene unrecoverable; using fallback")
	return fallback
}

// NormalizeContinuation is the continuation-turn counterpart of
// NormalizeOpening, with the same guarantees.
func NormalizeContinuation(raw string, fallback Continuation) Continuation {
	if parsed, err := jsonutil.ParseLenient[Continuation](raw); err == nil {
		return mergeContinuation(parsed, fallback)
	}

	extracted, ok := extractContinuation(raw)
	if ok {
		log.Warn().Msg("Continuation recovered by field extraction")
		return mergeContinuation(extracted, fallback)
	}

	log.Warn().Int("raw_length", len(raw)).Msg("Continuation unrecoverable; using fallback")
	return fallback
}

// extractOpening recovers whatever opening fields survive in globally
// corrupted text. Reports false when nothing at all was recovered.
func extractOpening(raw string) (OpeningScene, bool) {
	var scene OpeningScene
	recovered := false

	if v, ok := jsonutil.ExtractString(raw, "story_title"); ok {
		scene.StoryTitle = v
		recovered = true
	}
	if v, ok := jsonutil.ExtractStringList(raw, "paragraphs"); ok {
		scene.Paragraphs = v
		recovered = true
	}
	if v, ok := jsonutil.ExtractStringList(raw, "choices"); ok {
		scene.Choices = v
		recovered = true
	}
	if v, ok := jsonutil.ExtractStringList(raw, "illustration_prompts"); ok {
		scene.IllustrationPrompts = v
		recovered = true
	}
	if v, ok := jsonutil.ExtractString(raw, "mood"); ok {
		scene.Mood = v
		recovered = true
	}
	if v, ok := jsonutil.ExtractString(raw, "educational_theme"); ok {
		scene.EducationalTheme = v
		recovered = true
	}

	return scene, recovered
}

func extractContinuation(raw string) (Continuation, bool) {
	var cont Continuation
	recovered := false

	if v, ok := jsonutil.ExtractStringList(raw, "continuation_paragraphs"); ok {
		cont.Paragraphs = v
		recovered = true
	}
	if v, ok := jsonutil.ExtractStringList(raw, "choices"); ok {
		cont.Choices = v
		recovered = true
	}
	if v, ok := jsonutil.ExtractStringList(raw, "illustration_prompts"); ok {
		cont.IllustrationPrompts = v
		recovered = true
	}
	if v, ok := jsonutil.ExtractBool(raw, "story_complete"); ok {
		cont.StoryComplete = v
		recovered = true
	}
	if v, ok := jsonutil.ExtractString(raw, "educational_message"); ok {
		cont.EducationalMessage = v
		recovered = true
	}

	return cont, recovered
}

func mergeOpening(got, fallback OpeningScene) OpeningScene {
	if got.StoryTitle == "" {
		got.StoryTitle = fallback.StoryTitle
	}
	if len(got.Paragraphs) == 0 {
		got.Paragraphs = fallback.Paragraphs
	}
	if len(got.Choices) == 0 {
		got.Choices = fallback.Choices
	}
	if len(got.IllustrationPrompts) == 0 {
		got.IllustrationPrompts = fallback.IllustrationPrompts
	}
	if got.Mood == "" {
		got.Mood = fallback.Mood
	}
	if got.EducationalTheme == "" {
		got.EducationalTheme = fallback.EducationalTheme
	}
	return got
}

func mergeContinuation(got, fallback Continuation) Continuation {
	if len(got.Paragraphs) == 0 {
		got.Paragraphs = fallback.Paragraphs
	}
	// A completed story legitimately offers no further choices.
	if len(got.Choices) == 0 && !got.StoryComplete {
		got.Choices = fallback.Choices
	}
	if len(got.IllustrationPrompts) == 0 {
		got.IllustrationPrompts = fallback.IllustrationPrompts
	}
	if got.EducationalMessage == "" {
		got.EducationalMessage = fallback.EducationalMessage
	}
	return got
}
