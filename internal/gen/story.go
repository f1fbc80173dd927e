package gen

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/khuang/storyweaver/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	// ParagraphsPerScene is how many short paragraphs each turn produces.
	ParagraphsPerScene = 3
	// ChoicesPerScene is how many continuation choices each turn offers.
	ChoicesPerScene = 3

	generationTemperature = 0.8
)

// Generator issues story text calls against the Gemini API and returns the
// raw response text. Parsing and recovery happen downstream; this layer only
// owns prompts and transport.
type Generator struct {
	client *genai.Client
	model  string
}

// NewGenerator wraps a Gemini client with the configured text model.
func NewGenerator(client *genai.Client) *Generator {
	return &Generator{
		client: client,
		model:  GetModelName(),
	}
}

// GenerateOpening requests the first scene of a new story.
func (g *Generator) GenerateOpening(ctx context.Context, theme, ageBand string) (string, error) {
	return g.generate(ctx, "opening", BuildOpeningPrompt(theme, ageBand))
}

// GenerateContinuation requests the next scene given the story so far and the
// reader's selected choice.
func (g *Generator) GenerateContinuation(ctx context.Context, theme, ageBand string, narrative []string, choice string) (string, error) {
	return g.generate(ctx, "continuation", BuildContinuationPrompt(theme, ageBand, narrative, choice))
}

func (g *Generator) generate(ctx context.Context, operation, prompt string) (string, error) {
	log.Debug().
		Str("model", g.model).
		Str("operation", operation).
		Int("prompt_length", len(prompt)).
		Msg("Sending story prompt to Gemini")

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](generationTemperature),
		ResponseMIMEType: "application/json",
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	elapsed := time.Since(start)

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.New("StoryWeaver").
		Dimension("Operation", operation).
		Dimension("Result", result).
		Metric("TextGenerationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("TextGenerationCalls").
		Flush()

	if err != nil {
		return "", fmt.Errorf("text generation (%s): %w", operation, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("text generation (%s): empty response", operation)
	}

	log.Debug().
		Str("operation", operation).
		Dur("duration", elapsed).
		Int("response_length", len(text)).
		Msg("Received story text from Gemini")

	return text, nil
}

// BuildOpeningPrompt assembles the first-scene prompt: theme, age band, and
// the JSON shape the response must follow.
func BuildOpeningPrompt(theme, ageBand string) string {
	var b strings.Builder

	b.WriteString("You are a children's storyteller writing an interactive story for a reader aged ")
	b.WriteString(ageBand)
	b.WriteString(".\n\n")
	b.WriteString("Write the opening scene of a story about: ")
	b.WriteString(theme)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Exactly ")
	b.WriteString(strconv.Itoa(ParagraphsPerScene))
	b.WriteString(" short paragraphs (2-3 sentences each), warm and age-appropriate.\n")
	b.WriteString("- Simple vocabulary, gentle tone, no frightening content.\n")
	b.WriteString("- End the scene at a decision point and offer exactly ")
	b.WriteString(strconv.Itoa(ChoicesPerScene))
	b.WriteString(" choices for what happens next.\n")
	b.WriteString("- For each paragraph, include a short illustration prompt describing the scene visually.\n")
	b.WriteString("\nRespond with ONLY a JSON object in this exact format:\n")
	b.WriteString(`{
  "story_title": "a short, fun title",
  "paragraphs": ["paragraph 1", "paragraph 2", "paragraph 3"],
  "choices": ["choice 1", "choice 2", "choice 3"],
  "illustration_prompts": ["prompt for paragraph 1", "prompt for paragraph 2", "prompt for paragraph 3"],
  "mood": "one word describing the scene's mood",
  "educational_theme": "the gentle lesson woven into the story"
}`)

	return b.String()
}

// BuildContinuationPrompt assembles a continuation prompt from the full prior
// narrative and the reader's selected choice.
func BuildContinuationPrompt(theme, ageBand string, narrative []string, choice string) string {
	var b strings.Builder

	b.WriteString("You are a children's storyteller continuing an interactive story for a reader aged ")
	b.WriteString(ageBand)
	b.WriteString(". The story's theme is: ")
	b.WriteString(theme)
	b.WriteString("\n\nThe story so far:\n")
	b.WriteString(strings.Join(narrative, "\n"))
	b.WriteString("\n\nThe reader chose: ")
	b.WriteString(choice)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Continue the story from that choice with exactly ")
	b.WriteString(strconv.Itoa(ParagraphsPerScene))
	b.WriteString(" short paragraphs (2-3 sentences each).\n")
	b.WriteString("- Keep characters and details consistent with the story so far.\n")
	b.WriteString("- Offer exactly ")
	b.WriteString(strconv.Itoa(ChoicesPerScene))
	b.WriteString(" new choices, or set story_complete to true if the story reaches a natural, happy ending.\n")
	b.WriteString("- For each paragraph, include a short illustration prompt describing the scene visually.\n")
	b.WriteString("\nRespond with ONLY a JSON object in this exact format:\n")
	b.WriteString(`{
  "continuation_paragraphs": ["paragraph 1", "paragraph 2", "paragraph 3"],
  "choices": ["choice 1", "choice 2", "choice 3"],
  "illustration_prompts": ["prompt for paragraph 1", "prompt for paragraph 2", "prompt for paragraph 3"],
  "story_complete": false,
  "educational_message": "the gentle lesson so far"
}`)

	return b.String()
}
