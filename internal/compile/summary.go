// Package compile turns a finished scene ledger into a short story video in
// the background: it classifies the story into a thematic summary, attempts
// seeded generation from the most recent resolvable illustration, falls back
// to direct generation, polls the long-running remote operation, and persists
// the result.
package compile

import (
	"fmt"
	"strings"
)

// Summary is the compact classification used to prompt the video model.
// Full narrative text is deliberately not replayed into the prompt: long
// story text was found to trip upstream safety rejections, so the prompt
// carries only category and mood.
type Summary struct {
	Category string
	Mood     string
}

type summaryCategory struct {
	name     string
	keywords []string
}

var summaryCategories = []summaryCategory{
	{"friendship", []string{"friend", "together", "team", "buddy", "kindness"}},
	{"discovery", []string{"space", "explore", "rocket", "treasure", "mystery", "science", "invention"}},
	{"family", []string{"family", "mom", "dad", "sister", "brother", "grandma", "grandpa", "home"}},
	{"magic", []string{"magic", "wizard", "fairy", "dragon", "unicorn", "enchanted", "spell"}},
	{"nature", []string{"forest", "ocean", "sea", "garden", "animal", "mountain", "river", "jungle"}},
}

const defaultCategory = "adventure"

// Summarize classifies the story by keyword match over its theme, deriving a
// mood from the theme and how long the story ran.
func Summarize(theme string, sceneCount int) Summary {
	lower := strings.ToLower(theme)

	category := defaultCategory
	for _, cat := range summaryCategories {
		if containsAny(lower, cat.keywords) {
			category = cat.name
			break
		}
	}

	mood := "playful"
	switch {
	case containsAny(lower, []string{"magic", "fairy", "unicorn", "enchanted"}):
		mood = "magical"
	case containsAny(lower, []string{"ocean", "sea", "garden", "forest", "nature"}):
		mood = "peaceful"
	case sceneCount >= 8:
		mood = "sweeping"
	}

	return Summary{Category: category, Mood: mood}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// BuildPrompt renders the safety-conservative video prompt from a summary.
func BuildPrompt(sum Summary, ageBand string) string {
	return fmt.Sprintf(`A short animated children's story video about %s.

Style:
- Bright, colorful storybook animation for ages %s
- %s atmosphere with gentle camera movement
- Warm lighting and smooth transitions
- An 8 second sequence with a happy, uplifting feeling
- Safe, friendly content only, nothing scary or dark`,
		sum.Category, ageBand, sum.Mood)
}
