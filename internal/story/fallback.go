package story

import (
	"fmt"
	"strings"
)

// Fallback scenes keep a turn coherent when every parse strategy fails. Each
// fallback is a complete record themed to the request, never a generic
// placeholder, so a total parse failure still reads like part of the story.

type themeCategory struct {
	keywords   []string
	title      string
	paragraphs []string
	choices    []string
	mood       string
	lesson     string
}

var themeCategories = []themeCategory{
	{
		keywords: []string{"space", "rocket", "planet", "star", "moon", "astronaut", "galaxy"},
		title:    "The Great Space Adventure",
		paragraphs: []string{
			"High above the clouds, a shiny silver rocket waited on its launchpad. Inside sat a brave young explorer, ready for the journey of a lifetime.",
			"With a gentle rumble, the rocket lifted off into the twinkling night sky. Stars zoomed past the windows like fireflies saying hello.",
			"Soon a friendly purple planet appeared, glowing softly in the distance. Something wonderful was waiting down there.",
		},
		choices: []string{"Land on the purple planet", "Wave to the passing comet", "Check the star map"},
		mood:    "wondrous",
		lesson:  "Curiosity and courage help us discover amazing things.",
	},
	{
		keywords: []string{"princess", "prince", "castle", "king", "queen", "royal", "knight"},
		title:    "The Kindest Castle",
		paragraphs: []string{
			"In a castle with towers that touched the clouds lived a young royal with a very big heart. Every morning the castle bells rang a cheerful good-morning song.",
			"Today was special: the kingdom's friendship festival! Banners of every color fluttered from the walls.",
			"But one small banner was missing, and a little page looked worried. Someone would have to help.",
		},
		choices: []string{"Help find the missing banner", "Ask the page what happened", "Visit the festival square"},
		mood:    "cheerful",
		lesson:  "Kindness makes every kingdom brighter.",
	},
	{
		keywords: []string{"magic", "wizard", "fairy", "dragon", "spell", "enchanted", "unicorn"},
		title:    "The Whispering Woods",
		paragraphs: []string{
			"At the edge of town stood a forest where the trees whispered friendly secrets. A young adventurer stepped inside, and the leaves sparkled with tiny lights.",
			"A small dragon with buttercup-yellow wings fluttered down and bowed politely. It seemed to be asking for help.",
			"The dragon pointed its tail toward a path of glowing mushrooms winding deeper into the woods.",
		},
		choices: []string{"Follow the glowing mushroom path", "Ask the dragon its name", "Look inside the hollow tree"},
		mood:    "magical",
		lesson:  "New friends can be found in unexpected places.",
	},
	{
		keywords: []string{"ocean", "sea", "fish", "mermaid", "whale", "underwater", "coral", "dolphin"},
		title:    "The Coral Kingdom",
		paragraphs: []string{
			"Beneath the gentle waves lay a kingdom of rainbow coral. A young swimmer drifted down, bubbles rising like tiny silver balloons.",
			"A dolphin with a kind smile circled twice, inviting the swimmer to follow. Schools of fish parted like curtains.",
			"Ahead, a garden of sea flowers swayed in the current, and something glimmered at its center.",
		},
		choices: []string{"Swim toward the glimmer", "Follow the friendly dolphin", "Say hello to the sea turtles"},
		mood:    "peaceful",
		lesson:  "The world is full of beauty when we explore gently.",
	},
	{
		keywords: []string{"robot", "computer", "machine", "invention", "science", "gadget", "lab"},
		title:    "The Little Inventor",
		paragraphs: []string{
			"In a workshop full of springs and bolts, a young inventor tightened the last screw on a small round robot. Its eyes blinked on like friendly lanterns.",
			"\"Hello!\" beeped the robot, wobbling on brand-new wheels. It spun in a happy circle, eager to explore.",
			"On the workbench sat three buttons the robot had never tried: one blue, one green, one yellow.",
		},
		choices: []string{"Press the blue button", "Take the robot outside", "Teach the robot a song"},
		mood:    "curious",
		lesson:  "Making mistakes is part of inventing something wonderful.",
	},
}

var genericCategory = themeCategory{
	title: "A Wonderful Adventure",
	paragraphs: []string{
		"Once upon a time, a young adventurer woke up to a morning that felt different from all the others. The sun seemed to wink through the window.",
		"Outside, a winding path stretched toward the hills, dotted with flowers that nodded in the breeze as if to say follow us.",
		"At the first bend in the path, three interesting things appeared all at once.",
	},
	choices: []string{"Follow the winding path", "Stop and smell the flowers", "Climb the little hill"},
	mood:    "adventurous",
	lesson:  "Every day holds a new adventure for those who look.",
}

// classifyTheme picks the fallback category by keyword match against the
// theme string.
func classifyTheme(theme string) themeCategory {
	lower := strings.ToLower(theme)
	for _, cat := range themeCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat
			}
		}
	}
	return genericCategory
}

// OpeningFallback builds a complete, theme-matched opening scene.
func OpeningFallback(theme string) OpeningScene {
	cat := classifyTheme(theme)
	return OpeningScene{
		StoryTitle:          cat.title,
		Paragraphs:          cat.paragraphs,
		Choices:             cat.choices,
		IllustrationPrompts: illustrationPromptsFor(cat.paragraphs),
		Mood:                cat.mood,
		EducationalTheme:    cat.lesson,
	}
}

// ContinuationFallback builds a complete continuation derived from the
// reader's selected choice, so the story visibly responds to what they picked.
func ContinuationFallback(choice string) Continuation {
	paragraphs := []string{
		fmt.Sprintf("With a deep breath and a big smile, our hero decided to %s. It felt like exactly the right thing to do.", strings.ToLower(strings.TrimSpace(choice))),
		"One careful step at a time, the adventure unfolded in the most surprising way. Little discoveries waited around every corner.",
		"And just when it seemed the excitement was over, something new caught our hero's eye.",
	}
	return Continuation{
		Paragraphs:          paragraphs,
		Choices:             []string{"Take a closer look", "Call out a friendly hello", "Keep going down the path"},
		IllustrationPrompts: illustrationPromptsFor(paragraphs),
		StoryComplete:       false,
		EducationalMessage:  "Brave choices lead to wonderful discoveries.",
	}
}

func illustrationPromptsFor(paragraphs []string) []string {
	prompts := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		prompts[i] = "A gentle storybook illustration of: " + p
	}
	return prompts
}
