package prompts

import (
	"fmt"
	"strconv"
	"strings"

	"fable-server/internal/models"
)

// AgeGroupToddler is the youngest age band. It gets two-sentence pages;
// every other band gets one.
const AgeGroupToddler = "0-2"

// Fallback values for missing character fields. Prompt construction must
// never fail because of partial character data.
const (
	defaultColor           = "colorful"
	defaultSpecies         = "character"
	defaultName            = "friend"
	defaultSpecialFeatures = "with special features"
	defaultPersonality     = "friendly"
	defaultPlace           = "a magical place"
)

// SentenceCount returns how many sentences a page should contain for the
// given age band.
func SentenceCount(ageGroup string) int {
	if ageGroup == AgeGroupToddler {
		return 2
	}
	return 1
}

// CharacterPrompt asks the text model for a JSON character description with
// the name and species pinned to the user's choice.
func CharacterPrompt(characterName, characterType string) string {
	var sb strings.Builder
	sb.WriteString("Generate a character description for a children's story character with these requirements:\n")
	sb.WriteString(fmt.Sprintf("- name (string, must be: %s)\n", characterName))
	sb.WriteString(fmt.Sprintf("- species (string, must be: %s)\n", characterType))
	sb.WriteString("- color (string)\n")
	sb.WriteString("- special_features (string)\n")
	sb.WriteString("- personality (string)\n\n")
	sb.WriteString("Example format:\n")
	sb.WriteString(fmt.Sprintf(`{
  "name": %q,
  "species": %q,
  "color": "orange and white",
  "special_features": "fluffy tail and tiny pink nose",
  "personality": "playful and curious"
}`, characterName, characterType))
	return sb.String()
}

// LocationPrompt asks the text model for a JSON location description
// matching the story theme.
func LocationPrompt(theme string) string {
	var sb strings.Builder
	sb.WriteString("Generate a location description for a children's story with these fields:\n")
	sb.WriteString("- place (string, the name of the location)\n")
	sb.WriteString("- description (string, a brief description)\n\n")
	sb.WriteString(fmt.Sprintf("The location must fit a story with the theme %q.\n\n", theme))
	sb.WriteString(`Example format:
{
  "place": "Enchanted Forest",
  "description": "A magical woodland with sparkling trees and friendly creatures"
}`)
	return sb.String()
}

// PagePrompt builds the incremental page-text prompt from the story's
// immutable character/location info and the previous page text. The
// previous text is empty for page 1.
func PagePrompt(character models.CharacterInfo, location models.Location, ageGroup, theme string, pageNumber int, previousText string) string {
	character = withCharacterDefaults(character)
	place := location.Place
	if place == "" {
		place = defaultPlace
	}

	sentenceRule := "Write EXACTLY ONE sentence"
	exampleFormat := fmt.Sprintf("%s [action in setting with theme-related element]!", character.Name)
	if ageGroup == AgeGroupToddler {
		sentenceRule = "Write EXACTLY TWO sentences"
		exampleFormat = fmt.Sprintf("%s [action in setting]! %s [theme-related reaction]!", character.Name, character.Name)
	}

	opening := "Continue the story naturally from the previous content!"
	if pageNumber == 1 {
		opening = "Start the story by introducing the character and showing them doing something fun!"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Character: A %s %s named %s who %s\n",
		character.Color, character.Species, character.Name, character.SpecialFeatures))
	sb.WriteString(fmt.Sprintf("Location: %s - %s\n", place, location.Description))
	sb.WriteString(fmt.Sprintf("Theme: %s\n\n", theme))
	sb.WriteString("Guidelines:\n")
	sb.WriteString(fmt.Sprintf("- %s\n", sentenceRule))
	sb.WriteString("- Use simple, child-friendly words\n")
	sb.WriteString(fmt.Sprintf("- Always refer to the character as %q\n",
		fmt.Sprintf("%s the %s", character.Name, character.Species)))
	sb.WriteString(fmt.Sprintf("- Keep it in the same location (%s)\n", place))
	sb.WriteString("- Make it fun and engaging\n")
	sb.WriteString("- End each sentence with an exclamation mark\n")
	sb.WriteString("- Include sound words when possible (like \"giggle\" or \"splash\")\n")
	sb.WriteString(fmt.Sprintf("- Focus on the %s theme\n\n", theme))
	sb.WriteString(opening + "\n")
	if pageNumber > 1 && previousText != "" {
		sb.WriteString(fmt.Sprintf("\nPrevious content: %s\n", previousText))
	}
	sb.WriteString(fmt.Sprintf("\nExample format:\n%s\n", exampleFormat))
	sb.WriteString("\nDo not include any image prompts or instructions.")
	return sb.String()
}

// OpeningPrompt builds the richer one-shot prompt used when a story is
// started (page 1 of the "start story" flow).
func OpeningPrompt(ageGroup, theme, characterName, characterType, setting string) string {
	if ageGroup == AgeGroupToddler {
		return fmt.Sprintf(`Create a baby-friendly story with EXACTLY TWO complete sentences:
- Main Character: %s, a %s
- Setting: %s
- Theme: %s

REQUIRED Style:
- Write EXACTLY TWO complete sentences (not fragments)
- First sentence: Introduce %s in the %s
- Second sentence: Show %s doing something fun related to the %s
- Use simple, child-friendly words
- Make both sentences engaging and descriptive
- End each sentence with an exclamation mark
- Include action words and sound effects when possible

Example good story:
The happy %s plays in the %s! %s makes a big splash and giggles with joy!

Example bad story (too simple):
See %s! %s jump!

Return ONLY the two sentences, no additional text.`,
			characterName, characterType, setting, theme,
			characterName, setting, characterName, theme,
			characterName, setting, characterName,
			characterName, characterName)
	}

	return fmt.Sprintf(`Create a children's story with exactly these specifications:
- Age Group: %s
- Theme: %s
- Main Character: %s, a %s
- Setting: %s
- Maximum word count: %d words

Story requirements:
- Write ONLY the story text, with NO prefix or introduction
- Use age-appropriate vocabulary and concepts
- Keep sentences short and clear
- Use descriptive language that children can understand
- Include positive messages

Format the story in clear paragraphs.`,
		ageGroup, theme, characterName, characterType, setting, WordLimit(ageGroup))
}

// WordLimit returns the maximum word count for the opening page by age band.
func WordLimit(ageGroup string) int {
	parts := strings.Split(ageGroup, "-")
	upper, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 500
	}
	switch {
	case upper <= 2:
		return 12
	case upper <= 4:
		return 250
	case upper <= 6:
		return 350
	default:
		return 500
	}
}

// ImagePromptSet holds everything the image client needs: the positive and
// negative prompts plus a reinforced fallback prompt for the
// image-to-image failure path.
type ImagePromptSet struct {
	Prompt         string
	NegativePrompt string
	FallbackPrompt string
}

const negativeImagePrompt = "nsfw, scary, dark, violent, adult themes, realistic, photographic, " +
	"different character design, inconsistent appearance, wrong colors, wrong species, " +
	"complex backgrounds, human characters, wrong character features"

const imageStyleSuffix = "Style: Soft, rounded shapes, pastel colors, simple clean backgrounds, " +
	"gentle shading, kawaii aesthetic, child-friendly storybook style."

// ImagePrompts builds the prompt set for one page illustration from the
// finalized page text and the story's fixed character/location info.
func ImagePrompts(pageText string, character models.CharacterInfo, location models.Location) ImagePromptSet {
	character = withCharacterDefaults(character)
	place := location.Place
	if place == "" {
		place = defaultPlace
	}

	storyAction := strings.ToLower(pageText)
	if strings.TrimSpace(storyAction) == "" {
		storyAction = "having an adventure"
	}
	sceneDescription := ExtractSceneDescription(pageText)

	characterDescription := fmt.Sprintf("A %s %s named %s, %s, %s, in %s. The character is %s",
		character.Color, character.Species, character.Name,
		character.SpecialFeatures, character.Personality, place, storyAction)

	prompt := strings.TrimSpace(fmt.Sprintf(
		"Children's book illustration, highly detailed character design of %s. The scene shows: %s. Maintain consistent character design with %s. %s",
		characterDescription, sceneDescription, character.SpecialFeatures, imageStyleSuffix))

	fallback := strings.TrimSpace(fmt.Sprintf(
		"Children's book illustration, EXACT SAME CHARACTER DESIGN as before: %s. Must maintain %s color and %s. The character is now %s with scene elements: %s. %s",
		characterDescription, character.Color, character.SpecialFeatures,
		storyAction, sceneDescription, imageStyleSuffix))

	return ImagePromptSet{
		Prompt:         prompt,
		NegativePrompt: negativeImagePrompt,
		FallbackPrompt: fallback,
	}
}

// withCharacterDefaults fills missing character fields with fixed defaults.
func withCharacterDefaults(c models.CharacterInfo) models.CharacterInfo {
	if c.Color == "" {
		c.Color = defaultColor
	}
	if c.Species == "" {
		c.Species = defaultSpecies
	}
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.SpecialFeatures == "" {
		c.SpecialFeatures = defaultSpecialFeatures
	}
	if c.Personality == "" {
		c.Personality = defaultPersonality
	}
	return c
}
