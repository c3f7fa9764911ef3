package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable-server/internal/models"
)

func testCharacter() models.CharacterInfo {
	return models.CharacterInfo{
		Name:            "Luna",
		Species:         "unicorn",
		Color:           "silver",
		SpecialFeatures: "a glowing horn",
		Personality:     "gentle and brave",
	}
}

func testLocation() models.Location {
	return models.Location{Place: "Magical Forest", Description: "A forest full of sparkling trees"}
}

func TestSentenceCount(t *testing.T) {
	assert.Equal(t, 2, SentenceCount("0-2"))
	assert.Equal(t, 1, SentenceCount("3-4"))
	assert.Equal(t, 1, SentenceCount("5-6"))
	assert.Equal(t, 1, SentenceCount("7-9"))
}

func TestCharacterPromptPinsNameAndSpecies(t *testing.T) {
	prompt := CharacterPrompt("Luna", "unicorn")
	assert.Contains(t, prompt, "must be: Luna")
	assert.Contains(t, prompt, "must be: unicorn")
	assert.Contains(t, prompt, "special_features")
	assert.Contains(t, prompt, "personality")
}

func TestLocationPromptMentionsTheme(t *testing.T) {
	prompt := LocationPrompt("adventure")
	assert.Contains(t, prompt, `"adventure"`)
	assert.Contains(t, prompt, "place")
	assert.Contains(t, prompt, "description")
}

func TestPagePromptToddlerBand(t *testing.T) {
	prompt := PagePrompt(testCharacter(), testLocation(), "0-2", "adventure", 1, "")
	assert.Contains(t, prompt, "EXACTLY TWO sentences")
	assert.Contains(t, prompt, "Luna the unicorn")
	assert.Contains(t, prompt, "Magical Forest")
	assert.Contains(t, prompt, "adventure")
	assert.Contains(t, prompt, "Start the story")
	assert.NotContains(t, prompt, "Previous content")
}

func TestPagePromptOlderBandSingleSentence(t *testing.T) {
	prompt := PagePrompt(testCharacter(), testLocation(), "5-6", "friendship", 3, "Luna found a shiny pebble!")
	assert.Contains(t, prompt, "EXACTLY ONE sentence")
	assert.Contains(t, prompt, "Previous content: Luna found a shiny pebble!")
	assert.Contains(t, prompt, "Continue the story naturally")
}

func TestPagePromptNeverFailsOnPartialCharacter(t *testing.T) {
	prompt := PagePrompt(models.CharacterInfo{Name: "Milo"}, models.Location{}, "3-4", "space", 1, "")
	require.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "Milo the character")
	assert.Contains(t, prompt, "a magical place")
}

func TestOpeningPromptToddler(t *testing.T) {
	prompt := OpeningPrompt("0-2", "adventure", "Luna", "unicorn", "magical forest")
	assert.Contains(t, prompt, "EXACTLY TWO complete sentences")
	assert.Contains(t, prompt, "Luna, a unicorn")
	assert.Contains(t, prompt, "magical forest")
}

func TestOpeningPromptOlderBandHasWordLimit(t *testing.T) {
	prompt := OpeningPrompt("5-6", "friendship", "Milo", "fox", "seaside town")
	assert.Contains(t, prompt, "Maximum word count: 350 words")
	assert.Contains(t, prompt, "Age Group: 5-6")
}

func TestWordLimit(t *testing.T) {
	assert.Equal(t, 12, WordLimit("0-2"))
	assert.Equal(t, 250, WordLimit("3-4"))
	assert.Equal(t, 350, WordLimit("5-6"))
	assert.Equal(t, 500, WordLimit("7-9"))
	assert.Equal(t, 500, WordLimit("garbage"))
}

func TestImagePromptsIncludeSceneAndStyle(t *testing.T) {
	set := ImagePrompts("Luna is laughing near the waterfall!", testCharacter(), testLocation())
	assert.Contains(t, set.Prompt, "Children's book illustration")
	assert.Contains(t, set.Prompt, "silver unicorn named Luna")
	assert.Contains(t, set.Prompt, "laughing")
	assert.Contains(t, set.Prompt, "kawaii aesthetic")
	assert.Contains(t, set.NegativePrompt, "nsfw")
	assert.Contains(t, set.FallbackPrompt, "EXACT SAME CHARACTER DESIGN")
	assert.Contains(t, set.FallbackPrompt, "silver")
}

func TestImagePromptsEmptyTextFallsBack(t *testing.T) {
	set := ImagePrompts("", testCharacter(), testLocation())
	assert.Contains(t, set.Prompt, "having an adventure")
	assert.Contains(t, set.Prompt, DefaultSceneDescription)
}

func TestExtractSceneDescription(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "prepositional phrase",
			text: "Luna plays near the sparkling river!",
			want: []string{"near the sparkling river"},
		},
		{
			name: "copular phrase",
			text: "Luna is jumping over rocks!",
			want: []string{"is jumping over rocks"},
		},
		{
			name: "emotion word",
			text: "Luna felt so happy today!",
			want: []string{"happy"},
		},
		{
			name: "multiple fragments joined",
			text: "Luna is smiling with her friends at the pond!",
			want: []string{"with her friends", "at the pond", "smiling"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractSceneDescription(tt.text)
			for _, fragment := range tt.want {
				assert.Contains(t, got, fragment)
			}
		})
	}
}

func TestExtractSceneDescriptionFallback(t *testing.T) {
	got := ExtractSceneDescription("Zzz zzz zzz")
	assert.Equal(t, DefaultSceneDescription, got)
}

func TestExtractSceneDescriptionLowercasesInput(t *testing.T) {
	got := ExtractSceneDescription("LUNA IS DANCING NEAR THE LAKE")
	assert.True(t, strings.Contains(got, "near the lake") || strings.Contains(got, "is dancing"), got)
}
