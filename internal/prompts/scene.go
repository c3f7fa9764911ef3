package prompts

import (
	"regexp"
	"strings"
)

// Scene-signal extraction from generated page text. Best-effort: the
// fragments feed the image prompt, so a miss only weakens the prompt.
var (
	sceneElementRe  = regexp.MustCompile(`(?:near|with|at|by|in|on)\s+(?:the\s+)?([^,.!]+)`)
	actionElementRe = regexp.MustCompile(`(?:is|are|was|were)\s+([^,.!]+)`)
	emotionWordRe   = regexp.MustCompile(`(?:happy|sad|excited|scared|laughing|crying|smiling|worried|curious|surprised)`)
)

// DefaultSceneDescription is used when no fragment matches the page text.
const DefaultSceneDescription = "in a magical setting"

// ExtractSceneDescription pulls lightweight scene signal out of page text:
// prepositional phrases for location/accompaniment, copular action phrases,
// and a fixed vocabulary of emotion words. The fragments are joined into a
// single comma-separated description.
func ExtractSceneDescription(pageText string) string {
	text := strings.ToLower(pageText)

	var fragments []string
	fragments = append(fragments, sceneElementRe.FindAllString(text, -1)...)
	for _, action := range actionElementRe.FindAllString(text, -1) {
		fragments = append(fragments, strings.TrimSpace(action))
	}
	fragments = append(fragments, emotionWordRe.FindAllString(text, -1)...)

	if len(fragments) == 0 {
		return DefaultSceneDescription
	}
	return strings.Join(fragments, ", ")
}
