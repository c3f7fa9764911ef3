package service

import (
	"regexp"
	"strings"

	"fable-server/internal/prompts"
)

var (
	sentenceSplitRe     = regexp.MustCompile(`[.!?]+`)
	trailingUndefinedRe = regexp.MustCompile(`(?i)\s*undefined\s*$`)
)

// cleanStoryText normalizes raw model output into the page format children
// see: the age band's sentence count, each sentence ending with an
// exclamation mark, with stray "undefined" artifacts stripped.
func cleanStoryText(raw, ageGroup string) string {
	parts := sentenceSplitRe.Split(raw, -1)
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		sentence := strings.TrimSpace(trailingUndefinedRe.ReplaceAllString(part, ""))
		if sentence == "" {
			continue
		}
		sentences = append(sentences, sentence+"!")
	}

	limit := prompts.SentenceCount(ageGroup)
	if len(sentences) > limit {
		sentences = sentences[:limit]
	}
	return strings.Join(sentences, " ")
}
