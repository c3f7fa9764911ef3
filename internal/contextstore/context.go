package contextstore

import (
	"math"
	"math/rand"

	"fable-server/internal/models"
)

// StoryContext is the ephemeral per-story state used to keep incremental
// generation calls coherent. CharacterInfo, Location and
// InitialCharacterImage are write-once; Pages is append-only. It lives only
// in process memory: the document store is the durable source of truth and
// a lost context is re-synthesized (at the cost of possible visual drift).
type StoryContext struct {
	AgeGroup      string
	Theme         string
	CharacterInfo models.CharacterInfo
	Location      models.Location

	// CharacterSeed is drawn once per story in [0, 2^31-1) and anchors the
	// per-page seeds that keep the character's look stable across pages.
	CharacterSeed int64

	// Pages holds previously generated page texts, oldest first.
	Pages []string

	// InitialCharacterImage holds page-1's image bytes so later pages can
	// run image-to-image generation against it.
	InitialCharacterImage []byte
}

// NewStoryContext creates a context with a fresh character seed.
func NewStoryContext(ageGroup, theme string, character models.CharacterInfo, location models.Location) *StoryContext {
	return &StoryContext{
		AgeGroup:      ageGroup,
		Theme:         theme,
		CharacterInfo: character,
		Location:      location,
		CharacterSeed: rand.Int63n(math.MaxInt32),
	}
}

// PageSeed derives a deterministic-but-unique seed for the given page from
// the story's character seed.
func (c *StoryContext) PageSeed(pageNumber int) int64 {
	return (c.CharacterSeed + int64(pageNumber)*1000) % math.MaxInt32
}

// AddPage appends a generated page text to the history.
func (c *StoryContext) AddPage(text string) {
	c.Pages = append(c.Pages, text)
}

// DropLastPage removes the most recently added page text. Used to discard
// partial progress when a later stage of the page pipeline fails.
func (c *StoryContext) DropLastPage() {
	if len(c.Pages) > 0 {
		c.Pages = c.Pages[:len(c.Pages)-1]
	}
}

// LastPage returns the most recently added page text, if any.
func (c *StoryContext) LastPage() (string, bool) {
	if len(c.Pages) == 0 {
		return "", false
	}
	return c.Pages[len(c.Pages)-1], true
}

// NextPageNumber is the number of the page that would be generated next.
func (c *StoryContext) NextPageNumber() int {
	return len(c.Pages) + 1
}
