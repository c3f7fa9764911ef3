package models

import (
	"time"
)

// MaxStoryPages is the fixed page ceiling for every story.
const MaxStoryPages = 5

// StoryPage is one unit of story content: generated text plus the
// base64-encoded illustration.
type StoryPage struct {
	PageNumber int    `bson:"pageNumber" json:"page_number"`
	Text       string `bson:"text" json:"text"`
	Image      string `bson:"image" json:"image"`
}

// Rating is a single user rating attached to a story.
type Rating struct {
	UserID  string    `bson:"userId" json:"user_id"`
	Rating  int       `bson:"rating" json:"rating"`
	Comment string    `bson:"comment,omitempty" json:"comment,omitempty"`
	Date    time.Time `bson:"date" json:"date"`
}

// Story is the persisted story document.
type Story struct {
	ID            string      `bson:"_id" json:"story_id"`
	UserID        string      `bson:"userId" json:"user_id"`
	Title         string      `bson:"title" json:"title"`
	AgeGroup      string      `bson:"ageGroup" json:"age_group"`
	Theme         string      `bson:"theme" json:"theme"`
	CharacterName string      `bson:"characterName" json:"character_name"`
	CharacterType string      `bson:"characterType" json:"character_type"`
	Setting       string      `bson:"setting" json:"setting"`
	Pages         []StoryPage `bson:"pages" json:"pages"`
	CurrentPage   int         `bson:"currentPage" json:"current_page"`
	ShareToken    string      `bson:"shareToken,omitempty" json:"share_token,omitempty"`
	Ratings       []Rating    `bson:"ratings" json:"ratings"`
	AverageRating float64     `bson:"averageRating" json:"average_rating"`
	CreatedAt     time.Time   `bson:"createdAt" json:"created_at"`
	UpdatedAt     time.Time   `bson:"updatedAt" json:"updated_at"`
}

// PageByNumber returns the stored page with the given number, if present.
func (s *Story) PageByNumber(n int) (StoryPage, bool) {
	for _, p := range s.Pages {
		if p.PageNumber == n {
			return p, true
		}
	}
	return StoryPage{}, false
}

// ComputeAverageRating returns the arithmetic mean of all stored ratings.
// Zero when there are none.
func ComputeAverageRating(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Rating
	}
	return float64(sum) / float64(len(ratings))
}

// CharacterInfo describes the story's main character. Generated once per
// story and immutable afterwards.
type CharacterInfo struct {
	Name            string `json:"name"`
	Species         string `json:"species"`
	Color           string `json:"color"`
	SpecialFeatures string `json:"special_features"`
	Personality     string `json:"personality"`
}

// Location describes the story's setting. Generated once per story.
type Location struct {
	Place       string `json:"place"`
	Description string `json:"description"`
}
