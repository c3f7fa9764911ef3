package repository

import (
	"context"

	"fable-server/internal/models"
)

// StoryRepository is the document-store gateway for stories. All story
// reads and writes are scoped to the owning user except share-token
// lookups, which are public by design.
type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, storyID, userID string) (*models.Story, error)
	GetByShareToken(ctx context.Context, token string) (*models.Story, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Story, error)
	Delete(ctx context.Context, storyID, userID string) error
	// AppendPage adds a page and advances the story's current page.
	AppendPage(ctx context.Context, storyID, userID string, page models.StoryPage) error
	// AddRating stores a rating and recomputes the story's average.
	AddRating(ctx context.Context, storyID, userID string, rating models.Rating) error
	SetShareToken(ctx context.Context, storyID, userID, token string) error
}

// UserRepository is the document-store gateway for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
