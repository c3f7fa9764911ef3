package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"fable-server/internal/models"
)

// mongoStoryRepository implements StoryRepository on a MongoDB collection.
type mongoStoryRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoStoryRepository creates a StoryRepository backed by MongoDB.
func NewMongoStoryRepository(db *mongo.Database, logger *zap.Logger) StoryRepository {
	return &mongoStoryRepository{
		collection: db.Collection(storiesCollection),
		logger:     logger.Named("MongoStoryRepo"),
	}
}

func ownerFilter(storyID, userID string) bson.M {
	return bson.M{"_id": storyID, "userId": userID}
}

func (r *mongoStoryRepository) Create(ctx context.Context, story *models.Story) error {
	now := time.Now().UTC()
	story.CreatedAt = now
	story.UpdatedAt = now
	if story.Pages == nil {
		story.Pages = []models.StoryPage{}
	}
	if story.Ratings == nil {
		story.Ratings = []models.Rating{}
	}

	if _, err := r.collection.InsertOne(ctx, story); err != nil {
		r.logger.Error("Failed to insert story", zap.String("storyID", story.ID), zap.Error(err))
		return fmt.Errorf("failed to insert story: %w", err)
	}
	r.logger.Debug("Story created", zap.String("storyID", story.ID), zap.String("userID", story.UserID))
	return nil
}

func (r *mongoStoryRepository) GetByID(ctx context.Context, storyID, userID string) (*models.Story, error) {
	var story models.Story
	err := r.collection.FindOne(ctx, ownerFilter(storyID, userID)).Decode(&story)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to find story", zap.String("storyID", storyID), zap.Error(err))
		return nil, fmt.Errorf("failed to find story: %w", err)
	}
	return &story, nil
}

func (r *mongoStoryRepository) GetByShareToken(ctx context.Context, token string) (*models.Story, error) {
	var story models.Story
	err := r.collection.FindOne(ctx, bson.M{"shareToken": token}).Decode(&story)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to find story by share token", zap.Error(err))
		return nil, fmt.Errorf("failed to find story by share token: %w", err)
	}
	return &story, nil
}

func (r *mongoStoryRepository) ListByUser(ctx context.Context, userID string) ([]*models.Story, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		r.logger.Error("Failed to list stories", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer cursor.Close(ctx)

	var stories []*models.Story
	if err := cursor.All(ctx, &stories); err != nil {
		return nil, fmt.Errorf("failed to decode stories: %w", err)
	}
	return stories, nil
}

func (r *mongoStoryRepository) Delete(ctx context.Context, storyID, userID string) error {
	result, err := r.collection.DeleteOne(ctx, ownerFilter(storyID, userID))
	if err != nil {
		r.logger.Error("Failed to delete story", zap.String("storyID", storyID), zap.Error(err))
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrStoryNotFound
	}
	r.logger.Debug("Story deleted", zap.String("storyID", storyID))
	return nil
}

func (r *mongoStoryRepository) AppendPage(ctx context.Context, storyID, userID string, page models.StoryPage) error {
	update := bson.M{
		"$push": bson.M{"pages": page},
		"$set": bson.M{
			"currentPage": page.PageNumber,
			"updatedAt":   time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, ownerFilter(storyID, userID), update)
	if err != nil {
		r.logger.Error("Failed to append page",
			zap.String("storyID", storyID), zap.Int("pageNumber", page.PageNumber), zap.Error(err))
		return fmt.Errorf("failed to append page: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

// AddRating appends the rating and recomputes averageRating as the
// arithmetic mean of all stored ratings.
func (r *mongoStoryRepository) AddRating(ctx context.Context, storyID, userID string, rating models.Rating) error {
	story, err := r.GetByID(ctx, storyID, userID)
	if err != nil {
		return err
	}

	ratings := append(story.Ratings, rating)
	update := bson.M{
		"$set": bson.M{
			"ratings":       ratings,
			"averageRating": models.ComputeAverageRating(ratings),
			"updatedAt":     time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, ownerFilter(storyID, userID), update)
	if err != nil {
		r.logger.Error("Failed to add rating", zap.String("storyID", storyID), zap.Error(err))
		return fmt.Errorf("failed to add rating: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

func (r *mongoStoryRepository) SetShareToken(ctx context.Context, storyID, userID, token string) error {
	update := bson.M{
		"$set": bson.M{
			"shareToken": token,
			"updatedAt":  time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, ownerFilter(storyID, userID), update)
	if err != nil {
		r.logger.Error("Failed to set share token", zap.String("storyID", storyID), zap.Error(err))
		return fmt.Errorf("failed to set share token: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}
