package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"fable-server/internal/models"
)

// mongoUserRepository implements UserRepository on a MongoDB collection.
type mongoUserRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoUserRepository creates a UserRepository backed by MongoDB.
func NewMongoUserRepository(db *mongo.Database, logger *zap.Logger) UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(usersCollection),
		logger:     logger.Named("MongoUserRepo"),
	}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrUserAlreadyExists
		}
		r.logger.Error("Failed to insert user", zap.String("username", user.Username), zap.Error(err))
		return fmt.Errorf("failed to insert user: %w", err)
	}
	r.logger.Debug("User created", zap.String("userID", user.ID), zap.String("username", user.Username))
	return nil
}

func (r *mongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to find user by username", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to find user by id", zap.String("userID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}
