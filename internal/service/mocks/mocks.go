// Package mocks provides hand-rolled testify mocks for the service layer's
// dependencies.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fable-server/internal/clients"
	"fable-server/internal/models"
	"fable-server/internal/repository"
)

// MockStoryRepository is a mock type for the repository.StoryRepository type
type MockStoryRepository struct {
	mock.Mock
}

var _ repository.StoryRepository = (*MockStoryRepository)(nil)

func (m *MockStoryRepository) Create(ctx context.Context, story *models.Story) error {
	return m.Called(ctx, story).Error(0)
}

func (m *MockStoryRepository) GetByID(ctx context.Context, storyID, userID string) (*models.Story, error) {
	ret := m.Called(ctx, storyID, userID)
	var story *models.Story
	if ret.Get(0) != nil {
		story = ret.Get(0).(*models.Story)
	}
	return story, ret.Error(1)
}

func (m *MockStoryRepository) GetByShareToken(ctx context.Context, token string) (*models.Story, error) {
	ret := m.Called(ctx, token)
	var story *models.Story
	if ret.Get(0) != nil {
		story = ret.Get(0).(*models.Story)
	}
	return story, ret.Error(1)
}

func (m *MockStoryRepository) ListByUser(ctx context.Context, userID string) ([]*models.Story, error) {
	ret := m.Called(ctx, userID)
	var stories []*models.Story
	if ret.Get(0) != nil {
		stories = ret.Get(0).([]*models.Story)
	}
	return stories, ret.Error(1)
}

func (m *MockStoryRepository) Delete(ctx context.Context, storyID, userID string) error {
	return m.Called(ctx, storyID, userID).Error(0)
}

func (m *MockStoryRepository) AppendPage(ctx context.Context, storyID, userID string, page models.StoryPage) error {
	return m.Called(ctx, storyID, userID, page).Error(0)
}

func (m *MockStoryRepository) AddRating(ctx context.Context, storyID, userID string, rating models.Rating) error {
	return m.Called(ctx, storyID, userID, rating).Error(0)
}

func (m *MockStoryRepository) SetShareToken(ctx context.Context, storyID, userID, token string) error {
	return m.Called(ctx, storyID, userID, token).Error(0)
}

// MockUserRepository is a mock type for the repository.UserRepository type
type MockUserRepository struct {
	mock.Mock
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ret := m.Called(ctx, username)
	var user *models.User
	if ret.Get(0) != nil {
		user = ret.Get(0).(*models.User)
	}
	return user, ret.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ret := m.Called(ctx, id)
	var user *models.User
	if ret.Get(0) != nil {
		user = ret.Get(0).(*models.User)
	}
	return user, ret.Error(1)
}

// MockTextClient is a mock type for the clients.TextClient type
type MockTextClient struct {
	mock.Mock
}

var _ clients.TextClient = (*MockTextClient)(nil)

func (m *MockTextClient) GenerateText(ctx context.Context, prompt string, history []clients.Message) (string, error) {
	ret := m.Called(ctx, prompt, history)
	return ret.String(0), ret.Error(1)
}

func (m *MockTextClient) NewSession(history []clients.Message) clients.TextSession {
	ret := m.Called(history)
	var session clients.TextSession
	if ret.Get(0) != nil {
		session = ret.Get(0).(clients.TextSession)
	}
	return session
}

// MockImageClient is a mock type for the clients.ImageClient type
type MockImageClient struct {
	mock.Mock
}

var _ clients.ImageClient = (*MockImageClient)(nil)

func (m *MockImageClient) GenerateImage(ctx context.Context, req clients.ImageRequest) ([]byte, error) {
	ret := m.Called(ctx, req)
	var data []byte
	if ret.Get(0) != nil {
		data = ret.Get(0).([]byte)
	}
	return data, ret.Error(1)
}

// MockSpeechClient is a mock type for the clients.SpeechClient type
type MockSpeechClient struct {
	mock.Mock
}

var _ clients.SpeechClient = (*MockSpeechClient)(nil)

func (m *MockSpeechClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	ret := m.Called(ctx, text, voice)
	var data []byte
	if ret.Get(0) != nil {
		data = ret.Get(0).([]byte)
	}
	return data, ret.Error(1)
}
