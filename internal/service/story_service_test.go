package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fable-server/internal/clients"
	"fable-server/internal/contextstore"
	"fable-server/internal/models"
	"fable-server/internal/service/mocks"
)

const (
	testUserID  = "user-1"
	testStoryID = "story-1"
)

type serviceFixture struct {
	svc       StoryService
	storyRepo *mocks.MockStoryRepository
	text      *mocks.MockTextClient
	image     *mocks.MockImageClient
	speech    *mocks.MockSpeechClient
	contexts  *contextstore.Store
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		storyRepo: &mocks.MockStoryRepository{},
		text:      &mocks.MockTextClient{},
		image:     &mocks.MockImageClient{},
		speech:    &mocks.MockSpeechClient{},
		contexts:  contextstore.NewStore(time.Minute, time.Minute, zap.NewNop()),
	}
	f.svc = NewStoryService(f.storyRepo, f.text, f.image, f.speech, f.contexts, zap.NewNop())
	return f
}

// expectContextSynthesis wires the character and location prompts so that
// context creation succeeds with a known character.
func (f *serviceFixture) expectContextSynthesis() {
	f.text.On("GenerateText", mock.Anything,
		mock.MatchedBy(func(p string) bool { return strings.Contains(p, "character description") }),
		mock.Anything,
	).Return(`{"name":"Luna","species":"bunny","color":"white","special_features":"floppy ears","personality":"curious"}`, nil)
	f.text.On("GenerateText", mock.Anything,
		mock.MatchedBy(func(p string) bool { return strings.Contains(p, "location description") }),
		mock.Anything,
	).Return(`{"place":"Sunny Garden","description":"A bright garden full of flowers"}`, nil)
}

func promptContains(substr string) interface{} {
	return mock.MatchedBy(func(p string) bool { return strings.Contains(p, substr) })
}

func TestStartStoryToddlerProducesTwoExclamatorySentences(t *testing.T) {
	f := newServiceFixture(t)
	f.expectContextSynthesis()

	f.text.On("GenerateText", mock.Anything, promptContains("EXACTLY TWO complete sentences"), mock.Anything).
		Return("Luna the bunny hops in the garden. Luna giggles with joy. undefined", nil)
	f.image.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("jpeg-1"), nil)
	f.storyRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.StartStory(context.Background(), testUserID, StartStoryRequest{
		AgeGroup:      "0-2",
		Theme:         "adventure",
		CharacterName: "Luna",
		CharacterType: "bunny",
		Setting:       "garden",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.PageNumber)
	assert.Equal(t, "Luna the bunny hops in the garden! Luna giggles with joy!", result.Text)
	assert.Equal(t, 2, strings.Count(result.Text, "!"))
	assert.Contains(t, result.Text, "Luna")
	assert.NotContains(t, result.Text, "undefined")
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg-1")), result.Image)
	assert.False(t, result.IsComplete)
}

func TestStartStoryOlderBandKeepsFullText(t *testing.T) {
	f := newServiceFixture(t)
	f.expectContextSynthesis()

	opening := "Once upon a time, Luna the bunny lived in a sunny garden.\n\nEvery morning she hopped through the flowers."
	f.text.On("GenerateText", mock.Anything, promptContains("Create a children's story"), mock.Anything).
		Return(opening, nil)
	f.image.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("jpeg-1"), nil)
	f.storyRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := f.svc.StartStory(context.Background(), testUserID, StartStoryRequest{
		AgeGroup:      "3-4",
		Theme:         "adventure",
		CharacterName: "Luna",
		CharacterType: "bunny",
		Setting:       "garden",
	})

	require.NoError(t, err)
	assert.Equal(t, opening, result.Text)
}

func TestStartStoryUsesFallbacksWhenContextGenerationFails(t *testing.T) {
	f := newServiceFixture(t)

	f.text.On("GenerateText", mock.Anything, promptContains("character description"), mock.Anything).
		Return("", errors.New("provider down"))
	f.text.On("GenerateText", mock.Anything, promptContains("location description"), mock.Anything).
		Return("not json at all", nil)
	f.text.On("GenerateText", mock.Anything, promptContains("EXACTLY TWO complete sentences"), mock.Anything).
		Return("Rex runs fast. Rex barks happily.", nil)
	f.image.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("jpeg"), nil)

	var created *models.Story
	f.storyRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.Story)
	}).Return(nil)

	result, err := f.svc.StartStory(context.Background(), testUserID, StartStoryRequest{
		AgeGroup:      "0-2",
		Theme:         "friendship",
		CharacterName: "Rex",
		CharacterType: "dog",
	})

	require.NoError(t, err)
	assert.Equal(t, "Rex runs fast! Rex barks happily!", result.Text)
	// No setting was supplied, so the fallback location fills in.
	require.NotNil(t, created)
	assert.Equal(t, "Magical Playground", created.Setting)
}

func TestGenerateNextPagePageLimitRejectedBeforeProviders(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.GenerateNextPage(context.Background(), testUserID, NextPageRequest{
		StoryID:     testStoryID,
		CurrentPage: models.MaxStoryPages,
	})

	assert.ErrorIs(t, err, ErrPageLimitExceeded)
	f.text.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything)
	f.image.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
	f.storyRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateNextPageReplaysStoredPageWithoutProviderCalls(t *testing.T) {
	f := newServiceFixture(t)

	stored := &models.Story{
		ID:     testStoryID,
		UserID: testUserID,
		Pages: []models.StoryPage{
			{PageNumber: 1, Text: "Luna hops!", Image: "aW1nMQ=="},
			{PageNumber: 2, Text: "Luna jumps!", Image: "aW1nMg=="},
		},
		CurrentPage: 2,
	}
	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).Return(stored, nil)

	result, err := f.svc.GenerateNextPage(context.Background(), testUserID, NextPageRequest{
		StoryID:     testStoryID,
		CurrentPage: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.PageNumber)
	assert.Equal(t, "Luna jumps!", result.Text)
	assert.Equal(t, "aW1nMg==", result.Image)
	f.text.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything)
	f.image.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
	f.storyRepo.AssertNotCalled(t, "AppendPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateNextPageBlendsAgainstInitialImage(t *testing.T) {
	f := newServiceFixture(t)

	initialImage := []byte("page-1-jpeg")
	sctx := contextstore.NewStoryContext("0-2", "adventure",
		models.CharacterInfo{Name: "Luna", Species: "bunny", Color: "white", SpecialFeatures: "floppy ears", Personality: "curious"},
		models.Location{Place: "Sunny Garden", Description: "A bright garden"})
	sctx.AddPage("Luna hops in the garden! Luna smiles!")
	sctx.InitialCharacterImage = initialImage
	f.contexts.Set(testStoryID, sctx)

	stored := &models.Story{
		ID:       testStoryID,
		UserID:   testUserID,
		AgeGroup: "0-2",
		Theme:    "adventure",
		Pages: []models.StoryPage{
			{PageNumber: 1, Text: "Luna hops in the garden! Luna smiles!", Image: base64.StdEncoding.EncodeToString(initialImage)},
		},
		CurrentPage: 1,
	}
	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).Return(stored, nil)
	f.text.On("GenerateText", mock.Anything, promptContains("Guidelines:"), mock.Anything).
		Return("Luna finds a shiny stone. Luna laughs.", nil)

	var captured clients.ImageRequest
	f.image.On("GenerateImage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(clients.ImageRequest)
	}).Return([]byte("page-2-jpeg"), nil)
	f.storyRepo.On("AppendPage", mock.Anything, testStoryID, testUserID, mock.Anything).Return(nil)

	result, err := f.svc.GenerateNextPage(context.Background(), testUserID, NextPageRequest{
		StoryID:     testStoryID,
		CurrentPage: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.PageNumber)
	assert.Equal(t, initialImage, captured.InitImage)
	assert.Equal(t, 0.35, captured.ImageStrength)
	assert.Equal(t, sctx.PageSeed(2), captured.Seed)
}

func TestGenerateNextPageRebuildsLostContextFromStory(t *testing.T) {
	f := newServiceFixture(t)
	f.expectContextSynthesis()

	initialImage := []byte("page-1-jpeg")
	stored := &models.Story{
		ID:            testStoryID,
		UserID:        testUserID,
		AgeGroup:      "0-2",
		Theme:         "adventure",
		CharacterName: "Luna",
		CharacterType: "bunny",
		Pages: []models.StoryPage{
			{PageNumber: 1, Text: "Luna hops in the garden! Luna smiles!", Image: base64.StdEncoding.EncodeToString(initialImage)},
		},
		CurrentPage: 1,
	}
	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).Return(stored, nil)

	var pagePrompt string
	f.text.On("GenerateText", mock.Anything, promptContains("Guidelines:"), mock.Anything).
		Run(func(args mock.Arguments) { pagePrompt = args.Get(1).(string) }).
		Return("Luna finds a shiny stone. Luna laughs.", nil)

	var captured clients.ImageRequest
	f.image.On("GenerateImage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(clients.ImageRequest)
	}).Return([]byte("page-2-jpeg"), nil)
	f.storyRepo.On("AppendPage", mock.Anything, testStoryID, testUserID, mock.Anything).Return(nil)

	result, err := f.svc.GenerateNextPage(context.Background(), testUserID, NextPageRequest{
		StoryID:     testStoryID,
		CurrentPage: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, "Luna finds a shiny stone! Luna laughs!", result.Text)
	// The rebuilt context carries the persisted page-1 text into the prompt
	// and the persisted page-1 image into the blend.
	assert.Contains(t, pagePrompt, "Luna hops in the garden!")
	assert.Equal(t, initialImage, captured.InitImage)
	assert.Equal(t, 0.35, captured.ImageStrength)
}

func TestGenerateNextPageTextFailureLeavesNoTrace(t *testing.T) {
	f := newServiceFixture(t)
	f.expectContextSynthesis()

	stored := &models.Story{ID: testStoryID, UserID: testUserID, AgeGroup: "0-2", Theme: "adventure"}
	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).Return(stored, nil)
	f.text.On("GenerateText", mock.Anything, promptContains("Guidelines:"), mock.Anything).
		Return("", errors.New("provider timeout"))

	_, err := f.svc.GenerateNextPage(context.Background(), testUserID, NextPageRequest{
		StoryID:     testStoryID,
		CurrentPage: 0,
	})

	var pageErr *PageGenerationError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, StageText, pageErr.Stage)

	sctx, ok := f.contexts.Get(testStoryID)
	require.True(t, ok)
	assert.Empty(t, sctx.Pages)
	f.image.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything)
	f.storyRepo.AssertNotCalled(t, "AppendPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateNextPageImageFailureRollsBackHistory(t *testing.T) {
	f := newServiceFixture(t)
	f.expectContextSynthesis()

	stored := &models.Story{ID: testStoryID, UserID: testUserID, AgeGroup: "0-2", Theme: "adventure"}
	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).Return(stored, nil)
	f.text.On("GenerateText", mock.Anything, promptContains("Guidelines:"), mock.Anything).
		Return("Luna hops. Luna smiles.", nil)
	f.image.On("GenerateImage", mock.Anything, mock.Anything).
		Return(nil, clients.ErrImageGenerationFailed)

	_, err := f.svc.GenerateNextPage(context.Background(), testUserID, NextPageRequest{
		StoryID:     testStoryID,
		CurrentPage: 0,
	})

	var pageErr *PageGenerationError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, StageImage, pageErr.Stage)
	assert.ErrorIs(t, err, clients.ErrImageGenerationFailed)

	// A retry must restart the page from prompt construction.
	sctx, ok := f.contexts.Get(testStoryID)
	require.True(t, ok)
	assert.Empty(t, sctx.Pages)
	f.storyRepo.AssertNotCalled(t, "AppendPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateNextPageCreatesMissingStoryDocument(t *testing.T) {
	f := newServiceFixture(t)
	f.expectContextSynthesis()

	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).Return(nil, models.ErrStoryNotFound)

	var created *models.Story
	f.storyRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.Story)
	}).Return(nil)
	f.text.On("GenerateText", mock.Anything, promptContains("Guidelines:"), mock.Anything).
		Return("Luna hops. Luna smiles.", nil)
	f.image.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("jpeg"), nil)
	f.storyRepo.On("AppendPage", mock.Anything, testStoryID, testUserID, mock.Anything).Return(nil)

	result, err := f.svc.GenerateNextPage(context.Background(), testUserID, NextPageRequest{
		StoryID:       testStoryID,
		CurrentPage:   0,
		AgeGroup:      "0-2",
		Theme:         "adventure",
		CharacterName: "Luna",
		CharacterType: "bunny",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.PageNumber)
	require.NotNil(t, created)
	assert.Equal(t, "Luna's Adventure", created.Title)
	assert.Equal(t, testUserID, created.UserID)
}

func TestGenerateNextPageFinalPageIsComplete(t *testing.T) {
	f := newServiceFixture(t)
	f.expectContextSynthesis()

	stored := &models.Story{ID: testStoryID, UserID: testUserID, AgeGroup: "5-6", Theme: "space"}
	for n := 1; n <= 4; n++ {
		stored.Pages = append(stored.Pages, models.StoryPage{PageNumber: n, Text: "Zip flies!", Image: "aW1n"})
	}
	stored.CurrentPage = 4
	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).Return(stored, nil)
	f.text.On("GenerateText", mock.Anything, promptContains("Guidelines:"), mock.Anything).
		Return("Zip lands safely at home.", nil)
	f.image.On("GenerateImage", mock.Anything, mock.Anything).Return([]byte("jpeg"), nil)
	f.storyRepo.On("AppendPage", mock.Anything, testStoryID, testUserID, mock.Anything).Return(nil)

	result, err := f.svc.GenerateNextPage(context.Background(), testUserID, NextPageRequest{
		StoryID:     testStoryID,
		CurrentPage: 4,
	})

	require.NoError(t, err)
	assert.Equal(t, models.MaxStoryPages, result.PageNumber)
	assert.True(t, result.IsComplete)
	assert.Equal(t, "Zip lands safely at home!", result.Text)
}

func TestRateStoryValidatesRange(t *testing.T) {
	f := newServiceFixture(t)

	for _, rating := range []int{0, -1, 6} {
		_, err := f.svc.RateStory(context.Background(), testUserID, testStoryID, rating, "")
		assert.ErrorIs(t, err, models.ErrInvalidRating)
	}
	f.storyRepo.AssertNotCalled(t, "AddRating", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRateStoryStoresRatingAndReturnsUpdatedStory(t *testing.T) {
	f := newServiceFixture(t)

	var captured models.Rating
	f.storyRepo.On("AddRating", mock.Anything, testStoryID, testUserID, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(3).(models.Rating) }).
		Return(nil)
	updated := &models.Story{ID: testStoryID, AverageRating: 4.5}
	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).Return(updated, nil)

	story, err := f.svc.RateStory(context.Background(), testUserID, testStoryID, 5, "Lovely!")

	require.NoError(t, err)
	assert.Equal(t, 4.5, story.AverageRating)
	assert.Equal(t, 5, captured.Rating)
	assert.Equal(t, "Lovely!", captured.Comment)
	assert.Equal(t, testUserID, captured.UserID)
	assert.False(t, captured.Date.IsZero())
}

func TestShareStoryMintsTokenOnce(t *testing.T) {
	f := newServiceFixture(t)

	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).
		Return(&models.Story{ID: testStoryID, UserID: testUserID}, nil).Once()

	var minted string
	f.storyRepo.On("SetShareToken", mock.Anything, testStoryID, testUserID, mock.Anything).
		Run(func(args mock.Arguments) { minted = args.Get(3).(string) }).
		Return(nil)

	token, err := f.svc.ShareStory(context.Background(), testUserID, testStoryID)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, minted, token)

	// Sharing again returns the stored token without minting a new one.
	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).
		Return(&models.Story{ID: testStoryID, UserID: testUserID, ShareToken: token}, nil).Once()

	again, err := f.svc.ShareStory(context.Background(), testUserID, testStoryID)
	require.NoError(t, err)
	assert.Equal(t, token, again)
	f.storyRepo.AssertNumberOfCalls(t, "SetShareToken", 1)
}

func TestDeleteStoryDropsContext(t *testing.T) {
	f := newServiceFixture(t)

	f.contexts.Set(testStoryID, contextstore.NewStoryContext("0-2", "adventure",
		models.CharacterInfo{}, models.Location{}))
	f.storyRepo.On("Delete", mock.Anything, testStoryID, testUserID).Return(nil)

	require.NoError(t, f.svc.DeleteStory(context.Background(), testUserID, testStoryID))

	_, ok := f.contexts.Get(testStoryID)
	assert.False(t, ok)
}

func TestGetAnalytics(t *testing.T) {
	f := newServiceFixture(t)

	story := &models.Story{
		ID: testStoryID,
		Ratings: []models.Rating{
			{UserID: "a", Rating: 4},
			{UserID: "b", Rating: 5},
		},
		AverageRating: 4.5,
	}
	f.storyRepo.On("GetByID", mock.Anything, testStoryID, testUserID).Return(story, nil)

	analytics, err := f.svc.GetAnalytics(context.Background(), testUserID, testStoryID)

	require.NoError(t, err)
	assert.Equal(t, 2, analytics.RatingCount)
	assert.Equal(t, 4.5, analytics.AverageRating)
}

func TestTextToSpeechDefaultsVoice(t *testing.T) {
	f := newServiceFixture(t)

	f.speech.On("Synthesize", mock.Anything, "Luna hops!", "alloy").Return([]byte("mp3"), nil)

	audio, err := f.svc.TextToSpeech(context.Background(), "Luna hops!", "")

	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
	f.speech.AssertExpectations(t)
}
