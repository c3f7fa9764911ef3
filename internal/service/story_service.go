package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fable-server/internal/clients"
	"fable-server/internal/contextstore"
	"fable-server/internal/models"
	"fable-server/internal/prompts"
	"fable-server/internal/repository"
)

// imageBlendStrength is how strongly image-to-image generation favors the
// page-1 reference image over the new prompt.
const imageBlendStrength = 0.35

// Fixed context values used when the provider cannot supply character or
// location details. Generation proceeds with these instead of failing.
var (
	fallbackCharacter = models.CharacterInfo{
		Color:           "golden",
		SpecialFeatures: "unique and special features",
		Personality:     "friendly and energetic",
	}
	fallbackLocation = models.Location{
		Place:       "Magical Playground",
		Description: "A wonderful place full of fun and adventure",
	}
)

// StartStoryRequest carries the user's choices for a new story.
type StartStoryRequest struct {
	AgeGroup      string
	Theme         string
	CharacterName string
	CharacterType string
	Setting       string
}

// NextPageRequest asks for the page after CurrentPage of an existing story.
// The descriptive fields let the service re-synthesize a lost context.
type NextPageRequest struct {
	StoryID       string
	CurrentPage   int
	AgeGroup      string
	Theme         string
	CharacterName string
	CharacterType string
	Setting       string
}

// PageResult is one generated (or replayed) page.
type PageResult struct {
	StoryID    string `json:"story_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	// Image is the base64-encoded JPEG illustration.
	Image      string `json:"image"`
	IsComplete bool   `json:"is_complete"`
}

// StoryAnalytics summarizes a story's rating activity.
type StoryAnalytics struct {
	StoryID       string          `json:"story_id"`
	RatingCount   int             `json:"rating_count"`
	AverageRating float64         `json:"average_rating"`
	Ratings       []models.Rating `json:"ratings"`
}

// StoryService orchestrates story generation, persistence, sharing, rating
// and narration.
type StoryService interface {
	StartStory(ctx context.Context, userID string, req StartStoryRequest) (*PageResult, error)
	GenerateNextPage(ctx context.Context, userID string, req NextPageRequest) (*PageResult, error)
	GetStory(ctx context.Context, userID, storyID string) (*models.Story, error)
	ListStories(ctx context.Context, userID string) ([]*models.Story, error)
	DeleteStory(ctx context.Context, userID, storyID string) error
	RateStory(ctx context.Context, userID, storyID string, rating int, comment string) (*models.Story, error)
	ShareStory(ctx context.Context, userID, storyID string) (string, error)
	GetSharedStory(ctx context.Context, token string) (*models.Story, error)
	GetAnalytics(ctx context.Context, userID, storyID string) (*StoryAnalytics, error)
	TextToSpeech(ctx context.Context, text, voice string) ([]byte, error)
}

// Compile-time check to ensure storyServiceImpl implements StoryService
var _ StoryService = (*storyServiceImpl)(nil)

type storyServiceImpl struct {
	storyRepo    repository.StoryRepository
	textClient   clients.TextClient
	imageClient  clients.ImageClient
	speechClient clients.SpeechClient
	contexts     *contextstore.Store
	logger       *zap.Logger
}

// NewStoryService creates a new instance of storyServiceImpl.
func NewStoryService(
	storyRepo repository.StoryRepository,
	textClient clients.TextClient,
	imageClient clients.ImageClient,
	speechClient clients.SpeechClient,
	contexts *contextstore.Store,
	logger *zap.Logger,
) StoryService {
	return &storyServiceImpl{
		storyRepo:    storyRepo,
		textClient:   textClient,
		imageClient:  imageClient,
		speechClient: speechClient,
		contexts:     contexts,
		logger:       logger.Named("StoryService"),
	}
}

// StartStory creates a new story and generates its first page with a
// one-shot opening prompt.
func (s *storyServiceImpl) StartStory(ctx context.Context, userID string, req StartStoryRequest) (*PageResult, error) {
	storyID := uuid.NewString()

	unlock := s.contexts.Lock(storyID)
	defer unlock()

	s.logger.Info("Starting story",
		zap.String("storyID", storyID),
		zap.String("userID", userID),
		zap.String("ageGroup", req.AgeGroup),
		zap.String("theme", req.Theme),
	)

	sctx := s.synthesizeContext(ctx, req.AgeGroup, req.Theme, req.CharacterName, req.CharacterType)

	setting := req.Setting
	if setting == "" {
		setting = sctx.Location.Place
	}

	raw, err := s.textClient.GenerateText(ctx,
		prompts.OpeningPrompt(req.AgeGroup, req.Theme, req.CharacterName, req.CharacterType, setting), nil)
	if err != nil {
		return nil, &PageGenerationError{Stage: StageText, Err: err}
	}

	// The toddler band gets the strict two-sentence treatment; older bands
	// keep the full multi-paragraph opening.
	text := strings.TrimSpace(raw)
	if req.AgeGroup == prompts.AgeGroupToddler {
		text = cleanStoryText(raw, req.AgeGroup)
	}
	sctx.AddPage(text)

	imageData, genErr := s.generatePageImage(ctx, sctx, text, 1)
	if genErr != nil {
		sctx.DropLastPage()
		return nil, genErr
	}
	sctx.InitialCharacterImage = imageData
	s.contexts.Set(storyID, sctx)

	page := models.StoryPage{
		PageNumber: 1,
		Text:       text,
		Image:      base64.StdEncoding.EncodeToString(imageData),
	}
	story := &models.Story{
		ID:            storyID,
		UserID:        userID,
		Title:         storyTitle(req.CharacterName),
		AgeGroup:      req.AgeGroup,
		Theme:         req.Theme,
		CharacterName: req.CharacterName,
		CharacterType: req.CharacterType,
		Setting:       setting,
		Pages:         []models.StoryPage{page},
		CurrentPage:   1,
	}
	if err := s.storyRepo.Create(ctx, story); err != nil {
		sctx.DropLastPage()
		return nil, err
	}

	return &PageResult{
		StoryID:    storyID,
		PageNumber: 1,
		Text:       page.Text,
		Image:      page.Image,
		IsComplete: false,
	}, nil
}

// GenerateNextPage produces the page after req.CurrentPage. Replays of an
// already-generated page return the stored content without any provider
// calls; a failed attempt leaves no trace and a retry restarts the page
// from prompt construction.
func (s *storyServiceImpl) GenerateNextPage(ctx context.Context, userID string, req NextPageRequest) (*PageResult, error) {
	pageNumber := req.CurrentPage + 1
	if pageNumber < 1 {
		return nil, fmt.Errorf("invalid current page %d", req.CurrentPage)
	}
	if pageNumber > models.MaxStoryPages {
		return nil, ErrPageLimitExceeded
	}

	unlock := s.contexts.Lock(req.StoryID)
	defer unlock()

	story, err := s.storyRepo.GetByID(ctx, req.StoryID, userID)
	if err != nil {
		if !errors.Is(err, models.ErrStoryNotFound) {
			return nil, err
		}
		story = &models.Story{
			ID:            req.StoryID,
			UserID:        userID,
			Title:         storyTitle(req.CharacterName),
			AgeGroup:      req.AgeGroup,
			Theme:         req.Theme,
			CharacterName: req.CharacterName,
			CharacterType: req.CharacterType,
			Setting:       req.Setting,
		}
		if err := s.storyRepo.Create(ctx, story); err != nil {
			return nil, err
		}
	}

	// Replay: the page already exists, return it as-is.
	if page, ok := story.PageByNumber(pageNumber); ok {
		s.logger.Debug("Replaying stored page",
			zap.String("storyID", req.StoryID), zap.Int("pageNumber", pageNumber))
		return &PageResult{
			StoryID:    story.ID,
			PageNumber: page.PageNumber,
			Text:       page.Text,
			Image:      page.Image,
			IsComplete: page.PageNumber == models.MaxStoryPages,
		}, nil
	}

	sctx := s.contexts.GetOrCreate(req.StoryID, func() *contextstore.StoryContext {
		return s.rebuildContext(ctx, story, req)
	})

	previousText, _ := sctx.LastPage()
	raw, err := s.textClient.GenerateText(ctx,
		prompts.PagePrompt(sctx.CharacterInfo, sctx.Location, sctx.AgeGroup, sctx.Theme, pageNumber, previousText), nil)
	if err != nil {
		return nil, &PageGenerationError{Stage: StageText, Err: err}
	}
	text := cleanStoryText(raw, sctx.AgeGroup)
	sctx.AddPage(text)

	imageData, genErr := s.generatePageImage(ctx, sctx, text, pageNumber)
	if genErr != nil {
		sctx.DropLastPage()
		return nil, genErr
	}
	if pageNumber == 1 {
		sctx.InitialCharacterImage = imageData
	}
	s.contexts.Set(req.StoryID, sctx)

	page := models.StoryPage{
		PageNumber: pageNumber,
		Text:       text,
		Image:      base64.StdEncoding.EncodeToString(imageData),
	}
	if err := s.storyRepo.AppendPage(ctx, req.StoryID, userID, page); err != nil {
		sctx.DropLastPage()
		return nil, err
	}

	s.logger.Info("Page generated",
		zap.String("storyID", req.StoryID),
		zap.Int("pageNumber", pageNumber),
		zap.Int("textLength", len(text)),
	)
	return &PageResult{
		StoryID:    story.ID,
		PageNumber: pageNumber,
		Text:       page.Text,
		Image:      page.Image,
		IsComplete: pageNumber == models.MaxStoryPages,
	}, nil
}

func (s *storyServiceImpl) GetStory(ctx context.Context, userID, storyID string) (*models.Story, error) {
	return s.storyRepo.GetByID(ctx, storyID, userID)
}

func (s *storyServiceImpl) ListStories(ctx context.Context, userID string) ([]*models.Story, error) {
	return s.storyRepo.ListByUser(ctx, userID)
}

func (s *storyServiceImpl) DeleteStory(ctx context.Context, userID, storyID string) error {
	if err := s.storyRepo.Delete(ctx, storyID, userID); err != nil {
		return err
	}
	s.contexts.Delete(storyID)
	return nil
}

// RateStory validates and stores a rating, then returns the story with its
// recomputed average.
func (s *storyServiceImpl) RateStory(ctx context.Context, userID, storyID string, rating int, comment string) (*models.Story, error) {
	if rating < 1 || rating > 5 {
		return nil, models.ErrInvalidRating
	}
	err := s.storyRepo.AddRating(ctx, storyID, userID, models.Rating{
		UserID:  userID,
		Rating:  rating,
		Comment: comment,
		Date:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return s.storyRepo.GetByID(ctx, storyID, userID)
}

// ShareStory returns the story's share token, minting one on first use.
func (s *storyServiceImpl) ShareStory(ctx context.Context, userID, storyID string) (string, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID, userID)
	if err != nil {
		return "", err
	}
	if story.ShareToken != "" {
		return story.ShareToken, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.storyRepo.SetShareToken(ctx, storyID, userID, token); err != nil {
		return "", err
	}
	s.logger.Info("Story shared", zap.String("storyID", storyID))
	return token, nil
}

func (s *storyServiceImpl) GetSharedStory(ctx context.Context, token string) (*models.Story, error) {
	return s.storyRepo.GetByShareToken(ctx, token)
}

func (s *storyServiceImpl) GetAnalytics(ctx context.Context, userID, storyID string) (*StoryAnalytics, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID, userID)
	if err != nil {
		return nil, err
	}
	return &StoryAnalytics{
		StoryID:       story.ID,
		RatingCount:   len(story.Ratings),
		AverageRating: story.AverageRating,
		Ratings:       story.Ratings,
	}, nil
}

// TextToSpeech narrates the given text with the requested voice.
func (s *storyServiceImpl) TextToSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = "alloy"
	}
	return s.speechClient.Synthesize(ctx, text, voice)
}

// generatePageImage builds the illustration request for a finalized page
// text. Page 1 is always text-to-image; later pages blend against the
// retained page-1 image when it is available.
func (s *storyServiceImpl) generatePageImage(ctx context.Context, sctx *contextstore.StoryContext, pageText string, pageNumber int) ([]byte, *PageGenerationError) {
	promptSet := prompts.ImagePrompts(pageText, sctx.CharacterInfo, sctx.Location)
	req := clients.ImageRequest{
		Prompt:         promptSet.Prompt,
		NegativePrompt: promptSet.NegativePrompt,
		FallbackPrompt: promptSet.FallbackPrompt,
		Seed:           sctx.PageSeed(pageNumber),
	}
	if pageNumber > 1 && len(sctx.InitialCharacterImage) > 0 {
		req.InitImage = sctx.InitialCharacterImage
		req.ImageStrength = imageBlendStrength
	}

	data, err := s.imageClient.GenerateImage(ctx, req)
	if err != nil {
		return nil, &PageGenerationError{Stage: StageImage, Err: err}
	}
	return data, nil
}

// synthesizeContext creates a fresh story context, asking the text model
// for character and location details. Provider failures fall back to fixed
// defaults so a story can always proceed.
func (s *storyServiceImpl) synthesizeContext(ctx context.Context, ageGroup, theme, characterName, characterType string) *contextstore.StoryContext {
	character := s.generateCharacterInfo(ctx, characterName, characterType)
	location := s.generateLocation(ctx, theme)
	return contextstore.NewStoryContext(ageGroup, theme, character, location)
}

// rebuildContext re-synthesizes a context that expired or was lost to a
// restart, restoring page history and the reference image from the
// persisted story.
func (s *storyServiceImpl) rebuildContext(ctx context.Context, story *models.Story, req NextPageRequest) *contextstore.StoryContext {
	ageGroup := story.AgeGroup
	if ageGroup == "" {
		ageGroup = req.AgeGroup
	}
	theme := story.Theme
	if theme == "" {
		theme = req.Theme
	}
	characterName := story.CharacterName
	if characterName == "" {
		characterName = req.CharacterName
	}
	characterType := story.CharacterType
	if characterType == "" {
		characterType = req.CharacterType
	}

	sctx := s.synthesizeContext(ctx, ageGroup, theme, characterName, characterType)
	for _, p := range story.Pages {
		sctx.AddPage(p.Text)
	}
	if first, ok := story.PageByNumber(1); ok && first.Image != "" {
		if data, err := base64.StdEncoding.DecodeString(first.Image); err == nil {
			sctx.InitialCharacterImage = data
		}
	}
	if len(story.Pages) > 0 {
		s.logger.Info("Rebuilt story context from persisted pages",
			zap.String("storyID", story.ID), zap.Int("pages", len(story.Pages)))
	}
	return sctx
}

func (s *storyServiceImpl) generateCharacterInfo(ctx context.Context, name, characterType string) models.CharacterInfo {
	fallback := fallbackCharacter
	fallback.Name = name
	fallback.Species = characterType

	raw, err := s.textClient.GenerateText(ctx, prompts.CharacterPrompt(name, characterType), nil)
	if err != nil {
		s.logger.Warn("Character generation failed, using defaults", zap.Error(err))
		return fallback
	}
	var character models.CharacterInfo
	if !decodeJSONBlock(raw, &character) {
		s.logger.Warn("Character response was not valid JSON, using defaults")
		return fallback
	}
	// Name and species are the user's choice regardless of what the model
	// returned.
	character.Name = name
	character.Species = characterType
	if character.Color == "" {
		character.Color = fallback.Color
	}
	if character.SpecialFeatures == "" {
		character.SpecialFeatures = fallback.SpecialFeatures
	}
	if character.Personality == "" {
		character.Personality = fallback.Personality
	}
	return character
}

func (s *storyServiceImpl) generateLocation(ctx context.Context, theme string) models.Location {
	raw, err := s.textClient.GenerateText(ctx, prompts.LocationPrompt(theme), nil)
	if err != nil {
		s.logger.Warn("Location generation failed, using defaults", zap.Error(err))
		return fallbackLocation
	}
	var location models.Location
	if !decodeJSONBlock(raw, &location) || location.Place == "" {
		s.logger.Warn("Location response was not valid JSON, using defaults")
		return fallbackLocation
	}
	if location.Description == "" {
		location.Description = fallbackLocation.Description
	}
	return location
}

// decodeJSONBlock extracts the first {...} block from a model response and
// unmarshals it. Models often wrap JSON in prose or code fences.
func decodeJSONBlock(raw string, v any) bool {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(raw[start:end+1]), v) == nil
}

func storyTitle(characterName string) string {
	if characterName == "" {
		return "A New Adventure"
	}
	return characterName + "'s Adventure"
}
