package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fable-server/internal/middleware"
	"fable-server/internal/service"
)

func (h *Handler) startStory(c *gin.Context) {
	var req startStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request data: " + err.Error()})
		return
	}

	result, err := h.storyService.StartStory(c.Request.Context(), middleware.UserID(c), service.StartStoryRequest{
		AgeGroup:      req.AgeGroup,
		Theme:         req.Theme,
		CharacterName: req.CharacterName,
		CharacterType: req.CharacterType,
		Setting:       req.Setting,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) nextPage(c *gin.Context) {
	var req nextPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request data: " + err.Error()})
		return
	}

	result, err := h.storyService.GenerateNextPage(c.Request.Context(), middleware.UserID(c), service.NextPageRequest{
		StoryID:       req.StoryID,
		CurrentPage:   req.CurrentPage,
		AgeGroup:      req.AgeGroup,
		Theme:         req.Theme,
		CharacterName: req.CharacterName,
		CharacterType: req.CharacterType,
		Setting:       req.Setting,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listStories(c *gin.Context) {
	stories, err := h.storyService.ListStories(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

func (h *Handler) getStory(c *gin.Context) {
	story, err := h.storyService.GetStory(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) deleteStory(c *gin.Context) {
	if err := h.storyService.DeleteStory(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	h.logger.Info("Story deleted via API", zap.String("storyID", c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) shareStory(c *gin.Context) {
	token, err := h.storyService.ShareStory(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"share_token": token})
}

// sharedStory is the only unauthenticated story read: whoever holds the
// token can view the story.
func (h *Handler) sharedStory(c *gin.Context) {
	story, err := h.storyService.GetSharedStory(c.Request.Context(), c.Param("token"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) rateStory(c *gin.Context) {
	var req rateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request data: " + err.Error()})
		return
	}

	story, err := h.storyService.RateStory(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Rating, req.Comment)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"average_rating": story.AverageRating,
		"rating_count":   len(story.Ratings),
	})
}

func (h *Handler) storyAnalytics(c *gin.Context) {
	analytics, err := h.storyService.GetAnalytics(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}
