package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fable-server/internal/models"
	"fable-server/internal/service"
)

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(c *gin.Context, err error) {
	var pageErr *service.PageGenerationError

	switch {
	case errors.Is(err, models.ErrUserAlreadyExists):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "username already taken"})
	case errors.Is(err, models.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
	case errors.Is(err, models.ErrStoryNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "story not found"})
	case errors.Is(err, models.ErrInvalidRating):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
	case errors.Is(err, service.ErrPageLimitExceeded):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "story already has the maximum number of pages"})
	case errors.As(err, &pageErr):
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error": "page generation failed",
			"stage": pageErr.Stage,
		})
	default:
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
