// Package handler exposes the HTTP API over gin.
package handler

import (
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fable-server/internal/config"
	"fable-server/internal/middleware"
	"fable-server/internal/service"
)

// Handler holds the services behind the HTTP endpoints.
type Handler struct {
	authService  service.AuthService
	storyService service.StoryService
	cfg          *config.Config
	logger       *zap.Logger
}

// New creates a Handler.
func New(authService service.AuthService, storyService service.StoryService, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		authService:  authService,
		storyService: storyService,
		cfg:          cfg,
		logger:       logger.Named("Handler"),
	}
}

// RegisterRoutes attaches all API routes to the router. Generation and
// narration endpoints sit behind a per-client rate limit because each call
// fans out to paid providers.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	authRequired := middleware.Auth(h.authService, h.logger)
	generationLimit := h.generationRateLimiter()

	api := router.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.GET("/validate-token", authRequired, h.validateToken)

		api.POST("/start_story", authRequired, generationLimit, h.startStory)
		api.POST("/next_page", authRequired, generationLimit, h.nextPage)

		api.GET("/stories", authRequired, h.listStories)
		api.GET("/stories/:id", authRequired, h.getStory)
		api.DELETE("/stories/:id", authRequired, h.deleteStory)
		api.POST("/stories/:id/share", authRequired, h.shareStory)
		api.POST("/stories/:id/rate", authRequired, h.rateStory)
		api.GET("/stories/:id/analytics", authRequired, h.storyAnalytics)
		api.GET("/shared/:token", h.sharedStory)

		api.POST("/preview_voice", authRequired, generationLimit, h.previewVoice)
		api.POST("/text_to_speech", authRequired, generationLimit, h.textToSpeech)
	}
}

func (h *Handler) generationRateLimiter() gin.HandlerFunc {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: h.cfg.GenerationRateLimit,
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		KeyFunc: func(c *gin.Context) string {
			// Authenticated requests are limited per user, the rest per IP.
			if userID := middleware.UserID(c); userID != "" {
				return userID
			}
			return c.ClientIP()
		},
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many generation requests",
				"retry_after": time.Until(info.ResetTime).Seconds(),
			})
		},
	})
}
