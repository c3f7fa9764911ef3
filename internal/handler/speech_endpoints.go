package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// voicePreviewText is the short sample narrated by preview_voice.
const voicePreviewText = "Hello! This is how I will read your story!"

func (h *Handler) textToSpeech(c *gin.Context) {
	var req speechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request data: " + err.Error()})
		return
	}

	audio, err := h.storyService.TextToSpeech(c.Request.Context(), req.Text, req.Voice)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (h *Handler) previewVoice(c *gin.Context) {
	var req previewVoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request data: " + err.Error()})
		return
	}

	audio, err := h.storyService.TextToSpeech(c.Request.Context(), voicePreviewText, req.Voice)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}
