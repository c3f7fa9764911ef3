package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fable-server/internal/config"
)

// SpeechClient synthesizes narration audio for page text. Zero-length
// audio payloads are failures.
type SpeechClient interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// openAISpeechClient uses the OpenAI text-to-speech endpoint.
type openAISpeechClient struct {
	client *openaigo.Client
	model  openaigo.SpeechModel
	logger *zap.Logger
}

// NewSpeechClient creates the OpenAI TTS client.
func NewSpeechClient(cfg *config.Config, logger *zap.Logger) SpeechClient {
	clientConfig := openaigo.DefaultConfig(cfg.SpeechAPIKey)
	clientConfig.BaseURL = cfg.SpeechBaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.SpeechTimeout}

	return &openAISpeechClient{
		client: openaigo.NewClientWithConfig(clientConfig),
		model:  openaigo.SpeechModel(cfg.SpeechModel),
		logger: logger.Named("SpeechClient"),
	}
}

func (c *openAISpeechClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrSpeechGenerationFailed)
	}
	if voice == "" {
		return nil, fmt.Errorf("%w: voice is required", ErrSpeechGenerationFailed)
	}

	startTime := time.Now()
	resp, err := c.client.CreateSpeech(ctx, openaigo.CreateSpeechRequest{
		Model: c.model,
		Input: text,
		Voice: openaigo.SpeechVoice(voice),
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Speech provider request failed",
			zap.Duration("duration", duration), zap.String("voice", voice), zap.Error(err))
		generationRequestsTotal.With(prometheus.Labels{"provider": "speech", "status": "error"}).Inc()
		return nil, fmt.Errorf("%w: %v", ErrSpeechGenerationFailed, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		generationRequestsTotal.With(prometheus.Labels{"provider": "speech", "status": "error"}).Inc()
		return nil, fmt.Errorf("%w: reading audio: %v", ErrSpeechGenerationFailed, err)
	}
	if len(audio) == 0 {
		c.logger.Error("Speech provider returned empty audio", zap.String("voice", voice))
		generationRequestsTotal.With(prometheus.Labels{"provider": "speech", "status": "error_empty_response"}).Inc()
		return nil, fmt.Errorf("%w: empty audio data", ErrSpeechGenerationFailed)
	}

	generationRequestsTotal.With(prometheus.Labels{"provider": "speech", "status": "success"}).Inc()
	generationRequestDuration.With(prometheus.Labels{"provider": "speech"}).Observe(duration.Seconds())

	c.logger.Debug("Speech synthesized",
		zap.Duration("duration", duration),
		zap.Int("sizeBytes", len(audio)),
		zap.String("voice", voice),
	)
	return audio, nil
}
