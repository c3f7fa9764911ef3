package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"fable-server/internal/config"
)

// ollamaTextClient generates text against a local Ollama server.
type ollamaTextClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOllamaTextClient(cfg *config.Config, logger *zap.Logger) (TextClient, error) {
	httpClient := &http.Client{Timeout: cfg.AITimeout}

	// api.NewClient expects the server root, without the /v1 suffix used
	// by OpenAI-compatible endpoints.
	baseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Ollama base URL %q: %w", baseURL, err)
	}

	logger.Info("Text client created",
		zap.String("type", "ollama"),
		zap.String("baseURL", baseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout),
	)

	return &ollamaTextClient{
		client:  api.NewClient(parsedURL, httpClient),
		model:   cfg.AIModel,
		timeout: cfg.AITimeout,
		logger:  logger.Named("TextClient"),
	}, nil
}

func (c *ollamaTextClient) GenerateText(ctx context.Context, prompt string, history []Message) (string, error) {
	return c.NewSession(history).Send(ctx, prompt)
}

func (c *ollamaTextClient) NewSession(history []Message) TextSession {
	messages := make([]api.Message, 0, len(history)+1)
	for _, m := range history {
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		messages = append(messages, api.Message{Role: role, Content: m.Content})
	}
	return &ollamaTextSession{client: c, messages: messages}
}

type ollamaTextSession struct {
	client   *ollamaTextClient
	messages []api.Message
}

func (s *ollamaTextSession) Send(ctx context.Context, message string) (string, error) {
	c := s.client

	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: prompt is empty", ErrTextGenerationFailed)
	}

	s.messages = append(s.messages, api.Message{Role: "user", Content: message})

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: s.messages,
		Stream:   &stream,
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Ollama request failed", zap.Duration("duration", duration), zap.Error(err))
		generationRequestsTotal.With(prometheus.Labels{"provider": "text", "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", ErrTextGenerationFailed, err)
	}

	if strings.TrimSpace(resp.Message.Content) == "" {
		c.logger.Error("Ollama returned an empty response", zap.Duration("duration", duration))
		generationRequestsTotal.With(prometheus.Labels{"provider": "text", "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: empty response", ErrTextGenerationFailed)
	}

	generationRequestsTotal.With(prometheus.Labels{"provider": "text", "status": "success"}).Inc()
	generationRequestDuration.With(prometheus.Labels{"provider": "text"}).Observe(duration.Seconds())

	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		textPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.PromptEvalCount))
		textCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(resp.EvalCount))
	}

	generated := resp.Message.Content
	s.messages = append(s.messages, api.Message{Role: "assistant", Content: generated})
	return generated, nil
}
