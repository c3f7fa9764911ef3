package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fable-server/internal/config"
)

// Message is one turn of conversation history supplied to the text model.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// TextSession is a stateful multi-turn conversation with the text model.
// Messages sent through it accumulate into the session history.
type TextSession interface {
	Send(ctx context.Context, message string) (string, error)
}

// TextClient generates text from prompts. An empty or whitespace-only
// response from the provider is a failure, never an empty success.
type TextClient interface {
	// GenerateText runs a single-shot generation seeded with optional
	// prior history.
	GenerateText(ctx context.Context, prompt string, history []Message) (string, error)
	// NewSession creates a multi-turn session primed with history.
	NewSession(history []Message) TextSession
}

// --- OpenAI-compatible implementation ---

// openAITextClient talks to any OpenAI-compatible chat endpoint (the
// Gemini OpenAI compatibility layer included).
type openAITextClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func newOpenAITextClient(cfg *config.Config, logger *zap.Logger) TextClient {
	clientConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
	clientConfig.BaseURL = cfg.AIBaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}

	logger.Info("Text client created",
		zap.String("type", "openai"),
		zap.String("baseURL", cfg.AIBaseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout),
	)

	return &openAITextClient{
		client: openaigo.NewClientWithConfig(clientConfig),
		model:  cfg.AIModel,
		logger: logger.Named("TextClient"),
	}
}

func (c *openAITextClient) GenerateText(ctx context.Context, prompt string, history []Message) (string, error) {
	return c.NewSession(history).Send(ctx, prompt)
}

func (c *openAITextClient) NewSession(history []Message) TextSession {
	messages := make([]openaigo.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		role := openaigo.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openaigo.ChatMessageRoleAssistant
		}
		messages = append(messages, openaigo.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return &openAITextSession{client: c, messages: messages}
}

type openAITextSession struct {
	client   *openAITextClient
	messages []openaigo.ChatCompletionMessage
}

func (s *openAITextSession) Send(ctx context.Context, message string) (string, error) {
	c := s.client

	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: prompt is empty", ErrTextGenerationFailed)
	}

	s.messages = append(s.messages, openaigo.ChatCompletionMessage{
		Role:    openaigo.ChatMessageRoleUser,
		Content: message,
	})

	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:    c.model,
		Messages: s.messages,
	})
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Text provider request failed",
			zap.Duration("duration", duration), zap.Error(err))
		generationRequestsTotal.With(prometheus.Labels{"provider": "text", "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", ErrTextGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.logger.Error("Text provider returned an empty response",
			zap.Duration("duration", duration))
		generationRequestsTotal.With(prometheus.Labels{"provider": "text", "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: empty response", ErrTextGenerationFailed)
	}

	generationRequestsTotal.With(prometheus.Labels{"provider": "text", "status": "success"}).Inc()
	generationRequestDuration.With(prometheus.Labels{"provider": "text"}).Observe(duration.Seconds())

	generated := resp.Choices[0].Message.Content
	s.messages = append(s.messages, openaigo.ChatCompletionMessage{
		Role:    openaigo.ChatMessageRoleAssistant,
		Content: generated,
	})

	c.observeTokenUsage(resp.Usage, message, generated)

	c.logger.Debug("Text generated",
		zap.Duration("duration", duration),
		zap.Int("responseLength", len(generated)),
	)
	return generated, nil
}

// observeTokenUsage records token metrics, estimating counts with tiktoken
// when the provider does not report usage.
func (c *openAITextClient) observeTokenUsage(usage openaigo.Usage, prompt, completion string) {
	promptTokens := usage.PromptTokens
	completionTokens := usage.CompletionTokens

	if usage.TotalTokens == 0 {
		tke, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			// Unknown model for the tokenizer; skip token metrics.
			return
		}
		promptTokens = len(tke.Encode(prompt, nil, nil))
		completionTokens = len(tke.Encode(completion, nil, nil))
	}

	textPromptTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(promptTokens))
	textCompletionTokens.With(prometheus.Labels{"model": c.model}).Observe(float64(completionTokens))
}

// --- Factory ---

// NewTextClient creates the text generation client selected by the
// configuration.
func NewTextClient(cfg *config.Config, logger *zap.Logger) (TextClient, error) {
	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		return newOpenAITextClient(cfg, logger), nil
	case "ollama":
		return newOllamaTextClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI client type: %q", cfg.AIClientType)
	}
}
