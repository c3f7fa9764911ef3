package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"debug"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	ServerPort  string `envconfig:"SERVER_PORT" default:"3001"`

	// MongoDB
	MongoURI      string `envconfig:"MONGODB_URI" required:"true"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"fable"`

	// JWT
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"JWT_TOKEN_TTL" default:"24h"`

	// Text generation (OpenAI-compatible endpoint or Ollama)
	AIClientType string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIAPIKey     string        `envconfig:"AI_API_KEY"`
	AIBaseURL    string        `envconfig:"AI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai"`
	AIModel      string        `envconfig:"AI_MODEL" default:"gemini-1.5-flash"`
	AITimeout    time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`

	// Image generation (Stability AI)
	StabilityAPIKey  string        `envconfig:"STABILITY_API_KEY" required:"true"`
	StabilityBaseURL string        `envconfig:"STABILITY_BASE_URL" default:"https://api.stability.ai"`
	ImageTimeout     time.Duration `envconfig:"IMAGE_TIMEOUT" default:"90s"`
	// Requests per second allowed towards the Stability API.
	ImageRateLimit float64 `envconfig:"IMAGE_RATE_LIMIT" default:"1"`

	// Speech synthesis (OpenAI TTS)
	SpeechAPIKey  string        `envconfig:"OPENAI_API_KEY"`
	SpeechBaseURL string        `envconfig:"SPEECH_BASE_URL" default:"https://api.openai.com/v1"`
	SpeechModel   string        `envconfig:"SPEECH_MODEL" default:"tts-1"`
	SpeechTimeout time.Duration `envconfig:"SPEECH_TIMEOUT" default:"60s"`

	// Story context cache
	ContextTTL             time.Duration `envconfig:"CONTEXT_TTL" default:"2h"`
	ContextCleanupInterval time.Duration `envconfig:"CONTEXT_CLEANUP_INTERVAL" default:"10m"`

	// Rate limiting for generation endpoints (requests per minute per IP)
	GenerationRateLimit uint `envconfig:"GENERATION_RATE_LIMIT" default:"10"`

	// CORS
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// GetAllowedOrigins splits the CORSAllowedOrigins string into a slice.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// LoadConfig loads configuration from environment variables,
// optionally reading a .env file first.
func LoadConfig(envFilePath string) (*Config, error) {
	if _, err := os.Stat(envFilePath); err == nil {
		if err := godotenv.Load(envFilePath); err != nil {
			log.Printf("Warning: Could not load %s file: %v", envFilePath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Warning: Error checking %s file: %v", envFilePath, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if cfg.SpeechAPIKey == "" {
		// The speech client reuses the text key when a dedicated one is not set.
		cfg.SpeechAPIKey = cfg.AIAPIKey
	}

	return &cfg, nil
}
