package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fable-server/internal/config"
)

func speechTestConfig(baseURL string) *config.Config {
	return &config.Config{
		SpeechAPIKey:  "test-key",
		SpeechBaseURL: baseURL + "/v1",
		SpeechModel:   "tts-1",
		SpeechTimeout: 5 * time.Second,
	}
}

func TestSynthesizeSuccess(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	client := NewSpeechClient(speechTestConfig(server.URL), zap.NewNop())
	audio, err := client.Synthesize(context.Background(), "Luna jumps!", "nova")

	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
	assert.Equal(t, "tts-1", captured["model"])
	assert.Equal(t, "Luna jumps!", captured["input"])
	assert.Equal(t, "nova", captured["voice"])
}

func TestSynthesizeEmptyAudioIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewSpeechClient(speechTestConfig(server.URL), zap.NewNop())
	_, err := client.Synthesize(context.Background(), "Luna jumps!", "nova")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpeechGenerationFailed)
}

func TestSynthesizeValidatesInput(t *testing.T) {
	client := NewSpeechClient(speechTestConfig("http://localhost:0"), zap.NewNop())

	_, err := client.Synthesize(context.Background(), "  ", "nova")
	assert.ErrorIs(t, err, ErrSpeechGenerationFailed)

	_, err = client.Synthesize(context.Background(), "Luna jumps!", "")
	assert.ErrorIs(t, err, ErrSpeechGenerationFailed)
}
