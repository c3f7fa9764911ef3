package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fable-server/internal/config"
)

// ImageRequest describes one illustration request. A nil InitImage selects
// text-to-image mode; otherwise image-to-image blends the prompt with the
// reference at ImageStrength.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	// FallbackPrompt restates the character's fixed visual traits. It is
	// used for the text-to-image retry when image-to-image fails.
	FallbackPrompt string
	InitImage      []byte
	ImageStrength  float64
	// Seed is passed to the provider so a page's illustration is
	// reproducible for a fixed story.
	Seed int64
}

// ImageClient generates illustrations. Zero-length image payloads are
// failures, never empty successes.
type ImageClient interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// stabilityImageClient calls the Stability AI stable-image endpoint.
type stabilityImageClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// NewImageClient creates a Stability AI image client with a bounded request
// timeout and an outbound rate limit.
func NewImageClient(cfg *config.Config, logger *zap.Logger) ImageClient {
	return &stabilityImageClient{
		httpClient: &http.Client{Timeout: cfg.ImageTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.ImageRateLimit), 1),
		baseURL:    cfg.StabilityBaseURL,
		apiKey:     cfg.StabilityAPIKey,
		logger:     logger.Named("ImageClient"),
	}
}

// GenerateImage runs the requested generation. Image-to-image failures fall
// back to a text-to-image call with the reinforced prompt; only a failure
// of that fallback is reported to the caller.
func (c *stabilityImageClient) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	if len(req.InitImage) == 0 {
		return c.callAPI(ctx, req.Prompt, req.NegativePrompt, nil, 0, req.Seed)
	}

	data, err := c.callAPI(ctx, req.Prompt, req.NegativePrompt, req.InitImage, req.ImageStrength, req.Seed)
	if err == nil {
		return data, nil
	}

	c.logger.Warn("Image-to-image generation failed, falling back to text-to-image",
		zap.Error(err))
	generationRequestsTotal.With(prometheus.Labels{"provider": "image", "status": "fallback"}).Inc()

	fallbackPrompt := req.FallbackPrompt
	if fallbackPrompt == "" {
		fallbackPrompt = req.Prompt
	}
	data, fallbackErr := c.callAPI(ctx, fallbackPrompt, req.NegativePrompt, nil, 0, req.Seed)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: fallback after image-to-image failure: %v", ErrImageGenerationFailed, fallbackErr)
	}
	return data, nil
}

func (c *stabilityImageClient) callAPI(ctx context.Context, prompt, negativePrompt string, initImage []byte, imageStrength float64, seed int64) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrImageGenerationFailed, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"prompt":          prompt,
		"negative_prompt": negativePrompt,
		"output_format":   "jpeg",
		"seed":            strconv.FormatInt(seed, 10),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("%w: building request: %v", ErrImageGenerationFailed, err)
		}
	}
	if len(initImage) > 0 {
		part, err := writer.CreateFormFile("init_image", "init_image.jpg")
		if err != nil {
			return nil, fmt.Errorf("%w: building request: %v", ErrImageGenerationFailed, err)
		}
		if _, err := part.Write(initImage); err != nil {
			return nil, fmt.Errorf("%w: building request: %v", ErrImageGenerationFailed, err)
		}
		if err := writer.WriteField("image_strength", strconv.FormatFloat(imageStrength, 'f', 2, 64)); err != nil {
			return nil, fmt.Errorf("%w: building request: %v", ErrImageGenerationFailed, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrImageGenerationFailed, err)
	}

	endpointURL := c.baseURL + "/v2beta/stable-image/generate/sd3"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrImageGenerationFailed, err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "image/*")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Error("Stability API request failed",
			zap.Duration("duration", duration), zap.Error(err))
		generationRequestsTotal.With(prometheus.Labels{"provider": "image", "status": "error"}).Inc()
		return nil, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Stability API returned non-OK status",
			zap.Int("statusCode", resp.StatusCode),
			zap.ByteString("responseBody", data),
		)
		generationRequestsTotal.With(prometheus.Labels{"provider": "image", "status": "error"}).Inc()
		return nil, fmt.Errorf("%w: API returned status %d: %s", ErrImageGenerationFailed, resp.StatusCode, string(data))
	}
	if readErr != nil {
		generationRequestsTotal.With(prometheus.Labels{"provider": "image", "status": "error"}).Inc()
		return nil, fmt.Errorf("%w: reading response: %v", ErrImageGenerationFailed, readErr)
	}
	if len(data) == 0 {
		c.logger.Error("Stability API returned empty image data")
		generationRequestsTotal.With(prometheus.Labels{"provider": "image", "status": "error_empty_response"}).Inc()
		return nil, fmt.Errorf("%w: empty image data", ErrImageGenerationFailed)
	}

	generationRequestsTotal.With(prometheus.Labels{"provider": "image", "status": "success"}).Inc()
	generationRequestDuration.With(prometheus.Labels{"provider": "image"}).Observe(duration.Seconds())

	c.logger.Debug("Image generated",
		zap.Duration("duration", duration),
		zap.Int("sizeBytes", len(data)),
		zap.Bool("imageToImage", len(initImage) > 0),
	)
	return data, nil
}
