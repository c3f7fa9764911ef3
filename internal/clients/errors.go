package clients

import "errors"

// Provider-call failures. Network errors, non-success statuses, and
// empty payloads all map onto these.
var (
	ErrTextGenerationFailed   = errors.New("text generation failed")
	ErrImageGenerationFailed  = errors.New("image generation failed")
	ErrSpeechGenerationFailed = errors.New("speech generation failed")
)
