package service

import (
	"errors"
	"fmt"
)

var (
	// ErrPageLimitExceeded is returned when a generation request targets a
	// page beyond the fixed story ceiling. No provider call is made.
	ErrPageLimitExceeded = errors.New("story has reached the maximum page count")

	// ErrContextMissing is returned when an operation needs an active story
	// context that cannot be found or re-synthesized.
	ErrContextMissing = errors.New("story context not found")
)

// Pipeline stages reported by PageGenerationError.
const (
	StageText  = "text"
	StageImage = "image"
)

// PageGenerationError reports which stage of the page pipeline failed.
// Partial progress from the failed attempt is discarded; a retry restarts
// the page from prompt construction.
type PageGenerationError struct {
	Stage string
	Err   error
}

func (e *PageGenerationError) Error() string {
	return fmt.Sprintf("page generation failed at %s stage: %v", e.Stage, e.Err)
}

func (e *PageGenerationError) Unwrap() error {
	return e.Err
}
