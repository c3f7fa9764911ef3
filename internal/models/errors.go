package models

import "errors"

// Authentication and persistence errors shared across layers.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token has expired")
	ErrStoryNotFound      = errors.New("story not found")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
)
