package entity

import "errors"

var (
	// Post errors
	ErrPostNotFound    = errors.New("post not found")
	ErrPostNotEditable = errors.New("post is no longer scheduled")
	ErrContentTooLong  = errors.New("content exceeds 4096 characters")
	ErrTooManyImages   = errors.New("post has more than 10 images")
	ErrEmptyPost       = errors.New("post has no content and no images")
	ErrScheduleInPast  = errors.New("scheduled time is in the past")
	ErrNoDestination   = errors.New("no destination configured")

	// Dispatch errors
	ErrAlreadyClaimed = errors.New("post already claimed by another tick")
	ErrTickInProgress = errors.New("dispatch tick already in progress")
	ErrMissingToken   = errors.New("telegram bot token is not configured")
	ErrMissingSecret  = errors.New("dispatch secret is not configured")

	// General errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized access")
	ErrDatabaseError = errors.New("database error")
)
