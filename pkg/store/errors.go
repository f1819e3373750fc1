package store

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrMessageNotFound    = errors.New("message not found in session")
	ErrInvalidFeedback    = errors.New("invalid feedback value, must be 0 (dislike) or 1 (like)")
	ErrDuplicateMessageID = errors.New("message id already exists in session")
	ErrSessionEnded       = errors.New("session has ended")
)
