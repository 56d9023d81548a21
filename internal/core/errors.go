package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeInvalidMessage  = "invalid_message"
	ErrCodeNotInRoom       = "not_in_room"
	ErrCodeForbidden       = "forbidden"
	ErrCodeMessageNotFound = "message_not_found"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeInternal        = "internal"
)

// ErrHubStopped is returned by hub calls made after Run has returned.
var ErrHubStopped = errors.New("hub stopped")

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
