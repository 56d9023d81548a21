package utils

import "github.com/google/uuid"

// NewID returns a random identifier for clients and sessions.
func NewID() string {
	return uuid.NewString()
}
