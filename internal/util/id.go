package util

import "github.com/google/uuid"

// NewID returns a random identifier for domain records.
func NewID() string {
	return uuid.NewString()
}
