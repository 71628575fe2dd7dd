package utils

import (
	"github.com/google/uuid"
)

// GenerateRequestID returns a new unique identifier for tracing a request
func GenerateRequestID() string {
	return uuid.New().String()
}

// IsRequestID reports whether s is a well-formed request identifier
func IsRequestID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
