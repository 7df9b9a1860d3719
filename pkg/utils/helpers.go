package utils

import (
	"os"
	"strconv"

	"github.com/google/uuid"
)

// DefaultSemaphoreLimit bounds concurrent work when no explicit limit is
// configured.
const DefaultSemaphoreLimit = 20

// GetSemaphoreLimit returns the concurrency limit from the
// SEMAPHORE_LIMIT environment variable, falling back to the default.
func GetSemaphoreLimit() int {
	if v := os.Getenv("SEMAPHORE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSemaphoreLimit
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.New().String()
}
