package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound         = errors.New("thread not found")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrStoreUnavailable = errors.New("thread store unavailable")
	ErrConflict         = errors.New("thread history advanced concurrently")
	ErrRateLimited      = errors.New("too many requests for thread")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// GenerationError marks a failure of the model-invocation backend. The whole
// in-flight turn is discarded when one surfaces; the cause is kept for logs,
// transports report only the short string.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return "generation failed"
	}
	return fmt.Sprintf("generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// IsGeneration reports whether err wraps a GenerationError.
func IsGeneration(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
