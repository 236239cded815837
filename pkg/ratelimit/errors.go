package ratelimit

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidPolicy     = errors.New("invalid rate limit policy")
	ErrUnknownClass      = errors.New("unknown rate limit class")
)

// LimitError is returned for a rejected admission.
type LimitError struct {
	Class      string
	RetryAfter int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s), retry after %ds", e.Class, e.RetryAfter)
}

func (e *LimitError) Unwrap() error {
	return ErrRateLimitExceeded
}
