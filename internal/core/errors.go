package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned for failed logins and bad verification codes.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("already exists")
)

// RateLimitedError is returned while an (action, identifier) pair is locked out.
type RateLimitedError struct {
	Action    string
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many %s attempts, try again in %d seconds", e.Action, e.RetryAfterSeconds())
}

// RetryAfterSeconds rounds the remaining lockout up to whole seconds.
func (e *RateLimitedError) RetryAfterSeconds() int {
	if e == nil || e.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(e.Remaining.Seconds()))
}

// QuotaExceededError is returned when an account has used all of its AI calls.
type QuotaExceededError struct {
	AccountID string
	Usage     int
	Limit     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("ai quota exceeded: %d of %d calls used", e.Usage, e.Limit)
}

// AIServiceError wraps a failed or unusable grading model call.
type AIServiceError struct {
	StatusCode int
	Err        error
}

func (e *AIServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ai service error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ai service error: %v", e.Err)
}

func (e *AIServiceError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err carries a lockout and returns it.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// ValidationError reports request fields that failed validation, keyed by
// JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
