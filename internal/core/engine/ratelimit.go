package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/quizai/quizai/internal/core"
)

// Action names a throttled operation. Each action keeps its own counters.
type Action string

const (
	ActionLogin         Action = "login"
	ActionVerify        Action = "verify"
	ActionPasswordReset Action = "password-reset"
)

// Valid reports whether the action is one of the known throttled operations.
func (a Action) Valid() bool {
	switch a {
	case ActionLogin, ActionVerify, ActionPasswordReset:
		return true
	default:
		return false
	}
}

const (
	// DefaultFailureThreshold is the number of failures that trips a lockout.
	DefaultFailureThreshold = 3
	// DefaultBaseLockDuration is the first lockout; each later one is three times longer.
	DefaultBaseLockDuration = 100 * time.Second

	lockGrowthFactor = 3
	maxLockDuration  = time.Duration(math.MaxInt64)
)

// RateLimitStore persists rate limit records by key.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, key string) (*core.RateLimitRecord, error)
	UpdateRateLimit(ctx context.Context, key string, record *core.RateLimitRecord) error
	DeleteRateLimit(ctx context.Context, key string) error
}

// Limiter throttles repeated failures with exponentially growing lockouts.
// Records are read, modified, and written back without locking; concurrent
// failures for the same key may lose an increment, which only delays a lockout.
type Limiter struct {
	Store     RateLimitStore
	Threshold int
	BaseLock  time.Duration
	Clock     func() time.Time
	// OnLockout is called after a failure trips a lockout.
	OnLockout func(action Action, identifier string, lock time.Duration)
}

// Key builds the storage key for an (action, identifier) pair.
func Key(action Action, identifier string) string {
	return string(action) + ":" + NormalizeIdentifier(identifier)
}

// NormalizeIdentifier trims and lower-cases identifiers so that the same
// email address always maps to the same record.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// LockDuration returns the lockout applied when a record with lockCount prior
// lockouts trips again: base x 3^lockCount, saturating instead of overflowing.
func LockDuration(base time.Duration, lockCount int) time.Duration {
	if base <= 0 {
		base = DefaultBaseLockDuration
	}
	d := base
	for i := 0; i < lockCount; i++ {
		if d > maxLockDuration/lockGrowthFactor {
			return maxLockDuration
		}
		d *= lockGrowthFactor
	}
	return d
}

// Check fails with *core.RateLimitedError while the pair is locked out.
func (l *Limiter) Check(ctx context.Context, identifier string, action Action) error {
	if l == nil || l.Store == nil {
		return nil
	}

	record, err := l.Store.GetRateLimit(ctx, Key(action, identifier))
	if err != nil {
		return fmt.Errorf("load rate limit: %w", err)
	}

	now := l.now()
	if !record.Blocked(now) {
		return nil
	}
	return &core.RateLimitedError{
		Action:    string(action),
		Remaining: record.BlockedUntil.Sub(now),
	}
}

// RecordFailure counts a failed attempt and starts a lockout at the threshold.
func (l *Limiter) RecordFailure(ctx context.Context, identifier string, action Action) error {
	if l == nil || l.Store == nil {
		return nil
	}

	key := Key(action, identifier)
	record, err := l.Store.GetRateLimit(ctx, key)
	if err != nil {
		return fmt.Errorf("load rate limit: %w", err)
	}
	if record == nil {
		record = &core.RateLimitRecord{Key: key}
	}

	now := l.now()
	record.FailureCount++
	record.UpdatedAt = now

	var lock time.Duration
	if record.FailureCount >= l.threshold() {
		lock = LockDuration(l.BaseLock, record.LockCount)
		until := now.Add(lock)
		record.BlockedUntil = &until
		record.LockCount++
		record.FailureCount = 0
	}

	if err := l.Store.UpdateRateLimit(ctx, key, record); err != nil {
		return fmt.Errorf("save rate limit: %w", err)
	}
	if lock > 0 && l.OnLockout != nil {
		l.OnLockout(action, NormalizeIdentifier(identifier), lock)
	}
	return nil
}

// Reset forgets all failures and lockouts for the pair.
func (l *Limiter) Reset(ctx context.Context, identifier string, action Action) error {
	if l == nil || l.Store == nil {
		return nil
	}
	if err := l.Store.DeleteRateLimit(ctx, Key(action, identifier)); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

func (l *Limiter) threshold() int {
	if l == nil || l.Threshold <= 0 {
		return DefaultFailureThreshold
	}
	return l.Threshold
}

func (l *Limiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}
