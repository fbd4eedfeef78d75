package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quizai/quizai/internal/core"
)

// GetRateLimit returns the stored record for key, or nil when none exists.
func (s *Store) GetRateLimit(ctx context.Context, key string) (*core.RateLimitRecord, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("rate limit key is required")
	}

	row := s.DB.QueryRowContext(ctx, `
		SELECT key, failure_count, lock_count, blocked_until_ms, updated_at
		FROM rate_limits
		WHERE key = ?
	`, key)

	record, err := scanRateLimit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}
	return record, nil
}

// UpdateRateLimit upserts the record stored under key.
func (s *Store) UpdateRateLimit(ctx context.Context, key string, record *core.RateLimitRecord) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("rate limit key is required")
	}
	if record == nil {
		return errors.New("rate limit record is required")
	}

	// Lockouts are stored in milliseconds so the remaining time is not rounded down.
	var blockedUntil sql.NullInt64
	if record.BlockedUntil != nil {
		blockedUntil = sql.NullInt64{Int64: record.BlockedUntil.UTC().UnixMilli(), Valid: true}
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO rate_limits (key, failure_count, lock_count, blocked_until_ms, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			failure_count = excluded.failure_count,
			lock_count = excluded.lock_count,
			blocked_until_ms = excluded.blocked_until_ms,
			updated_at = excluded.updated_at
	`, key, record.FailureCount, record.LockCount, blockedUntil, updatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}

	return nil
}

// DeleteRateLimit removes the record stored under key. Missing records are not an error.
func (s *Store) DeleteRateLimit(ctx context.Context, key string) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM rate_limits WHERE key = ?`, strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("delete rate limit: %w", err)
	}
	return nil
}

func scanRateLimit(row rowScanner) (*core.RateLimitRecord, error) {
	var (
		record       core.RateLimitRecord
		blockedUntil sql.NullInt64
		updatedAt    int64
	)
	if err := row.Scan(&record.Key, &record.FailureCount, &record.LockCount, &blockedUntil, &updatedAt); err != nil {
		return nil, err
	}
	if blockedUntil.Valid {
		value := time.UnixMilli(blockedUntil.Int64).UTC()
		record.BlockedUntil = &value
	}
	record.UpdatedAt = unixTime(updatedAt)
	return &record, nil
}
