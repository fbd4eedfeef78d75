package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quizai/quizai/internal/core"
)

const accountColumns = `id, email, name, password_hash, verified, verification_code, verification_expires,
	reset_code, reset_expires, ai_usage, ai_limit, created_at, updated_at`

// CreateAccount inserts a new account. Emails are unique.
func (s *Store) CreateAccount(ctx context.Context, acct *core.Account) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if acct == nil || strings.TrimSpace(acct.ID) == "" {
		return errors.New("account id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, acct.ID, acct.Email, acct.Name, acct.PasswordHash, boolToInt(acct.Verified),
		nullString(acct.VerificationCode), nullUnix(acct.VerificationExpires),
		nullString(acct.ResetCode), nullUnix(acct.ResetExpires),
		acct.AIUsage, acct.AILimit, acct.CreatedAt.UTC().Unix(), acct.UpdatedAt.UTC().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s: %w", acct.Email, core.ErrConflict)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount returns the account with the given id.
func (s *Store) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	return s.findAccount(ctx, "id = ?", id)
}

// GetAccountByEmail returns the account registered under email.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*core.Account, error) {
	return s.findAccount(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) findAccount(ctx context.Context, where string, arg string) (*core.Account, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	return acct, nil
}

// UpdateAccount replaces the mutable account fields. The usage counter is
// only changed through IncrementAIUsage.
func (s *Store) UpdateAccount(ctx context.Context, acct *core.Account) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if acct == nil {
		return errors.New("account is required")
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE accounts SET
			name = ?, password_hash = ?, verified = ?,
			verification_code = ?, verification_expires = ?,
			reset_code = ?, reset_expires = ?,
			ai_limit = ?, updated_at = ?
		WHERE id = ?
	`, acct.Name, acct.PasswordHash, boolToInt(acct.Verified),
		nullString(acct.VerificationCode), nullUnix(acct.VerificationExpires),
		nullString(acct.ResetCode), nullUnix(acct.ResetExpires),
		acct.AILimit, acct.UpdatedAt.UTC().Unix(), acct.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireAffected(result, "update account")
}

// IncrementAIUsage adds delta to the account's AI usage counter atomically.
func (s *Store) IncrementAIUsage(ctx context.Context, accountID string, delta int) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE accounts SET ai_usage = ai_usage + ? WHERE id = ?`, delta, accountID)
	if err != nil {
		return fmt.Errorf("increment ai usage: %w", err)
	}
	return requireAffected(result, "increment ai usage")
}

func scanAccount(row rowScanner) (*core.Account, error) {
	var (
		acct                core.Account
		verificationCode    sql.NullString
		verificationExpires sql.NullInt64
		resetCode           sql.NullString
		resetExpires        sql.NullInt64
		createdAt           int64
		updatedAt           int64
	)
	if err := row.Scan(&acct.ID, &acct.Email, &acct.Name, &acct.PasswordHash, &acct.Verified,
		&verificationCode, &verificationExpires, &resetCode, &resetExpires,
		&acct.AIUsage, &acct.AILimit, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	acct.VerificationCode = verificationCode.String
	acct.VerificationExpires = fromNullUnix(verificationExpires)
	acct.ResetCode = resetCode.String
	acct.ResetExpires = fromNullUnix(resetExpires)
	acct.CreatedAt = unixTime(createdAt)
	acct.UpdatedAt = unixTime(updatedAt)
	return &acct, nil
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}
