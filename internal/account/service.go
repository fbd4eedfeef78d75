package account

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizai/quizai/internal/core"
	"github.com/quizai/quizai/internal/core/engine"
	"github.com/quizai/quizai/internal/notify"
)

const (
	// DefaultVerificationTTL is how long emailed codes stay valid.
	DefaultVerificationTTL = 15 * time.Minute
	// DefaultAILimit is the grading quota given to new accounts.
	DefaultAILimit = 5

	codeDigits = 6
)

// Store is the account persistence the service needs.
type Store interface {
	CreateAccount(ctx context.Context, acct *core.Account) error
	GetAccount(ctx context.Context, id string) (*core.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*core.Account, error)
	UpdateAccount(ctx context.Context, acct *core.Account) error
}

// CodeSender delivers verification and reset codes. Implementations must not
// block on delivery.
type CodeSender interface {
	SendCode(ctx context.Context, kind notify.Kind, to mail.Address, code string, ttl time.Duration)
}

// Service implements signup, login, email verification and password reset.
// Login, verification and reset attempts are throttled per email address.
type Service struct {
	Store           Store
	Limiter         *engine.Limiter
	Tokens          *TokenIssuer
	Codes           CodeSender
	Logger          *logging.Logger
	Clock           func() time.Time
	VerificationTTL time.Duration
	DefaultAILimit  int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Signup creates an unverified account and emails a verification code.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AccountView, error) {
	if err := core.Validate(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost())
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := newCode()
	if err != nil {
		return nil, err
	}

	now := s.now()
	expires := now.Add(s.verificationTTL())
	acct := &core.Account{
		ID:                  uuid.NewString(),
		Email:               normalizeEmail(req.Email),
		Name:                strings.TrimSpace(req.Name),
		PasswordHash:        string(hash),
		VerificationCode:    code,
		VerificationExpires: &expires,
		AILimit:             s.aiLimit(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.Store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}

	s.logInfo("Account created", zap.String("account_id", acct.ID))
	s.sendCode(ctx, notify.KindVerification, acct, code)
	return View(acct), nil
}

// Login checks credentials and issues a session token. Unknown emails and
// wrong passwords both count as failures and return core.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := core.Validate(req); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)
	if err := s.Limiter.Check(ctx, email, engine.ActionLogin); err != nil {
		return nil, err
	}

	acct, err := s.Store.GetAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	if acct == nil || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)) != nil {
		return nil, s.fail(ctx, email, engine.ActionLogin)
	}

	if err := s.Limiter.Reset(ctx, email, engine.ActionLogin); err != nil {
		s.logWarn("Failed to reset login limiter", zap.Error(err))
	}

	token, expires, err := s.Tokens.Issue(acct)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expires.Unix(), Account: View(acct)}, nil
}

// Verify marks the account verified when the code matches and has not
// expired. Verifying an already verified account succeeds.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*AccountView, error) {
	if err := core.Validate(req); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)
	if err := s.Limiter.Check(ctx, email, engine.ActionVerify); err != nil {
		return nil, err
	}

	acct, err := s.Store.GetAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	if acct == nil {
		return nil, s.fail(ctx, email, engine.ActionVerify)
	}
	if acct.Verified {
		return View(acct), nil
	}
	if !codeMatches(acct.VerificationCode, acct.VerificationExpires, req.Code, s.now()) {
		return nil, s.fail(ctx, email, engine.ActionVerify)
	}

	acct.Verified = true
	acct.VerificationCode = ""
	acct.VerificationExpires = nil
	acct.UpdatedAt = s.now()
	if err := s.Store.UpdateAccount(ctx, acct); err != nil {
		return nil, err
	}
	if err := s.Limiter.Reset(ctx, email, engine.ActionVerify); err != nil {
		s.logWarn("Failed to reset verify limiter", zap.Error(err))
	}
	return View(acct), nil
}

// RequestPasswordReset emails a reset code. Unknown emails succeed silently
// so the endpoint does not reveal which addresses are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	if err := core.Validate(req); err != nil {
		return err
	}
	email := normalizeEmail(req.Email)
	if err := s.Limiter.Check(ctx, email, engine.ActionPasswordReset); err != nil {
		return err
	}

	acct, err := s.Store.GetAccountByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	code, err := newCode()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.verificationTTL())
	acct.ResetCode = code
	acct.ResetExpires = &expires
	acct.UpdatedAt = s.now()
	if err := s.Store.UpdateAccount(ctx, acct); err != nil {
		return err
	}

	s.sendCode(ctx, notify.KindPasswordReset, acct, code)
	return nil
}

// ConfirmPasswordReset replaces the password when the reset code matches.
// A successful reset also verifies the email and clears login lockouts.
func (s *Service) ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirmRequest) error {
	if err := core.Validate(req); err != nil {
		return err
	}
	email := normalizeEmail(req.Email)
	if err := s.Limiter.Check(ctx, email, engine.ActionPasswordReset); err != nil {
		return err
	}

	acct, err := s.Store.GetAccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if acct == nil || !codeMatches(acct.ResetCode, acct.ResetExpires, req.Code, s.now()) {
		return s.fail(ctx, email, engine.ActionPasswordReset)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost())
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acct.PasswordHash = string(hash)
	acct.ResetCode = ""
	acct.ResetExpires = nil
	acct.Verified = true
	acct.VerificationCode = ""
	acct.VerificationExpires = nil
	acct.UpdatedAt = s.now()
	if err := s.Store.UpdateAccount(ctx, acct); err != nil {
		return err
	}

	for _, action := range []engine.Action{engine.ActionPasswordReset, engine.ActionLogin} {
		if err := s.Limiter.Reset(ctx, email, action); err != nil {
			s.logWarn("Failed to reset limiter", zap.String("action", string(action)), zap.Error(err))
		}
	}
	return nil
}

// Me returns the signed-in account.
func (s *Service) Me(ctx context.Context, accountID string) (*AccountView, error) {
	acct, err := s.Store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return View(acct), nil
}

// View projects an account for API responses.
func View(acct *core.Account) *AccountView {
	if acct == nil {
		return nil
	}
	return &AccountView{
		ID:             acct.ID,
		Email:          acct.Email,
		Name:           acct.Name,
		Verified:       acct.Verified,
		AIUsage:        acct.AIUsage,
		AILimit:        acct.AILimit,
		QuotaRemaining: acct.QuotaRemaining(),
	}
}

// fail records a failed attempt and returns the error shown to the caller.
// If the failure trips a lockout, the caller still sees invalid credentials;
// the lockout applies from the next attempt. A storage failure while
// recording is returned as an operational error.
func (s *Service) fail(ctx context.Context, email string, action engine.Action) error {
	if err := s.Limiter.RecordFailure(ctx, email, action); err != nil {
		s.logError("Failed to record rate limit failure", zap.String("action", string(action)), zap.Error(err))
		return fmt.Errorf("record %s failure: %w", action, err)
	}
	return core.ErrInvalidCredentials
}

func (s *Service) sendCode(ctx context.Context, kind notify.Kind, acct *core.Account, code string) {
	if s.Codes == nil {
		return
	}
	s.Codes.SendCode(ctx, kind, mail.Address{Name: acct.Name, Address: acct.Email}, code, s.verificationTTL())
}

func codeMatches(stored string, expires *time.Time, given string, now time.Time) bool {
	if stored == "" || expires == nil || !now.Before(*expires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(given))) == 1
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func normalizeEmail(email string) string {
	return engine.NormalizeIdentifier(email)
}

func (s *Service) bcryptCost() int {
	if s.BcryptCost > 0 {
		return s.BcryptCost
	}
	return bcrypt.DefaultCost
}

func (s *Service) verificationTTL() time.Duration {
	if s.VerificationTTL > 0 {
		return s.VerificationTTL
	}
	return DefaultVerificationTTL
}

func (s *Service) aiLimit() int {
	if s.DefaultAILimit > 0 {
		return s.DefaultAILimit
	}
	return DefaultAILimit
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logInfo(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Info(msg, fields...)
	}
}

func (s *Service) logWarn(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Warn(msg, fields...)
	}
}

func (s *Service) logError(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Error(msg, fields...)
	}
}
