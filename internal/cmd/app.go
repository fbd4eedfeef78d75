package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/quizai/quizai/internal/account"
	"github.com/quizai/quizai/internal/ailink"
	"github.com/quizai/quizai/internal/classroom"
	"github.com/quizai/quizai/internal/config"
	"github.com/quizai/quizai/internal/core/engine"
	"github.com/quizai/quizai/internal/core/store"
	"github.com/quizai/quizai/internal/metrics"
	"github.com/quizai/quizai/internal/notify"
	"github.com/quizai/quizai/internal/server/handlers"
	servermw "github.com/quizai/quizai/internal/server/middleware"
)

// application holds the services shared by serve and the operator commands.
type application struct {
	Backend    store.Backend
	Limiter    *engine.Limiter
	Grader     *engine.BatchGrader
	Dispatcher *notify.Dispatcher
	Tokens     *account.TokenIssuer
	Accounts   *account.Service
	Rooms      *classroom.Service
}

// buildGrading opens the store and wires the grading pipeline. Account
// services are left nil; see buildApplication.
func buildGrading(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*application, error) {
	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ai, err := ailink.NewGrader(cfg.AILink, logger)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("configure grading model: %w", err)
	}

	sender, err := notify.NewSender(cfg.Notify)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("configure notifications: %w", err)
	}

	dispatcher := &notify.Dispatcher{
		Sender:        sender,
		Logger:        logger,
		PublicURL:     cfg.Server.PublicURL,
		SubjectPrefix: cfg.Notify.SubjectPrefix,
		Timeout:       cfg.Notify.Timeout,
	}

	grader := &engine.BatchGrader{
		Store:               backend,
		AI:                  ai,
		Notifier:            dispatcher,
		Logger:              logger,
		ContextLimit:        cfg.AILink.ContextLimit,
		SaveWorkers:         cfg.Grading.SaveWorkers,
		FeedbackPlaceholder: cfg.Grading.FeedbackPlaceholder,
	}

	return &application{
		Backend:    backend,
		Limiter:    newLimiter(backend, cfg.Security),
		Grader:     grader,
		Dispatcher: dispatcher,
	}, nil
}

// buildApplication wires every service the HTTP API needs.
func buildApplication(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*application, error) {
	tokens, err := account.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	app, err := buildGrading(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app.Tokens = tokens
	app.Accounts = &account.Service{
		Store:           app.Backend,
		Limiter:         app.Limiter,
		Tokens:          tokens,
		Codes:           app.Dispatcher,
		Logger:          logger,
		VerificationTTL: cfg.Auth.VerificationTTL,
		DefaultAILimit:  cfg.Auth.DefaultAILimit,
	}
	app.Rooms = &classroom.Service{
		Store:  app.Backend,
		Grader: app.Grader,
		Logger: logger,
	}
	return app, nil
}

func newLimiter(backend engine.RateLimitStore, cfg config.SecurityConfig) *engine.Limiter {
	return &engine.Limiter{
		Store:     backend,
		Threshold: cfg.FailureThreshold,
		BaseLock:  cfg.BaseLockDuration,
		OnLockout: func(action engine.Action, _ string, lock time.Duration) {
			metrics.RecordLockout(string(action), lock)
		},
	}
}

// API returns the HTTP handlers backed by the application services.
func (a *application) API() *handlers.API {
	return &handlers.API{Accounts: a.Accounts, Rooms: a.Rooms, Grader: a.Grader}
}

// TokenVerifier resolves bearer tokens to account ids.
func (a *application) TokenVerifier() servermw.TokenVerifier {
	return tokenVerifier(a.Tokens)
}

func tokenVerifier(tokens *account.TokenIssuer) servermw.TokenVerifier {
	return func(token string) (string, error) {
		session, err := tokens.Verify(token)
		if err != nil {
			return "", err
		}
		return session.AccountID, nil
	}
}

// Close waits for queued notifications, bounded by ctx, then closes the store.
func (a *application) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	waitErr := a.Dispatcher.Wait(ctx)
	if a.Backend == nil {
		return waitErr
	}
	if err := a.Backend.Close(); err != nil {
		return err
	}
	return waitErr
}
