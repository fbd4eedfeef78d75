package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/quizai/quizai/internal/config"
	"github.com/quizai/quizai/internal/core"
)

// Backend is the document store used by the service. Both the libsql Store
// and the MongoStore implement it.
type Backend interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
	Driver() string

	CreateAccount(ctx context.Context, acct *core.Account) error
	GetAccount(ctx context.Context, id string) (*core.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*core.Account, error)
	UpdateAccount(ctx context.Context, acct *core.Account) error
	IncrementAIUsage(ctx context.Context, accountID string, delta int) error

	CreateRoom(ctx context.Context, room *core.Room) error
	GetRoom(ctx context.Context, id string) (*core.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*core.Room, error)
	ListRooms(ctx context.Context, hostID string) ([]*core.Room, error)
	UpdateRoom(ctx context.Context, room *core.Room) error
	DeleteRoom(ctx context.Context, id string) error

	CreateSubmission(ctx context.Context, sub *core.Submission) error
	GetSubmission(ctx context.Context, id string) (*core.Submission, error)
	ListSubmissions(ctx context.Context, filter core.SubmissionFilter) ([]*core.Submission, error)
	UpdateSubmission(ctx context.Context, sub *core.Submission) error
	DeleteSubmissions(ctx context.Context, filter core.SubmissionFilter) (int64, error)

	GetRateLimit(ctx context.Context, key string) (*core.RateLimitRecord, error)
	UpdateRateLimit(ctx context.Context, key string, record *core.RateLimitRecord) error
	DeleteRateLimit(ctx context.Context, key string) error
	ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error)
	CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error)
	ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error)
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*MongoStore)(nil)
)

// OpenBackend opens the store selected by cfg.Driver.
func OpenBackend(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch normalizeDriver(cfg.Driver) {
	case driverLibsql:
		s, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case driverMongo:
		m, err := OpenMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// RateLimitEntry is a rate limit record split back into its action and identifier.
type RateLimitEntry struct {
	Action     string
	Identifier string
	Record     core.RateLimitRecord
}

func newRateLimitEntry(record core.RateLimitRecord) RateLimitEntry {
	action, identifier, found := strings.Cut(record.Key, ":")
	if !found {
		return RateLimitEntry{Identifier: record.Key, Record: record}
	}
	return RateLimitEntry{Action: action, Identifier: identifier, Record: record}
}
