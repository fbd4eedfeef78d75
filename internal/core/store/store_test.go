package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/quizai/quizai/internal/config"
	"github.com/quizai/quizai/internal/core"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}

		dsn, err := libsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLWithExistingQuery", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io?foo=bar",
			AuthToken: "token123",
		}

		dsn, err := libsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123&foo=bar", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		cfg := config.StoreConfig{Path: "file:./quizai.db"}

		dsn, err := libsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:./quizai.db", dsn)
	})

	t.Run("PathMissing", func(t *testing.T) {
		cfg := config.StoreConfig{}

		_, err := libsqlDSN(cfg)
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		cfg := config.StoreConfig{Path: ":memory:"}

		dsn, err := libsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})
}

func TestRateLimitQueryWhereClause(t *testing.T) {
	where, args, err := RateLimitQuery{Prefix: "login:"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, `WHERE key LIKE ? ESCAPE '\'`, where)
	require.Equal(t, []any{"login:%"}, args)

	_, args, err = RateLimitQuery{Prefix: "quiz_1%"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, []any{`quiz\_1\%%`}, args)

	where, args, err = RateLimitQuery{Key: "verify:a@x.com", Prefix: "login:"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE key = ?", where)
	require.Equal(t, []any{"verify:a@x.com"}, args)

	where, _, err = RateLimitQuery{All: true}.whereClause()
	require.NoError(t, err)
	require.Empty(t, where)

	_, _, err = RateLimitQuery{}.whereClause()
	require.Error(t, err)
}

func TestRateLimitQueryMongoFilter(t *testing.T) {
	filter, err := RateLimitQuery{Prefix: "password-reset:"}.mongoFilter()
	require.NoError(t, err)
	require.Equal(t, bson.M{"_id": bson.M{"$regex": "^password-reset:"}}, filter)

	filter, err = RateLimitQuery{All: true}.mongoFilter()
	require.NoError(t, err)
	require.Empty(t, filter)
}

func TestNewRateLimitEntrySplitsKey(t *testing.T) {
	entry := newRateLimitEntry(core.RateLimitRecord{Key: "login:a@x.com", LockCount: 2})
	require.Equal(t, "login", entry.Action)
	require.Equal(t, "a@x.com", entry.Identifier)
	require.Equal(t, 2, entry.Record.LockCount)

	entry = newRateLimitEntry(core.RateLimitRecord{Key: "legacy"})
	require.Empty(t, entry.Action)
	require.Equal(t, "legacy", entry.Identifier)
}

func TestSubmissionWhere(t *testing.T) {
	where, args := submissionWhere(core.SubmissionFilter{RoomID: "r1", Status: core.SubmissionPending})
	require.Equal(t, "WHERE room_id = ? AND status = ?", where)
	require.Equal(t, []any{"r1", "pending"}, args)

	where, args = submissionWhere(core.SubmissionFilter{})
	require.Empty(t, where)
	require.Nil(t, args)
}

func TestOpenBackendUnsupportedDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), config.StoreConfig{Driver: "postgres"})
	require.ErrorContains(t, err, "unsupported store driver")

	_, err = OpenBackend(context.Background(), config.StoreConfig{Driver: "mongo"})
	require.ErrorContains(t, err, "mongo_uri")
}
