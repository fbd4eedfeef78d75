//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quizai/quizai/internal/config"
	"github.com/quizai/quizai/internal/core"
)

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Close())
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.StoreConfig{
		Driver: "libsql",
		Path:   "file:" + t.TempDir() + "/quizai.db",
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := now.Add(15 * time.Minute)

	acct := &core.Account{
		ID: "acct-1", Email: "host@x.com", Name: "Host", PasswordHash: "hash",
		VerificationCode: "123456", VerificationExpires: &expires,
		AILimit: 5, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateAccount(ctx, acct))
	require.ErrorIs(t, store.CreateAccount(ctx, &core.Account{ID: "acct-2", Email: "host@x.com", CreatedAt: now, UpdatedAt: now}), core.ErrConflict)

	loaded, err := store.GetAccountByEmail(ctx, " HOST@x.com ")
	require.NoError(t, err)
	require.Equal(t, "acct-1", loaded.ID)
	require.False(t, loaded.Verified)
	require.Equal(t, "123456", loaded.VerificationCode)
	require.Equal(t, expires, *loaded.VerificationExpires)

	loaded.Verified = true
	loaded.VerificationCode = ""
	loaded.VerificationExpires = nil
	require.NoError(t, store.UpdateAccount(ctx, loaded))
	require.NoError(t, store.IncrementAIUsage(ctx, "acct-1", 1))
	require.NoError(t, store.IncrementAIUsage(ctx, "acct-1", 1))

	loaded, err = store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.True(t, loaded.Verified)
	require.Nil(t, loaded.VerificationExpires)
	require.Equal(t, 2, loaded.AIUsage)

	_, err = store.GetAccount(ctx, "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.ErrorIs(t, store.IncrementAIUsage(ctx, "missing", 1), core.ErrNotFound)
}

func TestRoomAndSubmissionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	room := &core.Room{
		ID: "room-1", HostID: "acct-1", Code: "ABC123", Title: "Cells", Active: true,
		Questions: []core.Question{{ID: "q1", Type: core.QuestionShort, Prompt: "What is a cell?"}},
		Config:    core.RoomConfig{GradingMode: core.GradingOpen, MarkingType: core.MarkingBatch},
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateRoom(ctx, room))

	byCode, err := store.GetRoomByCode(ctx, "abc123")
	require.NoError(t, err)
	require.Equal(t, "room-1", byCode.ID)
	require.Equal(t, core.GradingOpen, byCode.Config.GradingMode)
	require.Len(t, byCode.Questions, 1)

	rooms, err := store.ListRooms(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	for i, id := range []string{"sub-1", "sub-2"} {
		require.NoError(t, store.CreateSubmission(ctx, &core.Submission{
			ID: id, RoomID: "room-1", StudentName: "Student",
			Answers:   map[string]string{"q1": "answer"},
			Status:    core.SubmissionPending,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
			UpdatedAt: now,
		}))
	}

	pending, err := store.ListSubmissions(ctx, core.SubmissionFilter{RoomID: "room-1", Status: core.SubmissionPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "sub-1", pending[0].ID)
	require.Empty(t, pending[0].Grades)

	graded := pending[0]
	graded.Grades = map[string]core.Grade{"q1": {Score: 7, Feedback: "fine"}}
	graded.RecomputeTotal()
	graded.Status = core.SubmissionGraded
	require.NoError(t, store.UpdateSubmission(ctx, graded))

	loaded, err := store.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, 7, loaded.TotalScore)
	require.Equal(t, core.SubmissionGraded, loaded.Status)
	require.Equal(t, "fine", loaded.Grades["q1"].Feedback)

	pending, err = store.ListSubmissions(ctx, core.SubmissionFilter{RoomID: "room-1", Status: core.SubmissionPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.DeleteRoom(ctx, "room-1"))
	_, err = store.GetRoom(ctx, "room-1")
	require.ErrorIs(t, err, core.ErrNotFound)
	remaining, err := store.ListSubmissions(ctx, core.SubmissionFilter{RoomID: "room-1"})
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestRateLimitRecords(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	until := time.Date(2025, 1, 1, 0, 1, 40, 500_000_000, time.UTC)

	record, err := store.GetRateLimit(ctx, "login:a@x.com")
	require.NoError(t, err)
	require.Nil(t, record)

	require.NoError(t, store.UpdateRateLimit(ctx, "login:a@x.com", &core.RateLimitRecord{
		LockCount: 1, BlockedUntil: &until, UpdatedAt: until,
	}))
	require.NoError(t, store.UpdateRateLimit(ctx, "verify:a@x.com", &core.RateLimitRecord{FailureCount: 2}))

	record, err = store.GetRateLimit(ctx, "login:a@x.com")
	require.NoError(t, err)
	require.Equal(t, 1, record.LockCount)
	require.Equal(t, until, *record.BlockedUntil)

	entries, err := store.ListRateLimits(ctx, RateLimitQuery{Prefix: "login:"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "login", entries[0].Action)

	count, err := store.CountRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, store.DeleteRateLimit(ctx, "login:a@x.com"))
	affected, err := store.ResetRateLimits(ctx, RateLimitQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
}
