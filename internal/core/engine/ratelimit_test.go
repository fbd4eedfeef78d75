package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quizai/quizai/internal/core"
)

type memoryRateStore struct {
	state map[string]*core.RateLimitRecord
	err   error
}

func (m *memoryRateStore) GetRateLimit(ctx context.Context, key string) (*core.RateLimitRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if val, ok := m.state[key]; ok {
		copied := *val
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryRateStore) UpdateRateLimit(ctx context.Context, key string, record *core.RateLimitRecord) error {
	if m.err != nil {
		return m.err
	}
	if m.state == nil {
		m.state = make(map[string]*core.RateLimitRecord)
	}
	copied := *record
	m.state[key] = &copied
	return nil
}

func (m *memoryRateStore) DeleteRateLimit(ctx context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.state, key)
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter() (*Limiter, *memoryRateStore, *testClock) {
	store := &memoryRateStore{}
	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return &Limiter{Store: store, Clock: clock.Now}, store, clock
}

func TestLimiterThreshold(t *testing.T) {
	limiter, store, _ := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, limiter.RecordFailure(ctx, "a@x.com", ActionLogin))
		require.NoError(t, limiter.Check(ctx, "a@x.com", ActionLogin))
	}

	require.NoError(t, limiter.RecordFailure(ctx, "a@x.com", ActionLogin))
	err := limiter.Check(ctx, "a@x.com", ActionLogin)
	rl, ok := core.IsRateLimited(err)
	require.True(t, ok)
	require.Equal(t, 100, rl.RetryAfterSeconds())

	record := store.state["login:a@x.com"]
	require.NotNil(t, record)
	require.Equal(t, 0, record.FailureCount)
	require.Equal(t, 1, record.LockCount)
}

func TestLimiterBackoffGrowth(t *testing.T) {
	limiter, store, clock := newTestLimiter()
	ctx := context.Background()

	expected := []time.Duration{100 * time.Second, 300 * time.Second, 900 * time.Second}
	for i, want := range expected {
		for j := 0; j < DefaultFailureThreshold; j++ {
			require.NoError(t, limiter.RecordFailure(ctx, "a@x.com", ActionLogin))
		}
		record := store.state["login:a@x.com"]
		require.Equal(t, i+1, record.LockCount)
		require.Equal(t, want, record.BlockedUntil.Sub(clock.now))

		clock.Advance(want - time.Second)
		rl, ok := core.IsRateLimited(limiter.Check(ctx, "a@x.com", ActionLogin))
		require.True(t, ok)
		require.Equal(t, 1, rl.RetryAfterSeconds())

		clock.Advance(time.Second)
		require.NoError(t, limiter.Check(ctx, "a@x.com", ActionLogin))
	}
}

func TestLimiterRemainingRoundsUp(t *testing.T) {
	limiter, _, clock := newTestLimiter()
	ctx := context.Background()

	for j := 0; j < DefaultFailureThreshold; j++ {
		require.NoError(t, limiter.RecordFailure(ctx, "a@x.com", ActionLogin))
	}
	clock.Advance(500 * time.Millisecond)

	rl, ok := core.IsRateLimited(limiter.Check(ctx, "a@x.com", ActionLogin))
	require.True(t, ok)
	require.Equal(t, 100, rl.RetryAfterSeconds())
}

func TestLimiterIndependence(t *testing.T) {
	limiter, _, _ := newTestLimiter()
	ctx := context.Background()

	for j := 0; j < DefaultFailureThreshold; j++ {
		require.NoError(t, limiter.RecordFailure(ctx, "a@x.com", ActionLogin))
	}

	_, ok := core.IsRateLimited(limiter.Check(ctx, "a@x.com", ActionLogin))
	require.True(t, ok)
	require.NoError(t, limiter.Check(ctx, "b@x.com", ActionLogin))
	require.NoError(t, limiter.Check(ctx, "a@x.com", ActionVerify))
}

func TestLimiterIdentifierNormalized(t *testing.T) {
	limiter, _, _ := newTestLimiter()
	ctx := context.Background()

	require.NoError(t, limiter.RecordFailure(ctx, "A@X.com ", ActionLogin))
	require.NoError(t, limiter.RecordFailure(ctx, "a@x.com", ActionLogin))
	require.NoError(t, limiter.RecordFailure(ctx, " a@X.COM", ActionLogin))

	_, ok := core.IsRateLimited(limiter.Check(ctx, "a@x.com", ActionLogin))
	require.True(t, ok)
}

func TestLimiterReset(t *testing.T) {
	limiter, store, _ := newTestLimiter()
	ctx := context.Background()

	for j := 0; j < DefaultFailureThreshold*2; j++ {
		require.NoError(t, limiter.RecordFailure(ctx, "a@x.com", ActionLogin))
	}
	require.NoError(t, limiter.Reset(ctx, "a@x.com", ActionLogin))
	require.NoError(t, limiter.Check(ctx, "a@x.com", ActionLogin))
	require.Empty(t, store.state)

	// A fresh record starts again at the base lockout.
	for j := 0; j < DefaultFailureThreshold; j++ {
		require.NoError(t, limiter.RecordFailure(ctx, "a@x.com", ActionLogin))
	}
	require.Equal(t, 1, store.state["login:a@x.com"].LockCount)
}

func TestLimiterExpiredBlockIgnoresFailureCount(t *testing.T) {
	limiter, store, clock := newTestLimiter()
	ctx := context.Background()

	past := clock.now.Add(-time.Minute)
	store.state = map[string]*core.RateLimitRecord{
		"login:a@x.com": {Key: "login:a@x.com", FailureCount: 2, LockCount: 1, BlockedUntil: &past},
	}
	require.NoError(t, limiter.Check(ctx, "a@x.com", ActionLogin))
}

func TestLimiterStorageErrorsPropagate(t *testing.T) {
	boom := errors.New("store down")
	limiter := &Limiter{Store: &memoryRateStore{err: boom}}
	ctx := context.Background()

	require.ErrorIs(t, limiter.Check(ctx, "a@x.com", ActionLogin), boom)
	require.ErrorIs(t, limiter.RecordFailure(ctx, "a@x.com", ActionLogin), boom)
	require.ErrorIs(t, limiter.Reset(ctx, "a@x.com", ActionLogin), boom)
}

func TestLimiterOnLockout(t *testing.T) {
	limiter, _, _ := newTestLimiter()
	var locks []time.Duration
	limiter.OnLockout = func(action Action, identifier string, lock time.Duration) {
		require.Equal(t, ActionVerify, action)
		require.Equal(t, "a@x.com", identifier)
		locks = append(locks, lock)
	}

	for j := 0; j < DefaultFailureThreshold*2; j++ {
		require.NoError(t, limiter.RecordFailure(context.Background(), "a@x.com", ActionVerify))
	}
	require.Equal(t, []time.Duration{100 * time.Second, 300 * time.Second}, locks)
}

func TestLockDurationSaturates(t *testing.T) {
	require.Equal(t, 100*time.Second, LockDuration(0, 0))
	require.Equal(t, 2700*time.Second, LockDuration(100*time.Second, 3))
	require.Equal(t, maxLockDuration, LockDuration(100*time.Second, 64))
}

func TestNilLimiterAllows(t *testing.T) {
	var limiter *Limiter
	require.NoError(t, limiter.Check(context.Background(), "a@x.com", ActionLogin))
	require.NoError(t, limiter.RecordFailure(context.Background(), "a@x.com", ActionLogin))
}

func TestActionValid(t *testing.T) {
	require.True(t, ActionLogin.Valid())
	require.True(t, ActionPasswordReset.Valid())
	require.False(t, Action("signup").Valid())
}
