package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginBudgetPerEmail(t *testing.T) {
	limiter, _ := newLimiterTest(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.CheckLogin(ctx, "jake@example.com", ""))
		require.NoError(t, limiter.IncrementLogin(ctx, "jake@example.com", ""))
	}
	require.ErrorIs(t, limiter.CheckLogin(ctx, "jake@example.com", ""), ErrRateLimited)
	require.ErrorIs(t, limiter.CheckLogin(ctx, " JAKE@example.com", ""), ErrRateLimited)
	require.NoError(t, limiter.CheckLogin(ctx, "other@example.com", ""))
	require.ErrorIs(t, limiter.IncrementLogin(ctx, "jake@example.com", ""), ErrRateLimited)

	attempts, err := limiter.GetLoginAttempts(ctx, "jake@example.com")
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)

	require.NoError(t, limiter.ResetLogin(ctx, "jake@example.com"))
	require.NoError(t, limiter.CheckLogin(ctx, "jake@example.com", ""))
}

func TestLoginWindowExpires(t *testing.T) {
	limiter, mr := newLimiterTest(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	ctx := context.Background()

	require.NoError(t, limiter.IncrementLogin(ctx, "jake@example.com", ""))
	require.ErrorIs(t, limiter.CheckLogin(ctx, "jake@example.com", ""), ErrRateLimited)

	ttl := mr.TTL("al:jake@example.com")
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(61 * time.Second)
	require.NoError(t, limiter.CheckLogin(ctx, "jake@example.com", ""))
}

func TestLoginIPThrottle(t *testing.T) {
	limiter, mr := newLimiterTest(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	require.NoError(t, limiter.IncrementLogin(ctx, "a@example.com", "10.0.0.1"))
	require.NoError(t, limiter.IncrementLogin(ctx, "b@example.com", "10.0.0.1"))

	require.ErrorIs(t, limiter.CheckLogin(ctx, "c@example.com", "10.0.0.1"), ErrRateLimited)
	require.NoError(t, limiter.CheckLogin(ctx, "c@example.com", "10.0.0.2"))
	assert.True(t, mr.Exists("ali:10.0.0.1"))

	require.NoError(t, limiter.ResetLogin(ctx, "a@example.com"))
	require.ErrorIs(t, limiter.CheckLogin(ctx, "a@example.com", "10.0.0.1"), ErrRateLimited)
}

func TestIncrementLoginCountsIPAfterEmailBudget(t *testing.T) {
	limiter, mr := newLimiterTest(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	require.NoError(t, limiter.IncrementLogin(ctx, "jake@example.com", "10.0.0.1"))
	require.ErrorIs(t, limiter.IncrementLogin(ctx, "jake@example.com", "10.0.0.2"), ErrRateLimited)

	ipCount, err := mr.Get("ali:10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, "1", ipCount)
	require.ErrorIs(t, limiter.CheckLogin(ctx, "other@example.com", "10.0.0.2"), ErrRateLimited)
}

func TestLimiterRedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	limiter := New(rdb, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	mr.Close()

	ctx := context.Background()
	require.ErrorIs(t, limiter.CheckLogin(ctx, "a@example.com", ""), ErrRedisUnavailable)
	require.ErrorIs(t, limiter.IncrementLogin(ctx, "a@example.com", ""), ErrRedisUnavailable)
	require.ErrorIs(t, limiter.ResetLogin(ctx, "a@example.com"), ErrRedisUnavailable)
}
