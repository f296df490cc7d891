package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-mailer/internal/config"
	"github.com/ignite/campaign-mailer/internal/service/sending"
)

func newTestLimiter(t *testing.T, now time.Time) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rl := NewRateLimiter(client)
	rl.now = func() time.Time { return now }
	return rl, mr
}

func TestRateLimiter_PerSecond(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 30, 250*int(time.Millisecond), time.UTC)
	rl, _ := newTestLimiter(t, now)
	ctx := context.Background()
	limits := config.RateLimit{PerSecond: 2}

	for i := 0; i < 2; i++ {
		ok, _, err := rl.CheckAndIncrement(ctx, "smtp", limits, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, wait, err := rl.CheckAndIncrement(ctx, "smtp", limits, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 750*time.Millisecond, wait)

	usage, err := rl.Usage(ctx, "smtp")
	require.NoError(t, err)
	assert.EqualValues(t, 2, usage["second_current"])
	assert.EqualValues(t, 2, usage["daily_current"])
}

func TestRateLimiter_DeniedRequestDoesNotCount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl, _ := newTestLimiter(t, now)
	ctx := context.Background()

	ok, _, err := rl.CheckAndIncrement(ctx, "ses", config.RateLimit{PerMinute: 1}, 1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, wait, err := rl.CheckAndIncrement(ctx, "ses", config.RateLimit{PerMinute: 1}, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	usage, err := rl.Usage(ctx, "ses")
	require.NoError(t, err)
	assert.EqualValues(t, 1, usage["minute_current"])
}

func TestRateLimiter_DailyLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	limits := config.RateLimit{Daily: 1}

	ok, _, err := rl.CheckAndIncrement(ctx, "smtp", limits, 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = rl.CheckAndIncrement(ctx, "smtp", limits, 1)
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
}

func TestThrottledTransport(t *testing.T) {
	rl, mr := newTestLimiter(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	next := NewLogSender()
	tr := NewThrottledTransport(next, rl, "smtp", config.RateLimit{Daily: 2})
	ctx := context.Background()

	require.NoError(t, tr.Send(ctx, testMessage("a@example.com")))
	require.NoError(t, tr.Send(ctx, testMessage("b@example.com")))

	err := tr.Send(ctx, testMessage("c@example.com"))
	assert.ErrorIs(t, err, sending.ErrTransportUnavailable)
	assert.EqualValues(t, 2, next.Sent())

	usage, err := tr.Usage(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, usage["daily_current"])
	assert.EqualValues(t, 2, usage["daily_limit"])
	assert.EqualValues(t, 0, usage["minute_limit"])

	// Redis outage fails open.
	mr.Close()
	require.NoError(t, tr.Send(ctx, testMessage("d@example.com")))
	assert.EqualValues(t, 3, next.Sent())

	_, err = tr.Usage(ctx)
	assert.Error(t, err)
}

func TestThrottledTransport_WaitHonoursContext(t *testing.T) {
	rl, _ := newTestLimiter(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	tr := NewThrottledTransport(NewLogSender(), rl, "smtp", config.RateLimit{PerMinute: 1})

	require.NoError(t, tr.Send(context.Background(), testMessage("a@example.com")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tr.Send(ctx, testMessage("b@example.com"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
