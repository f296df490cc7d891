package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-mailer/internal/config"
	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/service/sending"
)

// ErrDailyLimitExceeded is returned once a transport's daily quota is used up.
var ErrDailyLimitExceeded = errors.New("daily send limit exceeded")

// RateLimiter provides atomic rate limiting using a Redis Lua script, so
// several server instances share one quota per transport.
type RateLimiter struct {
	redis  *redis.Client
	script *redis.Script
	now    func() time.Time
}

// Checks every window before incrementing any of them. A limit of 0 means
// unlimited.
const multiLimitLuaScript = `
local secondKey = KEYS[1]
local minuteKey = KEYS[2]
local dailyKey = KEYS[3]
local increment = tonumber(ARGV[1])
local secondLimit = tonumber(ARGV[2])
local minuteLimit = tonumber(ARGV[3])
local dailyLimit = tonumber(ARGV[4])

local secCurrent = tonumber(redis.call("GET", secondKey) or "0")
local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if secondLimit > 0 and secCurrent + increment > secondLimit then
    return {0, 1, secCurrent}
end
if minuteLimit > 0 and minCurrent + increment > minuteLimit then
    return {0, 2, minCurrent}
end
if dailyLimit > 0 and dayCurrent + increment > dailyLimit then
    return {0, 3, dayCurrent}
end

if redis.call("INCRBY", secondKey, increment) == increment then
    redis.call("EXPIRE", secondKey, tonumber(ARGV[5]))
end
if redis.call("INCRBY", minuteKey, increment) == increment then
    redis.call("EXPIRE", minuteKey, tonumber(ARGV[6]))
end
local newDay = redis.call("INCRBY", dailyKey, increment)
if newDay == increment then
    redis.call("EXPIRE", dailyKey, tonumber(ARGV[7]))
end

return {1, 0, newDay}
`

// NewRateLimiter creates a rate limiter with a pre-compiled Lua script.
func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		script: redis.NewScript(multiLimitLuaScript),
		now:    time.Now,
	}
}

func (r *RateLimiter) keys(name string, now time.Time) []string {
	return []string{
		fmt.Sprintf("ratelimit:%s:sec:%d", name, now.Unix()),
		fmt.Sprintf("ratelimit:%s:min:%d", name, now.Unix()/60),
		fmt.Sprintf("ratelimit:%s:day:%s", name, now.UTC().Format("2006-01-02")),
	}
}

// CheckAndIncrement atomically checks and reserves n sends for the named
// transport. When denied, wait is how long until the blocking window rolls
// over. An exhausted daily quota yields ErrDailyLimitExceeded.
func (r *RateLimiter) CheckAndIncrement(ctx context.Context, name string, limits config.RateLimit, n int) (allowed bool, wait time.Duration, err error) {
	now := r.now()
	result, err := r.script.Run(ctx, r.redis, r.keys(name, now),
		n,
		limits.PerSecond,
		limits.PerMinute,
		limits.Daily,
		2,     // second TTL
		120,   // minute TTL
		90000, // daily TTL (25 hours)
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if result[0] == 1 {
		return true, 0, nil
	}

	switch result[1] {
	case 1:
		return false, time.Second - time.Duration(now.Nanosecond()), nil
	case 2:
		return false, time.Duration(60-now.Second()) * time.Second, nil
	default:
		return false, 0, fmt.Errorf("%w for %s (%d sent today)", ErrDailyLimitExceeded, name, result[2])
	}
}

// Usage returns the current counters for the named transport.
func (r *RateLimiter) Usage(ctx context.Context, name string) (map[string]int64, error) {
	keys := r.keys(name, r.now())

	pipe := r.redis.Pipeline()
	secCmd := pipe.Get(ctx, keys[0])
	minCmd := pipe.Get(ctx, keys[1])
	dayCmd := pipe.Get(ctx, keys[2])
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read rate limit usage: %w", err)
	}

	sec, _ := secCmd.Int64()
	min, _ := minCmd.Int64()
	day, _ := dayCmd.Int64()
	return map[string]int64{
		"second_current": sec,
		"minute_current": min,
		"daily_current":  day,
	}, nil
}

// ThrottledTransport holds each send until the shared quota admits it.
type ThrottledTransport struct {
	next    sending.Transport
	limiter *RateLimiter
	name    string
	limits  config.RateLimit
}

// NewThrottledTransport wraps next with the limits for the named transport.
func NewThrottledTransport(next sending.Transport, limiter *RateLimiter, name string, limits config.RateLimit) *ThrottledTransport {
	return &ThrottledTransport{next: next, limiter: limiter, name: name, limits: limits}
}

// Usage reports the current counters together with the configured limits.
func (t *ThrottledTransport) Usage(ctx context.Context) (map[string]int64, error) {
	usage, err := t.limiter.Usage(ctx, t.name)
	if err != nil {
		return nil, err
	}
	usage["second_limit"] = int64(t.limits.PerSecond)
	usage["minute_limit"] = int64(t.limits.PerMinute)
	usage["daily_limit"] = int64(t.limits.Daily)
	return usage, nil
}

// Send waits for quota, then delivers. A spent daily quota is reported as
// sending.ErrTransportUnavailable since no later recipient can get through
// either. Redis errors fail open.
func (t *ThrottledTransport) Send(ctx context.Context, msg *domain.EmailMessage) error {
	for {
		allowed, wait, err := t.limiter.CheckAndIncrement(ctx, t.name, t.limits, 1)
		if errors.Is(err, ErrDailyLimitExceeded) {
			return fmt.Errorf("%v: %w", err, sending.ErrTransportUnavailable)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("rate limiter unavailable, sending unthrottled", "transport", t.name, "error", err)
			break
		}
		if allowed {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return t.next.Send(ctx, msg)
}
