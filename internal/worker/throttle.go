// Package worker contains the background processes: campaign send pacing
// and recovery, the confirmation mailer, and the periodic scoring batch.
package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/eventcrm/internal/pkg/logger"
)

// perSecondLuaScript atomically checks and bumps a provider's per-second
// send counter. GET then INCR as separate commands would let two workers
// both pass the check; the script closes that race.
const perSecondLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])

local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
    return 0
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, 1)
end
return 1
`

// RateLimiter paces sends per provider per second through Redis, so the
// budget holds across every worker process. It implements the campaign
// service's Throttle.
type RateLimiter struct {
	rdb       *redis.Client
	perSecond int
	script    *redis.Script

	// delay between grant attempts while the budget is exhausted
	retryDelay time.Duration

	// now is swappable so tests can pin the second bucket
	now func() time.Time
}

// NewRateLimiter creates a limiter allowing perSecond sends per provider.
func NewRateLimiter(rdb *redis.Client, perSecond int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 50
	}
	return &RateLimiter{
		rdb:        rdb,
		perSecond:  perSecond,
		script:     redis.NewScript(perSecondLuaScript),
		retryDelay: 50 * time.Millisecond,
		now:        time.Now,
	}
}

// Wait blocks until the provider's budget admits one send. On Redis
// failure it lets the send through: pacing is protective, not load-bearing,
// and a down Redis should not stall the campaign.
func (rl *RateLimiter) Wait(ctx context.Context, provider string) error {
	for {
		key := "eventcrm:sendrate:" + provider + ":" + rl.now().UTC().Format("15:04:05")
		res, err := rl.script.Run(ctx, rl.rdb, []string{key}, rl.perSecond).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing send", "error", err.Error())
			return nil
		}
		if allowed, _ := res.(int64); allowed == 1 {
			return nil
		}

		select {
		case <-time.After(rl.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
