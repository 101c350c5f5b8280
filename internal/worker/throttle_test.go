package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func pinnedLimiter(t *testing.T, perSecond int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	rl := NewRateLimiter(rdb, perSecond)
	rl.retryDelay = 5 * time.Millisecond
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	return rl, mr
}

func TestRateLimiterGrantsWithinBudget(t *testing.T) {
	rl, _ := pinnedLimiter(t, 3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx, "ses"); err != nil {
			t.Fatalf("grant %d: %v", i+1, err)
		}
	}
}

func TestRateLimiterBlocksPastBudget(t *testing.T) {
	rl, _ := pinnedLimiter(t, 2)
	ctx := context.Background()

	if err := rl.Wait(ctx, "ses"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Wait(ctx, "ses"); err != nil {
		t.Fatal(err)
	}

	// the bucket is pinned, so the third grant can only end via ctx
	short, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	if err := rl.Wait(short, "ses"); err == nil {
		t.Fatal("third grant in the same second must block")
	}
}

func TestRateLimiterBudgetsPerProvider(t *testing.T) {
	rl, _ := pinnedLimiter(t, 1)
	ctx := context.Background()

	if err := rl.Wait(ctx, "ses"); err != nil {
		t.Fatal(err)
	}
	// a different provider has its own bucket
	if err := rl.Wait(ctx, "sparkpost"); err != nil {
		t.Fatalf("other provider blocked: %v", err)
	}
}

func TestRateLimiterAllowsWhenRedisDown(t *testing.T) {
	rl, mr := pinnedLimiter(t, 1)
	mr.Close()

	if err := rl.Wait(context.Background(), "ses"); err != nil {
		t.Fatalf("pacing must fail open, got %v", err)
	}
}
