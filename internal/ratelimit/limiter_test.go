package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestLimiter creates a Limiter connected to a test Redis instance.
// Requires Redis running on localhost:6379. Tests are skipped if unavailable.
func setupTestLimiter(t *testing.T) (*Limiter, context.Context) {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid conflicts
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping: Redis not available: %v", err)
	}

	rdb.FlushDB(ctx)

	t.Cleanup(func() {
		rdb.FlushDB(ctx)
		rdb.Close()
	})

	return NewLimiter(rdb), ctx
}

func TestLimiter_AllowsWithinLimit(t *testing.T) {
	limiter, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "alice", rule)
		if err != nil {
			t.Fatalf("allow failed: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(ctx, "alice", rule)
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if allowed {
		t.Error("request over the limit should be denied")
	}
}

func TestLimiter_PerIdentifier(t *testing.T) {
	limiter, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 1, Window: time.Minute}

	limiter.Allow(ctx, "alice", rule)

	allowed, err := limiter.Allow(ctx, "bob", rule)
	if err != nil {
		t.Fatalf("allow failed: %v", err)
	}
	if !allowed {
		t.Error("limits must be scoped per identifier")
	}
}

func TestLimiter_Remaining(t *testing.T) {
	limiter, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 5, Window: time.Minute}

	limiter.Allow(ctx, "alice", rule)
	limiter.Allow(ctx, "alice", rule)

	remaining, err := limiter.Remaining(ctx, "alice", rule)
	if err != nil {
		t.Fatalf("remaining failed: %v", err)
	}
	if remaining != 3 {
		t.Errorf("expected 3 remaining, got %d", remaining)
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	limiter, ctx := setupTestLimiter(t)
	rule := Rule{Key: "rl:test:", Limit: 1, Window: time.Minute}

	limiter.Allow(ctx, "alice", rule)

	retry, err := limiter.RetryAfter(ctx, "alice", rule)
	if err != nil {
		t.Fatalf("retry after failed: %v", err)
	}
	if retry <= 0 || retry > time.Minute {
		t.Errorf("expected retry-after within the window, got %v", retry)
	}
}
