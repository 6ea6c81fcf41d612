package matching

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestLedger creates a Ledger connected to a test Redis instance.
// Requires Redis running on localhost:6379. Tests are skipped if unavailable.
func setupTestLedger(t *testing.T) (*Ledger, context.Context) {
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

	return NewLedger(rdb), ctx
}

func TestLedger_AddAndMembers(t *testing.T) {
	ledger, ctx := setupTestLedger(t)

	if err := ledger.Add(ctx, "alice", "bob"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := ledger.Add(ctx, "alice", "carol"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	members, err := ledger.Members(ctx, "alice")
	if err != nil {
		t.Fatalf("members failed: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %v", members)
	}
}

func TestLedger_AddIsIdempotent(t *testing.T) {
	ledger, ctx := setupTestLedger(t)

	for i := 0; i < 3; i++ {
		if err := ledger.Add(ctx, "alice", "bob"); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	size, err := ledger.Size(ctx, "alice")
	if err != nil {
		t.Fatalf("size failed: %v", err)
	}
	if size != 1 {
		t.Errorf("expected set semantics, got size %d", size)
	}
}

func TestLedger_Clear(t *testing.T) {
	ledger, ctx := setupTestLedger(t)

	if err := ledger.Add(ctx, "alice", "bob"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := ledger.Clear(ctx, "alice"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	members, err := ledger.Members(ctx, "alice")
	if err != nil {
		t.Fatalf("members failed: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("expected empty ledger after clear, got %v", members)
	}
}

func TestLedger_ScopedPerUser(t *testing.T) {
	ledger, ctx := setupTestLedger(t)

	if err := ledger.Add(ctx, "alice", "bob"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	members, err := ledger.Members(ctx, "dave")
	if err != nil {
		t.Fatalf("members failed: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("ledgers must be per-user, got %v for dave", members)
	}
}

func TestLedger_EntriesExpire(t *testing.T) {
	ledger, ctx := setupTestLedger(t)

	if err := ledger.Add(ctx, "alice", "bob"); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// The key must carry a TTL so stale rejections age out.
	ttl := ledger.rdb.TTL(ctx, keyRejectPrefix+"alice").Val()
	if ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("expected TTL in (0, 24h], got %v", ttl)
	}
}
