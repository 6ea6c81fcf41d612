package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// keyRejectPrefix + <user_id> -> Set of rejected candidate IDs.
	keyRejectPrefix = "reject:"

	// ledgerTTL auto-expires abandoned search sessions. Every addition
	// refreshes the window.
	ledgerTTL = 24 * time.Hour
)

// Ledger is the Redis-backed rejection ledger: one set of declined candidate
// IDs per searching user. It grows only by explicit rejection and is cleared
// only by an explicit reset (or TTL expiry of an abandoned search).
type Ledger struct {
	rdb *redis.Client
}

// NewLedger creates a rejection ledger backed by Redis.
func NewLedger(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb}
}

// Add records a rejected candidate for the user. SADD gives set semantics:
// rejecting the same candidate twice is a no-op.
func (l *Ledger) Add(ctx context.Context, userID, candidateID string) error {
	key := keyRejectPrefix + userID

	pipe := l.rdb.Pipeline()
	pipe.SAdd(ctx, key, candidateID)
	pipe.Expire(ctx, key, ledgerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("matching: ledger add %s: %w", userID, err)
	}
	return nil
}

// Members returns all rejected candidate IDs for the user. A missing key
// yields an empty slice.
func (l *Ledger) Members(ctx context.Context, userID string) ([]string, error) {
	ids, err := l.rdb.SMembers(ctx, keyRejectPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("matching: ledger members %s: %w", userID, err)
	}
	return ids, nil
}

// Size returns the number of rejected candidates for the user.
func (l *Ledger) Size(ctx context.Context, userID string) (int64, error) {
	n, err := l.rdb.SCard(ctx, keyRejectPrefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("matching: ledger size %s: %w", userID, err)
	}
	return n, nil
}

// Clear removes the user's ledger entirely (the "start new search" action).
func (l *Ledger) Clear(ctx context.Context, userID string) error {
	if err := l.rdb.Del(ctx, keyRejectPrefix+userID).Err(); err != nil {
		return fmt.Errorf("matching: ledger clear %s: %w", userID, err)
	}
	return nil
}
