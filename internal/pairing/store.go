// Package pairing manages the request/accept handshake that turns a chosen
// match into an active study session. A pairing starts pending with an accept
// deadline; both users must accept before it activates and a meeting room ID
// is revealed. State lives in Redis with last-write-wins semantics; there is
// no arbitration of concurrent requests.
package pairing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PairingPrefix = "pairing:"
	PendingKey    = "pairing:pending"

	// AcceptDeadline is how long both users have to accept a proposed
	// pairing before it expires.
	AcceptDeadline = 120 * time.Second

	TTLPending = 3 * time.Minute
	TTLActive  = 2 * time.Hour

	StatusPendingAccept = "pending_accept"
	StatusActive        = "active"
	StatusEnded         = "ended"
)

// Pairing represents a pending or active study-session pairing.
type Pairing struct {
	PairingID      string
	UserA          string
	UserB          string
	Status         string
	MeetingRoomID  string
	CreatedAt      int64
	AcceptDeadline int64
	AcceptedA      bool
	AcceptedB      bool
}

// Partner returns the other participant's user ID.
func (p *Pairing) Partner(userID string) string {
	if userID == p.UserA {
		return p.UserB
	}
	if userID == p.UserB {
		return p.UserA
	}
	return ""
}

// IsParticipant checks whether a user is part of this pairing.
func (p *Pairing) IsParticipant(userID string) bool {
	return userID == p.UserA || userID == p.UserB
}

// Store manages pairing state in Redis.
type Store struct {
	rdb          *redis.Client
	acceptScript *redis.Script
}

// NewStore creates a pairing store backed by Redis.
func NewStore(rdb *redis.Client) *Store {
	return &Store{
		rdb:          rdb,
		acceptScript: redis.NewScript(acceptPairingLua),
	}
}

// CreatePending creates a pairing in pending_accept status with an accept
// deadline. The meeting room ID is minted now but only surfaced to clients
// once both sides accept.
func (s *Store) CreatePending(ctx context.Context, pairingID, userA, userB, meetingRoomID string) error {
	key := PairingPrefix + pairingID
	now := time.Now().Unix()
	deadline := now + int64(AcceptDeadline.Seconds())

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_a":          userA,
		"user_b":          userB,
		"status":          StatusPendingAccept,
		"meeting_room":    meetingRoomID,
		"created_at":      now,
		"accept_deadline": deadline,
		"accepted_a":      "false",
		"accepted_b":      "false",
	})
	pipe.Expire(ctx, key, TTLPending)
	pipe.ZAdd(ctx, PendingKey, redis.Z{Score: float64(deadline), Member: pairingID})
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a pairing. Returns nil if not found.
func (s *Store) Get(ctx context.Context, pairingID string) (*Pairing, error) {
	key := PairingPrefix + pairingID
	result, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	createdAt, _ := strconv.ParseInt(result["created_at"], 10, 64)
	acceptDeadline, _ := strconv.ParseInt(result["accept_deadline"], 10, 64)

	return &Pairing{
		PairingID:      pairingID,
		UserA:          result["user_a"],
		UserB:          result["user_b"],
		Status:         result["status"],
		MeetingRoomID:  result["meeting_room"],
		CreatedAt:      createdAt,
		AcceptDeadline: acceptDeadline,
		AcceptedA:      result["accepted_a"] == "true",
		AcceptedB:      result["accepted_b"] == "true",
	}, nil
}

// Accept atomically records a user's acceptance. Returns:
//
//	1 = both accepted (pairing is now active)
//	0 = waiting for partner
//	-1 = pairing not found
//	-2 = wrong status (not pending_accept)
//	-3 = user not a participant
func (s *Store) Accept(ctx context.Context, pairingID, userID string) (int, error) {
	key := PairingPrefix + pairingID
	result, err := s.acceptScript.Run(ctx, s.rdb, []string{key}, userID, int(TTLActive.Seconds())).Int()
	if err != nil {
		return -1, fmt.Errorf("pairing: accept: %w", err)
	}
	return result, nil
}

// End marks an active pairing as ended. It keeps the record around briefly
// so late feedback submissions can still resolve the participants.
func (s *Store) End(ctx context.Context, pairingID string) error {
	key := PairingPrefix + pairingID
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, "status", StatusEnded)
	pipe.Expire(ctx, key, TTLPending)
	pipe.ZRem(ctx, PendingKey, pairingID)
	_, err := pipe.Exec(ctx)
	return err
}

// ClearPending drops a pairing's deadline-tracking entry without touching
// the pairing record. Used once a pairing activates, since the accept script
// updates only the hash.
func (s *Store) ClearPending(ctx context.Context, pairingID string) error {
	return s.rdb.ZRem(ctx, PendingKey, pairingID).Err()
}

// Delete removes a pairing and its pending tracking entry.
func (s *Store) Delete(ctx context.Context, pairingID string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, PairingPrefix+pairingID)
	pipe.ZRem(ctx, PendingKey, pairingID)
	_, err := pipe.Exec(ctx)
	return err
}

// ExpiredPending returns the IDs of pending pairings whose accept deadline
// has passed, for the sweeper to clean up.
func (s *Store) ExpiredPending(ctx context.Context, now time.Time) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, PendingKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
}

// acceptPairingLua atomically marks a user as accepted and checks if both
// have. If both accepted, it sets status to active and extends the TTL to
// the active-session lifetime.
const acceptPairingLua = `
local key = KEYS[1]
local user_id = ARGV[1]
local active_ttl = tonumber(ARGV[2])

local status = redis.call('HGET', key, 'status')
if not status then return -1 end
if status ~= 'pending_accept' then return -2 end

local user_a = redis.call('HGET', key, 'user_a')
local user_b = redis.call('HGET', key, 'user_b')

if user_id == user_a then
    redis.call('HSET', key, 'accepted_a', 'true')
elseif user_id == user_b then
    redis.call('HSET', key, 'accepted_b', 'true')
else
    return -3
end

local accepted_a = redis.call('HGET', key, 'accepted_a')
local accepted_b = redis.call('HGET', key, 'accepted_b')

if accepted_a == 'true' and accepted_b == 'true' then
    redis.call('HSET', key, 'status', 'active')
    redis.call('EXPIRE', key, active_ttl)
    return 1
end

return 0
`
