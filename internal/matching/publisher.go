package matching

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/peerfuse/match-app/internal/messaging"
)

// Request payloads sent by the gateway over NATS.

// SearchRequest asks the matcher to run a fresh ranked search for a user.
type SearchRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// NextRequest asks the matcher to advance the user's search cursor.
type NextRequest struct {
	UserID string `json:"user_id"`
}

// RejectRequest asks the matcher to ledger a candidate and re-search.
type RejectRequest struct {
	UserID      string `json:"user_id"`
	CandidateID string `json:"candidate_id"`
}

// ResetRequest asks the matcher to clear the user's ledger and session.
type ResetRequest struct {
	UserID string `json:"user_id"`
}

// PairingRequest proposes a study pairing between a user and a partner.
type PairingRequest struct {
	UserID    string `json:"user_id"`
	PartnerID string `json:"partner_id"`
}

// PairingAnswer accepts or declines a proposed pairing.
type PairingAnswer struct {
	UserID    string `json:"user_id"`
	PairingID string `json:"pairing_id"`
}

// Search outcome statuses published to the gateway. StatusOK and
// StatusNoMatches mirror the finder; the rest are session-level.
const (
	OutcomeExhausted = "exhausted"
	OutcomeError     = "error"
)

// SearchOutcome is the payload published to match.result.<user_id> after
// every search, next, or reject operation.
type SearchOutcome struct {
	Status  string           `json:"status"` // ok | no_matches | exhausted | error
	Rank    int              `json:"rank"`   // 0-based cursor position when ok
	Total   int              `json:"total"`  // ranked list length when ok
	Match   *ScoredCandidate `json:"match,omitempty"`
	Tier    *QualityTier     `json:"tier,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Pairing lifecycle event types published to pairing.notify.<user_id>.
const (
	PairingProposed = "proposed"
	PairingActive   = "active"
	PairingDeclined = "declined"
	PairingTimedOut = "timed_out"
)

// PairingEvent is the payload published to pairing.notify.<user_id>.
type PairingEvent struct {
	Event          string `json:"event"`
	PairingID      string `json:"pairing_id"`
	PartnerID      string `json:"partner_id,omitempty"`
	PartnerName    string `json:"partner_name,omitempty"`
	MeetingRoomID  string `json:"meeting_room_id,omitempty"`
	AcceptDeadline int    `json:"accept_deadline,omitempty"` // seconds
}

// PublishOutcome publishes a search outcome to the user's result subject.
func PublishOutcome(nc *messaging.NATSClient, userID string, out SearchOutcome) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("matching: marshal outcome for %s: %w", userID, err)
	}
	if err := nc.PublishMatchResult(userID, data); err != nil {
		return fmt.Errorf("matching: publish outcome for %s: %w", userID, err)
	}
	return nil
}

// PublishPairingEvent publishes a pairing lifecycle event to one user.
func PublishPairingEvent(nc *messaging.NATSClient, userID string, ev PairingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("matching: marshal pairing event for %s: %w", userID, err)
	}
	if err := nc.PublishPairingNotify(userID, data); err != nil {
		return fmt.Errorf("matching: publish pairing event for %s: %w", userID, err)
	}
	return nil
}

// publishPairingBoth sends the same lifecycle event to both participants,
// swapping the partner field for each side.
func publishPairingBoth(nc *messaging.NATSClient, userA, userB string, ev PairingEvent) {
	evA := ev
	evA.PartnerID = userB
	if err := PublishPairingEvent(nc, userA, evA); err != nil {
		log.Printf("[matcher] pairing notify %s: %v", userA, err)
	}

	evB := ev
	evB.PartnerID = userA
	if err := PublishPairingEvent(nc, userB, evB); err != nil {
		log.Printf("[matcher] pairing notify %s: %v", userB, err)
	}
}
