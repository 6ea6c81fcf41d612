// Package protocol defines the WebSocket message types and structures used for
// communication between the browser client and the gateway. All messages are
// serialized as JSON and follow a consistent envelope format with a type
// discriminator.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/peerfuse/match-app/internal/matching"
	"github.com/peerfuse/match-app/internal/profile"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeSaveProfile    = "save_profile"
	TypeFindMatch      = "find_match"
	TypeNextMatch      = "next_match"
	TypeRejectMatch    = "reject_match"
	TypeResetSearch    = "reset_search"
	TypeRequestPairing = "request_pairing"
	TypeAcceptPairing  = "accept_pairing"
	TypeDeclinePairing = "decline_pairing"
	TypeFeedback       = "feedback"
	TypePing           = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated   = "session_created"
	TypeProfileSaved     = "profile_saved"
	TypeSearchStarted    = "search_started"
	TypeMatchResult      = "match_result"
	TypePairingProposed  = "pairing_proposed"
	TypePairingActive    = "pairing_active"
	TypePairingDeclined  = "pairing_declined"
	TypePairingTimeout   = "pairing_timeout"
	TypeFeedbackSaved    = "feedback_saved"
	TypeRateLimited      = "rate_limited"
	TypeError            = "error"
	TypePong             = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// SaveProfileMsg is sent by the client to create or update the user's study
// profile. The payload may arrive in the legacy numbered-field shape; the
// gateway normalizes it before it reaches storage.
type SaveProfileMsg struct {
	Type    string            `json:"type"`
	Profile profile.RawRecord `json:"profile"`
}

// FindMatchMsg is sent by the client to start (or restart) a ranked search.
type FindMatchMsg struct {
	Type  string `json:"type"`
	Limit int    `json:"limit,omitempty"`
}

// NextMatchMsg is sent by the client to step to the next ranked candidate.
type NextMatchMsg struct {
	Type string `json:"type"`
}

// RejectMatchMsg is sent by the client to decline a candidate and re-run the
// search without them.
type RejectMatchMsg struct {
	Type        string `json:"type"`
	CandidateID string `json:"candidate_id"`
}

// ResetSearchMsg is sent by the client to clear the rejection ledger and
// start over.
type ResetSearchMsg struct {
	Type string `json:"type"`
}

// RequestPairingMsg is sent by the client to propose a study session with the
// currently displayed candidate.
type RequestPairingMsg struct {
	Type      string `json:"type"`
	PartnerID string `json:"partner_id"`
}

// AcceptPairingMsg is sent by the client to accept a proposed pairing.
type AcceptPairingMsg struct {
	Type      string `json:"type"`
	PairingID string `json:"pairing_id"`
}

// DeclinePairingMsg is sent by the client to decline a proposed pairing.
type DeclinePairingMsg struct {
	Type      string `json:"type"`
	PairingID string `json:"pairing_id"`
}

// FeedbackMsg is sent by the client after a study session ends.
type FeedbackMsg struct {
	Type      string `json:"type"`
	PairingID string `json:"pairing_id"`
	Rating    int    `json:"rating"`
	Comments  string `json:"comments"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent by the server when a connection is established.
type SessionCreatedMsg struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// ProfileSavedMsg confirms a profile write.
type ProfileSavedMsg struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// SearchStartedMsg confirms the search request was forwarded to the matcher.
type SearchStartedMsg struct {
	Type string `json:"type"`
}

// MatchResultMsg carries the current state of the user's search: the
// candidate at the cursor with its quality tier, or the no-match/exhausted
// outcome. Status values mirror the matcher: "ok", "no_matches",
// "exhausted".
type MatchResultMsg struct {
	Type    string                    `json:"type"`
	Status  string                    `json:"status"`
	Rank    int                       `json:"rank,omitempty"`  // 0-based position in the ranked list
	Total   int                       `json:"total,omitempty"` // size of the ranked list
	Match   *matching.ScoredCandidate `json:"match,omitempty"`
	Tier    *matching.QualityTier     `json:"tier,omitempty"`
	Message string                    `json:"message,omitempty"`
}

// PairingProposedMsg tells a user a study pairing awaits their acceptance.
type PairingProposedMsg struct {
	Type           string `json:"type"`
	PairingID      string `json:"pairing_id"`
	PartnerID      string `json:"partner_id"`
	PartnerName    string `json:"partner_name,omitempty"`
	AcceptDeadline int    `json:"accept_deadline"` // seconds
}

// PairingActiveMsg is sent when both sides accepted; the meeting room is
// ready.
type PairingActiveMsg struct {
	Type          string `json:"type"`
	PairingID     string `json:"pairing_id"`
	MeetingRoomID string `json:"meeting_room_id"`
}

// PairingDeclinedMsg is sent when the partner declined the pairing.
type PairingDeclinedMsg struct {
	Type      string `json:"type"`
	PairingID string `json:"pairing_id"`
}

// PairingTimeoutMsg is sent when the accept deadline expired.
type PairingTimeoutMsg struct {
	Type      string `json:"type"`
	PairingID string `json:"pairing_id"`
}

// FeedbackSavedMsg confirms a feedback write.
type FeedbackSavedMsg struct {
	Type string `json:"type"`
}

// RateLimitedMsg is sent when the client has been rate-limited.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeSaveProfile:
		var m SaveProfileMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeFindMatch:
		var m FindMatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeNextMatch:
		var m NextMatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRejectMatch:
		var m RejectMatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeResetSearch:
		var m ResetSearchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRequestPairing:
		var m RequestPairingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeAcceptPairing:
		var m AcceptPairingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeDeclinePairing:
		var m DeclinePairingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeFeedback:
		var m FeedbackMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
