package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseClientMessage_FindMatch(t *testing.T) {
	data := []byte(`{"type":"find_match","limit":5}`)

	msgType, msg, err := ParseClientMessage(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeFindMatch {
		t.Errorf("expected type %q, got %q", TypeFindMatch, msgType)
	}

	find, ok := msg.(FindMatchMsg)
	if !ok {
		t.Fatalf("expected FindMatchMsg, got %T", msg)
	}
	if find.Limit != 5 {
		t.Errorf("limit not decoded: %d", find.Limit)
	}
}

func TestParseClientMessage_SaveProfileLegacyShape(t *testing.T) {
	data := []byte(`{
		"type": "save_profile",
		"profile": {
			"name": "Alice",
			"strength1": "Math",
			"strength2": "Physics",
			"weakness1": "History",
			"preferredMode": "Hybrid"
		}
	}`)

	_, msg, err := ParseClientMessage(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	save, ok := msg.(SaveProfileMsg)
	if !ok {
		t.Fatalf("expected SaveProfileMsg, got %T", msg)
	}

	rec := save.Profile.Normalize()
	if len(rec.Strengths) != 2 || len(rec.Weaknesses) != 1 {
		t.Errorf("legacy fields not normalized: %+v", rec)
	}
	if rec.PreferredMode != "Hybrid" {
		t.Errorf("preferredMode lost: %q", rec.PreferredMode)
	}
}

func TestParseClientMessage_RejectMatch(t *testing.T) {
	data := []byte(`{"type":"reject_match","candidate_id":"u42"}`)

	_, msg, err := ParseClientMessage(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reject := msg.(RejectMatchMsg)
	if reject.CandidateID != "u42" {
		t.Errorf("candidate_id not decoded: %q", reject.CandidateID)
	}
}

func TestParseClientMessage_UnknownType(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{"type":"launch_rockets"}`))
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "launch_rockets") {
		t.Errorf("error should name the offending type: %v", err)
	}
}

func TestParseClientMessage_MissingType(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{"limit":5}`)); err == nil {
		t.Error("expected error for missing type field")
	}
}

func TestParseClientMessage_InvalidJSON(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseClientMessage_ServerOnlyTypeRejected(t *testing.T) {
	if _, _, err := ParseClientMessage([]byte(`{"type":"match_result"}`)); err == nil {
		t.Error("server-only types must not parse as client messages")
	}
}

func TestNewServerMessage_InjectsType(t *testing.T) {
	data, err := NewServerMessage(TypeSessionCreated, SessionCreatedMsg{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["type"] != TypeSessionCreated {
		t.Errorf("type not injected: %v", decoded["type"])
	}
	if decoded["user_id"] != "u1" {
		t.Errorf("payload field lost: %v", decoded["user_id"])
	}
}

func TestNewServerMessage_TypeOverridesPayload(t *testing.T) {
	// A payload struct carrying its own type field must not win over the
	// explicit argument.
	data, err := NewServerMessage(TypePong, ErrorMsg{Type: "error", Code: "x", Message: "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != TypePong {
		t.Errorf("explicit type must win, got %v", decoded["type"])
	}
}
