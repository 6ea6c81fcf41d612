package profile

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalize_ArrayFieldsWin(t *testing.T) {
	raw := RawRecord{
		ID:         "u1",
		Name:       "Alice",
		Strengths:  []string{"Math", "Physics"},
		Weaknesses: []string{"History"},
		Strength1:  "Biology", // legacy fields ignored when arrays present
		Weakness1:  "English",
	}

	rec := raw.Normalize()
	if len(rec.Strengths) != 2 || rec.Strengths[0] != "Math" {
		t.Errorf("unexpected strengths: %v", rec.Strengths)
	}
	if len(rec.Weaknesses) != 1 || rec.Weaknesses[0] != "History" {
		t.Errorf("unexpected weaknesses: %v", rec.Weaknesses)
	}
}

func TestNormalize_LegacyNumberedFields(t *testing.T) {
	raw := RawRecord{
		ID:        "u1",
		Name:      "Alice",
		Strength1: "Math",
		Strength2: "Physics",
		Weakness1: "History",
		// Weakness2 left empty: collected fields skip blanks.
	}

	rec := raw.Normalize()
	if len(rec.Strengths) != 2 {
		t.Errorf("expected 2 strengths from legacy fields, got %v", rec.Strengths)
	}
	if len(rec.Weaknesses) != 1 || rec.Weaknesses[0] != "History" {
		t.Errorf("expected [History], got %v", rec.Weaknesses)
	}
}

func TestNormalize_NameFallsBackToUsername(t *testing.T) {
	raw := RawRecord{ID: "u1", Username: "alice42"}
	if got := raw.Normalize().DisplayName; got != "alice42" {
		t.Errorf("expected username fallback, got %q", got)
	}

	raw = RawRecord{ID: "u1", Name: "  Alice  ", Username: "alice42"}
	if got := raw.Normalize().DisplayName; got != "Alice" {
		t.Errorf("expected trimmed name to win, got %q", got)
	}
}

func TestNormalize_KeepsStoredCasing(t *testing.T) {
	raw := RawRecord{ID: "u1", Strengths: []string{"  Linear Algebra  "}}
	rec := raw.Normalize()
	// Display keeps casing; only comparison normalizes.
	if rec.Strengths[0] != "Linear Algebra" {
		t.Errorf("expected trimmed original casing, got %q", rec.Strengths[0])
	}
}

func TestNormalize_CamelCaseJSON(t *testing.T) {
	data := []byte(`{
		"id": "u1",
		"name": "Alice",
		"strengths": ["Math"],
		"weaknesses": ["History"],
		"preferredMode": "Hybrid",
		"timeZone": "UTC+05:30 (India)",
		"preQuizResults": {"struggling_in_strengths": true}
	}`)

	var raw RawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	rec := raw.Normalize()
	if rec.PreferredMode != "Hybrid" {
		t.Errorf("preferredMode not mapped: %q", rec.PreferredMode)
	}
	if rec.TimeZone != "UTC+05:30 (India)" {
		t.Errorf("timeZone not mapped: %q", rec.TimeZone)
	}
	inStr, _ := rec.Struggling()
	if !inStr {
		t.Error("quiz flags not carried through")
	}
}

func TestValidate(t *testing.T) {
	valid := Record{ID: "u1", Strengths: []string{"Math"}, Weaknesses: []string{"History"}}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cases := []Record{
		{ID: "u1", Weaknesses: []string{"History"}},
		{ID: "u1", Strengths: []string{"Math"}},
		{ID: "u1", Strengths: []string{"  "}, Weaknesses: []string{"History"}},
	}
	for i, rec := range cases {
		if err := rec.Validate(); !errors.Is(err, ErrInvalidProfile) {
			t.Errorf("case %d: expected ErrInvalidProfile, got %v", i, err)
		}
	}
}

func TestKey(t *testing.T) {
	withID := Record{ID: "u1", DisplayName: "Alice"}
	if withID.Key() != "u1" {
		t.Errorf("expected ID key, got %q", withID.Key())
	}

	nameOnly := Record{DisplayName: "  Alice Chen "}
	if nameOnly.Key() != "alice chen" {
		t.Errorf("expected normalized name key, got %q", nameOnly.Key())
	}
}

func TestNormTopics(t *testing.T) {
	got := NormTopics([]string{"  Math ", "", "PHYSICS", "math"})
	want := []string{"math", "physics", "math"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestStruggling_NilQuiz(t *testing.T) {
	rec := Record{}
	inStr, inWeak := rec.Struggling()
	if inStr || inWeak {
		t.Error("missing quiz must read as all-false")
	}
}
