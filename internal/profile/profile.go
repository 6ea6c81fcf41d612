// Package profile defines the canonical study-profile record consumed by the
// matching engine, plus the normalization step that converts the two store
// formats (legacy individual strength1/strength2 fields vs. array fields)
// into that canonical shape. The matching engine only ever sees normalized
// records.
package profile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProfile indicates a profile is missing a field required for
// matching (non-empty strengths and weaknesses). It is returned for the
// target profile only; invalid candidates are simply unmatchable.
var ErrInvalidProfile = errors.New("profile: invalid profile")

// QuizPerformance holds the self-assessment quiz flags used to adjust
// complementary-skill scoring. Absence of a quiz is treated as both false.
type QuizPerformance struct {
	StrugglingInStrengths  bool `json:"struggling_in_strengths"`
	StrugglingInWeaknesses bool `json:"struggling_in_weaknesses"`
}

// Record is the canonical user profile. The matching engine treats it as
// read-only; all mutation happens at the store boundary.
type Record struct {
	ID                 string           `json:"id"`
	DisplayName        string           `json:"display_name"`
	Strengths          []string         `json:"strengths"`
	Weaknesses         []string         `json:"weaknesses"`
	Availability       string           `json:"availability"`
	TimeZone           string           `json:"time_zone"` // "UTC±HH:MM (region)"
	PreferredMode      string           `json:"preferred_mode"`
	PrimaryGoal        string           `json:"primary_goal"`
	PreferredFrequency string           `json:"preferred_frequency"`
	PartnerPreference  string           `json:"partner_preference"`
	SessionLength      string           `json:"session_length"`
	StudyPersonality   string           `json:"study_personality"`
	Quiz               *QuizPerformance `json:"quiz,omitempty"`
}

// RawRecord is the profile shape as it may arrive from older clients or
// store entries: strengths/weaknesses either as arrays or as individual
// numbered fields, and the display name under either "name" or "username".
type RawRecord struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Username           string           `json:"username"`
	Strengths          []string         `json:"strengths"`
	Weaknesses         []string         `json:"weaknesses"`
	Strength1          string           `json:"strength1"`
	Strength2          string           `json:"strength2"`
	Weakness1          string           `json:"weakness1"`
	Weakness2          string           `json:"weakness2"`
	Availability       string           `json:"availability"`
	TimeZone           string           `json:"timeZone"`
	PreferredMode      string           `json:"preferredMode"`
	PrimaryGoal        string           `json:"primaryGoal"`
	PreferredFrequency string           `json:"preferredFrequency"`
	PartnerPreference  string           `json:"partnerPreference"`
	SessionLength      string           `json:"sessionLength"`
	StudyPersonality   string           `json:"studyPersonality"`
	Quiz               *QuizPerformance `json:"preQuizResults,omitempty"`
}

// Norm lowercases and trims a value for comparison. All equality checks in
// the matching engine go through this.
func Norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormTopics normalizes a topic list: each entry lowercased and trimmed,
// empty entries dropped, insertion order kept. Duplicates are NOT removed:
// the store may legitimately hold the same topic twice and scoring counts
// them as stored.
func NormTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if n := Norm(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Normalize converts a raw store entry into a canonical Record. Array fields
// win when present; otherwise the numbered legacy fields are collected in
// order. Topic values are trimmed but keep their stored casing; comparison
// normalizes again, display does not.
func (r *RawRecord) Normalize() Record {
	strengths := r.Strengths
	if len(strengths) == 0 {
		strengths = collectLegacy(r.Strength1, r.Strength2)
	}
	weaknesses := r.Weaknesses
	if len(weaknesses) == 0 {
		weaknesses = collectLegacy(r.Weakness1, r.Weakness2)
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = strings.TrimSpace(r.Username)
	}

	return Record{
		ID:                 strings.TrimSpace(r.ID),
		DisplayName:        name,
		Strengths:          trimTopics(strengths),
		Weaknesses:         trimTopics(weaknesses),
		Availability:       strings.TrimSpace(r.Availability),
		TimeZone:           strings.TrimSpace(r.TimeZone),
		PreferredMode:      strings.TrimSpace(r.PreferredMode),
		PrimaryGoal:        strings.TrimSpace(r.PrimaryGoal),
		PreferredFrequency: strings.TrimSpace(r.PreferredFrequency),
		PartnerPreference:  strings.TrimSpace(r.PartnerPreference),
		SessionLength:      strings.TrimSpace(r.SessionLength),
		StudyPersonality:   strings.TrimSpace(r.StudyPersonality),
		Quiz:               r.Quiz,
	}
}

func collectLegacy(fields ...string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

func trimTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks that the record can act as a matching target. Candidates
// with empty skill lists are filtered naturally (zero complementary skills);
// a target without them cannot be scored at all.
func (r *Record) Validate() error {
	if len(NormTopics(r.Strengths)) == 0 {
		return fmt.Errorf("%w: strengths missing or empty", ErrInvalidProfile)
	}
	if len(NormTopics(r.Weaknesses)) == 0 {
		return fmt.Errorf("%w: weaknesses missing or empty", ErrInvalidProfile)
	}
	return nil
}

// Key returns the identity used for self-exclusion: the ID when present,
// otherwise the normalized display name. The original store keyed some
// entries by username only.
func (r *Record) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return Norm(r.DisplayName)
}

// Struggling reports the quiz flags, treating a missing quiz as all-false.
func (r *Record) Struggling() (inStrengths, inWeaknesses bool) {
	if r.Quiz == nil {
		return false, false
	}
	return r.Quiz.StrugglingInStrengths, r.Quiz.StrugglingInWeaknesses
}
