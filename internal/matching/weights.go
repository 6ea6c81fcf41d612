package matching

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// WeightTable holds the additive score contribution of each matching factor.
// A zero value for a factor disables it. Weights are always passed explicitly
// into scoring so tests and the simulator can override them deterministically.
type WeightTable struct {
	Availability       int `toml:"availability"`
	CompPerMatch       int `toml:"comp_per_match"`
	PreferredMode      int `toml:"preferred_mode"`
	PrimaryGoal        int `toml:"primary_goal"`
	PreferredFrequency int `toml:"preferred_frequency"`
	PartnerPreference  int `toml:"partner_preference"`
	SessionLength      int `toml:"session_length"`
	TimeZone           int `toml:"time_zone"`
	StudyPersonality   int `toml:"study_personality"`
}

// Fixed scoring constants that are not part of the weight table.
const (
	// CompCap bounds the cumulative complementary-skill contribution.
	// Matches beyond the cap still count toward ComplementaryCount.
	CompCap = 80

	// StrugglingMultiplier boosts a complementary match when both sides
	// self-report struggling in the complementary direction (peer-level
	// learning). Applied per direction independently.
	StrugglingMultiplier = 1.2

	// SingleFactorPenalty is subtracted when exactly one distinct factor
	// contributed; a lone shared attribute is weak evidence.
	SingleFactorPenalty = 50
)

// DefaultWeights returns the production weight table.
func DefaultWeights() WeightTable {
	return WeightTable{
		Availability:       100,
		CompPerMatch:       30,
		PreferredMode:      8,
		PrimaryGoal:        6,
		PreferredFrequency: 6,
		PartnerPreference:  4,
		SessionLength:      4,
		TimeZone:           3,
		StudyPersonality:   3,
	}
}

// LoadWeights reads a weight table from a TOML file. Factors absent from the
// file keep their default value.
func LoadWeights(path string) (WeightTable, error) {
	w := DefaultWeights()
	if _, err := toml.DecodeFile(path, &w); err != nil {
		return WeightTable{}, fmt.Errorf("matching: load weights %s: %w", path, err)
	}
	return w, nil
}
