package main

import (
	"math/rand"
	"testing"
)

func TestRandomProfile_IsScorable(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		rec := randomProfile(rng, i+1)
		if err := rec.Validate(); err != nil {
			t.Fatalf("generated profile %d invalid: %v", i+1, err)
		}

		// Strengths and weaknesses are drawn from disjoint slots of the
		// same permutation, so a subject never appears on both sides.
		seen := map[string]bool{}
		for _, s := range rec.Strengths {
			seen[s] = true
		}
		for _, w := range rec.Weaknesses {
			if seen[w] {
				t.Fatalf("profile %d has %q as both strength and weakness", i+1, w)
			}
		}
	}
}

func TestRandomProfile_DeterministicForSeed(t *testing.T) {
	a := randomProfile(rand.New(rand.NewSource(42)), 1)
	b := randomProfile(rand.New(rand.NewSource(42)), 1)

	if a.Availability != b.Availability || a.TimeZone != b.TimeZone {
		t.Error("same seed should generate the same profile")
	}
	if len(a.Strengths) != len(b.Strengths) {
		t.Error("same seed should generate the same skill lists")
	}
}

func TestWeightsCommand(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"weights"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("weights command failed: %v", err)
	}
}

func TestSimulateCommand_SmallPool(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"simulate", "--users", "30", "--seed", "7"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("simulate command failed: %v", err)
	}
}
