package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/peerfuse/match-app/internal/matching"
	"github.com/peerfuse/match-app/internal/profile"
)

var rootCmd = &cobra.Command{
	Use:   "peerctl",
	Short: "Operator tool for the PeerFuse matching engine",
	Long: `peerctl scores profile pairs offline, runs pool simulations for
weight tuning, and prints the effective scoring weights.

Examples:
  peerctl score alice.json bob.json
  peerctl simulate --users 500 --seed 42
  peerctl weights --weights weights.toml`,
	SilenceUsage: true,
}

// loadWeightsFlag resolves the --weights flag into a weight table, falling
// back to defaults when the flag is unset.
func loadWeightsFlag(cmd *cobra.Command) (matching.WeightTable, error) {
	path, _ := cmd.Flags().GetString("weights")
	if path == "" {
		return matching.DefaultWeights(), nil
	}
	return matching.LoadWeights(path)
}

// loadProfile reads and normalizes a profile JSON file. The file may use the
// legacy numbered-field shape or the array shape.
func loadProfile(path string) (profile.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return profile.Record{}, err
	}

	var raw profile.RawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return profile.Record{}, fmt.Errorf("parse %s: %w", path, err)
	}

	rec := raw.Normalize()
	if err := rec.Validate(); err != nil {
		return profile.Record{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// --- score ---

var scoreCmd = &cobra.Command{
	Use:   "score <a.json> <b.json>",
	Short: "Score two profiles against each other",
	Long: `Score two profiles against each other and print the itemized
breakdown. Scoring is symmetric, so the order of the arguments does not
change the result.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		weights, err := loadWeightsFlag(cmd)
		if err != nil {
			return err
		}

		a, err := loadProfile(args[0])
		if err != nil {
			return err
		}
		b, err := loadProfile(args[1])
		if err != nil {
			return err
		}

		sc := matching.Score(a, b, weights)
		tier := matching.Classify(sc.Score)

		fmt.Printf("%s <-> %s\n\n", a.DisplayName, b.DisplayName)
		fmt.Printf("Score:         %d\n", sc.Score)
		fmt.Printf("Tier:          %s %s\n", tier.Emoji, tier.Label)
		fmt.Printf("Comp matches:  %d\n", sc.ComplementaryCount)
		if sc.ComplementaryCount == 0 {
			fmt.Println("\nNote: pairs with no complementary skills are filtered out of live results.")
		}
		fmt.Println("\nBreakdown:")
		for _, reason := range sc.Reasons {
			fmt.Printf("  - %s\n", reason)
		}
		return nil
	},
}

// --- simulate ---

// Option pools mirror the profile form choices in the browser client.
var (
	simSubjects = []string{
		"Math", "Physics", "Chemistry", "Biology", "Computer Science",
		"English", "History", "Economics", "Statistics", "Data Structures",
		"Algorithms", "Calculus", "Linear Algebra", "Psychology", "Philosophy",
	}
	simAvailability = []string{"6AM-10AM", "10AM-2PM", "2PM-6PM", "6PM-10PM", "Late night (10PM+)"}
	simModes        = []string{"Online Meeting (Video)", "Chat Only", "In-Person", "Hybrid"}
	simGoals        = []string{"Clear basics", "Improve internals", "Prepare for semester end exams", "Project collaboration", "Other"}
	simFrequencies  = []string{"Once a week", "2-3 times a week", "Monthly once", "As needed"}
	simLengths      = []string{"30 minutes", "1 hour", "1-2 hours", "2+ hours", "Flexible"}
	simPartnerPrefs = []string{"Same year/level", "Senior student", "Junior student", "No preference"}
	simTimezones    = []string{"UTC-08:00", "UTC-05:00", "UTC+00:00", "UTC+01:00", "UTC+05:30", "UTC+08:00"}
	simPersonality  = []string{"Focused & Structured", "Casual & Flexible", "Competitive", "Collaborative", "Independent learner"}
)

// randomProfile generates one plausible profile: 1-2 strengths, 1-2
// non-overlapping weaknesses, one choice from each preference pool.
func randomProfile(rng *rand.Rand, id int) profile.Record {
	perm := rng.Perm(len(simSubjects))
	nStrengths := 1 + rng.Intn(2)
	nWeaknesses := 1 + rng.Intn(2)

	var strengths, weaknesses []string
	for _, idx := range perm[:nStrengths] {
		strengths = append(strengths, simSubjects[idx])
	}
	for _, idx := range perm[nStrengths : nStrengths+nWeaknesses] {
		weaknesses = append(weaknesses, simSubjects[idx])
	}

	raw := profile.RawRecord{
		ID:                 strconv.Itoa(id),
		Name:               fmt.Sprintf("User%d", id),
		Strengths:          strengths,
		Weaknesses:         weaknesses,
		Availability:       simAvailability[rng.Intn(len(simAvailability))],
		PreferredMode:      simModes[rng.Intn(len(simModes))],
		PrimaryGoal:        simGoals[rng.Intn(len(simGoals))],
		PreferredFrequency: simFrequencies[rng.Intn(len(simFrequencies))],
		SessionLength:      simLengths[rng.Intn(len(simLengths))],
		PartnerPreference:  simPartnerPrefs[rng.Intn(len(simPartnerPrefs))],
		TimeZone:           simTimezones[rng.Intn(len(simTimezones))],
		StudyPersonality:   simPersonality[rng.Intn(len(simPersonality))],
	}
	return raw.Normalize()
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate matching over a random user pool",
	Long: `Generate a random pool of user profiles, score every pair, apply
the complementary-skill hard filter, and print the score distribution. Used
for comparing weight configurations before deploying them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		weights, err := loadWeightsFlag(cmd)
		if err != nil {
			return err
		}
		users, _ := cmd.Flags().GetInt("users")
		seed, _ := cmd.Flags().GetInt64("seed")

		rng := rand.New(rand.NewSource(seed))
		pool := make([]profile.Record, users)
		for i := range pool {
			pool[i] = randomProfile(rng, i+1)
		}

		var scores []int
		var compTotal int
		for i := 0; i < len(pool); i++ {
			for j := i + 1; j < len(pool); j++ {
				sc := matching.Score(pool[i], pool[j], weights)
				if sc.ComplementaryCount == 0 {
					continue
				}
				scores = append(scores, sc.Score)
				compTotal += sc.ComplementaryCount
			}
		}
		if len(scores) == 0 {
			return fmt.Errorf("no scorable pairs in a pool of %d users", users)
		}

		sort.Sort(sort.Reverse(sort.IntSlice(scores)))

		var sum int
		tiers := map[string]int{}
		for _, s := range scores {
			sum += s
			tiers[matching.Classify(s).Label]++
		}

		n := len(scores)
		pct := func(c int) float64 { return float64(c) / float64(n) * 100 }

		fmt.Printf("Pool: %d users, %d scorable pairs (seed %d)\n\n", users, n, seed)
		fmt.Printf("Average score:   %.1f\n", float64(sum)/float64(n))
		fmt.Printf("Median score:    %d\n", scores[n/2])
		fmt.Printf("Highest score:   %d\n", scores[0])
		fmt.Printf("Lowest score:    %d\n", scores[n-1])
		fmt.Printf("Avg comp skills: %.2f\n\n", float64(compTotal)/float64(n))

		fmt.Println("Tier distribution:")
		for _, label := range []string{"Excellent Match", "Great Match", "Good Match", "Fair Match", "Low Match"} {
			fmt.Printf("  %-16s %6d  (%.1f%%)\n", label, tiers[label], pct(tiers[label]))
		}
		return nil
	},
}

// --- weights ---

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Print the effective scoring weight table",
	RunE: func(cmd *cobra.Command, args []string) error {
		weights, err := loadWeightsFlag(cmd)
		if err != nil {
			return err
		}

		fmt.Println("Scoring weights:")
		fmt.Printf("  availability         %d\n", weights.Availability)
		fmt.Printf("  comp_per_match       %d\n", weights.CompPerMatch)
		fmt.Printf("  preferred_mode       %d\n", weights.PreferredMode)
		fmt.Printf("  primary_goal         %d\n", weights.PrimaryGoal)
		fmt.Printf("  preferred_frequency  %d\n", weights.PreferredFrequency)
		fmt.Printf("  partner_preference   %d\n", weights.PartnerPreference)
		fmt.Printf("  session_length       %d\n", weights.SessionLength)
		fmt.Printf("  time_zone            %d\n", weights.TimeZone)
		fmt.Printf("  study_personality    %d\n", weights.StudyPersonality)
		fmt.Println("\nFixed constants:")
		fmt.Printf("  comp_cap               %d\n", matching.CompCap)
		fmt.Printf("  struggling_multiplier  %.1f\n", matching.StrugglingMultiplier)
		fmt.Printf("  single_factor_penalty  -%d\n", matching.SingleFactorPenalty)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{scoreCmd, simulateCmd, weightsCmd} {
		cmd.Flags().String("weights", "", "path to a TOML weight table")
	}
	simulateCmd.Flags().Int("users", 500, "number of random users in the pool")
	simulateCmd.Flags().Int64("seed", 42, "random seed for reproducible pools")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(weightsCmd)
}
