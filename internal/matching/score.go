// Package matching implements the peer-study matching engine: weighted
// complementary-skill scoring, timezone compatibility heuristics, ranked
// candidate search with rejection exclusion, and the stateful rematch
// session that steps through alternatives. The scoring core is pure and
// synchronous; Redis/NATS plumbing lives in the ledger and service files.
package matching

import (
	"fmt"
	"math"

	"github.com/peerfuse/match-app/internal/profile"
)

// ScoredCandidate is the result of scoring one candidate against a target.
// Produced fresh on every scoring pass, never persisted.
type ScoredCandidate struct {
	Candidate          profile.Record `json:"candidate"`
	Score              int            `json:"score"`
	ComplementaryCount int            `json:"complementary_count"`
	Reasons            []string       `json:"reasons"`
}

// Score computes the itemized match score between a target and a candidate.
// It is a pure function of the two records and the weight table: rules are
// evaluated in a fixed order, each independently additive, and each
// contributing rule appends one reason string.
//
// Rule order: availability, complementary skills (capped), the six
// preference equality bonuses, timezone, low-signal penalty.
func Score(target, candidate profile.Record, weights WeightTable) ScoredCandidate {
	var (
		score   float64
		factors int
		reasons []string
	)

	// 1. Availability: exact window equality is the strongest scheduling
	// signal.
	if profile.Norm(target.Availability) != "" &&
		profile.Norm(target.Availability) == profile.Norm(candidate.Availability) {
		score += float64(weights.Availability)
		factors++
		reasons = append(reasons, fmt.Sprintf("same availability: %s (+%d)",
			target.Availability, weights.Availability))
	}

	// 2. Complementary skills. Each cross-direction match adds CompPerMatch,
	// boosted 20% when both sides report struggling in that direction.
	// The cumulative contribution is capped; the raw count is not.
	compScore, compCount, compDetail := complementaryScore(target, candidate, weights)
	if compCount > 0 {
		capped := math.Min(compScore, CompCap)
		score += capped
		reasons = append(reasons, fmt.Sprintf("%d complementary skill(s): %s (+%d)",
			compCount, compDetail, int(math.Round(capped))))
	}

	// 3. Preference equality bonuses, each counted once.
	equality := []struct {
		a, b   string
		weight int
		label  string
	}{
		{target.PreferredMode, candidate.PreferredMode, weights.PreferredMode, "mode"},
		{target.PrimaryGoal, candidate.PrimaryGoal, weights.PrimaryGoal, "goal"},
		{target.PreferredFrequency, candidate.PreferredFrequency, weights.PreferredFrequency, "frequency"},
		{target.PartnerPreference, candidate.PartnerPreference, weights.PartnerPreference, "partner preference"},
		{target.SessionLength, candidate.SessionLength, weights.SessionLength, "session length"},
		{target.StudyPersonality, candidate.StudyPersonality, weights.StudyPersonality, "study style"},
	}
	for _, eq := range equality {
		if profile.Norm(eq.a) != "" && profile.Norm(eq.a) == profile.Norm(eq.b) {
			score += float64(eq.weight)
			factors++
			reasons = append(reasons, fmt.Sprintf("same %s: %s (+%d)", eq.label, eq.a, eq.weight))
		}
	}

	// 4. Timezone bonus or hard penalty. The misaligned near-offset case is
	// the one timezone outcome backed by the weight table.
	tz := EvaluateTimezones(
		ParseUTCOffset(target.TimeZone), ParseUTCOffset(candidate.TimeZone),
		target.Availability, candidate.Availability,
	)
	if tz.Bonus == tzNearOffsetBonus {
		tz.Bonus = weights.TimeZone
	}
	if tz.Bonus != 0 {
		score += float64(tz.Bonus)
		if tz.Bonus > 0 {
			factors++
			reasons = append(reasons, fmt.Sprintf("compatible timezones: %s / %s (+%d)",
				target.TimeZone, candidate.TimeZone, tz.Bonus))
		} else {
			reasons = append(reasons, fmt.Sprintf("timezones too far apart: %s / %s (%d)",
				target.TimeZone, candidate.TimeZone, tz.Bonus))
		}
	}

	// 5. Low-signal penalty: a single shared preference is statistically
	// weak evidence of compatibility. Complementary-skill matches do not
	// count toward the factor tally.
	if factors == 1 {
		score -= SingleFactorPenalty
		reasons = append(reasons, fmt.Sprintf("only one matching factor (-%d)", SingleFactorPenalty))
	}

	return ScoredCandidate{
		Candidate:          candidate,
		Score:              int(math.Round(score)),
		ComplementaryCount: compCount,
		Reasons:            reasons,
	}
}

// complementaryScore sums the cross-direction strength/weakness matches.
// Returns the uncapped point total, the raw match count, and a display
// string naming the matched topics.
func complementaryScore(target, candidate profile.Record, weights WeightTable) (float64, int, string) {
	tStrengths := profile.NormTopics(target.Strengths)
	tWeaknesses := profile.NormTopics(target.Weaknesses)
	cStrengths := profile.NormTopics(candidate.Strengths)
	cWeaknesses := profile.NormTopics(candidate.Weaknesses)

	tStrugglingStr, tStrugglingWeak := target.Struggling()
	cStrugglingStr, cStrugglingWeak := candidate.Struggling()

	var (
		total  float64
		count  int
		detail string
	)

	// Target's weaknesses covered by candidate's strengths.
	for _, weakness := range tWeaknesses {
		if contains(cStrengths, weakness) {
			points := float64(weights.CompPerMatch)
			// Both at a similar level in this direction: peer-learning bonus.
			if tStrugglingWeak && cStrugglingStr {
				points *= StrugglingMultiplier
			}
			total += points
			count++
			detail = appendDetail(detail, weakness+" (they teach)")
		}
	}

	// Candidate's weaknesses covered by target's strengths.
	for _, weakness := range cWeaknesses {
		if contains(tStrengths, weakness) {
			points := float64(weights.CompPerMatch)
			if cStrugglingWeak && tStrugglingStr {
				points *= StrugglingMultiplier
			}
			total += points
			count++
			detail = appendDetail(detail, weakness+" (you teach)")
		}
	}

	return total, count, detail
}

func contains(topics []string, topic string) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}

func appendDetail(detail, entry string) string {
	if detail == "" {
		return entry
	}
	return detail + ", " + entry
}
