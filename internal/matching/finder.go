package matching

import (
	"fmt"
	"sort"

	"github.com/peerfuse/match-app/internal/profile"
)

// Find result statuses. Empty results are an expected outcome, not an error.
const (
	StatusOK        = "ok"
	StatusNoMatches = "no_matches"
)

// DefaultLimit is the maximum number of ranked matches returned when the
// caller does not specify one.
const DefaultLimit = 10

// FindResult is the outcome of one ranked search over a candidate pool.
type FindResult struct {
	Status  string            `json:"status"` // ok | no_matches
	Matches []ScoredCandidate `json:"matches"`
	Message string            `json:"message,omitempty"`
}

// Finder runs ranked, filtered searches over candidate pools with a fixed
// weight table.
type Finder struct {
	weights WeightTable
}

// NewFinder creates a Finder using the given weight table.
func NewFinder(weights WeightTable) *Finder {
	return &Finder{weights: weights}
}

// Weights returns the finder's weight table.
func (f *Finder) Weights() WeightTable {
	return f.weights
}

// Find filters, scores, and ranks a candidate pool for the target user.
//
// Candidates are dropped when they are the target (by ID or normalized
// display name), appear in rejectedIDs, or share zero complementary skills
// with the target: complementary exchange is the product's core promise, so
// a pair with no overlap has no pedagogical basis regardless of other
// affinities. Survivors are sorted by score descending; ties break by
// complementary count descending, then lexical candidate ID, so rankings are
// deterministic regardless of pool order. The result is truncated to limit
// (DefaultLimit when limit <= 0).
//
// Find fails only for an invalid target profile; an empty outcome is
// reported through the no_matches status.
func (f *Finder) Find(target profile.Record, candidates []profile.Record, rejectedIDs []string, limit int) (FindResult, error) {
	if err := target.Validate(); err != nil {
		return FindResult{}, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	if len(candidates) == 0 {
		return FindResult{
			Status:  StatusNoMatches,
			Matches: []ScoredCandidate{},
			Message: "no other users have profiles yet",
		}, nil
	}

	rejected := make(map[string]bool, len(rejectedIDs))
	for _, id := range rejectedIDs {
		rejected[id] = true
	}

	targetKey := target.Key()
	targetName := profile.Norm(target.DisplayName)

	scored := make([]ScoredCandidate, 0, len(candidates))
	excluded := 0
	for _, candidate := range candidates {
		if candidate.Key() == targetKey ||
			(targetName != "" && profile.Norm(candidate.DisplayName) == targetName) {
			continue
		}
		if rejected[candidate.Key()] {
			excluded++
			continue
		}

		sc := Score(target, candidate, f.weights)
		if sc.ComplementaryCount == 0 {
			continue
		}
		scored = append(scored, sc)
	}

	if len(scored) == 0 {
		msg := "no compatible study partners found, nobody in the pool can trade skills with you"
		if excluded > 0 {
			msg = fmt.Sprintf("no compatible study partners left after excluding %d rejected match(es)", excluded)
		}
		return FindResult{Status: StatusNoMatches, Matches: []ScoredCandidate{}, Message: msg}, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].ComplementaryCount != scored[j].ComplementaryCount {
			return scored[i].ComplementaryCount > scored[j].ComplementaryCount
		}
		return scored[i].Candidate.Key() < scored[j].Candidate.Key()
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	return FindResult{Status: StatusOK, Matches: scored}, nil
}

// QualityTier is presentational metadata derived from a score.
type QualityTier struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Emoji string `json:"emoji"`
}

// Quality tier score thresholds.
const (
	tierExcellent = 150
	tierGreat     = 120
	tierGood      = 100
	tierFair      = 80
)

// Classify maps a score to its quality tier. Pure lookup, no side effects.
func Classify(score int) QualityTier {
	switch {
	case score >= tierExcellent:
		return QualityTier{Label: "Excellent Match", Color: "#16a34a", Emoji: "🌟"}
	case score >= tierGreat:
		return QualityTier{Label: "Great Match", Color: "#0d9488", Emoji: "✨"}
	case score >= tierGood:
		return QualityTier{Label: "Good Match", Color: "#2563eb", Emoji: "👍"}
	case score >= tierFair:
		return QualityTier{Label: "Fair Match", Color: "#d97706", Emoji: "🤝"}
	default:
		return QualityTier{Label: "Low Match", Color: "#6b7280", Emoji: "🌱"}
	}
}
