package matching

import (
	"math"
	"strconv"
	"strings"

	"github.com/peerfuse/match-app/internal/profile"
)

// TimezoneResult is the outcome of a timezone compatibility check between
// two profiles.
type TimezoneResult struct {
	Compatible bool
	Bonus      int
}

// Timezone bonus/penalty constants.
const (
	tzSameOffsetBonus   = 10
	tzAlignedHoursBonus = 8
	tzNearOffsetBonus   = 3
	tzHardPenalty       = -500

	// tzHardLimit is the offset gap (in hours) beyond which live sessions
	// are considered unworkable regardless of stated availability.
	tzHardLimit = 12

	// tzNearLimit is the offset gap up to which availability windows are
	// compared hour-by-hour.
	tzNearLimit = 3
)

// windowHours maps each normalized availability window to a representative
// hour of day used for cross-timezone comparison.
var windowHours = map[string]int{
	"6am-10am":             8,
	"10am-2pm":             12,
	"2pm-6pm":              16,
	"6pm-10pm":             20,
	"late night (10pm+)":   23,
	"late night":           23,
}

// middayHour is the fallback for unrecognized availability values.
const middayHour = 12

// ParseUTCOffset extracts the signed hour offset from a timezone string of
// the form "UTC±HH:MM (region)". Only the offset carries meaning; the region
// is display-only. Unparsable input defaults to 0 rather than failing, so
// profiles with garbage timezones still get a match attempt.
func ParseUTCOffset(tz string) float64 {
	s := strings.TrimSpace(tz)
	idx := strings.Index(strings.ToUpper(s), "UTC")
	if idx < 0 {
		return 0
	}
	s = s[idx+3:]
	if cut := strings.IndexByte(s, ' '); cut >= 0 {
		s = s[:cut]
	}
	if s == "" {
		return 0
	}

	sign := 1.0
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}

	hourPart, minPart, hasMin := strings.Cut(s, ":")
	hours, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0
	}
	offset := float64(hours)
	if hasMin {
		if mins, err := strconv.Atoi(minPart); err == nil {
			offset += float64(mins) / 60
		}
	}
	return sign * offset
}

// EvaluateTimezones computes the compatibility class and score bonus for two
// offset/availability pairs.
//
// Offsets 12+ hours apart get a hard penalty rather than a hard filter: the
// pair remains scorable but ranking pushes it out of sight. Close offsets
// (≤3h) are judged by whether the two availability windows line up after
// shifting, because window alignment matters more than raw offset once the
// zones are near each other.
func EvaluateTimezones(offsetA, offsetB float64, availA, availB string) TimezoneResult {
	diff := math.Abs(offsetA - offsetB)

	switch {
	case diff >= tzHardLimit:
		return TimezoneResult{Compatible: false, Bonus: tzHardPenalty}
	case diff == 0:
		return TimezoneResult{Compatible: true, Bonus: tzSameOffsetBonus}
	case diff <= tzNearLimit:
		hourA := windowHour(availA)
		hourB := windowHour(availB)
		// Shift B's representative hour into A's local clock.
		shifted := math.Mod(float64(hourB)+(offsetA-offsetB)+24, 24)
		gap := math.Abs(float64(hourA) - shifted)
		if gap > 12 {
			gap = 24 - gap
		}
		if gap <= 2 {
			return TimezoneResult{Compatible: true, Bonus: tzAlignedHoursBonus}
		}
		return TimezoneResult{Compatible: true, Bonus: tzNearOffsetBonus}
	default:
		return TimezoneResult{Compatible: true, Bonus: 0}
	}
}

// windowHour returns the representative hour for an availability window,
// defaulting to midday for unrecognized values.
func windowHour(window string) int {
	if h, ok := windowHours[profile.Norm(window)]; ok {
		return h
	}
	return middayHour
}
