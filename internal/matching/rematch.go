package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/peerfuse/match-app/internal/profile"
)

// ErrDataUnavailable indicates the candidate pool could not be fetched. The
// session keeps its prior state when this happens; no partial transition.
var ErrDataUnavailable = errors.New("matching: candidate data unavailable")

// SessionState enumerates the rematch session states.
type SessionState int

const (
	StateIdle SessionState = iota
	StateHasResults
	StateExhausted
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHasResults:
		return "has_results"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// PoolFunc supplies a fresh candidate pool. The session never caches
// candidates across searches: profiles may change between calls, so every
// search refetches through this function.
type PoolFunc func(ctx context.Context) ([]profile.Record, error)

// RematchSession is a stateful iterator over one user's ranked match list
// plus a rejection ledger. It supports stepping to the next candidate,
// rejecting the current one (which re-runs the search with the grown
// ledger), and a terminal exhausted state.
//
// A session is scoped to a single user's single active search. It is not
// goroutine-safe; the owner must not share it across concurrent callers.
type RematchSession struct {
	finder   *Finder
	target   profile.Record
	fetch    PoolFunc
	limit    int
	rejected map[string]bool

	state   SessionState
	matches []ScoredCandidate
	cursor  int
	message string
}

// NewRematchSession creates an idle session for the target user. The fetch
// function is invoked on every search and rejection to obtain a fresh pool.
func NewRematchSession(finder *Finder, target profile.Record, fetch PoolFunc, limit int) *RematchSession {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RematchSession{
		finder:   finder,
		target:   target,
		fetch:    fetch,
		limit:    limit,
		rejected: make(map[string]bool),
		state:    StateIdle,
	}
}

// State returns the current session state.
func (s *RematchSession) State() SessionState { return s.state }

// Message returns the user-facing message for the exhausted state.
func (s *RematchSession) Message() string { return s.message }

// Cursor returns the 0-based position of the currently exposed candidate.
func (s *RematchSession) Cursor() int { return s.cursor }

// Len returns the number of ranked matches in the current result list.
func (s *RematchSession) Len() int { return len(s.matches) }

// SeedRejections merges previously recorded rejections into the in-memory
// ledger, e.g. when resuming a search whose ledger is persisted externally.
func (s *RematchSession) SeedRejections(ids []string) {
	for _, id := range ids {
		s.rejected[id] = true
	}
}

// RejectedIDs returns the ledger contents in deterministic order.
func (s *RematchSession) RejectedIDs() []string {
	ids := make([]string, 0, len(s.rejected))
	for id := range s.rejected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Search fetches a fresh pool and runs the finder with the current ledger.
// A non-empty result enters HasResults with the cursor on the top match; an
// empty result goes straight to Exhausted carrying the no-match reason. If
// the pool fetch or the find fails, the session state is left untouched.
func (s *RematchSession) Search(ctx context.Context) error {
	candidates, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	result, err := s.finder.Find(s.target, candidates, s.RejectedIDs(), s.limit)
	if err != nil {
		return err
	}

	if result.Status == StatusNoMatches {
		s.state = StateExhausted
		s.matches = nil
		s.cursor = 0
		s.message = result.Message
		return nil
	}

	s.state = StateHasResults
	s.matches = result.Matches
	s.cursor = 0
	s.message = ""
	return nil
}

// Current returns the candidate at the cursor, or nil outside HasResults.
func (s *RematchSession) Current() *ScoredCandidate {
	if s.state != StateHasResults || s.cursor >= len(s.matches) {
		return nil
	}
	return &s.matches[s.cursor]
}

// Next advances the cursor and returns the newly exposed candidate. When the
// cursor runs past the end of the list, the session transitions to Exhausted
// and Next returns nil.
func (s *RematchSession) Next() *ScoredCandidate {
	if s.state != StateHasResults {
		return nil
	}

	s.cursor++
	if s.cursor >= len(s.matches) {
		s.state = StateExhausted
		s.matches = nil
		s.message = "you've seen every compatible partner, reset your search to start over"
		return nil
	}
	return &s.matches[s.cursor]
}

// Reject records a candidate in the ledger and re-runs the search against a
// freshly fetched pool. Rejection has set semantics: rejecting the same ID
// twice is a no-op on the ledger. The ledger addition survives a failed
// refetch (the user's decision stands) but the session state does not move.
func (s *RematchSession) Reject(ctx context.Context, candidateID string) error {
	s.rejected[candidateID] = true
	return s.Search(ctx)
}

// Reset clears the ledger and returns the session to Idle. This is the only
// way out of the Exhausted state.
func (s *RematchSession) Reset() {
	s.rejected = make(map[string]bool)
	s.state = StateIdle
	s.matches = nil
	s.cursor = 0
	s.message = ""
}
