package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/peerfuse/match-app/internal/profile"
)

func staticPool(records ...profile.Record) PoolFunc {
	return func(ctx context.Context) ([]profile.Record, error) {
		return records, nil
	}
}

func failingPool() PoolFunc {
	return func(ctx context.Context) ([]profile.Record, error) {
		return nil, errors.New("store down")
	}
}

func viableCandidates(ids ...string) []profile.Record {
	out := make([]profile.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, testProfile(id, []string{"History"}, []string{"Math"}))
	}
	return out
}

func newTestSession(fetch PoolFunc) *RematchSession {
	target := testProfile("alice", []string{"Math"}, []string{"History"})
	return NewRematchSession(NewFinder(DefaultWeights()), target, fetch, 0)
}

func TestRematchSession_SearchEntersHasResults(t *testing.T) {
	sess := newTestSession(staticPool(viableCandidates("bob", "carol")...))

	if sess.State() != StateIdle {
		t.Fatalf("new session should be idle, got %s", sess.State())
	}
	if err := sess.Search(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State() != StateHasResults {
		t.Fatalf("expected has_results, got %s", sess.State())
	}
	if sess.Cursor() != 0 {
		t.Errorf("cursor should start at 0, got %d", sess.Cursor())
	}
	if sess.Current() == nil {
		t.Fatal("expected a current candidate")
	}
}

func TestRematchSession_ExhaustionAfterSteppingPastEnd(t *testing.T) {
	sess := newTestSession(staticPool(viableCandidates("bob", "carol", "dave")...))
	ctx := context.Background()

	if err := sess.Search(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Len() != 3 {
		t.Fatalf("expected 3 matches, got %d", sess.Len())
	}

	// Cursor 0 is shown on search; two more candidates remain.
	if sc := sess.Next(); sc == nil {
		t.Fatal("first Next should expose the second candidate")
	}
	if sc := sess.Next(); sc == nil {
		t.Fatal("second Next should expose the third candidate")
	}

	// Stepping past the end exhausts the session.
	if sc := sess.Next(); sc != nil {
		t.Fatalf("expected nil past the end, got %+v", sc)
	}
	if sess.State() != StateExhausted {
		t.Errorf("expected exhausted, got %s", sess.State())
	}
	if sess.Message() == "" {
		t.Error("exhausted state should carry a user-facing message")
	}

	// Next after exhaustion stays nil.
	if sc := sess.Next(); sc != nil {
		t.Error("Next after exhaustion should return nil")
	}
}

func TestRematchSession_EmptySearchGoesStraightToExhausted(t *testing.T) {
	sess := newTestSession(staticPool())

	if err := sess.Search(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State() != StateExhausted {
		t.Errorf("expected exhausted for an empty pool, got %s", sess.State())
	}
}

func TestRematchSession_RejectionIdempotence(t *testing.T) {
	sess := newTestSession(staticPool(viableCandidates("bob", "carol")...))
	ctx := context.Background()

	if err := sess.Search(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sess.Reject(ctx, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sess.Reject(ctx, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := sess.RejectedIDs()
	if len(ids) != 1 || ids[0] != "bob" {
		t.Errorf("expected ledger [bob], got %v", ids)
	}
	if sess.Len() != 1 {
		t.Errorf("expected 1 remaining match, got %d", sess.Len())
	}
}

func TestRematchSession_RejectingEveryoneExhausts(t *testing.T) {
	sess := newTestSession(staticPool(viableCandidates("bob")...))
	ctx := context.Background()

	if err := sess.Search(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sess.Reject(ctx, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State() != StateExhausted {
		t.Errorf("expected exhausted after rejecting the only candidate, got %s", sess.State())
	}
}

func TestRematchSession_FetchFailureKeepsState(t *testing.T) {
	pool := viableCandidates("bob", "carol")
	var fail bool
	fetch := func(ctx context.Context) ([]profile.Record, error) {
		if fail {
			return nil, errors.New("store down")
		}
		return pool, nil
	}

	sess := newTestSession(fetch)
	ctx := context.Background()

	if err := sess.Search(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fail = true
	err := sess.Search(ctx)
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if sess.State() != StateHasResults {
		t.Errorf("failed refetch must not move the session, got %s", sess.State())
	}
	if sess.Current() == nil {
		t.Error("prior results should survive a failed refetch")
	}
}

func TestRematchSession_RejectionSurvivesFailedRefetch(t *testing.T) {
	sess := newTestSession(failingPool())
	ctx := context.Background()

	err := sess.Reject(ctx, "bob")
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}

	// The user's decision stands even though the re-search failed.
	ids := sess.RejectedIDs()
	if len(ids) != 1 || ids[0] != "bob" {
		t.Errorf("expected ledger [bob] after failed refetch, got %v", ids)
	}
}

func TestRematchSession_SeedRejections(t *testing.T) {
	sess := newTestSession(staticPool(viableCandidates("bob", "carol")...))
	sess.SeedRejections([]string{"bob"})

	if err := sess.Search(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Len() != 1 {
		t.Fatalf("expected 1 match after seeding, got %d", sess.Len())
	}
	if sess.Current().Candidate.ID != "carol" {
		t.Errorf("expected carol, got %s", sess.Current().Candidate.ID)
	}
}

func TestRematchSession_ResetClearsEverything(t *testing.T) {
	sess := newTestSession(staticPool(viableCandidates("bob")...))
	ctx := context.Background()

	if err := sess.Search(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sess.Reject(ctx, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.State() != StateExhausted {
		t.Fatalf("expected exhausted, got %s", sess.State())
	}

	sess.Reset()
	if sess.State() != StateIdle {
		t.Errorf("expected idle after reset, got %s", sess.State())
	}
	if len(sess.RejectedIDs()) != 0 {
		t.Errorf("expected empty ledger after reset, got %v", sess.RejectedIDs())
	}

	// The previously rejected candidate is findable again.
	if err := sess.Search(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Len() != 1 {
		t.Errorf("expected bob back after reset, got %d matches", sess.Len())
	}
}
