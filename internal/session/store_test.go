package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

// setupTestStore connects to Redis on localhost:6379. Tests are skipped if
// unavailable. Cleanup removes only the keys each test creates.
func setupTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()

	store, err := NewStore("localhost:6379", "test-gw")
	if err != nil {
		t.Skipf("skipping: Redis not available: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store, context.Background()
}

func newSession(t *testing.T, store *Store, ctx context.Context) string {
	t.Helper()
	userID := uuid.New().String()
	if err := store.Create(ctx, userID); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	t.Cleanup(func() {
		store.Delete(ctx, userID)
	})
	return userID
}

func TestStore_CreateAndGet(t *testing.T) {
	store, ctx := setupTestStore(t)
	userID := newSession(t, store, ctx)

	sess, err := store.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.Status != StatusIdle {
		t.Errorf("new session should be idle, got %s", sess.Status)
	}
	if sess.Gateway != "test-gw" {
		t.Errorf("gateway name not recorded: %s", sess.Gateway)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, ctx := setupTestStore(t)

	sess, err := store.Get(ctx, uuid.New().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil for missing session, got %+v", sess)
	}
}

func TestStore_StatusTransitions(t *testing.T) {
	store, ctx := setupTestStore(t)
	userID := newSession(t, store, ctx)

	if err := store.UpdateStatus(ctx, userID, StatusSearching); err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	sess, _ := store.Get(ctx, userID)
	if sess.Status != StatusSearching {
		t.Errorf("expected searching, got %s", sess.Status)
	}

	if err := store.SetPairingID(ctx, userID, "p1"); err != nil {
		t.Fatalf("set pairing failed: %v", err)
	}
	sess, _ = store.Get(ctx, userID)
	if sess.Status != StatusPaired || sess.PairingID != "p1" {
		t.Errorf("expected paired with p1, got %+v", sess)
	}

	if err := store.ClearPairingID(ctx, userID); err != nil {
		t.Fatalf("clear pairing failed: %v", err)
	}
	sess, _ = store.Get(ctx, userID)
	if sess.Status != StatusIdle || sess.PairingID != "" {
		t.Errorf("expected idle with no pairing, got %+v", sess)
	}
}

func TestStore_Delete(t *testing.T) {
	store, ctx := setupTestStore(t)
	userID := newSession(t, store, ctx)

	if err := store.Delete(ctx, userID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	sess, _ := store.Get(ctx, userID)
	if sess != nil {
		t.Error("session should be gone after delete")
	}
}
