package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quizwiz-service/internal/domain"
)

var gameKey = domain.DocKey{Collection: "multiplayerGames", ID: "game-1"}

func TestDocumentStoreStoresHashes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewDocumentStore(newClient(mr), time.Minute, "multiplayerGames")

	if _, err := store.Get(ctx, gameKey); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Update(ctx, gameKey, domain.NewPatch().Put("status", "active")); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected update of a missing doc to fail, got %v", err)
	}
	if mr.Exists("doc:multiplayerGames:game-1") {
		t.Fatalf("failed update must not create the hash")
	}

	err = store.Set(ctx, gameKey, domain.Document{
		"status":                     "waiting",
		"player1.userId":             "u1",
		"player1.currentAnswerIndex": "3",
		"updatedAt":                  domain.ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mr.HGet("doc:multiplayerGames:game-1", "player1.userId"); got != "u1" {
		t.Fatalf("expected hash field, got %q", got)
	}
	if ttl := mr.TTL("doc:multiplayerGames:game-1"); ttl <= 0 {
		t.Fatalf("expected expiring session document, got ttl %v", ttl)
	}

	patch := domain.NewPatch().
		Put("status", "active").
		Remove("player1.currentAnswerIndex")
	if err := store.Update(ctx, gameKey, patch); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, err := store.Get(ctx, gameKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc["status"] != "active" || doc["player1.userId"] != "u1" {
		t.Fatalf("unexpected document %v", doc)
	}
	if _, ok := doc["player1.currentAnswerIndex"]; ok {
		t.Fatalf("expected cleared field, got %v", doc)
	}
	if _, err := time.Parse(time.RFC3339Nano, doc["updatedAt"]); err != nil {
		t.Fatalf("expected server timestamp, got %q", doc["updatedAt"])
	}
}

func TestDocumentStoreIncrement(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewDocumentStore(newClient(mr), time.Minute, "multiplayerGames")
	key := domain.DocKey{Collection: "users", ID: "u1"}

	if n, err := store.Increment(ctx, key, "totalQuizPoints", 5); err != nil || n != 5 {
		t.Fatalf("expected 5, got %d (%v)", n, err)
	}
	if n, err := store.Increment(ctx, key, "totalQuizPoints", -20); err != nil || n != -15 {
		t.Fatalf("expected -15, got %d (%v)", n, err)
	}
	if ttl := mr.TTL("doc:users:u1"); ttl != 0 {
		t.Fatalf("user documents must not expire, got ttl %v", ttl)
	}
}

func TestDocumentStoreSubscribeSeesWrites(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	defer client.Close()
	store := NewDocumentStore(client, time.Minute, "multiplayerGames")

	if err := store.Set(ctx, gameKey, domain.Document{"status": "waiting"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	snaps, cancel, err := store.Subscribe(ctx, gameKey)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if snap := waitSnapshot(t, snaps, "waiting"); snap.Err != nil {
		t.Fatalf("unexpected error %v", snap.Err)
	}

	// A second store instance stands in for another server process.
	other := NewDocumentStore(newClient(mr), time.Minute, "multiplayerGames")
	if err := other.Update(ctx, gameKey, domain.NewPatch().Put("status", "active")); err != nil {
		t.Fatalf("update: %v", err)
	}
	waitSnapshot(t, snaps, "active")

	cancel()
	for range snaps {
	}
}

// waitSnapshot reads until a snapshot with the wanted status arrives.
func waitSnapshot(t *testing.T, ch <-chan domain.Snapshot, status string) domain.Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed before status %q", status)
			}
			if snap.Doc["status"] == status {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q", status)
		}
	}
}
