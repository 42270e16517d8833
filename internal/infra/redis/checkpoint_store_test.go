package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"flashcard-progress/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestCheckpointStoreRoundTripWithTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewCheckpointStore(newClient(mr), time.Hour)

	if _, err := store.LoadCheckpoint(ctx, "u1"); !errors.Is(err, domain.ErrCheckpointNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	cp := domain.Checkpoint{
		Latest: domain.Snapshot{UserID: "u1", SessionID: "s1", Seq: 4, Attempted: 3, Correct: 2},
		Acked:  domain.Snapshot{UserID: "u1", SessionID: "s1", Seq: 2, Attempted: 1, Correct: 1},
	}
	if err := store.SaveCheckpoint(ctx, "u1", cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("progress:u1:checkpoint"); ttl != time.Hour {
		t.Fatalf("expected ttl of one hour, got %v", ttl)
	}

	got, err := store.LoadCheckpoint(ctx, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Latest.Seq != 4 || got.Acked.Seq != 2 || !got.Pending() {
		t.Fatalf("unexpected checkpoint %+v", got)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.LoadCheckpoint(ctx, "u1"); !errors.Is(err, domain.ErrCheckpointNotFound) {
		t.Fatalf("expected checkpoint to expire, got %v", err)
	}

	if err := store.SaveCheckpoint(ctx, "u1", cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.ClearCheckpoint(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists("progress:u1:checkpoint") {
		t.Fatalf("expected checkpoint removed")
	}
}

func TestCheckpointStoreWithoutTTLKeepsCheckpoint(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewCheckpointStore(newClient(mr), 0)
	cp := domain.Checkpoint{Latest: domain.Snapshot{UserID: "u1", SessionID: "s1", Seq: 3, Attempted: 3}}
	if err := store.SaveCheckpoint(ctx, "u1", cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("progress:u1:checkpoint"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}

	mr.FastForward(90 * 24 * time.Hour)
	got, err := store.LoadCheckpoint(ctx, "u1")
	if err != nil {
		t.Fatalf("expected checkpoint kept, got %v", err)
	}
	if got.Latest.Seq != 3 {
		t.Fatalf("unexpected checkpoint %+v", got)
	}
}
