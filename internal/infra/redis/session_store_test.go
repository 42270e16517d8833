package redis

import (
	"testing"
	"time"

	"flashcard-progress/internal/app"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	store := NewSessionStore(client, time.Minute)

	manager := store.GetOrCreate("u1", func() *app.Manager {
		return app.NewManager(app.Identity{UserID: "u1"}, nil, nil, nil, app.Options{})
	})
	if !mr.Exists("progress:session:u1") {
		t.Fatalf("expected redis key to be set")
	}
	if got, ok := store.Get("u1"); !ok || got != manager {
		t.Fatalf("expected manager to be registered")
	}

	store.Delete("u1")
	if mr.Exists("progress:session:u1") {
		t.Fatalf("expected redis key to be removed")
	}
	if len(store.List()) != 0 {
		t.Fatalf("expected no managers left")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
