package memory

import (
	"testing"

	"flashcard-progress/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	created := 0
	create := func() *app.Manager {
		created++
		return app.NewManager(app.Identity{UserID: "u1"}, nil, nil, nil, app.Options{})
	}

	manager := store.GetOrCreate("u1", create)
	if manager == nil {
		t.Fatalf("expected manager")
	}
	if again := store.GetOrCreate("u1", create); again != manager || created != 1 {
		t.Fatalf("expected one manager per user, created %d", created)
	}
	if _, ok := store.Get("u1"); !ok {
		t.Fatalf("expected manager present")
	}
	if len(store.List()) != 1 {
		t.Fatalf("expected one listed manager")
	}

	store.Delete("u1")
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected manager removed")
	}
}
