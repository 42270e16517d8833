package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"flashcard-progress/internal/app"
	"flashcard-progress/internal/domain"
	"flashcard-progress/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketPracticeFlow(t *testing.T) {
	store := memory.NewAggregateStore()
	server := newTestServer(t, store)

	conn := dial(t, server, "/ws?userId=u1&difficulty=medium")
	defer conn.Close()

	// Expect started event first.
	_, started := readNext(conn, t, "started")
	var startedState app.State
	decode(t, started, &startedState)
	if startedState.Session.Difficulty != domain.DifficultyMedium {
		t.Fatalf("expected medium session, got %q", startedState.Session.Difficulty)
	}

	for _, correct := range []bool{true, true, false} {
		send(t, conn, "answer", map[string]any{"correct": correct})
		readNext(conn, t, "state")
	}
	send(t, conn, "reveal", nil)
	_, raw := readNext(conn, t, "state")
	var state app.State
	decode(t, raw, &state)
	if state.Live.Score != 2 || state.Live.QuestionsAnswered != 3 || state.Live.Streak != 0 {
		t.Fatalf("unexpected live counters %+v", state.Live)
	}

	send(t, conn, "end", nil)
	_, raw = readNext(conn, t, "ended")
	var rec domain.SessionHistoryRecord
	decode(t, raw, &rec)
	if rec.Attempted != 3 || rec.Correct != 2 || rec.MaxStreak != 2 || rec.Recovered {
		t.Fatalf("unexpected history record %+v", rec)
	}

	agg, err := store.LoadAggregate(context.Background(), "u1")
	if err != nil {
		t.Fatalf("load aggregate: %v", err)
	}
	if agg.TotalSessions != 1 || agg.Medium != (domain.Counts{Attempted: 3, Correct: 2}) {
		t.Fatalf("unexpected aggregate %+v", agg)
	}

	// The session is over; further answers are rejected.
	send(t, conn, "answer", map[string]any{"correct": true})
	readNext(conn, t, "error")
}

func TestWebSocketDisconnectEndsSession(t *testing.T) {
	store := memory.NewAggregateStore()
	server := newTestServer(t, store)

	conn := dial(t, server, "/ws?userId=u2")
	readNext(conn, t, "started")
	send(t, conn, "answer", map[string]any{"correct": true})
	readNext(conn, t, "state")
	_ = conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		records, _ := store.ListSessionHistory(context.Background(), "u2", 10)
		if len(records) == 1 {
			if records[0].Correct != 1 {
				t.Fatalf("unexpected record %+v", records[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected session history after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketRejectsBadRequests(t *testing.T) {
	server := newTestServer(t, memory.NewAggregateStore())

	resp, err := http.Get(server.URL + "/ws?userId=u1&difficulty=extreme")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown difficulty, got %d", resp.StatusCode)
	}

	conn := dial(t, server, "/ws?userId=u3")
	defer conn.Close()
	readNext(conn, t, "started")
	send(t, conn, "shout", nil)
	readNext(conn, t, "error")
	send(t, conn, "difficulty", map[string]any{"difficulty": "extreme"})
	readNext(conn, t, "error")
}

func TestWebSocketAnonymousPracticeIsNotSaved(t *testing.T) {
	store := memory.NewAggregateStore()
	server := newTestServer(t, store)

	conn := dial(t, server, "/ws?difficulty=hard")
	defer conn.Close()

	_, raw := readNext(conn, t, "started")
	var started app.State
	decode(t, raw, &started)
	if started.Reader != "degraded" || started.Session.Difficulty != domain.DifficultyHard {
		t.Fatalf("unexpected anonymous start %+v", started)
	}

	send(t, conn, "answer", map[string]any{"correct": true})
	readNext(conn, t, "state")
	send(t, conn, "end", nil)
	_, raw = readNext(conn, t, "ended")
	var rec domain.SessionHistoryRecord
	decode(t, raw, &rec)
	if rec.Attempted != 1 || rec.Correct != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}

	if _, err := store.LoadAggregate(context.Background(), ""); !errors.Is(err, domain.ErrAggregateNotFound) {
		t.Fatalf("expected nothing saved for an anonymous practice, got %v", err)
	}
}

func TestOutboxStopsBlockingAfterWriteFailure(t *testing.T) {
	var aborted atomic.Int32
	out := newOutbox(func(outboundMessage[any]) error {
		return errors.New("broken pipe")
	}, func() { aborted.Add(1) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		// More than the queue holds; push must give up instead of blocking.
		for i := 0; i < 100; i++ {
			if !out.push(outboundMessage[any]{Type: "state"}) {
				return
			}
		}
		t.Errorf("push kept accepting messages after the writer failed")
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("push blocked after the writer failed")
	}
	out.close()
	if aborted.Load() != 1 {
		t.Fatalf("expected one abort, got %d", aborted.Load())
	}
}

func newTestServer(t *testing.T, store app.AggregateStore) *httptest.Server {
	t.Helper()
	service := app.NewProgressService(memory.NewSessionStore(), store, memory.NewCheckpointStore(), app.Options{
		Debounce: 5 * time.Millisecond,
	})
	wsHandler := NewWSHandler(service)
	statsHandler := NewStatsHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/stats", statsHandler.ServeStats)
	mux.HandleFunc("/stats/reset", statsHandler.ServeReset)
	mux.HandleFunc("/history", statsHandler.ServeHistory)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		service.Shutdown(context.Background())
	})
	return server
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

func decode(t *testing.T, raw json.RawMessage, target any) {
	t.Helper()
	if err := json.Unmarshal(raw, target); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}
