package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"flashcard-progress/internal/app"
	"flashcard-progress/internal/domain"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type WSHandler struct {
	service  *app.ProgressService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ProgressService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Correct bool `json:"correct"`
}

type difficultyPayload struct {
	Difficulty string `json:"difficulty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one practice
// session per connection. A dropped connection ends the session it started.
// Without a userId the session is practice only and nothing is saved.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	difficulty := domain.DifficultyEasy
	if raw := r.URL.Query().Get("difficulty"); raw != "" {
		parsed, err := domain.ParseDifficulty(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		difficulty = parsed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	practice := h.service.Practice(userID)
	if practice.Anonymous() {
		log.Printf("ws %s: anonymous practice, progress is not saved", r.RemoteAddr)
	}
	started, err := practice.Start(ctx, difficulty)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	// Teardown must outlive the request context.
	defer practice.Leave(context.WithoutCancel(ctx))

	out := newOutbox(func(msg outboundMessage[any]) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}, func() { _ = conn.Close() })
	defer out.close()

	if !out.push(outboundMessage[any]{Type: "started", Payload: started}) {
		return
	}
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		msgType, payload, err := h.handle(ctx, practice, inbound)
		msg := outboundMessage[any]{Type: msgType, Payload: payload}
		if err != nil {
			msg = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		}
		if !out.push(msg) {
			return
		}
	}
}

// outbox serializes writes to one connection on its own goroutine. After a
// failed write it calls abort and push stops blocking.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(write func(outboundMessage[any]) error, abort func()) *outbox {
	o := &outbox{
		send: make(chan outboundMessage[any], 16),
		done: make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		for msg := range o.send {
			if err := write(msg); err != nil {
				log.Printf("ws write error: %v", err)
				abort()
				return
			}
		}
	}()
	return o
}

// push reports false once the writer is gone.
func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

// close flushes queued messages and waits for the writer.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}

func (h *WSHandler) handle(ctx context.Context, practice *app.Practice, inbound inboundMessage) (string, any, error) {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return "", nil, errInvalidPayload("answer")
		}
		state, err := practice.Answer(ctx, payload.Correct)
		return "state", state, err
	case "skip":
		state, err := practice.Skip(ctx)
		return "state", state, err
	case "reveal":
		state, err := practice.Reveal(ctx)
		return "state", state, err
	case "difficulty":
		var payload difficultyPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return "", nil, errInvalidPayload("difficulty")
		}
		d, err := domain.ParseDifficulty(payload.Difficulty)
		if err != nil {
			return "", nil, err
		}
		state, err := practice.ChangeDifficulty(ctx, d)
		return "state", state, err
	case "start":
		var payload difficultyPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return "", nil, errInvalidPayload("start")
			}
		}
		d := domain.DifficultyEasy
		if payload.Difficulty != "" {
			parsed, err := domain.ParseDifficulty(payload.Difficulty)
			if err != nil {
				return "", nil, err
			}
			d = parsed
		}
		state, err := practice.Start(ctx, d)
		return "started", state, err
	case "end":
		rec, err := practice.End(ctx)
		return "ended", rec, err
	default:
		return "", nil, errUnsupported
	}
}
