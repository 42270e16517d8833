package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"flashcard-progress/internal/app"
	"flashcard-progress/internal/domain"
)

type recordingFlush struct {
	mu      sync.Mutex
	seqs    []uint64
	times   []time.Time
	release chan struct{}
}

func (r *recordingFlush) flush(_ context.Context, snap domain.Snapshot) error {
	r.mu.Lock()
	r.seqs = append(r.seqs, snap.Seq)
	r.times = append(r.times, time.Now())
	first := len(r.seqs) == 1
	r.mu.Unlock()
	if first && r.release != nil {
		<-r.release
	}
	return nil
}

func (r *recordingFlush) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seqs)
}

func TestDebouncedWriterCoalescesToLatestSnapshot(t *testing.T) {
	rec := &recordingFlush{release: make(chan struct{})}
	w := app.NewDebouncedWriter(rec.flush, 10*time.Millisecond, time.Second)
	defer w.Close()

	w.Schedule(domain.Snapshot{Seq: 1})
	waitFor(t, "first write in flight", func() bool { return rec.count() == 1 })

	for seq := uint64(2); seq <= 6; seq++ {
		w.Schedule(domain.Snapshot{Seq: seq})
	}
	close(rec.release)

	waitFor(t, "coalesced write", func() bool { return rec.count() == 2 })
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.seqs) != 2 {
		t.Fatalf("expected burst collapsed into one write, got %v", rec.seqs)
	}
	if rec.seqs[1] != 6 {
		t.Fatalf("expected latest snapshot to be written, got %v", rec.seqs)
	}
}

func TestDebouncedWriterKeepsNewestPending(t *testing.T) {
	rec := &recordingFlush{release: make(chan struct{})}
	w := app.NewDebouncedWriter(rec.flush, time.Millisecond, time.Second)
	defer w.Close()

	w.Schedule(domain.Snapshot{Seq: 1})
	waitFor(t, "first write in flight", func() bool { return rec.count() == 1 })
	w.Schedule(domain.Snapshot{Seq: 9})
	w.Schedule(domain.Snapshot{Seq: 4})
	close(rec.release)

	waitFor(t, "second write", func() bool { return rec.count() == 2 })
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.seqs[1] != 9 {
		t.Fatalf("older snapshot replaced a newer one: %v", rec.seqs)
	}
}

func TestDebouncedWriterWaitsForCooldown(t *testing.T) {
	rec := &recordingFlush{}
	cooldown := 50 * time.Millisecond
	w := app.NewDebouncedWriter(rec.flush, cooldown, time.Second)
	defer w.Close()

	w.Schedule(domain.Snapshot{Seq: 1})
	waitFor(t, "first write", func() bool { return rec.count() == 1 })
	w.Schedule(domain.Snapshot{Seq: 2})
	waitFor(t, "second write", func() bool { return rec.count() == 2 })

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if gap := rec.times[1].Sub(rec.times[0]); gap < cooldown-5*time.Millisecond {
		t.Fatalf("writes %v apart, expected at least %v", gap, cooldown)
	}
}

func TestDebouncedWriterIgnoresScheduleAfterClose(t *testing.T) {
	rec := &recordingFlush{}
	w := app.NewDebouncedWriter(rec.flush, time.Millisecond, time.Second)
	w.Close()
	w.Close()

	w.Schedule(domain.Snapshot{Seq: 1})
	time.Sleep(20 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("expected no writes after close, got %d", rec.count())
	}
}
