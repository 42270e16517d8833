package app

import (
	"context"
	"sync"
	"time"

	"flashcard-progress/internal/domain"
)

// DefaultDebounce collapses rapid answer bursts into one store round trip.
const DefaultDebounce = 100 * time.Millisecond

// FlushFunc persists one snapshot.
type FlushFunc func(ctx context.Context, snap domain.Snapshot) error

// DebouncedWriter coalesces snapshot writes. It holds at most one pending
// snapshot (always the newest), runs at most one write at a time and waits a
// cool-down between writes.
type DebouncedWriter struct {
	flush    FlushFunc
	cooldown time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	pending   *domain.Snapshot
	lastWrite time.Time
	closed    bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewDebouncedWriter(flush FlushFunc, cooldown, timeout time.Duration) *DebouncedWriter {
	return newDebouncedWriterWithClock(flush, cooldown, timeout, time.Now)
}

func newDebouncedWriterWithClock(flush FlushFunc, cooldown, timeout time.Duration, now func() time.Time) *DebouncedWriter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	w := &DebouncedWriter{
		flush:    flush,
		cooldown: cooldown,
		timeout:  timeout,
		now:      now,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// Schedule queues snap for persistence without blocking. An older snapshot
// never replaces a newer pending one.
func (w *DebouncedWriter) Schedule(snap domain.Snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.pending == nil || snap.Seq >= w.pending.Seq {
		w.pending = &snap
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close stops the writer after any in-flight write finishes. The pending
// snapshot is dropped; the caller flushes the final state itself.
func (w *DebouncedWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.pending = nil
	w.mu.Unlock()

	close(w.stop)
	<-w.done
}

func (w *DebouncedWriter) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
		}

		w.mu.Lock()
		wait := w.lastWrite.Add(w.cooldown).Sub(w.now())
		w.mu.Unlock()
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-w.stop:
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		w.mu.Lock()
		snap := w.pending
		w.pending = nil
		w.mu.Unlock()
		if snap == nil {
			continue
		}

		// Failures are not retried here: the next Schedule or the final
		// flush carries everything that was not acknowledged.
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		_ = w.flush(ctx, *snap)
		cancel()

		w.mu.Lock()
		w.lastWrite = w.now()
		w.mu.Unlock()
	}
}
