package limiter

import (
	"context"
	"fmt"
	"sync"
)

// Limiter admits at most n tasks concurrently; excess acquirers queue FIFO.
// A released slot always goes to the earliest waiter.
type Limiter struct {
	mu      sync.Mutex
	n       int
	active  int
	waiters []chan struct{}
}

// New creates a limiter with the given capacity (minimum 1).
func New(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{n: n}
}

// Acquire blocks until a slot is available or ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.active < l.n {
		l.active++
		l.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	l.waiters = append(l.waiters, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		// the slot may have been handed over concurrently with cancellation
		for i, w := range l.waiters {
			if w == ready {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// slot was granted; give it back
		l.Release()
		return ctx.Err()
	}
}

// Release frees a slot and wakes the earliest waiter, if any.
func (l *Limiter) Release() {
	l.mu.Lock()
	if len(l.waiters) > 0 {
		ready := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.mu.Unlock()
		close(ready)
		return
	}
	if l.active > 0 {
		l.active--
	}
	l.mu.Unlock()
}

// Do runs fn under a slot; the slot is released even when fn fails.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return fmt.Errorf("limiter acquire: %w", err)
	}
	defer l.Release()
	return fn(ctx)
}

// InFlight returns the number of currently admitted tasks.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Waiting returns the queue depth.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}
