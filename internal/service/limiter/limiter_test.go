package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireWithinCapacity(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if got := l.InFlight(); got != 2 {
		t.Fatalf("expected 2 in flight, got %d", got)
	}
	l.Release()
	l.Release()
	if got := l.InFlight(); got != 0 {
		t.Fatalf("expected 0 in flight after release, got %d", got)
	}
}

func TestExcessAcquirersQueue(t *testing.T) {
	l := New(1)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := l.Acquire(ctx); err != nil {
			t.Errorf("queued acquire: %v", err)
		}
		close(acquired)
	}()

	// the second acquirer must park, not proceed
	select {
	case <-acquired:
		t.Fatalf("acquire succeeded past capacity")
	case <-time.After(50 * time.Millisecond):
	}
	if got := l.Waiting(); got != 1 {
		t.Fatalf("expected 1 waiter, got %d", got)
	}

	l.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("waiter was not woken by release")
	}
}

func TestReleaseWakesEarliestWaiter(t *testing.T) {
	l := New(1)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx); err != nil {
				t.Errorf("acquire %d: %v", i, err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			l.Release()
		}()
		// serialize enqueue order
		for {
			if l.Waiting() >= i {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	l.Release()
	wg.Wait()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected FIFO order [1 2 3], got %v", order)
	}
}

func TestAcquireCancelled(t *testing.T) {
	l := New(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx) }()
	for l.Waiting() == 0 {
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled acquire did not return")
	}

	// the held slot must still be usable after the cancelled waiter left
	l.Release()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after cancel: %v", err)
	}
}

func TestDoReleasesOnError(t *testing.T) {
	l := New(1)
	ctx := context.Background()

	wantErr := context.DeadlineExceeded
	err := l.Do(ctx, func(context.Context) error { return wantErr })
	if err != wantErr {
		t.Fatalf("expected fn error passthrough, got %v", err)
	}
	if got := l.InFlight(); got != 0 {
		t.Fatalf("slot leaked after failing fn: %d in flight", got)
	}
}

func TestConcurrencyNeverExceedsCapacity(t *testing.T) {
	const capacity = 4
	l := New(capacity)
	ctx := context.Background()

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(ctx, func(context.Context) error {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak > capacity {
		t.Fatalf("observed %d concurrent tasks, capacity %d", peak, capacity)
	}
}
