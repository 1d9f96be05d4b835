package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"QuotePulse/internal/domain/models"
)

type captureNotifier struct {
	mu      sync.Mutex
	updates []*models.QuoteUpdate
	err     error
	closed  bool
}

func (n *captureNotifier) NotifyQuote(ctx context.Context, u *models.QuoteUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.updates = append(n.updates, u)
	return nil
}

func (n *captureNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.updates)
}

func (n *captureNotifier) setErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

type dropCounter struct {
	mu    sync.Mutex
	drops map[string]int
}

func (d *dropCounter) RecordFetch(provider, outcome string)     {}
func (d *dropCounter) RecordFallback(from, to, reason string)   {}
func (d *dropCounter) RecordCache(tier, outcome string)         {}
func (d *dropCounter) RecordLastPrice(symbol string, p float64) {}
func (d *dropCounter) RecordLatency(op string, seconds float64) {}
func (d *dropCounter) RecordBackoffArmed()                      {}

func (d *dropCounter) RecordDrop(stage string) {
	d.mu.Lock()
	if d.drops == nil {
		d.drops = make(map[string]int)
	}
	d.drops[stage]++
	d.mu.Unlock()
}

func (d *dropCounter) dropped(stage string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drops[stage]
}

func update(symbol string, price float64) *models.QuoteUpdate {
	return &models.QuoteUpdate{
		Quote:     &models.Quote{Symbol: symbol, Price: &price, Session: models.SessionRegular},
		UpdatedAt: time.Now(),
	}
}

func TestPipelineForwardsValidUpdates(t *testing.T) {
	next := &captureNotifier{}
	p := NewUpdatePipeline(next, &dropCounter{})

	if err := p.NotifyQuote(context.Background(), update("AAPL", 231.5)); err != nil {
		t.Fatalf("NotifyQuote: %v", err)
	}
	if next.count() != 1 {
		t.Fatalf("forwarded %d updates, want 1", next.count())
	}
}

func TestPipelineRejectsInvalidUpdates(t *testing.T) {
	next := &captureNotifier{}
	m := &dropCounter{}
	p := NewUpdatePipeline(next, m)
	ctx := context.Background()

	if err := p.NotifyQuote(ctx, nil); err == nil {
		t.Fatal("nil update accepted")
	}
	if err := p.NotifyQuote(ctx, &models.QuoteUpdate{Quote: &models.Quote{}}); err == nil {
		t.Fatal("empty symbol accepted")
	}
	if err := p.NotifyQuote(ctx, update("AAPL", -1)); err == nil {
		t.Fatal("negative price accepted")
	}
	if next.count() != 0 {
		t.Fatalf("invalid updates reached downstream: %d", next.count())
	}
	if m.dropped("validate") != 3 {
		t.Fatalf("validate drops = %d, want 3", m.dropped("validate"))
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	next := &captureNotifier{}
	m := &dropCounter{}
	p := NewUpdatePipeline(next, m, WithMaxRPS(1))
	ctx := context.Background()

	// two back-to-back updates for one symbol: second is throttled
	if err := p.NotifyQuote(ctx, update("AAPL", 231)); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := p.NotifyQuote(ctx, update("AAPL", 231.1)); err != nil {
		t.Fatalf("throttled update should drop silently, got %v", err)
	}
	// a different symbol is unaffected
	if err := p.NotifyQuote(ctx, update("MSFT", 412)); err != nil {
		t.Fatalf("other symbol: %v", err)
	}

	if next.count() != 2 {
		t.Fatalf("forwarded %d updates, want 2", next.count())
	}
	if m.dropped("throttle") != 1 {
		t.Fatalf("throttle drops = %d, want 1", m.dropped("throttle"))
	}
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	next := &captureNotifier{}
	next.setErr(errors.New("transport down"))
	p := NewUpdatePipeline(next, &dropCounter{}, WithBufferSize(4))

	if err := p.NotifyQuote(context.Background(), update("AAPL", 231)); err == nil {
		t.Fatal("downstream error should surface")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("buffered %d updates, want 1", len(p.bufCh))
	}
}

func TestPipelineFlushesBufferWhenDownstreamRecovers(t *testing.T) {
	next := &captureNotifier{}
	next.setErr(errors.New("transport down"))
	m := &dropCounter{}
	p := NewUpdatePipeline(next, m, WithBufferSize(8))

	_ = p.NotifyQuote(context.Background(), update("AAPL", 231))
	if next.count() != 0 {
		t.Fatal("update delivered despite downstream error")
	}

	next.setErr(nil)
	p.Start(context.Background())
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for next.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("buffered update never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPipelineFlusherStopsOnContextCancel(t *testing.T) {
	next := &captureNotifier{}
	next.setErr(errors.New("transport down"))
	p := NewUpdatePipeline(next, &dropCounter{}, WithBufferSize(8))

	_ = p.NotifyQuote(context.Background(), update("AAPL", 231))

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	time.Sleep(30 * time.Millisecond) // flusher picks the update up and backs off
	cancel()
	time.Sleep(100 * time.Millisecond)

	// downstream recovers after the cancel: a dead flusher must not deliver
	next.setErr(nil)
	time.Sleep(300 * time.Millisecond)
	if next.count() != 0 {
		t.Fatalf("flusher delivered %d updates after its context was cancelled", next.count())
	}
}

func TestPipelineCloseClosesDownstream(t *testing.T) {
	next := &captureNotifier{}
	p := NewUpdatePipeline(next, &dropCounter{})
	p.Start(context.Background())
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	next.mu.Lock()
	closed := next.closed
	next.mu.Unlock()
	if !closed {
		t.Fatal("downstream notifier not closed")
	}
}
