package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"QuotePulse/internal/domain/models"
	domrepo "QuotePulse/internal/domain/repository"
)

// UpdatePipeline sits between quote resolution and the push transports.
// It validates, throttles per symbol, and buffers updates when the downstream
// notifier is unavailable, flushing them in the background with backoff.
// It implements domrepo.Notifier so it can wrap any downstream notifier.
type UpdatePipeline struct {
	next     domrepo.Notifier
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.QuoteUpdate
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*UpdatePipeline)

// WithMaxRPS sets the max updates per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *UpdatePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *UpdatePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewUpdatePipeline creates a pipeline wrapping the next notifier.
func NewUpdatePipeline(next domrepo.Notifier, metrics domrepo.Metrics, opts ...PipelineOption) *UpdatePipeline {
	p := &UpdatePipeline{
		next:     next,
		metrics:  metrics,
		maxRPS:   10,  // default throttle per symbol
		bufSize:  500, // default buffer
		bufCh:    make(chan *models.QuoteUpdate, 500),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.QuoteUpdate, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered updates. The flusher exits
// when ctx is cancelled or Stop is called.
func (p *UpdatePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case u := <-p.bufCh:
				if u == nil {
					continue
				}
				if err := p.next.NotifyQuote(ctx, u); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					if p.metrics != nil {
						p.metrics.RecordDrop("flush_retry")
					}
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- u:
					default:
						if p.metrics != nil {
							p.metrics.RecordDrop("buffer_drop")
						}
					}
					timer := time.NewTimer(backoff)
					select {
					case <-timer.C:
					case <-p.stopCh:
						timer.Stop()
						return
					case <-ctx.Done():
						timer.Stop()
						return
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *UpdatePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// NotifyQuote validates, throttles, and forwards an update downstream,
// buffering on delivery errors.
func (p *UpdatePipeline) NotifyQuote(ctx context.Context, u *models.QuoteUpdate) error {
	start := time.Now()
	if err := validateUpdate(u); err != nil {
		if p.metrics != nil {
			p.metrics.RecordDrop("validate")
		}
		return err
	}
	if !p.allow(u.Quote.Symbol, start) {
		// throttled; record and drop silently
		if p.metrics != nil {
			p.metrics.RecordDrop("throttle")
		}
		return nil
	}

	if err := p.next.NotifyQuote(ctx, u); err != nil {
		// buffer non-blocking
		select {
		case p.bufCh <- u:
		default:
			if p.metrics != nil {
				p.metrics.RecordDrop("buffer_full")
			}
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_notify", time.Since(start).Seconds())
	}
	return nil
}

// Close stops the pipeline and closes the downstream notifier.
func (p *UpdatePipeline) Close() error {
	p.Stop()
	return p.next.Close()
}

func validateUpdate(u *models.QuoteUpdate) error {
	if u == nil || u.Quote == nil {
		return fmt.Errorf("update nil")
	}
	if u.Quote.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if u.Quote.Price != nil && *u.Quote.Price < 0 {
		return fmt.Errorf("negative price")
	}
	return nil
}

func (p *UpdatePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// simple throttle: at most maxRPS per second per symbol
	last := p.lastSeen[symbol]
	if last.IsZero() {
		p.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
