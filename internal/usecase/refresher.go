package usecase

import (
	"context"
	"sync"
	"time"

	"QuotePulse/internal/service/quote"
	applogger "QuotePulse/pkg/logger"
)

// Refresher keeps a watchlist warm by resolving it on a timer. When a cycle is
// still running as the next tick arrives, the stale cycle is cancelled and
// superseded. The effective interval doubles while the provider chain has its
// global backoff window armed.
type Refresher struct {
	resolver *Resolver
	chain    *quote.Chain
	symbols  []string
	interval time.Duration
	log      *applogger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates a refresher for the given watchlist.
func NewRefresher(resolver *Resolver, chain *quote.Chain, symbols []string, interval time.Duration, log *applogger.Logger) *Refresher {
	return &Refresher{
		resolver: resolver,
		chain:    chain,
		symbols:  symbols,
		interval: interval,
		log:      log,
	}
}

// Start launches the refresh loop. It returns immediately; Stop tears it down.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return // already running
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	done := make(chan struct{})
	r.done = done

	go r.loop(loopCtx, done)
}

// Stop cancels the loop and any in-flight cycle, then waits for exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Refresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var cycleCancel context.CancelFunc
	timer := time.NewTimer(0) // first cycle immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if cycleCancel != nil {
				cycleCancel()
			}
			return
		case <-timer.C:
		}

		// supersede the previous cycle if it is still running
		if cycleCancel != nil {
			cycleCancel()
		}
		var cycleCtx context.Context
		cycleCtx, cycleCancel = context.WithCancel(ctx)
		go r.cycle(cycleCtx)

		timer.Reset(r.chain.RefreshInterval(r.interval))
	}
}

func (r *Refresher) cycle(ctx context.Context) {
	start := time.Now()
	quotes, errs := r.resolver.ResolveBatch(ctx, r.symbols)
	if ctx.Err() != nil {
		return // superseded or shutting down
	}
	if r.log != nil {
		r.log.Debug("watchlist refreshed",
			applogger.Int("resolved", len(quotes)),
			applogger.Int("failed", len(errs)),
			applogger.Duration("took", time.Since(start)),
		)
		for sym, err := range errs {
			r.log.Warn("watchlist symbol failed", applogger.String("symbol", sym), applogger.Error(err))
		}
	}
}
