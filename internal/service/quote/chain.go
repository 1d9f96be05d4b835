package quote

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"QuotePulse/internal/domain/models"
	domrepo "QuotePulse/internal/domain/repository"
	xlogger "QuotePulse/pkg/logger"
)

// FallbackCache is the read side of the cache tiers the chain cascades into
// after every provider has failed.
type FallbackCache interface {
	LastKnownGood(ctx context.Context, symbol string) (*models.Quote, bool)
	History(ctx context.Context, symbol, rng, interval string) (*models.HistoricalSeries, bool)
	AnyHistory(ctx context.Context, symbol string) (*models.HistoricalSeries, bool)
}

// RetryConfig controls per-provider attempts and backoff.
type RetryConfig struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	JitterFraction float64
	AttemptTimeout time.Duration
	BackoffWindow  time.Duration // global window armed on 429/503
}

// DefaultRetryConfig mirrors typical vendor guidance: few attempts, short base.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BackoffBase:    400 * time.Millisecond,
		BackoffMax:     8 * time.Second,
		JitterFraction: 0.25,
		AttemptTimeout: 6 * time.Second,
		BackoffWindow:  90 * time.Second,
	}
}

// Chain cascades through providers, then cache tiers, then last-close
// synthesis, and produces a Quote-shaped value for every symbol except
// invalid ones.
type Chain struct {
	providers []domrepo.Provider
	fallback  FallbackCache
	norm      *Normalizer
	retry     RetryConfig
	log       *xlogger.Logger
	metrics   domrepo.Metrics

	mu           sync.Mutex
	backoffUntil time.Time
	rng          *rand.Rand
}

// NewChain builds the fetch chain over an ordered provider list.
func NewChain(providers []domrepo.Provider, fallback FallbackCache, norm *Normalizer, retry RetryConfig, log *xlogger.Logger, metrics domrepo.Metrics) *Chain {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Chain{
		providers: providers,
		fallback:  fallback,
		norm:      norm,
		retry:     retry,
		log:       log,
		metrics:   metrics,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// outcome is the verdict of one attempt: succeed, retry after a delay, or fail.
type outcome struct {
	retryAfter time.Duration
	retry      bool
	err        *FetchError
}

// attemptOutcome decides what to do with a classified failure at attempt n.
func (c *Chain) attemptOutcome(fe *FetchError, attempt int) outcome {
	if fe.Kind == KindRateLimit || fe.Status == 503 {
		c.armBackoff()
	}
	if !fe.Retryable() || attempt >= c.retry.MaxAttempts {
		return outcome{err: fe}
	}
	return outcome{retry: true, retryAfter: c.backoffDelay(attempt)}
}

// backoffDelay computes base * 2^(attempt-1) + jitter, capped at BackoffMax.
func (c *Chain) backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(c.retry.BackoffBase) * math.Pow(2, float64(attempt-1)))
	if d > c.retry.BackoffMax {
		d = c.retry.BackoffMax
	}
	c.mu.Lock()
	jitter := time.Duration(c.rng.Float64() * c.retry.JitterFraction * float64(d))
	c.mu.Unlock()
	return d + jitter
}

// armBackoff (re)starts the global backoff window.
func (c *Chain) armBackoff() {
	c.mu.Lock()
	c.backoffUntil = time.Now().Add(c.retry.BackoffWindow)
	c.mu.Unlock()
	c.metrics.RecordBackoffArmed()
	c.log.Warn("global backoff window armed",
		xlogger.Duration("window", c.retry.BackoffWindow))
}

// BackoffActive reports whether the global backoff window is open.
func (c *Chain) BackoffActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.backoffUntil)
}

// RefreshInterval doubles the base interval while the backoff window is open.
// Existing in-flight requests are unaffected; only new scheduling slows down.
func (c *Chain) RefreshInterval(base time.Duration) time.Duration {
	if c.BackoffActive() {
		return base * 2
	}
	return base
}

// ResolveBatch resolves many symbols with one batched call to the primary
// provider; symbols missing from the batch fall through the per-symbol chain.
// The error map carries invalid_symbol errors only.
func (c *Chain) ResolveBatch(ctx context.Context, symbols []string) (map[string]*models.Quote, map[string]error) {
	out := make(map[string]*models.Quote, len(symbols))
	errs := make(map[string]error)

	missing := symbols
	if len(c.providers) > 0 && len(symbols) > 1 {
		batch, err := c.fetchWithRetry(ctx, c.providers[0], symbols)
		if err != nil {
			c.log.Warn("batched fetch failed; resolving per symbol",
				xlogger.String("provider", c.providers[0].Name()), xlogger.Error(err))
		}
		missing = missing[:0:0]
		for _, sym := range symbols {
			if q, ok := batch[strings.ToUpper(sym)]; ok && q.Price != nil {
				out[strings.ToUpper(sym)] = q
			} else {
				missing = append(missing, sym)
			}
		}
	}

	for _, sym := range missing {
		q, err := c.ResolveQuote(ctx, sym)
		if err != nil {
			errs[strings.ToUpper(sym)] = err
			continue
		}
		out[strings.ToUpper(sym)] = q
	}
	return out, errs
}

// ResolveQuote walks the full chain for one symbol. The returned error is
// non-nil only for invalid symbols; every other failure mode degrades to a
// CACHED, LAST_CLOSE or UNAVAILABLE quote.
func (c *Chain) ResolveQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(symbol)
	now := time.Now().UnixMilli()
	var lastReason string

	for i, p := range c.providers {
		quotes, err := c.fetchWithRetry(ctx, p, []string{symbol})
		if err == nil {
			if q, ok := quotes[symbol]; ok && q.Price != nil {
				return q, nil
			}
			// provider answered but does not know the symbol
			err = NewFetchError(KindInvalidSymbol, p.Name(), symbol, errors.New("symbol absent from provider response"))
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = NewFetchError(KindProvider, p.Name(), symbol, err)
		}
		if !fe.FallbackEligible() {
			c.log.Warn("terminal fetch error; aborting chain",
				xlogger.String("symbol", symbol), xlogger.String("provider", p.Name()),
				xlogger.String("kind", string(fe.Kind)))
			return nil, fe
		}
		lastReason = string(fe.Kind)
		next := "cache"
		if i+1 < len(c.providers) {
			next = c.providers[i+1].Name()
		}
		c.metrics.RecordFallback(p.Name(), next, lastReason)
		c.log.Warn("provider failed; cascading",
			xlogger.String("symbol", symbol), xlogger.String("provider", p.Name()),
			xlogger.String("next", next), xlogger.String("reason", lastReason),
			xlogger.Int("attempts", c.retry.MaxAttempts))
	}

	// Cache tier: last known good
	if cached, ok := c.fallback.LastKnownGood(ctx, symbol); ok {
		c.metrics.RecordCache("last_known_good", "hit")
		return c.norm.FromCache(cached, "last-known-good", now), nil
	}
	c.metrics.RecordCache("last_known_good", "miss")

	// Terminal producer: synthesize last close from any cached history
	if series, ok := c.fallback.AnyHistory(ctx, symbol); ok {
		c.metrics.RecordCache("history", "hit")
		c.metrics.RecordFallback("cache", "history", "last_close_synthesis")
		return c.norm.FromSeries(series, now), nil
	}
	c.metrics.RecordCache("history", "miss")

	reason := "all providers and cache tiers exhausted"
	if lastReason != "" {
		reason += " (last error: " + lastReason + ")"
	}
	return c.norm.Unavailable(symbol, reason, now), nil
}

// ResolveHistory walks providers then the history cache for a close series.
func (c *Chain) ResolveHistory(ctx context.Context, symbol, rng, interval string) (*models.HistoricalSeries, error) {
	symbol = strings.ToUpper(symbol)
	var lastErr error
	for _, p := range c.providers {
		series, err := c.historyWithRetry(ctx, p, symbol, rng, interval)
		if err == nil {
			return series, nil
		}
		var fe *FetchError
		if errors.As(err, &fe) && !fe.FallbackEligible() {
			return nil, fe
		}
		lastErr = err
		c.metrics.RecordFallback(p.Name(), "next", string(KindOf(err)))
		c.log.Warn("history fetch failed; cascading",
			xlogger.String("symbol", symbol), xlogger.String("provider", p.Name()),
			xlogger.Error(err))
	}

	if series, ok := c.fallback.History(ctx, symbol, rng, interval); ok {
		c.metrics.RecordCache("history", "stale_hit")
		return series, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no provider configured")
	}
	return nil, NewFetchError(KindUnavailable, "chain", symbol, lastErr)
}

// fetchWithRetry runs the per-provider attempt loop for quotes.
func (c *Chain) fetchWithRetry(ctx context.Context, p domrepo.Provider, symbols []string) (map[string]*models.Quote, error) {
	subject := strings.Join(symbols, ",")
	for attempt := 1; ; attempt++ {
		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, c.retry.AttemptTimeout)
		quotes, err := p.FetchQuotes(attemptCtx, symbols)
		cancel()
		c.metrics.RecordLatency("fetch_quotes_"+p.Name(), time.Since(start).Seconds())

		if err == nil {
			c.metrics.RecordFetch(p.Name(), "ok")
			return quotes, nil
		}
		c.metrics.RecordFetch(p.Name(), string(KindOf(err)))

		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = NewFetchError(KindProvider, p.Name(), subject, err)
		}
		o := c.attemptOutcome(fe, attempt)
		if !o.retry {
			return nil, o.err
		}
		c.log.Debug("retrying fetch",
			xlogger.String("provider", p.Name()), xlogger.String("symbols", subject),
			xlogger.Int("attempt", attempt), xlogger.Duration("delay", o.retryAfter))
		select {
		case <-time.After(o.retryAfter):
		case <-ctx.Done():
			return nil, NewFetchError(KindTimeout, p.Name(), subject, ctx.Err())
		}
	}
}

// historyWithRetry runs the per-provider attempt loop for history.
func (c *Chain) historyWithRetry(ctx context.Context, p domrepo.Provider, symbol, rng, interval string) (*models.HistoricalSeries, error) {
	for attempt := 1; ; attempt++ {
		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, c.retry.AttemptTimeout)
		series, err := p.FetchHistory(attemptCtx, symbol, rng, interval)
		cancel()
		c.metrics.RecordLatency("fetch_history_"+p.Name(), time.Since(start).Seconds())

		if err == nil {
			if !series.Validate() {
				return nil, NewFetchError(KindProvider, p.Name(), symbol, errors.New("series timestamps not strictly increasing"))
			}
			c.metrics.RecordFetch(p.Name(), "ok")
			return series, nil
		}
		c.metrics.RecordFetch(p.Name(), string(KindOf(err)))

		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = NewFetchError(KindProvider, p.Name(), symbol, err)
		}
		o := c.attemptOutcome(fe, attempt)
		if !o.retry {
			return nil, o.err
		}
		select {
		case <-time.After(o.retryAfter):
		case <-ctx.Done():
			return nil, NewFetchError(KindTimeout, p.Name(), symbol, ctx.Err())
		}
	}
}
