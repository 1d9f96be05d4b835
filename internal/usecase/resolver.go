package usecase

import (
	"context"
	"strings"
	"time"

	"QuotePulse/internal/domain/models"
	drepo "QuotePulse/internal/domain/repository"
	"QuotePulse/internal/service/limiter"
	"QuotePulse/internal/service/quote"
	"QuotePulse/internal/service/store"
	applogger "QuotePulse/pkg/logger"
)

// Resolver is the read-through quote resolution pipeline: cache first, then a
// limiter-gated pass through the provider chain, with write-through on success.
type Resolver struct {
	limiter  *limiter.Limiter
	chain    *quote.Chain
	store    *store.Store
	notifier drepo.Notifier
	audit    drepo.AuditSink
	metrics  drepo.Metrics
	log      *applogger.Logger
}

// NewResolver creates a resolver. Notifier and audit may be nil; resolution
// proceeds without them.
func NewResolver(
	lim *limiter.Limiter,
	chain *quote.Chain,
	st *store.Store,
	notifier drepo.Notifier,
	audit drepo.AuditSink,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *Resolver {
	return &Resolver{
		limiter:  lim,
		chain:    chain,
		store:    st,
		notifier: notifier,
		audit:    audit,
		metrics:  metrics,
		log:      log,
	}
}

// ResolveQuote returns a quote for one symbol, serving from the short-lived
// cache when fresh. Only invalid symbols produce an error.
func (r *Resolver) ResolveQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if q, ok := r.store.GetQuote(ctx, symbol); ok {
		return q, nil
	}

	start := time.Now()
	var q *models.Quote
	err := r.limiter.Do(ctx, func(ctx context.Context) error {
		var rerr error
		q, rerr = r.chain.ResolveQuote(ctx, symbol)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.RecordLatency("resolve_quote", time.Since(start).Seconds())
	}

	r.accept(ctx, q)
	return q, nil
}

// ResolveBatch resolves many symbols, serving cached ones without touching the
// providers and fetching the rest in one batched pass. Per-symbol failures are
// reported in the error map; resolvable symbols always get a quote.
func (r *Resolver) ResolveBatch(ctx context.Context, symbols []string) (map[string]*models.Quote, map[string]error) {
	quotes := make(map[string]*models.Quote, len(symbols))
	var missing []string
	for _, raw := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" {
			continue
		}
		if q, ok := r.store.GetQuote(ctx, sym); ok {
			quotes[sym] = q
			continue
		}
		missing = append(missing, sym)
	}
	if len(missing) == 0 {
		return quotes, nil
	}

	var fetched map[string]*models.Quote
	var errs map[string]error
	lerr := r.limiter.Do(ctx, func(ctx context.Context) error {
		fetched, errs = r.chain.ResolveBatch(ctx, missing)
		return nil
	})
	if lerr != nil {
		if errs == nil {
			errs = make(map[string]error, len(missing))
		}
		for _, sym := range missing {
			errs[sym] = lerr
		}
		return quotes, errs
	}

	for sym, q := range fetched {
		quotes[sym] = q
		r.accept(ctx, q)
	}
	return quotes, errs
}

// History returns a close-price series, reading through the history cache.
func (r *Resolver) History(ctx context.Context, symbol, rng, interval string) (*models.HistoricalSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	rng = drepo.NormalizeRange(rng)
	interval = drepo.NormalizeInterval(interval)

	if h, ok := r.store.GetHistory(ctx, symbol, rng, interval); ok {
		return h, nil
	}

	var h *models.HistoricalSeries
	err := r.limiter.Do(ctx, func(ctx context.Context) error {
		var rerr error
		h, rerr = r.chain.ResolveHistory(ctx, symbol, rng, interval)
		return rerr
	})
	if err != nil {
		// expired cached series beats nothing at all
		if stale, ok := r.store.History(ctx, symbol, rng, interval); ok {
			return stale, nil
		}
		return nil, err
	}

	if perr := r.store.PutHistory(ctx, h); perr != nil && r.log != nil {
		r.log.Warn("history not cached", applogger.String("symbol", symbol), applogger.Error(perr))
	}
	return h, nil
}

// accept write-throughs a resolved quote and fans out notification and audit.
func (r *Resolver) accept(ctx context.Context, q *models.Quote) {
	r.store.PutQuote(ctx, q)

	if r.metrics != nil && q.Price != nil {
		r.metrics.RecordLastPrice(q.Symbol, *q.Price)
	}

	if r.notifier != nil && q.Source != models.SourceUnavailable {
		update := &models.QuoteUpdate{Quote: q, UpdatedAt: time.Now()}
		if err := r.notifier.NotifyQuote(ctx, update); err != nil && r.log != nil {
			r.log.Warn("quote notify failed", applogger.String("symbol", q.Symbol), applogger.Error(err))
		}
	}

	if r.audit != nil {
		path := []string{q.ProviderUsed, string(q.Source)}
		if err := r.audit.RecordResolution(ctx, q, 1, path); err != nil && r.log != nil {
			r.log.Warn("audit record failed", applogger.String("symbol", q.Symbol), applogger.Error(err))
		}
	}
}
