package quote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"QuotePulse/internal/domain/models"
	domrepo "QuotePulse/internal/domain/repository"
	"QuotePulse/internal/service/marketclock"
	xlogger "QuotePulse/pkg/logger"
)

type fakeProvider struct {
	name string

	mu         sync.Mutex
	quoteCalls int
	historyFn  func(symbol string) (*models.HistoricalSeries, error)
	quotesFn   func(call int, symbols []string) (map[string]*models.Quote, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	f.mu.Lock()
	f.quoteCalls++
	call := f.quoteCalls
	f.mu.Unlock()
	return f.quotesFn(call, symbols)
}

func (f *fakeProvider) FetchHistory(ctx context.Context, symbol, rng, interval string) (*models.HistoricalSeries, error) {
	if f.historyFn == nil {
		return nil, NewFetchError(KindProvider, f.name, symbol, errors.New("history not supported"))
	}
	return f.historyFn(symbol)
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quoteCalls
}

type fakeFallback struct {
	lkg     *models.Quote
	history *models.HistoricalSeries
}

func (f *fakeFallback) LastKnownGood(ctx context.Context, symbol string) (*models.Quote, bool) {
	return f.lkg, f.lkg != nil
}

func (f *fakeFallback) History(ctx context.Context, symbol, rng, interval string) (*models.HistoricalSeries, bool) {
	return f.history, f.history != nil
}

func (f *fakeFallback) AnyHistory(ctx context.Context, symbol string) (*models.HistoricalSeries, bool) {
	return f.history, f.history != nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	fallbacks []string
	backoffs  int
}

func (m *recordingMetrics) RecordFetch(provider, outcome string)     {}
func (m *recordingMetrics) RecordCache(tier, outcome string)         {}
func (m *recordingMetrics) RecordLastPrice(symbol string, p float64) {}
func (m *recordingMetrics) RecordLatency(op string, seconds float64) {}
func (m *recordingMetrics) RecordDrop(stage string)                  {}

func (m *recordingMetrics) RecordFallback(from, to, reason string) {
	m.mu.Lock()
	m.fallbacks = append(m.fallbacks, from+"->"+to)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordBackoffArmed() {
	m.mu.Lock()
	m.backoffs++
	m.mu.Unlock()
}

func (m *recordingMetrics) fallbackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fallbacks)
}

func (m *recordingMetrics) armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backoffs
}

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
		AttemptTimeout: time.Second,
		BackoffWindow:  200 * time.Millisecond,
	}
}

func goodQuote(symbol string, price float64) *models.Quote {
	return &models.Quote{
		Symbol:  symbol,
		Price:   &price,
		Session: models.SessionRegular,
		Source:  models.SourceRealtime,
	}
}

func alwaysQuote(symbol string, price float64) func(int, []string) (map[string]*models.Quote, error) {
	return func(int, []string) (map[string]*models.Quote, error) {
		return map[string]*models.Quote{symbol: goodQuote(symbol, price)}, nil
	}
}

func alwaysFail(name string, kind ErrorKind) func(int, []string) (map[string]*models.Quote, error) {
	return func(int, []string) (map[string]*models.Quote, error) {
		return nil, NewFetchError(kind, name, "", errors.New("boom"))
	}
}

func newTestChain(t *testing.T, fb *fakeFallback, m *recordingMetrics, providers ...*fakeProvider) *Chain {
	t.Helper()
	list := make([]domrepo.Provider, len(providers))
	for i, p := range providers {
		list[i] = p
	}
	norm := NewNormalizer(marketclock.New(), DefaultThresholds())
	return NewChain(list, fb, norm, fastRetry(), testLogger(t), m)
}

func TestResolveQuoteFirstProviderWins(t *testing.T) {
	primary := &fakeProvider{name: "primary", quotesFn: alwaysQuote("AAPL", 231.5)}
	secondary := &fakeProvider{name: "secondary", quotesFn: alwaysQuote("AAPL", 231.4)}
	m := &recordingMetrics{}
	c := newTestChain(t, &fakeFallback{}, m, primary, secondary)

	q, err := c.ResolveQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("ResolveQuote: %v", err)
	}
	if q.PriceValue() != 231.5 {
		t.Fatalf("price = %v, want primary's 231.5", q.PriceValue())
	}
	if secondary.calls() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.calls())
	}
	if m.fallbackCount() != 0 {
		t.Fatalf("unexpected fallbacks: %v", m.fallbacks)
	}
}

func TestResolveQuoteFallsBackToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", quotesFn: alwaysFail("primary", KindHTTP)}
	secondary := &fakeProvider{name: "secondary", quotesFn: alwaysQuote("AAPL", 230.9)}
	m := &recordingMetrics{}
	c := newTestChain(t, &fakeFallback{}, m, primary, secondary)

	q, err := c.ResolveQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("ResolveQuote: %v", err)
	}
	if q.PriceValue() != 230.9 {
		t.Fatalf("price = %v, want secondary's 230.9", q.PriceValue())
	}
	if m.fallbackCount() != 1 {
		t.Fatalf("fallbacks = %v, want one primary->secondary transition", m.fallbacks)
	}
}

func TestResolveQuoteInvalidSymbolIsTerminal(t *testing.T) {
	primary := &fakeProvider{name: "primary", quotesFn: alwaysFail("primary", KindInvalidSymbol)}
	secondary := &fakeProvider{name: "secondary", quotesFn: alwaysQuote("NOPE", 1)}
	lkg := goodQuote("NOPE", 99)
	c := newTestChain(t, &fakeFallback{lkg: lkg}, &recordingMetrics{}, primary, secondary)

	q, err := c.ResolveQuote(context.Background(), "NOPE")
	if err == nil {
		t.Fatalf("expected terminal error, got quote %+v", q)
	}
	if !IsInvalidSymbol(err) {
		t.Fatalf("error kind = %s, want invalid_symbol", KindOf(err))
	}
	if secondary.calls() != 0 {
		t.Fatal("invalid symbol must not cascade to the next provider")
	}
}

func TestResolveQuoteServesLastKnownGood(t *testing.T) {
	primary := &fakeProvider{name: "primary", quotesFn: alwaysFail("primary", KindProvider)}
	lkg := goodQuote("AAPL", 229.4)
	c := newTestChain(t, &fakeFallback{lkg: lkg}, &recordingMetrics{}, primary)

	q, err := c.ResolveQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("ResolveQuote: %v", err)
	}
	if q.PriceValue() != 229.4 {
		t.Fatalf("price = %v, want cached 229.4", q.PriceValue())
	}
	if !q.IsStale {
		t.Fatal("cache-served quote must be stale")
	}
	if q.Source != models.SourceCached && q.Source != models.SourceLastClose {
		t.Fatalf("source = %s, want CACHED or LAST_CLOSE", q.Source)
	}
}

func TestResolveQuoteSynthesizesLastClose(t *testing.T) {
	primary := &fakeProvider{name: "primary", quotesFn: alwaysFail("primary", KindProvider)}
	series := &models.HistoricalSeries{
		Symbol: "AAPL", Range: "1mo", Interval: "1d",
		Points: []models.Point{{Timestamp: 1, Close: 227}, {Timestamp: 2, Close: 228.5}},
	}
	c := newTestChain(t, &fakeFallback{history: series}, &recordingMetrics{}, primary)

	q, err := c.ResolveQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("ResolveQuote: %v", err)
	}
	if q.Source != models.SourceLastClose {
		t.Fatalf("source = %s, want LAST_CLOSE", q.Source)
	}
	if q.PriceValue() != 228.5 {
		t.Fatalf("price = %v, want last close 228.5", q.PriceValue())
	}
}

func TestResolveQuoteDegradesToUnavailable(t *testing.T) {
	primary := &fakeProvider{name: "primary", quotesFn: alwaysFail("primary", KindProvider)}
	c := newTestChain(t, &fakeFallback{}, &recordingMetrics{}, primary)

	q, err := c.ResolveQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("exhausted chain must not error: %v", err)
	}
	if q.Source != models.SourceUnavailable {
		t.Fatalf("source = %s, want UNAVAILABLE", q.Source)
	}
	if q.Price != nil {
		t.Fatalf("unavailable quote must carry nil price, got %v", *q.Price)
	}
}

func TestRetryableErrorRetriesSameProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	primary.quotesFn = func(call int, symbols []string) (map[string]*models.Quote, error) {
		if call == 1 {
			return nil, NewFetchError(KindNetwork, "primary", "AAPL", errors.New("connection reset"))
		}
		return map[string]*models.Quote{"AAPL": goodQuote("AAPL", 231)}, nil
	}
	c := newTestChain(t, &fakeFallback{}, &recordingMetrics{}, primary)

	q, err := c.ResolveQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("ResolveQuote: %v", err)
	}
	if q.PriceValue() != 231 {
		t.Fatalf("price = %v, want 231", q.PriceValue())
	}
	if primary.calls() != 2 {
		t.Fatalf("provider called %d times, want 2 (one retry)", primary.calls())
	}
}

func TestNonRetryableErrorDoesNotRetry(t *testing.T) {
	primary := &fakeProvider{name: "primary", quotesFn: alwaysFail("primary", KindProvider)}
	c := newTestChain(t, &fakeFallback{}, &recordingMetrics{}, primary)

	if _, err := c.ResolveQuote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("ResolveQuote: %v", err)
	}
	if primary.calls() != 1 {
		t.Fatalf("provider called %d times, want 1", primary.calls())
	}
}

func TestRateLimitArmsBackoffWindow(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	primary.quotesFn = func(call int, symbols []string) (map[string]*models.Quote, error) {
		if call == 1 {
			return nil, NewFetchError(KindRateLimit, "primary", "AAPL", errors.New("429"))
		}
		return map[string]*models.Quote{"AAPL": goodQuote("AAPL", 231)}, nil
	}
	m := &recordingMetrics{}
	c := newTestChain(t, &fakeFallback{}, m, primary)

	if _, err := c.ResolveQuote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("ResolveQuote: %v", err)
	}
	if !c.BackoffActive() {
		t.Fatal("backoff window should be armed after a rate limit")
	}
	if got := c.RefreshInterval(time.Minute); got != 2*time.Minute {
		t.Fatalf("RefreshInterval = %s, want doubled 2m", got)
	}
	if m.armed() == 0 {
		t.Fatal("backoff arming was not recorded")
	}

	time.Sleep(250 * time.Millisecond)
	if c.BackoffActive() {
		t.Fatal("backoff window should have expired")
	}
	if got := c.RefreshInterval(time.Minute); got != time.Minute {
		t.Fatalf("RefreshInterval = %s, want base 1m after expiry", got)
	}
}

func TestResolveBatchFillsMissingPerSymbol(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	primary.quotesFn = func(call int, symbols []string) (map[string]*models.Quote, error) {
		if len(symbols) > 1 {
			// batched call knows AAPL and MSFT only
			return map[string]*models.Quote{
				"AAPL": goodQuote("AAPL", 231),
				"MSFT": goodQuote("MSFT", 412),
			}, nil
		}
		return map[string]*models.Quote{"TSLA": goodQuote("TSLA", 250)}, nil
	}
	c := newTestChain(t, &fakeFallback{}, &recordingMetrics{}, primary)

	out, errs := c.ResolveBatch(context.Background(), []string{"AAPL", "MSFT", "TSLA"})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(out) != 3 {
		t.Fatalf("resolved %d symbols, want 3", len(out))
	}
	if out["TSLA"].PriceValue() != 250 {
		t.Fatalf("TSLA price = %v, want 250 from per-symbol fill", out["TSLA"].PriceValue())
	}
}

func TestResolveBatchReportsInvalidSymbols(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	primary.quotesFn = func(call int, symbols []string) (map[string]*models.Quote, error) {
		out := make(map[string]*models.Quote)
		for _, s := range symbols {
			if s == "NOPE" {
				continue
			}
			out[s] = goodQuote(s, 100)
		}
		if len(out) == 0 {
			return nil, NewFetchError(KindInvalidSymbol, "primary", symbols[0], errors.New("unknown symbol"))
		}
		return out, nil
	}
	c := newTestChain(t, &fakeFallback{}, &recordingMetrics{}, primary)

	out, errs := c.ResolveBatch(context.Background(), []string{"AAPL", "NOPE"})
	if _, ok := out["AAPL"]; !ok {
		t.Fatal("valid symbol missing from batch result")
	}
	if err, ok := errs["NOPE"]; !ok || !IsInvalidSymbol(err) {
		t.Fatalf("errs[NOPE] = %v, want invalid_symbol", errs["NOPE"])
	}
}

func TestResolveHistoryFallsBackToStaleCache(t *testing.T) {
	primary := &fakeProvider{name: "primary", quotesFn: alwaysFail("primary", KindProvider)}
	series := &models.HistoricalSeries{
		Symbol: "AAPL", Range: "3mo", Interval: "1d",
		Points: []models.Point{{Timestamp: 1, Close: 220}, {Timestamp: 2, Close: 221}},
	}
	c := newTestChain(t, &fakeFallback{history: series}, &recordingMetrics{}, primary)

	got, err := c.ResolveHistory(context.Background(), "AAPL", "3mo", "1d")
	if err != nil {
		t.Fatalf("ResolveHistory: %v", err)
	}
	if len(got.Points) != 2 {
		t.Fatalf("points = %d, want stale cached series", len(got.Points))
	}
}

func TestResolveHistoryRejectsUnorderedSeries(t *testing.T) {
	primary := &fakeProvider{name: "primary", quotesFn: alwaysFail("primary", KindProvider)}
	primary.historyFn = func(symbol string) (*models.HistoricalSeries, error) {
		return &models.HistoricalSeries{
			Symbol: symbol,
			Points: []models.Point{{Timestamp: 5, Close: 1}, {Timestamp: 3, Close: 2}},
		}, nil
	}
	c := newTestChain(t, &fakeFallback{}, &recordingMetrics{}, primary)

	if _, err := c.ResolveHistory(context.Background(), "AAPL", "1mo", "1d"); err == nil {
		t.Fatal("expected error for non-monotonic series")
	}
}
