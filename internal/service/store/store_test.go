package store

import (
	"context"
	"testing"
	"time"

	"QuotePulse/internal/domain/models"
	"QuotePulse/internal/service/marketclock"
	"QuotePulse/pkg/cache"
	xlogger "QuotePulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(provider, outcome string)     {}
func (nopMetrics) RecordFallback(from, to, reason string)   {}
func (nopMetrics) RecordCache(tier, outcome string)         {}
func (nopMetrics) RecordLastPrice(symbol string, p float64) {}
func (nopMetrics) RecordLatency(op string, seconds float64) {}
func (nopMetrics) RecordBackoffArmed()                      {}
func (nopMetrics) RecordDrop(stage string)                  {}

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func shortTTL() TTLConfig {
	return TTLConfig{
		QuoteRegular:    30 * time.Millisecond,
		QuoteExtended:   30 * time.Millisecond,
		QuoteClosed:     30 * time.Millisecond,
		LastKnownGood:   time.Hour,
		HistoryDaily:    time.Hour,
		HistoryIntraday: 30 * time.Millisecond,
	}
}

func newTestStore(t *testing.T, kv *cache.MemoryCache, ttl TTLConfig) *Store {
	t.Helper()
	var s *Store
	if kv == nil {
		s = New(nil, ttl, marketclock.New(), nopMetrics{}, testLogger(t))
	} else {
		s = New(kv, ttl, marketclock.New(), nopMetrics{}, testLogger(t))
	}
	return s
}

func regularQuote(symbol string, price float64) *models.Quote {
	return &models.Quote{
		Symbol:  symbol,
		Price:   &price,
		Session: models.SessionRegular,
		Source:  models.SourceRealtime,
	}
}

func dailySeries(symbol string, closes ...float64) *models.HistoricalSeries {
	h := &models.HistoricalSeries{Symbol: symbol, Range: "1mo", Interval: "1d"}
	for i, c := range closes {
		h.Points = append(h.Points, models.Point{Timestamp: int64(i + 1), Close: c})
	}
	return h
}

func TestQuoteTierExpires(t *testing.T) {
	s := newTestStore(t, nil, shortTTL())
	ctx := context.Background()

	s.PutQuote(ctx, regularQuote("AAPL", 231.5))
	if q, ok := s.GetQuote(ctx, "AAPL"); !ok || q.PriceValue() != 231.5 {
		t.Fatalf("GetQuote before expiry = %v, %v", q, ok)
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok := s.GetQuote(ctx, "AAPL"); ok {
		t.Fatal("quote should have expired from the short tier")
	}
	// write-through copy outlives the short tier
	if q, ok := s.LastKnownGood(ctx, "AAPL"); !ok || q.PriceValue() != 231.5 {
		t.Fatalf("LastKnownGood after short-tier expiry = %v, %v", q, ok)
	}
}

func TestPutQuoteSkipsWriteThroughForUnusable(t *testing.T) {
	s := newTestStore(t, nil, shortTTL())
	ctx := context.Background()

	s.PutQuote(ctx, &models.Quote{Symbol: "AAPL", Source: models.SourceUnavailable})
	if _, ok := s.LastKnownGood(ctx, "AAPL"); ok {
		t.Fatal("unavailable quote must not populate last-known-good")
	}
}

func TestHistoryReadIgnoresExpiry(t *testing.T) {
	s := newTestStore(t, nil, shortTTL())
	ctx := context.Background()

	h := &models.HistoricalSeries{
		Symbol: "AAPL", Range: "1d", Interval: "5m",
		Points: []models.Point{{Timestamp: 1, Close: 230}, {Timestamp: 2, Close: 231}},
	}
	if err := s.PutHistory(ctx, h); err != nil {
		t.Fatalf("PutHistory: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok := s.GetHistory(ctx, "AAPL", "1d", "5m"); ok {
		t.Fatal("GetHistory should honor the intraday TTL")
	}
	stale, ok := s.History(ctx, "AAPL", "1d", "5m")
	if !ok {
		t.Fatal("History should serve the expired series")
	}
	if len(stale.Points) != 2 {
		t.Fatalf("stale series has %d points, want 2", len(stale.Points))
	}
}

func TestPutHistoryRejectsUnorderedSeries(t *testing.T) {
	s := newTestStore(t, nil, shortTTL())
	h := &models.HistoricalSeries{
		Symbol: "AAPL", Range: "1mo", Interval: "1d",
		Points: []models.Point{{Timestamp: 5, Close: 1}, {Timestamp: 3, Close: 2}},
	}
	if err := s.PutHistory(context.Background(), h); err == nil {
		t.Fatal("expected error for non-monotonic timestamps")
	}
}

func TestAnyHistoryPrefersDailyBars(t *testing.T) {
	s := newTestStore(t, nil, shortTTL())
	ctx := context.Background()

	intraday := &models.HistoricalSeries{
		Symbol: "AAPL", Range: "1d", Interval: "5m",
		Points: []models.Point{{Timestamp: 1, Close: 100}},
	}
	if err := s.PutHistory(ctx, intraday); err != nil {
		t.Fatalf("PutHistory intraday: %v", err)
	}
	if err := s.PutHistory(ctx, dailySeries("AAPL", 228, 230)); err != nil {
		t.Fatalf("PutHistory daily: %v", err)
	}

	got, ok := s.AnyHistory(ctx, "AAPL")
	if !ok {
		t.Fatal("AnyHistory miss")
	}
	if got.Interval != "1d" {
		t.Fatalf("interval = %s, want daily bars preferred", got.Interval)
	}

	if _, ok := s.AnyHistory(ctx, "MSFT"); ok {
		t.Fatal("AnyHistory must not serve another symbol's series")
	}
}

func TestFlushAndInitRoundTrip(t *testing.T) {
	kv := cache.NewMemoryCache()
	defer kv.Close()
	ctx := context.Background()

	ttl := shortTTL()
	first := newTestStore(t, kv, ttl)
	first.PutQuote(ctx, regularQuote("AAPL", 231.5))
	if err := first.PutHistory(ctx, dailySeries("AAPL", 228, 230)); err != nil {
		t.Fatalf("PutHistory: %v", err)
	}
	if err := first.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	second := newTestStore(t, kv, ttl)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if q, ok := second.LastKnownGood(ctx, "AAPL"); !ok || q.PriceValue() != 231.5 {
		t.Fatalf("restored LastKnownGood = %v, %v", q, ok)
	}
	if h, ok := second.GetHistory(ctx, "AAPL", "1mo", "1d"); !ok || len(h.Points) != 2 {
		t.Fatalf("restored history = %v, %v", h, ok)
	}
	// the short quote tier is deliberately not persisted
	if _, ok := second.GetQuote(ctx, "AAPL"); ok {
		t.Fatal("short quote tier must start cold")
	}
}
