package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"QuotePulse/internal/domain/models"
	domrepo "QuotePulse/internal/domain/repository"
	"QuotePulse/internal/service/marketclock"
	xlogger "QuotePulse/pkg/logger"
)

// TTLConfig holds the per-tier expiry policy.
type TTLConfig struct {
	QuoteRegular    time.Duration // short quote cache during REGULAR
	QuoteExtended   time.Duration // short quote cache during PRE/POST
	QuoteClosed     time.Duration // short quote cache while CLOSED
	LastKnownGood   time.Duration
	HistoryDaily    time.Duration
	HistoryIntraday time.Duration
}

// DefaultTTLConfig: shortest while the market moves, longest when it cannot.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		QuoteRegular:    45 * time.Second,
		QuoteExtended:   3 * time.Minute,
		QuoteClosed:     15 * time.Minute,
		LastKnownGood:   7 * 24 * time.Hour,
		HistoryDaily:    24 * time.Hour,
		HistoryIntraday: time.Hour,
	}
}

// entry wraps a payload with its expiry bookkeeping. This is also the
// persisted shape: {payload, storedAt, ttlMs}.
type entry struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt int64           `json:"storedAt"` // epoch ms
	TTLMs    int64           `json:"ttlMs"`
}

func (e entry) expired(nowMs int64) bool {
	return nowMs-e.StoredAt >= e.TTLMs
}

// table is one cache tier: a flat map of key to entry.
type table struct {
	mu sync.RWMutex
	m  map[string]entry
}

func newTable() *table { return &table{m: make(map[string]entry)} }

func (t *table) get(key string, nowMs int64, honorTTL bool) (json.RawMessage, bool) {
	t.mu.RLock()
	e, ok := t.m[key]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if honorTTL && e.expired(nowMs) {
		t.mu.Lock()
		delete(t.m, key)
		t.mu.Unlock()
		return nil, false
	}
	return e.Payload, true
}

func (t *table) set(key string, payload interface{}, ttl time.Duration, nowMs int64) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.m[key] = entry{Payload: raw, StoredAt: nowMs, TTLMs: ttl.Milliseconds()}
	t.mu.Unlock()
	return nil
}

func (t *table) snapshot() map[string]entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]entry, len(t.m))
	for k, v := range t.m {
		out[k] = v
	}
	return out
}

func (t *table) load(snap map[string]entry, nowMs int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, v := range snap {
		if v.expired(nowMs) {
			continue
		}
		t.m[k] = v
		n++
	}
	return n
}

func (t *table) keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.m))
	for k := range t.m {
		out = append(out, k)
	}
	return out
}

// Durable keys for the persisted tiers.
const (
	kvKeyLastKnownGood = "tiers:last_known_good"
	kvKeyHistory       = "tiers:history"
)

// Store owns the three cache tiers. The pipeline process is the only writer;
// concurrent refreshes of the same symbol resolve last-writer-wins.
type Store struct {
	quotes  *table // short TTL, session-scaled
	lkg     *table // terminal quote fallback, durable
	history *table // series cache, durable

	kv      domrepo.KVStore // nil degrades to memory-only
	ttl     TTLConfig
	clock   *marketclock.Clock
	metrics domrepo.Metrics
	log     *xlogger.Logger
}

// New creates the store; kv may be nil.
func New(kv domrepo.KVStore, ttl TTLConfig, clock *marketclock.Clock, metrics domrepo.Metrics, log *xlogger.Logger) *Store {
	return &Store{
		quotes:  newTable(),
		lkg:     newTable(),
		history: newTable(),
		kv:      kv,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		log:     log,
	}
}

// Init loads the durable tiers; a failed load starts empty rather than erroring.
func (s *Store) Init(ctx context.Context) error {
	if s.kv == nil {
		s.log.Info("durable store absent; caches are memory-only")
		return nil
	}
	now := time.Now().UnixMilli()

	var lkgSnap map[string]entry
	if err := s.kv.Get(ctx, kvKeyLastKnownGood, &lkgSnap); err == nil {
		n := s.lkg.load(lkgSnap, now)
		s.log.Info("last-known-good tier restored", xlogger.Int("entries", n))
	}

	var histSnap map[string]entry
	if err := s.kv.Get(ctx, kvKeyHistory, &histSnap); err == nil {
		n := s.history.load(histSnap, now)
		s.log.Info("history tier restored", xlogger.Int("entries", n))
	}
	return nil
}

// Flush persists the durable tiers as flat key->entry maps.
func (s *Store) Flush(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	if err := s.kv.Set(ctx, kvKeyLastKnownGood, s.lkg.snapshot(), s.ttl.LastKnownGood); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, kvKeyHistory, s.history.snapshot(), s.ttl.HistoryDaily); err != nil {
		return err
	}
	return nil
}

// quoteTTL scales the short-tier TTL with the session.
func (s *Store) quoteTTL(session models.Session) time.Duration {
	switch session {
	case models.SessionRegular:
		return s.ttl.QuoteRegular
	case models.SessionPre, models.SessionPost:
		return s.ttl.QuoteExtended
	default:
		return s.ttl.QuoteClosed
	}
}

// GetQuote reads the short tier.
func (s *Store) GetQuote(_ context.Context, symbol string) (*models.Quote, bool) {
	raw, ok := s.quotes.get(symbol, time.Now().UnixMilli(), true)
	if !ok {
		s.metrics.RecordCache("quote", "miss")
		return nil, false
	}
	var q models.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, false
	}
	s.metrics.RecordCache("quote", "hit")
	return &q, true
}

// PutQuote writes the short tier and writes through to last-known-good for
// every usable quote, regardless of which tier served the read.
func (s *Store) PutQuote(_ context.Context, q *models.Quote) {
	now := time.Now().UnixMilli()
	if err := s.quotes.set(q.Symbol, q, s.quoteTTL(q.Session), now); err != nil {
		s.log.Warn("quote cache write failed", xlogger.String("symbol", q.Symbol), xlogger.Error(err))
		return
	}
	if q.Price != nil && q.Source != models.SourceUnavailable {
		if err := s.lkg.set(q.Symbol, q, s.ttl.LastKnownGood, now); err != nil {
			s.log.Warn("last-known-good write failed", xlogger.String("symbol", q.Symbol), xlogger.Error(err))
		}
	}
}

// LastKnownGood reads the terminal fallback tier.
func (s *Store) LastKnownGood(_ context.Context, symbol string) (*models.Quote, bool) {
	raw, ok := s.lkg.get(symbol, time.Now().UnixMilli(), true)
	if !ok {
		return nil, false
	}
	var q models.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, false
	}
	return &q, true
}

func historyKey(symbol, rng, interval string) string {
	return symbol + ":" + rng + ":" + interval
}

// GetHistory reads the series tier.
func (s *Store) GetHistory(_ context.Context, symbol, rng, interval string) (*models.HistoricalSeries, bool) {
	raw, ok := s.history.get(historyKey(symbol, rng, interval), time.Now().UnixMilli(), true)
	if !ok {
		s.metrics.RecordCache("history", "miss")
		return nil, false
	}
	var h models.HistoricalSeries
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, false
	}
	s.metrics.RecordCache("history", "hit")
	return &h, true
}

// PutHistory replaces the cached series wholesale; daily bars live a day,
// intraday an hour.
func (s *Store) PutHistory(_ context.Context, h *models.HistoricalSeries) error {
	if !h.Validate() {
		return errors.New("series timestamps not strictly increasing")
	}
	ttl := s.ttl.HistoryDaily
	if domrepo.IsIntraday(h.Interval) {
		ttl = s.ttl.HistoryIntraday
	}
	return s.history.set(historyKey(h.Symbol, h.Range, h.Interval), h, ttl, time.Now().UnixMilli())
}

// History reads the series tier ignoring expiry: a stale series still beats no
// series when the chain has nothing else.
func (s *Store) History(_ context.Context, symbol, rng, interval string) (*models.HistoricalSeries, bool) {
	raw, ok := s.history.get(historyKey(symbol, rng, interval), time.Now().UnixMilli(), false)
	if !ok {
		return nil, false
	}
	var h models.HistoricalSeries
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, false
	}
	return &h, true
}

// AnyHistory returns any cached series for the symbol, preferring daily bars,
// for last-close synthesis.
func (s *Store) AnyHistory(ctx context.Context, symbol string) (*models.HistoricalSeries, bool) {
	var best *models.HistoricalSeries
	for _, key := range s.history.keys() {
		raw, ok := s.history.get(key, time.Now().UnixMilli(), false)
		if !ok {
			continue
		}
		var h models.HistoricalSeries
		if err := json.Unmarshal(raw, &h); err != nil || h.Symbol != symbol || len(h.Points) == 0 {
			continue
		}
		if best == nil || (h.Interval == "1d" && best.Interval != "1d") {
			cp := h
			best = &cp
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}
