package repository

import (
	"context"
	"time"

	"QuotePulse/internal/domain/models"
)

// Provider fetches raw market data from one upstream source.
// FetchQuotes is batched; symbols missing from the result are resolved
// individually by the caller.
type Provider interface {
	Name() string
	FetchQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error)
	FetchHistory(ctx context.Context, symbol, rng, interval string) (*models.HistoricalSeries, error)
}

// KVStore is the durable key/value collaborator backing cache persistence.
// Values are JSON-serializable; absence of a store degrades to memory-only caching.
type KVStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Notifier pushes "quote updated" events to a streaming transport.
type Notifier interface {
	NotifyQuote(ctx context.Context, update *models.QuoteUpdate) error
	Close() error
}

// AuditSink records resolved quotes and fallback transitions for observability.
type AuditSink interface {
	Init(ctx context.Context) error
	RecordResolution(ctx context.Context, q *models.Quote, attempts int, fallbackPath []string) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics is the instrumentation surface used across the pipeline.
type Metrics interface {
	RecordFetch(provider, outcome string)
	RecordFallback(from, to, reason string)
	RecordCache(tier, outcome string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordBackoffArmed()
	RecordDrop(stage string)
}
