package di

import (
	"fmt"
	"time"

	"QuotePulse/internal/domain/repository"
	"QuotePulse/internal/handler/api"
	mid "QuotePulse/internal/middleware"
	internalrepo "QuotePulse/internal/repository"
	"QuotePulse/internal/service/limiter"
	"QuotePulse/internal/service/marketclock"
	"QuotePulse/internal/service/provider"
	"QuotePulse/internal/service/quote"
	"QuotePulse/internal/service/store"
	"QuotePulse/internal/services/analysis"
	"QuotePulse/internal/usecase"
	"QuotePulse/pkg/cache"
	pkgch "QuotePulse/pkg/clickhouse"
	"QuotePulse/pkg/config"
	xhttp "QuotePulse/pkg/http"
	pkgkafka "QuotePulse/pkg/kafka"
	applogger "QuotePulse/pkg/logger"
	"QuotePulse/pkg/metrics"
	"QuotePulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideMarketClock creates the exchange-calendar clock.
func ProvideMarketClock() *marketclock.Clock {
	return marketclock.New()
}

// ProvideLimiter creates the global fetch concurrency limiter.
func ProvideLimiter(cfg *config.Config) *limiter.Limiter {
	return limiter.New(cfg.Limiter.MaxConcurrent)
}

// ProvideKVStore creates the durable cache backing. Without Redis the tiers
// persist to an in-process store, surviving cache flush/restore cycles but
// not restarts.
func ProvideKVStore(cfg *config.Config) (repository.KVStore, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	kv, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return kv, nil
}

// ProvideTTLConfig maps configured TTLs over the defaults.
func ProvideTTLConfig(cfg *config.Config) store.TTLConfig {
	ttl := store.DefaultTTLConfig()
	if cfg.Cache.QuoteRegular > 0 {
		ttl.QuoteRegular = cfg.Cache.QuoteRegular
	}
	if cfg.Cache.QuoteExtended > 0 {
		ttl.QuoteExtended = cfg.Cache.QuoteExtended
	}
	if cfg.Cache.QuoteClosed > 0 {
		ttl.QuoteClosed = cfg.Cache.QuoteClosed
	}
	if cfg.Cache.LastKnownGood > 0 {
		ttl.LastKnownGood = cfg.Cache.LastKnownGood
	}
	if cfg.Cache.HistoryDaily > 0 {
		ttl.HistoryDaily = cfg.Cache.HistoryDaily
	}
	if cfg.Cache.HistoryIntraday > 0 {
		ttl.HistoryIntraday = cfg.Cache.HistoryIntraday
	}
	return ttl
}

// ProvideStore creates the tiered quote/history cache.
func ProvideStore(kv repository.KVStore, ttl store.TTLConfig, clock *marketclock.Clock, m repository.Metrics, log *applogger.Logger) *store.Store {
	return store.New(kv, ttl, clock, m, log)
}

// ProvideNormalizer creates the quote normalizer with default freshness thresholds.
func ProvideNormalizer(clock *marketclock.Clock) *quote.Normalizer {
	return quote.NewNormalizer(clock, quote.DefaultThresholds())
}

// ProvideProviders assembles the ordered provider list: primary JSON source
// first, CSV secondary when configured.
func ProvideProviders(cfg *config.Config, norm *quote.Normalizer, log *applogger.Logger) []repository.Provider {
	relays := provider.BuildRelays(cfg.Providers.WrapperProxies, cfg.Providers.PassthroughProxies)
	providers := []repository.Provider{
		provider.NewPrimary(cfg.Providers.PrimaryURL, relays, cfg.Providers.RequestTimeout, norm, log),
	}
	if cfg.Providers.SecondaryURL != "" {
		providers = append(providers,
			provider.NewSecondary(cfg.Providers.SecondaryURL, norm, cfg.Providers.RequestTimeout, log))
	}
	return providers
}

// ProvideRetryConfig maps configured retry knobs over the defaults.
func ProvideRetryConfig(cfg *config.Config) quote.RetryConfig {
	retry := quote.DefaultRetryConfig()
	if cfg.Providers.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Providers.MaxAttempts
	}
	if cfg.Providers.BackoffBase > 0 {
		retry.BackoffBase = cfg.Providers.BackoffBase
	}
	if cfg.Providers.BackoffMax > 0 {
		retry.BackoffMax = cfg.Providers.BackoffMax
	}
	if cfg.Providers.BackoffWindow > 0 {
		retry.BackoffWindow = cfg.Providers.BackoffWindow
	}
	if cfg.Providers.RequestTimeout > 0 {
		retry.AttemptTimeout = cfg.Providers.RequestTimeout
	}
	return retry
}

// ProvideChain creates the provider fallback chain backed by the cache tiers.
func ProvideChain(providers []repository.Provider, st *store.Store, norm *quote.Normalizer, retry quote.RetryConfig, log *applogger.Logger, m repository.Metrics) *quote.Chain {
	return quote.NewChain(providers, st, norm, retry, log, m)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideAuditSink creates the resolution audit sink, or nil without ClickHouse.
func ProvideAuditSink(ch *pkgch.Client, log *applogger.Logger) repository.AuditSink {
	if ch == nil {
		return nil
	}
	sink := internalrepo.NewCHAuditSink(ch)
	sink.SetLogger(log)
	return sink
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideStreamHandler creates the WebSocket push endpoint.
func ProvideStreamHandler(log *applogger.Logger) *api.StreamHandler {
	return api.NewStreamHandler(log)
}

// ProvidePipeline wraps the push transports in the validating, throttling,
// buffering update pipeline. Kafka is skipped when not configured; the
// WebSocket hub is always wired.
func ProvidePipeline(producer *pkgkafka.Producer, stream *api.StreamHandler, m repository.Metrics, cfg *config.Config) *mid.UpdatePipeline {
	targets := []repository.Notifier{stream}
	if producer != nil {
		targets = append(targets, internalrepo.NewKafkaNotifier(producer, cfg.Kafka.Topic))
	}
	fanout := internalrepo.NewFanoutNotifier(targets...)
	return mid.NewUpdatePipeline(fanout, m,
		mid.WithMaxRPS(10),
		mid.WithBufferSize(1000),
	)
}

// ProvideResolver creates the read-through quote resolution usecase.
func ProvideResolver(lim *limiter.Limiter, chain *quote.Chain, st *store.Store, pipeline *mid.UpdatePipeline, audit repository.AuditSink, m repository.Metrics, log *applogger.Logger) *usecase.Resolver {
	return usecase.NewResolver(lim, chain, st, pipeline, audit, m, log)
}

// ProvideEngine creates the memoizing indicator engine.
func ProvideEngine() *analysis.Engine {
	return analysis.NewEngine(5 * time.Minute)
}

// ProvideScorer creates the multi-timeframe scorer with default weights.
func ProvideScorer(engine *analysis.Engine) *analysis.Scorer {
	return analysis.NewScorer(engine, analysis.DefaultScoringConfig())
}

// ProvidePlanner maps the risk section onto the trade planner.
func ProvidePlanner(cfg *config.Config) *analysis.Planner {
	rc := analysis.DefaultRiskConfig()
	if cfg.Risk.AccountEquity > 0 {
		rc.AccountEquity = cfg.Risk.AccountEquity
	}
	if cfg.Risk.Mode != "" {
		rc.Mode = analysis.SizingMode(cfg.Risk.Mode)
	}
	if cfg.Risk.RiskPctPerTrade > 0 {
		rc.RiskPctPerTrade = cfg.Risk.RiskPctPerTrade
	}
	if cfg.Risk.RiskTolerance != "" {
		rc.RiskTolerance = cfg.Risk.RiskTolerance
	}
	if cfg.Risk.MaxPositionPct > 0 {
		rc.MaxPositionPct = cfg.Risk.MaxPositionPct
	}
	return analysis.NewPlanner(rc)
}

// ProvideBacktester creates the signal replay harness.
func ProvideBacktester(scorer *analysis.Scorer) *analysis.Backtester {
	return analysis.NewBacktester(scorer, analysis.DefaultBacktestConfig())
}

// ProvideAnalyzer creates the analysis usecase.
func ProvideAnalyzer(resolver *usecase.Resolver, engine *analysis.Engine, scorer *analysis.Scorer, planner *analysis.Planner, backtester *analysis.Backtester, m repository.Metrics, log *applogger.Logger) *usecase.Analyzer {
	return usecase.NewAnalyzer(resolver, engine, scorer, planner, backtester, m, log)
}

// ProvideRefresher creates the watchlist refresher, or nil when disabled.
func ProvideRefresher(resolver *usecase.Resolver, chain *quote.Chain, cfg *config.Config, log *applogger.Logger) *usecase.Refresher {
	if !cfg.Refresher.Enabled {
		return nil
	}
	return usecase.NewRefresher(resolver, chain, cfg.Refresher.Symbols, cfg.Refresher.Interval, log)
}

// ProvideHandler creates the HTTP route surface.
func ProvideHandler(log *applogger.Logger, resolver *usecase.Resolver, analyzer *usecase.Analyzer, stream *api.StreamHandler) xhttp.Handler {
	return api.NewMarketHandler(log, resolver, analyzer, stream)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	st *store.Store,
	pipeline *mid.UpdatePipeline,
	refresher *usecase.Refresher,
	audit repository.AuditSink,
	chClient *pkgch.Client,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, st, pipeline, refresher, audit, chClient, handler)
}
