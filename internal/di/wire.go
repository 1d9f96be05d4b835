//go:build wireinject
// +build wireinject

package di

import (
	"QuotePulse/pkg/config"
	"QuotePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideMarketClock,

		// Infrastructure clients
		ProvideKVStore,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Cache tiers and providers
		ProvideTTLConfig,
		ProvideStore,
		ProvideNormalizer,
		ProvideProviders,
		ProvideRetryConfig,
		ProvideChain,
		ProvideLimiter,

		// Push transports
		ProvideStreamHandler,
		ProvidePipeline,
		ProvideAuditSink,

		// Analysis
		ProvideEngine,
		ProvideScorer,
		ProvidePlanner,
		ProvideBacktester,

		// Use cases
		ProvideResolver,
		ProvideAnalyzer,
		ProvideRefresher,

		// HTTP surface and application server
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
