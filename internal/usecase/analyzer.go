package usecase

import (
	"context"
	"time"

	"QuotePulse/internal/domain/models"
	drepo "QuotePulse/internal/domain/repository"
	"QuotePulse/internal/services/analysis"
	applogger "QuotePulse/pkg/logger"
)

// Analyzer assembles the full per-symbol view: quote, indicators on both
// timeframe windows, the blended signal, and a sized trade plan.
type Analyzer struct {
	resolver   *Resolver
	engine     *analysis.Engine
	scorer     *analysis.Scorer
	planner    *analysis.Planner
	backtester *analysis.Backtester
	metrics    drepo.Metrics
	log        *applogger.Logger
}

// NewAnalyzer wires the analysis pipeline over the resolver.
func NewAnalyzer(
	resolver *Resolver,
	engine *analysis.Engine,
	scorer *analysis.Scorer,
	planner *analysis.Planner,
	backtester *analysis.Backtester,
	metrics drepo.Metrics,
	log *applogger.Logger,
) *Analyzer {
	return &Analyzer{
		resolver:   resolver,
		engine:     engine,
		scorer:     scorer,
		planner:    planner,
		backtester: backtester,
		metrics:    metrics,
		log:        log,
	}
}

// Analyze resolves the quote and history for a symbol and runs the full
// indicator/signal/plan pipeline. A degraded quote does not block analysis;
// only an invalid symbol or missing history does.
func (a *Analyzer) Analyze(ctx context.Context, req *models.AnalysisRequest) (*models.Analysis, error) {
	start := time.Now()

	q, err := a.resolver.ResolveQuote(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	series, err := a.resolver.History(ctx, req.Symbol, req.Range, req.Interval)
	if err != nil {
		return nil, err
	}

	cfg := a.scorer.Config()
	short := a.engine.Compute(q.Symbol, series.Points, cfg.ShortWindow, cfg.ShortPeriods)
	long := a.engine.Compute(q.Symbol, series.Points, cfg.LongWindow, cfg.LongPeriods)

	sig := a.scorer.ScoreSets(q.Symbol, short, long)
	plan := a.planner.Build(q.Symbol, sig, long, series.Closes(), nil)

	if a.metrics != nil {
		a.metrics.RecordLatency("analyze", time.Since(start).Seconds())
	}
	if a.log != nil {
		a.log.Debug("analysis complete",
			applogger.String("symbol", q.Symbol),
			applogger.String("signal", string(sig.Signal)),
			applogger.Float64("score", sig.Score),
		)
	}

	return &models.Analysis{
		Quote:  q,
		Short:  short,
		Long:   long,
		Signal: sig,
		Plan:   plan,
	}, nil
}

// Backtest replays the signal pipeline over trailing history.
func (a *Analyzer) Backtest(ctx context.Context, req *models.BacktestRequest) (*models.BacktestSummary, error) {
	series, err := a.resolver.History(ctx, req.Symbol, req.Range, req.Interval)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sum := a.backtester.Run(series.Symbol, series.Points)
	if !req.Trades {
		sum.Trades = nil
	}
	if a.metrics != nil {
		a.metrics.RecordLatency("backtest", time.Since(start).Seconds())
	}
	return sum, nil
}
