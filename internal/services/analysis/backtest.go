package analysis

import (
	"QuotePulse/internal/domain/models"
)

// BacktestConfig bounds the signal replay.
type BacktestConfig struct {
	MinBars    int     `yaml:"min_bars"`
	MaxBars    int     `yaml:"max_bars"`
	FeePct     float64 `yaml:"fee_pct"` // round-trip cost per trade
	KeepTrades bool    `yaml:"keep_trades"`
	KeepEquity bool    `yaml:"keep_equity"`
}

// DefaultBacktestConfig requires enough bars for the long window plus warmup.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{MinBars: 60, MaxBars: 500, FeePct: 0.1, KeepTrades: true, KeepEquity: true}
}

// Backtester replays the scorer over trailing history with next-bar fills.
type Backtester struct {
	scorer *Scorer
	cfg    BacktestConfig
}

// NewBacktester builds a replay harness over the given scorer.
func NewBacktester(scorer *Scorer, cfg BacktestConfig) *Backtester {
	return &Backtester{scorer: scorer, cfg: cfg}
}

// Run replays long-only signal following: BUY opens at the next bar's price,
// SELL or the final bar closes the position at the next bar's price. The
// scorer at bar i sees only bars [0..i], so no decision uses future data.
func (b *Backtester) Run(symbol string, points []models.Point) *models.BacktestSummary {
	sum := &models.BacktestSummary{Symbol: symbol, Bars: len(points)}
	if len(points) < b.cfg.MinBars {
		sum.Insufficient = true
		return sum
	}
	if b.cfg.MaxBars > 0 && len(points) > b.cfg.MaxBars {
		points = points[len(points)-b.cfg.MaxBars:]
		sum.Bars = len(points)
	}

	warmup := b.scorer.cfg.LongWindow
	if warmup < b.scorer.cfg.ShortWindow {
		warmup = b.scorer.cfg.ShortWindow
	}

	equity := 1.0
	peak := 1.0
	var curve []float64
	inPosition := false
	var entryIdx int
	var entryPrice float64

	closeAt := func(exitIdx int) {
		exitPrice := points[exitIdx].Close
		ret := (exitPrice/entryPrice - 1) * 100
		ret -= b.cfg.FeePct
		equity *= 1 + ret/100
		sum.TradeCount++
		if ret > 0 {
			sum.WinRate++ // count for now, normalized below
		}
		sum.AvgReturnPct += ret
		if b.cfg.KeepTrades {
			sum.Trades = append(sum.Trades, models.BacktestTrade{
				EntryIndex: entryIdx,
				ExitIndex:  exitIdx,
				EntryPrice: entryPrice,
				ExitPrice:  exitPrice,
				ReturnPct:  round2(ret),
			})
		}
		inPosition = false
	}

	for i := warmup; i < len(points)-1; i++ {
		res := b.scorer.Score(symbol, points[:i+1])
		switch {
		case res.Signal == models.SignalBuy && !inPosition:
			// fill at the next bar, never the bar that produced the signal.
			// A signal on the last decision bar has no bar left to exit
			// through, so it never opens.
			if i+1 < len(points)-1 {
				inPosition = true
				entryIdx = i + 1
				entryPrice = points[i+1].Close
			}
		case res.Signal == models.SignalSell && inPosition:
			closeAt(i + 1)
		}

		mark := equity
		if inPosition && points[i+1].Close > 0 && entryPrice > 0 {
			mark = equity * points[i+1].Close / entryPrice
		}
		if mark > peak {
			peak = mark
		}
		if peak > 0 {
			dd := (peak - mark) / peak * 100
			if dd > sum.MaxDrawdownPct {
				sum.MaxDrawdownPct = dd
			}
		}
		if b.cfg.KeepEquity {
			curve = append(curve, round2(mark))
		}
	}

	if inPosition {
		closeAt(len(points) - 1)
	}

	if sum.TradeCount > 0 {
		sum.WinRate = round2(sum.WinRate / float64(sum.TradeCount) * 100)
		sum.AvgReturnPct = round2(sum.AvgReturnPct / float64(sum.TradeCount))
	}
	sum.TotalReturnPct = round2((equity - 1) * 100)
	sum.MaxDrawdownPct = round2(sum.MaxDrawdownPct)

	first, last := points[warmup].Close, points[len(points)-1].Close
	if first > 0 {
		sum.BenchmarkPct = round2((last/first - 1) * 100)
	}
	if b.cfg.KeepEquity {
		sum.EquityCurve = curve
	}
	return sum
}
