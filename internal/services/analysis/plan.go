package analysis

import (
	"fmt"
	"math"

	"QuotePulse/internal/domain/models"
)

// SizingMode selects how the per-trade risk budget is derived.
type SizingMode string

const (
	SizeFixedPct  SizingMode = "fixed_pct"      // fixed % of equity at risk
	SizeTolerance SizingMode = "auto_tolerance" // % derived from risk tolerance
	SizeATRStop   SizingMode = "atr_stop"       // budget scaled to the ATR stop
	SizeMaxCap    SizingMode = "max_cap"        // position-value cap only
)

// RiskConfig parameterizes sizing and stop/target construction.
type RiskConfig struct {
	AccountEquity   float64    `yaml:"account_equity"`
	Mode            SizingMode `yaml:"mode"`
	RiskPctPerTrade float64    `yaml:"risk_pct_per_trade"`
	RiskTolerance   string     `yaml:"risk_tolerance"` // conservative|moderate|aggressive
	MaxPositionPct  float64    `yaml:"max_position_pct"`
	EntryBandPct    float64    `yaml:"entry_band_pct"`
	ATRStopMultiple float64    `yaml:"atr_stop_multiple"`
	FallbackStopPct float64    `yaml:"fallback_stop_pct"`
	TakeProfitR     float64    `yaml:"take_profit_r"`
	SwingLookback   int        `yaml:"swing_lookback"`
}

// DefaultRiskConfig sizes conservatively: 1% risk, 2R target, 20% max position.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		AccountEquity:   100_000,
		Mode:            SizeFixedPct,
		RiskPctPerTrade: 1.0,
		RiskTolerance:   "moderate",
		MaxPositionPct:  20,
		EntryBandPct:    0.5,
		ATRStopMultiple: 2.0,
		FallbackStopPct: 3.0,
		TakeProfitR:     2.0,
		SwingLookback:   10,
	}
}

// PortfolioSnapshot carries the open-book constraints that can trim a plan.
type PortfolioSnapshot struct {
	OpenPositions     int
	MaxConcurrent     int
	Sector            string
	SectorExposurePct float64
	SectorCapPct      float64
	Bucket            string // correlation bucket
	BucketExposurePct float64
	BucketCapPct      float64
}

// Planner turns a signal plus price history into a trade plan.
type Planner struct {
	cfg RiskConfig
}

// NewPlanner builds a planner with the given risk settings.
func NewPlanner(cfg RiskConfig) *Planner {
	return &Planner{cfg: cfg}
}

// Build constructs a plan for the signal. HOLD gets watch levels only; BUY and
// SELL get entry band, stop, target and a constrained position size.
func (p *Planner) Build(symbol string, sig *models.SignalResult, ind *models.IndicatorSet, closes []float64, port *PortfolioSnapshot) *models.TradePlan {
	plan := &models.TradePlan{Symbol: symbol, Signal: sig.Signal}

	if len(closes) == 0 || ind == nil || ind.LastClose == 0 {
		plan.IsHold = true
		plan.SizingWarnings = append(plan.SizingWarnings, "no price history; no plan computed")
		return plan
	}
	price := ind.LastClose
	swingHigh, swingLow := swingLevels(closes, p.cfg.SwingLookback)

	if sig.Signal == models.SignalHold {
		plan.IsHold = true
		plan.Watch = &models.WatchLevels{Breakout: swingHigh, Breakdown: swingLow}
		plan.SizingNotes = append(plan.SizingNotes,
			fmt.Sprintf("no position; watching breakout above %.2f and breakdown below %.2f", swingHigh, swingLow))
		return plan
	}

	band := price * p.cfg.EntryBandPct / 100
	plan.EntryRangeLow = round2(price - band)
	plan.EntryRangeHigh = round2(price + band)

	stop := p.stopFor(sig.Signal, price, ind, swingHigh, swingLow)
	plan.StopLoss = round2(stop)

	stopDist := math.Abs(price - stop)
	if sig.Signal == models.SignalBuy {
		plan.TakeProfit = round2(price + p.cfg.TakeProfitR*stopDist)
	} else {
		plan.TakeProfit = round2(price - p.cfg.TakeProfitR*stopDist)
	}
	if stopDist > 0 {
		plan.RiskReward = round2(math.Abs(plan.TakeProfit-price) / stopDist)
	}

	budget := p.riskBudget(ind, price, stopDist)
	plan.RiskBudget = round2(budget)
	plan.SizingNotes = append(plan.SizingNotes,
		fmt.Sprintf("%s sizing: %.2f cash at risk", p.cfg.Mode, budget))

	size := p.positionSize(budget, price, stopDist, plan)
	size = p.applyPortfolioConstraints(size, port, plan)
	plan.PositionSize = math.Floor(size)
	if plan.PositionSize <= 0 {
		plan.PositionSize = 0
		plan.SizingWarnings = append(plan.SizingWarnings, "constraints reduced position to zero")
	}
	return plan
}

// stopFor picks the tighter of the ATR-multiple stop and the adverse swing
// level, falling back to a fixed percentage when neither is computable.
func (p *Planner) stopFor(signal models.SignalKind, price float64, ind *models.IndicatorSet, swingHigh, swingLow float64) float64 {
	var candidates []float64
	if ind.ATR != nil && *ind.ATR > 0 {
		if signal == models.SignalBuy {
			candidates = append(candidates, price-p.cfg.ATRStopMultiple**ind.ATR)
		} else {
			candidates = append(candidates, price+p.cfg.ATRStopMultiple**ind.ATR)
		}
	}
	if signal == models.SignalBuy && swingLow > 0 && swingLow < price {
		candidates = append(candidates, swingLow)
	}
	if signal == models.SignalSell && swingHigh > price {
		candidates = append(candidates, swingHigh)
	}

	if len(candidates) == 0 {
		if signal == models.SignalBuy {
			return price * (1 - p.cfg.FallbackStopPct/100)
		}
		return price * (1 + p.cfg.FallbackStopPct/100)
	}

	// tighter = closer to entry
	best := candidates[0]
	for _, c := range candidates[1:] {
		if math.Abs(price-c) < math.Abs(price-best) {
			best = c
		}
	}
	return best
}

// riskBudget derives cash-at-risk from the configured sizing mode.
func (p *Planner) riskBudget(ind *models.IndicatorSet, price, stopDist float64) float64 {
	equity := p.cfg.AccountEquity
	switch p.cfg.Mode {
	case SizeTolerance:
		pct := map[string]float64{"conservative": 0.5, "moderate": 1.0, "aggressive": 2.0}[p.cfg.RiskTolerance]
		if pct == 0 {
			pct = 1.0
		}
		return equity * pct / 100
	case SizeATRStop:
		// budget shrinks when the ATR stop is wide relative to price
		if ind.ATR != nil && price > 0 {
			widen := clamp(stopDist/price/0.05, 0.2, 1)
			return equity * p.cfg.RiskPctPerTrade / 100 / widen * 0.5
		}
		return equity * p.cfg.RiskPctPerTrade / 100
	case SizeMaxCap:
		return equity * p.cfg.MaxPositionPct / 100
	default: // fixed_pct
		return equity * p.cfg.RiskPctPerTrade / 100
	}
}

// positionSize is min(riskBudget/stopDistance, cash-affordable, exposure cap).
func (p *Planner) positionSize(budget, price, stopDist float64, plan *models.TradePlan) float64 {
	if price <= 0 {
		return 0
	}
	affordable := p.cfg.AccountEquity / price
	capShares := p.cfg.AccountEquity * p.cfg.MaxPositionPct / 100 / price

	size := affordable
	if stopDist > 0 {
		riskShares := budget / stopDist
		if riskShares < size {
			size = riskShares
		}
	}
	if capShares < size {
		size = capShares
		plan.SizingNotes = append(plan.SizingNotes,
			fmt.Sprintf("position capped at %.0f%% of equity", p.cfg.MaxPositionPct))
	}
	return size
}

// applyPortfolioConstraints trims or zeroes the size against the open book.
func (p *Planner) applyPortfolioConstraints(size float64, port *PortfolioSnapshot, plan *models.TradePlan) float64 {
	if port == nil {
		return size
	}
	if port.MaxConcurrent > 0 && port.OpenPositions >= port.MaxConcurrent {
		plan.SizingWarnings = append(plan.SizingWarnings,
			fmt.Sprintf("max concurrent positions reached (%d); not adding", port.MaxConcurrent))
		return 0
	}
	if port.SectorCapPct > 0 && port.SectorExposurePct >= port.SectorCapPct {
		plan.SizingWarnings = append(plan.SizingWarnings,
			fmt.Sprintf("sector %s at exposure cap (%.0f%%); not adding", port.Sector, port.SectorCapPct))
		return 0
	}
	if port.SectorCapPct > 0 && port.SectorExposurePct+p.cfg.MaxPositionPct > port.SectorCapPct {
		frac := (port.SectorCapPct - port.SectorExposurePct) / p.cfg.MaxPositionPct
		plan.SizingWarnings = append(plan.SizingWarnings,
			fmt.Sprintf("sector %s near cap; position trimmed to %.0f%%", port.Sector, frac*100))
		size *= frac
	}
	if port.BucketCapPct > 0 && port.BucketExposurePct >= port.BucketCapPct {
		plan.SizingWarnings = append(plan.SizingWarnings,
			fmt.Sprintf("correlation bucket %s at cap (%.0f%%); not adding", port.Bucket, port.BucketCapPct))
		return 0
	}
	return size
}

// swingLevels finds the highest high and lowest low close over the lookback.
func swingLevels(closes []float64, lookback int) (high, low float64) {
	if len(closes) == 0 {
		return 0, 0
	}
	start := len(closes) - lookback
	if start < 0 {
		start = 0
	}
	tail := closes[start:]
	high, low = tail[0], tail[0]
	for _, c := range tail[1:] {
		if c > high {
			high = c
		}
		if c < low {
			low = c
		}
	}
	return high, low
}
