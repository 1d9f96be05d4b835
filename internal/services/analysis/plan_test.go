package analysis

import (
	"testing"

	"QuotePulse/internal/domain/models"
)

func buySignal() *models.SignalResult {
	return &models.SignalResult{Symbol: "AAPL", Signal: models.SignalBuy, Score: 70, Confidence: 60}
}

func holdSignal() *models.SignalResult {
	return &models.SignalResult{Symbol: "AAPL", Signal: models.SignalHold, Score: 50, Confidence: 40}
}

func flatSet(price, atr float64) *models.IndicatorSet {
	s := &models.IndicatorSet{LastClose: price, EMAFast: f64(price), EMASlow: f64(price)}
	if atr > 0 {
		s.ATR = f64(atr)
	}
	return s
}

func TestHoldPlanCarriesWatchLevels(t *testing.T) {
	p := NewPlanner(DefaultRiskConfig())
	closes := []float64{96, 99, 103, 97, 100}

	plan := p.Build("AAPL", holdSignal(), flatSet(100, 1), closes, nil)
	if !plan.IsHold {
		t.Fatal("HOLD signal must produce a hold plan")
	}
	if plan.Watch == nil {
		t.Fatal("hold plan missing watch levels")
	}
	if plan.Watch.Breakout != 103 || plan.Watch.Breakdown != 96 {
		t.Fatalf("watch = %+v, want breakout 103 / breakdown 96", plan.Watch)
	}
	if plan.PositionSize != 0 {
		t.Fatalf("hold plan sized %v shares, want 0", plan.PositionSize)
	}
}

func TestBuyPlanLevelsAndSizing(t *testing.T) {
	p := NewPlanner(DefaultRiskConfig())
	// flat tape at 100 with one dip to 95 inside the swing lookback
	closes := []float64{100, 100, 95, 100, 100, 100, 100, 100, 100, 100}

	plan := p.Build("AAPL", buySignal(), flatSet(100, 1), closes, nil)
	if plan.IsHold {
		t.Fatal("BUY signal produced a hold plan")
	}
	if plan.EntryRangeLow != 99.75 || plan.EntryRangeHigh != 100.25 {
		t.Fatalf("entry band = %.2f..%.2f, want 99.75..100.25", plan.EntryRangeLow, plan.EntryRangeHigh)
	}
	// ATR stop 100 - 2*1 = 98 is tighter than the 95 swing low
	if plan.StopLoss != 98 {
		t.Fatalf("stop = %.2f, want 98", plan.StopLoss)
	}
	if plan.TakeProfit != 104 {
		t.Fatalf("target = %.2f, want 2R at 104", plan.TakeProfit)
	}
	if plan.RiskReward != 2 {
		t.Fatalf("risk/reward = %.2f, want 2", plan.RiskReward)
	}
	// 1% of 100k = 1000 at risk over a 2-point stop buys 500 shares,
	// but the 20% exposure cap limits exposure to 200 shares
	if plan.RiskBudget != 1000 {
		t.Fatalf("risk budget = %.2f, want 1000", plan.RiskBudget)
	}
	if plan.PositionSize != 200 {
		t.Fatalf("position size = %.0f, want cap-limited 200", plan.PositionSize)
	}
}

func TestStopFallsBackToFixedPct(t *testing.T) {
	p := NewPlanner(DefaultRiskConfig())
	// no ATR and no lower swing: the fixed 3% stop applies
	closes := []float64{100, 100, 100, 100, 100}

	plan := p.Build("AAPL", buySignal(), flatSet(100, 0), closes, nil)
	if plan.StopLoss != 97 {
		t.Fatalf("stop = %.2f, want fallback 97", plan.StopLoss)
	}
	if plan.TakeProfit != 106 {
		t.Fatalf("target = %.2f, want 106", plan.TakeProfit)
	}
}

func TestSellPlanMirrorsLevels(t *testing.T) {
	p := NewPlanner(DefaultRiskConfig())
	closes := []float64{100, 105, 100, 100, 100}

	sig := &models.SignalResult{Symbol: "AAPL", Signal: models.SignalSell, Score: 30}
	plan := p.Build("AAPL", sig, flatSet(100, 1), closes, nil)
	// ATR stop 102 is tighter than the 105 swing high
	if plan.StopLoss != 102 {
		t.Fatalf("stop = %.2f, want 102", plan.StopLoss)
	}
	if plan.TakeProfit != 96 {
		t.Fatalf("target = %.2f, want 96", plan.TakeProfit)
	}
}

func TestNoHistoryYieldsHold(t *testing.T) {
	p := NewPlanner(DefaultRiskConfig())
	plan := p.Build("AAPL", buySignal(), nil, nil, nil)
	if !plan.IsHold {
		t.Fatal("missing history must degrade to a hold plan")
	}
	if len(plan.SizingWarnings) == 0 {
		t.Fatal("expected a warning about missing history")
	}
}

func TestSizingModes(t *testing.T) {
	closes := []float64{100, 100, 95, 100, 100}
	set := flatSet(100, 1)

	cfg := DefaultRiskConfig()
	cfg.Mode = SizeTolerance
	cfg.RiskTolerance = "aggressive"
	plan := NewPlanner(cfg).Build("AAPL", buySignal(), set, closes, nil)
	if plan.RiskBudget != 2000 {
		t.Fatalf("aggressive tolerance budget = %.2f, want 2000", plan.RiskBudget)
	}

	cfg.Mode = SizeMaxCap
	plan = NewPlanner(cfg).Build("AAPL", buySignal(), set, closes, nil)
	if plan.RiskBudget != 20_000 {
		t.Fatalf("max-cap budget = %.2f, want 20000", plan.RiskBudget)
	}

	cfg.Mode = SizeATRStop
	plan = NewPlanner(cfg).Build("AAPL", buySignal(), set, closes, nil)
	if plan.RiskBudget <= 0 || plan.RiskBudget > 20_000 {
		t.Fatalf("atr-stop budget = %.2f, want a positive scaled budget", plan.RiskBudget)
	}
}

func TestPortfolioConstraints(t *testing.T) {
	p := NewPlanner(DefaultRiskConfig())
	closes := []float64{100, 100, 95, 100, 100}
	set := flatSet(100, 1)

	full := &PortfolioSnapshot{OpenPositions: 5, MaxConcurrent: 5}
	plan := p.Build("AAPL", buySignal(), set, closes, full)
	if plan.PositionSize != 0 {
		t.Fatalf("size = %.0f, want 0 at max concurrency", plan.PositionSize)
	}
	if len(plan.SizingWarnings) == 0 {
		t.Fatal("expected a max-concurrency warning")
	}

	capped := &PortfolioSnapshot{Sector: "tech", SectorExposurePct: 30, SectorCapPct: 25}
	plan = p.Build("AAPL", buySignal(), set, closes, capped)
	if plan.PositionSize != 0 {
		t.Fatalf("size = %.0f, want 0 at sector cap", plan.PositionSize)
	}

	// room for half the usual 20% position: 200 shares trims to 100
	near := &PortfolioSnapshot{Sector: "tech", SectorExposurePct: 15, SectorCapPct: 25}
	plan = p.Build("AAPL", buySignal(), set, closes, near)
	if plan.PositionSize != 100 {
		t.Fatalf("size = %.0f, want trimmed 100", plan.PositionSize)
	}

	bucket := &PortfolioSnapshot{Bucket: "semis", BucketExposurePct: 40, BucketCapPct: 30}
	plan = p.Build("AAPL", buySignal(), set, closes, bucket)
	if plan.PositionSize != 0 {
		t.Fatalf("size = %.0f, want 0 at bucket cap", plan.PositionSize)
	}
}
