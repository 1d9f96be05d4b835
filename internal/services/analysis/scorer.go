package analysis

import (
	"fmt"
	"math"

	"QuotePulse/internal/domain/models"
)

// Scorer blends short- and long-window indicator scores into a BUY/SELL/HOLD
// recommendation with a confidence value.
type Scorer struct {
	engine *Engine
	cfg    ScoringConfig
}

// NewScorer builds a scorer over the given indicator engine.
func NewScorer(engine *Engine, cfg ScoringConfig) *Scorer {
	return &Scorer{engine: engine, cfg: cfg}
}

// Config exposes the active weighting scheme.
func (s *Scorer) Config() ScoringConfig { return s.cfg }

// windowScore is one timeframe's verdict before blending.
type windowScore struct {
	score      float64
	signal     models.SignalKind
	components []models.SignalComponent
	stability  float64
	usable     bool
}

// Score computes the multi-timeframe signal for a close-price series.
func (s *Scorer) Score(symbol string, points []models.Point) *models.SignalResult {
	short := s.engine.Compute(symbol, points, s.cfg.ShortWindow, s.cfg.ShortPeriods)
	long := s.engine.Compute(symbol, points, s.cfg.LongWindow, s.cfg.LongPeriods)
	return s.ScoreSets(symbol, short, long)
}

// ScoreSets blends two precomputed IndicatorSets. Missing data yields HOLD
// with low confidence rather than an error.
func (s *Scorer) ScoreSets(symbol string, short, long *models.IndicatorSet) *models.SignalResult {
	ws := s.scoreWindow(short, "short")
	wl := s.scoreWindow(long, "long")

	res := &models.SignalResult{
		Symbol:     symbol,
		Components: append(ws.components, wl.components...),
	}

	if !ws.usable && !wl.usable {
		res.Signal = models.SignalHold
		res.Score = 50
		res.Confidence = 0
		res.Reasons = append(res.Reasons, "insufficient history for scoring")
		return res
	}

	shortW, longW := s.cfg.ShortWeight, s.cfg.LongWeight
	if !ws.usable {
		shortW = 0
	}
	if !wl.usable {
		longW = 0
	}
	res.Score = round2((ws.score*shortW + wl.score*longW) / (shortW + longW))

	switch {
	case res.Score >= s.cfg.BuyThreshold:
		res.Signal = models.SignalBuy
	case res.Score <= s.cfg.SellThreshold:
		res.Signal = models.SignalSell
	default:
		res.Signal = models.SignalHold
	}

	// Opposite-direction windows force HOLD regardless of the numeric score.
	if opposed(ws.signal, wl.signal) {
		res.Signal = models.SignalHold
		res.Conflict = &models.TimeframeConflict{
			ShortSignal: ws.signal,
			LongSignal:  wl.signal,
			Resolution:  "timeframes disagree; long-term trend dominates tactically, standing aside",
		}
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("short window says %s while long window says %s; holding", ws.signal, wl.signal))
	}

	res.Reasons = append(res.Reasons, s.explain(ws, wl)...)

	stability := math.Min(ws.stability, wl.stability)
	res.Confidence = round2(s.confidence(res, stability))
	return res
}

// scoreWindow converts one IndicatorSet into a 0-100 score via the weighted
// component blend.
func (s *Scorer) scoreWindow(set *models.IndicatorSet, label string) windowScore {
	out := windowScore{score: 50, signal: models.SignalHold, stability: 0.5}
	if set == nil || set.EMAFast == nil || set.EMASlow == nil {
		return out
	}
	out.usable = true
	w := s.cfg.Weights

	trend := s.trendScore(set)
	momentum := s.momentumScore(set)
	meanRev := s.meanRevScore(set)
	vol, stability := s.volatilityScore(set)
	out.stability = stability

	comps := []models.SignalComponent{
		{Name: label + "_trend", Score: round2(trend), Weight: w.Trend},
		{Name: label + "_momentum", Score: round2(momentum), Weight: w.Momentum},
		{Name: label + "_mean_reversion", Score: round2(meanRev), Weight: w.MeanReversion},
		{Name: label + "_volatility", Score: round2(vol), Weight: w.Volatility},
	}
	var total, weights float64
	for i := range comps {
		comps[i].Weighted = round2(comps[i].Score * comps[i].Weight)
		total += comps[i].Score * comps[i].Weight
		weights += comps[i].Weight
	}
	out.components = comps
	out.score = total / weights

	switch {
	case out.score >= s.cfg.BuyThreshold:
		out.signal = models.SignalBuy
	case out.score <= s.cfg.SellThreshold:
		out.signal = models.SignalSell
	}
	return out
}

// trendScore normalizes the EMA spread plus slope into 0-100.
func (s *Scorer) trendScore(set *models.IndicatorSet) float64 {
	spread := 0.0
	if *set.EMASlow != 0 {
		spread = (*set.EMAFast - *set.EMASlow) / *set.EMASlow
	}
	// a 2% spread or a 0.4%/bar slope each saturate their half of the range
	score := 50 + clamp(spread/0.02, -1, 1)*35 + clamp(set.Trend.Slope/0.004, -1, 1)*15
	return clamp(score, 0, 100)
}

// momentumScore maps RSI distance from the neutral band into 0-100.
func (s *Scorer) momentumScore(set *models.IndicatorSet) float64 {
	if set.RSI == nil {
		return 50
	}
	rsi := *set.RSI
	switch {
	case rsi > s.cfg.RSINeutralHi:
		return clamp(50+(rsi-s.cfg.RSINeutralHi)/(100-s.cfg.RSINeutralHi)*50, 0, 100)
	case rsi < s.cfg.RSINeutralLo:
		return clamp(50-(s.cfg.RSINeutralLo-rsi)/s.cfg.RSINeutralLo*50, 0, 100)
	default:
		return 50
	}
}

// meanRevScore scores price distance from the fast EMA: stretched below reads
// constructive, stretched above reads tired.
func (s *Scorer) meanRevScore(set *models.IndicatorSet) float64 {
	if set.EMAFast == nil || *set.EMAFast == 0 || set.LastClose == 0 {
		return 50
	}
	dist := (set.LastClose - *set.EMAFast) / *set.EMAFast
	return clamp(50-clamp(dist/0.03, -1, 1)*25, 0, 100)
}

// volatilityScore applies the fixed regime band table to ATR as a percent of price.
func (s *Scorer) volatilityScore(set *models.IndicatorSet) (float64, float64) {
	if set.ATR == nil || set.LastClose == 0 {
		return 50, 0.5
	}
	r := regimeFor(*set.ATR / set.LastClose * 100)
	return r.bias, r.stability
}

// confidence blends component alignment, distance past the threshold, and the
// volatility-regime stability term.
func (s *Scorer) confidence(res *models.SignalResult, stability float64) float64 {
	if res.Signal == models.SignalHold {
		base := 30 * stability
		if res.Conflict != nil {
			base /= 2 // a forced hold is weaker information than an earned one
		}
		return clamp(base+20, 0, 100)
	}

	aligned, counted := 0, 0
	for _, c := range res.Components {
		if c.Score == 50 {
			continue
		}
		counted++
		if res.Signal == models.SignalBuy && c.Score > 50 {
			aligned++
		}
		if res.Signal == models.SignalSell && c.Score < 50 {
			aligned++
		}
	}
	alignFrac := 0.0
	if counted > 0 {
		alignFrac = float64(aligned) / float64(counted)
	}

	var past float64
	if res.Signal == models.SignalBuy {
		past = res.Score - s.cfg.BuyThreshold
	} else {
		past = s.cfg.SellThreshold - res.Score
	}
	pastFrac := clamp(past/15, 0, 1)

	return clamp(alignFrac*40+pastFrac*30+stability*30, 0, 100)
}

func (s *Scorer) explain(ws, wl windowScore) []string {
	out := make([]string, 0, 2)
	if ws.usable {
		out = append(out, fmt.Sprintf("short window scored %.1f (%s)", ws.score, ws.signal))
	} else {
		out = append(out, "short window lacked history")
	}
	if wl.usable {
		out = append(out, fmt.Sprintf("long window scored %.1f (%s)", wl.score, wl.signal))
	} else {
		out = append(out, "long window lacked history")
	}
	return out
}

func opposed(a, b models.SignalKind) bool {
	return (a == models.SignalBuy && b == models.SignalSell) ||
		(a == models.SignalSell && b == models.SignalBuy)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
