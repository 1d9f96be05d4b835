package analysis

import (
	"fmt"
	"math"
	"time"

	"QuotePulse/internal/domain/models"
	icache "QuotePulse/internal/service/cache"
)

// Periods configures the indicator window sizes.
type Periods struct {
	EMAFast int
	EMASlow int
	RSI     int
	ATR     int
	Returns int
	Slope   int
}

// DefaultPeriods are the conventional daily-bar settings.
func DefaultPeriods() Periods {
	return Periods{EMAFast: 9, EMASlow: 21, RSI: 14, ATR: 14, Returns: 5, Slope: 5}
}

// Engine computes IndicatorSets and memoizes them per (symbol, last-candle
// timestamp): recomputation is pure but moderately expensive.
type Engine struct {
	cache *icache.TTLCache
	ttl   time.Duration
}

// NewEngine builds an indicator engine with a short memo TTL.
func NewEngine(ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Engine{cache: icache.NewTTLCache(), ttl: ttl}
}

// Compute derives the IndicatorSet over the trailing `window` bars of points
// using the given periods. Missing history yields nil indicator values and a
// neutral trend, not an error.
func (e *Engine) Compute(symbol string, points []models.Point, window int, p Periods) *models.IndicatorSet {
	set := &models.IndicatorSet{Symbol: symbol, Window: window, Trend: models.Trend{Direction: models.TrendNeutral}}
	if len(points) == 0 {
		return set
	}
	last := points[len(points)-1]
	set.LastClose = last.Close
	set.LastBarTime = last.Timestamp

	key := fmt.Sprintf("%s:%d:%d", symbol, window, last.Timestamp)
	if v, ok := e.cache.Get(key); ok {
		if cached, ok := v.(*models.IndicatorSet); ok {
			return cached
		}
	}

	if len(points) > window {
		points = points[len(points)-window:]
	}
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}

	set.EMAFast = lastOf(EMASeries(closes, p.EMAFast))
	set.EMASlow = lastOf(EMASeries(closes, p.EMASlow))
	set.RSI = RSI(closes, p.RSI)
	set.ATR = ATR(closes, p.ATR)
	set.RecentReturns = Returns(closes, p.Returns)
	set.Trend = trendOf(closes, p, set.EMAFast, set.EMASlow)

	e.cache.Set(key, set, e.ttl)
	return set
}

// EMASeries computes an exponential moving average, seeded with the first
// value, smoothing 2/(period+1). Returns nil when values is empty.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period < 1 {
		period = 1
	}
	k := 2.0 / (float64(period) + 1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI computes the relative strength index over the trailing `period` changes:
// 100 when no losses, 0 when no gains, nil when history is short.
func RSI(values []float64, period int) *float64 {
	if len(values) < period+1 {
		return nil
	}
	tail := values[len(values)-period-1:]
	var gains, losses float64
	for i := 1; i < len(tail); i++ {
		d := tail[i] - tail[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	var rsi float64
	switch {
	case losses == 0 && gains == 0:
		rsi = 50
	case losses == 0:
		rsi = 100
	case gains == 0:
		rsi = 0
	default:
		rs := (gains / float64(period)) / (losses / float64(period))
		rsi = 100 - 100/(1+rs)
	}
	return &rsi
}

// ATR approximates average true range from close data only: the mean absolute
// single-step change over the trailing atr+1 closes.
func ATR(values []float64, period int) *float64 {
	if len(values) < period+1 {
		return nil
	}
	tail := values[len(values)-period-1:]
	var sum float64
	for i := 1; i < len(tail); i++ {
		sum += math.Abs(tail[i] - tail[i-1])
	}
	atr := sum / float64(period)
	return &atr
}

// Returns computes the trailing n single-bar fractional returns, newest last.
func Returns(values []float64, n int) []float64 {
	if len(values) < 2 {
		return nil
	}
	start := len(values) - n - 1
	if start < 0 {
		start = 0
	}
	tail := values[start:]
	out := make([]float64, 0, len(tail)-1)
	for i := 1; i < len(tail); i++ {
		if tail[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (tail[i]-tail[i-1])/tail[i-1])
	}
	return out
}

// trendOf derives direction, strength and slope from the EMA relationship and
// the fast EMA's own short-term slope.
func trendOf(closes []float64, p Periods, emaFast, emaSlow *float64) models.Trend {
	t := models.Trend{Direction: models.TrendNeutral}
	if emaFast == nil || emaSlow == nil || *emaSlow == 0 {
		return t
	}
	spread := (*emaFast - *emaSlow) / *emaSlow

	fastSeries := EMASeries(closes, p.EMAFast)
	if n := len(fastSeries); n > p.Slope && fastSeries[n-1-p.Slope] != 0 {
		t.Slope = (fastSeries[n-1] - fastSeries[n-1-p.Slope]) / fastSeries[n-1-p.Slope] / float64(p.Slope)
	}

	const flat = 0.0015 // spread below 0.15% reads as no trend
	switch {
	case spread > flat:
		t.Direction = models.TrendUp
	case spread < -flat:
		t.Direction = models.TrendDown
	}
	// strength saturates at a 3% spread
	t.Strength = math.Min(math.Abs(spread)/0.03, 1)
	return t
}

func lastOf(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	return &v
}
