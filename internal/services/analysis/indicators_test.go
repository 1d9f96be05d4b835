package analysis

import (
	"math"
	"testing"
	"time"

	"QuotePulse/internal/domain/models"
)

func pointsFrom(closes ...float64) []models.Point {
	out := make([]models.Point, len(closes))
	for i, c := range closes {
		out[i] = models.Point{Timestamp: int64(i+1) * 86_400_000, Close: c}
	}
	return out
}

func risingCloses(n int, start, stepPct float64) []float64 {
	out := make([]float64, n)
	v := start
	for i := range out {
		out[i] = v
		v *= 1 + stepPct/100
	}
	return out
}

func TestEMASeriesSeedsWithFirstValue(t *testing.T) {
	series := EMASeries([]float64{10, 11, 12}, 3)
	if len(series) != 3 {
		t.Fatalf("len = %d, want 3", len(series))
	}
	if series[0] != 10 {
		t.Fatalf("seed = %v, want first value 10", series[0])
	}
	// smoothing 2/(3+1) = 0.5: 11*0.5 + 10*0.5
	if series[1] != 10.5 {
		t.Fatalf("series[1] = %v, want 10.5", series[1])
	}
	if EMASeries(nil, 3) != nil {
		t.Fatal("empty input should yield nil")
	}
}

func TestEMASeriesConstantInput(t *testing.T) {
	series := EMASeries([]float64{50, 50, 50, 50}, 9)
	for i, v := range series {
		if v != 50 {
			t.Fatalf("series[%d] = %v, want 50 for constant input", i, v)
		}
	}
}

func TestRSIExtremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	if rsi := RSI(up, 7); rsi == nil || *rsi != 100 {
		t.Fatalf("all-gains RSI = %v, want 100", rsi)
	}
	down := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	if rsi := RSI(down, 7); rsi == nil || *rsi != 0 {
		t.Fatalf("all-losses RSI = %v, want 0", rsi)
	}
	flat := []float64{5, 5, 5, 5, 5, 5, 5, 5}
	if rsi := RSI(flat, 7); rsi == nil || *rsi != 50 {
		t.Fatalf("flat RSI = %v, want 50", rsi)
	}
	if rsi := RSI([]float64{1, 2, 3}, 7); rsi != nil {
		t.Fatalf("short history RSI = %v, want nil", *rsi)
	}
}

func TestRSIMixed(t *testing.T) {
	// 7 changes: +2 +2 +2 -1 +2 -1 +2 => gains 10, losses 2, RS 5, RSI ~83.33
	values := []float64{10, 12, 14, 16, 15, 17, 16, 18}
	rsi := RSI(values, 7)
	if rsi == nil {
		t.Fatal("RSI nil for sufficient history")
	}
	want := 100 - 100/(1+5.0)
	if math.Abs(*rsi-want) > 1e-9 {
		t.Fatalf("RSI = %v, want %v", *rsi, want)
	}
}

func TestATRMeanAbsoluteChange(t *testing.T) {
	// diffs: 1, 2, 3 over period 3
	values := []float64{10, 11, 13, 16}
	atr := ATR(values, 3)
	if atr == nil {
		t.Fatal("ATR nil for sufficient history")
	}
	if *atr != 2 {
		t.Fatalf("ATR = %v, want 2", *atr)
	}
	if ATR(values, 5) != nil {
		t.Fatal("ATR should be nil when history is short")
	}
}

func TestReturnsTail(t *testing.T) {
	values := []float64{100, 110, 99}
	got := Returns(values, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if math.Abs(got[0]-0.10) > 1e-9 {
		t.Fatalf("first return = %v, want 0.10", got[0])
	}
	if math.Abs(got[1]-(-0.10)) > 1e-9 {
		t.Fatalf("second return = %v, want -0.10", got[1])
	}
	if Returns([]float64{5}, 3) != nil {
		t.Fatal("single value should yield nil returns")
	}
}

func TestComputeEmptyHistory(t *testing.T) {
	e := NewEngine(time.Minute)
	set := e.Compute("AAPL", nil, 30, DefaultPeriods())
	if set.EMAFast != nil || set.EMASlow != nil || set.RSI != nil || set.ATR != nil {
		t.Fatalf("empty history should yield nil indicators: %+v", set)
	}
	if set.Trend.Direction != models.TrendNeutral {
		t.Fatalf("trend = %s, want NEUTRAL", set.Trend.Direction)
	}
}

func TestComputeTrendDirection(t *testing.T) {
	e := NewEngine(time.Minute)
	p := DefaultPeriods()

	up := e.Compute("AAPL", pointsFrom(risingCloses(40, 100, 1)...), 30, p)
	if up.Trend.Direction != models.TrendUp {
		t.Fatalf("rising series trend = %s, want UP", up.Trend.Direction)
	}
	if up.Trend.Strength <= 0 {
		t.Fatalf("rising series strength = %v, want > 0", up.Trend.Strength)
	}

	downCloses := risingCloses(40, 100, 1)
	for i, j := 0, len(downCloses)-1; i < j; i, j = i+1, j-1 {
		downCloses[i], downCloses[j] = downCloses[j], downCloses[i]
	}
	down := e.Compute("MSFT", pointsFrom(downCloses...), 30, p)
	if down.Trend.Direction != models.TrendDown {
		t.Fatalf("falling series trend = %s, want DOWN", down.Trend.Direction)
	}
}

func TestComputeMemoizesPerLastBar(t *testing.T) {
	e := NewEngine(time.Minute)
	points := pointsFrom(risingCloses(40, 100, 0.5)...)

	first := e.Compute("AAPL", points, 30, DefaultPeriods())
	second := e.Compute("AAPL", points, 30, DefaultPeriods())
	if first != second {
		t.Fatal("same (symbol, window, last bar) should hit the memo")
	}

	grown := append(append([]models.Point{}, points...), models.Point{Timestamp: points[len(points)-1].Timestamp + 86_400_000, Close: 200})
	third := e.Compute("AAPL", grown, 30, DefaultPeriods())
	if third == first {
		t.Fatal("a new last bar must bypass the memo")
	}
}
