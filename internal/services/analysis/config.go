package analysis

// ComponentWeights blend the four scoring biases of one window.
type ComponentWeights struct {
	Trend         float64 `yaml:"trend"`
	Momentum      float64 `yaml:"momentum"`
	MeanReversion float64 `yaml:"mean_reversion"`
	Volatility    float64 `yaml:"volatility"`
}

// ScoringConfig is the versioned weighting scheme injected into the Scorer so
// the engine stays testable against alternative weightings.
type ScoringConfig struct {
	Version       int              `yaml:"version"`
	ShortWindow   int              `yaml:"short_window"`
	LongWindow    int              `yaml:"long_window"`
	ShortPeriods  Periods          `yaml:"-"`
	LongPeriods   Periods          `yaml:"-"`
	Weights       ComponentWeights `yaml:"weights"`
	ShortWeight   float64          `yaml:"short_weight"`
	LongWeight    float64          `yaml:"long_weight"`
	BuyThreshold  float64          `yaml:"buy_threshold"`
	SellThreshold float64          `yaml:"sell_threshold"`
	RSINeutralLo  float64          `yaml:"rsi_neutral_low"`
	RSINeutralHi  float64          `yaml:"rsi_neutral_high"`
}

// DefaultScoringConfig weights the long window more heavily, per the view that
// the long-term trend dominates tactically.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Version:     1,
		ShortWindow: 10,
		LongWindow:  30,
		ShortPeriods: Periods{
			EMAFast: 3, EMASlow: 7, RSI: 7, ATR: 5, Returns: 5, Slope: 3,
		},
		LongPeriods: Periods{
			EMAFast: 9, EMASlow: 21, RSI: 14, ATR: 14, Returns: 5, Slope: 5,
		},
		Weights: ComponentWeights{
			Trend:         0.35,
			Momentum:      0.30,
			MeanReversion: 0.15,
			Volatility:    0.20,
		},
		ShortWeight:   0.40,
		LongWeight:    0.60,
		BuyThreshold:  62,
		SellThreshold: 38,
		RSINeutralLo:  45,
		RSINeutralHi:  55,
	}
}

// volRegime is one band of the ATR-percent-of-price lookup table.
type volRegime struct {
	name      string
	maxATRPct float64 // band upper bound, ATR as % of price
	stability float64 // 0..1, feeds confidence
	bias      float64 // directional score contribution, 50 neutral
}

// Fixed bands: quiet tape scores slightly constructive, violent tape scores
// against the position and drains confidence.
var volRegimes = []volRegime{
	{name: "low", maxATRPct: 1.0, stability: 0.90, bias: 55},
	{name: "moderate", maxATRPct: 2.5, stability: 0.75, bias: 52},
	{name: "high", maxATRPct: 5.0, stability: 0.55, bias: 46},
	{name: "very_high", maxATRPct: 1e18, stability: 0.35, bias: 42},
}

// regimeFor looks up the volatility band for ATR as a percentage of price.
func regimeFor(atrPct float64) volRegime {
	for _, r := range volRegimes {
		if atrPct <= r.maxATRPct {
			return r
		}
	}
	return volRegimes[len(volRegimes)-1]
}
