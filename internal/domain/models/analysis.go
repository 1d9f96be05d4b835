package models

// TrendDirection labels the fast/slow EMA relationship.
type TrendDirection string

const (
	TrendUp      TrendDirection = "UP"
	TrendDown    TrendDirection = "DOWN"
	TrendNeutral TrendDirection = "NEUTRAL"
)

// Trend summarizes direction, strength and slope for one timeframe window.
type Trend struct {
	Direction TrendDirection `json:"direction"`
	Strength  float64        `json:"strength"` // 0..1
	Slope     float64        `json:"slope"`    // fast-EMA slope, fraction per bar
}

// IndicatorSet holds the computed indicators for one timeframe window.
// Pointer fields are nil when there was not enough history to compute them.
type IndicatorSet struct {
	Symbol        string    `json:"symbol"`
	Window        int       `json:"window"`
	EMAFast       *float64  `json:"emaFast"`
	EMASlow       *float64  `json:"emaSlow"`
	RSI           *float64  `json:"rsi"`
	ATR           *float64  `json:"atr"`
	Trend         Trend     `json:"trend"`
	RecentReturns []float64 `json:"recentReturns"`
	LastClose     float64   `json:"lastClose"`
	LastBarTime   int64     `json:"lastBarTime"` // epoch ms of the newest candle
}

// SignalKind is the trade direction recommendation.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalHold SignalKind = "HOLD"
)

// SignalComponent is one weighted contribution to a window score.
type SignalComponent struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`  // 0..100, 50 neutral
	Weight   float64 `json:"weight"` // 0..1
	Weighted float64 `json:"weighted"`
}

// TimeframeConflict records a cross-timeframe disagreement that forced HOLD.
type TimeframeConflict struct {
	ShortSignal SignalKind `json:"shortSignal"`
	LongSignal  SignalKind `json:"longSignal"`
	Resolution  string     `json:"resolution"`
}

// SignalResult is the blended multi-timeframe recommendation.
type SignalResult struct {
	Symbol     string             `json:"symbol"`
	Signal     SignalKind         `json:"signal"`
	Score      float64            `json:"score"`      // 0..100
	Confidence float64            `json:"confidence"` // 0..100
	Components []SignalComponent  `json:"components"`
	Conflict   *TimeframeConflict `json:"conflict,omitempty"`
	Reasons    []string           `json:"reasons"`
}

// WatchLevels are breakout/breakdown levels published with HOLD plans.
type WatchLevels struct {
	Breakout  float64 `json:"breakout"`
	Breakdown float64 `json:"breakdown"`
}

// TradePlan is the sized entry/stop/target recommendation for a signal.
// It is constructed once per analysis request and never mutated afterwards.
type TradePlan struct {
	Symbol         string       `json:"symbol"`
	Signal         SignalKind   `json:"signal"`
	IsHold         bool         `json:"isHold"`
	EntryRangeLow  float64      `json:"entryRangeLow"`
	EntryRangeHigh float64      `json:"entryRangeHigh"`
	StopLoss       float64      `json:"stopLoss"`
	TakeProfit     float64      `json:"takeProfit"`
	RiskReward     float64      `json:"riskReward"`
	PositionSize   float64      `json:"positionSize"` // shares
	RiskBudget     float64      `json:"riskBudget"`   // cash at risk
	Watch          *WatchLevels `json:"watch,omitempty"`
	SizingNotes    []string     `json:"sizingNotes,omitempty"`
	SizingWarnings []string     `json:"sizingWarnings,omitempty"`
}

// BacktestTrade is one closed round-trip from the backtest replay.
type BacktestTrade struct {
	EntryIndex int     `json:"entryIndex"`
	ExitIndex  int     `json:"exitIndex"`
	EntryPrice float64 `json:"entryPrice"`
	ExitPrice  float64 `json:"exitPrice"`
	ReturnPct  float64 `json:"returnPct"`
}

// BacktestSummary aggregates a signal-replay over trailing history.
type BacktestSummary struct {
	Symbol         string          `json:"symbol"`
	Bars           int             `json:"bars"`
	TradeCount     int             `json:"tradeCount"`
	WinRate        float64         `json:"winRate"`   // 0..100
	AvgReturnPct   float64         `json:"avgReturnPct"`
	TotalReturnPct float64         `json:"totalReturnPct"`
	MaxDrawdownPct float64         `json:"maxDrawdownPct"`
	BenchmarkPct   float64         `json:"benchmarkPct"` // buy and hold
	Trades         []BacktestTrade `json:"trades,omitempty"`
	EquityCurve    []float64       `json:"equityCurve,omitempty"`
	Insufficient   bool            `json:"insufficientData"`
}

// Analysis is the full per-symbol view served by the pull API.
type Analysis struct {
	Quote      *Quote        `json:"quote"`
	Short      *IndicatorSet `json:"shortWindow"`
	Long       *IndicatorSet `json:"longWindow"`
	Signal     *SignalResult `json:"signal"`
	Plan       *TradePlan    `json:"tradePlan"`
}
