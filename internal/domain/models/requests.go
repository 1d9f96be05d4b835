package models

// Requests for the market HTTP endpoints. Defined in domain for consistency and reuse.

type QuoteRequest struct {
	Symbols string `query:"symbols" json:"symbols" validate:"required"`
}

type HistoryRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Range    string `query:"range" json:"range" default:"3mo" validate:"oneof=1d 5d 1mo 3mo 6mo 1y 2y 5y"`
	Interval string `query:"interval" json:"interval" default:"1d" validate:"oneof=5m 15m 1h 1d 1wk"`
}

type AnalysisRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Range    string `query:"range" json:"range" default:"6mo" validate:"oneof=1mo 3mo 6mo 1y 2y"`
	Interval string `query:"interval" json:"interval" default:"1d" validate:"oneof=1h 1d"`
}

type BacktestRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Range    string `query:"range" json:"range" default:"1y" validate:"oneof=3mo 6mo 1y 2y 5y"`
	Interval string `query:"interval" json:"interval" default:"1d" validate:"oneof=1d 1wk"`
	Trades   bool   `query:"trades" json:"trades"`
}
