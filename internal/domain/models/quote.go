package models

import "time"

// Session is the market phase the quote was observed in.
type Session string

const (
	SessionPre     Session = "PRE"
	SessionRegular Session = "REGULAR"
	SessionPost    Session = "POST"
	SessionClosed  Session = "CLOSED"
)

// IsActive reports whether the session is a trading session (pre, regular, post).
func (s Session) IsActive() bool {
	return s == SessionPre || s == SessionRegular || s == SessionPost
}

// Source is the provenance classification of a quote.
type Source string

const (
	SourceRealtime    Source = "REALTIME"
	SourceDelayed     Source = "DELAYED"
	SourceCached      Source = "CACHED"
	SourceLastClose   Source = "LAST_CLOSE"
	SourceUnavailable Source = "UNAVAILABLE"
)

// DataType describes what kind of price the provider reported.
type DataType string

const (
	DataLastTrade DataType = "LAST_TRADE"
	DataLastQuote DataType = "LAST_QUOTE"
	DataClose     DataType = "CLOSE"
	DataUnknown   DataType = "UNKNOWN"
)

// Quote is the canonical per-symbol price snapshot produced by the pipeline.
// Invariants: Source == LAST_CLOSE implies Session == CLOSED;
// Source == UNAVAILABLE implies Price == nil.
type Quote struct {
	Symbol        string   `json:"symbol"`
	Price         *float64 `json:"price"`
	ChangeAbs     float64  `json:"changeAbsolute"`
	ChangePct     float64  `json:"changePercent"`
	PreviousClose float64  `json:"previousClose"`
	AsOf          *int64   `json:"asOfTimestamp"` // epoch ms, nil when the provider reported none
	Session       Session  `json:"session"`
	Source        Source   `json:"source"`
	SourceReason  string   `json:"sourceReason"`
	ProviderUsed  string   `json:"providerUsed"`
	DataType      DataType `json:"dataType"`
	IsStale       bool     `json:"isStale"`
	Warnings      []string `json:"warnings,omitempty"`
}

// PriceValue returns the price or 0 when unavailable.
func (q *Quote) PriceValue() float64 {
	if q.Price == nil {
		return 0
	}
	return *q.Price
}

// Age returns the quote age relative to nowMs, or -1 when no timestamp exists.
func (q *Quote) Age(nowMs int64) int64 {
	if q.AsOf == nil {
		return -1
	}
	return nowMs - *q.AsOf
}

// Point is one (timestamp, close) observation of a historical series.
type Point struct {
	Timestamp int64   `json:"t"` // epoch ms
	Close     float64 `json:"c"`
}

// HistoricalSeries is an ordered close-price series for one symbol/range/interval.
// Timestamps are strictly increasing; the series is replaced wholesale on refetch.
type HistoricalSeries struct {
	Symbol   string  `json:"symbol"`
	Range    string  `json:"range"`
	Interval string  `json:"interval"`
	Points   []Point `json:"points"`
}

// Closes extracts the close values in order.
func (h *HistoricalSeries) Closes() []float64 {
	out := make([]float64, len(h.Points))
	for i, p := range h.Points {
		out[i] = p.Close
	}
	return out
}

// LastPoint returns the newest point, or zero value when empty.
func (h *HistoricalSeries) LastPoint() (Point, bool) {
	if len(h.Points) == 0 {
		return Point{}, false
	}
	return h.Points[len(h.Points)-1], true
}

// Validate checks the strictly-increasing timestamp invariant.
func (h *HistoricalSeries) Validate() bool {
	for i := 1; i < len(h.Points); i++ {
		if h.Points[i].Timestamp <= h.Points[i-1].Timestamp {
			return false
		}
	}
	return true
}

// QuoteUpdate is the push-notification payload carrying a refreshed quote.
type QuoteUpdate struct {
	Quote     *Quote    `json:"quote"`
	UpdatedAt time.Time `json:"updatedAt"`
}
