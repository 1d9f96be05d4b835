package quote

import (
	"QuotePulse/internal/domain/models"
	"QuotePulse/internal/service/marketclock"
)

// RawPrimaryQuote is the tagged raw payload shape of the primary JSON provider.
// Session-specific fields are pointers: absence matters.
type RawPrimaryQuote struct {
	Symbol           string
	MarketState      string
	QuoteType        string
	RegularPrice     *float64
	RegularChange    *float64
	RegularChangePct *float64
	RegularTime      *int64 // epoch ms
	PrePrice         *float64
	PreChange        *float64
	PreChangePct     *float64
	PreTime          *int64
	PostPrice        *float64
	PostChange       *float64
	PostChangePct    *float64
	PostTime         *int64
	PreviousClose    *float64
	Hint             Hint
}

// RawSecondaryRow is one CSV row from the secondary provider. Date-only rows
// carry no intraday timestamp.
type RawSecondaryRow struct {
	Symbol string
	Close  float64
	AsOf   *int64 // epoch ms; nil when only a date was reported
}

// Normalizer converts raw provider payloads into canonical Quotes.
// Normalization is pure for a fixed nowMs: the same payload always yields the
// same Quote.
type Normalizer struct {
	clock      *marketclock.Clock
	thresholds Thresholds
}

// NewNormalizer builds a normalizer with the given freshness thresholds.
func NewNormalizer(clock *marketclock.Clock, th Thresholds) *Normalizer {
	return &Normalizer{clock: clock, thresholds: th}
}

// FromPrimary maps a primary-provider payload to a canonical Quote, preferring
// session-appropriate fields and falling back to regular-session fields.
func (n *Normalizer) FromPrimary(raw *RawPrimaryQuote, providerName string, nowMs int64) *models.Quote {
	session := n.sessionFor(raw.MarketState, nowMs)

	price, change, changePct, asOf := raw.RegularPrice, raw.RegularChange, raw.RegularChangePct, raw.RegularTime
	switch session {
	case models.SessionPre:
		if raw.PrePrice != nil {
			price, change, changePct, asOf = raw.PrePrice, raw.PreChange, raw.PreChangePct, raw.PreTime
		}
	case models.SessionPost:
		if raw.PostPrice != nil {
			price, change, changePct, asOf = raw.PostPrice, raw.PostChange, raw.PostChangePct, raw.PostTime
		}
	}

	q := &models.Quote{
		Symbol:       raw.Symbol,
		Price:        price,
		Session:      session,
		ProviderUsed: providerName,
		DataType:     dataTypeFor(raw.QuoteType),
		AsOf:         asOf,
	}
	if change != nil {
		q.ChangeAbs = *change
	}
	if changePct != nil {
		q.ChangePct = *changePct
	}
	if raw.PreviousClose != nil {
		q.PreviousClose = *raw.PreviousClose
	}

	n.classify(q, raw.Hint, nowMs)
	return q
}

// FromSecondary maps a secondary-provider CSV row to a canonical Quote.
// The secondary provider reports closes only, so change fields derive from
// the previous close when one is known.
func (n *Normalizer) FromSecondary(row *RawSecondaryRow, providerName string, previousClose float64, nowMs int64) *models.Quote {
	close := row.Close
	q := &models.Quote{
		Symbol:        row.Symbol,
		Price:         &close,
		PreviousClose: previousClose,
		AsOf:          row.AsOf,
		Session:       n.clock.SessionAtMs(nowMs),
		ProviderUsed:  providerName,
		DataType:      models.DataClose,
	}
	if previousClose > 0 {
		q.ChangeAbs = close - previousClose
		q.ChangePct = (close - previousClose) / previousClose * 100
	}

	// Date-only rows carry no intraday timestamp: delayed during active
	// sessions, last close otherwise.
	n.classify(q, HintNone, nowMs)
	return q
}

// FromSeries synthesizes a last-close quote from a historical series. This is
// the terminal producer in the fetch chain before UNAVAILABLE.
func (n *Normalizer) FromSeries(series *models.HistoricalSeries, nowMs int64) *models.Quote {
	last, ok := series.LastPoint()
	if !ok {
		return n.Unavailable(series.Symbol, "historical series empty", nowMs)
	}
	close := last.Close
	q := &models.Quote{
		Symbol:       series.Symbol,
		Price:        &close,
		AsOf:         &last.Timestamp,
		Session:      models.SessionClosed, // synthesized closes are by definition not live
		Source:       models.SourceLastClose,
		SourceReason: "synthesized from cached historical series",
		ProviderUsed: "history",
		DataType:     models.DataClose,
		IsStale:      true,
	}
	if len(series.Points) > 1 {
		prev := series.Points[len(series.Points)-2].Close
		q.PreviousClose = prev
		if prev > 0 {
			q.ChangeAbs = close - prev
			q.ChangePct = (close - prev) / prev * 100
		}
	}
	if w := MarketOpenWarning(n.clock.SessionAtMs(nowMs), q.Source); w != "" {
		q.Warnings = append(q.Warnings, w)
	}
	return q
}

// FromCache re-labels a previously resolved quote served out of a cache tier.
func (n *Normalizer) FromCache(cached *models.Quote, tier string, nowMs int64) *models.Quote {
	q := *cached
	q.Session = n.clock.SessionAtMs(nowMs)
	if q.Session == models.SessionClosed {
		q.Source = models.SourceLastClose
		q.SourceReason = "market closed; serving " + tier + " cache"
	} else {
		q.Source = models.SourceCached
		q.SourceReason = "served from " + tier + " cache"
	}
	q.IsStale = true
	q.Warnings = nil
	if w := MarketOpenWarning(q.Session, q.Source); w != "" {
		q.Warnings = append(q.Warnings, w)
	}
	return &q
}

// Unavailable builds the degraded terminal quote: every producer failed but the
// caller still receives a Quote-shaped value.
func (n *Normalizer) Unavailable(symbol, reason string, nowMs int64) *models.Quote {
	session := n.clock.SessionAtMs(nowMs)
	q := &models.Quote{
		Symbol:       symbol,
		Price:        nil,
		Session:      session,
		Source:       models.SourceUnavailable,
		SourceReason: reason,
		DataType:     models.DataUnknown,
		IsStale:      true,
	}
	if w := MarketOpenWarning(session, q.Source); w != "" {
		q.Warnings = append(q.Warnings, w)
	}
	return q
}

func (n *Normalizer) sessionFor(marketState string, nowMs int64) models.Session {
	if s, ok := marketclock.ParseMarketState(marketState); ok {
		return s
	}
	return n.clock.SessionAtMs(nowMs)
}

func (n *Normalizer) classify(q *models.Quote, hint Hint, nowMs int64) {
	observed := q.Session
	cls := Classify(observed, hint, q.AsOf, nowMs, n.thresholds)
	q.Source = cls.Source
	q.SourceReason = cls.Reason
	q.IsStale = cls.IsStale

	// LAST_CLOSE provenance is only meaningful for a closed market
	if q.Source == models.SourceLastClose {
		q.Session = models.SessionClosed
	}
	// warning is judged against the observed session, not the forced one
	if w := MarketOpenWarning(observed, q.Source); w != "" {
		q.Warnings = append(q.Warnings, w)
	}
}

func dataTypeFor(quoteType string) models.DataType {
	switch quoteType {
	case "lastTrade", "EQUITY", "ETF":
		return models.DataLastTrade
	case "lastQuote":
		return models.DataLastQuote
	case "close":
		return models.DataClose
	default:
		return models.DataUnknown
	}
}
