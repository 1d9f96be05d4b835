package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"QuotePulse/internal/domain/models"
	"QuotePulse/internal/service/quote"
	xhttp "QuotePulse/pkg/http"
	xlogger "QuotePulse/pkg/logger"
)

// Primary is the JSON quote/history provider: a batched quote endpoint plus a
// per-symbol chart endpoint, optionally reached through relay proxies.
type Primary struct {
	name    string
	baseURL string
	relays  []RelayBuilder
	client  *xhttp.Client
	norm    *quote.Normalizer
	log     *xlogger.Logger
}

// NewPrimary builds the primary provider client.
func NewPrimary(baseURL string, relays []RelayBuilder, timeout time.Duration, norm *quote.Normalizer, log *xlogger.Logger) *Primary {
	if len(relays) == 0 {
		relays = []RelayBuilder{DirectRelay}
	}
	return &Primary{
		name:    "primary",
		baseURL: strings.TrimRight(baseURL, "/"),
		relays:  relays,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		norm:    norm,
		log:     log,
	}
}

func (p *Primary) Name() string { return p.name }

// quoteEnvelope is the batched quote endpoint response shape.
type quoteEnvelope struct {
	QuoteResponse struct {
		Result []primaryQuoteJSON `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

type primaryQuoteJSON struct {
	Symbol                     string   `json:"symbol"`
	MarketState                string   `json:"marketState"`
	QuoteType                  string   `json:"quoteType"`
	RegularMarketPrice         *float64 `json:"regularMarketPrice"`
	RegularMarketChange        *float64 `json:"regularMarketChange"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
	RegularMarketTime          *int64   `json:"regularMarketTime"` // epoch seconds
	PreMarketPrice             *float64 `json:"preMarketPrice"`
	PreMarketChange            *float64 `json:"preMarketChange"`
	PreMarketChangePercent     *float64 `json:"preMarketChangePercent"`
	PreMarketTime              *int64   `json:"preMarketTime"`
	PostMarketPrice            *float64 `json:"postMarketPrice"`
	PostMarketChange           *float64 `json:"postMarketChange"`
	PostMarketChangePercent    *float64 `json:"postMarketChangePercent"`
	PostMarketTime             *int64   `json:"postMarketTime"`
	PreviousClose              *float64 `json:"regularMarketPreviousClose"`
}

// FetchQuotes fetches a batch of symbols in a single request.
func (p *Primary) FetchQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	target := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", p.baseURL, strings.Join(symbols, ","))
	body, ferr := p.get(ctx, target, strings.Join(symbols, ","))
	if ferr != nil {
		return nil, ferr
	}

	var env quoteEnvelope
	if err := xhttp.DecodeJSON(body, &env); err != nil {
		return nil, quote.NewFetchError(quote.KindProvider, p.name, strings.Join(symbols, ","), err)
	}
	if e := env.QuoteResponse.Error; e != nil {
		return nil, quote.NewFetchError(quote.KindProvider, p.name, strings.Join(symbols, ","),
			fmt.Errorf("%s: %s", e.Code, e.Description))
	}

	now := time.Now().UnixMilli()
	out := make(map[string]*models.Quote, len(env.QuoteResponse.Result))
	for _, r := range env.QuoteResponse.Result {
		raw := toRawPrimary(r)
		out[strings.ToUpper(r.Symbol)] = p.norm.FromPrimary(raw, p.name, now)
	}
	return out, nil
}

// chartEnvelope is the per-symbol history endpoint response shape.
type chartEnvelope struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"` // epoch seconds
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchHistory fetches one symbol's close series for a range/interval pair.
func (p *Primary) FetchHistory(ctx context.Context, symbol, rng, interval string) (*models.HistoricalSeries, error) {
	target := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s", p.baseURL, symbol, rng, interval)
	body, ferr := p.get(ctx, target, symbol)
	if ferr != nil {
		return nil, ferr
	}

	var env chartEnvelope
	if err := xhttp.DecodeJSON(body, &env); err != nil {
		return nil, quote.NewFetchError(quote.KindProvider, p.name, symbol, err)
	}
	if e := env.Chart.Error; e != nil {
		kind := quote.KindProvider
		if e.Code == "Not Found" {
			kind = quote.KindInvalidSymbol
		}
		return nil, quote.NewFetchError(kind, p.name, symbol, fmt.Errorf("%s: %s", e.Code, e.Description))
	}
	if len(env.Chart.Result) == 0 {
		return nil, quote.NewFetchError(quote.KindInvalidSymbol, p.name, symbol, errors.New("empty chart result"))
	}

	res := env.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, quote.NewFetchError(quote.KindProvider, p.name, symbol, errors.New("chart result missing quote block"))
	}
	closes := res.Indicators.Quote[0].Close

	series := &models.HistoricalSeries{Symbol: strings.ToUpper(symbol), Range: rng, Interval: interval}
	var lastTs int64
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // providers leave holes for halted bars
		}
		ms := ts * 1000
		if ms <= lastTs {
			continue
		}
		lastTs = ms
		series.Points = append(series.Points, models.Point{Timestamp: ms, Close: *closes[i]})
	}
	if len(series.Points) == 0 {
		return nil, quote.NewFetchError(quote.KindProvider, p.name, symbol, errors.New("chart result carried no closes"))
	}
	return series, nil
}

// get performs a GET through each relay in order and classifies failures.
func (p *Primary) get(ctx context.Context, target, subject string) ([]byte, *quote.FetchError) {
	var lastErr *quote.FetchError
	for i, relay := range p.relays {
		resp, err := p.client.SendRequest(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    relay(target),
		})
		if err != nil {
			lastErr = classifyTransport(p.name, subject, err)
			if i+1 < len(p.relays) {
				p.log.Debug("primary relay failed, trying next",
					xlogger.Int("relay", i), xlogger.Error(err))
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = quote.NewFetchError(quote.KindNetwork, p.name, subject, readErr)
			continue
		}

		if fe := classifyStatus(p.name, subject, resp.StatusCode); fe != nil {
			// rate limits are upstream-wide: switching relays will not help
			if fe.Kind == quote.KindRateLimit {
				return nil, fe
			}
			lastErr = fe
			continue
		}
		return unwrapBody(body), nil
	}
	if lastErr == nil {
		lastErr = quote.NewFetchError(quote.KindNetwork, p.name, subject, errors.New("no relay configured"))
	}
	return nil, lastErr
}

func toRawPrimary(r primaryQuoteJSON) *quote.RawPrimaryQuote {
	return &quote.RawPrimaryQuote{
		Symbol:           strings.ToUpper(r.Symbol),
		MarketState:      r.MarketState,
		QuoteType:        r.QuoteType,
		RegularPrice:     r.RegularMarketPrice,
		RegularChange:    r.RegularMarketChange,
		RegularChangePct: r.RegularMarketChangePercent,
		RegularTime:      secToMs(r.RegularMarketTime),
		PrePrice:         r.PreMarketPrice,
		PreChange:        r.PreMarketChange,
		PreChangePct:     r.PreMarketChangePercent,
		PreTime:          secToMs(r.PreMarketTime),
		PostPrice:        r.PostMarketPrice,
		PostChange:       r.PostMarketChange,
		PostChangePct:    r.PostMarketChangePercent,
		PostTime:         secToMs(r.PostMarketTime),
		PreviousClose:    r.PreviousClose,
	}
}

func secToMs(sec *int64) *int64 {
	if sec == nil {
		return nil
	}
	ms := *sec * 1000
	return &ms
}

// classifyTransport maps transport errors to the fetch taxonomy.
func classifyTransport(provider, symbol string, err error) *quote.FetchError {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return quote.NewFetchError(quote.KindTimeout, provider, symbol, err)
	}
	if errors.Is(err, context.Canceled) {
		return quote.NewFetchError(quote.KindTimeout, provider, symbol, err)
	}
	return quote.NewFetchError(quote.KindNetwork, provider, symbol, err)
}

// classifyStatus maps HTTP status codes to the fetch taxonomy; nil means OK.
func classifyStatus(provider, symbol string, status int) *quote.FetchError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		fe := quote.NewFetchError(quote.KindRateLimit, provider, symbol, fmt.Errorf("status %d", status))
		fe.Status = status
		return fe
	case status == http.StatusNotFound:
		return quote.NewFetchError(quote.KindInvalidSymbol, provider, symbol, fmt.Errorf("status %d", status))
	default:
		fe := quote.NewFetchError(quote.KindHTTP, provider, symbol, fmt.Errorf("status %d", status))
		fe.Status = status
		return fe
	}
}
