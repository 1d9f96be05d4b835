package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"QuotePulse/internal/domain/models"
	"QuotePulse/internal/service/quote"
	xhttp "QuotePulse/pkg/http"
	xlogger "QuotePulse/pkg/logger"
	"QuotePulse/pkg/util"
)

// Secondary is the CSV fallback provider: one row per symbol with
// Symbol,Date,Time,Close fields and a ".us" suffix convention for US equities.
type Secondary struct {
	name    string
	baseURL string
	suffix  string
	client  *xhttp.Client
	norm    *quote.Normalizer
	log     *xlogger.Logger
}

// NewSecondary builds the secondary provider client.
func NewSecondary(baseURL string, norm *quote.Normalizer, timeout time.Duration, log *xlogger.Logger) *Secondary {
	return &Secondary{
		name:    "secondary",
		baseURL: strings.TrimRight(baseURL, "/"),
		suffix:  ".us",
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		norm:    norm,
		log:     log,
	}
}

func (s *Secondary) Name() string { return s.name }

// mapSymbol converts a canonical symbol to the provider's convention.
func (s *Secondary) mapSymbol(symbol string) string {
	return strings.ToLower(symbol) + s.suffix
}

// unmapSymbol converts back to the canonical form.
func (s *Secondary) unmapSymbol(provSymbol string) string {
	return strings.ToUpper(strings.TrimSuffix(strings.ToLower(provSymbol), s.suffix))
}

// FetchQuotes fetches one CSV row per symbol in a single request.
func (s *Secondary) FetchQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	mapped := make([]string, len(symbols))
	for i, sym := range symbols {
		mapped[i] = s.mapSymbol(sym)
	}
	subject := strings.Join(symbols, ",")
	target := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2c&h&e=csv", s.baseURL, strings.Join(mapped, "+"))

	rows, ferr := s.getCSV(ctx, target, subject)
	if ferr != nil {
		return nil, ferr
	}

	now := time.Now().UnixMilli()
	out := make(map[string]*models.Quote, len(rows))
	for _, row := range rows {
		raw, ok := parseQuoteRow(row)
		if !ok {
			continue // N/D row: the provider does not know the symbol
		}
		raw.Symbol = s.unmapSymbol(raw.Symbol)
		out[raw.Symbol] = s.norm.FromSecondary(raw, s.name, 0, now)
	}
	if len(out) == 0 {
		return nil, quote.NewFetchError(quote.KindInvalidSymbol, s.name, subject,
			errors.New("no parsable rows for requested symbols"))
	}
	return out, nil
}

// FetchHistory fetches a daily close series. The secondary provider serves
// daily bars only; finer intervals cascade to the next producer.
func (s *Secondary) FetchHistory(ctx context.Context, symbol, rng, interval string) (*models.HistoricalSeries, error) {
	if interval != "1d" && interval != "1wk" {
		return nil, quote.NewFetchError(quote.KindProvider, s.name, symbol,
			fmt.Errorf("interval %s not served", interval))
	}
	ivCode := "d"
	if interval == "1wk" {
		ivCode = "w"
	}
	from := util.RangeStart(rng, time.Now()).Format("20060102")
	to := time.Now().Format("20060102")
	target := fmt.Sprintf("%s/q/d/l/?s=%s&d1=%s&d2=%s&i=%s", s.baseURL, s.mapSymbol(symbol), from, to, ivCode)

	rows, ferr := s.getCSV(ctx, target, symbol)
	if ferr != nil {
		return nil, ferr
	}

	series := &models.HistoricalSeries{Symbol: strings.ToUpper(symbol), Range: rng, Interval: interval}
	var lastTs int64
	for _, row := range rows {
		// Date,Open,High,Low,Close,Volume
		if len(row) < 5 {
			continue
		}
		day, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			continue
		}
		close, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			continue
		}
		ms := day.UnixMilli()
		if ms <= lastTs {
			continue
		}
		lastTs = ms
		series.Points = append(series.Points, models.Point{Timestamp: ms, Close: close})
	}
	if len(series.Points) == 0 {
		return nil, quote.NewFetchError(quote.KindInvalidSymbol, s.name, symbol,
			errors.New("history response carried no rows"))
	}
	return series, nil
}

// getCSV performs a GET and parses the body as CSV, skipping the header row.
func (s *Secondary) getCSV(ctx context.Context, target, subject string) ([][]string, *quote.FetchError) {
	resp, err := s.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    target,
	})
	if err != nil {
		return nil, classifyTransport(s.name, subject, err)
	}
	defer resp.Body.Close()

	if fe := classifyStatus(s.name, subject, resp.StatusCode); fe != nil {
		return nil, fe
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, quote.NewFetchError(quote.KindNetwork, s.name, subject, err)
	}

	r := csv.NewReader(strings.NewReader(string(body)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, quote.NewFetchError(quote.KindProvider, s.name, subject, err)
	}
	if len(records) < 2 {
		return nil, quote.NewFetchError(quote.KindProvider, s.name, subject, errors.New("csv body has no data rows"))
	}
	return records[1:], nil
}

// parseQuoteRow parses a Symbol,Date,Time,Close row. Close of "N/D" means the
// provider does not track the symbol.
func parseQuoteRow(row []string) (*quote.RawSecondaryRow, bool) {
	if len(row) < 4 {
		return nil, false
	}
	closeStr := row[3]
	if closeStr == "N/D" || closeStr == "" {
		return nil, false
	}
	close, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		return nil, false
	}
	raw := &quote.RawSecondaryRow{Symbol: row[0], Close: close}

	// Time of "N/D" leaves a date-only row with no intraday timestamp
	if row[1] != "N/D" && row[2] != "N/D" {
		if ms, ok := util.ParseDateTime(row[1], row[2]); ok {
			raw.AsOf = &ms
		}
	}
	return raw, true
}
