package provider

import (
	"testing"
	"time"

	"QuotePulse/internal/service/marketclock"
	"QuotePulse/internal/service/quote"
)

func testNormalizer() *quote.Normalizer {
	return quote.NewNormalizer(marketclock.New(), quote.DefaultThresholds())
}

func TestUnwrapBody(t *testing.T) {
	direct := []byte(`{"quoteResponse":{"result":[]}}`)
	if got := string(unwrapBody(direct)); got != string(direct) {
		t.Fatalf("direct body rewritten: %s", got)
	}

	wrapped := []byte(`{"contents":"{\"ok\":true}"}`)
	if got := string(unwrapBody(wrapped)); got != `{"ok":true}` {
		t.Fatalf("wrapped body = %s", got)
	}
}

func TestRelayBuilders(t *testing.T) {
	target := "https://upstream.example/v7/finance/quote?symbols=AAPL"

	if got := DirectRelay(target); got != target {
		t.Fatalf("direct relay rewrote url: %s", got)
	}
	if got := PassthroughRelay("https://proxy.example/")(target); got != "https://proxy.example/"+target {
		t.Fatalf("passthrough relay = %s", got)
	}
	wrapped := WrapperRelay("https://wrap.example/get")(target)
	if wrapped == target || wrapped[:28] != "https://wrap.example/get?url" {
		t.Fatalf("wrapper relay = %s", wrapped)
	}

	relays := BuildRelays([]string{"https://wrap.example/get"}, []string{"https://proxy.example/"})
	if len(relays) != 3 {
		t.Fatalf("built %d relays, want direct + wrapper + passthrough", len(relays))
	}
	if got := relays[0](target); got != target {
		t.Fatal("direct attempt must come first")
	}
}

func TestParseQuoteRow(t *testing.T) {
	raw, ok := parseQuoteRow([]string{"aapl.us", "2024-10-09", "15:30:00", "231.50"})
	if !ok {
		t.Fatal("full row rejected")
	}
	if raw.Close != 231.50 {
		t.Fatalf("close = %v", raw.Close)
	}
	if raw.AsOf == nil {
		t.Fatal("intraday timestamp dropped")
	}
	want := time.Date(2024, 10, 9, 15, 30, 0, 0, time.UTC).UnixMilli()
	if *raw.AsOf != want {
		t.Fatalf("asOf = %d, want %d", *raw.AsOf, want)
	}
}

func TestParseQuoteRowDateOnly(t *testing.T) {
	// time of N/D leaves the close usable but the row without a timestamp
	raw, ok := parseQuoteRow([]string{"aapl.us", "2024-10-09", "N/D", "231.50"})
	if !ok {
		t.Fatal("date-only row rejected")
	}
	if raw.AsOf != nil {
		t.Fatalf("asOf = %d, want nil", *raw.AsOf)
	}
}

func TestParseQuoteRowUnknownSymbol(t *testing.T) {
	if _, ok := parseQuoteRow([]string{"nope.us", "N/D", "N/D", "N/D"}); ok {
		t.Fatal("N/D close accepted")
	}
	if _, ok := parseQuoteRow([]string{"short"}); ok {
		t.Fatal("truncated row accepted")
	}
}

func TestSecondarySymbolMapping(t *testing.T) {
	s := NewSecondary("https://csv.example", testNormalizer(), time.Second, nil)
	if got := s.mapSymbol("AAPL"); got != "aapl.us" {
		t.Fatalf("mapped = %s", got)
	}
	if got := s.unmapSymbol("aapl.us"); got != "AAPL" {
		t.Fatalf("unmapped = %s", got)
	}
}

func TestClassifyStatus(t *testing.T) {
	if fe := classifyStatus("primary", "AAPL", 200); fe != nil {
		t.Fatalf("2xx classified as %v", fe)
	}
	if fe := classifyStatus("primary", "AAPL", 429); fe == nil || fe.Kind != quote.KindRateLimit {
		t.Fatalf("429 classified as %v", fe)
	}
	if fe := classifyStatus("primary", "AAPL", 404); fe == nil || fe.Kind != quote.KindInvalidSymbol {
		t.Fatalf("404 classified as %v", fe)
	}
	fe := classifyStatus("primary", "AAPL", 503)
	if fe == nil || fe.Kind != quote.KindHTTP || fe.Status != 503 {
		t.Fatalf("503 classified as %v", fe)
	}
	if !fe.Retryable() {
		t.Fatal("503 should be retryable")
	}
}
