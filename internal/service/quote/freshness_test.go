package quote

import (
	"testing"
	"time"

	"QuotePulse/internal/domain/models"
)

func msPtr(v int64) *int64 { return &v }

func TestClassifyExplicitHints(t *testing.T) {
	now := time.Now().UnixMilli()
	th := DefaultThresholds()

	cases := []struct {
		hint  Hint
		want  models.Source
		stale bool
	}{
		{HintRealtime, models.SourceRealtime, false},
		{HintDelayed, models.SourceDelayed, false},
		{HintCached, models.SourceCached, true},
		{HintHistorical, models.SourceLastClose, true},
	}
	for _, tc := range cases {
		cls := Classify(models.SessionRegular, tc.hint, msPtr(now), now, th)
		if cls.Source != tc.want {
			t.Fatalf("hint %q: source = %s, want %s", tc.hint, cls.Source, tc.want)
		}
		if cls.IsStale != tc.stale {
			t.Fatalf("hint %q: stale = %v, want %v", tc.hint, cls.IsStale, tc.stale)
		}
	}
}

func TestClassifyClosedSession(t *testing.T) {
	now := time.Now().UnixMilli()
	cls := Classify(models.SessionClosed, HintNone, msPtr(now), now, DefaultThresholds())
	if cls.Source != models.SourceLastClose {
		t.Fatalf("closed session source = %s, want LAST_CLOSE", cls.Source)
	}
}

func TestClassifyMissingTimestamp(t *testing.T) {
	now := time.Now().UnixMilli()
	th := DefaultThresholds()

	for _, s := range []models.Session{models.SessionPre, models.SessionRegular, models.SessionPost} {
		cls := Classify(s, HintNone, nil, now, th)
		if cls.Source != models.SourceDelayed {
			t.Fatalf("session %s without timestamp: source = %s, want DELAYED", s, cls.Source)
		}
		if cls.IsStale {
			t.Fatalf("session %s without timestamp should not be stale", s)
		}
	}
}

func TestClassifyAgeWindows(t *testing.T) {
	now := time.Now().UnixMilli()
	th := DefaultThresholds()

	cases := []struct {
		name    string
		session models.Session
		age     time.Duration
		want    models.Source
		stale   bool
	}{
		{"regular fresh", models.SessionRegular, 30 * time.Second, models.SourceRealtime, false},
		{"regular delayed", models.SessionRegular, 5 * time.Minute, models.SourceDelayed, false},
		{"regular stale", models.SessionRegular, time.Hour, models.SourceCached, true},
		{"extended fresh", models.SessionPre, 3 * time.Minute, models.SourceRealtime, false},
		{"extended delayed", models.SessionPost, 30 * time.Minute, models.SourceDelayed, false},
		{"extended stale", models.SessionPost, 2 * time.Hour, models.SourceCached, true},
	}
	for _, tc := range cases {
		asOf := now - tc.age.Milliseconds()
		cls := Classify(tc.session, HintNone, &asOf, now, th)
		if cls.Source != tc.want {
			t.Fatalf("%s: source = %s, want %s", tc.name, cls.Source, tc.want)
		}
		if cls.IsStale != tc.stale {
			t.Fatalf("%s: stale = %v, want %v", tc.name, cls.IsStale, tc.stale)
		}
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	now := time.Now().UnixMilli()
	asOf := now - (10 * time.Minute).Milliseconds()
	th := DefaultThresholds()

	first := Classify(models.SessionRegular, HintNone, &asOf, now, th)
	for i := 0; i < 5; i++ {
		again := Classify(models.SessionRegular, HintNone, &asOf, now, th)
		if again != first {
			t.Fatalf("classification changed between calls: %+v vs %+v", again, first)
		}
	}
}

func TestMarketOpenWarning(t *testing.T) {
	if w := MarketOpenWarning(models.SessionRegular, models.SourceCached); w == "" {
		t.Fatal("expected warning for cached quote during regular session")
	}
	if w := MarketOpenWarning(models.SessionRegular, models.SourceUnavailable); w == "" {
		t.Fatal("expected warning for unavailable quote during regular session")
	}
	if w := MarketOpenWarning(models.SessionRegular, models.SourceRealtime); w != "" {
		t.Fatalf("unexpected warning for realtime quote: %q", w)
	}
	if w := MarketOpenWarning(models.SessionClosed, models.SourceCached); w != "" {
		t.Fatalf("unexpected warning outside regular session: %q", w)
	}
}
