package marketclock

import (
	"testing"
	"time"

	"QuotePulse/internal/domain/models"
)

func at(t *testing.T, c *Clock, hour, min int, wd time.Weekday) models.Session {
	t.Helper()
	// 2024-10-07 is a Monday
	base := time.Date(2024, 10, 7, 0, 0, 0, 0, c.loc)
	day := base.AddDate(0, 0, int(wd-time.Monday))
	return c.SessionAt(time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, c.loc))
}

func TestSessionBoundaries(t *testing.T) {
	c := New()

	cases := []struct {
		hour, min int
		want      models.Session
	}{
		{3, 59, models.SessionClosed},
		{4, 0, models.SessionPre},
		{9, 29, models.SessionPre},
		{9, 30, models.SessionRegular},
		{15, 59, models.SessionRegular},
		{16, 0, models.SessionPost},
		{19, 59, models.SessionPost},
		{20, 0, models.SessionClosed},
		{23, 30, models.SessionClosed},
	}
	for _, tc := range cases {
		got := at(t, c, tc.hour, tc.min, time.Wednesday)
		if got != tc.want {
			t.Fatalf("%02d:%02d: expected %s, got %s", tc.hour, tc.min, tc.want, got)
		}
	}
}

func TestWeekendAlwaysClosed(t *testing.T) {
	c := New()
	if got := at(t, c, 12, 0, time.Saturday); got != models.SessionClosed {
		t.Fatalf("saturday noon: expected CLOSED, got %s", got)
	}
	if got := at(t, c, 10, 0, time.Sunday); got != models.SessionClosed {
		t.Fatalf("sunday morning: expected CLOSED, got %s", got)
	}
}

func TestParseMarketState(t *testing.T) {
	if s, ok := ParseMarketState("REGULAR"); !ok || s != models.SessionRegular {
		t.Fatalf("REGULAR: got %s ok=%v", s, ok)
	}
	if s, ok := ParseMarketState("PREPRE"); !ok || s != models.SessionPre {
		t.Fatalf("PREPRE: got %s ok=%v", s, ok)
	}
	if _, ok := ParseMarketState("HALTED"); ok {
		t.Fatalf("unknown state should not map")
	}
}

func TestSessionAtMs(t *testing.T) {
	c := New()
	noon := time.Date(2024, 10, 9, 12, 0, 0, 0, c.loc) // Wednesday
	if got := c.SessionAtMs(noon.UnixMilli()); got != models.SessionRegular {
		t.Fatalf("expected REGULAR, got %s", got)
	}
}
