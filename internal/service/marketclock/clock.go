package marketclock

import (
	"time"

	"QuotePulse/internal/domain/models"
)

// US equities trading hours, evaluated in the exchange timezone.
const (
	preOpenMinute     = 4 * 60    // 04:00
	regularOpenMinute = 9*60 + 30 // 09:30
	regularCloseMin   = 16 * 60   // 16:00
	postCloseMinute   = 20 * 60   // 20:00
)

// Clock resolves the market session for a moment in time.
type Clock struct {
	loc *time.Location
}

// New loads the exchange timezone. Falls back to UTC-5 when tzdata is missing.
func New() *Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}
	return &Clock{loc: loc}
}

// SessionAt derives the session from trading-hour rules. Weekends are always closed.
func (c *Clock) SessionAt(t time.Time) models.Session {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return models.SessionClosed
	}
	minute := local.Hour()*60 + local.Minute()
	switch {
	case minute >= preOpenMinute && minute < regularOpenMinute:
		return models.SessionPre
	case minute >= regularOpenMinute && minute < regularCloseMin:
		return models.SessionRegular
	case minute >= regularCloseMin && minute < postCloseMinute:
		return models.SessionPost
	default:
		return models.SessionClosed
	}
}

// SessionAtMs is SessionAt for an epoch-ms timestamp.
func (c *Clock) SessionAtMs(ms int64) models.Session {
	return c.SessionAt(time.UnixMilli(ms))
}

// ParseMarketState maps an explicit provider market-state field to a session.
// Returns ("", false) for unknown states so callers fall back to clock rules.
func ParseMarketState(state string) (models.Session, bool) {
	switch state {
	case "PRE", "PREPRE":
		return models.SessionPre, true
	case "REGULAR":
		return models.SessionRegular, true
	case "POST", "POSTPOST":
		return models.SessionPost, true
	case "CLOSED":
		return models.SessionClosed, true
	default:
		return "", false
	}
}
