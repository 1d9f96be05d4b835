package quote

import (
	"fmt"
	"time"

	"QuotePulse/internal/domain/models"
)

// Hint is an explicit provenance hint carried by a provider payload.
type Hint string

const (
	HintNone       Hint = ""
	HintRealtime   Hint = "realtime"
	HintDelayed    Hint = "delayed"
	HintCached     Hint = "cache"
	HintHistorical Hint = "historical"
)

// Thresholds are the age cutoffs separating REALTIME from DELAYED from CACHED,
// scoped to the current session.
type Thresholds struct {
	RegularRealtime  time.Duration
	RegularDelayed   time.Duration
	ExtendedRealtime time.Duration
	ExtendedDelayed  time.Duration
}

// DefaultThresholds match typical vendor delay windows.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RegularRealtime:  90 * time.Second,
		RegularDelayed:   20 * time.Minute,
		ExtendedRealtime: 5 * time.Minute,
		ExtendedDelayed:  45 * time.Minute,
	}
}

func (t Thresholds) realtimeFor(s models.Session) time.Duration {
	if s == models.SessionRegular {
		return t.RegularRealtime
	}
	return t.ExtendedRealtime
}

func (t Thresholds) delayedFor(s models.Session) time.Duration {
	if s == models.SessionRegular {
		return t.RegularDelayed
	}
	return t.ExtendedDelayed
}

// Classification is the freshness verdict for a quote.
type Classification struct {
	Source  models.Source
	Reason  string
	IsStale bool
}

// Classify assigns a provenance label given session, provider hint, quote
// timestamp and current time. Priority: explicit hint, closed session,
// missing timestamp, then age against the session-scoped thresholds.
func Classify(session models.Session, hint Hint, asOf *int64, nowMs int64, th Thresholds) Classification {
	switch hint {
	case HintCached:
		return Classification{Source: models.SourceCached, Reason: "provider marked payload as cached", IsStale: true}
	case HintHistorical:
		return Classification{Source: models.SourceLastClose, Reason: "provider served historical close", IsStale: true}
	case HintDelayed:
		return Classification{Source: models.SourceDelayed, Reason: "provider marked payload as delayed"}
	case HintRealtime:
		return Classification{Source: models.SourceRealtime, Reason: "provider marked payload as realtime"}
	}

	if session == models.SessionClosed {
		return Classification{Source: models.SourceLastClose, Reason: "market closed; serving last close"}
	}

	if asOf == nil {
		if session.IsActive() {
			return Classification{Source: models.SourceDelayed, Reason: "no timestamp during active session; assuming delayed"}
		}
		return Classification{Source: models.SourceCached, Reason: "no timestamp outside trading hours", IsStale: true}
	}

	age := time.Duration(nowMs-*asOf) * time.Millisecond
	realtimeMax := th.realtimeFor(session)
	delayedMax := th.delayedFor(session)

	switch {
	case age <= realtimeMax:
		return Classification{Source: models.SourceRealtime, Reason: fmt.Sprintf("quote age %s within realtime window", age.Round(time.Second))}
	case age <= delayedMax:
		return Classification{Source: models.SourceDelayed, Reason: fmt.Sprintf("quote age %s within delayed window", age.Round(time.Second))}
	default:
		return Classification{Source: models.SourceCached, Reason: fmt.Sprintf("quote age %s exceeds delayed window", age.Round(time.Second)), IsStale: true}
	}
}

// MarketOpenWarning returns an advisory string when the market is open but the
// resolved source carries nothing fresh, or "" when no warning applies.
func MarketOpenWarning(session models.Session, source models.Source) string {
	if session != models.SessionRegular {
		return ""
	}
	switch source {
	case models.SourceCached, models.SourceLastClose, models.SourceUnavailable:
		return "market is open but no fresh quote is available"
	default:
		return ""
	}
}
