package repository

// IsValidRange returns true if rng is a supported history range.
func IsValidRange(rng string) bool {
	switch rng {
	case "1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y":
		return true
	default:
		return false
	}
}

// IsValidInterval returns true if iv is a supported candle interval.
func IsValidInterval(iv string) bool {
	switch iv {
	case "5m", "15m", "1h", "1d", "1wk":
		return true
	default:
		return false
	}
}

// IsIntraday reports whether the interval is finer than one day.
func IsIntraday(iv string) bool {
	switch iv {
	case "5m", "15m", "1h":
		return true
	default:
		return false
	}
}

// NormalizeRange converts a raw string to a valid range (or the default 3mo).
func NormalizeRange(s string) string {
	if IsValidRange(s) {
		return s
	}
	return "3mo"
}

// NormalizeInterval converts a raw string to a valid interval (or the default 1d).
func NormalizeInterval(s string) string {
	if IsValidInterval(s) {
		return s
	}
	return "1d"
}
