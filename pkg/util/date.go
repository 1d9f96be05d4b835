package util

import "time"

// ParseDateTime combines a "2006-01-02" date and a "15:04:05" clock into epoch
// milliseconds. Returns (0, false) when either part is missing or malformed.
func ParseDateTime(date, clock string) (int64, bool) {
    if date == "" || clock == "" {
        return 0, false
    }
    t, err := time.Parse("2006-01-02 15:04:05", date+" "+clock)
    if err != nil {
        return 0, false
    }
    return t.UnixMilli(), true
}

// RangeStart maps a range token onto the start date of the series, relative to
// now. Unknown tokens default to three months.
func RangeStart(rng string, now time.Time) time.Time {
    switch rng {
    case "1d":
        return now.AddDate(0, 0, -1)
    case "5d":
        return now.AddDate(0, 0, -7)
    case "1mo":
        return now.AddDate(0, -1, 0)
    case "3mo":
        return now.AddDate(0, -3, 0)
    case "6mo":
        return now.AddDate(0, -6, 0)
    case "1y":
        return now.AddDate(-1, 0, 0)
    case "2y":
        return now.AddDate(-2, 0, 0)
    case "5y":
        return now.AddDate(-5, 0, 0)
    default:
        return now.AddDate(0, -3, 0)
    }
}
