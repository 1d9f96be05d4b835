package util

import (
    "testing"
    "time"
)

func TestParseDateTime(t *testing.T) {
    ms, ok := ParseDateTime("2024-10-10", "15:30:00")
    if !ok {
        t.Fatalf("expected ok")
    }
    want := time.Date(2024, 10, 10, 15, 30, 0, 0, time.UTC).UnixMilli()
    if ms != want {
        t.Fatalf("ms = %d, want %d", ms, want)
    }
}

func TestParseDateTimeRejectsPartial(t *testing.T) {
    if _, ok := ParseDateTime("2024-10-10", ""); ok {
        t.Fatal("missing clock accepted")
    }
    if _, ok := ParseDateTime("", "15:30:00"); ok {
        t.Fatal("missing date accepted")
    }
    if _, ok := ParseDateTime("2024-10-10", "N/D"); ok {
        t.Fatal("malformed clock accepted")
    }
}

func TestRangeStart(t *testing.T) {
    now := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)

    if got := RangeStart("6mo", now); !got.Equal(now.AddDate(0, -6, 0)) {
        t.Fatalf("6mo start = %v", got)
    }
    if got := RangeStart("1y", now); !got.Equal(now.AddDate(-1, 0, 0)) {
        t.Fatalf("1y start = %v", got)
    }
    // unknown tokens default to three months
    if got := RangeStart("bogus", now); !got.Equal(now.AddDate(0, -3, 0)) {
        t.Fatalf("default start = %v", got)
    }
}
