package util

import (
    "strconv"
    "strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
    if s == "" {
        return def
    }
    v, err := strconv.Atoi(s)
    if err != nil {
        return def
    }
    return v
}

// SplitSymbols splits a comma-separated symbol list, trimming whitespace,
// uppercasing, and dropping empty entries.
func SplitSymbols(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.ToUpper(strings.TrimSpace(p))
        if p != "" {
            out = append(out, p)
        }
    }
    return out
}
