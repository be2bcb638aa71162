// Package utils provides date and number helpers shared across
// sipboard packages.
package utils

import (
	"fmt"
	"time"
)

// DateLayout is the ISO date form used for all artifact keys.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO date (e.g. "2026-08-25").
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a time as an ISO date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays shifts an ISO date by n days (n may be negative).
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// DateRange returns every ISO date from start to end inclusive,
// ascending. end must not precede start.
func DateRange(start, end string) ([]string, error) {
	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	if e.Before(s) {
		return nil, fmt.Errorf("date range %s..%s: end precedes start", start, end)
	}
	var dates []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, FormatDate(d))
	}
	return dates, nil
}

// TrailingRange returns the days-long window ending at end inclusive.
// e.g. TrailingRange("2026-08-24", 7) starts at "2026-08-18".
func TrailingRange(end string, days int) ([]string, error) {
	if days < 1 {
		return nil, fmt.Errorf("trailing range ending %s: days must be >= 1, got %d", end, days)
	}
	start, err := AddDays(end, -(days - 1))
	if err != nil {
		return nil, err
	}
	return DateRange(start, end)
}
