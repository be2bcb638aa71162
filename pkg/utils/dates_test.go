package utils

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-08-25")
	if err != nil {
		t.Fatalf("ParseDate(2026-08-25) error: %v", err)
	}
	if d.Year() != 2026 || d.Month() != time.August || d.Day() != 25 {
		t.Errorf("ParseDate(2026-08-25) = %v", d)
	}

	for _, bad := range []string{"", "25-08-2026", "2026/08/25", "2026-13-01", "yesterday"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) should fail", bad)
		}
	}
}

func TestFormatDateRoundtrip(t *testing.T) {
	const date = "2026-08-25"
	d, err := ParseDate(date)
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if got := FormatDate(d); got != date {
		t.Errorf("FormatDate(ParseDate(%s)) = %s", date, got)
	}
}

func TestAddDays(t *testing.T) {
	tests := []struct {
		date string
		n    int
		want string
	}{
		{"2026-08-25", 1, "2026-08-26"},
		{"2026-08-25", -1, "2026-08-24"},
		{"2026-08-31", 1, "2026-09-01"},  // month boundary
		{"2026-12-31", 1, "2027-01-01"},  // year boundary
		{"2028-02-28", 1, "2028-02-29"},  // leap day
		{"2026-08-25", -30, "2026-07-26"},
	}
	for _, tt := range tests {
		got, err := AddDays(tt.date, tt.n)
		if err != nil {
			t.Errorf("AddDays(%s, %d) error: %v", tt.date, tt.n, err)
			continue
		}
		if got != tt.want {
			t.Errorf("AddDays(%s, %d) = %s, want %s", tt.date, tt.n, got, tt.want)
		}
	}

	if _, err := AddDays("not-a-date", 1); err == nil {
		t.Error("AddDays on a malformed date should fail")
	}
}

func TestDateRange(t *testing.T) {
	got, err := DateRange("2026-08-30", "2026-09-02")
	if err != nil {
		t.Fatalf("DateRange error: %v", err)
	}
	want := []string{"2026-08-30", "2026-08-31", "2026-09-01", "2026-09-02"}
	if len(got) != len(want) {
		t.Fatalf("DateRange returned %d dates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DateRange[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	single, err := DateRange("2026-08-25", "2026-08-25")
	if err != nil || len(single) != 1 || single[0] != "2026-08-25" {
		t.Errorf("DateRange(same, same) = %v, %v; want one date", single, err)
	}

	if _, err := DateRange("2026-08-25", "2026-08-24"); err == nil {
		t.Error("DateRange with end before start should fail")
	}
}

func TestTrailingRange(t *testing.T) {
	got, err := TrailingRange("2026-08-24", 7)
	if err != nil {
		t.Fatalf("TrailingRange error: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("TrailingRange returned %d dates, want 7", len(got))
	}
	if got[0] != "2026-08-18" {
		t.Errorf("TrailingRange start = %s, want 2026-08-18", got[0])
	}
	if got[6] != "2026-08-24" {
		t.Errorf("TrailingRange end = %s, want 2026-08-24", got[6])
	}

	one, err := TrailingRange("2026-08-24", 1)
	if err != nil || len(one) != 1 || one[0] != "2026-08-24" {
		t.Errorf("TrailingRange(end, 1) = %v, %v; want just the end date", one, err)
	}

	if _, err := TrailingRange("2026-08-24", 0); err == nil {
		t.Error("TrailingRange with days < 1 should fail")
	}
}
