package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseDecimal parses a number that may carry thousands separators or
// surrounding whitespace. e.g. "1,250.5" → 1250.5. The bool reports
// whether a value was present and well formed.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" || s == "—" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseRatio parses a proportion written either as a fraction or as a
// percentage. e.g. "0.125" → 0.125, "12.5%" → 0.125, "25" → 0.25.
// Bare values above 1 are read as percentages.
func ParseRatio(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	pct := strings.HasSuffix(s, "%")
	if pct {
		s = strings.TrimSuffix(s, "%")
	}
	v, ok := ParseDecimal(s)
	if !ok {
		return 0, false
	}
	if pct || v > 1 {
		v /= 100
	}
	return v, true
}

// Round4 quantizes to 4 decimal places, the precision ratios carry in
// artifacts. A value rounded here renders and re-parses exactly.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Round2 quantizes to 2 decimal places, the precision of amounts.
func Round2(v float64) float64 {
	return math.Round(v*1e2) / 1e2
}

// FormatRatio renders a ratio with fixed precision for deterministic
// output. e.g. 0.25 → "0.2500"
func FormatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// FormatPercent renders a ratio as a percentage. e.g. 0.25 → "25.00%"
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// FormatSignedPercent renders a ratio delta with an explicit sign.
// e.g. 0.03 → "+3.00%", -0.015 → "-1.50%"
func FormatSignedPercent(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.2f%%", v*100)
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

// FormatAmount renders a currency amount with thousands separators,
// trimming a zero fractional part. e.g. 1250 → "1,250", 1250.5 → "1,250.50"
func FormatAmount(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	grouped := groupThousands(intPart)
	if frac != "00" {
		grouped += "." + frac
	}
	if neg {
		return "-" + grouped
	}
	return grouped
}

// groupThousands inserts commas into a digit string in groups of 3.
func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
