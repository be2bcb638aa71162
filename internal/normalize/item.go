package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	codeRe       = regexp.MustCompile(`\(?\b\d{6}\b\)?`)
	bareCodeRe   = regexp.MustCompile(`\b(\d{6})\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// suffixes stripped from the end of an instrument name, longest first.
// Share-class markers and wrapper words vary across sources and do not
// change instrument identity.
var itemSuffixes = []string{
	"etf feeder",
	"feeder",
	"etf",
	"class a",
	"class c",
	"class e",
	"fund",
}

// ItemKey reduces an instrument display name to a comparison key:
// NFKC fold, lowercase, embedded 6-digit codes removed, wrapper and
// share-class suffixes stripped, whitespace collapsed.
// e.g. "CSI 300 ETF Feeder Class A (007339)" -> "csi 300"
func ItemKey(name string) string {
	s := norm.NFKC.String(name)
	s = strings.ToLower(s)
	s = codeRe.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', '[', ']', '{', '}', '"', '\'':
			return ' '
		}
		return r
	}, s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	// A name consisting only of a suffix word keeps itself: stripping
	// requires a preceding word.
	for changed := true; changed; {
		changed = false
		for _, suf := range itemSuffixes {
			if strings.HasSuffix(s, " "+suf) {
				s = strings.TrimSpace(strings.TrimSuffix(s, " "+suf))
				changed = true
			}
		}
	}
	return s
}

// ExtractFundCode returns the first embedded 6-digit fund code in a
// display name, or "". Leading zeros are preserved.
func ExtractFundCode(name string) string {
	m := bareCodeRe.FindStringSubmatch(norm.NFKC.String(name))
	if m == nil {
		return ""
	}
	return m[1]
}

// Similarity is the Jaccard index over character bigrams of two
// comparison keys. Strings shorter than one bigram fall back to
// equality.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0.0
	}
	inter := 0
	for g := range ba {
		if bb[g] {
			inter++
		}
	}
	union := len(ba) + len(bb) - inter
	return float64(inter) / float64(union)
}

// SimilarEnough reports whether two comparison keys refer to the same
// instrument: equal, similar beyond the strict threshold, or in a
// prefix/containment relation and similar beyond the relaxed one.
func SimilarEnough(a, b string, strict, relaxed float64) bool {
	if a == b {
		return true
	}
	j := Similarity(a, b)
	if j >= strict {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return j >= relaxed
	}
	return false
}

// bigrams returns the set of rune bigrams, spaces excluded.
func bigrams(s string) map[string]bool {
	runes := []rune(strings.ReplaceAll(s, " ", ""))
	if len(runes) < 2 {
		return nil
	}
	set := make(map[string]bool, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = true
	}
	return set
}
