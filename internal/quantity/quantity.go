// Package quantity turns free-text financial snippets into normalized
// percentages and exact monetary amounts.
package quantity

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	percentRe  = regexp.MustCompile(`(-?\d+\.?\d*)%`)
	numberRe   = regexp.MustCompile(`-?\d+\.?\d*`)
	disallowed = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s%₹$€£.-]`)
)

// unit is a scale keyword and its multiplier. Units are checked in slice
// order and the first one present wins.
type unit struct {
	re     *regexp.Regexp
	factor decimal.Decimal
}

var units = []unit{
	newUnit("cr", 10_000_000),
	newUnit("crores?", 10_000_000),
	newUnit("lakhs?", 100_000),
	newUnit("millions?", 1_000_000),
	newUnit("mn", 1_000_000),
	newUnit("billions?", 1_000_000_000),
	newUnit("bn", 1_000_000_000),
}

// newUnit matches pattern as a standalone token. A leading digit is
// allowed so "12cr" and "5bn" are recognized.
func newUnit(pattern string, factor int64) unit {
	return unit{
		re:     regexp.MustCompile(`(?:^|[^a-z])` + pattern + `(?:[^a-z]|$)`),
		factor: decimal.NewFromInt(factor),
	}
}

// ExtractPercentage returns the first signed decimal immediately followed by
// a percent sign.
func ExtractPercentage(text string) (float64, bool) {
	m := percentRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractAmount returns the first signed decimal in text, scaled by the
// first crore, lakh, million or billion unit keyword found.
func ExtractAmount(text string) (decimal.Decimal, bool) {
	norm := strings.ReplaceAll(strings.ToLower(text), ",", "")
	tok := numberRe.FindString(norm)
	if tok == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(strings.TrimSuffix(tok, "."))
	if err != nil {
		return decimal.Zero, false
	}
	for _, u := range units {
		if u.re.MatchString(norm) {
			return v.Mul(u.factor), true
		}
	}
	return v, true
}

// CleanText drops characters other than letters in any script (with their
// combining marks), digits, underscore, whitespace, '%',
// '.', '-' and the ₹ $ € £ currency symbols, then collapses whitespace runs
// to single spaces and trims the ends.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(disallowed.ReplaceAllString(text, "")), " ")
}
