package ingest

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reThousands = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	currencyCut = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", " ", "", "\u00a0", "")
)

// MaxDecimalScale bounds both the exponent and the integer digits of an
// accepted decimal.
const MaxDecimalScale = 18

// DecimalInRange reports whether d has at most MaxDecimalScale fractional and
// integer digits.
func DecimalInRange(d decimal.Decimal) bool {
	exp := int(d.Exponent())
	if exp > MaxDecimalScale || exp < -MaxDecimalScale {
		return false
	}
	return d.NumDigits()+exp <= MaxDecimalScale
}

// ParseDecimal parses a spreadsheet numeric cell. It accepts a leading sign,
// currency symbols, thousands separators and accounting negatives like "(3)".
// Anything else, including NaN, infinities and values outside DecimalInRange,
// is reported as unparseable.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = currencyCut.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimPrefix(s, "+")
	if reThousands.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !DecimalInRange(d) {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}
