package claims

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/theduckverse/refundhunter-backend/internal/ingest"
)

// toDecimal coerces a loosely typed number. present is false when the value is
// absent or null; ok is false when it is present but not a finite number, or
// its scale is outside ingest.DecimalInRange.
func toDecimal(v any) (d decimal.Decimal, present, ok bool) {
	d, present, ok = coerceDecimal(v)
	if ok && !ingest.DecimalInRange(d) {
		return decimal.Zero, present, false
	}
	return d, present, ok
}

func coerceDecimal(v any) (decimal.Decimal, bool, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false, false
	case decimal.Decimal:
		return t, true, true
	case json.Number:
		return parseNumber(string(t))
	case string:
		return parseNumber(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, true, false
		}
		return decimal.NewFromFloat(t), true, true
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, true, false
		}
		return decimal.NewFromFloat32(t), true, true
	case bool:
		return decimal.Zero, true, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), true, true
	case reflect.Pointer:
		if rv.IsNil() {
			return decimal.Zero, false, false
		}
		return coerceDecimal(rv.Elem().Interface())
	}
	return decimal.Zero, true, false
}

func parseNumber(s string) (decimal.Decimal, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, true, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, true, false
	}
	return d, true, true
}

// toText accepts strings and, for identifiers, plain numbers.
func toText(v any, allowNumber bool) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		if allowNumber {
			return string(t), true
		}
	case float64:
		if allowNumber && !math.IsNaN(t) && !math.IsInf(t, 0) {
			return strconv.FormatFloat(t, 'f', -1, 64), true
		}
	case int:
		if allowNumber {
			return strconv.Itoa(t), true
		}
	case int64:
		if allowNumber {
			return strconv.FormatInt(t, 10), true
		}
	}
	return "", false
}

// firstText returns the first non-empty text among keys, in order.
func firstText(rec map[string]any, allowNumber bool, keys ...string) string {
	for _, k := range keys {
		if s, ok := toText(rec[k], allowNumber); ok && s != "" {
			return s
		}
	}
	return ""
}
