package claims

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"reflect"

	"github.com/shopspring/decimal"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/eligibility"
)

// Options configures a Validator.
type Options struct {
	// MaxClaims truncates the candidate stream before validation; <= 0 selects the default.
	MaxClaims int
	// AssumeSingleUnit lets a candidate without a quantity stand for one unit.
	AssumeSingleUnit bool
}

// Validator filters arbitrary candidate input into Claims. It never fails: input
// that is not a sequence yields no claims and bad candidates are dropped whole.
type Validator struct {
	maxClaims        int
	assumeSingleUnit bool
	logger           *slog.Logger
}

func NewValidator(opts Options, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxClaims <= 0 {
		opts.MaxClaims = constants.DefaultMaxClaims
	}
	return &Validator{maxClaims: opts.MaxClaims, assumeSingleUnit: opts.AssumeSingleUnit, logger: logger}
}

// MaxClaims reports the configured claim cap.
func (v *Validator) MaxClaims() int { return v.maxClaims }

// Validate accepts slices of records, candidates or claims, any other slice or
// array, and raw JSON bytes holding an array. Output order follows input order.
func (v *Validator) Validate(input any) []Claim {
	items := sequence(input)
	if len(items) > v.maxClaims {
		items = items[:v.maxClaims]
	}
	out := make([]Claim, 0, len(items))
	for _, item := range items {
		if c, ok := v.Check(item); ok {
			out = append(out, c)
		}
	}
	if dropped := len(items) - len(out); dropped > 0 {
		v.logger.Debug("claims.validate.dropped", "in", len(items), "out", len(out), "dropped", dropped)
	}
	return out
}

// Check validates a single candidate.
func (v *Validator) Check(item any) (Claim, bool) {
	rec, ok := record(item)
	if !ok {
		return Claim{}, false
	}

	sku, ok := toText(rec["sku"], false)
	if !ok || sku == "" {
		return Claim{}, false
	}
	reason := firstText(rec, false, "claimReason", "reason")
	if reason == "" {
		return Claim{}, false
	}

	qty, present, ok := toDecimal(rec["quantity"])
	switch {
	case !present && v.assumeSingleUnit:
		qty = decimal.NewFromInt(1)
	case !present || !ok:
		return Claim{}, false
	}
	if !qty.IsPositive() || !qty.Equal(qty.Truncate(0)) || qty.GreaterThan(maxInt64) {
		return Claim{}, false
	}

	value, _, ok := toDecimal(rec["estimatedValue"])
	if !ok {
		return Claim{}, false
	}
	value = value.Round(2)
	if !value.IsPositive() {
		return Claim{}, false
	}

	txn := firstText(rec, true, "amazonTransactionId", "transactionId")
	if txn == "" {
		txn = constants.TransactionIDPlaceholder
	}

	return Claim{
		SKU:            sku,
		ClaimReason:    reason,
		Quantity:       qty.IntPart(),
		EstimatedValue: value,
		TransactionID:  txn,
	}, true
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// sequence flattens the accepted input shapes into a slice of items.
func sequence(input any) []any {
	switch t := input.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	case []eligibility.Candidate:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = c.Record()
		}
		return out
	case []Claim:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = c.Record()
		}
		return out
	case json.RawMessage:
		return decodeSequence(t)
	case []byte:
		return decodeSequence(t)
	case string:
		return nil
	}

	rv := reflect.ValueOf(input)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return sequence(rv.Elem().Interface())
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func decodeSequence(b []byte) []any {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var arr []any
	if err := dec.Decode(&arr); err != nil {
		return nil
	}
	return arr
}

// record views an item as a key/value record. Structs go through their JSON form.
func record(item any) (map[string]any, bool) {
	switch t := item.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return t, t != nil
	case eligibility.Candidate:
		return t.Record(), true
	case *eligibility.Candidate:
		if t == nil {
			return nil, false
		}
		return t.Record(), true
	case Claim:
		return t.Record(), true
	case *Claim:
		if t == nil {
			return nil, false
		}
		return t.Record(), true
	}

	rv := reflect.ValueOf(item)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, true
	case reflect.Struct:
		b, err := json.Marshal(rv.Interface())
		if err != nil {
			return nil, false
		}
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var out map[string]any
		if err := dec.Decode(&out); err != nil || out == nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}
