package eligibility

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theduckverse/refundhunter-backend/internal/ingest"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func row(sku, qty, reason string) ingest.CanonicalRow {
	r := ingest.CanonicalRow{SKU: sku, Reason: reason}
	if q, ok := ingest.ParseDecimal(qty); ok {
		r.Quantity, r.QuantityKnown = q, true
	}
	return r
}

func TestClassify_Scenario(t *testing.T) {
	n := ingest.NewRowNormalizer(ingest.NewHeaderResolver(nil), 0, nil)
	rows := n.Normalize("sku,quantity,reason\nA-1,-3,Warehouse damaged\nA-2,0,Lost\nA-3,5,Found")

	got := NewClassifier(DefaultPolicy(), nil).Classify(rows)
	require.Len(t, got, 1)
	assert.Equal(t, "A-1", got[0].SKU)
	assert.Equal(t, "Warehouse damaged", got[0].Reason)
	assert.True(t, got[0].Quantity.Equal(dec("3")))
	assert.Equal(t, "25.5", got[0].EstimatedValue.String())
}

func TestEvaluate(t *testing.T) {
	c := NewClassifier(DefaultPolicy(), nil)

	tests := []struct {
		name     string
		row      ingest.CanonicalRow
		eligible bool
		qty      string
		value    string
		reason   string
	}{
		{name: "negative without keyword", row: row("A", "-2", "cycle count"), eligible: true, qty: "2", value: "17", reason: "cycle count"},
		{name: "positive with keyword", row: row("A", "4", "Customer_Return not returned"), eligible: true, qty: "4", value: "34", reason: "Customer_Return not returned"},
		{name: "positive without keyword", row: row("A", "4", "Found"), eligible: false},
		{name: "zero with keyword", row: row("A", "0", "lost"), eligible: false},
		{name: "missing quantity with keyword", row: row("A", "", "lost"), eligible: false},
		{name: "keyword is case-insensitive", row: row("A", "1", "REIMBURSEMENT pending"), eligible: true, qty: "1", value: "8.5", reason: "REIMBURSEMENT pending"},
		{name: "empty reason falls back", row: row("A", "-1", ""), eligible: true, qty: "1", value: "8.5", reason: "Lost inventory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Evaluate(tt.row)
			require.Equal(t, tt.eligible, ok)
			if !ok {
				return
			}
			assert.True(t, got.Quantity.Equal(dec(tt.qty)), "quantity %s", got.Quantity)
			assert.True(t, got.EstimatedValue.Equal(dec(tt.value)), "value %s", got.EstimatedValue)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestEvaluate_UnitCost(t *testing.T) {
	c := NewClassifier(DefaultPolicy(), nil)

	r := row("A", "-3", "lost")
	r.UnitCost = decimal.NewNullDecimal(dec("4.10"))
	got, ok := c.Evaluate(r)
	require.True(t, ok)
	assert.True(t, got.EstimatedValue.Equal(dec("12.3")))

	// a zero or negative cost is not a usable valuation
	r.UnitCost = decimal.NewNullDecimal(decimal.Zero)
	got, ok = c.Evaluate(r)
	require.True(t, ok)
	assert.True(t, got.EstimatedValue.Equal(dec("25.5")))
}

func TestEvaluate_RefinementLabels(t *testing.T) {
	c := NewClassifier(DefaultPolicy(), nil)

	tests := []struct {
		name        string
		qty         string
		disposition string
		eventType   string
		want        string
	}{
		{"sellable", "-1", "SELLABLE", "Adjustments", "Lost Inventory"},
		{"other disposition", "-1", "CUSTOMER_DAMAGED", "Adjustments", "Damaged Inventory"},
		{"adjustments without disposition", "-2", "", "Adjustments", "Unexplained Adjustment Loss"},
		{"negative with unknown event type", "-2", "", "Receipts", "Receipts"},
		{"positive keeps raw disposition", "2", "DEFECTIVE", "", "DEFECTIVE"},
		{"positive adjustment event", "2", "", "Adjustments", "Adjustments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := row("A", tt.qty, "")
			r.Disposition = tt.disposition
			r.EventType = tt.eventType
			got, ok := c.Evaluate(r)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Reason)
		})
	}

	// explicit reason text always wins
	r := row("A", "-1", "Destroyed in FC")
	r.Disposition = "SELLABLE"
	got, ok := c.Evaluate(r)
	require.True(t, ok)
	assert.Equal(t, "Destroyed in FC", got.Reason)
}

func TestEvaluate_AssumeSingleUnit(t *testing.T) {
	p := DefaultPolicy()
	p.AssumeSingleUnit = true
	c := NewClassifier(p, nil)

	got, ok := c.Evaluate(row("A", "n/a", "misplaced"))
	require.True(t, ok)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, got.EstimatedValue.Equal(dec("8.5")))

	// an explicit zero is still not reimbursable
	_, ok = c.Evaluate(row("A", "0", "misplaced"))
	assert.False(t, ok)

	// no keyword, nothing to assume
	_, ok = c.Evaluate(row("A", "", "inbound"))
	assert.False(t, ok)
}

func TestNewClassifier_Defaults(t *testing.T) {
	c := NewClassifier(Policy{Keywords: []string{"  SHRINK "}}, nil)
	assert.True(t, c.Policy().UnitValue.Equal(dec("8.50")))

	_, ok := c.Evaluate(row("A", "3", "lost"))
	assert.False(t, ok, "custom keyword set replaces the defaults")
	_, ok = c.Evaluate(row("A", "3", "Shrinkage"))
	assert.True(t, ok)
}

func TestCandidate_Record(t *testing.T) {
	rec := Candidate{SKU: "A", Reason: "Lost", Quantity: dec("3"), EstimatedValue: dec("25.50")}.Record()
	assert.Equal(t, "A", rec["sku"])
	assert.Equal(t, "Lost", rec["claimReason"])
	assert.NotContains(t, rec, "amazonTransactionId")
}

func TestClassify_NeverEmitsNonPositiveQuantity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	c := NewClassifier(DefaultPolicy(), nil)
	single := func() *Classifier {
		p := DefaultPolicy()
		p.AssumeSingleUnit = true
		return NewClassifier(p, nil)
	}()

	properties.Property("candidates always carry a positive quantity and value", prop.ForAll(
		func(qtys []int64, reasons []string, known []bool) bool {
			rows := make([]ingest.CanonicalRow, 0, len(qtys))
			for i, q := range qtys {
				r := ingest.CanonicalRow{Index: i + 1, SKU: "S", Quantity: decimal.NewFromInt(q), QuantityKnown: true}
				if i < len(reasons) {
					r.Reason = reasons[i]
				}
				if i < len(known) && !known[i] {
					r.Quantity, r.QuantityKnown = decimal.Zero, false
				}
				rows = append(rows, r)
			}
			for _, cl := range []*Classifier{c, single} {
				for _, cand := range cl.Classify(rows) {
					if !cand.Quantity.IsPositive() || !cand.EstimatedValue.IsPositive() {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-1000, 1000)),
		gen.SliceOf(gen.OneConstOf("", "lost", "Found", "damaged box", "inbound", "CLAIM"), reflect.TypeOf("")),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
