package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNormalizer(maxRows int) *RowNormalizer {
	return NewRowNormalizer(NewHeaderResolver(nil), maxRows, nil)
}

// decimalComparer compares by value so 3 and 3.0 are equal.
var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestRowNormalizer_Normalize(t *testing.T) {
	n := newNormalizer(0)
	rows := n.Normalize("sku,quantity,reason\nA-1,-3,Warehouse damaged\nA-2,0,Lost\nA-3,5,Found")
	require.Len(t, rows, 3)

	assert.Equal(t, "A-1", rows[0].SKU)
	assert.True(t, rows[0].Quantity.Equal(decimal.NewFromInt(-3)))
	assert.True(t, rows[0].QuantityKnown)
	assert.Equal(t, "Warehouse damaged", rows[0].Reason)
	assert.False(t, rows[0].UnitCost.Valid)
	assert.Equal(t, 1, rows[0].Index)
	assert.Equal(t, 3, rows[2].Index)
}

func TestRowNormalizer_AllFields(t *testing.T) {
	n := newNormalizer(0)
	text := "Transaction Type\tSeller-SKU\tQuantity\tDisposition\tUnit Cost\tTransaction-Item-ID\n" +
		"Adjustments\tX-9\t-2\tSELLABLE\t$4.25\tT-77\n"
	rows := n.Normalize(text)
	require.Len(t, rows, 1)

	want := CanonicalRow{
		Index:         1,
		SKU:           "X-9",
		Quantity:      decimal.NewFromInt(-2),
		QuantityKnown: true,
		UnitCost:      decimal.NewNullDecimal(decimal.RequireFromString("4.25")),
		TransactionID: "T-77",
		Disposition:   "SELLABLE",
		EventType:     "Adjustments",
	}
	if diff := cmp.Diff(want, rows[0], decimalComparer); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestRowNormalizer_Defaults(t *testing.T) {
	n := newNormalizer(0)
	rows := n.Normalize("sku,quantity,reason\n,abc,Lost\n\"\",,\nB-1")
	require.Len(t, rows, 3)

	assert.Equal(t, "UNKNOWN-SKU-1", rows[0].SKU)
	assert.True(t, rows[0].Quantity.IsZero())
	assert.False(t, rows[0].QuantityKnown)

	assert.Equal(t, "UNKNOWN-SKU-2", rows[1].SKU)

	// short record: missing cells stay at their defaults
	assert.Equal(t, "B-1", rows[2].SKU)
	assert.True(t, rows[2].Quantity.IsZero())
	assert.Empty(t, rows[2].Reason)
}

func TestRowNormalizer_NoSKUColumn(t *testing.T) {
	rows := newNormalizer(0).Normalize("qty,reason\n-1,lost\n-2,lost")
	require.Len(t, rows, 2)
	assert.Equal(t, "UNKNOWN-SKU-1", rows[0].SKU)
	assert.Equal(t, "UNKNOWN-SKU-2", rows[1].SKU)
}

func TestRowNormalizer_MalformedInput(t *testing.T) {
	n := newNormalizer(0)
	for _, text := range []string{"", "sku,quantity", "\n\n", "date,memo\n2024-01-01,x"} {
		assert.Empty(t, n.Normalize(text), "input %q", text)
	}
}

func TestRowNormalizer_RowCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("sku,qty\n")
	for i := range 25 {
		fmt.Fprintf(&b, "S-%d,-1\n", i)
	}
	rows := newNormalizer(10).Normalize(b.String())
	require.Len(t, rows, 10)
	assert.Equal(t, "S-9", rows[9].SKU)

	assert.Equal(t, 10000, newNormalizer(-5).MaxRows())
}

func TestRowNormalizer_ColumnOrderInvariance(t *testing.T) {
	n := newNormalizer(0)
	a := n.Normalize("sku,quantity,reason,unit cost\nA-1,-3,Lost,2.00\nA-2,4,damaged,\n")
	b := n.Normalize("reason,unit cost,quantity,sku\nLost,2.00,-3,A-1\ndamaged,,4,A-2\n")
	if diff := cmp.Diff(a, b, decimalComparer); diff != "" {
		t.Errorf("reordered columns changed rows (-a +b):\n%s", diff)
	}
}

func TestCanonicalRow_Record(t *testing.T) {
	row := CanonicalRow{
		SKU:           "A-1",
		Quantity:      decimal.NewFromInt(-3),
		Reason:        "Lost",
		TransactionID: "T-1",
	}
	rec := row.Record()
	assert.Equal(t, "A-1", rec["sku"])
	assert.Equal(t, json.Number("-3"), rec["quantity"])
	assert.Equal(t, "Lost", rec["reason"])
	assert.Equal(t, "T-1", rec["amazonTransactionId"])
	assert.NotContains(t, rec, "disposition")

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sku":"A-1","quantity":-3,"reason":"Lost","amazonTransactionId":"T-1"}`, string(b))
}
