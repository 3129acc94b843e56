package ingest

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/rules"
)

// CanonicalRow is one normalized adjustment line.
type CanonicalRow struct {
	Index         int                 `json:"index"` // 1-based data-row position
	SKU           string              `json:"sku"`
	Quantity      decimal.Decimal     `json:"quantity"`
	QuantityKnown bool                `json:"-"`
	Reason        string              `json:"reason"`
	UnitCost      decimal.NullDecimal `json:"unitCost"`
	TransactionID string              `json:"transactionId,omitempty"`
	Disposition   string              `json:"disposition,omitempty"`
	EventType     string              `json:"eventType,omitempty"`
}

// Record renders the row with the field names the external classifier expects.
func (r CanonicalRow) Record() map[string]any {
	rec := map[string]any{
		"sku":      r.SKU,
		"quantity": json.Number(r.Quantity.String()),
		"reason":   r.Reason,
	}
	if r.TransactionID != "" {
		rec["amazonTransactionId"] = r.TransactionID
	}
	if r.Disposition != "" {
		rec["disposition"] = r.Disposition
	}
	if r.EventType != "" {
		rec["eventType"] = r.EventType
	}
	return rec
}

// RowNormalizer turns delimited text or spreadsheet records into CanonicalRows.
type RowNormalizer struct {
	resolver *HeaderResolver
	maxRows  int
	logger   *slog.Logger
}

// NewRowNormalizer builds a normalizer with a hard row cap; maxRows <= 0 selects the default.
func NewRowNormalizer(resolver *HeaderResolver, maxRows int, logger *slog.Logger) *RowNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = NewHeaderResolver(nil)
	}
	if maxRows <= 0 {
		maxRows = constants.DefaultMaxRows
	}
	return &RowNormalizer{resolver: resolver, maxRows: maxRows, logger: logger}
}

// MaxRows reports the configured row cap.
func (n *RowNormalizer) MaxRows() int { return n.maxRows }

// Normalize parses raw delimited text. Malformed or header-only input yields no rows.
func (n *RowNormalizer) Normalize(text string) []CanonicalRow {
	t := ParseDelimited(text)
	return n.NormalizeRecords(t.Header, t.Records)
}

// NormalizeRecords applies the resolved header mapping to each record. Records past
// the row cap are discarded whole.
func (n *RowNormalizer) NormalizeRecords(header []string, records [][]string) []CanonicalRow {
	start := time.Now()
	mapping := n.resolver.Resolve(header)
	if len(mapping) == 0 {
		if len(header) > 0 {
			n.logger.Warn("ingest.normalize.no_fields_resolved", "headers", len(header))
		}
		return nil
	}
	if !mapping.Has(rules.FieldSKU) {
		n.logger.Warn("ingest.normalize.sku_unresolved", "headers", len(header))
	}

	limit := min(len(records), n.maxRows)
	rows := make([]CanonicalRow, 0, limit)
	for i := 0; i < limit; i++ {
		rows = append(rows, n.normalizeRecord(i+1, mapping, records[i]))
	}
	if dropped := len(records) - limit; dropped > 0 {
		n.logger.Warn("ingest.normalize.row_cap", "max_rows", n.maxRows, "dropped", dropped)
	}

	n.logger.Debug("ingest.normalize.ok",
		"rows", len(rows),
		"fields", len(mapping),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rows
}

func (n *RowNormalizer) normalizeRecord(index int, mapping Mapping, rec []string) CanonicalRow {
	row := CanonicalRow{Index: index, Quantity: decimal.Zero}
	for col, field := range mapping {
		if col >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[col])
		switch field {
		case rules.FieldSKU:
			row.SKU = cell
		case rules.FieldQuantity:
			if q, ok := ParseDecimal(cell); ok {
				row.Quantity = q
				row.QuantityKnown = true
			}
		case rules.FieldReason:
			row.Reason = cell
		case rules.FieldUnitCost:
			if c, ok := ParseDecimal(cell); ok {
				row.UnitCost = decimal.NewNullDecimal(c)
			}
		case rules.FieldTransactionID:
			row.TransactionID = cell
		case rules.FieldDisposition:
			row.Disposition = cell
		case rules.FieldEventType:
			row.EventType = cell
		}
	}
	if row.SKU == "" {
		row.SKU = constants.UnknownSKUPrefix + strconv.Itoa(index)
	}
	return row
}
