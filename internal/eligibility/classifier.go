// Package eligibility decides which normalized adjustment rows are worth
// claiming and gives each a provisional value.
package eligibility

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/theduckverse/refundhunter-backend/constants"
	"github.com/theduckverse/refundhunter-backend/internal/ingest"
)

// Policy is the per-pipeline classification configuration.
type Policy struct {
	// UnitValue values a unit when the row carries no usable unit cost.
	UnitValue decimal.Decimal
	// AssumeSingleUnit counts a keyword-flagged row with a missing quantity as one unit.
	AssumeSingleUnit bool
	Keywords         []string
}

// DefaultPolicy returns the 8.50 unit value, the built-in keyword set and a zero
// quantity default.
func DefaultPolicy() Policy {
	return Policy{
		UnitValue: decimal.RequireFromString(constants.DefaultUnitValue),
		Keywords:  constants.EligibilityKeywords,
	}
}

// Candidate is a claim-shaped record that has not been validated yet.
type Candidate struct {
	Row            int             `json:"-"`
	SKU            string          `json:"sku"`
	Reason         string          `json:"claimReason"`
	Quantity       decimal.Decimal `json:"quantity"`
	EstimatedValue decimal.Decimal `json:"estimatedValue"`
	TransactionID  string          `json:"amazonTransactionId,omitempty"`
}

// Record renders the candidate as the plain record the claim validator consumes.
func (c Candidate) Record() map[string]any {
	rec := map[string]any{
		"sku":            c.SKU,
		"claimReason":    c.Reason,
		"quantity":       json.Number(c.Quantity.String()),
		"estimatedValue": json.Number(c.EstimatedValue.String()),
	}
	if c.TransactionID != "" {
		rec["amazonTransactionId"] = c.TransactionID
	}
	return rec
}

// Classifier applies the eligibility heuristic. It is immutable and safe for
// concurrent use.
type Classifier struct {
	policy   Policy
	keywords []string
	logger   *slog.Logger
}

func NewClassifier(policy Policy, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if !policy.UnitValue.IsPositive() {
		policy.UnitValue = decimal.RequireFromString(constants.DefaultUnitValue)
	}
	if len(policy.Keywords) == 0 {
		policy.Keywords = constants.EligibilityKeywords
	}
	kw := make([]string, 0, len(policy.Keywords))
	for _, k := range policy.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &Classifier{policy: policy, keywords: kw, logger: logger}
}

// Policy returns the effective policy after defaults were applied.
func (c *Classifier) Policy() Policy { return c.policy }

// Classify returns candidates for the eligible rows, in row order.
func (c *Classifier) Classify(rows []ingest.CanonicalRow) []Candidate {
	out := make([]Candidate, 0, len(rows)/4)
	for _, row := range rows {
		if cand, ok := c.Evaluate(row); ok {
			out = append(out, cand)
		}
	}
	c.logger.Debug("eligibility.classify.ok", "rows", len(rows), "candidates", len(out))
	return out
}

// Evaluate classifies one row. A row qualifies when its quantity is non-zero and
// either negative or accompanied by a loss keyword in its reason, disposition or
// event type.
func (c *Classifier) Evaluate(row ingest.CanonicalRow) (Candidate, bool) {
	keyword := c.matchesKeyword(row.Reason) ||
		c.matchesKeyword(row.Disposition) ||
		c.matchesKeyword(row.EventType)

	qty := row.Quantity
	if !row.QuantityKnown && keyword && c.policy.AssumeSingleUnit {
		qty = decimal.NewFromInt(1)
	}
	if qty.IsZero() {
		return Candidate{}, false
	}
	negative := qty.IsNegative()
	if !negative && !keyword {
		return Candidate{}, false
	}
	qty = qty.Abs()

	unit := c.policy.UnitValue
	if row.UnitCost.Valid && row.UnitCost.Decimal.IsPositive() {
		unit = row.UnitCost.Decimal
	}

	return Candidate{
		Row:            row.Index,
		SKU:            row.SKU,
		Reason:         reasonFor(row, negative),
		Quantity:       qty,
		EstimatedValue: qty.Mul(unit),
		TransactionID:  row.TransactionID,
	}, true
}

func (c *Classifier) matchesKeyword(s string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, k := range c.keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// reasonFor prefers explicit reason text, then the disposition refinement for
// negative rows, then the raw disposition or event type, then the fallback.
func reasonFor(row ingest.CanonicalRow, negative bool) string {
	if r := strings.TrimSpace(row.Reason); r != "" {
		return r
	}
	disposition := strings.TrimSpace(row.Disposition)
	eventType := strings.TrimSpace(row.EventType)
	if negative {
		switch {
		case strings.EqualFold(disposition, constants.DispositionSellable):
			return constants.ReasonLostInventory
		case disposition != "":
			return constants.ReasonDamagedInventory
		case strings.EqualFold(eventType, constants.EventTypeAdjustments):
			return constants.ReasonUnexplainedLoss
		}
	}
	if disposition != "" {
		return disposition
	}
	if eventType != "" {
		return eventType
	}
	return constants.ReasonFallback
}
