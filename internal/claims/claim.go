// Package claims turns untrusted candidate records into schema-conformant claims.
package claims

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Claim is a validated reimbursement record. Every field constraint holds for
// any Claim returned by Validator.
type Claim struct {
	SKU            string          `json:"sku"`
	ClaimReason    string          `json:"claimReason"`
	Quantity       int64           `json:"quantity"`
	EstimatedValue decimal.Decimal `json:"estimatedValue"`
	TransactionID  string          `json:"amazonTransactionId"`
}

// MarshalJSON writes estimatedValue as a number with exactly two decimals.
func (c Claim) MarshalJSON() ([]byte, error) {
	type wire struct {
		SKU            string      `json:"sku"`
		ClaimReason    string      `json:"claimReason"`
		Quantity       int64       `json:"quantity"`
		EstimatedValue json.Number `json:"estimatedValue"`
		TransactionID  string      `json:"amazonTransactionId"`
	}
	return json.Marshal(wire{
		SKU:            c.SKU,
		ClaimReason:    c.ClaimReason,
		Quantity:       c.Quantity,
		EstimatedValue: json.Number(c.EstimatedValue.StringFixed(2)),
		TransactionID:  c.TransactionID,
	})
}

// Record renders the claim as a plain candidate record.
func (c Claim) Record() map[string]any {
	return map[string]any{
		"sku":                 c.SKU,
		"claimReason":         c.ClaimReason,
		"quantity":            c.Quantity,
		"estimatedValue":      json.Number(c.EstimatedValue.StringFixed(2)),
		"amazonTransactionId": c.TransactionID,
	}
}
