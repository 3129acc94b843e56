// Package audit totals validated claims and drafts the per-claim messages.
package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"text/template"

	"github.com/shopspring/decimal"

	"github.com/theduckverse/refundhunter-backend/internal/claims"
)

// DefaultMessageTemplate is rendered once per claim.
const DefaultMessageTemplate = `Hello Seller Support, inventory for SKU {{.SKU}} ({{.Quantity}} unit{{if ne .Quantity 1}}s{{end}}) ` +
	`was lost or damaged while in your custody. Transaction reference: {{.TransactionID}}. ` +
	`Please reimburse the estimated value of ${{.Value}} under the inventory reimbursement policy.`

// Message is a human-readable draft aligned by index with Result.Claims.
type Message struct {
	SKU     string `json:"sku"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Result is the audit response payload.
type Result struct {
	Claims              []claims.Claim  `json:"claims"`
	TotalEstimatedValue decimal.Decimal `json:"totalEstimatedValue"`
	Messages            []Message       `json:"messages,omitempty"`
}

// MarshalJSON writes the total as a JSON number.
func (r Result) MarshalJSON() ([]byte, error) {
	type wire struct {
		Claims              []claims.Claim `json:"claims"`
		TotalEstimatedValue json.Number    `json:"totalEstimatedValue"`
		Messages            []Message      `json:"messages,omitempty"`
	}
	cs := r.Claims
	if cs == nil {
		cs = []claims.Claim{}
	}
	return json.Marshal(wire{Claims: cs, TotalEstimatedValue: FormatMoney(r.TotalEstimatedValue), Messages: r.Messages})
}

// FormatMoney renders at least two decimals and never drops precision.
func FormatMoney(d decimal.Decimal) json.Number {
	if d.Exponent() >= -2 {
		return json.Number(d.StringFixed(2))
	}
	return json.Number(d.String())
}

type messageData struct {
	SKU           string
	Reason        string
	Quantity      int64
	Value         string
	TransactionID string
}

// Aggregator sums claims and, when configured with a template, drafts messages.
type Aggregator struct {
	tmpl   *template.Template
	logger *slog.Logger
}

// NewAggregator parses the message template. An empty text disables messages.
func NewAggregator(messageTemplate string, logger *slog.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{logger: logger}
	if messageTemplate == "" {
		return a, nil
	}
	t, err := template.New("claim").Option("missingkey=error").Parse(messageTemplate)
	if err != nil {
		return nil, err
	}
	a.tmpl = t
	return a, nil
}

// Aggregate totals the claims without re-rounding the sum. A message that fails
// to render is left empty; it never affects the claims or the total.
func (a *Aggregator) Aggregate(cs []claims.Claim) Result {
	if cs == nil {
		cs = []claims.Claim{}
	}
	res := Result{Claims: cs, TotalEstimatedValue: Total(cs)}
	if a.tmpl == nil {
		return res
	}

	res.Messages = make([]Message, len(cs))
	var buf bytes.Buffer
	for i, c := range cs {
		res.Messages[i] = Message{SKU: c.SKU, Reason: c.ClaimReason}
		buf.Reset()
		err := a.tmpl.Execute(&buf, messageData{
			SKU:           c.SKU,
			Reason:        c.ClaimReason,
			Quantity:      c.Quantity,
			Value:         c.EstimatedValue.StringFixed(2),
			TransactionID: c.TransactionID,
		})
		if err != nil {
			a.logger.Warn("audit.message.render_failed", "sku", c.SKU, "err", err)
			continue
		}
		res.Messages[i].Message = buf.String()
	}
	return res
}

// Total is the exact sum of the claims' estimated values.
func Total(cs []claims.Claim) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range cs {
		sum = sum.Add(c.EstimatedValue)
	}
	return sum
}
