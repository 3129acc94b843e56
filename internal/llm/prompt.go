package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// maxPromptRowsBytes bounds the serialized rows embedded in one user message.
const maxPromptRowsBytes = 60_000

// PromptVersion changes whenever the prompts change shape; cached answers are keyed by it.
const PromptVersion = "claims-v1"

// BuildSystemPrompt states the task, the output contract and the valuation rules.
func BuildSystemPrompt(req ClassifyRequest) string {
	unit := strings.TrimSpace(req.UnitValue)
	if unit == "" {
		unit = "8.50"
	}
	limit := req.MaxClaims
	if limit <= 0 {
		limit = 50
	}

	parts := []string{
		"You are an inventory reimbursement auditor for a marketplace seller.",
		"You receive normalized inventory-adjustment rows and return ONLY JSON that matches the provided JSON Schema.",
		"Return an object with a single key 'claims' whose value is an array; return an empty array when nothing qualifies.",
		"A row qualifies when units were lost, damaged, destroyed, disposed, misplaced, not returned, or removed by an unexplained adjustment.",
		"Use the row's sku verbatim. Express quantity as a positive whole number of units.",
		"Set estimatedValue to quantity times the row's estimatedValue per unit when given, otherwise quantity times " + unit + ".",
		"Write a short claimReason (a few words) naming the loss type.",
		"Copy amazonTransactionId from the row when present.",
		"Emit at most " + strconv.Itoa(limit) + " claims, in the order the rows appear.",
		"Never output null. If a field is not known, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt embeds the rows as JSON, truncated at a row boundary when large.
func BuildUserPrompt(req ClassifyRequest) string {
	var b strings.Builder
	if s := strings.TrimSpace(req.Source); s != "" {
		b.WriteString("Source file: ")
		b.WriteString(s)
		b.WriteString("\n")
	}

	rows, included := encodeRows(req.Rows, maxPromptRowsBytes)
	b.WriteString("Rows (")
	b.WriteString(strconv.Itoa(included))
	b.WriteString(" of ")
	b.WriteString(strconv.Itoa(len(req.Rows)))
	b.WriteString("):\n")
	b.WriteString(rows)
	return b.String()
}

// encodeRows serializes as many whole rows as fit in limit bytes.
func encodeRows(rows []map[string]any, limit int) (string, int) {
	var b strings.Builder
	b.WriteString("[")
	n := 0
	for _, r := range rows {
		enc, err := json.Marshal(r)
		if err != nil {
			continue
		}
		if n > 0 && b.Len()+len(enc)+2 > limit {
			break
		}
		if n > 0 {
			b.WriteString(",")
		}
		b.Write(enc)
		n++
	}
	b.WriteString("]")
	return b.String(), n
}
