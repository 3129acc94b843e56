package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
)

// synonyms lists keys models commonly emit, in priority order. When several
// synonyms of one field are present the first listed wins.
var synonyms = []struct{ from, to string }{
	{"claim_reason", "claimReason"},
	{"qty", "quantity"},
	{"units", "quantity"},
	{"estimated_value", "estimatedValue"},
	{"value", "estimatedValue"},
	{"amount", "estimatedValue"},
	{"amazon_transaction_id", "amazonTransactionId"},
	{"transaction_id", "amazonTransactionId"},
	{"seller_sku", "sku"},
}

// NormalizeCandidates decodes the claims envelope and renames known synonyms so
// the validator sees canonical keys. Existing canonical keys are never
// overwritten. Items that are not objects are passed through for the validator
// to drop.
func NormalizeCandidates(envelope []byte, logger *slog.Logger) ([]any, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dec := json.NewDecoder(bytes.NewReader(envelope))
	dec.UseNumber()
	var doc struct {
		Claims []any `json:"claims"`
	}
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var renamed []string
	for _, item := range doc.Claims {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, syn := range synonyms {
			v, ok := m[syn.from]
			if !ok {
				continue
			}
			if _, exists := m[syn.to]; !exists {
				m[syn.to] = v
			}
			delete(m, syn.from)
			renamed = append(renamed, syn.from+"->"+syn.to)
		}
	}
	if len(renamed) > 0 {
		logger.Warn("llm.classify.normalize_sanitize", "renamed", renamed)
	}
	if doc.Claims == nil {
		doc.Claims = []any{}
	}
	return doc.Claims, renamed, nil
}
