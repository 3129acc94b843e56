package llm

import "context"

// ClassifyRequest is the batch handed to the external claim classifier.
type ClassifyRequest struct {
	// Rows are normalized rows rendered as plain records (sku, quantity, reason,
	// estimatedValue when precomputed, amazonTransactionId).
	Rows      []map[string]any
	UnitValue string // per-unit fallback valuation, e.g. "8.50"
	MaxClaims int
	Source    string // file name hint, may be empty
}

// ClaimClassifier is the external inference collaborator. The payload it returns
// is untrusted and must go through the claim validator; raw is the response
// document of the form {"claims": [...]}. An error means the call failed or its
// output was unusable; it is never reported as "no claims".
type ClaimClassifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (payload any, raw []byte, err error)
}
