package llm

// BuildClaimSetJSONSchema returns the JSON-Schema of a validated claim set. We pass
// it to the model as the output constraint and use it to check our own responses.
func BuildClaimSetJSONSchema() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"sku":                 map[string]any{"type": "string", "minLength": 1},
				"claimReason":         map[string]any{"type": "string", "minLength": 1},
				"quantity":            map[string]any{"type": "integer", "minimum": 1},
				"estimatedValue":      map[string]any{"type": "number", "exclusiveMinimum": 0},
				"amazonTransactionId": map[string]any{"type": "string", "minLength": 1},
			},
			"required": []string{"sku", "claimReason", "quantity", "estimatedValue", "amazonTransactionId"},
		},
	}
}

// BuildResponseJSONSchema is the envelope the model must return. Items are left
// unconstrained; per-claim checks belong to the claim validator so one bad item
// does not sink the batch.
func BuildResponseJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"claims": map[string]any{
				"type":  "array",
				"items": map[string]any{},
			},
		},
		"required": []string{"claims"},
	}
}
