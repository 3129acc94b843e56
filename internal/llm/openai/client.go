package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theduckverse/refundhunter-backend/internal/common"
	"github.com/theduckverse/refundhunter-backend/internal/llm"
)

var _ llm.ClaimClassifier = (*Client)(nil)

// Classify implements llm.ClaimClassifier using JSON-mode chat/completions. The
// returned payload is the decoded claims array; it is still untrusted.
func (c *Client) Classify(ctx context.Context, req llm.ClassifyRequest) (any, []byte, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
		ctx = common.WithRequestID(ctx, rid)
	}
	start := time.Now()
	runID := common.RunIDFromContext(ctx)

	c.logger.Info("llm.classify.start",
		"req_id", rid,
		"run_id", runID,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"rows", len(req.Rows),
		"max_claims", req.MaxClaims,
	)

	envelope := llm.BuildResponseJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema of the response:\n" + mustJSON(envelope) +
				"\nEach item of 'claims' must match:\n" + mustJSON(llm.BuildClaimSetJSONSchema()["items"])},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("llm.classify.http_error",
			"req_id", rid, "err", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, raw, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.classify.decode_error",
			"req_id", rid, "err", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.classify.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, raw, errors.New("no choices in openai response")
	}

	doc, err := llm.ExtractEnvelope(cc.Choices[0].Message.Content)
	if err != nil {
		c.logger.Error("llm.classify.no_json",
			"req_id", rid, "content_len", len(cc.Choices[0].Message.Content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, raw, err
	}
	if err := llm.ValidateJSONAgainstSchema(envelope, doc); err != nil {
		c.logger.Error("llm.classify.schema_validation_failed",
			"req_id", rid, "run_id", runID, "err", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, doc, fmt.Errorf("schema validation failed: %w", err)
	}

	candidates, _, err := llm.NormalizeCandidates(doc, c.logger)
	if err != nil {
		return nil, doc, err
	}

	c.logger.Info("llm.classify.ok",
		"req_id", rid,
		"run_id", runID,
		"candidates", len(candidates),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return candidates, doc, nil
}

// post sends one request, waiting on the rate limiter and retrying throttled or
// failed upstream replies with linear backoff.
func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		raw, _, err := llm.SendJSON(ctx, c.http, url, body, headers, c.logger)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		var se *llm.StatusError
		if !errors.As(err, &se) || !se.Retryable() {
			return raw, err
		}
		c.logger.Warn("llm.classify.retry", "attempt", attempt+1, "status", se.Status)
	}
	return nil, fmt.Errorf("openai: giving up after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
