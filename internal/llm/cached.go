package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/theduckverse/refundhunter-backend/internal/cache"
)

// CachedClassifier memoizes successful classifier responses by request content.
// Failures are never cached.
type CachedClassifier struct {
	inner     ClaimClassifier
	store     cache.Store
	ttl       time.Duration
	namespace string
	logger    *slog.Logger
}

var _ ClaimClassifier = (*CachedClassifier)(nil)

// NewCachedClassifier wraps inner. namespace should change whenever the prompt or
// model changes so stale answers are not reused.
func NewCachedClassifier(inner ClaimClassifier, store cache.Store, ttl time.Duration, namespace string, logger *slog.Logger) *CachedClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClassifier{inner: inner, store: store, ttl: ttl, namespace: namespace, logger: logger}
}

func (c *CachedClassifier) Classify(ctx context.Context, req ClassifyRequest) (any, []byte, error) {
	key, err := c.key(req)
	if err != nil {
		return c.inner.Classify(ctx, req)
	}

	if doc, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("llm.cache.get_failed", "err", err)
	} else if ok {
		candidates, _, nErr := NormalizeCandidates(doc, c.logger)
		if nErr == nil {
			c.logger.Debug("llm.cache.hit", "key", key, "candidates", len(candidates))
			return candidates, doc, nil
		}
		c.logger.Warn("llm.cache.corrupt_entry", "key", key, "err", nErr)
	}

	payload, raw, err := c.inner.Classify(ctx, req)
	if err != nil {
		return payload, raw, err
	}
	if raw != nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("llm.cache.set_failed", "err", err)
		}
	}
	return payload, raw, nil
}

func (c *CachedClassifier) key(req ClassifyRequest) (string, error) {
	b, err := json.Marshal(struct {
		NS        string           `json:"ns"`
		Rows      []map[string]any `json:"rows"`
		UnitValue string           `json:"unit"`
		MaxClaims int              `json:"max"`
	}{c.namespace, req.Rows, req.UnitValue, req.MaxClaims})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return "classify:" + hex.EncodeToString(sum[:]), nil
}
