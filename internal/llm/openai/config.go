package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// Config for the OpenAI client.
type Config struct {
	APIKey            string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL           string        // default https://api.openai.com/v1
	Model             string        // e.g., "gpt-4o-mini"
	Temperature       float32       // 0..2
	Timeout           time.Duration // http client timeout
	RequestsPerSecond float64       // client-side rate limit; <= 0 disables it
	MaxRetries        int           // retries on 429/5xx
	RetryBackoff      time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}
}

// WithHTTPClient swaps the transport, e.g. for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}
