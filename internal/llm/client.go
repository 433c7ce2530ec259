package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-analyzer/internal/common"
)

// Config for the completion client. Zero values fall back to defaults.
type Config struct {
	Model          string        // empty = provider default
	MaxTokens      int           // output budget, default 4096
	Temperature    float32       // 0..1
	Timeout        time.Duration // per attempt, default 60s
	MaxRetries     int           // retries after the first attempt, default 3; negative disables
	InitialBackoff time.Duration // default 500ms
	MaxBackoff     time.Duration // default 8s
}

// Client wraps a Provider with retries, per-attempt deadlines and a terminal latch.
// Once a call fails on credentials or configuration, every later call on the
// same Client fails with that error without reaching the provider. A new
// Client built from corrected configuration starts clean.
type Client struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger

	terminal atomic.Pointer[CompletionError]
}

func NewClient(p Provider, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = p.DefaultModel()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 8 * time.Second
	}
	return &Client{provider: p, cfg: cfg, logger: logger}
}

func (c *Client) Provider() string { return c.provider.Name() }

func (c *Client) Model() string { return c.cfg.Model }

// Terminal returns the latched failure, or nil while the client is usable.
func (c *Client) Terminal() *CompletionError { return c.terminal.Load() }

// Complete sends prompt to the provider, retrying transient failures with
// exponential backoff. Every returned error is a *CompletionError.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	if latched := c.terminal.Load(); latched != nil {
		c.logger.Warn("llm.complete.latched",
			"req_id", rid,
			"provider", latched.Provider,
			"reason", latched.Reason,
		)
		return "", latched
	}

	start := time.Now()
	req := Request{
		Prompt:      prompt,
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"run_id", common.RunIDFromContext(ctx),
		"provider", c.provider.Name(),
		"model", req.Model,
		"max_tokens", req.MaxTokens,
		"prompt_len", len(prompt),
	)

	var (
		out     string
		attempt int
	)
	op := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		text, err := c.provider.Send(actx, req)
		if err == nil {
			out = text
			return nil
		}
		ce := ClassifyTransport(c.provider.Name(), err)
		if ctx.Err() != nil {
			// the caller gave up; do not retry on its behalf
			return backoff.Permanent(ClassifyTransport(c.provider.Name(), ctx.Err()))
		}
		if !ce.Transient() {
			return backoff.Permanent(ce)
		}
		return ce
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.logger.Warn("llm.complete.retry",
			"req_id", rid,
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	})
	if err != nil {
		ce := ClassifyTransport(c.provider.Name(), err)
		if ce.latches() && c.terminal.CompareAndSwap(nil, ce) {
			c.logger.Error("llm.complete.terminal_latched",
				"req_id", rid,
				"provider", ce.Provider,
				"reason", ce.Reason,
				"status", ce.Status,
			)
		}
		c.logger.Error("llm.complete.failed",
			"req_id", rid,
			"attempts", attempt,
			"class", ce.Class,
			"reason", ce.Reason,
			"status", ce.Status,
			"error", errors.Unwrap(ce),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", ce
	}

	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"attempts", attempt,
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
