package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/llm"
)

const (
	providerName = "anthropic"
	defaultModel = "claude-3-5-sonnet-20241022"
)

// Config for the Anthropic Messages API.
type Config struct {
	APIKey  string // required; ANTHROPIC_API_KEY
	BaseURL string // empty = SDK default
	Model   string // default claude-3-5-sonnet-20241022
}

// Client implements llm.Provider over the Messages API.
type Client struct {
	cfg    Config
	api    sdk.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	// llm.Client owns retries; deadlines come from the caller's context
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &Client{cfg: cfg, api: sdk.NewClient(opts...), logger: logger}
}

func (c *Client) Name() string { return providerName }

func (c *Client) DefaultModel() string { return c.cfg.Model }

// Send performs one Messages call with the prompt as the only user turn.
func (c *Client) Send(ctx context.Context, req llm.Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", llm.MissingCredentials(providerName, "ANTHROPIC_API_KEY")
	}
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	msg, err := c.api.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: sdk.Float(float64(req.Temperature)),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		ce := classify(err)
		c.logger.Warn("llm.anthropic.failed",
			"req_id", rid,
			"status", ce.Status,
			"reason", ce.Reason,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", ce
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", &llm.CompletionError{
			Provider: providerName, Status: 200,
			Class: llm.ClassTransient, Reason: llm.ReasonEmpty,
			Cause: errors.New("no text content in response"),
		}
	}

	c.logger.Debug("llm.anthropic.ok",
		"req_id", rid,
		"model", model,
		"stop_reason", string(msg.StopReason),
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b.String(), nil
}

// classify maps SDK errors onto the shared failure taxonomy.
func classify(err error) *llm.CompletionError {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return llm.ClassifyStatus(providerName, apiErr.StatusCode, err)
	}
	return llm.ClassifyTransport(providerName, err)
}
