package openai

import (
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	providerName = "openai"
	defaultModel = "gpt-4o-mini"
)

// Config for the OpenAI client.
type Config struct {
	APIKey  string // required; OPENAI_API_KEY
	BaseURL string // default https://api.openai.com/v1; any OpenAI-compatible endpoint works
	Model   string // default gpt-4o-mini
}

// Client implements llm.Provider over chat completions.
type Client struct {
	cfg    Config
	api    *goopenai.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		cfg:    cfg,
		api:    goopenai.NewClientWithConfig(apiCfg),
		logger: logger,
	}
}

func (c *Client) Name() string { return providerName }

func (c *Client) DefaultModel() string { return c.cfg.Model }
