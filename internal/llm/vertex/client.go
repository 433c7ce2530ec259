package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/llm"
)

const (
	providerName  = "vertex"
	defaultModel  = "gemini-1.5-pro"
	defaultRegion = "europe-west1"
)

// Config for Gemini on Vertex AI. Credentials come from ADC unless
// CredentialsFile is set.
type Config struct {
	ProjectID       string
	Region          string
	Model           string
	CredentialsFile string
}

// Client implements llm.Provider with the Vertex AI genai SDK.
type Client struct {
	cfg    Config
	base   *genai.Client
	logger *slog.Logger
}

// NewClient dials Vertex AI. A missing project id is reported on the first
// Send as a configuration failure so that the caller's latch sees it.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{cfg: cfg, logger: logger}
	if cfg.ProjectID == "" {
		return c, nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	c.base = base
	return c, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) DefaultModel() string { return c.cfg.Model }

// Send runs one GenerateContent call with the prompt as a single text part.
func (c *Client) Send(ctx context.Context, req llm.Request) (string, error) {
	if c.base == nil {
		return "", llm.MissingCredentials(providerName, "VERTEX_PROJECT_ID")
	}
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	name := req.Model
	if name == "" {
		name = c.cfg.Model
	}
	model := c.base.GenerativeModel(name)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: genai.Ptr(int32(req.MaxTokens)),
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		ce := classify(err)
		c.logger.Warn("llm.vertex.error",
			"req_id", rid,
			"reason", ce.Reason,
			"status", ce.Status,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", ce
	}

	text := responseText(resp)
	if text == "" {
		return "", &llm.CompletionError{
			Provider: providerName,
			Class:    llm.ClassTransient,
			Reason:   llm.ReasonEmpty,
			Cause:    errors.New("no text parts in response"),
		}
	}
	c.logger.Debug("llm.vertex.ok",
		"req_id", rid,
		"model", name,
		"bytes", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// classify maps gRPC status codes onto HTTP-equivalent statuses so the shared
// taxonomy applies unchanged.
func classify(err error) *llm.CompletionError {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return llm.ClassifyStatus(providerName, http.StatusBadRequest, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.ClassifyTransport(providerName, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return llm.ClassifyTransport(providerName, err)
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return llm.ClassifyStatus(providerName, http.StatusUnauthorized, err)
	case codes.PermissionDenied:
		return llm.ClassifyStatus(providerName, http.StatusForbidden, err)
	case codes.ResourceExhausted:
		return llm.ClassifyStatus(providerName, http.StatusTooManyRequests, err)
	case codes.DeadlineExceeded:
		return llm.ClassifyStatus(providerName, http.StatusRequestTimeout, err)
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.OutOfRange:
		return llm.ClassifyStatus(providerName, http.StatusBadRequest, err)
	case codes.Unavailable, codes.Internal, codes.Unknown, codes.Aborted, codes.DataLoss:
		return llm.ClassifyStatus(providerName, http.StatusServiceUnavailable, err)
	default:
		return llm.ClassifyTransport(providerName, err)
	}
}
