package openai

import (
	"context"
	"errors"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/order-analyzer/internal/common"
	"github.com/joseph-ayodele/order-analyzer/internal/llm"
)

// Send issues one chat completion with the prompt as the only user message.
func (c *Client) Send(ctx context.Context, req llm.Request) (string, error) {
	if c.cfg.APIKey == "" {
		return "", llm.MissingCredentials(providerName, "OPENAI_API_KEY")
	}
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		ce := classify(err)
		c.logger.Warn("llm.openai.error",
			"req_id", rid,
			"status", ce.Status,
			"reason", ce.Reason,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", ce
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &llm.CompletionError{
			Provider: providerName,
			Class:    llm.ClassTransient,
			Reason:   llm.ReasonEmpty,
			Cause:    errors.New("no choices in response"),
		}
	}

	c.logger.Debug("llm.openai.ok",
		"req_id", rid,
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp.Choices[0].Message.Content, nil
}

// classify maps go-openai errors onto the shared failure taxonomy.
func classify(err error) *llm.CompletionError {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return llm.ClassifyStatus(providerName, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return llm.ClassifyStatus(providerName, reqErr.HTTPStatusCode, err)
	}
	return llm.ClassifyTransport(providerName, err)
}
