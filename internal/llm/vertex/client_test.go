package vertex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/order-analyzer/internal/llm"
)

func TestClassifyGRPCCodes(t *testing.T) {
	cases := []struct {
		code   codes.Code
		class  llm.ErrorClass
		reason string
	}{
		{codes.Unauthenticated, llm.ClassTerminal, llm.ReasonAuth},
		{codes.PermissionDenied, llm.ClassTerminal, llm.ReasonAuth},
		{codes.InvalidArgument, llm.ClassTerminal, llm.ReasonBadRequest},
		{codes.ResourceExhausted, llm.ClassTransient, llm.ReasonRateLimit},
		{codes.Unavailable, llm.ClassTransient, llm.ReasonServer},
		{codes.DeadlineExceeded, llm.ClassTransient, llm.ReasonTimeout},
	}
	for _, tc := range cases {
		ce := classify(status.Error(tc.code, "x"))
		assert.Equal(t, tc.class, ce.Class, tc.code.String())
		assert.Equal(t, tc.reason, ce.Reason, tc.code.String())
		assert.Equal(t, providerName, ce.Provider)
	}

	ce := classify(context.Canceled)
	assert.Equal(t, llm.ReasonCanceled, ce.Reason)
	ce = classify(errors.New("dial tcp: connection refused"))
	assert.Equal(t, llm.ReasonNetwork, ce.Reason)
}

func TestSendWithoutProjectIsConfigError(t *testing.T) {
	c, err := NewClient(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultModel, c.DefaultModel())

	_, err = c.Send(context.Background(), llm.Request{Prompt: "x"})
	var ce *llm.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, llm.ClassTerminal, ce.Class)
	assert.Equal(t, llm.ReasonConfig, ce.Reason)
	assert.NoError(t, c.Close())
}
