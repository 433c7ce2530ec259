package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorClass tells callers whether resubmitting the same request can succeed.
type ErrorClass string

const (
	ClassTransient ErrorClass = "transient"
	ClassTerminal  ErrorClass = "terminal"
)

// Failure reasons carried by CompletionError.
const (
	ReasonAuth       = "auth"
	ReasonConfig     = "config"
	ReasonRateLimit  = "rate_limit"
	ReasonServer     = "server"
	ReasonNetwork    = "network"
	ReasonTimeout    = "timeout"
	ReasonCanceled   = "canceled"
	ReasonBadRequest = "bad_request"
	ReasonEmpty      = "empty_response"
)

// CompletionError is the only error type a Provider or the Client returns.
type CompletionError struct {
	Provider string
	Status   int // HTTP or HTTP-equivalent status; 0 when no response was received
	Class    ErrorClass
	Reason   string
	Cause    error
}

func (e *CompletionError) Error() string {
	msg := fmt.Sprintf("%s completion failed (%s, %s", e.Provider, e.Class, e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(", status %d", e.Status)
	}
	msg += ")"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CompletionError) Unwrap() error { return e.Cause }

func (e *CompletionError) Transient() bool { return e.Class == ClassTransient }

// latches reports whether this failure must stop all later calls on the same
// client: credentials and configuration do not fix themselves.
func (e *CompletionError) latches() bool {
	return e.Class == ClassTerminal && (e.Reason == ReasonAuth || e.Reason == ReasonConfig)
}

// ClassifyStatus maps a provider response status onto a CompletionError.
func ClassifyStatus(provider string, status int, cause error) *CompletionError {
	ce := &CompletionError{Provider: provider, Status: status, Cause: cause}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		ce.Class, ce.Reason = ClassTerminal, ReasonAuth
	case status == http.StatusTooManyRequests:
		ce.Class, ce.Reason = ClassTransient, ReasonRateLimit
	case status == http.StatusRequestTimeout:
		ce.Class, ce.Reason = ClassTransient, ReasonTimeout
	case status >= 500:
		ce.Class, ce.Reason = ClassTransient, ReasonServer
	case status >= 400:
		ce.Class, ce.Reason = ClassTerminal, ReasonBadRequest
	default:
		ce.Class, ce.Reason = ClassTransient, ReasonNetwork
	}
	return ce
}

// ClassifyTransport maps an error raised before any response arrived.
func ClassifyTransport(provider string, err error) *CompletionError {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce
	}
	out := &CompletionError{Provider: provider, Class: ClassTransient, Reason: ReasonNetwork, Cause: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		out.Reason = ReasonTimeout
	case errors.Is(err, context.Canceled):
		out.Reason = ReasonCanceled
	}
	return out
}

// MissingCredentials is returned by providers constructed without a key.
func MissingCredentials(provider, envVar string) *CompletionError {
	return &CompletionError{
		Provider: provider,
		Class:    ClassTerminal,
		Reason:   ReasonConfig,
		Cause:    fmt.Errorf("%s is not set", envVar),
	}
}

// MalformedResponseError means the completion text could not be turned into
// the expected document. Raw holds the unmodified model reply.
type MalformedResponseError struct {
	Raw    string
	Reason string
	Cause  error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed model response: %s: %v", e.Reason, e.Cause)
	}
	return "malformed model response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Cause }
