package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. Each pipeline failure is reported under exactly one of these.
const (
	CodeUpload              = "UPLOAD_ERROR"
	CodeExtraction          = "EXTRACTION_ERROR"
	CodeEmptyContent        = "EMPTY_CONTENT"
	CodeCompletionTransient = "COMPLETION_TRANSIENT"
	CodeCompletionTerminal  = "COMPLETION_TERMINAL"
	CodeMalformedResponse   = "MALFORMED_RESPONSE"
	CodeConfig              = "CONFIG_ERROR"
	CodeInternal            = "INTERNAL"
)

// AppError represents application-specific errors.
// Message is safe to show to a client; Details carries diagnostics.
type AppError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrInvalidInput is the cause carried by configuration failures.
var ErrInvalidInput = errors.New("invalid input")

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewAppErrorWithDetails(code, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// CodeOf returns the AppError code carried by err, or CodeInternal.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsClientError reports whether the failure was caused by the submitted document.
func IsClientError(code string) bool {
	switch code {
	case CodeUpload, CodeExtraction, CodeEmptyContent:
		return true
	}
	return false
}

// HTTPStatus maps an error onto a response status: 400 for client-caused
// conditions, 500 for everything else.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsClientError(CodeOf(err)) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Describe splits err into the client-facing summary and the diagnostic detail.
func Describe(err error) (summary, details string) {
	var ae *AppError
	if errors.As(err, &ae) {
		details = ae.Details
		if details == "" && ae.Cause != nil {
			details = ae.Cause.Error()
		}
		return ae.Message, details
	}
	return "Internal server error", err.Error()
}
