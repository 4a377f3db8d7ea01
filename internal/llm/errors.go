package llm

import (
	"context"
	"errors"
)

// Error codes providers map their native failures to.
const (
	ErrCodeAuthentication = "authentication_error"
	ErrCodeRateLimit      = "rate_limit_exceeded"
	ErrCodeModelNotFound  = "model_not_found"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeContextLength  = "context_length_exceeded"
	ErrCodeServerError    = "server_error"
	ErrCodeTimeout        = "timeout"
)

// ProviderError is a typed failure from the LLM service.
type ProviderError struct {
	Code       string // one of the ErrCode* constants
	Message    string
	StatusCode int // HTTP status, 0 when the request never got an answer
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(code, message string, err error) *ProviderError {
	return &ProviderError{Code: code, Message: message, Err: err}
}

func IsAuthenticationError(err error) bool {
	return hasCode(err, ErrCodeAuthentication)
}

func IsRateLimitError(err error) bool {
	return hasCode(err, ErrCodeRateLimit)
}

func IsModelNotFoundError(err error) bool {
	return hasCode(err, ErrCodeModelNotFound)
}

func IsContextLengthError(err error) bool {
	return hasCode(err, ErrCodeContextLength)
}

func IsInvalidRequestError(err error) bool {
	return hasCode(err, ErrCodeInvalidRequest)
}

func IsServerError(err error) bool {
	return hasCode(err, ErrCodeServerError)
}

func IsTimeoutError(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

func hasCode(err error, code string) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == code
}

// Class is how the request loop reacts to a failure.
type Class int

const (
	ClassRetryable Class = iota
	ClassFatal
	ClassContextOverflow
)

func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassFatal:
		return "fatal"
	case ClassContextOverflow:
		return "context_overflow"
	default:
		return "unknown"
	}
}

// Classify maps a Complete failure to a Class. Errors that carry no
// provider code are treated as transient.
func Classify(err error) Class {
	switch {
	case errors.Is(err, context.Canceled):
		return ClassFatal
	case IsContextLengthError(err):
		return ClassContextOverflow
	case IsAuthenticationError(err), IsInvalidRequestError(err), IsModelNotFoundError(err):
		return ClassFatal
	default:
		return ClassRetryable
	}
}
