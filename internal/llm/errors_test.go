package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"authentication", NewProviderError(ErrCodeAuthentication, "bad key", nil), ClassFatal},
		{"invalid request", NewProviderError(ErrCodeInvalidRequest, "bad field", nil), ClassFatal},
		{"model not found", NewProviderError(ErrCodeModelNotFound, "no model", nil), ClassFatal},
		{"context length", NewProviderError(ErrCodeContextLength, "too long", nil), ClassContextOverflow},
		{"rate limit", NewProviderError(ErrCodeRateLimit, "slow down", nil), ClassRetryable},
		{"server", NewProviderError(ErrCodeServerError, "boom", nil), ClassRetryable},
		{"timeout", NewProviderError(ErrCodeTimeout, "slow", nil), ClassRetryable},
		{"unknown", errors.New("connection reset"), ClassRetryable},
		{"wrapped", fmt.Errorf("send: %w", NewProviderError(ErrCodeAuthentication, "bad key", nil)), ClassFatal},
		{"cancelled", context.Canceled, ClassFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := NewProviderError(ErrCodeServerError, "openai request failed", inner)

	assert.Equal(t, "openai request failed: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "bare", NewProviderError(ErrCodeTimeout, "bare", nil).Error())
}

func TestMapErrorDeadline(t *testing.T) {
	assert.True(t, IsTimeoutError(mapError(context.DeadlineExceeded)))
	assert.ErrorIs(t, mapError(context.Canceled), context.Canceled)
	assert.True(t, IsServerError(mapError(errors.New("no such host"))))
}
