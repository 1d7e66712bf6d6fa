package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTypeUnwraps(t *testing.T) {
	base := New(ErrorTypeRateLimit, 429, "slow down")
	wrapped := fmt.Errorf("reply failed: %w", base)

	assert.True(t, IsRateLimit(wrapped))
	assert.False(t, IsServerError(wrapped))
	assert.False(t, IsRateLimit(fmt.Errorf("plain")))
	assert.Equal(t, "rate_limit error (code 429): slow down", base.Error())
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{429, ErrorTypeRateLimit},
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{404, ErrorTypeNotFound},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FromStatus(tt.code), "status %d", tt.code)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeParsing))
	assert.True(t, IsRetryable(FromStatus(502)))
	assert.False(t, IsRetryable(FromStatus(404)))
}
