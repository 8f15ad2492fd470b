package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	base := New(KindQuotaExceeded, "daily token limit exceeded")
	wrapped := fmt.Errorf("chat turn: %w", base)

	assert.Equal(t, KindQuotaExceeded, KindOf(wrapped))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("connection refused")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestIsRetryable(t *testing.T) {
	transient := Transient(errors.New("dial tcp: timeout"), "ollama unreachable")
	rejected := New(KindInvalidModel, "unknown model %q", "gpt-99")

	assert.True(t, IsRetryable(fmt.Errorf("generate: %w", transient)))
	assert.False(t, IsRetryable(rejected))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindQuestionTooLong, http.StatusBadRequest},
		{KindPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{KindUnsupportedFormat, http.StatusUnsupportedMediaType},
		{KindQuotaExceeded, http.StatusTooManyRequests},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindProvider, http.StatusBadGateway},
		{KindModelNotPulled, http.StatusBadGateway},
		{KindDimensionMismatch, http.StatusBadRequest},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, HTTPStatus(New(tt.kind, "boom")), string(tt.kind))
	}
}

func TestUserMessageHidesInternals(t *testing.T) {
	internal := Wrap(KindInternal, errors.New("pq: deadlock detected"), "persist message")
	provider := Transient(errors.New("401 invalid api key sk-abc"), "openai chat")
	quota := New(KindQuotaExceeded, "daily token limit exceeded (50,000 tokens/day)")

	assert.NotContains(t, UserMessage(internal), "deadlock")
	assert.NotContains(t, UserMessage(provider), "sk-abc")
	assert.Equal(t, "daily token limit exceeded (50,000 tokens/day)", UserMessage(quota))
}
