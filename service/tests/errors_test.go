package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/abearman/mindful-sub000/aesgcm"
	"github.com/abearman/mindful-sub000/envelope"
	"github.com/abearman/mindful-sub000/keys"
	"github.com/abearman/mindful-sub000/service"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		code service.ErrorCode
	}{
		{service.ErrUnauthorized, service.CodeUnauthorized},
		{service.ErrForbidden, service.CodeForbidden},
		{fmt.Errorf("wrapped: %w", service.ErrBadRequest), service.CodeBadRequest},
		{envelope.ErrMalformedEnvelope, service.CodeMalformedEnvelope},
		{aesgcm.ErrInvalidCryptoParameters, service.CodeInvalidCryptoParameters},
		{aesgcm.ErrAuthTagMismatch, service.CodeAuthTagMismatch},
		{keys.ErrKeyServiceUnavailable, service.CodeKeyServiceUnavailable},
		{keys.ErrKeyGenerationFailed, service.CodeKeyGenerationFailed},
		{keys.ErrKeyUnwrapFailed, service.CodeKeyUnwrapFailed},
		{service.ErrMissingLegacyKey, service.CodeMissingLegacyKey},
		{service.ErrStorageUnavailable, service.CodeStorageUnavailable},
		{context.DeadlineExceeded, service.CodeInternalError},
		{errors.New("something else"), service.CodeInternalError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, service.CodeOf(tt.err), "error %v", tt.err)
	}
	assert.Equal(t, service.ErrorCode(""), service.CodeOf(nil))
}

func TestRetryable(t *testing.T) {
	assert.False(t, service.CodeUnauthorized.Retryable())
	assert.False(t, service.CodeForbidden.Retryable())
	assert.False(t, service.CodeBadRequest.Retryable())
	assert.False(t, service.CodeAuthTagMismatch.Retryable())
	assert.True(t, service.CodeKeyServiceUnavailable.Retryable())
	assert.True(t, service.CodeInternalError.Retryable())
}
