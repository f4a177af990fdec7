package service

import (
	"errors"

	"github.com/abearman/mindful-sub000/aesgcm"
	"github.com/abearman/mindful-sub000/envelope"
	"github.com/abearman/mindful-sub000/keys"
	"github.com/abearman/mindful-sub000/models"
	"github.com/abearman/mindful-sub000/store"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrMissingLegacyKey   = errors.New("legacy key object missing")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInternal           = errors.New("internal error")
)

// ErrorCode is the single structured detail passed to callers on failure.
type ErrorCode string

const (
	CodeUnauthorized            ErrorCode = "Unauthorized"
	CodeForbidden               ErrorCode = "Forbidden"
	CodeBadRequest              ErrorCode = "BadRequest"
	CodeMalformedEnvelope       ErrorCode = "MalformedEnvelope"
	CodeInvalidCryptoParameters ErrorCode = "InvalidCryptoParameters"
	CodeAuthTagMismatch         ErrorCode = "AuthTagMismatch"
	CodeKeyServiceUnavailable   ErrorCode = "KeyServiceUnavailable"
	CodeKeyGenerationFailed     ErrorCode = "KeyGenerationFailed"
	CodeKeyUnwrapFailed         ErrorCode = "KeyUnwrapFailed"
	CodeMissingLegacyKey        ErrorCode = "MissingLegacyKey"
	CodeStorageUnavailable      ErrorCode = "StorageUnavailable"
	CodeInternalError           ErrorCode = "InternalError"
)

var codeTable = []struct {
	target error
	code   ErrorCode
}{
	{ErrUnauthorized, CodeUnauthorized},
	{store.ErrInvalidUserId, CodeUnauthorized},
	{ErrForbidden, CodeForbidden},
	{ErrBadRequest, CodeBadRequest},
	{models.ErrInvalidGroups, CodeBadRequest},
	{models.ErrInvalidStorageType, CodeBadRequest},
	{aesgcm.ErrAuthTagMismatch, CodeAuthTagMismatch},
	{aesgcm.ErrInvalidCryptoParameters, CodeInvalidCryptoParameters},
	{envelope.ErrMalformedEnvelope, CodeMalformedEnvelope},
	{keys.ErrKeyGenerationFailed, CodeKeyGenerationFailed},
	{keys.ErrKeyUnwrapFailed, CodeKeyUnwrapFailed},
	{keys.ErrKeyServiceUnavailable, CodeKeyServiceUnavailable},
	{ErrMissingLegacyKey, CodeMissingLegacyKey},
	{ErrStorageUnavailable, CodeStorageUnavailable},
}

// CodeOf maps an error from anywhere in the pipeline to its code. Anything
// unrecognised, including a timeout, is an internal error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, c := range codeTable {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return CodeInternalError
}

// Retryable reports whether a client may retry the same request with backoff.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeUnauthorized, CodeForbidden, CodeBadRequest, CodeAuthTagMismatch:
		return false
	}
	return true
}
