package keys

import (
	"context"
	"errors"
)

var (
	ErrKeyServiceUnavailable = errors.New("key service unavailable")
	ErrKeyGenerationFailed   = errors.New("key generation failed")
	ErrKeyUnwrapFailed       = errors.New("key unwrap failed")
)

// ContextKeyUserId is the encryption context entry every data key is bound to.
const ContextKeyUserId = "userId"

// DataKey is a fresh 32-byte data key and its wrapped form.
type DataKey struct {
	Plaintext []byte
	Wrapped   []byte
}

type KeyService interface {
	GenerateDataKey(ctx context.Context, userId string) (DataKey, error)
	UnwrapKey(ctx context.Context, wrapped []byte, userId string) ([]byte, error)
}

func EncryptionContext(userId string) map[string]string {
	return map[string]string{ContextKeyUserId: userId}
}
