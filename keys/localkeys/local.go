// Package localkeys is an in-process stand-in for the key management service,
// used in development and tests. Data keys are wrapped under a master key
// held in memory, with the encryption context bound as AAD, so a key wrapped
// for one user does not unwrap for another.
package localkeys

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/abearman/mindful-sub000/aesgcm"
	"github.com/abearman/mindful-sub000/envelope"
	"github.com/abearman/mindful-sub000/keys"
)

type LocalKeyService struct {
	masterKey []byte
}

func New(masterKey []byte) (*LocalKeyService, error) {
	if len(masterKey) != aesgcm.KeySize {
		return nil, fmt.Errorf("master key must be %d bytes", aesgcm.KeySize)
	}
	return &LocalKeyService{masterKey: masterKey}, nil
}

// NewRandom creates a service with a throwaway master key.
func NewRandom() *LocalKeyService {
	mk := make([]byte, aesgcm.KeySize)
	if _, err := io.ReadFull(rand.Reader, mk); err != nil {
		panic(err)
	}
	return &LocalKeyService{masterKey: mk}
}

func contextAAD(userId string) []byte {
	return []byte(keys.ContextKeyUserId + "=" + userId)
}

func (s *LocalKeyService) GenerateDataKey(ctx context.Context, userId string) (keys.DataKey, error) {
	if err := ctx.Err(); err != nil {
		return keys.DataKey{}, fmt.Errorf("%w: %v", keys.ErrKeyServiceUnavailable, err)
	}

	plaintext := make([]byte, aesgcm.KeySize)
	if _, err := io.ReadFull(rand.Reader, plaintext); err != nil {
		return keys.DataKey{}, fmt.Errorf("%w: %v", keys.ErrKeyGenerationFailed, err)
	}

	sealed, err := aesgcm.Encrypt(s.masterKey, plaintext, contextAAD(userId))
	if err != nil {
		return keys.DataKey{}, fmt.Errorf("%w: %v", keys.ErrKeyGenerationFailed, err)
	}

	wrapped := make([]byte, 0, aesgcm.IVSize+aesgcm.TagSize+len(sealed.Data))
	wrapped = append(wrapped, sealed.IV...)
	wrapped = append(wrapped, sealed.Tag...)
	wrapped = append(wrapped, sealed.Data...)

	return keys.DataKey{Plaintext: plaintext, Wrapped: wrapped}, nil
}

func (s *LocalKeyService) UnwrapKey(ctx context.Context, wrapped []byte, userId string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", keys.ErrKeyServiceUnavailable, err)
	}
	if len(wrapped) <= aesgcm.IVSize+aesgcm.TagSize {
		return nil, fmt.Errorf("%w: wrapped key too short", keys.ErrKeyUnwrapFailed)
	}

	sealed := envelope.Sealed{
		IV:   wrapped[:aesgcm.IVSize],
		Tag:  wrapped[aesgcm.IVSize : aesgcm.IVSize+aesgcm.TagSize],
		Data: wrapped[aesgcm.IVSize+aesgcm.TagSize:],
		AAD:  contextAAD(userId),
	}
	plaintext, err := aesgcm.Decrypt(s.masterKey, sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", keys.ErrKeyUnwrapFailed, err)
	}
	return plaintext, nil
}
