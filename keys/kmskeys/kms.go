package kmskeys

import (
	"context"
	"errors"
	"fmt"

	"github.com/abearman/mindful-sub000/keys"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// KMSClient is the subset of the KMS API the key service calls.
type KMSClient interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

type KMSKeyService struct {
	client KMSClient
	keyId  string
}

func NewKMSKeyService(ctx context.Context, devMode bool, kmsEndpoint string, keyId string) (*KMSKeyService, error) {
	if keyId == "" {
		return nil, errors.New("kms key id is required")
	}
	client, err := newKMSClient(ctx, devMode, kmsEndpoint)
	if err != nil {
		return nil, err
	}
	return &KMSKeyService{client: client, keyId: keyId}, nil
}

func NewWithClient(client KMSClient, keyId string) *KMSKeyService {
	return &KMSKeyService{client: client, keyId: keyId}
}

func (s *KMSKeyService) GenerateDataKey(ctx context.Context, userId string) (keys.DataKey, error) {
	out, err := s.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:             aws.String(s.keyId),
		KeySpec:           types.DataKeySpecAes256,
		EncryptionContext: keys.EncryptionContext(userId),
	})
	if err != nil {
		return keys.DataKey{}, fmt.Errorf("%w: %v", keys.ErrKeyServiceUnavailable, err)
	}
	if out == nil || len(out.Plaintext) == 0 || len(out.CiphertextBlob) == 0 {
		return keys.DataKey{}, keys.ErrKeyGenerationFailed
	}
	if len(out.Plaintext) != dataKeySize {
		return keys.DataKey{}, fmt.Errorf("%w: data key is %d bytes", keys.ErrKeyGenerationFailed, len(out.Plaintext))
	}

	return keys.DataKey{Plaintext: out.Plaintext, Wrapped: out.CiphertextBlob}, nil
}

func (s *KMSKeyService) UnwrapKey(ctx context.Context, wrapped []byte, userId string) ([]byte, error) {
	if len(wrapped) == 0 {
		return nil, fmt.Errorf("%w: empty wrapped key", keys.ErrKeyUnwrapFailed)
	}

	out, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    wrapped,
		KeyId:             aws.String(s.keyId),
		EncryptionContext: keys.EncryptionContext(userId),
	})
	if err != nil {
		return nil, classifyDecryptError(err)
	}
	if out == nil || len(out.Plaintext) != dataKeySize {
		return nil, fmt.Errorf("%w: unexpected plaintext size", keys.ErrKeyUnwrapFailed)
	}

	return out.Plaintext, nil
}
