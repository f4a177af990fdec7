package kmskeys

import (
	"context"
	"errors"
	"fmt"

	"github.com/abearman/mindful-sub000/keys"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"
)

const dataKeySize = 32

func newKMSClient(ctx context.Context, devMode bool, kmsEndpoint string) (*kms.Client, error) {
	var cfg aws.Config
	var err error

	if devMode {
		// LocalStack accepts any static credentials
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("dummy", "dummy", ""),
			),
		)
		if err != nil {
			return nil, err
		}

		return kms.NewFromConfig(cfg, func(o *kms.Options) {
			if kmsEndpoint != "" {
				o.BaseEndpoint = aws.String(kmsEndpoint)
			}
		}), nil
	}

	cfg, err = config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return kms.NewFromConfig(cfg), nil
}

// rejectedCodes are KMS error codes meaning the ciphertext will never unwrap
// for this caller, as opposed to a transient service problem.
var rejectedCodes = map[string]struct{}{
	"InvalidCiphertextException": {},
	"IncorrectKeyException":      {},
	"AccessDeniedException":      {},
	"DisabledException":          {},
	"KMSInvalidStateException":   {},
	"InvalidKeyUsageException":   {},
	"NotFoundException":          {},
}

func classifyDecryptError(err error) error {
	var invalid *types.InvalidCiphertextException
	if errors.As(err, &invalid) {
		return fmt.Errorf("%w: %v", keys.ErrKeyUnwrapFailed, err)
	}
	var incorrect *types.IncorrectKeyException
	if errors.As(err, &incorrect) {
		return fmt.Errorf("%w: %v", keys.ErrKeyUnwrapFailed, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := rejectedCodes[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%w: %v", keys.ErrKeyUnwrapFailed, err)
		}
	}

	return fmt.Errorf("%w: %v", keys.ErrKeyServiceUnavailable, err)
}
