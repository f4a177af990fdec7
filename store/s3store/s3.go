package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/abearman/mindful-sub000/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client is the subset of the S3 API the object store calls.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type S3ObjectStore struct {
	client S3Client
	bucket string
}

func NewS3ObjectStore(ctx context.Context, devMode bool, s3Endpoint string, bucket string) (*S3ObjectStore, error) {
	client, err := newS3Client(ctx, devMode, s3Endpoint)
	if err != nil {
		return nil, err
	}

	if err := checkBucket(client, ctx, bucket); err != nil {
		return nil, err
	}

	return &S3ObjectStore{client: client, bucket: bucket}, nil
}

func NewWithClient(client S3Client, bucket string) *S3ObjectStore {
	return &S3ObjectStore{client: client, bucket: bucket}
}

func (s3Store *S3ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s3Store.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3Store.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrObjectNotFound
		}
		return nil, fmt.Errorf("GetObject failed: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return body, nil
}

func (s3Store *S3ObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s3Store.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s3Store.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentLength:        aws.Int64(int64(len(body))),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("PutObject failed: %w", err)
	}
	return nil
}

func (s3Store *S3ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s3Store.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s3Store.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("DeleteObject failed: %w", err)
	}
	return nil
}
