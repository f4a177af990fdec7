// Package bootstrap turns a Config into the concrete collaborators both
// entrypoints share.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/abearman/mindful-sub000/api"
	"github.com/abearman/mindful-sub000/api/cors"
	"github.com/abearman/mindful-sub000/broker/membroker"
	brokerredis "github.com/abearman/mindful-sub000/broker/redis"
	"github.com/abearman/mindful-sub000/config"
	"github.com/abearman/mindful-sub000/keys/kmskeys"
	"github.com/abearman/mindful-sub000/keys/localkeys"
	"github.com/abearman/mindful-sub000/mq/sqsmq"
	"github.com/abearman/mindful-sub000/store/dynamo"
	"github.com/abearman/mindful-sub000/store/memstore"
	"github.com/abearman/mindful-sub000/store/s3store"
	"go.uber.org/zap"
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.DevMode() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Options builds api.Options from cfg. withQueue controls whether the
// account purge queue is attached.
func Options(ctx context.Context, cfg *config.Config, logger *zap.Logger, withQueue bool) (api.Options, error) {
	devMode := cfg.DevMode()

	jwtSecret, err := cfg.JWTSecretBytes()
	if err != nil {
		return api.Options{}, fmt.Errorf("decode JWT_SECRET: %w", err)
	}

	opts := api.Options{
		CorsPolicy: cors.NewPolicy(cfg.AllowedExtensionIds, cfg.AllowedOrigin, !devMode),
		JWTSecret:  jwtSecret,
		JWTIssuer:  cfg.JWTIssuer,
		Timeout:    cfg.RequestTimeout,
		Logger:     logger,
	}

	if devMode && cfg.BucketName == "" {
		logger.Warn("BUCKET_NAME not set; bookmarks are kept in memory")
		opts.Objects = memstore.NewObjectStore()
	} else {
		objects, err := s3store.NewS3ObjectStore(ctx, devMode, cfg.S3Endpoint, cfg.BucketName)
		if err != nil {
			return api.Options{}, fmt.Errorf("create s3 store: %w", err)
		}
		opts.Objects = objects
	}

	if devMode && cfg.DynamoDBEndpoint == "" {
		opts.Prefs = memstore.NewPreferenceStore()
	} else {
		prefs, err := dynamo.NewDynamoPreferenceStore(ctx, devMode, cfg.DynamoDBEndpoint, cfg.PreferencesTable)
		if err != nil {
			return api.Options{}, fmt.Errorf("create dynamodb preference store: %w", err)
		}
		opts.Prefs = prefs
	}

	if cfg.UseLocalKeys() {
		if cfg.LocalMasterKey == "" {
			logger.Warn("using a random local master key; data will not survive a restart")
			opts.Keys = localkeys.NewRandom()
		} else {
			masterKey, _ := cfg.LocalMasterKeyBytes()
			keyService, err := localkeys.New(masterKey)
			if err != nil {
				return api.Options{}, fmt.Errorf("create local key service: %w", err)
			}
			opts.Keys = keyService
		}
	} else {
		keyService, err := kmskeys.NewKMSKeyService(ctx, devMode, cfg.KMSEndpoint, cfg.KMSKeyId)
		if err != nil {
			return api.Options{}, fmt.Errorf("create kms key service: %w", err)
		}
		opts.Keys = keyService
	}

	if cfg.RedisEndpoint != "" {
		b, err := brokerredis.NewRedisBroker(ctx, devMode, cfg.RedisEndpoint, logger.Named("redis"))
		if err != nil {
			return api.Options{}, fmt.Errorf("create redis broker: %w", err)
		}
		opts.Broker = b
	} else {
		opts.Broker = membroker.New()
	}

	if withQueue && cfg.AccountDeletedQueue != "" {
		queue, err := sqsmq.NewSQSMessageQueue(ctx, devMode, cfg.SQSEndpoint, cfg.AccountDeletedQueue)
		if err != nil {
			return api.Options{}, fmt.Errorf("create SQS queue: %w", err)
		}
		opts.PurgeQueue = queue
	}

	return opts, nil
}
