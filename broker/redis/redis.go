package redis

import (
	"context"
	"crypto/tls"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisBroker struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewRedisBroker(ctx context.Context, devMode bool, redisEndpoint string, logger *zap.Logger) (*RedisBroker, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewWithClient(client, logger), nil
}

func NewWithClient(client redis.UniversalClient, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, message []byte) error {
	return b.client.Publish(ctx, channel, message).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := b.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.logger.Warn("pubsub channel closed", zap.String("channel", channel))
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
