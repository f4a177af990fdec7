package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/abearman/mindful-sub000/broker"
	"github.com/abearman/mindful-sub000/mq"
	"go.uber.org/zap"
)

// AccountDeletedMessage is published by the identity provider's deletion
// hook once an account is gone.
type AccountDeletedMessage struct {
	UserId string `json:"userId"`
}

type Purger interface {
	PurgeUser(ctx context.Context, userId string) error
}

type PurgeConsumer struct {
	accountDeletedQueue mq.MessageQueue
	purger              Purger
	broker              broker.Broker
	logger              *zap.Logger
}

// NewPurgeConsumer builds a consumer; b may be nil when no websocket relay
// needs telling.
func NewPurgeConsumer(accountDeletedQueue mq.MessageQueue, purger Purger, b broker.Broker, logger *zap.Logger) *PurgeConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurgeConsumer{
		accountDeletedQueue: accountDeletedQueue,
		purger:              purger,
		broker:              b,
		logger:              logger,
	}
}

// Two objects and one item per user; a minute is plenty.
const visibilityTimeout = 60

// Run polls until shutdownCtx is cancelled. A message is deleted only after
// its purge succeeds, so failures are retried by the queue's redelivery.
func (c *PurgeConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := c.accountDeletedQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || shutdownCtx.Err() != nil {
				return
			}
			c.logger.Warn("purge consumer receive error", zap.Error(err))
			continue
		}

		if msg == nil {
			continue
		}

		c.handle(shutdownCtx, msg)
	}
}

func (c *PurgeConsumer) handle(shutdownCtx context.Context, msg *mq.Message) {
	var deleted AccountDeletedMessage
	if err := json.Unmarshal([]byte(msg.Body), &deleted); err != nil || deleted.UserId == "" {
		// Poison message: it will never parse, so drop it.
		c.logger.Error("discarding unreadable account-deleted message", zap.String("message_id", msg.Id), zap.Error(err))
		c.delete(msg)
		return
	}

	// timeout should be a little less than queue visibility timeout
	ctx, cancel := context.WithTimeout(shutdownCtx, time.Duration(visibilityTimeout-1)*time.Second)
	defer cancel()

	if err := c.purger.PurgeUser(ctx, deleted.UserId); err != nil {
		c.logger.Error("account purge failed", zap.String("user_id", deleted.UserId), zap.Error(err))
		return
	}
	c.logger.Info("account purged", zap.String("user_id", deleted.UserId))

	if c.broker != nil {
		if body, err := json.Marshal(deleted); err == nil {
			if err := c.broker.Publish(ctx, broker.AccountDeletedChannel, body); err != nil {
				c.logger.Warn("failed to announce account deletion", zap.String("user_id", deleted.UserId), zap.Error(err))
			}
		}
	}

	c.delete(msg)
}

func (c *PurgeConsumer) delete(msg *mq.Message) {
	if err := c.accountDeletedQueue.Delete(context.Background(), msg); err != nil {
		c.logger.Warn("purge consumer delete error", zap.String("message_id", msg.Id), zap.Error(err))
	}
}
