package notify

import (
	"context"
	"encoding/json"

	"github.com/abearman/mindful-sub000/broker"
	"github.com/abearman/mindful-sub000/models"
	"go.uber.org/zap"
)

// BrokerNotifier carries changes over a pub/sub broker so contexts in
// other processes see them.
type BrokerNotifier struct {
	broker broker.Broker
	userId string
	source string
	logger *zap.Logger
}

func NewBrokerNotifier(b broker.Broker, userId, source string, logger *zap.Logger) *BrokerNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrokerNotifier{broker: b, userId: userId, source: source, logger: logger}
}

func (n *BrokerNotifier) Broadcast(ctx context.Context, c Change) error {
	c.UserId = n.userId
	c.Source = n.source
	msg, err := json.Marshal(c.event())
	if err != nil {
		return err
	}
	return n.broker.Publish(ctx, broker.BookmarksChannel(n.userId), msg)
}

func (n *BrokerNotifier) Listen(ctx context.Context, handler Handler) error {
	return n.broker.Subscribe(ctx, broker.BookmarksChannel(n.userId), func(message []byte) {
		ev, err := models.ParseChangeEvent(message)
		if err != nil {
			n.logger.Debug("ignoring broker message", zap.Error(err))
			return
		}
		if ev.Source == n.source || (ev.UserId != "" && ev.UserId != n.userId) {
			return
		}
		handler(fromEvent(ev))
	})
}
