package ws

import (
	"context"
	"encoding/json"

	"github.com/abearman/mindful-sub000/broker"
	"github.com/abearman/mindful-sub000/models"
	"go.uber.org/zap"
)

type delivery struct {
	userId  string
	source  string
	message []byte
}

type helloMessage struct {
	Type   string `json:"type"`
	Source string `json:"source"`
}

type AccountDeletedMessage struct {
	UserId string `json:"userId"`
}

// Hub maintains the set of active clients per user and relays change events
// between them. All maps are owned by the Run goroutine.
type Hub struct {
	broker                 broker.Broker
	logger                 *zap.Logger
	OpenCh                 chan *Client
	CloseCh                chan *Client
	AccountDeletedCh       chan string
	deliverCh              chan delivery
	userToClients          map[string]map[*Client]struct{}
	userToSubscriberCancel map[string]context.CancelFunc
}

func NewHub(b broker.Broker, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		broker:                 b,
		logger:                 logger,
		OpenCh:                 make(chan *Client, 256),
		CloseCh:                make(chan *Client, 256),
		AccountDeletedCh:       make(chan string, 64),
		deliverCh:              make(chan delivery, 1024),
		userToClients:          make(map[string]map[*Client]struct{}),
		userToSubscriberCancel: make(map[string]context.CancelFunc),
	}
}

// One per open browser context (tabs, popup, options page).
const maxConnectionsPerUser = 20

func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for _, cancel := range h.userToSubscriberCancel {
			cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.OpenCh:
			h.open(ctx, client)

		case client := <-h.CloseCh:
			clients := h.userToClients[client.userId]
			if _, ok := clients[client]; !ok {
				continue
			}
			delete(clients, client)
			close(client.Send)
			if len(clients) == 0 {
				h.dropUser(client.userId)
			}

		case d := <-h.deliverCh:
			for client := range h.userToClients[d.userId] {
				if client.source == d.source {
					continue
				}
				select {
				case client.Send <- d.message:
				default:
					h.logger.Warn("dropping change event for slow client", zap.String("user_id", d.userId))
				}
			}

		case userId := <-h.AccountDeletedCh:
			for client := range h.userToClients[userId] {
				close(client.Send)
			}
			h.dropUser(userId)
		}
	}
}

func (h *Hub) open(ctx context.Context, client *Client) {
	clients, ok := h.userToClients[client.userId]
	if ok && len(clients) >= maxConnectionsPerUser {
		h.logger.Warn("user reached max connections",
			zap.String("user_id", client.userId),
			zap.Int("max", maxConnectionsPerUser),
		)
		close(client.Send)
		return
	}

	if _, subscribed := h.userToSubscriberCancel[client.userId]; !subscribed {
		subCtx, cancel := context.WithCancel(ctx)
		userId := client.userId
		channel := broker.BookmarksChannel(userId)

		err := h.broker.Subscribe(subCtx, channel, func(message []byte) {
			ev, err := models.ParseChangeEvent(message)
			if err != nil {
				h.logger.Warn("ignoring malformed change event", zap.String("channel", channel), zap.Error(err))
				return
			}
			h.deliverCh <- delivery{userId: userId, source: ev.Source, message: message}
		})
		if err != nil {
			cancel()
			h.logger.Error("failed to subscribe", zap.String("channel", channel), zap.Error(err))
			close(client.Send)
			return
		}
		h.userToSubscriberCancel[userId] = cancel
	}

	if !ok {
		clients = make(map[*Client]struct{})
		h.userToClients[client.userId] = clients
	}
	clients[client] = struct{}{}

	if hello, err := json.Marshal(helloMessage{Type: models.EventHello, Source: client.source}); err == nil {
		client.Send <- hello
	}
}

func (h *Hub) dropUser(userId string) {
	if cancel, ok := h.userToSubscriberCancel[userId]; ok {
		cancel()
		delete(h.userToSubscriberCancel, userId)
	}
	delete(h.userToClients, userId)
}

// InitSubscriptions closes every connection of an account once the account
// is purged.
func (h *Hub) InitSubscriptions(shutdownCtx context.Context) error {
	err := h.broker.Subscribe(shutdownCtx, broker.AccountDeletedChannel, func(message []byte) {
		var msg AccountDeletedMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.UserId == "" {
			h.logger.Warn("ignoring malformed account-deleted message", zap.Error(err))
			return
		}
		h.AccountDeletedCh <- msg.UserId
	})
	if err != nil {
		h.logger.Error("ws hub failed to subscribe", zap.String("channel", broker.AccountDeletedChannel), zap.Error(err))
		return err
	}
	return nil
}
