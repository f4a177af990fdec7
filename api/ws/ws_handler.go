package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/abearman/mindful-sub000/api/auth"
	"github.com/abearman/mindful-sub000/api/cors"
	"github.com/abearman/mindful-sub000/broker"
	"github.com/abearman/mindful-sub000/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	Subprotocol    = "mindful-v1"
	publishTimeout = 5 * time.Second
)

type Handler struct {
	Auth   *auth.Authenticator
	Broker broker.Broker
	Hub    *Hub
	Logger *zap.Logger
}

func NewHandler(authenticator *auth.Authenticator, b broker.Broker, hub *Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Auth:   authenticator,
		Broker: b,
		Hub:    hub,
		Logger: logger,
	}
}

func (h *Handler) NewWsUpgrader(policy cors.Policy) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if policy.Unconfigured() {
				return false
			}
			return cors.Decide(policy, r.Header.Get("Origin")).Allow
		},
		Subprotocols: []string{Subprotocol},
	}
}

// ServeWS handles websocket requests from the peer. The bearer token travels
// as the second Sec-WebSocket-Protocol value since browsers cannot set an
// Authorization header on a websocket handshake.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	protocolsSplit := strings.Split(protocols, ",")

	if len(protocolsSplit) != 2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(protocolsSplit[1])
	userId, authErr := h.Auth.Resolve("", token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Info("failed to upgrade ws connection", zap.Error(err))
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = models.NewContextId()
	}

	client := NewClient(h.Hub, conn, userId, source, h.HandleWsMessage, h.Logger)
	h.Hub.OpenCh <- client

	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

// HandleWsMessage publishes a context's change announcement to every other
// context of the same user. The user id is always the authenticated one.
func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	ev, err := models.ParseChangeEvent(messageBytes)
	if err != nil {
		h.Logger.Info("ignoring ws message", zap.String("user_id", client.userId), zap.Error(err))
		return
	}
	ev.UserId = client.userId
	ev.Source = client.source
	if ev.At == 0 {
		ev.At = time.Now().UnixMilli()
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		h.Logger.Error("failed to marshal change event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.Broker.Publish(ctx, broker.BookmarksChannel(client.userId), msg); err != nil {
		h.Logger.Warn("failed to publish change event", zap.String("user_id", client.userId), zap.Error(err))
	}
}
