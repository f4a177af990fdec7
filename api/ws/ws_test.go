package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abearman/mindful-sub000/api/auth"
	"github.com/abearman/mindful-sub000/api/cors"
	"github.com/abearman/mindful-sub000/api/ws"
	"github.com/abearman/mindful-sub000/broker"
	"github.com/abearman/mindful-sub000/broker/membroker"
	"github.com/abearman/mindful-sub000/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const origin = "chrome-extension://abc"

type relay struct {
	server *httptest.Server
	auth   *auth.Authenticator
	broker *membroker.MemoryBroker
}

func setupRelay(t *testing.T) relay {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := membroker.New()
	authenticator := auth.NewAuthenticator([]byte("ws-secret"), "")
	hub := ws.NewHub(b, zap.NewNop())
	require.NoError(t, hub.InitSubscriptions(ctx))
	go hub.Run(ctx)

	handler := ws.NewHandler(authenticator, b, hub, zap.NewNop())
	upgrader := handler.NewWsUpgrader(cors.NewPolicy("abc", "", true))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeWS(upgrader, w, r, ctx)
	}))
	t.Cleanup(srv.Close)

	return relay{server: srv, auth: authenticator, broker: b}
}

func (r relay) dial(t *testing.T, userId, source string) *websocket.Conn {
	t.Helper()
	token, err := r.auth.CreateToken(userId, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/events?source=" + source
	header := http.Header{}
	header.Set("Origin", origin)
	dialer := websocket.Dialer{Subprotocols: []string{ws.Subprotocol, token}}

	conn, resp, err := dialer.Dial(url, header)
	require.NoError(t, err)
	assert.Equal(t, ws.Subprotocol, resp.Header.Get("Sec-WebSocket-Protocol"))
	t.Cleanup(func() { conn.Close() })

	var hello struct {
		Type   string `json:"type"`
		Source string `json:"source"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, models.EventHello, hello.Type)
	require.Equal(t, source, hello.Source)
	return conn
}

func expectNothing(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestRelayToOtherContextsOnly(t *testing.T) {
	r := setupRelay(t)

	popup := r.dial(t, "user-1", "popup")
	tab := r.dial(t, "user-1", "tab")
	stranger := r.dial(t, "user-2", "other")

	require.NoError(t, popup.WriteJSON(models.ChangeEvent{
		Type:        models.EventBookmarksChanged,
		UserId:      "user-2",
		Source:      "spoofed",
		StorageType: models.StorageRemote,
	}))

	var got models.ChangeEvent
	tab.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, tab.ReadJSON(&got))
	assert.Equal(t, models.EventBookmarksChanged, got.Type)
	assert.Equal(t, "user-1", got.UserId)
	assert.Equal(t, "popup", got.Source)
	assert.Equal(t, models.StorageRemote, got.StorageType)
	assert.NotZero(t, got.At)

	expectNothing(t, popup)
	expectNothing(t, stranger)
}

func TestIgnoresMalformedMessages(t *testing.T) {
	r := setupRelay(t)

	popup := r.dial(t, "user-1", "popup")
	tab := r.dial(t, "user-1", "tab")

	require.NoError(t, popup.WriteMessage(websocket.TextMessage, []byte(`{"type":"something_else","source":"x"}`)))
	require.NoError(t, popup.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	expectNothing(t, tab)
}

func TestUnauthenticatedIsClosed(t *testing.T) {
	r := setupRelay(t)

	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/events"
	header := http.Header{}
	header.Set("Origin", origin)
	dialer := websocket.Dialer{Subprotocols: []string{ws.Subprotocol, "bad-token"}}

	conn, _, err := dialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestMissingProtocolRejected(t *testing.T) {
	r := setupRelay(t)

	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/events"
	header := http.Header{}
	header.Set("Origin", origin)

	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestForbiddenOriginRejected(t *testing.T) {
	r := setupRelay(t)
	token, err := r.auth.CreateToken("user-1", time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "/events"
	header := http.Header{}
	header.Set("Origin", "chrome-extension://evil")
	dialer := websocket.Dialer{Subprotocols: []string{ws.Subprotocol, token}}

	_, resp, err := dialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAccountDeletedClosesConnections(t *testing.T) {
	r := setupRelay(t)
	conn := r.dial(t, "user-1", "popup")

	msg, err := json.Marshal(ws.AccountDeletedMessage{UserId: "user-1"})
	require.NoError(t, err)
	require.NoError(t, r.broker.Publish(context.Background(), broker.AccountDeletedChannel, msg))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		return r.broker.Subscribers(broker.BookmarksChannel("user-1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriptionDroppedWhenLastClientLeaves(t *testing.T) {
	r := setupRelay(t)
	conn := r.dial(t, "user-1", "popup")
	assert.Equal(t, 1, r.broker.Subscribers(broker.BookmarksChannel("user-1")))

	conn.Close()
	assert.Eventually(t, func() bool {
		return r.broker.Subscribers(broker.BookmarksChannel("user-1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
