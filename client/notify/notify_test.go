package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abearman/mindful-sub000/api/auth"
	"github.com/abearman/mindful-sub000/api/cors"
	"github.com/abearman/mindful-sub000/api/ws"
	"github.com/abearman/mindful-sub000/broker"
	"github.com/abearman/mindful-sub000/broker/membroker"
	"github.com/abearman/mindful-sub000/client/notify"
	"github.com/abearman/mindful-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func collect(t *testing.T, n notify.Notifier) <-chan notify.Change {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ch := make(chan notify.Change, 8)
	require.NoError(t, n.Listen(ctx, func(c notify.Change) { ch <- c }))
	return ch
}

func receive(t *testing.T, ch <-chan notify.Change) notify.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change received")
		return notify.Change{}
	}
}

func expectNone(t *testing.T, ch <-chan notify.Change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected change from %s", c.Source)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubExcludesSender(t *testing.T) {
	hub := notify.NewHub()
	popup := hub.Endpoint("popup")
	tab := hub.Endpoint("tab")

	popupCh := collect(t, popup)
	tabCh := collect(t, tab)

	require.NoError(t, popup.Broadcast(context.Background(), notify.Change{UserId: "user-1", StorageType: models.StorageLocal}))

	got := receive(t, tabCh)
	assert.Equal(t, "popup", got.Source)
	assert.Equal(t, "user-1", got.UserId)
	assert.Equal(t, models.StorageLocal, got.StorageType)
	assert.NotZero(t, got.At)
	expectNone(t, popupCh)
}

func TestHubStopsDeliveringAfterCancel(t *testing.T) {
	hub := notify.NewHub()
	popup := hub.Endpoint("popup")

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan notify.Change, 1)
	require.NoError(t, hub.Endpoint("tab").Listen(ctx, func(c notify.Change) { ch <- c }))
	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, popup.Broadcast(context.Background(), notify.Change{UserId: "user-1"}))
	expectNone(t, ch)
}

func TestBrokerNotifier(t *testing.T) {
	b := membroker.New()
	popup := notify.NewBrokerNotifier(b, "user-1", "popup", zap.NewNop())
	tab := notify.NewBrokerNotifier(b, "user-1", "tab", zap.NewNop())
	stranger := notify.NewBrokerNotifier(b, "user-2", "other", zap.NewNop())

	popupCh := collect(t, popup)
	tabCh := collect(t, tab)
	strangerCh := collect(t, stranger)

	require.NoError(t, popup.Broadcast(context.Background(), notify.Change{StorageType: models.StorageRemote}))

	got := receive(t, tabCh)
	assert.Equal(t, "popup", got.Source)
	assert.Equal(t, "user-1", got.UserId)
	assert.Equal(t, models.StorageRemote, got.StorageType)
	expectNone(t, popupCh)
	expectNone(t, strangerCh)
}

func TestBrokerNotifierIgnoresGarbage(t *testing.T) {
	b := membroker.New()
	tabCh := collect(t, notify.NewBrokerNotifier(b, "user-1", "tab", zap.NewNop()))

	require.NoError(t, b.Publish(context.Background(), broker.BookmarksChannel("user-1"), []byte("garbage")))
	msg, err := json.Marshal(models.ChangeEvent{Type: models.EventHello, Source: "x"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), broker.BookmarksChannel("user-1"), msg))

	expectNone(t, tabCh)
}

func setupRelay(t *testing.T, secret []byte) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := membroker.New()
	hub := ws.NewHub(b, zap.NewNop())
	require.NoError(t, hub.InitSubscriptions(ctx))
	go hub.Run(ctx)

	handler := ws.NewHandler(auth.NewAuthenticator(secret, ""), b, hub, zap.NewNop())
	upgrader := handler.NewWsUpgrader(cors.NewPolicy("abc", "", true))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeWS(upgrader, w, r, ctx)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/events"
}

func dialWS(t *testing.T, url string, secret []byte, userId, source string) *notify.WSNotifier {
	t.Helper()
	token, err := auth.NewAuthenticator(secret, "").CreateToken(userId, time.Hour)
	require.NoError(t, err)

	n, err := notify.DialWS(context.Background(), notify.WSOptions{
		URL:         url,
		Origin:      "chrome-extension://abc",
		Source:      source,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func TestWSNotifierThroughRelay(t *testing.T) {
	secret := []byte("notify-secret")
	url := setupRelay(t, secret)

	popup := dialWS(t, url, secret, "user-1", "popup")
	tab := dialWS(t, url, secret, "user-1", "tab")
	assert.Equal(t, "popup", popup.Source())

	popupCh := collect(t, popup)
	tabCh := collect(t, tab)

	require.NoError(t, popup.Broadcast(context.Background(), notify.Change{UserId: "someone-else", StorageType: models.StorageRemote}))

	got := receive(t, tabCh)
	assert.Equal(t, "popup", got.Source)
	assert.Equal(t, "user-1", got.UserId)
	assert.Equal(t, models.StorageRemote, got.StorageType)
	expectNone(t, popupCh)
}

func TestWSNotifierRejectedToken(t *testing.T) {
	url := setupRelay(t, []byte("notify-secret"))

	_, err := notify.DialWS(context.Background(), notify.WSOptions{
		URL:         url,
		Origin:      "chrome-extension://abc",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "forged"}),
	})
	assert.Error(t, err)
}
