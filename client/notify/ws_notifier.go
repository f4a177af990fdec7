package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/abearman/mindful-sub000/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	subprotocol = "mindful-v1"
	writeWait   = 10 * time.Second
	helloWait   = 10 * time.Second
)

type WSOptions struct {
	// URL of the gateway relay, e.g. wss://api.example.com/events.
	URL         string
	Origin      string
	Source      string
	TokenSource oauth2.TokenSource
	Logger      *zap.Logger
}

// WSNotifier is a client of the gateway's websocket relay.
type WSNotifier struct {
	conn   *websocket.Conn
	source string
	logger *zap.Logger

	writeMu   sync.Mutex
	listening bool
}

func DialWS(ctx context.Context, opts WSOptions) (*WSNotifier, error) {
	token, err := opts.TokenSource.Token()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	source := opts.Source
	if source == "" {
		source = models.NewContextId()
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("source", source)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if opts.Origin != "" {
		header.Set("Origin", opts.Origin)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{subprotocol, token.AccessToken},
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			logger.Info("relay handshake refused", zap.Int("status_code", resp.StatusCode))
		}
		return nil, err
	}

	// The relay says hello once this connection is registered, so nothing
	// broadcast after DialWS returns can be missed.
	if err := awaitHello(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &WSNotifier{conn: conn, source: source, logger: logger}, nil
}

func awaitHello(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(helloWait))
	defer conn.SetReadDeadline(time.Time{})

	var hello struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		return err
	}
	if hello.Type != models.EventHello {
		return fmt.Errorf("unexpected first relay message %q", hello.Type)
	}
	return nil
}

func (n *WSNotifier) Source() string {
	return n.source
}

// Broadcast sends the change to the relay, which stamps the user id and
// source from the authenticated connection.
func (n *WSNotifier) Broadcast(ctx context.Context, c Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Source = n.source

	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	n.conn.SetWriteDeadline(deadline)
	return n.conn.WriteJSON(c.event())
}

// Listen may be called once. The connection is closed when ctx is done.
func (n *WSNotifier) Listen(ctx context.Context, handler Handler) error {
	n.writeMu.Lock()
	if n.listening {
		n.writeMu.Unlock()
		return errors.New("already listening")
	}
	n.listening = true
	n.writeMu.Unlock()

	go func() {
		<-ctx.Done()
		n.Close()
	}()

	go func() {
		for {
			_, data, err := n.conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					n.logger.Info("relay connection lost", zap.Error(err))
				}
				return
			}
			ev, err := models.ParseChangeEvent(data)
			if err != nil {
				// hello and anything unknown
				continue
			}
			if ev.Source == n.source {
				continue
			}
			handler(fromEvent(ev))
		}
	}()
	return nil
}

func (n *WSNotifier) Close() error {
	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	n.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	if err := n.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
