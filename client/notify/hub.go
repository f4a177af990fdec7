package notify

import (
	"context"
	"sync"
	"time"
)

const listenerBuffer = 16

type listener struct {
	source string
	ch     chan Change
}

// Hub fans changes out between contexts living in one process, such as the
// popup and the tabs of a single browser profile.
type Hub struct {
	mu        sync.Mutex
	nextId    int
	listeners map[int]listener
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[int]listener)}
}

// Endpoint returns the notifier for one context.
func (h *Hub) Endpoint(source string) Notifier {
	return &hubEndpoint{hub: h, source: source}
}

func (h *Hub) publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, l := range h.listeners {
		if l.source == c.Source {
			continue
		}
		select {
		case l.ch <- c:
		default:
			// listener is behind; it will catch up on its next reload
		}
	}
}

func (h *Hub) add(source string) (int, chan Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextId
	h.nextId++
	ch := make(chan Change, listenerBuffer)
	h.listeners[id] = listener{source: source, ch: ch}
	return id, ch
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, id)
}

type hubEndpoint struct {
	hub    *Hub
	source string
}

func (e *hubEndpoint) Broadcast(ctx context.Context, c Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Source = e.source
	if c.At == 0 {
		c.At = time.Now().UnixMilli()
	}
	e.hub.publish(c)
	return nil
}

func (e *hubEndpoint) Listen(ctx context.Context, handler Handler) error {
	id, ch := e.hub.add(e.source)
	go func() {
		defer e.hub.remove(id)
		for {
			select {
			case c := <-ch:
				handler(c)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
