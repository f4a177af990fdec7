// Package membroker is an in-process Broker for single-instance deployments
// and tests.
package membroker

import (
	"context"
	"sync"
)

type subscriber struct {
	ch chan []byte
}

type MemoryBroker struct {
	mu       sync.RWMutex
	channels map[string]map[*subscriber]struct{}
}

const subscriberBuffer = 64

func New() *MemoryBroker {
	return &MemoryBroker{channels: make(map[string]map[*subscriber]struct{})}
}

// Publish never blocks on a slow subscriber; a full subscriber buffer drops
// the message for that subscriber only.
func (b *MemoryBroker) Publish(ctx context.Context, channel string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.channels[channel] {
		msg := append([]byte(nil), message...)
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}

	b.mu.Lock()
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[*subscriber]struct{})
	}
	b.channels[channel][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer b.unsubscribe(channel, sub)

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sub.ch:
				handler(msg)
			}
		}
	}()

	return nil
}

func (b *MemoryBroker) unsubscribe(channel string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.channels[channel], sub)
	if len(b.channels[channel]) == 0 {
		delete(b.channels, channel)
	}
}

// Subscribers reports how many live subscriptions channel has.
func (b *MemoryBroker) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}
