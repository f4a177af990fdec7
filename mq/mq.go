package mq

import "context"

// MessageQueue is an at-least-once work queue. A received message stays
// invisible for the visibility timeout and reappears unless deleted.
type MessageQueue interface {
	Send(ctx context.Context, body string) error
	// Receive returns nil, nil when a poll finds nothing.
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

type Message struct {
	// Id is the receipt handle needed to delete the message.
	Id   string
	Body string
}
