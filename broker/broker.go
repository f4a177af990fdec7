package broker

import "context"

// Broker fans messages out to every subscriber of a channel, across
// processes when the implementation is networked. Delivery is at most once.
type Broker interface {
	Publish(ctx context.Context, channel string, message []byte) error
	// Subscribe returns once the subscription is live. handler runs on a
	// broker goroutine until ctx is cancelled.
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error
}

func BookmarksChannel(userId string) string {
	return "bookmarks:" + userId
}

const AccountDeletedChannel = "account-deleted"
