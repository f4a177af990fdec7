// Package notify tells the other browser contexts of a user that the
// active storage strategy holds new data. Delivery is best effort: no
// acknowledgement and no retry.
package notify

import (
	"context"
	"errors"

	"github.com/abearman/mindful-sub000/models"
)

var ErrClosed = errors.New("notifier closed")

type Change struct {
	UserId      string
	Source      string
	StorageType models.StorageType
	At          int64
}

type Handler func(Change)

type Notifier interface {
	// Broadcast sends c to every other context. The sender's own contexts
	// never receive it.
	Broadcast(ctx context.Context, c Change) error
	// Listen returns once listening has started. handler runs until ctx is
	// cancelled.
	Listen(ctx context.Context, handler Handler) error
}

func (c Change) event() models.ChangeEvent {
	ev := models.NewChangeEvent(c.UserId, c.Source, c.StorageType)
	if c.At != 0 {
		ev.At = c.At
	}
	return ev
}

func fromEvent(ev models.ChangeEvent) Change {
	return Change{
		UserId:      ev.UserId,
		Source:      ev.Source,
		StorageType: ev.StorageType,
		At:          ev.At,
	}
}
