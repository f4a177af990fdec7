package models

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	EventBookmarksChanged = "bookmarks_changed"
	EventHello            = "hello"
)

var ErrInvalidEvent = errors.New("invalid change event")

// ChangeEvent tells other browser contexts of the same user that the
// active strategy holds new data. Source identifies the sending context so
// it can ignore its own echo.
type ChangeEvent struct {
	Type        string      `json:"type"`
	UserId      string      `json:"userId,omitempty"`
	Source      string      `json:"source"`
	StorageType StorageType `json:"storageType,omitempty"`
	At          int64       `json:"at"`
}

func NewChangeEvent(userId, source string, storageType StorageType) ChangeEvent {
	return ChangeEvent{
		Type:        EventBookmarksChanged,
		UserId:      userId,
		Source:      source,
		StorageType: storageType,
		At:          time.Now().UnixMilli(),
	}
}

// NewContextId returns a fresh id for one browser context.
func NewContextId() string {
	return newId()
}

func ParseChangeEvent(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, errors.Join(ErrInvalidEvent, err)
	}
	if ev.Type != EventBookmarksChanged || ev.Source == "" {
		return ChangeEvent{}, ErrInvalidEvent
	}
	return ev, nil
}
