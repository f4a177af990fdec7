// Package client selects where a user's bookmarks live and keeps every open
// context of the extension looking at the same data.
package client

import (
	"context"
	"errors"

	"github.com/abearman/mindful-sub000/models"
)

var (
	ErrMigrationInProgress = errors.New("storage migration in progress")
	ErrNotStarted          = errors.New("manager not started")
	ErrRemoteUnavailable   = errors.New("remote storage requires a signed-in user")
)

// Strategy is one place bookmarks can be persisted.
type Strategy interface {
	Type() models.StorageType
	// Load returns an empty collection when nothing is stored.
	Load(ctx context.Context, userId string) ([]models.BookmarkGroup, error)
	Save(ctx context.Context, groups []models.BookmarkGroup, userId string) error
	Delete(ctx context.Context, userId string) error
}

// Preferences persists which strategy a user chose.
type Preferences interface {
	Get(ctx context.Context, userId string) (storageType models.StorageType, found bool, err error)
	Set(ctx context.Context, userId string, storageType models.StorageType) error
}

type LoadResult struct {
	Groups []models.BookmarkGroup
	// Warning is set when Groups is not fresh from the active strategy.
	Warning   string
	FromCache bool
}
