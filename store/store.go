package store

import (
	"context"
	"errors"
	"strings"

	"github.com/abearman/mindful-sub000/models"
)

// ObjectStore holds opaque per-user blobs.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// Delete succeeds when the object does not exist.
	Delete(ctx context.Context, key string) error
}

// PreferenceStore holds per-user attributes that live outside the encrypted
// payload.
type PreferenceStore interface {
	GetStorageType(ctx context.Context, userId string) (models.StorageType, error)
	SetStorageType(ctx context.Context, userId string, storageType models.StorageType) error
	DeleteUser(ctx context.Context, userId string) error
}

var (
	ErrObjectNotFound = errors.New("object does not exist")
	ErrItemNotFound   = errors.New("item does not exist")
	ErrInvalidUserId  = errors.New("invalid user id")
)

const (
	payloadObject   = "bookmarks.json.enc"
	legacyKeyObject = "bookmarks.key"
)

// ValidateUserId rejects ids that could escape their one-level prefix.
func ValidateUserId(userId string) error {
	if userId == "" || userId == "." || userId == ".." || strings.ContainsAny(userId, "/\\") {
		return ErrInvalidUserId
	}
	return nil
}

func PayloadKey(userId string) string {
	return userId + "/" + payloadObject
}

func LegacyKeyKey(userId string) string {
	return userId + "/" + legacyKeyObject
}
