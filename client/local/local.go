// Package local keeps bookmarks on the device, unencrypted.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abearman/mindful-sub000/client/kv"
	"github.com/abearman/mindful-sub000/models"
)

func bookmarksKey(userId string) string {
	return "bookmarks:" + userId
}

func storageTypeKey(userId string) string {
	return "storageType:" + userId
}

type Strategy struct {
	store kv.Store
}

func NewStrategy(store kv.Store) *Strategy {
	return &Strategy{store: store}
}

func (s *Strategy) Type() models.StorageType {
	return models.StorageLocal
}

func (s *Strategy) Load(ctx context.Context, userId string) ([]models.BookmarkGroup, error) {
	data, err := s.store.Get(ctx, bookmarksKey(userId))
	if errors.Is(err, kv.ErrNotFound) {
		return []models.BookmarkGroup{}, nil
	}
	if err != nil {
		return nil, err
	}
	groups, err := models.ParseGroups(data)
	if err != nil {
		return nil, fmt.Errorf("local bookmarks for %s: %w", userId, err)
	}
	return groups, nil
}

func (s *Strategy) Save(ctx context.Context, groups []models.BookmarkGroup, userId string) error {
	data, err := json.Marshal(models.StripAddNewGroup(groups))
	if err != nil {
		return err
	}
	return s.store.Set(ctx, bookmarksKey(userId), data)
}

func (s *Strategy) Delete(ctx context.Context, userId string) error {
	return s.store.Delete(ctx, bookmarksKey(userId))
}

// Preferences keeps the storage-type choice on the device.
type Preferences struct {
	store kv.Store
}

func NewPreferences(store kv.Store) *Preferences {
	return &Preferences{store: store}
}

func (p *Preferences) Get(ctx context.Context, userId string) (models.StorageType, bool, error) {
	data, err := p.store.Get(ctx, storageTypeKey(userId))
	if errors.Is(err, kv.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	st, err := models.ParseStorageType(string(data))
	if err != nil {
		return "", false, err
	}
	return st, true, nil
}

func (p *Preferences) Set(ctx context.Context, userId string, storageType models.StorageType) error {
	return p.store.Set(ctx, storageTypeKey(userId), []byte(storageType))
}
