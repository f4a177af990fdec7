package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/abearman/mindful-sub000/models"
	"github.com/abearman/mindful-sub000/store"
	"go.uber.org/zap"
)

// GetPreference returns the user's saved storage mode. found is false for a
// user who has never chosen one.
func (s *Service) GetPreference(ctx context.Context, userId string) (storageType models.StorageType, found bool, err error) {
	if err := store.ValidateUserId(userId); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	storageType, err = s.Prefs.GetStorageType(ctx, userId)
	if errors.Is(err, store.ErrItemNotFound) {
		return "", false, nil
	}
	if errors.Is(err, models.ErrInvalidStorageType) {
		s.Logger.Warn("ignoring unreadable storage preference", zap.String("user_id", userId), zap.Error(err))
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return storageType, true, nil
}

func (s *Service) SetPreference(ctx context.Context, userId string, value string) (models.StorageType, error) {
	if err := store.ValidateUserId(userId); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	storageType, err := models.ParseStorageType(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	if err := s.Prefs.SetStorageType(ctx, userId, storageType); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return storageType, nil
}

// PurgeUser removes everything stored for a deleted account.
func (s *Service) PurgeUser(ctx context.Context, userId string) error {
	bookmarksErr := s.DeleteBookmarks(ctx, userId)

	var prefsErr error
	if err := s.Prefs.DeleteUser(ctx, userId); err != nil && !errors.Is(err, store.ErrItemNotFound) {
		prefsErr = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return errors.Join(bookmarksErr, prefsErr)
}
