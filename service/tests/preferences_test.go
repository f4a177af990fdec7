package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/abearman/mindful-sub000/models"
	"github.com/abearman/mindful-sub000/service"
	"github.com/abearman/mindful-sub000/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPreference_NotChosenYet(t *testing.T) {
	svc, _, mockPrefs, _ := setupService(t)
	ctx := context.Background()
	mockPrefs.On("GetStorageType", ctx, "user1").Return(models.StorageType(""), store.ErrItemNotFound)

	_, found, err := svc.GetPreference(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetPreference_Saved(t *testing.T) {
	svc, _, mockPrefs, _ := setupService(t)
	ctx := context.Background()
	mockPrefs.On("GetStorageType", ctx, "user1").Return(models.StorageRemote, nil)

	got, found, err := svc.GetPreference(ctx, "user1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.StorageRemote, got)
}

func TestGetPreference_StoreDown(t *testing.T) {
	svc, _, mockPrefs, _ := setupService(t)
	ctx := context.Background()
	mockPrefs.On("GetStorageType", ctx, "user1").Return(models.StorageType(""), errors.New("dynamo down"))

	_, _, err := svc.GetPreference(ctx, "user1")
	assert.ErrorIs(t, err, service.ErrStorageUnavailable)
}

func TestSetPreference(t *testing.T) {
	svc, _, mockPrefs, _ := setupService(t)
	ctx := context.Background()
	mockPrefs.On("SetStorageType", ctx, "user1", models.StorageRemote).Return(nil)

	got, err := svc.SetPreference(ctx, "user1", "remote")
	require.NoError(t, err)
	assert.Equal(t, models.StorageRemote, got)

	_, err = svc.SetPreference(ctx, "user1", "cloud")
	assert.ErrorIs(t, err, service.ErrBadRequest)
	mockPrefs.AssertNumberOfCalls(t, "SetStorageType", 1)
}

func TestPurgeUser(t *testing.T) {
	svc, objects, _ := setupMemoryService(t)
	ctx := context.Background()

	_, err := svc.SaveBookmarks(ctx, "user1", []byte(workGroups))
	require.NoError(t, err)
	_, err = svc.SetPreference(ctx, "user1", "remote")
	require.NoError(t, err)

	require.NoError(t, svc.PurgeUser(ctx, "user1"))
	assert.Empty(t, objects.Keys())

	_, found, err := svc.GetPreference(ctx, "user1")
	require.NoError(t, err)
	assert.False(t, found)
}
