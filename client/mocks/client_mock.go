package mocks

import (
	"context"

	"github.com/abearman/mindful-sub000/models"
	"github.com/stretchr/testify/mock"
)

type MockStrategy struct {
	mock.Mock
}

func (m *MockStrategy) Type() models.StorageType {
	args := m.Called()
	return args.Get(0).(models.StorageType)
}

func (m *MockStrategy) Load(ctx context.Context, userId string) ([]models.BookmarkGroup, error) {
	args := m.Called(ctx, userId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookmarkGroup), args.Error(1)
}

func (m *MockStrategy) Save(ctx context.Context, groups []models.BookmarkGroup, userId string) error {
	args := m.Called(ctx, groups, userId)
	return args.Error(0)
}

func (m *MockStrategy) Delete(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

type MockPreferences struct {
	mock.Mock
}

func (m *MockPreferences) Get(ctx context.Context, userId string) (models.StorageType, bool, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(models.StorageType), args.Bool(1), args.Error(2)
}

func (m *MockPreferences) Set(ctx context.Context, userId string, storageType models.StorageType) error {
	args := m.Called(ctx, userId, storageType)
	return args.Error(0)
}
