package mocks

import (
	"context"

	"github.com/abearman/mindful-sub000/models"
	"github.com/stretchr/testify/mock"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockPreferenceStore struct {
	mock.Mock
}

func (m *MockPreferenceStore) GetStorageType(ctx context.Context, userId string) (models.StorageType, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(models.StorageType), args.Error(1)
}

func (m *MockPreferenceStore) SetStorageType(ctx context.Context, userId string, storageType models.StorageType) error {
	args := m.Called(ctx, userId, storageType)
	return args.Error(0)
}

func (m *MockPreferenceStore) DeleteUser(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}
