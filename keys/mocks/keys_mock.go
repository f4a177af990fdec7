package mocks

import (
	"context"

	"github.com/abearman/mindful-sub000/keys"
	"github.com/stretchr/testify/mock"
)

type MockKeyService struct {
	mock.Mock
}

func (m *MockKeyService) GenerateDataKey(ctx context.Context, userId string) (keys.DataKey, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(keys.DataKey), args.Error(1)
}

func (m *MockKeyService) UnwrapKey(ctx context.Context, wrapped []byte, userId string) ([]byte, error) {
	args := m.Called(ctx, wrapped, userId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
