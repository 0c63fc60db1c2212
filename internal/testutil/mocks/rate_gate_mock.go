package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRateGate is a mock implementation of paragraphcache.RateGate
type MockRateGate struct {
	mock.Mock
}

func (m *MockRateGate) CanGenerate(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateGate) Record(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
