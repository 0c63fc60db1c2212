package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/lingorun/internal/models"
)

// MockGenerator is a mock implementation of paragraphcache.Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
