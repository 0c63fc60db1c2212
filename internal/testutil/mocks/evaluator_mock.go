package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/lingorun/internal/models"
)

// MockEvaluator is a mock implementation of services.Evaluator
type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.Feedback, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Feedback), args.Error(1)
}
