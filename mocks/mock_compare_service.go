package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ragrace/internal/domain"
	"ragrace/internal/service"
)

// MockCompareService is a mock implementation of service.CompareService.
type MockCompareService struct {
	mock.Mock
}

func (m *MockCompareService) Compare(ctx context.Context, input *service.CompareInput) (*domain.Comparison, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Comparison), args.Error(1)
}

func (m *MockCompareService) Release(cmp *domain.Comparison) {
	m.Called(cmp)
}

func (m *MockCompareService) PageCount(ctx context.Context, artifactPath string) (int, error) {
	args := m.Called(ctx, artifactPath)
	return args.Int(0), args.Error(1)
}

func (m *MockCompareService) AvailableProviders() []service.ProviderStatus {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]service.ProviderStatus)
}
