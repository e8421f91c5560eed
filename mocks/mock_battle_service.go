package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ragrace/internal/domain"
	"ragrace/internal/service"
)

// MockBattleService is a mock implementation of service.BattleService.
type MockBattleService struct {
	mock.Mock
}

func (m *MockBattleService) Start(ctx context.Context, input *service.BattleInput) (*service.BattleResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BattleResult), args.Error(1)
}

func (m *MockBattleService) SubmitFeedback(ctx context.Context, input *service.FeedbackInput) (*service.FeedbackResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FeedbackResult), args.Error(1)
}

func (m *MockBattleService) GetBattle(ctx context.Context, id uuid.UUID) (*domain.BattleDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BattleDetail), args.Error(1)
}

func (m *MockBattleService) ListBattles(ctx context.Context, offset, limit int) ([]domain.BattleHistoryItem, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.BattleHistoryItem), args.Int(1), args.Error(2)
}

func (m *MockBattleService) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
