package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ragrace/internal/domain"
)

// MockBattleRepo is a mock implementation of port.BattleRepository.
type MockBattleRepo struct {
	mock.Mock
}

func (m *MockBattleRepo) CreateBattle(ctx context.Context, battle *domain.BattleRecord) error {
	args := m.Called(ctx, battle)
	return args.Error(0)
}

func (m *MockBattleRepo) FindBattle(ctx context.Context, id uuid.UUID) (*domain.BattleRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BattleRecord), args.Error(1)
}

func (m *MockBattleRepo) ListBattles(ctx context.Context, offset, limit int) ([]domain.BattleRecord, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.BattleRecord), args.Int(1), args.Error(2)
}

func (m *MockBattleRepo) UpsertFeedback(ctx context.Context, fb *domain.Feedback) error {
	args := m.Called(ctx, fb)
	return args.Error(0)
}

func (m *MockBattleRepo) FindFeedback(ctx context.Context, battleID uuid.UUID) (*domain.Feedback, error) {
	args := m.Called(ctx, battleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Feedback), args.Error(1)
}
