package port

import (
	"context"

	"github.com/google/uuid"

	"ragrace/internal/domain"
)

// BattleRepository is the durable store for battle runs and their feedback.
// Find methods return domain.ErrBattleNotFound or domain.ErrNotFound when absent.
type BattleRepository interface {
	CreateBattle(ctx context.Context, battle *domain.BattleRecord) error
	FindBattle(ctx context.Context, id uuid.UUID) (*domain.BattleRecord, error)
	ListBattles(ctx context.Context, offset, limit int) ([]domain.BattleRecord, int, error)
	UpsertFeedback(ctx context.Context, feedback *domain.Feedback) error
	FindFeedback(ctx context.Context, battleID uuid.UUID) (*domain.Feedback, error)
}
