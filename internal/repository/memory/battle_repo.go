// Package memory keeps battle records in process memory. Records are lost on
// restart; it backs local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragrace/internal/domain"
	"ragrace/internal/port"
)

type battleRepo struct {
	mu       sync.RWMutex
	battles  map[uuid.UUID]domain.BattleRecord
	feedback map[uuid.UUID]domain.Feedback
}

// NewBattleRepo creates an empty in-memory BattleRepository.
func NewBattleRepo() port.BattleRepository {
	return &battleRepo{
		battles:  map[uuid.UUID]domain.BattleRecord{},
		feedback: map[uuid.UUID]domain.Feedback{},
	}
}

func (r *battleRepo) CreateBattle(_ context.Context, battle *domain.BattleRecord) error {
	if battle.CreatedAt.IsZero() {
		battle.CreatedAt = time.Now().UTC()
	}
	for i := range battle.Runs {
		battle.Runs[i].BattleID = battle.ID
		if battle.Runs[i].ID == uuid.Nil {
			battle.Runs[i].ID = uuid.New()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.battles[battle.ID] = cloneBattle(*battle)
	return nil
}

func (r *battleRepo) FindBattle(_ context.Context, id uuid.UUID) (*domain.BattleRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.battles[id]
	if !ok {
		return nil, domain.ErrBattleNotFound
	}
	out := cloneBattle(b)
	return &out, nil
}

func (r *battleRepo) ListBattles(_ context.Context, offset, limit int) ([]domain.BattleRecord, int, error) {
	r.mu.RLock()
	all := make([]domain.BattleRecord, 0, len(r.battles))
	for _, b := range r.battles {
		all = append(all, cloneBattle(b))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.BattleRecord{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *battleRepo) UpsertFeedback(_ context.Context, fb *domain.Feedback) error {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.battles[fb.BattleID]; !ok {
		return domain.ErrBattleNotFound
	}
	if existing, ok := r.feedback[fb.BattleID]; ok {
		fb.ID = existing.ID
		fb.CreatedAt = existing.CreatedAt
	}
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now
	}
	fb.UpdatedAt = now

	stored := *fb
	stored.PreferredLabels = append([]string{}, fb.PreferredLabels...)
	r.feedback[fb.BattleID] = stored
	return nil
}

func (r *battleRepo) FindFeedback(_ context.Context, battleID uuid.UUID) (*domain.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fb, ok := r.feedback[battleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	fb.PreferredLabels = append([]string{}, fb.PreferredLabels...)
	return &fb, nil
}

func cloneBattle(b domain.BattleRecord) domain.BattleRecord {
	b.Metadata = append(json.RawMessage(nil), b.Metadata...)
	runs := make([]domain.ProviderRun, len(b.Runs))
	copy(runs, b.Runs)
	b.Runs = runs
	return b
}
