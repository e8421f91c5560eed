package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ragrace/internal/domain"
	"ragrace/internal/port"
)

type battleRepo struct {
	db *sqlx.DB
}

// NewBattleRepo creates a new PostgreSQL-backed BattleRepository.
func NewBattleRepo(db *sqlx.DB) port.BattleRepository {
	return &battleRepo{db: db}
}

// feedbackRow is the table shape of domain.Feedback; labels are stored as JSONB.
type feedbackRow struct {
	domain.Feedback
	Labels json.RawMessage `db:"preferred_labels"`
}

func (r *battleRepo) CreateBattle(ctx context.Context, battle *domain.BattleRecord) error {
	if battle.CreatedAt.IsZero() {
		battle.CreatedAt = time.Now().UTC()
	}
	if len(battle.Metadata) == 0 {
		battle.Metadata = json.RawMessage(`{}`)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("battleRepo.CreateBattle begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO parse_battle_runs
			(id, document_name, artifact_url, page_number, status, metadata, created_at)
		VALUES (:id, :document_name, :artifact_url, :page_number, :status, :metadata, :created_at)`,
		battle)
	if err != nil {
		return fmt.Errorf("battleRepo.CreateBattle: %w", err)
	}

	for i := range battle.Runs {
		run := &battle.Runs[i]
		run.BattleID = battle.ID
		if run.ID == uuid.Nil {
			run.ID = uuid.New()
		}
		if run.CreatedAt.IsZero() {
			run.CreatedAt = battle.CreatedAt
		}
		if len(run.Content) == 0 {
			run.Content = json.RawMessage(`{}`)
		}
		if len(run.Usage) == 0 {
			run.Usage = json.RawMessage(`{}`)
		}
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO parse_battle_provider_results
				(id, battle_id, provider, label, content, total_pages, usage,
				 cost_credits, cost_usd, processing_time, error, created_at)
			VALUES (:id, :battle_id, :provider, :label, :content, :total_pages, :usage,
				 :cost_credits, :cost_usd, :processing_time, :error, :created_at)`,
			run)
		if err != nil {
			return fmt.Errorf("battleRepo.CreateBattle run %s: %w", run.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("battleRepo.CreateBattle commit: %w", err)
	}
	return nil
}

func (r *battleRepo) FindBattle(ctx context.Context, id uuid.UUID) (*domain.BattleRecord, error) {
	var battle domain.BattleRecord
	err := r.db.GetContext(ctx, &battle,
		"SELECT * FROM parse_battle_runs WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBattleNotFound
		}
		return nil, fmt.Errorf("battleRepo.FindBattle: %w", err)
	}

	err = r.db.SelectContext(ctx, &battle.Runs,
		"SELECT * FROM parse_battle_provider_results WHERE battle_id = $1 ORDER BY label", id)
	if err != nil {
		return nil, fmt.Errorf("battleRepo.FindBattle runs: %w", err)
	}
	return &battle, nil
}

func (r *battleRepo) ListBattles(ctx context.Context, offset, limit int) ([]domain.BattleRecord, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM parse_battle_runs"); err != nil {
		return nil, 0, fmt.Errorf("battleRepo.ListBattles count: %w", err)
	}

	var battles []domain.BattleRecord
	err := r.db.SelectContext(ctx, &battles,
		`SELECT * FROM parse_battle_runs
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("battleRepo.ListBattles: %w", err)
	}
	if len(battles) == 0 {
		return battles, total, nil
	}

	ids := make([]uuid.UUID, len(battles))
	for i := range battles {
		ids[i] = battles[i].ID
	}
	query, args, err := sqlx.In(
		"SELECT * FROM parse_battle_provider_results WHERE battle_id IN (?) ORDER BY label", ids)
	if err != nil {
		return nil, 0, fmt.Errorf("battleRepo.ListBattles runs: %w", err)
	}
	var runs []domain.ProviderRun
	if err := r.db.SelectContext(ctx, &runs, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("battleRepo.ListBattles runs: %w", err)
	}

	byBattle := make(map[uuid.UUID][]domain.ProviderRun, len(battles))
	for _, run := range runs {
		byBattle[run.BattleID] = append(byBattle[run.BattleID], run)
	}
	for i := range battles {
		battles[i].Runs = byBattle[battles[i].ID]
	}
	return battles, total, nil
}

func (r *battleRepo) UpsertFeedback(ctx context.Context, fb *domain.Feedback) error {
	now := time.Now().UTC()
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = now
	}
	fb.UpdatedAt = now

	labels := fb.PreferredLabels
	if labels == nil {
		labels = []string{}
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("battleRepo.UpsertFeedback: %w", err)
	}

	// On conflict the stored row keeps its id and created_at; read them back
	// so fb matches the database.
	rows, err := r.db.NamedQueryContext(ctx,
		`INSERT INTO battle_feedback
			(id, battle_id, preferred_labels, comment, revealed_at, created_at, updated_at)
		VALUES (:id, :battle_id, :preferred_labels, :comment, :revealed_at, :created_at, :updated_at)
		ON CONFLICT (battle_id) DO UPDATE SET
			preferred_labels = EXCLUDED.preferred_labels,
			comment = EXCLUDED.comment,
			revealed_at = EXCLUDED.revealed_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		feedbackRow{Feedback: *fb, Labels: raw})
	if err != nil {
		return fmt.Errorf("battleRepo.UpsertFeedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("battleRepo.UpsertFeedback: %w", err)
		}
		return fmt.Errorf("battleRepo.UpsertFeedback: no row returned")
	}
	if err := rows.Scan(&fb.ID, &fb.CreatedAt); err != nil {
		return fmt.Errorf("battleRepo.UpsertFeedback scan: %w", err)
	}
	return rows.Err()
}

func (r *battleRepo) FindFeedback(ctx context.Context, battleID uuid.UUID) (*domain.Feedback, error) {
	var row feedbackRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, battle_id, preferred_labels, comment, revealed_at, created_at, updated_at
		 FROM battle_feedback WHERE battle_id = $1`, battleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("battleRepo.FindFeedback: %w", err)
	}

	fb := row.Feedback
	fb.PreferredLabels = []string{}
	if len(row.Labels) > 0 {
		if err := json.Unmarshal(row.Labels, &fb.PreferredLabels); err != nil {
			return nil, fmt.Errorf("battleRepo.FindFeedback labels: %w", err)
		}
	}
	return &fb, nil
}
