// Package firestore stores battle records in Cloud Firestore. A battle is a
// single document with its provider runs embedded; feedback lives in a
// separate collection keyed by battle ID.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ragrace/internal/config"
	"ragrace/internal/domain"
	"ragrace/internal/port"
)

type battleDoc struct {
	DocumentName string    `firestore:"document_name"`
	ArtifactURL  string    `firestore:"artifact_url"`
	PageNumber   int       `firestore:"page_number"`
	Status       string    `firestore:"status"`
	Metadata     string    `firestore:"metadata"`
	CreatedAt    time.Time `firestore:"created_at"`
	Runs         []runDoc  `firestore:"runs"`
}

type runDoc struct {
	ID             string    `firestore:"id"`
	Provider       string    `firestore:"provider"`
	Label          string    `firestore:"label"`
	Content        string    `firestore:"content"`
	TotalPages     int       `firestore:"total_pages"`
	Usage          string    `firestore:"usage"`
	CostCredits    *float64  `firestore:"cost_credits"`
	CostUSD        *float64  `firestore:"cost_usd"`
	ProcessingTime float64   `firestore:"processing_time"`
	Error          string    `firestore:"error"`
	CreatedAt      time.Time `firestore:"created_at"`
}

type feedbackDoc struct {
	ID              string     `firestore:"id"`
	BattleID        string     `firestore:"battle_id"`
	PreferredLabels []string   `firestore:"preferred_labels"`
	Comment         string     `firestore:"comment"`
	RevealedAt      *time.Time `firestore:"revealed_at"`
	CreatedAt       time.Time  `firestore:"created_at"`
	UpdatedAt       time.Time  `firestore:"updated_at"`
}

type battleRepo struct {
	client             *firestore.Client
	battleCollection   string
	feedbackCollection string
}

// NewClient opens a Firestore client for the configured project.
func NewClient(ctx context.Context, cfg *config.FirestoreConfig) (*firestore.Client, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return client, nil
}

// NewBattleRepo creates a Firestore-backed BattleRepository.
func NewBattleRepo(client *firestore.Client, cfg *config.FirestoreConfig) port.BattleRepository {
	battles, feedback := cfg.BattleCollection, cfg.FeedbackCollection
	if battles == "" {
		battles = "parse_battle_runs"
	}
	if feedback == "" {
		feedback = "battle_feedback"
	}
	return &battleRepo{client: client, battleCollection: battles, feedbackCollection: feedback}
}

func (r *battleRepo) battles() *firestore.CollectionRef {
	return r.client.Collection(r.battleCollection)
}

func (r *battleRepo) feedback() *firestore.CollectionRef {
	return r.client.Collection(r.feedbackCollection)
}

func (r *battleRepo) CreateBattle(ctx context.Context, battle *domain.BattleRecord) error {
	if battle.CreatedAt.IsZero() {
		battle.CreatedAt = time.Now().UTC()
	}
	doc := battleDoc{
		DocumentName: battle.DocumentName,
		ArtifactURL:  battle.ArtifactURL,
		PageNumber:   battle.PageNumber,
		Status:       string(battle.Status),
		Metadata:     string(battle.Metadata),
		CreatedAt:    battle.CreatedAt,
		Runs:         make([]runDoc, 0, len(battle.Runs)),
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
		doc.Runs = append(doc.Runs, runDoc{
			ID:             run.ID.String(),
			Provider:       run.Provider,
			Label:          run.Label,
			Content:        string(run.Content),
			TotalPages:     run.TotalPages,
			Usage:          string(run.Usage),
			CostCredits:    run.CostCredits,
			CostUSD:        run.CostUSD,
			ProcessingTime: run.ProcessingTime,
			Error:          run.Error,
			CreatedAt:      run.CreatedAt,
		})
	}

	if _, err := r.battles().Doc(battle.ID.String()).Create(ctx, doc); err != nil {
		return fmt.Errorf("battleRepo.CreateBattle: %w", err)
	}
	return nil
}

func (r *battleRepo) FindBattle(ctx context.Context, id uuid.UUID) (*domain.BattleRecord, error) {
	snap, err := r.battles().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrBattleNotFound
		}
		return nil, fmt.Errorf("battleRepo.FindBattle: %w", err)
	}
	return decodeBattle(snap)
}

func (r *battleRepo) ListBattles(ctx context.Context, offset, limit int) ([]domain.BattleRecord, int, error) {
	agg, err := r.battles().NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("battleRepo.ListBattles count: %w", err)
	}
	total := 0
	if v, ok := agg["all"].(*firestorepb.Value); ok {
		total = int(v.GetIntegerValue())
	}

	q := r.battles().OrderBy("created_at", firestore.Desc).Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	battles := []domain.BattleRecord{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("battleRepo.ListBattles: %w", err)
		}
		b, err := decodeBattle(snap)
		if err != nil {
			return nil, 0, err
		}
		battles = append(battles, *b)
	}
	return battles, total, nil
}

func (r *battleRepo) UpsertFeedback(ctx context.Context, fb *domain.Feedback) error {
	battleRef := r.battles().Doc(fb.BattleID.String())
	fbRef := r.feedback().Doc(fb.BattleID.String())

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(battleRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrBattleNotFound
			}
			return err
		}

		now := time.Now().UTC()
		doc := feedbackDoc{
			ID:              fb.ID.String(),
			BattleID:        fb.BattleID.String(),
			PreferredLabels: fb.PreferredLabels,
			Comment:         fb.Comment,
			RevealedAt:      fb.RevealedAt,
			CreatedAt:       fb.CreatedAt,
			UpdatedAt:       now,
		}
		if doc.PreferredLabels == nil {
			doc.PreferredLabels = []string{}
		}
		snap, err := tx.Get(fbRef)
		switch {
		case err == nil:
			var existing feedbackDoc
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			doc.ID = existing.ID
			doc.CreatedAt = existing.CreatedAt
		case status.Code(err) == codes.NotFound:
		default:
			return err
		}
		if doc.ID == "" || doc.ID == uuid.Nil.String() {
			doc.ID = uuid.NewString()
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		return tx.Set(fbRef, doc)
	})
	if err != nil {
		if errors.Is(err, domain.ErrBattleNotFound) {
			return err
		}
		return fmt.Errorf("battleRepo.UpsertFeedback: %w", err)
	}
	return nil
}

func (r *battleRepo) FindFeedback(ctx context.Context, battleID uuid.UUID) (*domain.Feedback, error) {
	snap, err := r.feedback().Doc(battleID.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("battleRepo.FindFeedback: %w", err)
	}
	var doc feedbackDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("battleRepo.FindFeedback decode: %w", err)
	}
	id, _ := uuid.Parse(doc.ID)
	labels := doc.PreferredLabels
	if labels == nil {
		labels = []string{}
	}
	return &domain.Feedback{
		ID:              id,
		BattleID:        battleID,
		PreferredLabels: labels,
		Comment:         doc.Comment,
		RevealedAt:      doc.RevealedAt,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}

func decodeBattle(snap *firestore.DocumentSnapshot) (*domain.BattleRecord, error) {
	var doc battleDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding battle %s: %w", snap.Ref.ID, err)
	}
	id, err := uuid.Parse(snap.Ref.ID)
	if err != nil {
		return nil, fmt.Errorf("decoding battle id %q: %w", snap.Ref.ID, err)
	}

	b := &domain.BattleRecord{
		ID:           id,
		DocumentName: doc.DocumentName,
		ArtifactURL:  doc.ArtifactURL,
		PageNumber:   doc.PageNumber,
		Status:       domain.BattleStatus(doc.Status),
		Metadata:     rawJSON(doc.Metadata),
		CreatedAt:    doc.CreatedAt,
		Runs:         make([]domain.ProviderRun, 0, len(doc.Runs)),
	}
	for _, rd := range doc.Runs {
		runID, _ := uuid.Parse(rd.ID)
		b.Runs = append(b.Runs, domain.ProviderRun{
			ID:             runID,
			BattleID:       id,
			Provider:       rd.Provider,
			Label:          rd.Label,
			Content:        rawJSON(rd.Content),
			TotalPages:     rd.TotalPages,
			Usage:          rawJSON(rd.Usage),
			CostCredits:    rd.CostCredits,
			CostUSD:        rd.CostUSD,
			ProcessingTime: rd.ProcessingTime,
			Error:          rd.Error,
			CreatedAt:      rd.CreatedAt,
		})
	}
	return b, nil
}

func rawJSON(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(s)
}
