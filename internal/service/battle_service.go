package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"ragrace/internal/battle"
	"ragrace/internal/domain"
	"ragrace/internal/port"
	"ragrace/internal/pricing"
)

// BattleInput is the DTO for starting a blind battle.
type BattleInput struct {
	ArtifactPath string
	DocumentName string
	PageNumber   *int
	Configs      map[string]map[string]any
}

// BattleResult is what the caller sees right after a battle runs. Persistence
// continues in the background.
type BattleResult struct {
	BattleID    uuid.UUID
	Assignments []domain.BattleAssignment
	Comparison  *domain.Comparison
}

// FeedbackInput is the DTO for feedback on a battle. PreferredLabels takes
// precedence over the legacy Preference when set.
type FeedbackInput struct {
	BattleID        uuid.UUID
	PreferredLabels *[]string
	Preference      domain.BattlePreference
	Comment         string
}

// FeedbackResult reveals the battle's assignments after feedback is stored.
type FeedbackResult struct {
	BattleID        uuid.UUID                 `json:"battle_id"`
	PreferredLabels []string                  `json:"preferred_labels"`
	Comment         string                    `json:"comment"`
	Assignments     []domain.BattleAssignment `json:"assignments"`
}

// BattleConfig holds settings for the battle service.
type BattleConfig struct {
	DefaultProviders   []string
	FeedbackWait       time.Duration
	PersistenceTimeout time.Duration
	ArtifactPrefix     string
	Shuffler           battle.Shuffler
}

// BattleService defines the blind battle contract.
type BattleService interface {
	Start(ctx context.Context, input *BattleInput) (*BattleResult, error)
	SubmitFeedback(ctx context.Context, input *FeedbackInput) (*FeedbackResult, error)
	GetBattle(ctx context.Context, id uuid.UUID) (*domain.BattleDetail, error)
	ListBattles(ctx context.Context, offset, limit int) ([]domain.BattleHistoryItem, int, error)
	Shutdown(ctx context.Context) error
}

type battleService struct {
	compare CompareService
	repo    port.BattleRepository
	storage port.ArtifactStorage
	pricing pricing.Table
	pending *battle.PendingRegistry
	cfg     BattleConfig
}

// NewBattleService creates a new BattleService implementation. table may be
// nil, in which case stored runs carry no cost.
func NewBattleService(
	compare CompareService,
	repo port.BattleRepository,
	storage port.ArtifactStorage,
	table pricing.Table,
	pending *battle.PendingRegistry,
	cfg BattleConfig,
) BattleService {
	if pending == nil {
		pending = battle.NewPendingRegistry()
	}
	if cfg.FeedbackWait <= 0 {
		cfg.FeedbackWait = 5 * time.Second
	}
	if cfg.PersistenceTimeout <= 0 {
		cfg.PersistenceTimeout = 5 * time.Minute
	}
	if cfg.ArtifactPrefix == "" {
		cfg.ArtifactPrefix = "user-upload"
	}
	if len(cfg.DefaultProviders) == 0 {
		cfg.DefaultProviders = []string{domain.ProviderLlamaIndex, domain.ProviderReducto}
	}
	return &battleService{
		compare: compare,
		repo:    repo,
		storage: storage,
		pricing: table,
		pending: pending,
		cfg:     cfg,
	}
}

func (s *battleService) Start(ctx context.Context, input *BattleInput) (*BattleResult, error) {
	if input.PageNumber == nil {
		return nil, domain.ErrBattleRequiresPage
	}

	assignments := battle.Assign(s.cfg.DefaultProviders, s.cfg.Shuffler)
	providers := make([]string, len(assignments))
	for i, a := range assignments {
		providers[i] = a.Provider
	}

	cmp, err := s.compare.Compare(ctx, &CompareInput{
		ArtifactPath: input.ArtifactPath,
		Providers:    providers,
		Configs:      input.Configs,
		PageNumber:   input.PageNumber,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	s.pending.Track(id, func() error {
		// The request context ends with the response; persistence must not.
		persistCtx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistenceTimeout)
		defer cancel()
		defer s.compare.Release(cmp)
		return s.persist(persistCtx, id, input, cmp, assignments)
	})

	slog.Info("battleService.Start: battle created", "battle_id", id, "sides", len(assignments), "page", *input.PageNumber)

	return &BattleResult{
		BattleID:    id,
		Assignments: assignments,
		Comparison:  cmp,
	}, nil
}

func (s *battleService) persist(ctx context.Context, id uuid.UUID, input *BattleInput, cmp *domain.Comparison, assignments []domain.BattleAssignment) error {
	log := slog.With("battle_id", id)

	artifactURL := cmp.ArtifactPath
	key := path.Join(s.cfg.ArtifactPrefix, id.String()+".pdf")
	if s.storage != nil {
		url, err := s.storage.Upload(ctx, cmp.ArtifactPath, key)
		if err != nil {
			log.Warn("battleService.persist: artifact upload failed, keeping local path", "key", key, "error", err)
		} else {
			artifactURL = url
		}
	}

	now := time.Now().UTC()
	status := domain.BattleStatusError
	runs := make([]domain.ProviderRun, 0, len(assignments))
	for _, a := range assignments {
		run := domain.ProviderRun{
			ID:        uuid.New(),
			BattleID:  id,
			Provider:  a.Provider,
			Label:     a.Label,
			CreatedAt: now,
		}
		if msg, failed := cmp.Failures[a.Provider]; failed {
			run.Error = msg
		}
		if res := cmp.Results[a.Provider]; res != nil {
			if res.TotalPages > 0 {
				status = domain.BattleStatusSuccess
			}
			run.TotalPages = res.TotalPages
			run.ProcessingTime = res.ProcessingTime
			run.Content = mustJSON(map[string]any{"pages": res.Pages})
			run.Usage = mustJSON(res.Usage)
			s.applyCost(log, &run, res)
		}
		if run.Content == nil {
			run.Content = json.RawMessage(`{"pages":[]}`)
		}
		if run.Usage == nil {
			run.Usage = json.RawMessage(`{}`)
		}
		runs = append(runs, run)
	}

	pageNumber := 0
	if input.PageNumber != nil {
		pageNumber = *input.PageNumber
	}
	record := &domain.BattleRecord{
		ID:           id,
		DocumentName: input.DocumentName,
		ArtifactURL:  artifactURL,
		PageNumber:   pageNumber,
		Status:       status,
		Metadata:     mustJSON(battle.Metadata(assignments, cmp.Configs)),
		CreatedAt:    now,
		Runs:         runs,
	}

	if err := s.repo.CreateBattle(ctx, record); err != nil {
		log.Error("battleService.persist: storing battle failed", "error", err)
		return fmt.Errorf("storing battle %s: %w", id, err)
	}
	log.Info("battleService.persist: battle stored", "status", status, "artifact", artifactURL)
	return nil
}

func (s *battleService) applyCost(log *slog.Logger, run *domain.ProviderRun, res *domain.ParseResult) {
	if s.pricing == nil {
		return
	}
	cost, err := pricing.Calculate(res.Provider, res.Usage, s.pricing)
	if err != nil {
		log.Debug("battleService.persist: cost unavailable", "provider", res.Provider, "error", err)
		return
	}
	credits, usd := cost.Credits, cost.TotalUSD
	run.CostCredits = &credits
	run.CostUSD = &usd
}

func (s *battleService) SubmitFeedback(ctx context.Context, input *FeedbackInput) (*FeedbackResult, error) {
	record, err := s.findPersisted(ctx, input.BattleID)
	if err != nil {
		return nil, err
	}

	assignments := battle.Assignments(record)
	labels, err := battle.ResolveLabels(battle.Choice{
		Labels:     input.PreferredLabels,
		Preference: input.Preference,
	}, assignments)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fb := &domain.Feedback{
		ID:              uuid.New(),
		BattleID:        input.BattleID,
		PreferredLabels: labels,
		Comment:         input.Comment,
		RevealedAt:      &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.UpsertFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("storing feedback for battle %s: %w", input.BattleID, err)
	}

	slog.Info("battleService.SubmitFeedback: feedback recorded", "battle_id", input.BattleID,
		"preferred_labels", labels, "state", domain.BattleStateFeedbackRecorded)

	return &FeedbackResult{
		BattleID:        input.BattleID,
		PreferredLabels: labels,
		Comment:         input.Comment,
		Assignments:     assignments,
	}, nil
}

// findPersisted looks a battle up, waiting out an in-flight persistence task
// when the first lookup misses.
func (s *battleService) findPersisted(ctx context.Context, id uuid.UUID) (*domain.BattleRecord, error) {
	record, err := s.repo.FindBattle(ctx, id)
	if err == nil {
		return record, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("looking up battle %s: %w", id, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.FeedbackWait)
	defer cancel()
	found, werr := s.pending.Wait(waitCtx, id)
	if found {
		slog.Debug("battleService.findPersisted: waited for pending persistence", "battle_id", id, "error", werr)
	}

	record, err = s.repo.FindBattle(ctx, id)
	if err == nil {
		return record, nil
	}
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBattleNotFound, id)
	}
	return nil, fmt.Errorf("looking up battle %s: %w", id, err)
}

func (s *battleService) GetBattle(ctx context.Context, id uuid.UUID) (*domain.BattleDetail, error) {
	record, err := s.repo.FindBattle(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBattleNotFound, id)
		}
		return nil, err
	}
	fb, err := s.findFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.BattleDetail{
		Battle:      record,
		Assignments: battle.Assignments(record),
		Feedback:    fb,
	}, nil
}

func (s *battleService) ListBattles(ctx context.Context, offset, limit int) ([]domain.BattleHistoryItem, int, error) {
	records, total, err := s.repo.ListBattles(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing battles: %w", err)
	}

	items := make([]domain.BattleHistoryItem, 0, len(records))
	for i := range records {
		rec := &records[i]
		assignments := battle.Assignments(rec)
		item := domain.BattleHistoryItem{
			BattleID:        rec.ID,
			DocumentName:    rec.DocumentName,
			PageNumber:      rec.PageNumber,
			Status:          rec.Status,
			Assignments:     assignments,
			PreferredLabels: []string{},
			Winner:          domain.WinnerNone,
			CreatedAt:       rec.CreatedAt,
		}
		fb, err := s.findFeedback(ctx, rec.ID)
		if err != nil {
			return nil, 0, err
		}
		if fb != nil {
			item.PreferredLabels = fb.PreferredLabels
			item.Comment = fb.Comment
			item.Winner = battle.Winner(fb.PreferredLabels, assignments)
		}
		items = append(items, item)
	}
	return items, total, nil
}

func (s *battleService) findFeedback(ctx context.Context, id uuid.UUID) (*domain.Feedback, error) {
	fb, err := s.repo.FindFeedback(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up feedback for battle %s: %w", id, err)
	}
	return fb, nil
}

func (s *battleService) Shutdown(ctx context.Context) error {
	slog.Info("battleService.Shutdown: waiting for pending persistence", "pending", s.pending.Len())
	return s.pending.Shutdown(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrBattleNotFound) || errors.Is(err, domain.ErrNotFound)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Warn("service.mustJSON: value not serializable", "error", err)
		return json.RawMessage(`null`)
	}
	return b
}
