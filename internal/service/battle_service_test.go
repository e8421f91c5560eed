package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ragrace/internal/battle"
	"ragrace/internal/domain"
	"ragrace/internal/pricing"
	"ragrace/internal/service"
	"ragrace/mocks"
)

// keepOrder is a Shuffler that leaves providers where they are.
func keepOrder(int, func(i, j int)) {}

type battleFixture struct {
	compare *mocks.MockCompareService
	repo    *mocks.MockBattleRepo
	storage *mocks.MockArtifactStorage
	pending *battle.PendingRegistry
	svc     service.BattleService
}

func newBattleFixture(t *testing.T, table pricing.Table) *battleFixture {
	t.Helper()
	f := &battleFixture{
		compare: new(mocks.MockCompareService),
		repo:    new(mocks.MockBattleRepo),
		storage: new(mocks.MockArtifactStorage),
		pending: battle.NewPendingRegistry(),
	}
	f.svc = service.NewBattleService(f.compare, f.repo, f.storage, table, f.pending, service.BattleConfig{
		DefaultProviders:   []string{domain.ProviderLlamaIndex, domain.ProviderReducto},
		FeedbackWait:       200 * time.Millisecond,
		PersistenceTimeout: time.Second,
		ArtifactPrefix:     "user-upload",
		Shuffler:           keepOrder,
	})
	return f
}

func storedBattle(id uuid.UUID) *domain.BattleRecord {
	md, _ := json.Marshal(battle.Metadata([]domain.BattleAssignment{
		{Label: "A", Provider: domain.ProviderLlamaIndex},
		{Label: "B", Provider: domain.ProviderReducto},
	}, nil))
	return &domain.BattleRecord{
		ID:           id,
		DocumentName: "report.pdf",
		PageNumber:   1,
		Status:       domain.BattleStatusSuccess,
		Metadata:     md,
		CreatedAt:    time.Now(),
	}
}

func TestBattleService_Start_RequiresPage(t *testing.T) {
	f := newBattleFixture(t, nil)

	_, err := f.svc.Start(context.Background(), &service.BattleInput{ArtifactPath: "/tmp/doc.pdf"})

	assert.ErrorIs(t, err, domain.ErrBattleRequiresPage)
	f.compare.AssertNotCalled(t, "Compare", mock.Anything, mock.Anything)
}

func TestBattleService_Start_PersistsInBackground(t *testing.T) {
	table := pricing.Table{
		domain.ProviderReducto: {USDPerCredit: 0.015},
	}
	f := newBattleFixture(t, table)
	page := 3
	cmp := &domain.Comparison{
		ArtifactPath: "/tmp/page-3.pdf",
		Derived:      true,
		PageNumber:   &page,
		Providers:    []string{domain.ProviderLlamaIndex, domain.ProviderReducto},
		Configs:      map[string]map[string]any{domain.ProviderLlamaIndex: {}, domain.ProviderReducto: {}},
		Results: map[string]*domain.ParseResult{
			domain.ProviderLlamaIndex: parsed(domain.ProviderLlamaIndex, 1),
			domain.ProviderReducto:    parsed(domain.ProviderReducto, 1),
		},
	}

	f.compare.On("Compare", mock.Anything, mock.MatchedBy(func(in *service.CompareInput) bool {
		return in.PageNumber != nil && *in.PageNumber == 3 &&
			assert.ObjectsAreEqual([]string{domain.ProviderLlamaIndex, domain.ProviderReducto}, in.Providers)
	})).Return(cmp, nil)
	f.compare.On("Release", cmp).Return()
	f.storage.On("Upload", mock.Anything, "/tmp/page-3.pdf", mock.AnythingOfType("string")).
		Return("s3://battles/user-upload/x.pdf", nil)

	var stored *domain.BattleRecord
	f.repo.On("CreateBattle", mock.Anything, mock.AnythingOfType("*domain.BattleRecord")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.BattleRecord) }).
		Return(nil)

	res, err := f.svc.Start(context.Background(), &service.BattleInput{
		ArtifactPath: "/tmp/doc.pdf",
		DocumentName: "report.pdf",
		PageNumber:   &page,
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.Shutdown(context.Background()))

	assert.Equal(t, []domain.BattleAssignment{
		{Label: "A", Provider: domain.ProviderLlamaIndex},
		{Label: "B", Provider: domain.ProviderReducto},
	}, res.Assignments)
	require.NotNil(t, stored)
	assert.Equal(t, res.BattleID, stored.ID)
	assert.Equal(t, "s3://battles/user-upload/x.pdf", stored.ArtifactURL)
	assert.Equal(t, 3, stored.PageNumber)
	assert.Equal(t, domain.BattleStatusSuccess, stored.Status)
	require.Len(t, stored.Runs, 2)
	assert.Equal(t, "A", stored.Runs[0].Label)
	assert.Equal(t, domain.ProviderLlamaIndex, stored.Runs[0].Provider)
	assert.Equal(t, "B", stored.Runs[1].Label)
	require.NotNil(t, stored.Runs[1].CostCredits)
	assert.InDelta(t, 0.015, *stored.Runs[1].CostUSD, 1e-9)
	assert.Equal(t, stored.Runs[0].BattleID, stored.ID)

	f.storage.AssertCalled(t, "Upload", mock.Anything, "/tmp/page-3.pdf", "user-upload/"+res.BattleID.String()+".pdf")
	f.compare.AssertCalled(t, "Release", cmp)
	assert.Equal(t, 0, f.pending.Len())
}

func TestBattleService_Start_UploadFailureKeepsLocalPath(t *testing.T) {
	f := newBattleFixture(t, nil)
	page := 1
	cmp := &domain.Comparison{
		ArtifactPath: "/tmp/page-1.pdf",
		PageNumber:   &page,
		Results: map[string]*domain.ParseResult{
			domain.ProviderLlamaIndex: {Provider: domain.ProviderLlamaIndex},
		},
		Failures: map[string]string{domain.ProviderReducto: "timeout"},
	}
	f.compare.On("Compare", mock.Anything, mock.Anything).Return(cmp, nil)
	f.compare.On("Release", cmp).Return()
	f.storage.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket missing"))

	var stored *domain.BattleRecord
	f.repo.On("CreateBattle", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.BattleRecord) }).
		Return(nil)

	_, err := f.svc.Start(context.Background(), &service.BattleInput{ArtifactPath: "/tmp/doc.pdf", PageNumber: &page})
	require.NoError(t, err)
	require.NoError(t, f.svc.Shutdown(context.Background()))

	require.NotNil(t, stored)
	assert.Equal(t, "/tmp/page-1.pdf", stored.ArtifactURL)
	assert.Equal(t, domain.BattleStatusError, stored.Status)
	assert.Equal(t, "timeout", stored.Runs[1].Error)
	assert.JSONEq(t, `{"pages":[]}`, string(stored.Runs[1].Content))
	assert.Nil(t, stored.Runs[0].CostUSD)
}

func TestBattleService_Start_CompareError(t *testing.T) {
	f := newBattleFixture(t, nil)
	page := 1
	f.compare.On("Compare", mock.Anything, mock.Anything).Return(nil, domain.ErrProviderNotConfigured)

	_, err := f.svc.Start(context.Background(), &service.BattleInput{ArtifactPath: "/tmp/doc.pdf", PageNumber: &page})

	assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)
	assert.Equal(t, 0, f.pending.Len())
}

func TestBattleService_SubmitFeedback_Preference(t *testing.T) {
	f := newBattleFixture(t, nil)
	id := uuid.New()
	f.repo.On("FindBattle", mock.Anything, id).Return(storedBattle(id), nil)

	var saved *domain.Feedback
	f.repo.On("UpsertFeedback", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.Feedback) }).
		Return(nil)

	res, err := f.svc.SubmitFeedback(context.Background(), &service.FeedbackInput{
		BattleID:   id,
		Preference: domain.PreferenceBBetter,
		Comment:    "cleaner tables",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, res.PreferredLabels)
	assert.Len(t, res.Assignments, 2)
	require.NotNil(t, saved)
	assert.Equal(t, id, saved.BattleID)
	assert.Equal(t, "cleaner tables", saved.Comment)
	assert.NotNil(t, saved.RevealedAt)
}

func TestBattleService_SubmitFeedback_LabelsWin(t *testing.T) {
	f := newBattleFixture(t, nil)
	id := uuid.New()
	f.repo.On("FindBattle", mock.Anything, id).Return(storedBattle(id), nil)
	f.repo.On("UpsertFeedback", mock.Anything, mock.Anything).Return(nil)

	labels := []string{"b", "a", "B"}
	res, err := f.svc.SubmitFeedback(context.Background(), &service.FeedbackInput{
		BattleID:        id,
		PreferredLabels: &labels,
		Preference:      domain.PreferenceBothBad,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, res.PreferredLabels)
}

func TestBattleService_SubmitFeedback_BothBad(t *testing.T) {
	f := newBattleFixture(t, nil)
	id := uuid.New()
	f.repo.On("FindBattle", mock.Anything, id).Return(storedBattle(id), nil)
	f.repo.On("UpsertFeedback", mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.SubmitFeedback(context.Background(), &service.FeedbackInput{BattleID: id, Preference: domain.PreferenceBothBad})

	require.NoError(t, err)
	assert.NotNil(t, res.PreferredLabels)
	assert.Empty(t, res.PreferredLabels)
}

func TestBattleService_SubmitFeedback_InvalidLabel(t *testing.T) {
	f := newBattleFixture(t, nil)
	id := uuid.New()
	f.repo.On("FindBattle", mock.Anything, id).Return(storedBattle(id), nil)

	labels := []string{"C"}
	_, err := f.svc.SubmitFeedback(context.Background(), &service.FeedbackInput{BattleID: id, PreferredLabels: &labels})

	assert.ErrorIs(t, err, domain.ErrInvalidLabel)
	f.repo.AssertNotCalled(t, "UpsertFeedback", mock.Anything, mock.Anything)
}

func TestBattleService_SubmitFeedback_WaitsForPendingPersistence(t *testing.T) {
	f := newBattleFixture(t, nil)
	id := uuid.New()
	f.repo.On("FindBattle", mock.Anything, id).Return(nil, domain.ErrBattleNotFound).Once()
	f.repo.On("FindBattle", mock.Anything, id).Return(storedBattle(id), nil).Once()
	f.repo.On("UpsertFeedback", mock.Anything, mock.Anything).Return(nil)

	persisted := make(chan struct{})
	f.pending.Track(id, func() error {
		time.Sleep(30 * time.Millisecond)
		close(persisted)
		return nil
	})

	res, err := f.svc.SubmitFeedback(context.Background(), &service.FeedbackInput{BattleID: id, Preference: domain.PreferenceABetter})

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.PreferredLabels)
	select {
	case <-persisted:
	default:
		t.Fatal("feedback returned before persistence finished")
	}
	f.repo.AssertNumberOfCalls(t, "FindBattle", 2)
}

func TestBattleService_SubmitFeedback_UnknownBattle(t *testing.T) {
	f := newBattleFixture(t, nil)
	id := uuid.New()
	f.repo.On("FindBattle", mock.Anything, id).Return(nil, domain.ErrBattleNotFound)

	_, err := f.svc.SubmitFeedback(context.Background(), &service.FeedbackInput{BattleID: id, Preference: domain.PreferenceABetter})

	assert.ErrorIs(t, err, domain.ErrBattleNotFound)
	f.repo.AssertNotCalled(t, "UpsertFeedback", mock.Anything, mock.Anything)
}

func TestBattleService_SubmitFeedback_MissingPreference(t *testing.T) {
	f := newBattleFixture(t, nil)
	id := uuid.New()
	f.repo.On("FindBattle", mock.Anything, id).Return(storedBattle(id), nil)

	_, err := f.svc.SubmitFeedback(context.Background(), &service.FeedbackInput{BattleID: id})

	assert.ErrorIs(t, err, domain.ErrMissingPreference)
}

func TestBattleService_GetBattle(t *testing.T) {
	f := newBattleFixture(t, nil)
	id := uuid.New()
	f.repo.On("FindBattle", mock.Anything, id).Return(storedBattle(id), nil)
	f.repo.On("FindFeedback", mock.Anything, id).Return(nil, domain.ErrNotFound)

	detail, err := f.svc.GetBattle(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, id, detail.Battle.ID)
	assert.Len(t, detail.Assignments, 2)
	assert.Nil(t, detail.Feedback)
}

func TestBattleService_GetBattle_NotFound(t *testing.T) {
	f := newBattleFixture(t, nil)
	id := uuid.New()
	f.repo.On("FindBattle", mock.Anything, id).Return(nil, domain.ErrBattleNotFound)

	_, err := f.svc.GetBattle(context.Background(), id)

	assert.ErrorIs(t, err, domain.ErrBattleNotFound)
}

func TestBattleService_ListBattles_Winner(t *testing.T) {
	f := newBattleFixture(t, nil)
	decided, tied, open := uuid.New(), uuid.New(), uuid.New()
	f.repo.On("ListBattles", mock.Anything, 0, 20).Return([]domain.BattleRecord{
		*storedBattle(decided), *storedBattle(tied), *storedBattle(open),
	}, 3, nil)
	f.repo.On("FindFeedback", mock.Anything, decided).Return(&domain.Feedback{BattleID: decided, PreferredLabels: []string{"B"}, Comment: "sharper"}, nil)
	f.repo.On("FindFeedback", mock.Anything, tied).Return(&domain.Feedback{BattleID: tied, PreferredLabels: []string{"A", "B"}}, nil)
	f.repo.On("FindFeedback", mock.Anything, open).Return(nil, domain.ErrNotFound)

	items, total, err := f.svc.ListBattles(context.Background(), 0, 20)

	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, domain.ProviderReducto, items[0].Winner)
	assert.Equal(t, "sharper", items[0].Comment)
	assert.Equal(t, domain.WinnerTie, items[1].Winner)
	assert.Equal(t, domain.WinnerNone, items[2].Winner)
	assert.Empty(t, items[2].PreferredLabels)
}
