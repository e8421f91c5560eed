package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ragrace/internal/domain"
	"ragrace/internal/handler"
	"ragrace/internal/parser"
	"ragrace/internal/pricing"
	"ragrace/internal/service"
	"ragrace/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type parseFixture struct {
	uploads *mocks.MockUploadService
	compare *mocks.MockCompareService
	battles *mocks.MockBattleService
	h       *handler.ParseHandler
}

func newParseFixture(table pricing.Table) *parseFixture {
	f := &parseFixture{
		uploads: new(mocks.MockUploadService),
		compare: new(mocks.MockCompareService),
		battles: new(mocks.MockBattleService),
	}
	f.h = handler.NewParseHandler(f.uploads, f.compare, f.battles, table)
	return f
}

func jsonContext(t *testing.T, method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) (handler.APIResponse, map[string]any) {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

func TestParseHandler_Upload(t *testing.T) {
	f := newParseFixture(nil)
	f.uploads.On("Save", mock.Anything, mock.MatchedBy(func(in service.UploadInput) bool {
		return in.Filename == "doc.pdf" && in.Size == 8
	})).Return(&service.UploadedFile{FileID: "abc", Filename: "doc.pdf"}, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "doc.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/parse/upload", &body)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())

	f.h.Upload(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, "abc", data["file_id"])
	f.uploads.AssertExpectations(t)
}

func TestParseHandler_Upload_MissingFile(t *testing.T) {
	f := newParseFixture(nil)
	c, w := jsonContext(t, http.MethodPost, "/api/v1/parse/upload", map[string]string{})

	f.h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseHandler_PageCount(t *testing.T) {
	f := newParseFixture(nil)
	f.uploads.On("Resolve", "abc").Return("/uploads/abc.pdf", nil)
	f.compare.On("PageCount", mock.Anything, "/uploads/abc.pdf").Return(4, nil)

	c, w := jsonContext(t, http.MethodPost, "/api/v1/parse/page-count", map[string]string{"file_id": "abc"})
	f.h.PageCount(c)

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.EqualValues(t, 4, data["page_count"])
}

func TestParseHandler_PageCount_UnknownFile(t *testing.T) {
	f := newParseFixture(nil)
	f.uploads.On("Resolve", "nope").Return("", domain.ErrArtifactNotFound)

	c, w := jsonContext(t, http.MethodPost, "/api/v1/parse/page-count", map[string]string{"file_id": "nope"})
	f.h.PageCount(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, "FILE_NOT_FOUND", resp.Error.Code)
}

func TestParseHandler_Compare_ExplicitProviders(t *testing.T) {
	f := newParseFixture(nil)
	cmp := &domain.Comparison{
		Providers: []string{domain.ProviderReducto},
		Results: map[string]*domain.ParseResult{
			domain.ProviderReducto: {Provider: domain.ProviderReducto, TotalPages: 1, Pages: []domain.CanonicalPage{{PageNumber: 1, Markdown: "x"}}},
		},
	}
	f.uploads.On("Resolve", "abc").Return("/uploads/abc.pdf", nil)
	f.compare.On("Compare", mock.Anything, mock.MatchedBy(func(in *service.CompareInput) bool {
		return in.ArtifactPath == "/uploads/abc.pdf" && len(in.Providers) == 1
	})).Return(cmp, nil)
	f.compare.On("Release", cmp).Return()

	c, w := jsonContext(t, http.MethodPost, "/api/v1/parse/compare", map[string]any{
		"file_id":   "abc",
		"providers": []string{domain.ProviderReducto},
	})
	f.h.Compare(c)

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	results := data["results"].(map[string]any)
	assert.Contains(t, results, domain.ProviderReducto)
	assert.NotContains(t, data, "battle")
	f.battles.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
	f.compare.AssertCalled(t, "Release", cmp)
}

func TestParseHandler_Compare_BattleMode(t *testing.T) {
	f := newParseFixture(nil)
	battleID := uuid.New()
	assignments := []domain.BattleAssignment{
		{Label: "A", Provider: domain.ProviderReducto},
		{Label: "B", Provider: domain.ProviderLlamaIndex},
	}
	f.uploads.On("Resolve", "abc").Return("/uploads/abc.pdf", nil)
	f.battles.On("Start", mock.Anything, mock.MatchedBy(func(in *service.BattleInput) bool {
		return in.PageNumber != nil && *in.PageNumber == 2 && in.DocumentName == "abc.pdf"
	})).Return(&service.BattleResult{
		BattleID:    battleID,
		Assignments: assignments,
		Comparison: &domain.Comparison{Results: map[string]*domain.ParseResult{
			domain.ProviderReducto:    {Provider: domain.ProviderReducto, TotalPages: 1},
			domain.ProviderLlamaIndex: {Provider: domain.ProviderLlamaIndex, TotalPages: 1},
		}},
	}, nil)

	c, w := jsonContext(t, http.MethodPost, "/api/v1/parse/compare", map[string]any{
		"file_id":     "abc",
		"page_number": 2,
	})
	f.h.Compare(c)

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Len(t, data["results"], 2)
	battle := data["battle"].(map[string]any)
	assert.Equal(t, battleID.String(), battle["battle_id"])
	assert.Len(t, battle["assignments"], 2)
}

func TestParseHandler_Compare_BattleNeedsPage(t *testing.T) {
	f := newParseFixture(nil)
	f.uploads.On("Resolve", "abc").Return("/uploads/abc.pdf", nil)
	f.battles.On("Start", mock.Anything, mock.Anything).Return(nil, domain.ErrBattleRequiresPage)

	c, w := jsonContext(t, http.MethodPost, "/api/v1/parse/compare", map[string]any{"file_id": "abc"})
	f.h.Compare(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, "PAGE_REQUIRED", resp.Error.Code)
}

func TestParseHandler_Compare_RateLimited(t *testing.T) {
	f := newParseFixture(nil)
	f.uploads.On("Resolve", "abc").Return("/uploads/abc.pdf", nil)
	f.compare.On("Compare", mock.Anything, mock.Anything).
		Return(nil, parser.NewRateLimitError(domain.ProviderReducto, errors.New("slow down"), 30))

	c, w := jsonContext(t, http.MethodPost, "/api/v1/parse/compare", map[string]any{
		"file_id":   "abc",
		"providers": []string{domain.ProviderReducto},
	})
	f.h.Compare(c)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestParseHandler_CalculateCost(t *testing.T) {
	table := pricing.Table{
		domain.ProviderReducto: {USDPerCredit: 0.015, Models: []pricing.ModelPrice{{Mode: "standard", CreditsPerPage: 1}}},
	}
	f := newParseFixture(table)

	c, w := jsonContext(t, http.MethodPost, "/api/v1/parse/calculate-cost", map[string]any{
		"file_id": "abc",
		"results": map[string]any{
			domain.ProviderReducto: map[string]any{
				"provider":    domain.ProviderReducto,
				"total_pages": 2,
				"usage":       map[string]any{"num_pages": 2, "mode": "standard"},
			},
		},
	})
	f.h.CalculateCost(c)

	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.InDelta(t, 0.03, data["total_usd"], 1e-9)
	costs := data["costs"].(map[string]any)
	assert.Contains(t, costs, domain.ProviderReducto)
}

func TestParseHandler_CalculateCost_UnknownProvider(t *testing.T) {
	f := newParseFixture(pricing.Table{})

	c, w := jsonContext(t, http.MethodPost, "/api/v1/parse/calculate-cost", map[string]any{
		"results": map[string]any{"docling": map[string]any{"usage": map[string]any{}}},
	})
	f.h.CalculateCost(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseHandler_AvailableProviders(t *testing.T) {
	f := newParseFixture(nil)
	f.compare.On("AvailableProviders").Return([]service.ProviderStatus{{Name: domain.ProviderReducto, Configured: true}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/parse/available-providers", nil)
	f.h.AvailableProviders(c)

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Len(t, data["providers"], 1)
}
