package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragrace/internal/domain"
	"ragrace/internal/pricing"
	"ragrace/internal/service"
)

// ParseHandler handles upload, comparison and cost endpoints.
type ParseHandler struct {
	uploads service.UploadService
	compare service.CompareService
	battles service.BattleService
	pricing pricing.Table
}

// NewParseHandler creates a new ParseHandler. table may be nil when no
// pricing file is available; cost requests then fail with 503.
func NewParseHandler(
	uploads service.UploadService,
	compare service.CompareService,
	battles service.BattleService,
	table pricing.Table,
) *ParseHandler {
	return &ParseHandler{uploads: uploads, compare: compare, battles: battles, pricing: table}
}

type fileRequest struct {
	FileID string `json:"file_id" binding:"required"`
}

type compareRequest struct {
	FileID     string                    `json:"file_id" binding:"required"`
	Providers  []string                  `json:"providers"`
	Configs    map[string]map[string]any `json:"configs"`
	PageNumber *int                      `json:"page_number"`
	Filename   string                    `json:"filename"`
}

type battleInfo struct {
	BattleID    string                    `json:"battle_id"`
	Assignments []domain.BattleAssignment `json:"assignments"`
}

type compareResponse struct {
	FileID   string                         `json:"file_id"`
	Results  map[string]*domain.ParseResult `json:"results"`
	Failures map[string]string              `json:"failures,omitempty"`
	Battle   *battleInfo                    `json:"battle,omitempty"`
}

type costRequest struct {
	FileID  string                         `json:"file_id"`
	Results map[string]*domain.ParseResult `json:"results" binding:"required"`
}

type costResponse struct {
	FileID   string                         `json:"file_id"`
	Costs    map[string]domain.ProviderCost `json:"costs"`
	TotalUSD float64                        `json:"total_usd"`
}

// Upload handles POST /api/v1/parse/upload
func (h *ParseHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	up, err := h.uploads.Save(c.Request.Context(), service.UploadInput{
		File:     file,
		Filename: header.Filename,
		Size:     header.Size,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, up)
}

// PageCount handles POST /api/v1/parse/page-count
func (h *ParseHandler) PageCount(c *gin.Context) {
	var req fileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	path, err := h.uploads.Resolve(req.FileID)
	if err != nil {
		HandleError(c, err)
		return
	}
	n, err := h.compare.PageCount(c.Request.Context(), path)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"file_id":    req.FileID,
		"page_count": n,
		"filename":   req.FileID + ".pdf",
	})
}

// AvailableProviders handles GET /api/v1/parse/available-providers
func (h *ParseHandler) AvailableProviders(c *gin.Context) {
	RespondOK(c, gin.H{"providers": h.compare.AvailableProviders()})
}

// File handles GET /api/v1/parse/file/:file_id
func (h *ParseHandler) File(c *gin.Context) {
	fileID := c.Param("file_id")
	path, err := h.uploads.Resolve(fileID)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", "inline; filename="+fileID+".pdf")
	c.File(path)
}

// Compare handles POST /api/v1/parse/compare. Omitting providers starts a
// blind battle over the default providers.
func (h *ParseHandler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	path, err := h.uploads.Resolve(req.FileID)
	if err != nil {
		HandleError(c, err)
		return
	}
	if req.PageNumber != nil && *req.PageNumber < 1 {
		RespondError(c, http.StatusBadRequest, "INVALID_PAGE", "page_number must be 1 or greater")
		return
	}

	if len(req.Providers) == 0 {
		h.startBattle(c, &req, path)
		return
	}

	cmp, err := h.compare.Compare(c.Request.Context(), &service.CompareInput{
		ArtifactPath: path,
		Providers:    req.Providers,
		Configs:      req.Configs,
		PageNumber:   req.PageNumber,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	defer h.compare.Release(cmp)

	RespondOK(c, compareResponse{
		FileID:   req.FileID,
		Results:  cmp.Results,
		Failures: cmp.Failures,
	})
}

func (h *ParseHandler) startBattle(c *gin.Context, req *compareRequest, path string) {
	name := req.Filename
	if name == "" {
		name = req.FileID + ".pdf"
	}
	res, err := h.battles.Start(c.Request.Context(), &service.BattleInput{
		ArtifactPath: path,
		DocumentName: name,
		PageNumber:   req.PageNumber,
		Configs:      req.Configs,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, compareResponse{
		FileID:   req.FileID,
		Results:  res.Comparison.Results,
		Failures: res.Comparison.Failures,
		Battle: &battleInfo{
			BattleID:    res.BattleID.String(),
			Assignments: res.Assignments,
		},
	})
}

// CalculateCost handles POST /api/v1/parse/calculate-cost
func (h *ParseHandler) CalculateCost(c *gin.Context) {
	var req costRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	summary, err := pricing.CalculateAll(req.Results, h.pricing)
	if err != nil {
		HandleError(c, err)
		return
	}
	costs := make(map[string]domain.ProviderCost, len(summary.Costs))
	for _, cost := range summary.Costs {
		costs[cost.Provider] = cost
	}
	RespondOK(c, costResponse{FileID: req.FileID, Costs: costs, TotalUSD: summary.TotalUSD})
}
