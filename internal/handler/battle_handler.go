package handler

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ragrace/internal/battleexport"
	"ragrace/internal/domain"
	"ragrace/internal/service"
)

// exportPageSize bounds each history page fetched while exporting.
const exportPageSize = 100

// BattleHandler handles battle feedback and history endpoints.
type BattleHandler struct {
	battles service.BattleService
}

// NewBattleHandler creates a new BattleHandler.
func NewBattleHandler(battles service.BattleService) *BattleHandler {
	return &BattleHandler{battles: battles}
}

type feedbackRequest struct {
	BattleID        string                  `json:"battle_id" binding:"required"`
	Preference      domain.BattlePreference `json:"preference"`
	PreferredLabels *[]string               `json:"preferred_labels"`
	Comment         string                  `json:"comment"`
}

// Feedback handles POST /api/v1/parse/battle-feedback
func (h *BattleHandler) Feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	id, err := uuid.Parse(req.BattleID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid battle ID")
		return
	}

	res, err := h.battles.SubmitFeedback(c.Request.Context(), &service.FeedbackInput{
		BattleID:        id,
		PreferredLabels: req.PreferredLabels,
		Preference:      req.Preference,
		Comment:         strings.TrimSpace(req.Comment),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, res)
}

// List handles GET /api/v1/parse/battles
func (h *BattleHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)
	items, total, err := h.battles.ListBattles(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, items, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/parse/battles/:id
func (h *BattleHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid battle ID")
		return
	}
	detail, err := h.battles.GetBattle(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, detail)
}

// Export handles GET /api/v1/parse/battles/export?format=csv|xlsx
func (h *BattleHandler) Export(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", battleexport.FormatCSV))
	if format != battleexport.FormatCSV && format != battleexport.FormatXLSX {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or xlsx")
		return
	}

	items, err := h.collect(c)
	if err != nil {
		HandleError(c, err)
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == battleexport.FormatXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		if err := battleexport.WriteXLSX(&buf, items); err != nil {
			HandleError(c, err)
			return
		}
	} else {
		buf.Write(battleexport.BOM)
		w := battleexport.NewWriter(&buf)
		if err := w.WriteHeader(); err != nil {
			HandleError(c, err)
			return
		}
		if err := w.WriteBattles(items); err != nil {
			HandleError(c, err)
			return
		}
		w.Flush()
		if err := w.Error(); err != nil {
			HandleError(c, err)
			return
		}
	}

	filename := battleexport.BuildFilename("battles", format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *BattleHandler) collect(c *gin.Context) ([]domain.BattleHistoryItem, error) {
	var all []domain.BattleHistoryItem
	for offset := 0; ; offset += exportPageSize {
		items, total, err := h.battles.ListBattles(c.Request.Context(), offset, exportPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < exportPageSize || offset+len(items) >= total {
			return all, nil
		}
	}
}
