package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ragrace/internal/domain"
	"ragrace/internal/parser"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
// Messages that carry request-specific detail (which label, which provider)
// pass the error text through.
func MapDomainError(err error) (status int, code, msg string) {
	var rle *parser.RateLimitError
	var pe *parser.ProviderError
	switch {
	case errors.Is(err, domain.ErrBattleNotFound):
		return http.StatusNotFound, "BATTLE_NOT_FOUND", "battle run not found"
	case errors.Is(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound, "FILE_NOT_FOUND", "file not found; upload it first"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadRequest, "UNKNOWN_PROVIDER", err.Error()
	case errors.Is(err, domain.ErrProviderNotConfigured):
		return http.StatusBadRequest, "PROVIDER_NOT_CONFIGURED", err.Error()
	case errors.Is(err, domain.ErrInvalidProviderConfig):
		return http.StatusBadRequest, "INVALID_PROVIDER_CONFIG", err.Error()
	case errors.Is(err, domain.ErrInvalidLabel):
		return http.StatusBadRequest, "INVALID_LABEL", err.Error()
	case errors.Is(err, domain.ErrMissingPreference):
		return http.StatusBadRequest, "MISSING_PREFERENCE", "provide either preferred_labels or preference"
	case errors.Is(err, domain.ErrInvalidPreference):
		return http.StatusBadRequest, "INVALID_PREFERENCE", "unsupported preference value"
	case errors.Is(err, domain.ErrMissingSecondSide):
		return http.StatusBadRequest, "MISSING_SECOND_SIDE", "battle missing second provider"
	case errors.Is(err, domain.ErrPageOutOfRange):
		return http.StatusBadRequest, "PAGE_OUT_OF_RANGE", err.Error()
	case errors.Is(err, domain.ErrBattleRequiresPage):
		return http.StatusBadRequest, "PAGE_REQUIRED", "battle mode requires a specific page selection"
	case errors.Is(err, domain.ErrNoProviders):
		return http.StatusBadRequest, "NO_PROVIDERS", "no valid providers available for parsing"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrPricingUnavailable):
		return http.StatusServiceUnavailable, "PRICING_UNAVAILABLE", "pricing table is not loaded"
	case errors.As(err, &rle):
		return http.StatusTooManyRequests, "PROVIDER_RATE_LIMITED", err.Error()
	case errors.Is(err, domain.ErrAllProvidersFailed), errors.As(err, &pe):
		return http.StatusBadGateway, "PROVIDER_FAILED", err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		slog.Error("handler: request failed", "request_id", requestID, "path", c.FullPath(), "error", err)
	}
	var rle *parser.RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(rle.RetryAfter.Seconds())))
	}
	RespondError(c, status, code, msg)
}

// parsePagination extracts offset and limit from query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
