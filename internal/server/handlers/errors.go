package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/service/reporting"
)

// Error codes of the API error payload.
const (
	CodeDuplicateIdempotencyKey = "duplicate_idempotency_key"
	CodeAnimalNotFound          = "animal_not_found"
	CodeFarmNotFound            = "farm_not_found"
	CodeInvalidRequest          = "invalid_request"
	CodeExportDisabled          = "export_disabled"
	CodeUnauthorized            = "unauthorized"
	CodeInternal                = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message})
}

func badRequest(c *gin.Context, err error) {
	abortWithError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// logged and hidden behind a 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrDuplicateWeight):
		abortWithError(c, http.StatusConflict, CodeDuplicateIdempotencyKey, err.Error())
	case errors.Is(err, models.ErrAnimalNotFound):
		abortWithError(c, http.StatusNotFound, CodeAnimalNotFound, err.Error())
	case errors.Is(err, models.ErrFarmNotFound):
		abortWithError(c, http.StatusNotFound, CodeFarmNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidWeight),
		errors.Is(err, models.ErrInvalidMovement),
		errors.Is(err, models.ErrInvalidFarm),
		errors.Is(err, models.ErrInvalidAnimal):
		badRequest(c, err)
	case errors.Is(err, reporting.ErrExportDisabled):
		abortWithError(c, http.StatusServiceUnavailable, CodeExportDisabled, err.Error())
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
