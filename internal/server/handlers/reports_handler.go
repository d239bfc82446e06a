package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/analytics"
	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/service/reporting"
)

// ReportService is the reporting service as seen by the HTTP layer.
type ReportService interface {
	Trend(ctx context.Context, farmID, animalID string) (analytics.Trend, error)
	MonthlyMatrix(ctx context.Context, farmID string, year int) ([]analytics.MonthlyRow, error)
	ExportMonthlyMatrix(ctx context.Context, farmID string, year int) error
	Ledger(ctx context.Context, filter models.MovementFilter) (*reporting.LedgerReport, error)
	RecordMovement(ctx context.Context, rec models.InventoryMovementRecord) (*models.InventoryMovementRecord, error)
	// Now is the current time in the reporting timezone.
	Now() time.Time
}

// MovementRequest is the body of POST /farms/:farmID/inventory/movements.
// Money fields accept JSON numbers or strings.
type MovementRequest struct {
	MovementDate     string           `json:"movement_date" binding:"required"`
	PartnerName      *string          `json:"partner_name"`
	Destination      *string          `json:"destination_name"`
	Category         *string          `json:"category_name"`
	OpeningBalance   *float64         `json:"opening_balance"`
	PurchasesQty     *float64         `json:"purchases_qty"`
	SalesQty         *float64         `json:"sales_qty"`
	TransfersQty     *float64         `json:"transfers_qty"`
	UnitValueUSD     *decimal.Decimal `json:"unit_value_usd"`
	ObservedWeightKg *float64         `json:"observed_weight_kg"`
	PricePerKg       *decimal.Decimal `json:"price_per_kg"`
	KgNegotiated     *float64         `json:"kg_negotiated"`
	FreightUSD       *decimal.Decimal `json:"freight_usd"`
	CommissionRate   *decimal.Decimal `json:"commission_rate"`
	Notes            *string          `json:"notes"`
	CreatedBy        string           `json:"created_by"`
}

// MatrixResponse is the body of GET /farms/:farmID/monthly-matrix.
type MatrixResponse struct {
	Year        int                    `json:"year"`
	MonthLabels [12]string             `json:"month_labels"`
	Rows        []analytics.MonthlyRow `json:"rows"`
}

// ReportHandler serves analytics reads and inventory writes.
type ReportHandler struct {
	svc    ReportService
	logger *zap.Logger
}

// NewReportHandler constructs the HTTP handler adapter.
func NewReportHandler(svc ReportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{svc: svc, logger: logger}
}

func (h *ReportHandler) Trend(c *gin.Context) {
	trend, err := h.svc.Trend(c.Request.Context(), c.Param("farmID"), c.Param("animalID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trend)
}

// MonthlyMatrix returns the matrix for ?year=, defaulting to the current year.
func (h *ReportHandler) MonthlyMatrix(c *gin.Context) {
	year, err := h.year(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	rows, err := h.svc.MonthlyMatrix(c.Request.Context(), c.Param("farmID"), year)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MatrixResponse{Year: year, MonthLabels: analytics.MonthLabels, Rows: rows})
}

// ExportMonthlyMatrix pushes the matrix for ?year= to the report spreadsheet.
func (h *ReportHandler) ExportMonthlyMatrix(c *gin.Context) {
	year, err := h.year(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.ExportMonthlyMatrix(c.Request.Context(), c.Param("farmID"), year); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// Ledger folds the movements selected by from, to, destination and category.
func (h *ReportHandler) Ledger(c *gin.Context) {
	filter := models.MovementFilter{FarmID: c.Param("farmID")}

	for param, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		parsed, err := models.ParseDate(raw)
		if err != nil {
			badRequest(c, fmt.Errorf("%s: %w", param, err))
			return
		}
		*target = &parsed
	}
	if v := c.Query("destination"); v != "" {
		filter.Destination = &v
	}
	if v := c.Query("category"); v != "" {
		filter.Category = &v
	}

	report, err := h.svc.Ledger(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// RecordMovement appends one inventory movement.
func (h *ReportHandler) RecordMovement(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid movement payload", zap.Error(err))
		badRequest(c, err)
		return
	}

	movementDate, err := models.ParseDate(req.MovementDate)
	if err != nil {
		badRequest(c, err)
		return
	}

	rec, err := h.svc.RecordMovement(c.Request.Context(), models.InventoryMovementRecord{
		FarmID:           c.Param("farmID"),
		MovementDate:     movementDate,
		PartnerName:      req.PartnerName,
		Destination:      req.Destination,
		Category:         req.Category,
		OpeningBalance:   req.OpeningBalance,
		PurchasesQty:     req.PurchasesQty,
		SalesQty:         req.SalesQty,
		TransfersQty:     req.TransfersQty,
		UnitValueUSD:     req.UnitValueUSD,
		ObservedWeightKg: req.ObservedWeightKg,
		PricePerKg:       req.PricePerKg,
		KgNegotiated:     req.KgNegotiated,
		FreightUSD:       req.FreightUSD,
		CommissionRate:   req.CommissionRate,
		Notes:            req.Notes,
		CreatedBy:        req.CreatedBy,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *ReportHandler) year(c *gin.Context) (int, error) {
	raw := c.Query("year")
	if raw == "" {
		return h.svc.Now().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		return 0, fmt.Errorf("year must be a four digit number, got %q", raw)
	}
	return year, nil
}
