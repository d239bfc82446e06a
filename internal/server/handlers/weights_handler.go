// Package handlers adapts the weight and reporting services to gin.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/service/weights"
)

// WeightService is the weights service as seen by the HTTP layer.
type WeightService interface {
	Record(ctx context.Context, in weights.RecordInput) (*models.AnimalWeightRecord, error)
	Lookup(ctx context.Context, farmID, term string) (*models.Animal, []models.WeightPoint, error)
	History(ctx context.Context, farmID, animalID string) ([]models.AnimalWeightRecord, error)
	Animals(ctx context.Context, farmID string) ([]models.Animal, error)
	SaveAnimal(ctx context.Context, animal models.Animal) (*models.Animal, error)
	Farm(ctx context.Context, farmID string) (models.Farm, error)
	SaveFarm(ctx context.Context, farm models.Farm) error
}

// RecordWeightRequest is the body of POST /farms/:farmID/weights.
type RecordWeightRequest struct {
	AnimalID       string  `json:"animal_id" binding:"required"`
	MeasuredOn     string  `json:"measured_on" binding:"required"`
	WeightKg       float64 `json:"weight_kg"`
	IdempotencyKey string  `json:"idempotency_key"`
	Source         string  `json:"source" binding:"omitempty,oneof=online offline_sync api"`
	CreatedBy      string  `json:"created_by"`
}

// LookupResponse is the body of GET /farms/:farmID/animals/lookup.
type LookupResponse struct {
	Animal  models.Animal        `json:"animal"`
	History []models.WeightPoint `json:"history"`
}

// WeightHandler serves weight ingest, lookups, the roster and farm settings.
type WeightHandler struct {
	svc    WeightService
	logger *zap.Logger
}

// NewWeightHandler constructs the HTTP handler adapter.
func NewWeightHandler(svc WeightService, logger *zap.Logger) *WeightHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeightHandler{svc: svc, logger: logger}
}

// RecordWeight ingests one measurement idempotently.
func (h *WeightHandler) RecordWeight(c *gin.Context) {
	var req RecordWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid weight payload", zap.Error(err))
		badRequest(c, err)
		return
	}

	measuredOn, err := models.ParseDate(req.MeasuredOn)
	if err != nil {
		badRequest(c, err)
		return
	}

	rec, err := h.svc.Record(c.Request.Context(), weights.RecordInput{
		FarmID:         c.Param("farmID"),
		AnimalID:       req.AnimalID,
		MeasuredOn:     measuredOn,
		WeightKg:       req.WeightKg,
		IdempotencyKey: req.IdempotencyKey,
		Source:         req.Source,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// LookupAnimal resolves ?term= against chip ids and ear tags.
func (h *WeightHandler) LookupAnimal(c *gin.Context) {
	term := c.Query("term")
	if term == "" {
		abortWithError(c, http.StatusBadRequest, CodeInvalidRequest, "term is required")
		return
	}

	animal, history, err := h.svc.Lookup(c.Request.Context(), c.Param("farmID"), term)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, LookupResponse{Animal: *animal, History: history})
}

// ListWeights returns an animal's history, oldest first.
func (h *WeightHandler) ListWeights(c *gin.Context) {
	records, err := h.svc.History(c.Request.Context(), c.Param("farmID"), c.Param("animalID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *WeightHandler) ListAnimals(c *gin.Context) {
	animals, err := h.svc.Animals(c.Request.Context(), c.Param("farmID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, animals)
}

// SaveAnimal upserts a roster entry of the farm in the path.
func (h *WeightHandler) SaveAnimal(c *gin.Context) {
	var animal models.Animal
	if err := c.ShouldBindJSON(&animal); err != nil {
		badRequest(c, err)
		return
	}
	animal.FarmID = c.Param("farmID")

	saved, err := h.svc.SaveAnimal(c.Request.Context(), animal)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *WeightHandler) GetFarm(c *gin.Context) {
	farm, err := h.svc.Farm(c.Request.Context(), c.Param("farmID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, farm)
}

// SaveFarm replaces the farm's name and alert thresholds.
func (h *WeightHandler) SaveFarm(c *gin.Context) {
	var farm models.Farm
	if err := c.ShouldBindJSON(&farm); err != nil {
		badRequest(c, err)
		return
	}
	farm.ID = c.Param("farmID")

	if err := h.svc.SaveFarm(c.Request.Context(), farm); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, farm)
}
