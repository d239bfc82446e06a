// Package weights is the server side of weight capture: idempotent ingest,
// animal lookups and history reads over the authoritative store.
package weights

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/config"
	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/events"
	"github.com/pastvra/pastvra/internal/repository"
)

// LookupCache is the identifier cache in front of the store.
type LookupCache interface {
	Get(ctx context.Context, farmID, term string) (*models.Animal, bool)
	Set(ctx context.Context, farmID, term string, animal models.Animal)
	Invalidate(ctx context.Context, animal models.Animal)
}

// RecordInput is a weight submitted through the API.
type RecordInput struct {
	FarmID         string
	AnimalID       string
	MeasuredOn     time.Time
	WeightKg       float64
	IdempotencyKey string
	Source         string
	CreatedBy      string
}

// Service owns writes and reads of weight records.
type Service struct {
	store     repository.Store
	cache     LookupCache
	publisher events.Publisher
	defaults  config.FarmDefaults
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the weights service. cache and publisher may be nil.
func NewService(store repository.Store, cache LookupCache, publisher events.Publisher, defaults config.FarmDefaults, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		store:     store,
		cache:     cache,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger.Named("svc.weights"),
		now:       time.Now,
	}
}

// Record validates and inserts one measurement. A replayed idempotency key
// returns models.ErrDuplicateWeight and leaves the stored record unchanged.
func (s *Service) Record(ctx context.Context, in RecordInput) (*models.AnimalWeightRecord, error) {
	rec := models.AnimalWeightRecord{
		ID:             uuid.NewString(),
		FarmID:         in.FarmID,
		AnimalID:       in.AnimalID,
		MeasuredOn:     models.DateOnly(in.MeasuredOn),
		WeightKg:       in.WeightKg,
		IdempotencyKey: in.IdempotencyKey,
		Source:         in.Source,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      s.now().UTC(),
	}
	if rec.IdempotencyKey == "" {
		rec.IdempotencyKey = uuid.NewString()
	}
	if rec.Source == "" {
		rec.Source = models.SourceAPI
	}

	if err := models.ValidateWeight(rec); err != nil {
		ingestCounter.WithLabelValues(rec.Source, "invalid").Inc()
		return nil, err
	}

	err := s.store.InsertWeight(ctx, rec)
	switch {
	case errors.Is(err, models.ErrDuplicateWeight):
		ingestCounter.WithLabelValues(rec.Source, "duplicate").Inc()
		s.logger.Info("duplicate weight ignored",
			zap.String("farm_id", rec.FarmID), zap.String("idempotency_key", rec.IdempotencyKey))
		return nil, err
	case err != nil:
		ingestCounter.WithLabelValues(rec.Source, "error").Inc()
		return nil, fmt.Errorf("store weight: %w", err)
	}
	ingestCounter.WithLabelValues(rec.Source, "committed").Inc()

	if err := s.publisher.PublishWeightRecorded(ctx, rec); err != nil {
		s.logger.Warn("weight event not published", zap.String("id", rec.ID), zap.Error(err))
	}
	return &rec, nil
}

// FindAnimal resolves a chip id or ear tag, consulting the cache first.
func (s *Service) FindAnimal(ctx context.Context, farmID, term string) (*models.Animal, error) {
	if s.cache != nil {
		if a, ok := s.cache.Get(ctx, farmID, term); ok {
			return a, nil
		}
	}

	a, err := s.store.FindAnimalByIdentifier(ctx, farmID, term)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, farmID, term, *a)
	}
	return a, nil
}

// Lookup returns the animal and its history, newest first.
func (s *Service) Lookup(ctx context.Context, farmID, term string) (*models.Animal, []models.WeightPoint, error) {
	a, err := s.FindAnimal(ctx, farmID, term)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.store.ListWeightsByAnimal(ctx, farmID, a.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	history := models.Points(records)
	slices.Reverse(history)
	return a, history, nil
}

// History returns an animal's records, oldest first.
func (s *Service) History(ctx context.Context, farmID, animalID string) ([]models.AnimalWeightRecord, error) {
	return s.store.ListWeightsByAnimal(ctx, farmID, animalID)
}

// Animals returns the farm roster.
func (s *Service) Animals(ctx context.Context, farmID string) ([]models.Animal, error) {
	return s.store.ListAnimals(ctx, farmID)
}

// SaveAnimal creates or replaces a roster entry and drops its cache keys.
// Keys of identifiers that changed expire with the cache TTL.
func (s *Service) SaveAnimal(ctx context.Context, animal models.Animal) (*models.Animal, error) {
	if animal.ID == "" {
		animal.ID = uuid.NewString()
	}
	if animal.ChipID == "" && animal.EarTag == "" {
		return nil, fmt.Errorf("%w: chip id or ear tag required", models.ErrInvalidAnimal)
	}
	if err := s.store.UpsertAnimal(ctx, animal); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, animal)
	}
	return &animal, nil
}

// Farm returns the stored farm settings, filling missing thresholds with the
// server defaults. Unknown farms get the defaults alone.
func (s *Service) Farm(ctx context.Context, farmID string) (models.Farm, error) {
	farm, err := s.store.GetFarm(ctx, farmID)
	if errors.Is(err, models.ErrFarmNotFound) {
		return models.Farm{
			ID:                  farmID,
			LowGainThresholdADG: s.defaults.LowGainThresholdADG,
			OverdueDays:         s.defaults.OverdueDays,
		}, nil
	}
	if err != nil {
		return models.Farm{}, fmt.Errorf("load farm: %w", err)
	}

	if farm.LowGainThresholdADG <= 0 {
		farm.LowGainThresholdADG = s.defaults.LowGainThresholdADG
	}
	if farm.OverdueDays <= 0 {
		farm.OverdueDays = s.defaults.OverdueDays
	}
	return *farm, nil
}

// SaveFarm stores farm settings. Thresholds must be positive.
func (s *Service) SaveFarm(ctx context.Context, farm models.Farm) error {
	if farm.LowGainThresholdADG <= 0 || farm.OverdueDays <= 0 {
		return fmt.Errorf("%w: thresholds must be positive", models.ErrInvalidFarm)
	}
	return s.store.UpsertFarm(ctx, farm)
}
