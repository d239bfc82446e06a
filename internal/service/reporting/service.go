// Package reporting serves the read-side analytics: animal trends, the
// monthly weighing matrix, the inventory ledger and the Sheets export.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/analytics"
	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/inventory"
	"github.com/pastvra/pastvra/internal/repository"
	"github.com/pastvra/pastvra/internal/repository/sheets"
)

// ErrExportDisabled is returned by exports when no spreadsheet is configured.
var ErrExportDisabled = errors.New("sheets export is not configured")

// FarmSource resolves per-farm thresholds with server defaults applied.
type FarmSource interface {
	Farm(ctx context.Context, farmID string) (models.Farm, error)
}

// LedgerReport is the ledger for a filter plus the options available for the
// whole farm, so narrowing a filter never hides its alternatives.
type LedgerReport struct {
	inventory.Ledger
	Options inventory.FilterOptionSet `json:"filter_options"`
}

// Service exposes analytics over the authoritative store.
type Service struct {
	store  repository.Store
	farms  FarmSource
	sheet  sheets.Repository
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a new reporting service instance. sheet may be nil.
// Calendar decisions such as the current month are taken in loc, UTC when nil.
func NewService(store repository.Store, farms FarmSource, sheet sheets.Repository, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:  store,
		farms:  farms,
		sheet:  sheet,
		loc:    loc,
		logger: logger.Named("svc.reporting"),
		now:    time.Now,
	}
}

// Now is the current time in the reporting timezone.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Trend computes the per-point gains, tags and projection of one animal.
func (s *Service) Trend(ctx context.Context, farmID, animalID string) (analytics.Trend, error) {
	farm, err := s.farms.Farm(ctx, farmID)
	if err != nil {
		return analytics.Trend{}, err
	}

	records, err := s.store.ListWeightsByAnimal(ctx, farmID, animalID)
	if err != nil {
		return analytics.Trend{}, fmt.Errorf("load history: %w", err)
	}
	return analytics.AnimalTrend(models.Points(records), farm), nil
}

// MonthlyMatrix builds the yearly weighing matrix for every animal of the farm.
func (s *Service) MonthlyMatrix(ctx context.Context, farmID string, year int) ([]analytics.MonthlyRow, error) {
	animals, err := s.store.ListAnimals(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	weights, err := s.store.ListWeightsByFarmYear(ctx, farmID, year)
	if err != nil {
		return nil, fmt.Errorf("load weights for %d: %w", year, err)
	}

	return analytics.BuildMonthlyMatrix(animals, weights, year, s.Now()), nil
}

// Ledger folds the filtered movements into running balances.
func (s *Service) Ledger(ctx context.Context, filter models.MovementFilter) (*LedgerReport, error) {
	records, err := s.store.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load movements: %w", err)
	}

	all := records
	if filter != (models.MovementFilter{FarmID: filter.FarmID}) {
		all, err = s.store.ListMovements(ctx, models.MovementFilter{FarmID: filter.FarmID})
		if err != nil {
			return nil, fmt.Errorf("load filter options: %w", err)
		}
	}

	return &LedgerReport{
		Ledger:  inventory.BuildLedger(records),
		Options: inventory.FilterOptions(all),
	}, nil
}

// RecordMovement validates and appends one inventory movement.
func (s *Service) RecordMovement(ctx context.Context, rec models.InventoryMovementRecord) (*models.InventoryMovementRecord, error) {
	rec.ID = uuid.NewString()
	rec.MovementDate = models.DateOnly(rec.MovementDate)
	rec.CreatedAt = s.now().UTC()
	if rec.Source == "" {
		rec.Source = models.SourceAPI
	}

	if err := models.ValidateMovement(rec); err != nil {
		return nil, err
	}
	if err := s.store.InsertMovement(ctx, rec); err != nil {
		return nil, fmt.Errorf("store movement: %w", err)
	}

	s.logger.Info("inventory movement recorded",
		zap.String("farm_id", rec.FarmID),
		zap.String("id", rec.ID),
		zap.Time("movement_date", rec.MovementDate),
	)
	return &rec, nil
}
