// Package repository declares the authoritative store port shared by the
// MongoDB and PostgreSQL adapters.
package repository

import (
	"context"
	"time"

	"github.com/pastvra/pastvra/internal/domain/models"
)

// Store is the authoritative persistence contract.
//
// InsertWeight is the idempotent-insert primitive the reconciler depends on:
// a second insert with the same (FarmID, IdempotencyKey) must fail with
// models.ErrDuplicateWeight and leave the first record untouched. Stores
// assign ID when it is empty.
type Store interface {
	InsertWeight(ctx context.Context, rec models.AnimalWeightRecord) error
	// ListWeightsByAnimal returns the history ascending by MeasuredOn, then CreatedAt.
	ListWeightsByAnimal(ctx context.Context, farmID, animalID string) ([]models.AnimalWeightRecord, error)
	ListWeightsByFarmYear(ctx context.Context, farmID string, year int) ([]models.AnimalWeightRecord, error)

	UpsertAnimal(ctx context.Context, animal models.Animal) error
	ListAnimals(ctx context.Context, farmID string) ([]models.Animal, error)
	// FindAnimalByIdentifier matches chip id or ear tag within the farm and
	// returns models.ErrAnimalNotFound on a miss.
	FindAnimalByIdentifier(ctx context.Context, farmID, term string) (*models.Animal, error)

	UpsertFarm(ctx context.Context, farm models.Farm) error
	// GetFarm returns models.ErrFarmNotFound when the farm has no stored configuration.
	GetFarm(ctx context.Context, farmID string) (*models.Farm, error)

	InsertMovement(ctx context.Context, rec models.InventoryMovementRecord) error
	// ListMovements applies the filter and orders by MovementDate, then CreatedAt.
	ListMovements(ctx context.Context, filter models.MovementFilter) ([]models.InventoryMovementRecord, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// YearBounds returns the half-open range [start, end) covering year in UTC.
func YearBounds(year int) (start, end time.Time) {
	start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
