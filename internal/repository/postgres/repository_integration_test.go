//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/pastvra/pastvra/internal/domain/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("pastvra"),
		postgrescontainer.WithUsername("pastvra"),
		postgrescontainer.WithPassword("pastvra"),
		postgrescontainer.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pg)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := Connect(ctx, connStr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(ctx) })

	// Applying twice must be harmless.
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func TestInsertWeightIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	rec := models.AnimalWeightRecord{
		FarmID:         "farm-1",
		AnimalID:       "a1",
		MeasuredOn:     time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
		WeightKg:       250,
		IdempotencyKey: uuid.NewString(),
		Source:         models.SourceOfflineSync,
		CreatedBy:      "op-1",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.InsertWeight(ctx, rec))
	require.ErrorIs(t, repo.InsertWeight(ctx, rec), models.ErrDuplicateWeight)

	// Same key on another farm is a different record.
	other := rec
	other.FarmID = "farm-2"
	require.NoError(t, repo.InsertWeight(ctx, other))

	history, err := repo.ListWeightsByAnimal(ctx, "farm-1", "a1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, rec.IdempotencyKey, history[0].IdempotencyKey)
}

func TestWeightsAreOrderedAndScopedByYear(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for i, d := range []time.Time{
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	} {
		require.NoError(t, repo.InsertWeight(ctx, models.AnimalWeightRecord{
			FarmID: "farm-1", AnimalID: "a1", MeasuredOn: d, WeightKg: float64(200 + i),
			IdempotencyKey: uuid.NewString(), Source: models.SourceAPI, CreatedAt: time.Now().UTC(),
		}))
	}

	all, err := repo.ListWeightsByAnimal(ctx, "farm-1", "a1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, 2024, all[0].MeasuredOn.Year())
	require.Equal(t, time.June, all[2].MeasuredOn.Month())

	year, err := repo.ListWeightsByFarmYear(ctx, "farm-1", 2025)
	require.NoError(t, err)
	require.Len(t, year, 2)
}

func TestAnimalsFarmsAndMovements(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	require.NoError(t, repo.UpsertFarm(ctx, models.Farm{ID: "farm-1", Name: "La Esperanza", LowGainThresholdADG: 0.4, OverdueDays: 30}))
	farm, err := repo.GetFarm(ctx, "farm-1")
	require.NoError(t, err)
	require.Equal(t, 30, farm.OverdueDays)
	_, err = repo.GetFarm(ctx, "farm-9")
	require.ErrorIs(t, err, models.ErrFarmNotFound)

	require.NoError(t, repo.UpsertAnimal(ctx, models.Animal{ID: "a1", FarmID: "farm-1", ChipID: "chip-1", EarTag: "T-1"}))
	found, err := repo.FindAnimalByIdentifier(ctx, "farm-1", "T-1")
	require.NoError(t, err)
	require.Equal(t, models.AnimalAlive, found.Status)
	_, err = repo.FindAnimalByIdentifier(ctx, "farm-2", "T-1")
	require.ErrorIs(t, err, models.ErrAnimalNotFound)

	dest := "Feria"
	qty := 10.0
	unit := decimal.RequireFromString("455.25")
	require.NoError(t, repo.InsertMovement(ctx, models.InventoryMovementRecord{
		FarmID: "farm-1", MovementDate: time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC),
		Destination: &dest, PurchasesQty: &qty, UnitValueUSD: &unit, Source: models.SourceAPI, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, repo.InsertMovement(ctx, models.InventoryMovementRecord{
		FarmID: "farm-1", MovementDate: time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
		Source: models.SourceAPI, CreatedAt: time.Now().UTC(),
	}))

	all, err := repo.ListMovements(ctx, models.MovementFilter{FarmID: "farm-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 1, all[0].MovementDate.Day())

	filtered, err := repo.ListMovements(ctx, models.MovementFilter{FarmID: "farm-1", Destination: &dest})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.True(t, unit.Equal(*filtered[0].UnitValueUSD))
	require.Nil(t, filtered[0].FreightUSD)
}
