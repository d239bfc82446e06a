package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pastvra/pastvra/internal/domain/models"
	"github.com/pastvra/pastvra/internal/repository"
)

const weightColumns = `id, farm_id, animal_id, measured_on, weight_kg, idempotency_key, source, created_by, created_at`

func (r *Repository) InsertWeight(ctx context.Context, rec models.AnimalWeightRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	err := r.withFarm(ctx, rec.FarmID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO animal_weights (`+weightColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			rec.ID, rec.FarmID, rec.AnimalID, models.DateOnly(rec.MeasuredOn), rec.WeightKg,
			rec.IdempotencyKey, rec.Source, rec.CreatedBy, rec.CreatedAt,
		)
		return err
	})
	if isUniqueViolation(err) {
		return models.ErrDuplicateWeight
	}
	if err != nil {
		return fmt.Errorf("insert weight: %w", err)
	}
	return nil
}

func (r *Repository) ListWeightsByAnimal(ctx context.Context, farmID, animalID string) ([]models.AnimalWeightRecord, error) {
	return r.queryWeights(ctx, farmID, `SELECT `+weightColumns+` FROM animal_weights
		WHERE farm_id = $1 AND animal_id = $2
		ORDER BY measured_on, created_at`, farmID, animalID)
}

func (r *Repository) ListWeightsByFarmYear(ctx context.Context, farmID string, year int) ([]models.AnimalWeightRecord, error) {
	start, end := repository.YearBounds(year)
	return r.queryWeights(ctx, farmID, `SELECT `+weightColumns+` FROM animal_weights
		WHERE farm_id = $1 AND measured_on >= $2 AND measured_on < $3
		ORDER BY animal_id, measured_on, created_at`, farmID, start, end)
}

func (r *Repository) queryWeights(ctx context.Context, farmID, query string, args ...any) ([]models.AnimalWeightRecord, error) {
	out := make([]models.AnimalWeightRecord, 0)
	err := r.withFarm(ctx, farmID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var w models.AnimalWeightRecord
			if err := rows.Scan(&w.ID, &w.FarmID, &w.AnimalID, &w.MeasuredOn, &w.WeightKg,
				&w.IdempotencyKey, &w.Source, &w.CreatedBy, &w.CreatedAt); err != nil {
				return err
			}
			w.MeasuredOn = models.DateOnly(w.MeasuredOn)
			out = append(out, w)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query weights: %w", err)
	}
	return out, nil
}
