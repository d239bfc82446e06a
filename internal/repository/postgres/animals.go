package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pastvra/pastvra/internal/domain/models"
)

const animalColumns = `id, farm_id, coalesce(chip_id, ''), coalesce(ear_tag, ''), coalesce(name, ''), coalesce(photo_path, ''), status`

func (r *Repository) UpsertAnimal(ctx context.Context, a models.Animal) error {
	if a.Status == "" {
		a.Status = models.AnimalAlive
	}
	err := r.withFarm(ctx, a.FarmID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO animals (id, farm_id, chip_id, ear_tag, name, photo_path, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET
				chip_id = EXCLUDED.chip_id,
				ear_tag = EXCLUDED.ear_tag,
				name = EXCLUDED.name,
				photo_path = EXCLUDED.photo_path,
				status = EXCLUDED.status`,
			a.ID, a.FarmID, nullIfEmpty(a.ChipID), nullIfEmpty(a.EarTag), nullIfEmpty(a.Name), nullIfEmpty(a.PhotoPath), string(a.Status),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert animal %s: %w", a.ID, err)
	}
	return nil
}

func (r *Repository) ListAnimals(ctx context.Context, farmID string) ([]models.Animal, error) {
	out := make([]models.Animal, 0)
	err := r.withFarm(ctx, farmID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+animalColumns+` FROM animals WHERE farm_id = $1 ORDER BY ear_tag, id`, farmID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAnimal(rows)
			if err != nil {
				return err
			}
			out = append(out, *a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list animals: %w", err)
	}
	return out, nil
}

func (r *Repository) FindAnimalByIdentifier(ctx context.Context, farmID, term string) (*models.Animal, error) {
	if term == "" {
		return nil, models.ErrAnimalNotFound
	}

	var found *models.Animal
	err := r.withFarm(ctx, farmID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+animalColumns+` FROM animals
			WHERE farm_id = $1 AND (chip_id = $2 OR ear_tag = $2)
			LIMIT 1`, farmID, term)
		a, err := scanAnimal(row)
		if err != nil {
			return err
		}
		found = a
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrAnimalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find animal: %w", err)
	}
	return found, nil
}

func (r *Repository) UpsertFarm(ctx context.Context, f models.Farm) error {
	err := r.withFarm(ctx, f.ID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO farms (id, name, hectares, low_gain_threshold_adg, overdue_days)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				hectares = EXCLUDED.hectares,
				low_gain_threshold_adg = EXCLUDED.low_gain_threshold_adg,
				overdue_days = EXCLUDED.overdue_days`,
			f.ID, f.Name, f.Hectares, f.LowGainThresholdADG, f.OverdueDays,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert farm %s: %w", f.ID, err)
	}
	return nil
}

func (r *Repository) GetFarm(ctx context.Context, farmID string) (*models.Farm, error) {
	var f models.Farm
	err := r.withFarm(ctx, farmID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT id, name, hectares, low_gain_threshold_adg, overdue_days FROM farms WHERE id = $1`, farmID).
			Scan(&f.ID, &f.Name, &f.Hectares, &f.LowGainThresholdADG, &f.OverdueDays)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrFarmNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get farm: %w", err)
	}
	return &f, nil
}

func scanAnimal(row pgx.Row) (*models.Animal, error) {
	var (
		a      models.Animal
		status string
	)
	if err := row.Scan(&a.ID, &a.FarmID, &a.ChipID, &a.EarTag, &a.Name, &a.PhotoPath, &status); err != nil {
		return nil, err
	}
	a.Status = models.AnimalStatus(status)
	return &a, nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
