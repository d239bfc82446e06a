package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/pastvra/pastvra/internal/domain/models"
)

const movementColumns = `id, farm_id, movement_date, partner_name, destination_name, category_name,
	opening_balance, purchases_qty, sales_qty, transfers_qty, unit_value_usd::text, observed_weight_kg,
	price_per_kg::text, kg_negotiated, freight_usd::text, commission_rate::text, notes, source, created_by, created_at`

func (r *Repository) InsertMovement(ctx context.Context, m models.InventoryMovementRecord) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	err := r.withFarm(ctx, m.FarmID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO inventory_movements (
				id, farm_id, movement_date, partner_name, destination_name, category_name,
				opening_balance, purchases_qty, sales_qty, transfers_qty, unit_value_usd, observed_weight_kg,
				price_per_kg, kg_negotiated, freight_usd, commission_rate, notes, source, created_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::text::numeric,$12,$13::text::numeric,$14,$15::text::numeric,$16::text::numeric,$17,$18,$19,$20)`,
			m.ID, m.FarmID, models.DateOnly(m.MovementDate), m.PartnerName, m.Destination, m.Category,
			m.OpeningBalance, m.PurchasesQty, m.SalesQty, m.TransfersQty, decimalArg(m.UnitValueUSD), m.ObservedWeightKg,
			decimalArg(m.PricePerKg), m.KgNegotiated, decimalArg(m.FreightUSD), decimalArg(m.CommissionRate),
			m.Notes, m.Source, m.CreatedBy, m.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert inventory movement: %w", err)
	}
	return nil
}

func (r *Repository) ListMovements(ctx context.Context, f models.MovementFilter) ([]models.InventoryMovementRecord, error) {
	where, args := movementWhere(f)

	out := make([]models.InventoryMovementRecord, 0)
	err := r.withFarm(ctx, f.FarmID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements
			WHERE `+where+`
			ORDER BY movement_date, created_at`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				m                               models.InventoryMovementRecord
				unitValue, perKg, freight, rate *string
			)
			if err := rows.Scan(&m.ID, &m.FarmID, &m.MovementDate, &m.PartnerName, &m.Destination, &m.Category,
				&m.OpeningBalance, &m.PurchasesQty, &m.SalesQty, &m.TransfersQty, &unitValue, &m.ObservedWeightKg,
				&perKg, &m.KgNegotiated, &freight, &rate, &m.Notes, &m.Source, &m.CreatedBy, &m.CreatedAt); err != nil {
				return err
			}
			if m.UnitValueUSD, err = parseDecimal(unitValue); err != nil {
				return err
			}
			if m.PricePerKg, err = parseDecimal(perKg); err != nil {
				return err
			}
			if m.FreightUSD, err = parseDecimal(freight); err != nil {
				return err
			}
			if m.CommissionRate, err = parseDecimal(rate); err != nil {
				return err
			}
			m.MovementDate = models.DateOnly(m.MovementDate)
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list inventory movements: %w", err)
	}
	return out, nil
}

// movementWhere builds the predicate for the optional filter fields. Date
// bounds are inclusive.
func movementWhere(f models.MovementFilter) (string, []any) {
	clauses := []string{"farm_id = $1"}
	args := []any{f.FarmID}

	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.From != nil {
		add("movement_date >= $%d", models.DateOnly(*f.From))
	}
	if f.To != nil {
		add("movement_date <= $%d", models.DateOnly(*f.To))
	}
	if f.Destination != nil {
		add("destination_name = $%d", *f.Destination)
	}
	if f.Category != nil {
		add("category_name = $%d", *f.Category)
	}
	return strings.Join(clauses, " AND "), args
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDecimal(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, fmt.Errorf("parse numeric %q: %w", *raw, err)
	}
	return &d, nil
}
