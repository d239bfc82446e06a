// Package inventory folds append-only livestock movements into a running
// head-count ledger with currency totals.
package inventory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pastvra/pastvra/internal/domain/models"
)

// Amounts are the currency and quantity values derived from one movement.
type Amounts struct {
	NetDeltaQty         float64         `json:"net_delta_qty"`
	PurchasesUSD        decimal.Decimal `json:"purchases_usd"`
	SalesUSD            decimal.Decimal `json:"sales_usd"`
	TransfersUSD        decimal.Decimal `json:"transfers_usd"`
	CommissionUSD       decimal.Decimal `json:"commission_usd"`
	TotalAcquisitionUSD decimal.Decimal `json:"total_acquisition_usd"`
}

// Row is a movement placed in the ledger. It is never persisted.
type Row struct {
	models.InventoryMovementRecord
	Amounts
	EffectiveOpeningBalance float64 `json:"effective_opening_balance"`
	ClosingBalance          float64 `json:"closing_balance"`
}

// Totals aggregates the whole ledger. ClosingBalance is the last row's
// closing balance, not a sum.
type Totals struct {
	PurchasesQty        float64         `json:"purchases_qty"`
	SalesQty            float64         `json:"sales_qty"`
	TransfersQty        float64         `json:"transfers_qty"`
	NetDeltaQty         float64         `json:"net_delta_qty"`
	PurchasesUSD        decimal.Decimal `json:"purchases_usd"`
	SalesUSD            decimal.Decimal `json:"sales_usd"`
	TransfersUSD        decimal.Decimal `json:"transfers_usd"`
	FreightUSD          decimal.Decimal `json:"freight_usd"`
	CommissionUSD       decimal.Decimal `json:"commission_usd"`
	TotalAcquisitionUSD decimal.Decimal `json:"total_acquisition_usd"`
	ClosingBalance      float64         `json:"closing_balance"`
}

// Ledger is the ordered result of BuildLedger.
type Ledger struct {
	Rows   []Row  `json:"rows"`
	Totals Totals `json:"totals"`
}

// FilterOptionSet lists the distinct values available for ledger filters.
type FilterOptionSet struct {
	Destinations []string `json:"destinations"`
	Categories   []string `json:"categories"`
}

// BuildLedger orders records by movement date then creation time and folds
// them into running balances. Records sharing both keys keep their input order.
// A positive transfer quantity is an outflow.
func BuildLedger(records []models.InventoryMovementRecord) Ledger {
	ordered := make([]models.InventoryMovementRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.MovementDate.Equal(b.MovementDate) {
			return a.MovementDate.Before(b.MovementDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	ledger := Ledger{
		Rows:   make([]Row, 0, len(ordered)),
		Totals: zeroTotals(),
	}

	previousClosing := 0.0
	for _, rec := range ordered {
		opening := previousClosing
		if rec.OpeningBalance != nil {
			opening = *rec.OpeningBalance
		}
		closing := opening + qty(rec.PurchasesQty) - qty(rec.SalesQty) - qty(rec.TransfersQty)
		previousClosing = closing

		row := Row{
			InventoryMovementRecord: rec,
			Amounts:                 DeriveAmounts(rec),
			EffectiveOpeningBalance: opening,
			ClosingBalance:          closing,
		}
		ledger.Totals.add(row)
		ledger.Rows = append(ledger.Rows, row)
	}

	return ledger
}

// DeriveAmounts computes the per-row currency fields from quantities, unit
// value and commission rate. Missing inputs count as zero.
func DeriveAmounts(rec models.InventoryMovementRecord) Amounts {
	unit := money(rec.UnitValueUSD)
	purchases := decimal.NewFromFloat(qty(rec.PurchasesQty)).Mul(unit)
	commission := purchases.Mul(money(rec.CommissionRate))

	return Amounts{
		NetDeltaQty:         qty(rec.PurchasesQty) - qty(rec.SalesQty) - qty(rec.TransfersQty),
		PurchasesUSD:        purchases,
		SalesUSD:            decimal.NewFromFloat(qty(rec.SalesQty)).Mul(unit),
		TransfersUSD:        decimal.NewFromFloat(qty(rec.TransfersQty)).Mul(unit),
		CommissionUSD:       commission,
		TotalAcquisitionUSD: purchases.Add(money(rec.FreightUSD)).Add(commission),
	}
}

// FilterOptions returns the distinct non-empty destinations and categories in
// first-seen order.
func FilterOptions(records []models.InventoryMovementRecord) FilterOptionSet {
	opts := FilterOptionSet{Destinations: []string{}, Categories: []string{}}
	seenDest := make(map[string]struct{})
	seenCat := make(map[string]struct{})
	for _, rec := range records {
		if rec.Destination != nil && *rec.Destination != "" {
			if _, ok := seenDest[*rec.Destination]; !ok {
				seenDest[*rec.Destination] = struct{}{}
				opts.Destinations = append(opts.Destinations, *rec.Destination)
			}
		}
		if rec.Category != nil && *rec.Category != "" {
			if _, ok := seenCat[*rec.Category]; !ok {
				seenCat[*rec.Category] = struct{}{}
				opts.Categories = append(opts.Categories, *rec.Category)
			}
		}
	}
	return opts
}

// Money formats an amount as dollars with two decimals.
func Money(v decimal.Decimal) string {
	return "$" + v.StringFixed(2)
}

func (t *Totals) add(row Row) {
	t.PurchasesQty += qty(row.PurchasesQty)
	t.SalesQty += qty(row.SalesQty)
	t.TransfersQty += qty(row.TransfersQty)
	t.NetDeltaQty += row.NetDeltaQty
	t.PurchasesUSD = t.PurchasesUSD.Add(row.PurchasesUSD)
	t.SalesUSD = t.SalesUSD.Add(row.SalesUSD)
	t.TransfersUSD = t.TransfersUSD.Add(row.TransfersUSD)
	t.FreightUSD = t.FreightUSD.Add(money(row.FreightUSD))
	t.CommissionUSD = t.CommissionUSD.Add(row.CommissionUSD)
	t.TotalAcquisitionUSD = t.TotalAcquisitionUSD.Add(row.TotalAcquisitionUSD)
	t.ClosingBalance = row.ClosingBalance
}

func zeroTotals() Totals {
	return Totals{
		PurchasesUSD:        decimal.Zero,
		SalesUSD:            decimal.Zero,
		TransfersUSD:        decimal.Zero,
		FreightUSD:          decimal.Zero,
		CommissionUSD:       decimal.Zero,
		TotalAcquisitionUSD: decimal.Zero,
	}
}

func qty(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func money(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
