package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryMovementRecord is one append-only entry of the livestock inventory.
// Quantities are head counts; nil means "not supplied" and folds as zero.
type InventoryMovementRecord struct {
	ID               string           `bson:"_id" json:"id"`
	FarmID           string           `bson:"farm_id" json:"farm_id" validate:"required"`
	MovementDate     time.Time        `bson:"movement_date" json:"movement_date" validate:"required"`
	PartnerName      *string          `bson:"partner_name,omitempty" json:"partner_name,omitempty"`
	Destination      *string          `bson:"destination_name,omitempty" json:"destination_name,omitempty"`
	Category         *string          `bson:"category_name,omitempty" json:"category_name,omitempty"`
	OpeningBalance   *float64         `bson:"opening_balance,omitempty" json:"opening_balance,omitempty"`
	PurchasesQty     *float64         `bson:"purchases_qty,omitempty" json:"purchases_qty,omitempty" validate:"omitempty,gte=0"`
	SalesQty         *float64         `bson:"sales_qty,omitempty" json:"sales_qty,omitempty" validate:"omitempty,gte=0"`
	TransfersQty     *float64         `bson:"transfers_qty,omitempty" json:"transfers_qty,omitempty"`
	UnitValueUSD     *decimal.Decimal `bson:"unit_value_usd,omitempty" json:"unit_value_usd,omitempty"`
	ObservedWeightKg *float64         `bson:"observed_weight_kg,omitempty" json:"observed_weight_kg,omitempty"`
	PricePerKg       *decimal.Decimal `bson:"price_per_kg,omitempty" json:"price_per_kg,omitempty"`
	KgNegotiated     *float64         `bson:"kg_negotiated,omitempty" json:"kg_negotiated,omitempty"`
	FreightUSD       *decimal.Decimal `bson:"freight_usd,omitempty" json:"freight_usd,omitempty"`
	CommissionRate   *decimal.Decimal `bson:"commission_rate,omitempty" json:"commission_rate,omitempty"`
	Notes            *string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Source           string           `bson:"source" json:"source"`
	CreatedBy        string           `bson:"created_by" json:"created_by"`
	CreatedAt        time.Time        `bson:"created_at" json:"created_at"`
}

// MovementFilter narrows inventory reads. Nil fields are not applied.
type MovementFilter struct {
	FarmID      string
	From        *time.Time
	To          *time.Time
	Destination *string
	Category    *string
}
