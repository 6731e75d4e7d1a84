package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WeightUnit is the unit an inventory quantity is counted in.
type WeightUnit string

const (
	WeightUnitGram     WeightUnit = "g"
	WeightUnitKilogram WeightUnit = "kg"
)

// Valid reports whether u is a supported unit.
func (u WeightUnit) Valid() bool {
	return u == WeightUnitGram || u == WeightUnitKilogram
}

// LowStockThreshold is the quantity below which an item is reported as low
// stock.
var LowStockThreshold = decimal.NewFromInt(10)

// InventoryItem mirrors a row of the `inventory` table. Quantity is a
// decimal so fractional units (grams) are exact; it may be negative when
// an item has been oversold.
type InventoryItem struct {
	ID           uint64          `json:"id"`             // inventory.id
	Name         string          `json:"name"`           // inventory.name
	Category     string          `json:"category"`       // inventory.category
	Quantity     decimal.Decimal `json:"quantity"`       // inventory.quantity
	WeightUnit   WeightUnit      `json:"weight_unit"`    // inventory.weight_unit
	PricePerUnit decimal.Decimal `json:"price_per_unit"` // inventory.price_per_unit
	CreatedAt    time.Time       `json:"created_at"`     // inventory.created_at
	UpdatedAt    time.Time       `json:"updated_at"`     // inventory.updated_at
}

// Value is the stock valuation of the item (quantity × price).
func (i InventoryItem) Value() decimal.Decimal {
	return i.Quantity.Mul(i.PricePerUnit)
}
