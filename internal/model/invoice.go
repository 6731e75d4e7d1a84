package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Column scales of the ledger tables. Money is stored with two decimal
// places, quantities with three.
const (
	MoneyPlaces    int32 = 2
	QuantityPlaces int32 = 3
)

// FitsScale reports whether d has no more than places decimal places.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Round(places).Equal(d)
}

// InvoiceStatus is the payment state of an invoice. It is always derived
// from the paid and total amounts, see DeriveStatus.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid:
		return true
	}
	return false
}

// DeriveStatus maps a paid amount against a total to a status:
// nothing paid is pending, anything short of the total is partial,
// the full total (or more) is paid.
func DeriveStatus(paid, total decimal.Decimal) InvoiceStatus {
	switch {
	case !paid.IsPositive():
		return InvoiceStatusPending
	case paid.LessThan(total):
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPaid
	}
}

// Invoice mirrors the `invoices` table. TotalAmount and CreatedAt are fixed
// at creation; only PaidAmount and Status change afterwards.
type Invoice struct {
	ID          uint64          `json:"id"`           // invoices.id
	ContactID   uint64          `json:"contact_id"`   // invoices.contact_id
	TotalAmount decimal.Decimal `json:"total_amount"` // invoices.total_amount
	PaidAmount  decimal.Decimal `json:"paid_amount"`  // invoices.paid_amount
	Status      InvoiceStatus   `json:"status"`       // invoices.status
	CreatedAt   time.Time       `json:"created_at"`   // invoices.created_at
}

// Outstanding is the amount the contact still owes on this invoice.
func (i Invoice) Outstanding() decimal.Decimal {
	return i.TotalAmount.Sub(i.PaidAmount)
}

// InvoiceLineItem mirrors `invoice_items`. PricePerUnit is a snapshot taken
// from the request, not the catalog price.
type InvoiceLineItem struct {
	ID           uint64          `json:"id"`             // invoice_items.id
	InvoiceID    uint64          `json:"invoice_id"`     // invoice_items.invoice_id
	InventoryID  uint64          `json:"inventory_id"`   // invoice_items.inventory_id
	Quantity     decimal.Decimal `json:"quantity"`       // invoice_items.quantity
	PricePerUnit decimal.Decimal `json:"price_per_unit"` // invoice_items.price_per_unit
	TotalPrice   decimal.Decimal `json:"total_price"`    // invoice_items.total_price
}

// LineRequest is one requested line of a new invoice.
type LineRequest struct {
	InventoryID  uint64          `json:"inventory_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

// LineTotal is quantity × price for the request, rounded half away from
// zero to MoneyPlaces. The invoice total is the sum of these rounded line
// totals, so both stay equal to what the tables store.
func (l LineRequest) LineTotal() decimal.Decimal {
	return l.Quantity.Mul(l.PricePerUnit).Round(MoneyPlaces)
}

// LineItemDetail is a line item with its inventory item name resolved.
type LineItemDetail struct {
	InvoiceLineItem
	ItemName string `json:"item_name"`
}

// InvoiceDetail is an invoice with its contact name and line items.
type InvoiceDetail struct {
	Invoice
	ContactName string           `json:"contact_name"`
	Items       []LineItemDetail `json:"items"`
}

// InvoiceSummary is a list row: the invoice plus its contact name.
type InvoiceSummary struct {
	Invoice
	ContactName string `json:"contact_name"`
}

// InvoiceFilter narrows ListInvoices. Zero values mean "no filter";
// a Limit of zero means no limit.
type InvoiceFilter struct {
	ContactID uint64
	Status    InvoiceStatus
	Limit     int
	Offset    int
}
