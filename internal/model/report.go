package model

import "github.com/shopspring/decimal"

// ReportRange selects the window of a sales report.
type ReportRange string

const (
	RangeWeek  ReportRange = "week"
	RangeMonth ReportRange = "month"
	RangeYear  ReportRange = "year"
)

// ParseReportRange maps a query value to a range. Unknown or empty values
// fall back to a month.
func ParseReportRange(s string) ReportRange {
	switch ReportRange(s) {
	case RangeWeek, RangeYear:
		return ReportRange(s)
	}
	return RangeMonth
}

// DailySales is one point of the per-day sales series.
type DailySales struct {
	Date   string          `json:"date"` // YYYY-MM-DD, UTC
	Amount decimal.Decimal `json:"amount"`
}

// SalesReport aggregates invoices created inside a window.
type SalesReport struct {
	Range               ReportRange     `json:"range"`
	TotalSales          decimal.Decimal `json:"totalSales"`
	TotalInvoices       int             `json:"totalInvoices"`
	AverageInvoiceValue decimal.Decimal `json:"averageInvoiceValue"`
	PendingPayments     decimal.Decimal `json:"pendingPayments"`
	DailySales          []DailySales    `json:"dailySales"`
}

// CategoryValue is the stock valuation of one category.
type CategoryValue struct {
	Category  string          `json:"category"`
	Value     decimal.Decimal `json:"value"`
	ItemCount int             `json:"itemCount"`
}

// LowStockItem is an inventory item under the low stock threshold.
type LowStockItem struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Quantity     decimal.Decimal `json:"quantity"`
	WeightUnit   WeightUnit      `json:"weight_unit"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

// InventoryReport values the stock on hand.
type InventoryReport struct {
	TotalValue        decimal.Decimal `json:"totalValue"`
	TotalItems        int             `json:"totalItems"`
	CategoryBreakdown []CategoryValue `json:"categoryBreakdown"`
	LowStockItems     []LowStockItem  `json:"lowStockItems"`
}

// PaymentStats counts invoices per status.
type PaymentStats struct {
	Paid    int `json:"paid"`
	Partial int `json:"partial"`
	Pending int `json:"pending"`
}

// TopCustomer is a contact ranked by purchase volume.
type TopCustomer struct {
	ID             uint64          `json:"id"`
	Name           string          `json:"name"`
	TotalPurchases decimal.Decimal `json:"totalPurchases"`
	DueAmount      decimal.Decimal `json:"dueAmount"`
}

// CustomerReport summarizes receivables per customer.
type CustomerReport struct {
	TotalCustomers int             `json:"totalCustomers"`
	TotalDueAmount decimal.Decimal `json:"totalDueAmount"`
	PaymentStats   PaymentStats    `json:"paymentStats"`
	TopCustomers   []TopCustomer   `json:"topCustomers"`
}
