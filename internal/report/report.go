// Package report builds the read-only sales, inventory and customer
// reports. Reports are computed on every call from the current ledger
// state; nothing is cached here.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/model"
)

// Uncategorized is the category reported for items without one.
const Uncategorized = "Uncategorized"

// TopCustomerLimit is how many customers the customer report ranks.
const TopCustomerLimit = 5

// Source reads the rows the reports are computed from.
type Source interface {
	// Invoices returns invoices created at or after since. A zero since
	// returns every invoice.
	Invoices(ctx context.Context, since time.Time) ([]model.Invoice, error)
	InventoryItems(ctx context.Context) ([]model.InventoryItem, error)
	Contacts(ctx context.Context) ([]model.Contact, error)
}

// Service computes reports from a Source.
type Service struct {
	src Source
	now func() time.Time
}

// NewService returns a report service reading from src.
func NewService(src Source) *Service {
	return &Service{src: src, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of s that uses now as the current time.
func (s *Service) WithClock(now func() time.Time) *Service {
	c := *s
	c.now = now
	return &c
}

// Since returns the start of the window r ending at now.
func Since(r model.ReportRange, now time.Time) time.Time {
	switch r {
	case model.RangeWeek:
		return now.AddDate(0, 0, -7)
	case model.RangeYear:
		return now.AddDate(-1, 0, 0)
	}
	return now.AddDate(0, -1, 0)
}

// Sales reports the invoices created inside the window r.
func (s *Service) Sales(ctx context.Context, r model.ReportRange) (model.SalesReport, error) {
	invoices, err := s.src.Invoices(ctx, Since(r, s.now()))
	if err != nil {
		return model.SalesReport{}, fault("sales report", err)
	}
	rep := BuildSales(invoices)
	rep.Range = r
	return rep, nil
}

// Inventory values the stock on hand and lists low stock items.
func (s *Service) Inventory(ctx context.Context) (model.InventoryReport, error) {
	items, err := s.src.InventoryItems(ctx)
	if err != nil {
		return model.InventoryReport{}, fault("inventory report", err)
	}
	return BuildInventory(items), nil
}

// Customers summarizes receivables and ranks customers by purchases.
func (s *Service) Customers(ctx context.Context) (model.CustomerReport, error) {
	var (
		contacts []model.Contact
		invoices []model.Invoice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contacts, err = s.src.Contacts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = s.src.Invoices(gctx, time.Time{})
		return err
	})
	if err := g.Wait(); err != nil {
		return model.CustomerReport{}, fault("customer report", err)
	}
	return BuildCustomers(contacts, invoices), nil
}

// BuildSales aggregates invoices into a sales report. The average is
// rounded to two places; daily amounts are grouped by UTC date.
func BuildSales(invoices []model.Invoice) model.SalesReport {
	rep := model.SalesReport{
		TotalSales:          decimal.Zero,
		AverageInvoiceValue: decimal.Zero,
		PendingPayments:     decimal.Zero,
		DailySales:          []model.DailySales{},
	}
	byDay := map[string]decimal.Decimal{}
	for _, inv := range invoices {
		rep.TotalSales = rep.TotalSales.Add(inv.TotalAmount)
		rep.TotalInvoices++
		if inv.Status != model.InvoiceStatusPaid {
			rep.PendingPayments = rep.PendingPayments.Add(inv.Outstanding())
		}
		day := inv.CreatedAt.UTC().Format(time.DateOnly)
		byDay[day] = byDay[day].Add(inv.TotalAmount)
	}
	if rep.TotalInvoices > 0 {
		rep.AverageInvoiceValue = rep.TotalSales.DivRound(decimal.NewFromInt(int64(rep.TotalInvoices)), 2)
	}
	for day, amount := range byDay {
		rep.DailySales = append(rep.DailySales, model.DailySales{Date: day, Amount: amount})
	}
	sort.Slice(rep.DailySales, func(i, j int) bool { return rep.DailySales[i].Date < rep.DailySales[j].Date })
	return rep
}

// BuildInventory values items with a positive quantity and lists every item
// under model.LowStockThreshold, lowest quantity first.
func BuildInventory(items []model.InventoryItem) model.InventoryReport {
	rep := model.InventoryReport{
		TotalValue:        decimal.Zero,
		CategoryBreakdown: []model.CategoryValue{},
		LowStockItems:     []model.LowStockItem{},
	}
	cats := map[string]*model.CategoryValue{}
	for _, it := range items {
		if it.Quantity.IsPositive() {
			v := it.Value()
			rep.TotalValue = rep.TotalValue.Add(v)
			rep.TotalItems++

			name := it.Category
			if name == "" {
				name = Uncategorized
			}
			cv, ok := cats[name]
			if !ok {
				cv = &model.CategoryValue{Category: name, Value: decimal.Zero}
				cats[name] = cv
			}
			cv.Value = cv.Value.Add(v)
			cv.ItemCount++
		}
		if it.Quantity.LessThan(model.LowStockThreshold) {
			rep.LowStockItems = append(rep.LowStockItems, model.LowStockItem{
				Name:         it.Name,
				Category:     it.Category,
				Quantity:     it.Quantity,
				WeightUnit:   it.WeightUnit,
				PricePerUnit: it.PricePerUnit,
			})
		}
	}
	for _, cv := range cats {
		rep.CategoryBreakdown = append(rep.CategoryBreakdown, *cv)
	}
	sort.Slice(rep.CategoryBreakdown, func(i, j int) bool {
		a, b := rep.CategoryBreakdown[i], rep.CategoryBreakdown[j]
		if !a.Value.Equal(b.Value) {
			return a.Value.GreaterThan(b.Value)
		}
		return a.Category < b.Category
	})
	sort.SliceStable(rep.LowStockItems, func(i, j int) bool {
		return rep.LowStockItems[i].Quantity.LessThan(rep.LowStockItems[j].Quantity)
	})
	return rep
}

// BuildCustomers counts customers, sums their balances, counts invoices per
// status and ranks the top customers by total invoiced.
func BuildCustomers(contacts []model.Contact, invoices []model.Invoice) model.CustomerReport {
	rep := model.CustomerReport{
		TotalCustomers: len(contacts),
		TotalDueAmount: decimal.Zero,
		TopCustomers:   []model.TopCustomer{},
	}
	purchases := make(map[uint64]decimal.Decimal, len(contacts))
	for _, inv := range invoices {
		switch inv.Status {
		case model.InvoiceStatusPaid:
			rep.PaymentStats.Paid++
		case model.InvoiceStatusPartial:
			rep.PaymentStats.Partial++
		case model.InvoiceStatusPending:
			rep.PaymentStats.Pending++
		}
		purchases[inv.ContactID] = purchases[inv.ContactID].Add(inv.TotalAmount)
	}

	ranked := make([]model.TopCustomer, 0, len(contacts))
	for _, c := range contacts {
		rep.TotalDueAmount = rep.TotalDueAmount.Add(c.CurrentBalance)
		ranked = append(ranked, model.TopCustomer{
			ID:             c.ID,
			Name:           c.Name,
			TotalPurchases: purchases[c.ID],
			DueAmount:      c.CurrentBalance,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].TotalPurchases.Equal(ranked[j].TotalPurchases) {
			return ranked[i].TotalPurchases.GreaterThan(ranked[j].TotalPurchases)
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > TopCustomerLimit {
		ranked = ranked[:TopCustomerLimit]
	}
	rep.TopCustomers = ranked
	return rep
}

func fault(what string, err error) error {
	if ledger.KindOf(err) != ledger.KindStorageFault {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s: %w: %w", what, ledger.ErrStorageFault, err)
}
