package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/ledger/ledgertest"
	"github.com/iliyamo/backoffice-ledger/internal/model"
	"github.com/iliyamo/backoffice-ledger/internal/report"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestInventory_LowStockThreshold(t *testing.T) {
	store := ledgertest.New()
	store.AddItem(model.InventoryItem{Name: "Five", Quantity: dec("5"), PricePerUnit: dec("1")})
	store.AddItem(model.InventoryItem{Name: "Ten", Quantity: dec("10"), PricePerUnit: dec("1")})

	rep, err := report.NewService(store).Inventory(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.LowStockItems, 1)
	assert.Equal(t, "Five", rep.LowStockItems[0].Name)
}

func TestBuildInventory(t *testing.T) {
	rep := report.BuildInventory([]model.InventoryItem{
		{Name: "Flour", Category: "Baking", Quantity: dec("20"), PricePerUnit: dec("2.5")},
		{Name: "Yeast", Category: "Baking", Quantity: dec("3"), PricePerUnit: dec("4")},
		{Name: "Saffron", Category: "Spices", Quantity: dec("0.5"), PricePerUnit: dec("200")},
		{Name: "Mystery", Quantity: dec("12"), PricePerUnit: dec("1")},
		{Name: "Oversold", Category: "Spices", Quantity: dec("-2"), PricePerUnit: dec("9")},
		{Name: "Empty", Category: "Dairy", Quantity: dec("0"), PricePerUnit: dec("3")},
	})

	assert.Equal(t, 4, rep.TotalItems)
	assert.Equal(t, "174", rep.TotalValue.String())

	require.Len(t, rep.CategoryBreakdown, 3)
	assert.Equal(t, "Spices", rep.CategoryBreakdown[0].Category)
	assert.True(t, rep.CategoryBreakdown[0].Value.Equal(dec("100")))
	assert.Equal(t, 1, rep.CategoryBreakdown[0].ItemCount)
	assert.Equal(t, "Baking", rep.CategoryBreakdown[1].Category)
	assert.True(t, rep.CategoryBreakdown[1].Value.Equal(dec("62")))
	assert.Equal(t, 2, rep.CategoryBreakdown[1].ItemCount)
	assert.Equal(t, report.Uncategorized, rep.CategoryBreakdown[2].Category)

	names := make([]string, 0, len(rep.LowStockItems))
	for _, it := range rep.LowStockItems {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Oversold", "Empty", "Saffron", "Yeast"}, names)
}

func TestBuildSales(t *testing.T) {
	day1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 11, 23, 30, 0, 0, time.UTC)
	rep := report.BuildSales([]model.Invoice{
		{ID: 1, TotalAmount: dec("100"), PaidAmount: dec("100"), Status: model.InvoiceStatusPaid, CreatedAt: day1},
		{ID: 2, TotalAmount: dec("50"), PaidAmount: dec("20"), Status: model.InvoiceStatusPartial, CreatedAt: day2},
		{ID: 3, TotalAmount: dec("50"), PaidAmount: dec("0"), Status: model.InvoiceStatusPending, CreatedAt: day1.Add(time.Hour)},
	})

	assert.Equal(t, 3, rep.TotalInvoices)
	assert.True(t, rep.TotalSales.Equal(dec("200")))
	assert.Equal(t, "66.67", rep.AverageInvoiceValue.String())
	assert.True(t, rep.PendingPayments.Equal(dec("80")))
	require.Len(t, rep.DailySales, 2)
	assert.Equal(t, "2026-03-10", rep.DailySales[0].Date)
	assert.True(t, rep.DailySales[0].Amount.Equal(dec("150")))
	assert.Equal(t, "2026-03-11", rep.DailySales[1].Date)
	assert.True(t, rep.DailySales[1].Amount.Equal(dec("50")))
}

func TestBuildSales_Empty(t *testing.T) {
	rep := report.BuildSales(nil)
	assert.Zero(t, rep.TotalInvoices)
	assert.True(t, rep.AverageInvoiceValue.IsZero())
	assert.NotNil(t, rep.DailySales)
}

func TestSales_Window(t *testing.T) {
	store := ledgertest.New()
	c := store.AddContact(model.Contact{Name: "Acme"})
	store.AddInvoice(model.Invoice{ContactID: c.ID, TotalAmount: dec("10"), CreatedAt: now.AddDate(0, 0, -2)})
	store.AddInvoice(model.Invoice{ContactID: c.ID, TotalAmount: dec("20"), CreatedAt: now.AddDate(0, 0, -20)})
	store.AddInvoice(model.Invoice{ContactID: c.ID, TotalAmount: dec("40"), CreatedAt: now.AddDate(0, -6, 0)})
	store.AddInvoice(model.Invoice{ContactID: c.ID, TotalAmount: dec("80"), CreatedAt: now.AddDate(-2, 0, 0)})

	svc := report.NewService(store).WithClock(func() time.Time { return now })
	want := map[model.ReportRange]string{
		model.RangeWeek:  "10",
		model.RangeMonth: "30",
		model.RangeYear:  "70",
	}
	for r, total := range want {
		rep, err := svc.Sales(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, r, rep.Range)
		assert.Truef(t, rep.TotalSales.Equal(dec(total)), "%s: got %s", r, rep.TotalSales)
	}
}

func TestBuildCustomers(t *testing.T) {
	var contacts []model.Contact
	for i, name := range []string{"A", "B", "C", "D", "E", "F"} {
		contacts = append(contacts, model.Contact{ID: uint64(i + 1), Name: name, CurrentBalance: dec("1.5")})
	}
	invoices := []model.Invoice{
		{ContactID: 2, TotalAmount: dec("500"), Status: model.InvoiceStatusPaid},
		{ContactID: 3, TotalAmount: dec("100"), Status: model.InvoiceStatusPartial},
		{ContactID: 3, TotalAmount: dec("450"), Status: model.InvoiceStatusPending},
		{ContactID: 5, TotalAmount: dec("10"), Status: model.InvoiceStatusPending},
	}
	rep := report.BuildCustomers(contacts, invoices)

	assert.Equal(t, 6, rep.TotalCustomers)
	assert.True(t, rep.TotalDueAmount.Equal(dec("9")))
	assert.Equal(t, model.PaymentStats{Paid: 1, Partial: 1, Pending: 2}, rep.PaymentStats)

	require.Len(t, rep.TopCustomers, report.TopCustomerLimit)
	assert.Equal(t, "C", rep.TopCustomers[0].Name)
	assert.True(t, rep.TopCustomers[0].TotalPurchases.Equal(dec("550")))
	assert.Equal(t, "B", rep.TopCustomers[1].Name)
	assert.Equal(t, "E", rep.TopCustomers[2].Name)
	// customers without invoices rank last, by id
	assert.Equal(t, "A", rep.TopCustomers[3].Name)
	assert.Equal(t, "D", rep.TopCustomers[4].Name)
}

func TestCustomers_NoInvoices(t *testing.T) {
	rep, err := report.NewService(ledgertest.New()).Customers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStats{}, rep.PaymentStats)
	assert.Empty(t, rep.TopCustomers)
}

func TestCustomers_FollowsEngineWrites(t *testing.T) {
	store := ledgertest.New()
	c := store.AddContact(model.Contact{Name: "Acme"})
	it := store.AddItem(model.InventoryItem{Name: "Flour", Quantity: dec("100"), PricePerUnit: dec("10")})
	eng := ledger.NewEngine(store)
	ctx := context.Background()

	inv, err := eng.CreateInvoice(ctx, c.ID, []model.LineRequest{{InventoryID: it.ID, Quantity: dec("100"), PricePerUnit: dec("10")}})
	require.NoError(t, err)
	_, err = eng.UpdateInvoicePayment(ctx, inv.ID, dec("400"), "")
	require.NoError(t, err)

	rep, err := report.NewService(store).Customers(ctx)
	require.NoError(t, err)
	assert.True(t, rep.TotalDueAmount.Equal(dec("600")))
	assert.Equal(t, 1, rep.PaymentStats.Partial)

	invRep, err := report.NewService(store).Inventory(ctx)
	require.NoError(t, err)
	assert.Zero(t, invRep.TotalItems)
	require.Len(t, invRep.LowStockItems, 1)
}

func TestReports_StorageFault(t *testing.T) {
	store := ledgertest.New()
	store.FailOn(ledgertest.OpRead, 1, nil)

	_, err := report.NewService(store).Inventory(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrStorageFault)
	assert.Equal(t, ledger.KindStorageFault, ledger.KindOf(err))
}
