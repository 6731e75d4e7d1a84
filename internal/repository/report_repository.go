package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/backoffice-ledger/internal/model"
	"github.com/iliyamo/backoffice-ledger/internal/report"
)

// ReportRepo reads the rows behind the reports. It never writes.
type ReportRepo struct{ DB *sql.DB }

var _ report.Source = (*ReportRepo)(nil)

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{DB: db} }

// Invoices returns invoices created at or after since (all when since is zero).
func (r *ReportRepo) Invoices(ctx context.Context, since time.Time) ([]model.Invoice, error) {
	q := "SELECT id, contact_id, total_amount, paid_amount, status, created_at FROM invoices"
	var args []interface{}
	if !since.IsZero() {
		q += " WHERE created_at >= ?"
		args = append(args, since.UTC())
	}
	q += " ORDER BY id"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Invoice{}
	for rows.Next() {
		var inv model.Invoice
		if err := rows.Scan(&inv.ID, &inv.ContactID, &inv.TotalAmount, &inv.PaidAmount, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// InventoryItems returns every inventory row.
func (r *ReportRepo) InventoryItems(ctx context.Context) ([]model.InventoryItem, error) {
	return listInventory(ctx, r.DB, "SELECT "+inventoryColumns+" FROM inventory ORDER BY id")
}

// Contacts returns every contact row.
func (r *ReportRepo) Contacts(ctx context.Context) ([]model.Contact, error) {
	return listContacts(ctx, r.DB, "SELECT "+contactColumns+" FROM contacts ORDER BY id")
}
