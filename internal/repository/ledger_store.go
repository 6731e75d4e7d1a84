package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/model"
)

// LedgerStore is the MySQL implementation of ledger.Store. Every unit of
// work is one database transaction; rows handed out by the Lock methods
// are read with SELECT ... FOR UPDATE and stay locked until it ends.
type LedgerStore struct {
	db *sql.DB
}

var _ ledger.Store = (*LedgerStore)(nil)

// NewLedgerStore returns a LedgerStore bound to db.
func NewLedgerStore(db *sql.DB) *LedgerStore { return &LedgerStore{db: db} }

// WithTx runs fn in a transaction, committing only if fn succeeds.
func (s *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// InvoiceDetail loads an invoice, its contact name and its line items with
// item names.
func (s *LedgerStore) InvoiceDetail(ctx context.Context, id uint64) (model.InvoiceDetail, error) {
	const q = `SELECT i.id, i.contact_id, i.total_amount, i.paid_amount, i.status, i.created_at, c.name
        FROM invoices i
        JOIN contacts c ON c.id = i.contact_id
        WHERE i.id = ?`
	var d model.InvoiceDetail
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.ContactID, &d.TotalAmount, &d.PaidAmount, &d.Status, &d.CreatedAt, &d.ContactName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InvoiceDetail{}, ledger.ErrInvoiceNotFound
	}
	if err != nil {
		return model.InvoiceDetail{}, err
	}

	const qi = `SELECT ii.id, ii.invoice_id, ii.inventory_id, ii.quantity, ii.price_per_unit, ii.total_price, inv.name
        FROM invoice_items ii
        JOIN inventory inv ON inv.id = ii.inventory_id
        WHERE ii.invoice_id = ?
        ORDER BY ii.id`
	rows, err := s.db.QueryContext(ctx, qi, id)
	if err != nil {
		return model.InvoiceDetail{}, err
	}
	defer rows.Close()
	d.Items = []model.LineItemDetail{}
	for rows.Next() {
		var it model.LineItemDetail
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.InventoryID, &it.Quantity, &it.PricePerUnit, &it.TotalPrice, &it.ItemName); err != nil {
			return model.InvoiceDetail{}, err
		}
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return model.InvoiceDetail{}, err
	}
	return d, nil
}

// ListInvoices returns invoices with contact names, newest first.
func (s *LedgerStore) ListInvoices(ctx context.Context, f model.InvoiceFilter) ([]model.InvoiceSummary, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ContactID != 0 {
		where = append(where, "i.contact_id = ?")
		args = append(args, f.ContactID)
	}
	if f.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, string(f.Status))
	}

	var b strings.Builder
	b.WriteString(`SELECT i.id, i.contact_id, i.total_amount, i.paid_amount, i.status, i.created_at, c.name
        FROM invoices i
        JOIN contacts c ON c.id = i.contact_id`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY i.created_at DESC, i.id DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		// MySQL needs a LIMIT to accept an OFFSET.
		b.WriteString(" LIMIT 18446744073709551615 OFFSET ?")
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.InvoiceSummary{}
	for rows.Next() {
		var sum model.InvoiceSummary
		if err := rows.Scan(&sum.ID, &sum.ContactID, &sum.TotalAmount, &sum.PaidAmount, &sum.Status, &sum.CreatedAt, &sum.ContactName); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// sqlTx implements ledger.Tx on a *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) LockContact(ctx context.Context, id uint64) (model.Contact, error) {
	const q = `SELECT id, name, phone, email, current_balance, created_at, updated_at
        FROM contacts WHERE id = ? FOR UPDATE`
	var c model.Contact
	err := t.tx.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.Name, &c.Phone, &c.Email, &c.CurrentBalance, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ledger.ErrContactNotFound
	}
	return c, err
}

func (t *sqlTx) LockInventoryItems(ctx context.Context, ids []uint64) (map[uint64]model.InventoryItem, error) {
	out := make(map[uint64]model.InventoryItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	q := `SELECT id, name, category, quantity, weight_unit, price_per_unit, created_at, updated_at
        FROM inventory WHERE id IN (` + placeholders + `) ORDER BY id FOR UPDATE`
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.InventoryItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.Quantity, &it.WeightUnit, &it.PricePerUnit, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

func (t *sqlTx) LockInvoice(ctx context.Context, id uint64) (model.Invoice, error) {
	const q = `SELECT id, contact_id, total_amount, paid_amount, status, created_at
        FROM invoices WHERE id = ? FOR UPDATE`
	var inv model.Invoice
	err := t.tx.QueryRowContext(ctx, q, id).Scan(
		&inv.ID, &inv.ContactID, &inv.TotalAmount, &inv.PaidAmount, &inv.Status, &inv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Invoice{}, ledger.ErrInvoiceNotFound
	}
	return inv, err
}

// InsertInvoice inserts the invoice and reads back its generated id and
// created_at.
func (t *sqlTx) InsertInvoice(ctx context.Context, inv *model.Invoice) error {
	const q = `INSERT INTO invoices (contact_id, total_amount, paid_amount, status) VALUES (?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, inv.ContactID, inv.TotalAmount, inv.PaidAmount, string(inv.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	return t.tx.QueryRowContext(ctx, `SELECT created_at FROM invoices WHERE id = ?`, inv.ID).Scan(&inv.CreatedAt)
}

// InsertLineItems inserts all rows in a single statement.
func (t *sqlTx) InsertLineItems(ctx context.Context, items []model.InvoiceLineItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO invoice_items (invoice_id, inventory_id, quantity, price_per_unit, total_price) VALUES `
	args := make([]interface{}, 0, len(items)*5)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, it.InvoiceID, it.InventoryID, it.Quantity, it.PricePerUnit, it.TotalPrice)
	}
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *sqlTx) AdjustQuantity(ctx context.Context, itemID uint64, delta decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE inventory SET quantity = quantity + ? WHERE id = ?`, delta, itemID)
	if err != nil {
		return err
	}
	return expectOneRow(res, ledger.ErrInventoryItemNotFound)
}

func (t *sqlTx) AdjustBalance(ctx context.Context, contactID uint64, delta decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE contacts SET current_balance = current_balance + ? WHERE id = ?`, delta, contactID)
	if err != nil {
		return err
	}
	return expectOneRow(res, ledger.ErrContactNotFound)
}

func (t *sqlTx) SetPayment(ctx context.Context, invoiceID uint64, paid decimal.Decimal, status model.InvoiceStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE invoices SET paid_amount = ?, status = ? WHERE id = ?`, paid, string(status), invoiceID)
	if err != nil {
		return err
	}
	return expectOneRow(res, ledger.ErrInvoiceNotFound)
}

// expectOneRow maps "no row matched" to notFound. It relies on the
// clientFoundRows DSN flag so an update that leaves a row unchanged still
// reports it as affected.
func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
