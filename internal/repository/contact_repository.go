package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/backoffice-ledger/internal/model"
)

const contactColumns = "id, name, phone, email, current_balance, created_at, updated_at"

// ContactRepo provides CRUD for the contacts table. It never writes
// current_balance: that column belongs to the invoice engine.
type ContactRepo struct{ DB *sql.DB }

func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{DB: db} }

// List returns all contacts ordered by name.
func (r *ContactRepo) List(ctx context.Context) ([]model.Contact, error) {
	return listContacts(ctx, r.DB, "SELECT "+contactColumns+" FROM contacts ORDER BY name, id")
}

// Get fetches a contact by id.
func (r *ContactRepo) Get(ctx context.Context, id uint64) (model.Contact, error) {
	var c model.Contact
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE id=? LIMIT 1", id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CurrentBalance, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrNotFound
	}
	return c, err
}

// Create inserts a contact with a zero balance and returns the stored row.
func (r *ContactRepo) Create(ctx context.Context, f model.ContactFields) (model.Contact, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO contacts (name, phone, email) VALUES (?,?,?)",
		f.Name, f.Phone, f.Email)
	if err != nil {
		return model.Contact{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Contact{}, err
	}
	return r.Get(ctx, uint64(id))
}

// Update replaces the non-financial fields of a contact.
func (r *ContactRepo) Update(ctx context.Context, id uint64, f model.ContactFields) (model.Contact, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE contacts SET name=?, phone=?, email=? WHERE id=?",
		f.Name, f.Phone, f.Email, id)
	if err != nil {
		return model.Contact{}, err
	}
	if err := expectOneRow(res, ErrNotFound); err != nil {
		return model.Contact{}, err
	}
	return r.Get(ctx, id)
}

// Delete removes a contact. Contacts referenced by invoices cannot be
// deleted and yield ErrConflict.
func (r *ContactRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM contacts WHERE id=?", id)
	if err != nil {
		if isMySQLError(err, errRowIsReferenced) {
			return ErrConflict
		}
		return err
	}
	return expectOneRow(res, ErrNotFound)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listContacts(ctx context.Context, db queryer, q string, args ...interface{}) ([]model.Contact, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CurrentBalance, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
