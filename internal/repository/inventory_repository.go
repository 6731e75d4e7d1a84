package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/backoffice-ledger/internal/model"
)

const inventoryColumns = "id, name, category, quantity, weight_unit, price_per_unit, created_at, updated_at"

// InventoryRepo provides CRUD for the inventory table. Sales move
// quantities through the invoice engine; Update here is a manual stock
// correction.
type InventoryRepo struct{ DB *sql.DB }

func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{DB: db} }

// List returns all items ordered by name.
func (r *InventoryRepo) List(ctx context.Context) ([]model.InventoryItem, error) {
	return listInventory(ctx, r.DB, "SELECT "+inventoryColumns+" FROM inventory ORDER BY name, id")
}

// Get fetches an item by id.
func (r *InventoryRepo) Get(ctx context.Context, id uint64) (model.InventoryItem, error) {
	var it model.InventoryItem
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+inventoryColumns+" FROM inventory WHERE id=? LIMIT 1", id,
	).Scan(&it.ID, &it.Name, &it.Category, &it.Quantity, &it.WeightUnit, &it.PricePerUnit, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InventoryItem{}, ErrNotFound
	}
	return it, err
}

// Create inserts an item and returns the stored row.
func (r *InventoryRepo) Create(ctx context.Context, it model.InventoryItem) (model.InventoryItem, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO inventory (name, category, quantity, weight_unit, price_per_unit) VALUES (?,?,?,?,?)",
		it.Name, it.Category, it.Quantity, string(it.WeightUnit), it.PricePerUnit)
	if err != nil {
		return model.InventoryItem{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.InventoryItem{}, err
	}
	return r.Get(ctx, uint64(id))
}

// Update replaces every editable column of an item.
func (r *InventoryRepo) Update(ctx context.Context, id uint64, it model.InventoryItem) (model.InventoryItem, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE inventory SET name=?, category=?, quantity=?, weight_unit=?, price_per_unit=? WHERE id=?",
		it.Name, it.Category, it.Quantity, string(it.WeightUnit), it.PricePerUnit, id)
	if err != nil {
		return model.InventoryItem{}, err
	}
	if err := expectOneRow(res, ErrNotFound); err != nil {
		return model.InventoryItem{}, err
	}
	return r.Get(ctx, id)
}

// Delete removes an item. Items referenced by invoice lines yield
// ErrConflict.
func (r *InventoryRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM inventory WHERE id=?", id)
	if err != nil {
		if isMySQLError(err, errRowIsReferenced) {
			return ErrConflict
		}
		return err
	}
	return expectOneRow(res, ErrNotFound)
}

func listInventory(ctx context.Context, db queryer, q string, args ...interface{}) ([]model.InventoryItem, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.InventoryItem{}
	for rows.Next() {
		var it model.InventoryItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.Quantity, &it.WeightUnit, &it.PricePerUnit, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
