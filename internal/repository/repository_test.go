package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/backoffice-ledger/internal/model"
	"github.com/iliyamo/backoffice-ledger/internal/utils"
)

func TestContactRepoCRUD(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContactRepo(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contacts (name, phone, email) VALUES (?,?,?)")).
		WithArgs("Acme", "555", "a@example.com").
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts WHERE id=?")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(contactCols).AddRow(4, "Acme", "555", "a@example.com", "0.00", stamp, stamp))
	c, err := repo.Create(ctx, model.ContactFields{Name: "Acme", Phone: "555", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), c.ID)
	assert.True(t, c.CurrentBalance.IsZero())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE contacts SET name=?, phone=?, email=? WHERE id=?")).
		WithArgs("Acme Ltd", "", "", 9).
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = repo.Update(ctx, 9, model.ContactFields{Name: "Acme Ltd"})
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts WHERE id=?")).
		WithArgs(9).WillReturnRows(sqlmock.NewRows(contactCols))
	_, err = repo.Get(ctx, 9)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts ORDER BY name")).
		WillReturnRows(sqlmock.NewRows(contactCols).
			AddRow(4, "Acme", "", "", "120.50", stamp, stamp).
			AddRow(5, "Bakery", "", "", "0", stamp, stamp))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CurrentBalance.Equal(decimal.RequireFromString("120.5")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReferencedIsConflict(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	referenced := &mysql.MySQLError{Number: errRowIsReferenced, Message: "Cannot delete or update a parent row"}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contacts WHERE id=?")).WithArgs(4).WillReturnError(referenced)
	assert.ErrorIs(t, NewContactRepo(db).Delete(ctx, 4), ErrConflict)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inventory WHERE id=?")).WithArgs(3).WillReturnError(referenced)
	assert.ErrorIs(t, NewInventoryRepo(db).Delete(ctx, 3), ErrConflict)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inventory WHERE id=?")).WithArgs(8).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, NewInventoryRepo(db).Delete(ctx, 8), ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM inventory WHERE id=?")).WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, NewInventoryRepo(db).Delete(ctx, 2))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepoCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewInventoryRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inventory (name, category, quantity, weight_unit, price_per_unit) VALUES (?,?,?,?,?)")).
		WithArgs("Flour", "Baking", "12.5", "kg", "3.2").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM inventory WHERE id=?")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(inventoryCols).AddRow(3, "Flour", "Baking", "12.500", "kg", "3.20", stamp, stamp))

	it, err := repo.Create(context.Background(), model.InventoryItem{
		Name: "Flour", Category: "Baking", Quantity: decimal.RequireFromString("12.5"),
		WeightUnit: model.WeightUnitKilogram, PricePerUnit: decimal.RequireFromString("3.2"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.WeightUnitKilogram, it.WeightUnit)
	assert.True(t, it.Value().Equal(decimal.NewFromInt(40)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (username, password_hash, role) VALUES (?,?,?)")).
		WithArgs("admin", sqlmock.AnyArg(), "superadmin").
		WillReturnError(&mysql.MySQLError{Number: errDupEntry, Message: "Duplicate entry 'admin'"})

	_, err := repo.Create(context.Background(), " admin ", "secret1", model.RoleSuperAdmin, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrUsernameExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetByUsername(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)
	hash, err := utils.HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)

	cols := []string{"id", "username", "password_hash", "role", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username=? LIMIT 1")).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "admin", hash, "superadmin", stamp, stamp))
	u, err := repo.GetByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "secret1"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username=? LIMIT 1")).
		WithArgs("ghost").WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoResetUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE username=?")).
		WithArgs("admin").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (username, password_hash, role) VALUES (?,?,?)")).
		WithArgs("admin", sqlmock.AnyArg(), "superadmin").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	id, err := repo.ResetUser(context.Background(), "admin", "admin123", model.RoleSuperAdmin, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoValidateRefresh(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	cols := []string{"user_id", "expires_at", "revoked_at"}
	future := time.Now().UTC().Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("good").WillReturnRows(sqlmock.NewRows(cols).AddRow(5, future, nil))
	uid, err := repo.ValidateRefresh(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), uid)

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("revoked").WillReturnRows(sqlmock.NewRows(cols).AddRow(5, future, stamp))
	_, err = repo.ValidateRefresh(ctx, "revoked")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("expired").WillReturnRows(sqlmock.NewRows(cols).AddRow(5, stamp.Add(-time.Hour), nil))
	_, err = repo.ValidateRefresh(ctx, "expired")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("unknown").WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.ValidateRefresh(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL")).
		WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, repo.RevokeAllForUser(ctx, 5))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepoRotate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	cols := []string{"user_id", "expires_at", "revoked_at"}
	exp := time.Now().UTC().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE")).
		WithArgs("old").WillReturnRows(sqlmock.NewRows(cols).AddRow(5, exp, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=?")).
		WithArgs("old").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)")).
		WithArgs(5, "new", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	uid, err := repo.Rotate(ctx, "old", "new", exp)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), uid)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE")).
		WithArgs("old").WillReturnRows(sqlmock.NewRows(cols).AddRow(5, exp, stamp))
	mock.ExpectRollback()

	_, err = repo.Rotate(ctx, "old", "newer", exp)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepoInvoicesSince(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReportRepo(db)
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices WHERE created_at >= ? ORDER BY id")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(invoiceCols).
			AddRow(1, 4, "100", "100", "paid", stamp).
			AddRow(2, 4, "50", "0", "pending", stamp))
	out, err := repo.Invoices(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.InvoiceStatusPaid, out[0].Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, contact_id, total_amount, paid_amount, status, created_at FROM invoices ORDER BY id")).
		WillReturnRows(sqlmock.NewRows(invoiceCols))
	out, err = repo.Invoices(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, out)
	require.NoError(t, mock.ExpectationsWereMet())
}
