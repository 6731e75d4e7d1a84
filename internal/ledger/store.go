package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/backoffice-ledger/internal/model"
)

// Store is the persistence the engine runs on.
//
// WithTx runs fn inside one atomic unit of work: if fn returns an error,
// or the commit fails, nothing fn did is visible to anyone. Implementations
// return fn's error unchanged.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	InvoiceDetail(ctx context.Context, id uint64) (model.InvoiceDetail, error)
	ListInvoices(ctx context.Context, f model.InvoiceFilter) ([]model.InvoiceSummary, error)
}

// Tx is the set of writes the engine performs within a unit of work. The
// Lock methods hold their rows until the unit of work ends.
type Tx interface {
	// LockContact returns ErrContactNotFound for an unknown id.
	LockContact(ctx context.Context, id uint64) (model.Contact, error)
	// LockInventoryItems locks the given ids in the order given. Unknown ids
	// are absent from the result.
	LockInventoryItems(ctx context.Context, ids []uint64) (map[uint64]model.InventoryItem, error)
	// LockInvoice returns ErrInvoiceNotFound for an unknown id.
	LockInvoice(ctx context.Context, id uint64) (model.Invoice, error)

	// InsertInvoice assigns inv.ID and inv.CreatedAt.
	InsertInvoice(ctx context.Context, inv *model.Invoice) error
	InsertLineItems(ctx context.Context, items []model.InvoiceLineItem) error

	// AdjustQuantity adds delta to the item's quantity.
	AdjustQuantity(ctx context.Context, itemID uint64, delta decimal.Decimal) error
	// AdjustBalance adds delta to the contact's current balance.
	AdjustBalance(ctx context.Context, contactID uint64, delta decimal.Decimal) error

	SetPayment(ctx context.Context, invoiceID uint64, paid decimal.Decimal, status model.InvoiceStatus) error
}
