// Package ledger owns every write that moves money or stock: invoice
// creation, payment settlement, and the inventory and balance adjustments
// they cause. Each operation runs in a single unit of work on a Store so
// the invoice, its stock movements and the contact balance change together
// or not at all.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/backoffice-ledger/internal/model"
	"github.com/iliyamo/backoffice-ledger/internal/queue"
)

// EventPublisher receives ledger events after a commit. Publish errors are
// logged and never fail the operation.
type EventPublisher interface {
	PublishInvoiceCreated(ctx context.Context, ev queue.InvoiceCreatedEvent) error
	PublishInvoiceSettled(ctx context.Context, ev queue.InvoiceSettledEvent) error
}

// Engine runs invoice operations against a Store.
type Engine struct {
	store       Store
	events      EventPublisher
	log         *slog.Logger
	strictStock bool
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where committed operations are announced.
func WithPublisher(p EventPublisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithStrictStock rejects invoices that would drive an item's quantity
// below zero. Off by default: oversold items go negative.
func WithStrictStock(strict bool) Option {
	return func(e *Engine) { e.strictStock = strict }
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine bound to store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateInvoice records a sale to contactID. In one unit of work it inserts
// a pending invoice with paid amount zero, inserts one line item per
// request, reduces each item's quantity by the line quantity and raises the
// contact's balance by the invoice total. Every failure is returned wrapped
// in ErrInvoiceCreationFailed with the cause attached.
func (e *Engine) CreateInvoice(ctx context.Context, contactID uint64, lines []model.LineRequest) (model.Invoice, error) {
	inv, err := e.createInvoice(ctx, contactID, lines)
	if err != nil {
		e.log.WarnContext(ctx, "invoice creation failed",
			slog.Uint64("contact_id", contactID),
			slog.Int("lines", len(lines)),
			slog.String("kind", KindOf(err).String()),
			slog.Any("error", err))
		return model.Invoice{}, fmt.Errorf("%w: %w", ErrInvoiceCreationFailed, err)
	}

	e.log.InfoContext(ctx, "invoice created",
		slog.Uint64("invoice_id", inv.ID),
		slog.Uint64("contact_id", inv.ContactID),
		slog.String("total_amount", inv.TotalAmount.String()))
	e.publishCreated(ctx, inv, lines)
	return inv, nil
}

func (e *Engine) createInvoice(ctx context.Context, contactID uint64, lines []model.LineRequest) (model.Invoice, error) {
	if contactID == 0 {
		return model.Invoice{}, validationf("contact_id is required")
	}
	if len(lines) == 0 {
		return model.Invoice{}, validationf("at least one item is required")
	}

	total := decimal.Zero
	requested := make(map[uint64]decimal.Decimal, len(lines))
	for i, l := range lines {
		if l.InventoryID == 0 {
			return model.Invoice{}, validationf("items[%d]: inventory_id is required", i)
		}
		if !l.Quantity.IsPositive() {
			return model.Invoice{}, validationf("items[%d]: quantity must be greater than zero", i)
		}
		if l.PricePerUnit.IsNegative() {
			return model.Invoice{}, validationf("items[%d]: price_per_unit must not be negative", i)
		}
		if !model.FitsScale(l.Quantity, model.QuantityPlaces) {
			return model.Invoice{}, validationf("items[%d]: quantity allows at most %d decimal places", i, model.QuantityPlaces)
		}
		if !model.FitsScale(l.PricePerUnit, model.MoneyPlaces) {
			return model.Invoice{}, validationf("items[%d]: price_per_unit allows at most %d decimal places", i, model.MoneyPlaces)
		}
		total = total.Add(l.LineTotal())
		requested[l.InventoryID] = requested[l.InventoryID].Add(l.Quantity)
	}

	// Rows are locked contact first, then items by ascending id, so two
	// concurrent invoices never wait on each other in opposite order.
	ids := make([]uint64, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var inv model.Invoice
	err := e.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockContact(ctx, contactID); err != nil {
			return fmt.Errorf("contact %d: %w", contactID, storageFault(err))
		}
		items, err := tx.LockInventoryItems(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock inventory: %w", storageFault(err))
		}
		for _, id := range ids {
			item, ok := items[id]
			if !ok {
				return fmt.Errorf("inventory item %d: %w", id, ErrInventoryItemNotFound)
			}
			if e.strictStock && item.Quantity.LessThan(requested[id]) {
				return validationf("inventory item %d: insufficient stock (have %s, need %s)",
					id, item.Quantity, requested[id])
			}
		}

		inv = model.Invoice{
			ContactID:   contactID,
			TotalAmount: total,
			PaidAmount:  decimal.Zero,
			Status:      model.InvoiceStatusPending,
		}
		if err := tx.InsertInvoice(ctx, &inv); err != nil {
			return fmt.Errorf("insert invoice: %w", storageFault(err))
		}

		rows := make([]model.InvoiceLineItem, 0, len(lines))
		for _, l := range lines {
			rows = append(rows, model.InvoiceLineItem{
				InvoiceID:    inv.ID,
				InventoryID:  l.InventoryID,
				Quantity:     l.Quantity,
				PricePerUnit: l.PricePerUnit,
				TotalPrice:   l.LineTotal(),
			})
		}
		if err := tx.InsertLineItems(ctx, rows); err != nil {
			return fmt.Errorf("insert line items: %w", storageFault(err))
		}

		for _, l := range lines {
			if err := adjustQuantity(ctx, tx, l.InventoryID, l.Quantity.Neg()); err != nil {
				return err
			}
		}
		return adjustBalance(ctx, tx, contactID, total)
	})
	if err != nil {
		return model.Invoice{}, storageFault(err)
	}
	return inv, nil
}

// UpdateInvoicePayment sets the paid amount of an invoice and moves the
// contact balance by the difference to the previous paid amount. The status
// is derived from paid against total; a non-empty status that disagrees
// with the derived one is rejected. The total never changes.
func (e *Engine) UpdateInvoicePayment(ctx context.Context, invoiceID uint64, paid decimal.Decimal, status model.InvoiceStatus) (model.Invoice, error) {
	if invoiceID == 0 {
		return model.Invoice{}, validationf("invoice id is required")
	}
	if paid.IsNegative() {
		return model.Invoice{}, validationf("paid_amount must not be negative")
	}
	if !model.FitsScale(paid, model.MoneyPlaces) {
		return model.Invoice{}, validationf("paid_amount allows at most %d decimal places", model.MoneyPlaces)
	}
	if status != "" && !status.Valid() {
		return model.Invoice{}, validationf("unknown status %q", status)
	}

	var (
		inv   model.Invoice
		delta decimal.Decimal
	)
	err := e.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("invoice %d: %w", invoiceID, storageFault(err))
		}
		if paid.GreaterThan(cur.TotalAmount) {
			return validationf("paid_amount %s exceeds total_amount %s", paid, cur.TotalAmount)
		}
		derived := model.DeriveStatus(paid, cur.TotalAmount)
		if status != "" && status != derived {
			return validationf("status %q does not match paid amount (expected %q)", status, derived)
		}

		delta = paid.Sub(cur.PaidAmount)
		if err := tx.SetPayment(ctx, invoiceID, paid, derived); err != nil {
			return fmt.Errorf("set payment: %w", storageFault(err))
		}
		if !delta.IsZero() {
			if err := adjustBalance(ctx, tx, cur.ContactID, delta.Neg()); err != nil {
				return err
			}
		}

		cur.PaidAmount = paid
		cur.Status = derived
		inv = cur
		return nil
	})
	if err != nil {
		err = storageFault(err)
		e.log.WarnContext(ctx, "invoice payment update failed",
			slog.Uint64("invoice_id", invoiceID),
			slog.String("kind", KindOf(err).String()),
			slog.Any("error", err))
		return model.Invoice{}, err
	}

	e.log.InfoContext(ctx, "invoice payment updated",
		slog.Uint64("invoice_id", inv.ID),
		slog.String("paid_amount", inv.PaidAmount.String()),
		slog.String("status", string(inv.Status)))
	e.publishSettled(ctx, inv, delta)
	return inv, nil
}

// GetInvoice returns an invoice with its contact name and line items.
func (e *Engine) GetInvoice(ctx context.Context, id uint64) (model.InvoiceDetail, error) {
	if id == 0 {
		return model.InvoiceDetail{}, validationf("invoice id is required")
	}
	d, err := e.store.InvoiceDetail(ctx, id)
	if err != nil {
		return model.InvoiceDetail{}, storageFault(err)
	}
	return d, nil
}

// ListInvoices returns invoices newest first.
func (e *Engine) ListInvoices(ctx context.Context, f model.InvoiceFilter) ([]model.InvoiceSummary, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validationf("unknown status %q", f.Status)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, validationf("limit and offset must not be negative")
	}
	out, err := e.store.ListInvoices(ctx, f)
	if err != nil {
		return nil, storageFault(err)
	}
	return out, nil
}

func adjustQuantity(ctx context.Context, tx Tx, itemID uint64, delta decimal.Decimal) error {
	if err := tx.AdjustQuantity(ctx, itemID, delta); err != nil {
		return fmt.Errorf("adjust quantity of item %d: %w", itemID, storageFault(err))
	}
	return nil
}

func adjustBalance(ctx context.Context, tx Tx, contactID uint64, delta decimal.Decimal) error {
	if err := tx.AdjustBalance(ctx, contactID, delta); err != nil {
		return fmt.Errorf("adjust balance of contact %d: %w", contactID, storageFault(err))
	}
	return nil
}

func (e *Engine) publishCreated(ctx context.Context, inv model.Invoice, lines []model.LineRequest) {
	if e.events == nil {
		return
	}
	ev := queue.InvoiceCreatedEvent{
		EventID:     uuid.NewString(),
		InvoiceID:   inv.ID,
		ContactID:   inv.ContactID,
		TotalAmount: inv.TotalAmount.String(),
		Lines:       make([]queue.InvoiceLineData, 0, len(lines)),
		CreatedAt:   e.eventTime(inv.CreatedAt),
	}
	for _, l := range lines {
		ev.Lines = append(ev.Lines, queue.InvoiceLineData{
			InventoryID:  l.InventoryID,
			Quantity:     l.Quantity.String(),
			PricePerUnit: l.PricePerUnit.String(),
		})
	}
	if err := e.events.PublishInvoiceCreated(ctx, ev); err != nil {
		e.log.WarnContext(ctx, "publish invoice.created failed",
			slog.Uint64("invoice_id", inv.ID), slog.Any("error", err))
	}
}

func (e *Engine) publishSettled(ctx context.Context, inv model.Invoice, delta decimal.Decimal) {
	if e.events == nil {
		return
	}
	ev := queue.InvoiceSettledEvent{
		EventID:    uuid.NewString(),
		InvoiceID:  inv.ID,
		ContactID:  inv.ContactID,
		PaidAmount: inv.PaidAmount.String(),
		PaidDelta:  delta.String(),
		Status:     string(inv.Status),
		SettledAt:  e.now().Format(time.RFC3339),
	}
	if err := e.events.PublishInvoiceSettled(ctx, ev); err != nil {
		e.log.WarnContext(ctx, "publish invoice.settled failed",
			slog.Uint64("invoice_id", inv.ID), slog.Any("error", err))
	}
}

func (e *Engine) eventTime(t time.Time) string {
	if t.IsZero() {
		t = e.now()
	}
	return t.UTC().Format(time.RFC3339)
}
