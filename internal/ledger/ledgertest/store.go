// Package ledgertest provides an in-memory ledger.Store with fault
// injection. A unit of work runs on a copy of the state and replaces it
// only on commit, so a failed operation leaves no trace.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/model"
)

// money and quantity round the way the MySQL DECIMAL(14,2) and
// DECIMAL(14,3) columns do on store.
func money(d decimal.Decimal) decimal.Decimal { return d.Round(model.MoneyPlaces) }
func quantity(d decimal.Decimal) decimal.Decimal { return d.Round(model.QuantityPlaces) }

// Op names a store call that can be made to fail.
type Op string

const (
	OpBegin              Op = "begin"
	OpCommit             Op = "commit"
	OpLockContact        Op = "lock_contact"
	OpLockInventoryItems Op = "lock_inventory_items"
	OpLockInvoice        Op = "lock_invoice"
	OpInsertInvoice      Op = "insert_invoice"
	OpInsertLineItems    Op = "insert_line_items"
	OpAdjustQuantity     Op = "adjust_quantity"
	OpAdjustBalance      Op = "adjust_balance"
	OpSetPayment         Op = "set_payment"
	OpRead               Op = "read"
)

// ErrInjected is the default error returned by an injected fault.
var ErrInjected = errors.New("injected fault")

type fault struct {
	nth  int
	seen int
	err  error
}

type state struct {
	contacts map[uint64]model.Contact
	items    map[uint64]model.InventoryItem
	invoices map[uint64]model.Invoice
	lines    []model.InvoiceLineItem

	nextContact, nextItem, nextInvoice, nextLine uint64
}

func (s state) clone() state {
	c := s
	c.contacts = make(map[uint64]model.Contact, len(s.contacts))
	for k, v := range s.contacts {
		c.contacts[k] = v
	}
	c.items = make(map[uint64]model.InventoryItem, len(s.items))
	for k, v := range s.items {
		c.items[k] = v
	}
	c.invoices = make(map[uint64]model.Invoice, len(s.invoices))
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	c.lines = append([]model.InvoiceLineItem(nil), s.lines...)
	return c
}

// Store is an in-memory ledger store. Units of work are serialized.
type Store struct {
	mu     sync.Mutex
	st     state
	faults map[Op]*fault
	now    func() time.Time
}

var _ ledger.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		st: state{
			contacts: map[uint64]model.Contact{},
			items:    map[uint64]model.InventoryItem{},
			invoices: map[uint64]model.Invoice{},
		},
		faults: map[Op]*fault{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time stamped on new rows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailOn makes the nth call (1-based, counted from now) of op return err.
// A nil err means ErrInjected.
func (s *Store) FailOn(op Op, nth int, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = &fault{nth: nth, err: err}
}

// hit reports the injected error for op, if any. Callers hold s.mu.
func (s *Store) hit(op Op) error {
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	f.seen++
	if f.seen < f.nth {
		return nil
	}
	delete(s.faults, op)
	return f.err
}

// AddContact seeds a contact and returns it with its id.
func (s *Store) AddContact(c model.Contact) model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextContact++
	c.ID = s.st.nextContact
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
		c.UpdatedAt = c.CreatedAt
	}
	s.st.contacts[c.ID] = c
	return c
}

// AddItem seeds an inventory item and returns it with its id.
func (s *Store) AddItem(it model.InventoryItem) model.InventoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextItem++
	it.ID = s.st.nextItem
	if it.WeightUnit == "" {
		it.WeightUnit = model.WeightUnitKilogram
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = s.now()
		it.UpdatedAt = it.CreatedAt
	}
	s.st.items[it.ID] = it
	return it
}

// AddInvoice seeds an invoice row as is. It does not touch stock or
// balances.
func (s *Store) AddInvoice(inv model.Invoice) model.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextInvoice++
	inv.ID = s.st.nextInvoice
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	if inv.Status == "" {
		inv.Status = model.DeriveStatus(inv.PaidAmount, inv.TotalAmount)
	}
	s.st.invoices[inv.ID] = inv
	return inv
}

// Contact returns the committed contact.
func (s *Store) Contact(id uint64) (model.Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.contacts[id]
	return c, ok
}

// Item returns the committed inventory item.
func (s *Store) Item(id uint64) (model.InventoryItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.st.items[id]
	return it, ok
}

// Invoice returns the committed invoice.
func (s *Store) Invoice(id uint64) (model.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.st.invoices[id]
	return inv, ok
}

// InvoiceCount is the number of committed invoices.
func (s *Store) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.invoices)
}

// LineItems returns the committed line items of an invoice in insert order.
func (s *Store) LineItems(invoiceID uint64) []model.InvoiceLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.InvoiceLineItem
	for _, l := range s.st.lines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	return out
}

// WithTx implements ledger.Store.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpBegin); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	work := s.st.clone()
	if err := fn(ctx, &memTx{s: s, st: &work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.hit(OpCommit); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.st = work
	return nil
}

// InvoiceDetail implements ledger.Store.
func (s *Store) InvoiceDetail(_ context.Context, id uint64) (model.InvoiceDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpRead); err != nil {
		return model.InvoiceDetail{}, err
	}
	inv, ok := s.st.invoices[id]
	if !ok {
		return model.InvoiceDetail{}, ledger.ErrInvoiceNotFound
	}
	d := model.InvoiceDetail{
		Invoice:     inv,
		ContactName: s.st.contacts[inv.ContactID].Name,
		Items:       []model.LineItemDetail{},
	}
	for _, l := range s.st.lines {
		if l.InvoiceID == id {
			d.Items = append(d.Items, model.LineItemDetail{
				InvoiceLineItem: l,
				ItemName:        s.st.items[l.InventoryID].Name,
			})
		}
	}
	return d, nil
}

// ListInvoices implements ledger.Store.
func (s *Store) ListInvoices(_ context.Context, f model.InvoiceFilter) ([]model.InvoiceSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpRead); err != nil {
		return nil, err
	}
	out := []model.InvoiceSummary{}
	for _, inv := range s.st.invoices {
		if f.ContactID != 0 && inv.ContactID != f.ContactID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, model.InvoiceSummary{Invoice: inv, ContactName: s.st.contacts[inv.ContactID].Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []model.InvoiceSummary{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

// Invoices returns invoices created at or after since; a zero since
// returns all of them.
func (s *Store) Invoices(_ context.Context, since time.Time) ([]model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpRead); err != nil {
		return nil, err
	}
	out := []model.Invoice{}
	for _, inv := range s.st.invoices {
		if !since.IsZero() && inv.CreatedAt.Before(since) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InventoryItems returns every item ordered by id.
func (s *Store) InventoryItems(_ context.Context) ([]model.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpRead); err != nil {
		return nil, err
	}
	out := make([]model.InventoryItem, 0, len(s.st.items))
	for _, it := range s.st.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Contacts returns every contact ordered by id.
func (s *Store) Contacts(_ context.Context) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpRead); err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(s.st.contacts))
	for _, c := range s.st.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memTx writes to a working copy owned by one WithTx call. s.mu is held
// for its whole life.
type memTx struct {
	s  *Store
	st *state
}

func (t *memTx) LockContact(_ context.Context, id uint64) (model.Contact, error) {
	if err := t.s.hit(OpLockContact); err != nil {
		return model.Contact{}, err
	}
	c, ok := t.st.contacts[id]
	if !ok {
		return model.Contact{}, ledger.ErrContactNotFound
	}
	return c, nil
}

func (t *memTx) LockInventoryItems(_ context.Context, ids []uint64) (map[uint64]model.InventoryItem, error) {
	if err := t.s.hit(OpLockInventoryItems); err != nil {
		return nil, err
	}
	out := make(map[uint64]model.InventoryItem, len(ids))
	for _, id := range ids {
		if it, ok := t.st.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (t *memTx) LockInvoice(_ context.Context, id uint64) (model.Invoice, error) {
	if err := t.s.hit(OpLockInvoice); err != nil {
		return model.Invoice{}, err
	}
	inv, ok := t.st.invoices[id]
	if !ok {
		return model.Invoice{}, ledger.ErrInvoiceNotFound
	}
	return inv, nil
}

func (t *memTx) InsertInvoice(_ context.Context, inv *model.Invoice) error {
	if err := t.s.hit(OpInsertInvoice); err != nil {
		return err
	}
	t.st.nextInvoice++
	inv.ID = t.st.nextInvoice
	inv.CreatedAt = t.s.now()
	row := *inv
	row.TotalAmount = money(row.TotalAmount)
	row.PaidAmount = money(row.PaidAmount)
	t.st.invoices[inv.ID] = row
	return nil
}

func (t *memTx) InsertLineItems(_ context.Context, items []model.InvoiceLineItem) error {
	if err := t.s.hit(OpInsertLineItems); err != nil {
		return err
	}
	for _, l := range items {
		t.st.nextLine++
		l.ID = t.st.nextLine
		l.Quantity = quantity(l.Quantity)
		l.PricePerUnit = money(l.PricePerUnit)
		l.TotalPrice = money(l.TotalPrice)
		t.st.lines = append(t.st.lines, l)
	}
	return nil
}

func (t *memTx) AdjustQuantity(_ context.Context, itemID uint64, delta decimal.Decimal) error {
	if err := t.s.hit(OpAdjustQuantity); err != nil {
		return err
	}
	it, ok := t.st.items[itemID]
	if !ok {
		return ledger.ErrInventoryItemNotFound
	}
	it.Quantity = quantity(it.Quantity.Add(delta))
	t.st.items[itemID] = it
	return nil
}

func (t *memTx) AdjustBalance(_ context.Context, contactID uint64, delta decimal.Decimal) error {
	if err := t.s.hit(OpAdjustBalance); err != nil {
		return err
	}
	c, ok := t.st.contacts[contactID]
	if !ok {
		return ledger.ErrContactNotFound
	}
	c.CurrentBalance = money(c.CurrentBalance.Add(delta))
	t.st.contacts[contactID] = c
	return nil
}

func (t *memTx) SetPayment(_ context.Context, invoiceID uint64, paid decimal.Decimal, status model.InvoiceStatus) error {
	if err := t.s.hit(OpSetPayment); err != nil {
		return err
	}
	inv, ok := t.st.invoices[invoiceID]
	if !ok {
		return ledger.ErrInvoiceNotFound
	}
	inv.PaidAmount = money(paid)
	inv.Status = status
	t.st.invoices[invoiceID] = inv
	return nil
}
