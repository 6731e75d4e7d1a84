// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names. Both are durable.
const (
	InvoiceCreatedQueue = "invoice.created"
	InvoiceSettledQueue = "invoice.settled"
)

// InvoiceCreatedEvent is published after an invoice and its stock and
// balance movements have been committed. Amounts are decimal strings.
type InvoiceCreatedEvent struct {
	EventID     string            `json:"event_id"`
	InvoiceID   uint64            `json:"invoice_id"`
	ContactID   uint64            `json:"contact_id"`
	TotalAmount string            `json:"total_amount"`
	Lines       []InvoiceLineData `json:"lines"`
	CreatedAt   string            `json:"created_at"`
}

// InvoiceLineData is one line of an InvoiceCreatedEvent.
type InvoiceLineData struct {
	InventoryID  uint64 `json:"inventory_id"`
	Quantity     string `json:"quantity"`
	PricePerUnit string `json:"price_per_unit"`
}

// InvoiceSettledEvent is published after a payment update has been
// committed. PaidDelta is new paid amount minus the old one.
type InvoiceSettledEvent struct {
	EventID    string `json:"event_id"`
	InvoiceID  uint64 `json:"invoice_id"`
	ContactID  uint64 `json:"contact_id"`
	PaidAmount string `json:"paid_amount"`
	PaidDelta  string `json:"paid_delta"`
	Status     string `json:"status"`
	SettledAt  string `json:"settled_at"`
}
