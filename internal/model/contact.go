package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contact is a customer record from the `contacts` table.
//
// CurrentBalance is what the customer owes: the sum of
// (total_amount - paid_amount) over the contact's invoices. It is only
// written by the invoice engine inside the same transaction as the invoice
// change that moves it.
type Contact struct {
	ID             uint64          `json:"id"`              // contacts.id
	Name           string          `json:"name"`            // contacts.name
	Phone          string          `json:"phone"`           // contacts.phone
	Email          string          `json:"email"`           // contacts.email
	CurrentBalance decimal.Decimal `json:"current_balance"` // contacts.current_balance
	CreatedAt      time.Time       `json:"created_at"`      // contacts.created_at
	UpdatedAt      time.Time       `json:"updated_at"`      // contacts.updated_at
}

// ContactFields holds the editable, non-financial part of a contact.
type ContactFields struct {
	Name  string
	Phone string
	Email string
}
