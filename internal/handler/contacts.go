package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/model"
)

// ContactStore is the contact persistence the handlers need.
type ContactStore interface {
	List(ctx context.Context) ([]model.Contact, error)
	Get(ctx context.Context, id uint64) (model.Contact, error)
	Create(ctx context.Context, f model.ContactFields) (model.Contact, error)
	Update(ctx context.Context, id uint64, f model.ContactFields) (model.Contact, error)
	Delete(ctx context.Context, id uint64) error
}

// ContactHandler serves /api/contacts.
type ContactHandler struct {
	Contacts ContactStore
}

func NewContactHandler(s ContactStore) *ContactHandler { return &ContactHandler{Contacts: s} }

type contactReq struct {
	Name  string `json:"name" validate:"required,max=255"`
	Phone string `json:"phone" validate:"max=50"`
	Email string `json:"email" validate:"omitempty,email,max=255"`

	// Balances only move through invoices; a request carrying one is rejected.
	CurrentBalance *decimal.Decimal `json:"current_balance"`
}

func (r contactReq) fields() (model.ContactFields, error) {
	if r.CurrentBalance != nil {
		return model.ContactFields{}, fmt.Errorf("%w: current_balance is maintained by invoices and cannot be set", ledger.ErrValidation)
	}
	return model.ContactFields{
		Name:  strings.TrimSpace(r.Name),
		Phone: strings.TrimSpace(r.Phone),
		Email: strings.TrimSpace(r.Email),
	}, nil
}

// List returns every contact ordered by name.
func (h *ContactHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Contacts.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ContactHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	ct, err := h.Contacts.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ct)
}

func (h *ContactHandler) Create(c echo.Context) error {
	var req contactReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	f, err := req.fields()
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	ct, err := h.Contacts.Create(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, ct)
}

// Update edits name, phone and email.
func (h *ContactHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req contactReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	f, err := req.fields()
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	ct, err := h.Contacts.Update(ctx, id, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ct)
}

// Delete removes a contact; 409 when invoices reference it.
func (h *ContactHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Contacts.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
