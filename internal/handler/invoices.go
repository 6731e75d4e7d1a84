package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/model"
)

// InvoiceService is the invoice engine as used over HTTP.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, contactID uint64, lines []model.LineRequest) (model.Invoice, error)
	UpdateInvoicePayment(ctx context.Context, invoiceID uint64, paid decimal.Decimal, status model.InvoiceStatus) (model.Invoice, error)
	GetInvoice(ctx context.Context, id uint64) (model.InvoiceDetail, error)
	ListInvoices(ctx context.Context, f model.InvoiceFilter) ([]model.InvoiceSummary, error)
}

// InvoiceHandler serves /api/invoices.
type InvoiceHandler struct {
	Engine InvoiceService
}

func NewInvoiceHandler(e InvoiceService) *InvoiceHandler { return &InvoiceHandler{Engine: e} }

type createInvoiceReq struct {
	ContactID uint64              `json:"contact_id" validate:"required"`
	Items     []model.LineRequest `json:"items" validate:"required,min=1"`
}

type paymentReq struct {
	PaidAmount *decimal.Decimal    `json:"paid_amount" validate:"required"`
	Status     model.InvoiceStatus `json:"status"`
}

// Create records a sale: invoice, line items, stock and balance in one
// transaction.
func (h *InvoiceHandler) Create(c echo.Context) error {
	var req createInvoiceReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	inv, err := h.Engine.CreateInvoice(ctx, req.ContactID, req.Items)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, inv)
}

// List supports ?contact_id=&status=&limit=&offset=.
func (h *InvoiceHandler) List(c echo.Context) error {
	var f model.InvoiceFilter
	if raw := strings.TrimSpace(c.QueryParam("contact_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": ledger.KindValidation.String(), "message": "invalid contact_id"})
		}
		f.ContactID = id
	}
	f.Status = model.InvoiceStatus(strings.TrimSpace(c.QueryParam("status")))
	var err error
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return respondError(c, err)
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Engine.ListInvoices(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	if out == nil {
		out = []model.InvoiceSummary{}
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns an invoice with contact name and line items.
func (h *InvoiceHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	d, err := h.Engine.GetInvoice(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// UpdatePayment sets the paid amount; status is derived from it.
func (h *InvoiceHandler) UpdatePayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req paymentReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	inv, err := h.Engine.UpdateInvoicePayment(ctx, id, *req.PaidAmount, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, inv)
}
