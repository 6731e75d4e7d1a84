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

// InventoryStore is the inventory persistence the handlers need.
type InventoryStore interface {
	List(ctx context.Context) ([]model.InventoryItem, error)
	Get(ctx context.Context, id uint64) (model.InventoryItem, error)
	Create(ctx context.Context, it model.InventoryItem) (model.InventoryItem, error)
	Update(ctx context.Context, id uint64, it model.InventoryItem) (model.InventoryItem, error)
	Delete(ctx context.Context, id uint64) error
}

// InventoryHandler serves /api/inventory.
type InventoryHandler struct {
	Items InventoryStore
}

func NewInventoryHandler(s InventoryStore) *InventoryHandler { return &InventoryHandler{Items: s} }

type inventoryReq struct {
	Name         string          `json:"name" validate:"required,max=255"`
	Category     string          `json:"category" validate:"max=100"`
	Quantity     decimal.Decimal `json:"quantity"`
	WeightUnit   string          `json:"weight_unit" validate:"omitempty,oneof=g kg"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

func (r inventoryReq) item() (model.InventoryItem, error) {
	if r.Quantity.IsNegative() {
		return model.InventoryItem{}, fmt.Errorf("%w: quantity must not be negative", ledger.ErrValidation)
	}
	if r.PricePerUnit.IsNegative() {
		return model.InventoryItem{}, fmt.Errorf("%w: price_per_unit must not be negative", ledger.ErrValidation)
	}
	if !model.FitsScale(r.Quantity, model.QuantityPlaces) || !model.FitsScale(r.PricePerUnit, model.MoneyPlaces) {
		return model.InventoryItem{}, fmt.Errorf("%w: quantity allows %d and price_per_unit %d decimal places",
			ledger.ErrValidation, model.QuantityPlaces, model.MoneyPlaces)
	}
	unit := model.WeightUnit(r.WeightUnit)
	if unit == "" {
		unit = model.WeightUnitKilogram
	}
	return model.InventoryItem{
		Name:         strings.TrimSpace(r.Name),
		Category:     strings.TrimSpace(r.Category),
		Quantity:     r.Quantity,
		WeightUnit:   unit,
		PricePerUnit: r.PricePerUnit,
	}, nil
}

// List returns every item ordered by name.
func (h *InventoryHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Items.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	it, err := h.Items.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, it)
}

func (h *InventoryHandler) Create(c echo.Context) error {
	var req inventoryReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	it, err := req.item()
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Items.Create(ctx, it)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// Update replaces an item. Setting quantity here is a manual stock
// correction; sales move stock through invoices.
func (h *InventoryHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req inventoryReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	it, err := req.item()
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Items.Update(ctx, id, it)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Delete removes an item; 409 when invoice lines reference it.
func (h *InventoryHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Items.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
