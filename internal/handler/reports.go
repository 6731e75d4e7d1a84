package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/backoffice-ledger/internal/model"
)

// Reporter builds the read-only reports.
type Reporter interface {
	Sales(ctx context.Context, r model.ReportRange) (model.SalesReport, error)
	Inventory(ctx context.Context) (model.InventoryReport, error)
	Customers(ctx context.Context) (model.CustomerReport, error)
}

// ReportHandler serves /api/reports.
type ReportHandler struct {
	Reports Reporter
}

func NewReportHandler(r Reporter) *ReportHandler { return &ReportHandler{Reports: r} }

// Sales accepts ?range=week|month|year; anything else means month.
func (h *ReportHandler) Sales(c echo.Context) error {
	r := model.ParseReportRange(c.QueryParam("range"))
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Reports.Sales(ctx, r)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReportHandler) Inventory(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Reports.Inventory(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReportHandler) Customers(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Reports.Customers(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
