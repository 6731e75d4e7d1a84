// Package handler holds the Echo HTTP handlers. Handlers depend on small
// interfaces so they can be exercised against in-memory fakes.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/repository"
)

// dbTimeout bounds the storage work of one request.
const dbTimeout = 5 * time.Second

// Validator adapts go-playground/validator to echo.Validator. Failures are
// reported as ledger validation errors.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns the request validator installed on the Echo instance.
func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ledger.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fieldName(fe), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ledger.ErrValidation, strings.Join(msgs, "; "))
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

// bind decodes the request body into req and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid body", ledger.ErrValidation)
	}
	return c.Validate(req)
}

// requestCtx derives the storage context of a request.
func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s", ledger.ErrValidation, name)
	}
	return id, nil
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ledger.ErrValidation, name)
	}
	return n, nil
}

// respondError writes the JSON error body {"error": kind, "message": text}
// with the status that matches err.
func respondError(c echo.Context, err error) error {
	status, kind, msg := classify(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request failed",
			slog.String("path", c.Request().URL.Path), slog.Any("error", err))
	}
	return c.JSON(status, echo.Map{"error": kind, "message": msg})
}

func classify(err error) (status int, kind, msg string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, ledger.KindNotFound.String(), "not found"
	case errors.Is(err, repository.ErrUsernameExists):
		return http.StatusConflict, "conflict", "username already exists"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict", "record is referenced by invoices"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ledger.KindStorageFault.String(), "storage timeout"
	}

	k := ledger.KindOf(err)
	switch k {
	case ledger.KindNotFound:
		return http.StatusNotFound, k.String(), err.Error()
	case ledger.KindValidation:
		return http.StatusBadRequest, k.String(), err.Error()
	case ledger.KindUnauthorized:
		return http.StatusUnauthorized, k.String(), err.Error()
	case ledger.KindForbidden:
		return http.StatusForbidden, k.String(), err.Error()
	}
	return http.StatusInternalServerError, ledger.KindStorageFault.String(), "internal error"
}
