package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the engine and by Store implementations.
// Callers classify them with KindOf.
var (
	ErrContactNotFound       = errors.New("contact not found")
	ErrInventoryItemNotFound = errors.New("inventory item not found")
	ErrInvoiceNotFound       = errors.New("invoice not found")

	// ErrValidation marks missing or invalid input.
	ErrValidation = errors.New("validation error")

	// ErrStorageFault marks a failed read, write, begin or commit. The
	// operation that hit it has been rolled back.
	ErrStorageFault = errors.New("storage fault")

	// ErrInvoiceCreationFailed wraps every failure of CreateInvoice; the
	// cause stays reachable through errors.Is.
	ErrInvoiceCreationFailed = errors.New("invoice creation failed")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Kind is the caller-facing class of an error.
type Kind int

const (
	KindNone Kind = iota
	KindNotFound
	KindValidation
	KindStorageFault
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_error"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	}
	return "storage_fault"
}

// KindOf classifies err. Errors that carry none of the known sentinels are
// treated as storage faults.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrContactNotFound),
		errors.Is(err, ErrInventoryItemNotFound),
		errors.Is(err, ErrInvoiceNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	}
	return KindStorageFault
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storageFault tags err as a storage fault unless it already carries a
// known sentinel.
func storageFault(err error) error {
	if err == nil || KindOf(err) != KindStorageFault || errors.Is(err, ErrStorageFault) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageFault, err)
}
