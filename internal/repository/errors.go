// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrNotFound indicates that the requested row does not exist,
// while ErrConflict signals that an operation cannot proceed due to
// existing dependent records (e.g. deleting a contact that still has
// invoices).
//
// Ledger rows (invoices, locked contacts and inventory items) report the
// ledger package's own not-found errors instead, see LedgerStore.
package repository

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row addressed by id does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete an inventory item that is referenced by invoice lines.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrUsernameExists is returned when registering a taken username.
var ErrUsernameExists = errors.New("username already exists")

// MySQL server error numbers the repositories react to.
const (
	errDupEntry        = 1062
	errRowIsReferenced = 1451
)

// isMySQLError reports whether err is the MySQL server error number code.
func isMySQLError(err error, code uint16) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == code
	}
	return err != nil && strings.Contains(err.Error(), strconv.Itoa(int(code)))
}
