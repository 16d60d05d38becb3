package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// containsCode reports whether err (or a wrapped cause) is a pgconn.PgError
// carrying the given SQLSTATE code.
func containsCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
