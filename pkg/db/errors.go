package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// sqliteIndexColumns maps unique index names to the columns sqlite lists in
// its violation message, which never carries the index name.
var sqliteIndexColumns = map[string]string{
	"ux_carts_active_user":       "carts.user_id",
	"ux_line_items_cart_variant": "line_items.cart_id, line_items.variant_id",
}

// IsUniqueViolation reports whether err is a unique constraint violation.
// When constraintName is provided, the violated constraint must match it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraintName == "" || strings.Contains(msg, constraintName) {
		return true
	}
	cols, ok := sqliteIndexColumns[constraintName]
	return ok && strings.Contains(msg, "UNIQUE constraint failed: "+cols)
}
