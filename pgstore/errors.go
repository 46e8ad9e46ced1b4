package pgstore

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// isRetryable reports whether err is a serialization failure or deadlock,
// after which the whole transaction can be replayed.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	default:
		return false
	}
}
