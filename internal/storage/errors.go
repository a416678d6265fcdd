package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsSlotConflict reports whether err is the bookings exclusion
// constraint firing (SQLSTATE 23P01): two active bookings for the same
// designer with overlapping time ranges. This is what closes the
// validate-then-persist race between concurrent create requests.
func IsSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsBalanceFloor reports whether err is the prepaid_balances CHECK
// (amount >= 0) firing. The service re-checks before debiting, so this
// only trips if a concurrent debit won the row lock race first.
func IsBalanceFloor(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}
