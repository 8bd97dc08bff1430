package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is returned when no record matches the lookup, including owner scoping.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a versioned write kept losing to concurrent writers.
	ErrConflict = errors.New("version conflict")
)

// maxWriteAttempts bounds the optimistic retry loop of versioned writes.
const maxWriteAttempts = 5

// mysqlDeadlock is ER_LOCK_DEADLOCK; InnoDB has already rolled the transaction back.
const mysqlDeadlock = 1213

// isRetryable reports whether a failed write transaction may simply be run again.
func isRetryable(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDeadlock
}
