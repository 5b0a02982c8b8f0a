//go:build cgo

package database

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// isSQLiteUniqueViolation inspects err for the cgo sqlite3 driver's typed
// errors. matched reports whether err was a sqlite3 error at all.
func isSQLiteUniqueViolation(err error) (ok, matched bool) {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey, true
	}
	return false, false
}
