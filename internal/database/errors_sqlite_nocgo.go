//go:build !cgo

package database

// isSQLiteUniqueViolation never matches without cgo: the cgo sqlite3 driver's
// typed errors do not exist in pure-Go builds, which surface constraint
// failures as plain errors handled by the string check in IsUniqueViolation.
func isSQLiteUniqueViolation(err error) (ok, matched bool) {
	return false, false
}
