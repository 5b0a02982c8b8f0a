package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

const mysqlDuplicateEntry = 1062

// IsUniqueViolation reports whether err is a unique-constraint violation from
// any of the supported drivers. Callers use it to detect writes lost to a
// concurrent insert on the same key, typically from another replica.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	if ok, matched := isSQLiteUniqueViolation(err); matched {
		return ok
	}

	// The pure-Go sqlite builds surface constraint failures as plain errors.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
