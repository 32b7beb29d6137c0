package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/infra/txretry"
)

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"

	pqClassConnection   = "08"
	pqClassResources    = "53"
	pqClassOperatorStop = "57"

	slugConstraint = "khatms_slug_key"
)

// classifyPostgresError tags driver errors with the khatm error taxonomy.
// Errors that are not driver errors pass through unchanged.
func classifyPostgresError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected:
			return fmt.Errorf("%w: %w", txretry.ErrTransientConflict, err)
		case pqUniqueViolation:
			if pqErr.Constraint == slugConstraint {
				return khatm.ErrDuplicateSlug
			}
			return err
		}
		switch pqErr.Code.Class() {
		case pqClassConnection, pqClassResources, pqClassOperatorStop:
			return fmt.Errorf("%w: %w", khatm.ErrStoreUnavailable, err)
		}
		return err
	}
	return classifyConnectionError(err)
}

// classifySQLiteError tags SQLite errors; busy and locked databases are
// transient conflicts.
func classifySQLiteError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch code {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return khatm.ErrDuplicateSlug
		}
		switch code & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", txretry.ErrTransientConflict, err)
		case sqlite3lib.SQLITE_CANTOPEN, sqlite3lib.SQLITE_IOERR, sqlite3lib.SQLITE_FULL:
			return fmt.Errorf("%w: %w", khatm.ErrStoreUnavailable, err)
		}
		return err
	}
	return classifyConnectionError(err)
}

func classifyConnectionError(err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", khatm.ErrStoreUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", khatm.ErrStoreUnavailable, err)
	}
	return err
}
