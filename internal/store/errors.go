package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// IsContention reports whether an error is an expected lock-contention
// outcome: another writer held the database past the configured lock-wait
// timeout. Workers treat these as "try the next item", never as failures to
// surface.
func IsContention(err error) bool {
	if err == nil {
		return false
	}
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// IsConstraint reports whether an error is a constraint or integrity
// violation. These are fatal to the operation that produced them and are
// propagated to the caller.
func IsConstraint(err error) bool {
	if err == nil {
		return false
	}
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
