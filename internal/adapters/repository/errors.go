package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound          = errors.New("queue item not found")
	ErrConflict          = errors.New("queue item changed concurrently")
	ErrBatchExists       = errors.New("learner already has pending items")
	ErrDuplicateAttempt  = errors.New("attempt already recorded for item state")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique-key failure from any of
// the supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	// mattn/go-sqlite3 and modernc.org/sqlite both surface SQLite's message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
