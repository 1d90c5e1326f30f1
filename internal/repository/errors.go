package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("record already exists")
	ErrVersionConflict = errors.New("record was modified concurrently")
	ErrLockNotAcquired = errors.New("row lock not acquired")
)

// Postgres SQLSTATEs that mean "another writer got there first".
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqQueryCanceled        = "57014"
	pqUniqueViolation      = "23505"
	pqInvalidText          = "22P02"
)

// IsConflict reports whether err is a contention failure the caller may retry.
func IsConflict(err error) bool {
	if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrLockNotAcquired) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return true
		}
	}
	return false
}

func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return errors.Join(ErrDuplicate, err)
	case pqInvalidText:
		// A malformed uuid can never match a row.
		return errors.Join(ErrNotFound, err)
	case pqLockNotAvailable, pqQueryCanceled:
		// lock_timeout surfaces as 55P03; statement_timeout while waiting on a lock as 57014.
		return errors.Join(ErrLockNotAcquired, err)
	}
	return err
}
