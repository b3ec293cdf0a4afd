package library

import (
	"fmt"

	"github.com/pkg/errors"

	"library-circulation/library/calendar"
)

var (
	// ErrNotFound is returned when a book, member or loan id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBookUnavailable is returned when no copy of a book is on the shelf.
	ErrBookUnavailable = errors.New("book unavailable")

	// ErrMemberSuspended is returned when a member may not borrow: they hold an
	// overdue loan or a suspension from a late return is still running.
	ErrMemberSuspended = errors.New("member suspended")

	// ErrAlreadyReturned is returned when a loan that is already closed is returned again.
	ErrAlreadyReturned = errors.New("loan already returned")

	// ErrInvalidFormat is returned for malformed date strings.
	ErrInvalidFormat = calendar.ErrInvalidFormat

	// ErrStorageFailure marks errors raised by the database during a write.
	ErrStorageFailure = errors.New("storage failure")

	// ErrInvalidInput is returned by catalog mutators for rejected field values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrHasLoanHistory is returned when deleting a book or member that loans reference.
	ErrHasLoanHistory = errors.New("loan history exists")

	// ErrAuthFailed is returned for a wrong member password.
	ErrAuthFailed = errors.New("authentication failed")
)

// StorageError wraps a database error raised while reading or writing
// circulation state. It matches ErrStorageFailure with errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageFailure, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorageFailure) true for every StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorageFailure }

// storageErr wraps err as a StorageError unless it already is one.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: errors.WithStack(err)}
}
