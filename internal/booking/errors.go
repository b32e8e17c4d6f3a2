package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// Sentinel errors returned by the booking service.  Typed errors below
// match them through errors.Is so callers can switch on the sentinel and
// still read the details with errors.As.
var (
	ErrValidation            = errors.New("validation error")
	ErrNotFoundOrForbidden   = errors.New("booking not found")
	ErrSeatConflict          = errors.New("seats unavailable")
	ErrInsufficientPoints    = pricing.ErrInsufficientPoints
	ErrAlreadyConfirmed      = errors.New("booking already confirmed")
	ErrHoldExpired           = errors.New("hold expired")
	ErrConfirmationLost      = errors.New("booking changed during confirmation")
	ErrCannotCancelConfirmed = errors.New("confirmed bookings cannot be cancelled")
	ErrStorage               = errors.New("storage error")
)

// ValidationError reports malformed or unknown input.
type ValidationError struct {
	Msg     string
	SeatIDs []uint64
	Types   []string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// SeatConflictError lists the requested seats that already carry an active
// booking.
type SeatConflictError struct {
	SeatIDs []uint64
}

func (e *SeatConflictError) Error() string {
	ids := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		ids[i] = fmt.Sprint(id)
	}
	return "seats unavailable: " + strings.Join(ids, ",")
}

func (e *SeatConflictError) Is(target error) bool { return target == ErrSeatConflict }

// StorageError wraps a datastore failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
