package pipeline

import (
	"errors"
	"fmt"

	"github.com/address-resolver/app/models"
)

// ErrorKind classifies pipeline faults. Only invalid input, cancellation and
// internal faults end an address in the error state; the rest degrade.
type ErrorKind string

const (
	KindInvalidInput          ErrorKind = "invalid_input"
	KindCapabilityUnavailable ErrorKind = "capability_unavailable"
	KindStoreFailure          ErrorKind = "store_failure"
	KindDataInconsistency     ErrorKind = "data_inconsistency"
	KindCancelled             ErrorKind = "cancelled"
	KindInternal              ErrorKind = "internal"
)

var (
	ErrEmptyInput    = errors.New("address text is empty")
	ErrInputTooShort = errors.New("address text is too short")
	ErrBadCoordinate = errors.New("coordinates out of range")
)

// Error is a stage failure.
type Error struct {
	Kind  ErrorKind
	Stage models.Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsInvalidInput reports whether err is an invalid input error.
func IsInvalidInput(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindInvalidInput
}

func (e *Error) result() *models.ResultError {
	return &models.ResultError{Kind: string(e.Kind), Stage: e.Stage, Message: e.Err.Error()}
}

func warning(kind ErrorKind, msg string) string {
	return string(kind) + ": " + msg
}
