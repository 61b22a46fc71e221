package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned when a required identifier is missing
	ErrValidation = errors.New("validation failed")

	// ErrAppointmentNotFound is returned when the target appointment no longer exists
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrStoreUnavailable is returned on transport-level failures talking to the store
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationErrorf builds an error wrapping ErrValidation
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ReconciliationError reports an association that could not be brought to
// its expected state after every strategy and verification pass
type ReconciliationError struct {
	StudyID     int
	VolunteerID int
	Operation   string

	// Persisting is the row still present in the store, nil when the
	// expected row is missing instead
	Persisting *Association

	// Attempted lists the strategies tried, in order
	Attempted []string

	Err error
}

func (e *ReconciliationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "reconciliation %s failed for volunteer %d in study %d", e.Operation, e.VolunteerID, e.StudyID)
	if e.Persisting != nil {
		fmt.Fprintf(&b, ": record %s persists", e.Persisting)
	} else {
		b.WriteString(": expected record missing")
	}
	if len(e.Attempted) > 0 {
		fmt.Fprintf(&b, " (tried %s)", strings.Join(e.Attempted, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

// IsSoftFailure reports whether err only concerns association bookkeeping
// and must not block an appointment mutation
func IsSoftFailure(err error) bool {
	var recErr *ReconciliationError
	return errors.As(err, &recErr) || errors.Is(err, ErrStoreUnavailable)
}
