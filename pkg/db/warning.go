package db

import (
	"errors"
	"time"
)

// ErrWarningNotFound is returned when resolving an unknown warning
var ErrWarningNotFound = errors.New("warning not found")

// Warning operations
const (
	OperationAssign   = "assign"
	OperationUnassign = "unassign"
)

// Warning records an appointment mutation whose association bookkeeping
// could not be completed. Retrying re-runs the reconciliation for the
// volunteer in the study.
type Warning struct {
	ID            string
	StudyID       int
	VolunteerID   int
	AppointmentID int
	GroupID       int // 0 for unassign
	Operation     string
	Message       string
	Persisting    string // rendered key of the row left behind, if known
	Attempted     []string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// Resolved reports whether the warning was cleared by a later retry
func (w Warning) Resolved() bool {
	return w.ResolvedAt != nil
}
