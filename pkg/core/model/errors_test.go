package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconciliationError_Message(t *testing.T) {
	row := Association{StudyID: 1, GroupID: 2, VolunteerID: IntPtr(3), IV: 50, SubjectNumber: 7, Paid: 1, Status: AssociationEnrolled}
	err := &ReconciliationError{
		StudyID:     1,
		VolunteerID: 3,
		Operation:   "unassign",
		Persisting:  &row,
		Attempted:   []string{"clear-volunteer", "direct-delete"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "reconciliation unassign failed for volunteer 3 in study 1")
	assert.Contains(t, msg, "subject=7")
	assert.Contains(t, msg, "tried clear-volunteer, direct-delete")
}

func TestReconciliationError_MissingRecord(t *testing.T) {
	err := &ReconciliationError{StudyID: 1, VolunteerID: 3, Operation: "replace"}
	assert.Contains(t, err.Error(), "expected record missing")
}

func TestIsSoftFailure(t *testing.T) {
	recErr := &ReconciliationError{StudyID: 1, VolunteerID: 2, Operation: "assign"}

	assert.True(t, IsSoftFailure(recErr))
	assert.True(t, IsSoftFailure(fmt.Errorf("wrapped: %w", recErr)))
	assert.True(t, IsSoftFailure(fmt.Errorf("list: %w", ErrStoreUnavailable)))
	assert.False(t, IsSoftFailure(ErrAppointmentNotFound))
	assert.False(t, IsSoftFailure(errors.New("boom")))
}

func TestValidationErrorf(t *testing.T) {
	err := ValidationErrorf("volunteer id is required")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "volunteer id is required")
}

func TestAssociationKey(t *testing.T) {
	a := Association{StudyID: 1, GroupID: 2, IV: 0, Status: AssociationCancelled}
	key := a.Key()
	assert.Equal(t, 0, key.VolunteerID)
	assert.False(t, a.BelongsTo(0))

	a.VolunteerID = IntPtr(9)
	assert.Equal(t, 9, a.Key().VolunteerID)
	assert.True(t, a.BelongsTo(9))
}

func TestPaidFor(t *testing.T) {
	assert.Equal(t, 1, PaidFor(50))
	assert.Equal(t, 0, PaidFor(0))
	assert.Equal(t, 0, PaidFor(-5))
}
