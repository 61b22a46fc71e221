package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/clients/storeclient"
	"github.com/jakechorley/study-scheduler/pkg/core/model"
	"github.com/jakechorley/study-scheduler/pkg/core/reconciler"
	"github.com/jakechorley/study-scheduler/pkg/db"
	"github.com/jakechorley/study-scheduler/pkg/fakestore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"))
}

type harness struct {
	store   *fakestore.Store
	orch    *Orchestrator
	journal *db.MemoryDB
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := fakestore.New()
	store.AddStudy(model.Study{ID: 1, Ref: "S1"})
	store.AddGroup(model.Group{ID: 1, StudyID: 1, Label: "A", IV: 50})
	store.AddGroup(model.Group{ID: 2, StudyID: 1, Label: "B", IV: 80})

	server := httptest.NewServer(store.Handler())
	t.Cleanup(server.Close)

	client, err := storeclient.NewClientWithHTTP(server.URL, server.Client())
	require.NoError(t, err)

	rec := reconciler.New(client, client, zap.NewNop(), reconciler.Options{
		PollInterval:   2 * time.Millisecond,
		SettleTimeout:  20 * time.Millisecond,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
	})

	journal := db.NewMemoryDB()
	orch := NewOrchestrator(client, rec, zap.NewNop(), Options{
		BatchConcurrency: 3,
		Journal:          journal,
	})

	return &harness{store: store, orch: orch, journal: journal}
}

func (h *harness) slot(date, at string, group, volunteer *int) model.Appointment {
	return h.store.PutAppointment(model.Appointment{
		StudyID:         1,
		Date:            date,
		Time:            at,
		DurationMinutes: 30,
		Status:          model.AppointmentPlanned,
		GroupID:         group,
		VolunteerID:     volunteer,
	})
}

func (h *harness) enroll(volunteerID, groupID, iv, subject int) {
	h.store.PutAssociation(model.Association{
		StudyID: 1, GroupID: groupID, VolunteerID: model.IntPtr(volunteerID),
		IV: iv, SubjectNumber: subject, Paid: model.PaidFor(iv), Status: model.AssociationEnrolled,
	})
}

func (h *harness) associationsOf(volunteerID int) []model.Association {
	var out []model.Association
	for _, a := range h.store.Associations(1) {
		if a.BelongsTo(volunteerID) {
			out = append(out, a)
		}
	}
	return out
}

func (h *harness) appointmentPuts() int {
	n := 0
	for _, c := range h.store.Calls() {
		if strings.HasPrefix(c, "PUT ") {
			n++
		}
	}
	return n
}

func TestAssignSingle_SetsVolunteerAndGroup(t *testing.T) {
	h := newHarness(t)
	comment := "fasting"
	appt := h.slot("2024-06-01", "09:00", nil, nil)
	appt.Comments = &comment
	h.store.PutAppointment(appt)

	result, err := h.orch.AssignSingle(context.Background(), appt, 7, 2)
	require.NoError(t, err)

	assert.Empty(t, result.Warnings)
	require.NotNil(t, result.Reconciliation)
	assert.Equal(t, reconciler.ActionCreated, result.Reconciliation.Action)

	stored, ok := h.store.Appointment(1, appt.AppointmentID)
	require.True(t, ok)
	assert.Equal(t, 7, *stored.VolunteerID)
	assert.Equal(t, 2, *stored.GroupID)
	assert.Equal(t, "09:00", stored.Time)
	assert.Equal(t, model.AppointmentPlanned, stored.Status)
	require.NotNil(t, stored.Comments)
	assert.Equal(t, "fasting", *stored.Comments)

	rows := h.associationsOf(7)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].GroupID)
	assert.Equal(t, 80, rows[0].IV)
}

func TestAssignSingle_PreservesExistingGroup(t *testing.T) {
	h := newHarness(t)
	appt := h.slot("2024-06-01", "09:00", model.IntPtr(1), nil)

	_, err := h.orch.AssignSingle(context.Background(), appt, 7, 2)
	require.NoError(t, err)

	stored, _ := h.store.Appointment(1, appt.AppointmentID)
	assert.Equal(t, 1, *stored.GroupID)
	rows := h.associationsOf(7)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].GroupID)
	assert.Equal(t, 50, rows[0].IV)
}

func TestAssignSingle_InfersGroupFromAssociation(t *testing.T) {
	h := newHarness(t)
	h.enroll(7, 2, 80, 4)
	appt := h.slot("2024-06-01", "09:00", nil, nil)

	result, err := h.orch.AssignSingle(context.Background(), appt, 7, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, *result.Appointment.GroupID)
	assert.Equal(t, reconciler.ActionUnchanged, result.Reconciliation.Action)
	rows := h.associationsOf(7)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].SubjectNumber, "matching association is left alone")
}

func TestAssignSingle_NoGroupIsValidationError(t *testing.T) {
	h := newHarness(t)
	appt := h.slot("2024-06-01", "09:00", nil, nil)

	_, err := h.orch.AssignSingle(context.Background(), appt, 7, 0)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, h.appointmentPuts())
	assert.Empty(t, h.store.Associations(1))
}

func TestAssignSingle_GroupInferenceStoreFailure(t *testing.T) {
	h := newHarness(t)
	appt := h.slot("2024-06-01", "09:00", nil, nil)
	h.store.Fail("GET /study-volunteers/study/{studyId}", http.StatusServiceUnavailable, -1)

	_, err := h.orch.AssignSingle(context.Background(), appt, 7, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, h.appointmentPuts())
}

func TestAssignSingle_MissingIDs(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.AssignSingle(context.Background(), model.Appointment{StudyID: 1, AppointmentID: 1}, 0, 2)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Empty(t, h.store.Calls())
}

func TestAssignSingle_AppointmentGone(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.AssignSingle(context.Background(), model.Appointment{StudyID: 1, AppointmentID: 42}, 7, 2)
	assert.ErrorIs(t, err, model.ErrAppointmentNotFound)
	assert.Empty(t, h.store.Associations(1))
}

func TestAssignSingle_ReconciliationFailureIsWarning(t *testing.T) {
	h := newHarness(t)
	h.store.Fail("POST /study-volunteers", http.StatusBadRequest, -1)
	appt := h.slot("2024-06-01", "09:00", nil, nil)

	result, err := h.orch.AssignSingle(context.Background(), appt, 7, 2)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, db.OperationAssign, result.Warnings[0].Operation)
	assert.Equal(t, 2, result.Warnings[0].GroupID)

	stored, _ := h.store.Appointment(1, appt.AppointmentID)
	assert.Equal(t, 7, *stored.VolunteerID, "appointment update is not blocked")

	journalled, err := h.journal.GetWarnings(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, journalled, 1)
	assert.Equal(t, result.Warnings[0].ID, journalled[0].ID)
}

func TestAssignSingle_AppointmentUpdateFailureIsHard(t *testing.T) {
	h := newHarness(t)
	appt := h.slot("2024-06-01", "09:00", nil, nil)
	h.store.Fail("PUT /studies/{studyId}/appointments/{appointmentId}", http.StatusInternalServerError, -1)

	_, err := h.orch.AssignSingle(context.Background(), appt, 7, 2)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestAssignSingle_ReleasesPreviousVolunteer(t *testing.T) {
	h := newHarness(t)
	h.enroll(8, 1, 50, 0)
	appt := h.slot("2024-06-01", "09:00", model.IntPtr(1), model.IntPtr(8))

	result, err := h.orch.AssignSingle(context.Background(), appt, 7, 0)
	require.NoError(t, err)

	assert.Empty(t, result.Warnings)
	assert.Empty(t, h.associationsOf(8))
	assert.Len(t, h.associationsOf(7), 1)
}

func TestAssignSingle_KeepsPreviousVolunteerWithOtherSlots(t *testing.T) {
	h := newHarness(t)
	h.enroll(8, 1, 50, 0)
	appt := h.slot("2024-06-01", "09:00", model.IntPtr(1), model.IntPtr(8))
	h.slot("2024-06-02", "09:00", model.IntPtr(1), model.IntPtr(8))

	_, err := h.orch.AssignSingle(context.Background(), appt, 7, 0)
	require.NoError(t, err)

	assert.Len(t, h.associationsOf(8), 1)
}

func TestAssignSingle_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	appt := h.slot("2024-06-01", "09:00", nil, nil)
	ctx := context.Background()

	_, err := h.orch.AssignSingle(ctx, appt, 7, 2)
	require.NoError(t, err)
	_, err = h.orch.AssignSingle(ctx, appt, 7, 2)
	require.NoError(t, err)

	assert.Len(t, h.associationsOf(7), 1)
}

func TestUnassignSingle_ConservesGroup(t *testing.T) {
	h := newHarness(t)
	h.enroll(7, 2, 80, 0)
	comment := "bring ID"
	appt := h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))
	appt.Comments = &comment
	appt.Status = model.AppointmentConfirmed
	h.store.PutAppointment(appt)

	result, err := h.orch.UnassignSingle(context.Background(), appt)
	require.NoError(t, err)

	assert.Empty(t, result.Warnings)
	stored, _ := h.store.Appointment(1, appt.AppointmentID)
	assert.Nil(t, stored.VolunteerID)
	require.NotNil(t, stored.GroupID)
	assert.Equal(t, 2, *stored.GroupID)
	assert.Equal(t, model.AppointmentConfirmed, stored.Status)
	assert.Equal(t, "bring ID", *stored.Comments)
	assert.Empty(t, h.associationsOf(7))
}

func TestUnassignSingle_NoVolunteerIsNoOp(t *testing.T) {
	h := newHarness(t)
	appt := h.slot("2024-06-01", "09:00", model.IntPtr(2), nil)

	result, err := h.orch.UnassignSingle(context.Background(), appt)
	require.NoError(t, err)

	assert.True(t, result.NoOp)
	assert.Zero(t, h.appointmentPuts())
}

func TestUnassignSingle_KeepsAssociationWhileOtherSlotsHeld(t *testing.T) {
	h := newHarness(t)
	h.enroll(7, 2, 80, 0)
	appt := h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))
	h.slot("2024-06-08", "09:00", model.IntPtr(2), model.IntPtr(7))

	result, err := h.orch.UnassignSingle(context.Background(), appt)
	require.NoError(t, err)

	assert.Nil(t, result.Reconciliation)
	assert.Len(t, h.associationsOf(7), 1)
}

func TestUnassignSingle_StickySubjectNumber(t *testing.T) {
	h := newHarness(t)
	h.store.StickySubjectNumbers = true
	h.enroll(7, 2, 80, 7)
	appt := h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))

	result, err := h.orch.UnassignSingle(context.Background(), appt)
	require.NoError(t, err)

	require.NotNil(t, result.Reconciliation)
	assert.Contains(t, result.Reconciliation.Strategies, reconciler.StrategyResetSubjectNumber)
	assert.Empty(t, h.store.Associations(1))
}

func TestUnassignSingle_PersistingAssociationIsWarning(t *testing.T) {
	h := newHarness(t)
	h.store.StickySubjectNumbers = true
	h.store.Fail("PATCH /study-volunteers/update-{field}", http.StatusBadRequest, -1)
	h.enroll(7, 2, 80, 7)
	appt := h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))

	result, err := h.orch.UnassignSingle(context.Background(), appt)
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	var recErr *model.ReconciliationError
	require.True(t, errors.As(result.Warnings[0].Err, &recErr))
	require.NotNil(t, recErr.Persisting)

	stored, _ := h.store.Appointment(1, appt.AppointmentID)
	assert.Nil(t, stored.VolunteerID)

	journalled, err := h.journal.GetWarnings(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, journalled, 1)
	assert.Equal(t, recErr.Persisting.String(), journalled[0].Persisting)
	assert.Len(t, journalled[0].Attempted, 4)
}

func TestBatchAssign_PartialFailureIsolation(t *testing.T) {
	h := newHarness(t)
	var appts []model.Appointment
	for i := 0; i < 5; i++ {
		appts = append(appts, h.slot("2024-06-01", []string{"09:00", "09:30", "10:00", "10:30", "11:00"}[i], nil, nil))
	}
	require.Equal(t, 3, appts[2].AppointmentID)
	h.store.Fail("PUT /studies/1/appointments/3", http.StatusInternalServerError, -1)

	result, err := h.orch.BatchAssign(context.Background(), appts, []int{11, 12, 13, 14, 15}, 2, nil)
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 4)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 3, result.Failed[0].AppointmentID)
	assert.ErrorIs(t, result.Failed[0].Err, model.ErrStoreUnavailable)

	for i, appt := range appts {
		stored, _ := h.store.Appointment(1, appt.AppointmentID)
		if i == 2 {
			assert.Nil(t, stored.VolunteerID)
			continue
		}
		require.NotNil(t, stored.VolunteerID, "appointment %d", appt.AppointmentID)
		assert.Equal(t, 11+i, *stored.VolunteerID)
	}
}

func TestBatchAssign_PairingShortfall(t *testing.T) {
	h := newHarness(t)
	// Two appointments share the same instant; different volunteers there are not a conflict
	a1 := h.slot("2024-06-01", "09:00", nil, nil)
	a2 := h.slot("2024-06-01", "09:00", nil, nil)
	a3 := h.slot("2024-06-01", "10:00", nil, nil)

	result, err := h.orch.BatchAssign(context.Background(), []model.Appointment{a1, a2, a3}, []int{7, 8}, 2, nil)
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 2)
	assert.Empty(t, result.Skipped)
	assert.False(t, result.Aborted)
	first, _ := h.store.Appointment(1, a1.AppointmentID)
	second, _ := h.store.Appointment(1, a2.AppointmentID)
	require.NotNil(t, first.VolunteerID)
	require.NotNil(t, second.VolunteerID)
	assert.Equal(t, 7, *first.VolunteerID)
	assert.Equal(t, 8, *second.VolunteerID)
	require.Len(t, result.Unpaired, 1)
	assert.Equal(t, a3.AppointmentID, result.Unpaired[0].AppointmentID)
	for _, s := range result.Succeeded {
		assert.NotEqual(t, a3.AppointmentID, s.Appointment.AppointmentID)
	}

	stored, _ := h.store.Appointment(1, a3.AppointmentID)
	assert.Nil(t, stored.VolunteerID)
}

func TestBatchAssign_DeclinedConfirmationMutatesNothing(t *testing.T) {
	h := newHarness(t)
	h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))
	clash := h.slot("2024-06-01", "09:00", nil, nil)
	free := h.slot("2024-06-02", "09:00", nil, nil)

	var seen []SkippedPair
	confirm := func(ctx context.Context, skipped []SkippedPair) (bool, error) {
		seen = skipped
		return false, nil
	}

	result, err := h.orch.BatchAssign(context.Background(), []model.Appointment{clash, free}, []int{7, 8}, 2, confirm)
	require.NoError(t, err)

	assert.True(t, result.Aborted)
	require.Len(t, seen, 1)
	assert.Equal(t, clash.AppointmentID, seen[0].Appointment.AppointmentID)
	assert.Equal(t, 1, seen[0].ConflictingAppointmentID)
	assert.Empty(t, result.Succeeded)
	assert.Zero(t, h.appointmentPuts())
	assert.Empty(t, h.store.Associations(1))
}

func TestBatchAssign_ConfirmedSkipsConflicts(t *testing.T) {
	h := newHarness(t)
	h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))
	clash := h.slot("2024-06-01", "09:00", nil, nil)
	free := h.slot("2024-06-02", "09:00", nil, nil)

	confirm := func(ctx context.Context, skipped []SkippedPair) (bool, error) { return true, nil }

	result, err := h.orch.BatchAssign(context.Background(), []model.Appointment{clash, free}, []int{7, 8}, 2, confirm)
	require.NoError(t, err)

	assert.False(t, result.Aborted)
	require.Len(t, result.Skipped, 1)
	require.Len(t, result.Succeeded, 1)
	assert.Equal(t, free.AppointmentID, result.Succeeded[0].Appointment.AppointmentID)

	stored, _ := h.store.Appointment(1, clash.AppointmentID)
	assert.Nil(t, stored.VolunteerID, "no double booking")
}

func TestBatchAssign_ConfirmError(t *testing.T) {
	h := newHarness(t)
	h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))
	clash := h.slot("2024-06-01", "09:00", nil, nil)

	confirm := func(ctx context.Context, skipped []SkippedPair) (bool, error) { return false, errors.New("stdin closed") }

	_, err := h.orch.BatchAssign(context.Background(), []model.Appointment{clash}, []int{7}, 2, confirm)
	assert.Error(t, err)
	assert.Zero(t, h.appointmentPuts())
}

func TestPlanBatchAssign_DetectsDuplicatesWithinBatch(t *testing.T) {
	h := newHarness(t)
	a1 := h.slot("2024-06-01", "09:00", nil, nil)
	a2 := h.slot("2024-06-01", "09:00", nil, nil)

	plan, err := h.orch.PlanBatchAssign(context.Background(), []model.Appointment{a1, a2}, []int{7, 7}, 2)
	require.NoError(t, err)

	require.Len(t, plan.Pairs, 1)
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, a2.AppointmentID, plan.Skipped[0].Appointment.AppointmentID)
	assert.Equal(t, a1.AppointmentID, plan.Skipped[0].ConflictingAppointmentID)
}

func TestPlanBatchAssign_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.PlanBatchAssign(ctx, nil, []int{7}, 2)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = h.orch.PlanBatchAssign(ctx, []model.Appointment{{StudyID: 1, AppointmentID: 1}, {StudyID: 2, AppointmentID: 2}}, []int{7, 8}, 2)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = h.orch.PlanBatchAssign(ctx, []model.Appointment{{StudyID: 1, AppointmentID: 1}}, []int{0}, 2)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestBatchUnassign_RequiresConfirmedCount(t *testing.T) {
	h := newHarness(t)
	appt := h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))

	_, err := h.orch.BatchUnassign(context.Background(), []model.Appointment{appt}, 2)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, h.appointmentPuts())
}

func TestBatchUnassign_SameVolunteerTwice(t *testing.T) {
	h := newHarness(t)
	h.enroll(7, 2, 80, 0)
	a1 := h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))
	a2 := h.slot("2024-06-08", "09:00", model.IntPtr(2), model.IntPtr(7))
	a3 := h.slot("2024-06-09", "09:00", model.IntPtr(2), nil)

	result, err := h.orch.BatchUnassign(context.Background(), []model.Appointment{a1, a2, a3}, 3)
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 3)
	assert.Empty(t, result.Failed)
	assert.Empty(t, h.associationsOf(7))
	for _, a := range []model.Appointment{a1, a2} {
		stored, _ := h.store.Appointment(1, a.AppointmentID)
		assert.Nil(t, stored.VolunteerID)
		assert.Equal(t, 2, *stored.GroupID)
	}
}

func TestRetryWarnings_ResolvesAfterRecovery(t *testing.T) {
	h := newHarness(t)
	h.store.Fail("POST /study-volunteers", http.StatusBadRequest, 1)
	appt := h.slot("2024-06-01", "09:00", nil, nil)
	ctx := context.Background()

	result, err := h.orch.AssignSingle(ctx, appt, 7, 2)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Empty(t, h.associationsOf(7))

	retry, err := h.orch.RetryWarnings(ctx)
	require.NoError(t, err)
	assert.Len(t, retry.Resolved, 1)
	assert.Empty(t, retry.Failed)

	rows := h.associationsOf(7)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].GroupID)

	pending, err := h.orch.ListWarnings(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRetryWarnings_StillFailing(t *testing.T) {
	h := newHarness(t)
	h.store.Fail("POST /study-volunteers", http.StatusBadRequest, -1)
	appt := h.slot("2024-06-01", "09:00", nil, nil)
	ctx := context.Background()

	_, err := h.orch.AssignSingle(ctx, appt, 7, 2)
	require.NoError(t, err)

	retry, err := h.orch.RetryWarnings(ctx)
	require.NoError(t, err)
	assert.Empty(t, retry.Resolved)
	assert.Len(t, retry.Failed, 1)

	pending, err := h.orch.ListWarnings(ctx, false)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestLoadStudySchedule(t *testing.T) {
	h := newHarness(t)
	h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))
	h.slot("2024-06-01", "10:00", model.IntPtr(2), nil)

	schedule, err := LoadStudySchedule(context.Background(), h.orch.appointments, zap.NewNop(), 1)
	require.NoError(t, err)

	assert.Len(t, schedule.Appointments, 2)
	assert.Len(t, schedule.Assigned(), 1)
	assert.True(t, schedule.Conflicts.HasConflict(7, "2024-06-01", "09:00"))
	assert.False(t, schedule.Conflicts.HasConflict(7, "2024-06-01", "10:00"))

	_, ok := schedule.Find(2)
	assert.True(t, ok)

	_, err = LoadStudySchedule(context.Background(), h.orch.appointments, zap.NewNop(), 0)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestStudySchedule_DoubleBookings(t *testing.T) {
	schedule := &StudySchedule{Appointments: []model.Appointment{
		{AppointmentID: 1, Date: "2024-06-01", Time: "09:00", VolunteerID: model.IntPtr(7)},
		{AppointmentID: 2, Date: "2024-06-01", Time: "09:00", VolunteerID: model.IntPtr(7)},
		{AppointmentID: 3, Date: "2024-06-01", Time: "09:00", VolunteerID: model.IntPtr(8)},
		{AppointmentID: 4, Date: "2024-06-01", Time: "10:00", VolunteerID: model.IntPtr(7)},
		{AppointmentID: 5, Date: "2024-06-01", Time: "09:00"},
	}}

	doubles := schedule.DoubleBookings()
	require.Len(t, doubles, 1)
	assert.Equal(t, 1, doubles[0][0].AppointmentID)
	assert.Equal(t, 2, doubles[0][1].AppointmentID)
}

func TestReconcileVolunteer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.slot("2024-06-01", "09:00", model.IntPtr(2), model.IntPtr(7))
	h.enroll(8, 1, 50, 3)

	// Booked without an association
	outcome, err := h.orch.ReconcileVolunteer(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, reconciler.ActionCreated, outcome.Action)
	require.Len(t, h.associationsOf(7), 1)
	assert.Equal(t, 2, h.associationsOf(7)[0].GroupID)

	// Association without a booking
	outcome, err = h.orch.ReconcileVolunteer(ctx, 1, 8)
	require.NoError(t, err)
	assert.Equal(t, reconciler.ActionRemoved, outcome.Action)
	assert.Empty(t, h.associationsOf(8))

	_, err = h.orch.ReconcileVolunteer(ctx, 0, 8)
	assert.ErrorIs(t, err, model.ErrValidation)
}
