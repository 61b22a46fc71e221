package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
	"github.com/jakechorley/study-scheduler/pkg/db"
)

// AssignSingle books a volunteer on an appointment. The association is
// reconciled first; its failure is returned as a warning and never blocks
// the appointment update. The appointment keeps its group when it already
// has one, otherwise takes groupID, otherwise the volunteer's current group.
func (o *Orchestrator) AssignSingle(ctx context.Context, appt model.Appointment, volunteerID, groupID int) (*ItemResult, error) {
	if appt.StudyID <= 0 || appt.AppointmentID <= 0 || volunteerID <= 0 {
		return nil, model.ValidationErrorf("study, appointment and volunteer ids are required (study=%d appointment=%d volunteer=%d)",
			appt.StudyID, appt.AppointmentID, volunteerID)
	}

	logger := o.logger.With(
		zap.Int("study_id", appt.StudyID),
		zap.Int("appointment_id", appt.AppointmentID),
		zap.Int("volunteer_id", volunteerID))
	logger.Debug("Assigning volunteer to appointment")

	unlock, err := o.lockVolunteer(ctx, appt.StudyID, volunteerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Step 1: Re-read the appointment, it may have changed since it was loaded
	current, err := o.appointments.GetAppointment(ctx, appt.StudyID, appt.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch appointment: %w", err)
	}

	group, err := o.effectiveGroup(ctx, *current, volunteerID, groupID)
	if err != nil {
		return nil, err
	}
	logger.Debug("Resolved group", zap.Int("group_id", group))

	result := &ItemResult{}

	// Step 2: Reconcile the association (soft)
	outcome, err := o.reconciler.AssignOrReplace(ctx, appt.StudyID, volunteerID, group)
	if err != nil {
		result.Warnings = append(result.Warnings, *o.softFailure(ctx, db.OperationAssign, *current, volunteerID, group, err))
	} else {
		result.Reconciliation = outcome
	}

	// Step 3: Update the appointment (hard), every other field unchanged
	var previous int
	if current.HasVolunteer() {
		previous = *current.VolunteerID
	}

	updated := *current
	updated.VolunteerID = model.IntPtr(volunteerID)
	updated.GroupID = model.IntPtr(group)

	saved, err := o.appointments.UpdateAppointment(ctx, updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	result.Appointment = *saved

	logger.Info("Volunteer assigned",
		zap.Int("group_id", group),
		zap.Int("warnings", len(result.Warnings)))

	// Step 4: The volunteer this slot was taken from may have no slot left
	if previous > 0 && previous != volunteerID {
		unlock()
		result.Warnings = append(result.Warnings, o.releaseVolunteer(ctx, *saved, previous)...)
	}

	return result, nil
}

// effectiveGroup picks the appointment's group, then the requested one,
// then the volunteer's existing association group
func (o *Orchestrator) effectiveGroup(ctx context.Context, appt model.Appointment, volunteerID, requested int) (int, error) {
	if appt.GroupID != nil && *appt.GroupID > 0 {
		return *appt.GroupID, nil
	}
	if requested > 0 {
		return requested, nil
	}

	group, ok, err := o.reconciler.CurrentGroup(ctx, appt.StudyID, volunteerID)
	if err != nil {
		return 0, fmt.Errorf("failed to infer group from association: %w", err)
	}
	if ok && group > 0 {
		return group, nil
	}

	return 0, model.ValidationErrorf("appointment %d has no group and none could be inferred for volunteer %d",
		appt.AppointmentID, volunteerID)
}

// releaseVolunteer removes the association of a volunteer who no longer
// holds any appointment in the study
func (o *Orchestrator) releaseVolunteer(ctx context.Context, appt model.Appointment, volunteerID int) []Warning {
	unlock, err := o.lockVolunteer(ctx, appt.StudyID, volunteerID)
	if err != nil {
		return []Warning{*o.softFailure(ctx, db.OperationUnassign, appt, volunteerID, 0, err)}
	}
	defer unlock()

	others, err := o.otherAppointments(ctx, appt.StudyID, volunteerID, 0)
	if err != nil {
		return []Warning{*o.softFailure(ctx, db.OperationUnassign, appt, volunteerID, 0, err)}
	}
	if others > 0 {
		o.logger.Debug("Previous volunteer still holds appointments, keeping association",
			zap.Int("volunteer_id", volunteerID),
			zap.Int("appointments", others))
		return nil
	}

	if _, err := o.reconciler.Unassign(ctx, appt.StudyID, volunteerID); err != nil {
		return []Warning{*o.softFailure(ctx, db.OperationUnassign, appt, volunteerID, 0, err)}
	}
	return nil
}
