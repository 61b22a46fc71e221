package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
	"github.com/jakechorley/study-scheduler/pkg/db"
)

// UnassignSingle clears the volunteer from an appointment, preserving its
// group and every other field. The volunteer's association is removed only
// when they hold no other appointment in the study.
func (o *Orchestrator) UnassignSingle(ctx context.Context, appt model.Appointment) (*ItemResult, error) {
	if appt.StudyID <= 0 || appt.AppointmentID <= 0 {
		return nil, model.ValidationErrorf("study and appointment ids are required (study=%d appointment=%d)",
			appt.StudyID, appt.AppointmentID)
	}

	logger := o.logger.With(zap.Int("study_id", appt.StudyID), zap.Int("appointment_id", appt.AppointmentID))
	logger.Debug("Unassigning appointment")

	current, err := o.appointments.GetAppointment(ctx, appt.StudyID, appt.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch appointment: %w", err)
	}

	// Step 1: Nothing booked
	if !current.HasVolunteer() {
		logger.Debug("Appointment has no volunteer, nothing to do")
		return &ItemResult{Appointment: *current, NoOp: true}, nil
	}

	volunteerID := *current.VolunteerID
	logger = logger.With(zap.Int("volunteer_id", volunteerID))

	unlock, err := o.lockVolunteer(ctx, appt.StudyID, volunteerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &ItemResult{}

	// Step 2: Remove the association (soft)
	others, err := o.otherAppointments(ctx, appt.StudyID, volunteerID, appt.AppointmentID)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, *o.softFailure(ctx, db.OperationUnassign, *current, volunteerID, 0, err))
	case others > 0:
		logger.Debug("Volunteer still holds appointments, keeping association", zap.Int("appointments", others))
	default:
		outcome, err := o.reconciler.Unassign(ctx, appt.StudyID, volunteerID)
		if err != nil {
			result.Warnings = append(result.Warnings, *o.softFailure(ctx, db.OperationUnassign, *current, volunteerID, 0, err))
		} else {
			result.Reconciliation = outcome
		}
	}

	// Step 3: Clear the volunteer (hard)
	updated := *current
	updated.VolunteerID = nil

	saved, err := o.appointments.UpdateAppointment(ctx, updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	result.Appointment = *saved

	logger.Info("Volunteer unassigned", zap.Int("warnings", len(result.Warnings)))

	return result, nil
}
