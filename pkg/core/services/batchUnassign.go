package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// BatchUnassign unassigns every appointment concurrently. The caller must
// confirm the number of appointments it expects to clear.
func (o *Orchestrator) BatchUnassign(ctx context.Context, appointments []model.Appointment, confirmedCount int) (*BatchResult, error) {
	studyID, err := batchStudy(appointments)
	if err != nil {
		return nil, err
	}
	if confirmedCount != len(appointments) {
		return nil, model.ValidationErrorf("confirmed %d appointments but batch has %d", confirmedCount, len(appointments))
	}

	o.logger.Debug("Unassigning batch", zap.Int("study_id", studyID), zap.Int("appointments", len(appointments)))

	result := &BatchResult{}
	o.runBatch(ctx, "unassign", len(appointments), result, func(ctx context.Context, i int) (*ItemResult, ItemFailure) {
		appt := appointments[i]
		item, err := o.UnassignSingle(ctx, appt)
		failure := ItemFailure{AppointmentID: appt.AppointmentID, Err: err}
		if appt.VolunteerID != nil {
			failure.VolunteerID = *appt.VolunteerID
		}
		return item, failure
	})

	o.logger.Info("Batch unassignment complete",
		zap.Int("study_id", studyID),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}
