package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// Pair is one appointment matched with one volunteer
type Pair struct {
	Appointment model.Appointment
	VolunteerID int
}

// SkippedPair is a pair set aside because the volunteer is already booked
// at the same date and time
type SkippedPair struct {
	Pair
	ConflictingAppointmentID int
}

// BatchAssignPlan is the pairing computed before any mutation
type BatchAssignPlan struct {
	StudyID            int
	GroupID            int
	Pairs              []Pair
	Skipped            []SkippedPair
	Unpaired           []model.Appointment
	UnpairedVolunteers []int
}

// ConflictConfirmer decides whether a batch continues once conflicting
// pairs have been set aside. Returning false aborts the batch before any
// mutation.
type ConflictConfirmer func(ctx context.Context, skipped []SkippedPair) (bool, error)

// PlanBatchAssign pairs appointments and volunteers positionally up to the
// shorter list. Pairs whose volunteer already holds the same slot, in the
// store or earlier in the batch, are skipped.
func (o *Orchestrator) PlanBatchAssign(ctx context.Context, appointments []model.Appointment, volunteerIDs []int, groupID int) (*BatchAssignPlan, error) {
	studyID, err := batchStudy(appointments)
	if err != nil {
		return nil, err
	}
	for i, v := range volunteerIDs {
		if v <= 0 {
			return nil, model.ValidationErrorf("volunteer id at position %d is missing", i)
		}
	}

	schedule, err := LoadStudySchedule(ctx, o.appointments, o.logger, studyID)
	if err != nil {
		return nil, err
	}

	n := min(len(appointments), len(volunteerIDs))
	plan := &BatchAssignPlan{
		StudyID:            studyID,
		GroupID:            groupID,
		Unpaired:           append([]model.Appointment(nil), appointments[n:]...),
		UnpairedVolunteers: append([]int(nil), volunteerIDs[n:]...),
	}

	for i := 0; i < n; i++ {
		appt, volunteerID := appointments[i], volunteerIDs[i]
		pair := Pair{Appointment: appt, VolunteerID: volunteerID}

		if clash, ok := schedule.Conflicts.ConflictingAppointment(volunteerID, appt.Date, appt.Time, appt.AppointmentID); ok {
			o.logger.Debug("Skipping conflicting pair",
				zap.Int("appointment_id", appt.AppointmentID),
				zap.Int("volunteer_id", volunteerID),
				zap.Int("conflicts_with", clash))
			plan.Skipped = append(plan.Skipped, SkippedPair{Pair: pair, ConflictingAppointmentID: clash})
			continue
		}

		// Later pairs in the batch must see this booking
		schedule.Conflicts.Record(volunteerID, appt.Date, appt.Time, appt.AppointmentID)
		plan.Pairs = append(plan.Pairs, pair)
	}

	o.logger.Debug("Planned batch assignment",
		zap.Int("study_id", studyID),
		zap.Int("pairs", len(plan.Pairs)),
		zap.Int("skipped", len(plan.Skipped)),
		zap.Int("unpaired", len(plan.Unpaired)))

	return plan, nil
}

// BatchAssign plans the batch, asks confirm when pairs were skipped, then
// assigns every remaining pair concurrently. Per-item failures never fail
// the batch; once confirmed the batch runs to completion.
func (o *Orchestrator) BatchAssign(ctx context.Context, appointments []model.Appointment, volunteerIDs []int, groupID int, confirm ConflictConfirmer) (*BatchResult, error) {
	plan, err := o.PlanBatchAssign(ctx, appointments, volunteerIDs, groupID)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Skipped: plan.Skipped, Unpaired: plan.Unpaired}

	if len(plan.Skipped) > 0 {
		proceed := false
		if confirm != nil {
			proceed, err = confirm(ctx, plan.Skipped)
			if err != nil {
				return nil, fmt.Errorf("failed to confirm skipped pairs: %w", err)
			}
		}
		if !proceed {
			o.logger.Info("Batch assignment aborted at conflict confirmation",
				zap.Int("study_id", plan.StudyID),
				zap.Int("skipped", len(plan.Skipped)))
			result.Aborted = true
			return result, nil
		}
	}

	o.runBatch(ctx, "assign", len(plan.Pairs), result, func(ctx context.Context, i int) (*ItemResult, ItemFailure) {
		pair := plan.Pairs[i]
		item, err := o.AssignSingle(ctx, pair.Appointment, pair.VolunteerID, plan.GroupID)
		return item, ItemFailure{AppointmentID: pair.Appointment.AppointmentID, VolunteerID: pair.VolunteerID, Err: err}
	})

	o.logger.Info("Batch assignment complete",
		zap.Int("study_id", plan.StudyID),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}

// runBatch fans n items out with the configured concurrency and collects
// results in input order
func (o *Orchestrator) runBatch(ctx context.Context, operation string, n int, result *BatchResult, item func(ctx context.Context, i int) (*ItemResult, ItemFailure)) {
	// No mid-batch cancellation
	ctx = context.WithoutCancel(ctx)

	items := make([]*ItemResult, n)
	failures := make([]ItemFailure, n)

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			items[i], failures[i] = item(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	for i := 0; i < n; i++ {
		if failures[i].Err != nil {
			o.logger.Warn("Batch item failed",
				zap.String("operation", operation),
				zap.Int("appointment_id", failures[i].AppointmentID),
				zap.Error(failures[i].Err))
			result.Failed = append(result.Failed, failures[i])
			continue
		}
		result.Succeeded = append(result.Succeeded, *items[i])
		result.Warnings = append(result.Warnings, items[i].Warnings...)
	}

	o.metrics.BatchItems(operation, "succeeded", len(result.Succeeded))
	o.metrics.BatchItems(operation, "failed", len(result.Failed))
}

// batchStudy validates that a batch targets exactly one study
func batchStudy(appointments []model.Appointment) (int, error) {
	if len(appointments) == 0 {
		return 0, model.ValidationErrorf("batch has no appointments")
	}

	studyID := appointments[0].StudyID
	if studyID <= 0 {
		return 0, model.ValidationErrorf("invalid study id %d", studyID)
	}
	var errs []error
	for _, a := range appointments {
		if a.StudyID != studyID {
			errs = append(errs, fmt.Errorf("appointment %d belongs to study %d", a.AppointmentID, a.StudyID))
		}
		if a.AppointmentID <= 0 {
			errs = append(errs, fmt.Errorf("appointment id missing"))
		}
	}
	if len(errs) > 0 {
		return 0, model.ValidationErrorf("batch must target study %d: %v", studyID, errors.Join(errs...))
	}
	return studyID, nil
}
