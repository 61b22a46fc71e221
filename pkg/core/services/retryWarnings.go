package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
	"github.com/jakechorley/study-scheduler/pkg/core/reconciler"
	"github.com/jakechorley/study-scheduler/pkg/db"
)

// RetryResult reports a journal retry pass
type RetryResult struct {
	Resolved []db.Warning
	Failed   []RetryFailure
}

// RetryFailure is a warning whose reconciliation failed again
type RetryFailure struct {
	Warning db.Warning
	Err     error
}

// ListWarnings returns journalled warnings, unresolved only unless includeResolved
func (o *Orchestrator) ListWarnings(ctx context.Context, includeResolved bool) ([]db.Warning, error) {
	warnings, err := o.journal.GetWarnings(ctx, includeResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch warnings: %w", err)
	}
	return warnings, nil
}

// RetryWarnings re-runs the association reconciliation for every
// unresolved warning, using the appointments as they are now, and marks
// the warnings that succeed as resolved
func (o *Orchestrator) RetryWarnings(ctx context.Context) (*RetryResult, error) {
	warnings, err := o.ListWarnings(ctx, false)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("Retrying warnings", zap.Int("count", len(warnings)))

	result := &RetryResult{}
	for _, w := range warnings {
		if err := o.retryWarning(ctx, w); err != nil {
			o.logger.Warn("Warning retry failed",
				zap.String("warning_id", w.ID),
				zap.String("operation", w.Operation),
				zap.Error(err))
			result.Failed = append(result.Failed, RetryFailure{Warning: w, Err: err})
			continue
		}

		if err := o.journal.ResolveWarning(ctx, w.ID, o.now()); err != nil {
			return result, fmt.Errorf("failed to resolve warning %s: %w", w.ID, err)
		}
		result.Resolved = append(result.Resolved, w)
	}

	o.logger.Info("Warning retry complete",
		zap.Int("resolved", len(result.Resolved)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// ReconcileVolunteer brings the volunteer's association in line with the
// appointments they currently hold: removed when they hold none, otherwise
// assigned to the group of their appointments
func (o *Orchestrator) ReconcileVolunteer(ctx context.Context, studyID, volunteerID int) (*reconciler.Outcome, error) {
	if studyID <= 0 || volunteerID <= 0 {
		return nil, model.ValidationErrorf("study and volunteer ids are required (study=%d volunteer=%d)", studyID, volunteerID)
	}

	unlock, err := o.lockVolunteer(ctx, studyID, volunteerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return o.reconcileLocked(ctx, studyID, volunteerID, 0)
}

func (o *Orchestrator) retryWarning(ctx context.Context, w db.Warning) error {
	unlock, err := o.lockVolunteer(ctx, w.StudyID, w.VolunteerID)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = o.reconcileLocked(ctx, w.StudyID, w.VolunteerID, w.GroupID)
	return err
}

// reconcileLocked derives the expected association from the appointments,
// which may differ from when a warning was raised. The caller holds the
// volunteer lock.
func (o *Orchestrator) reconcileLocked(ctx context.Context, studyID, volunteerID, fallbackGroup int) (*reconciler.Outcome, error) {
	appts, err := o.appointments.ListAppointments(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	var held []model.Appointment
	for _, a := range appts {
		if a.HasVolunteer() && *a.VolunteerID == volunteerID {
			held = append(held, a)
		}
	}

	if len(held) == 0 {
		o.logger.Debug("Volunteer holds no appointment, removing association",
			zap.Int("study_id", studyID),
			zap.Int("volunteer_id", volunteerID))
		return o.reconciler.Unassign(ctx, studyID, volunteerID)
	}

	group := 0
	for _, a := range held {
		if a.GroupID != nil && *a.GroupID > 0 {
			group = *a.GroupID
			break
		}
	}
	if group == 0 {
		group = fallbackGroup
	}
	if group == 0 {
		if current, ok, err := o.reconciler.CurrentGroup(ctx, studyID, volunteerID); err == nil && ok {
			group = current
		}
	}
	if group == 0 {
		return nil, model.ValidationErrorf("no group known for volunteer %d in study %d", volunteerID, studyID)
	}

	o.logger.Debug("Volunteer holds appointments, assigning association",
		zap.Int("study_id", studyID),
		zap.Int("volunteer_id", volunteerID),
		zap.Int("appointments", len(held)),
		zap.Int("group_id", group))
	return o.reconciler.AssignOrReplace(ctx, studyID, volunteerID, group)
}
