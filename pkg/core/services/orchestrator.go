package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
	"github.com/jakechorley/study-scheduler/pkg/core/reconciler"
	"github.com/jakechorley/study-scheduler/pkg/db"
	"github.com/jakechorley/study-scheduler/pkg/lock"
	"github.com/jakechorley/study-scheduler/pkg/metrics"
)

// AppointmentStore defines the appointment operations needed by the orchestrator
type AppointmentStore interface {
	ListAppointments(ctx context.Context, studyID int) ([]model.Appointment, error)
	GetAppointment(ctx context.Context, studyID, appointmentID int) (*model.Appointment, error)
	UpdateAppointment(ctx context.Context, appt model.Appointment) (*model.Appointment, error)
}

// AssociationReconciler keeps associations in line with assignments
type AssociationReconciler interface {
	AssignOrReplace(ctx context.Context, studyID, volunteerID, groupID int) (*reconciler.Outcome, error)
	Unassign(ctx context.Context, studyID, volunteerID int) (*reconciler.Outcome, error)
	CurrentGroup(ctx context.Context, studyID, volunteerID int) (int, bool, error)
}

// Options configures an Orchestrator. Zero values select in-process defaults.
type Options struct {
	BatchConcurrency int
	Locker           lock.Locker
	Journal          db.WarningStore
	Metrics          *metrics.Metrics
}

// Orchestrator performs single and batch assignments, coordinating the
// appointment update with association reconciliation
type Orchestrator struct {
	appointments AppointmentStore
	reconciler   AssociationReconciler
	locker       lock.Locker
	journal      db.WarningStore
	metrics      *metrics.Metrics
	concurrency  int
	logger       *zap.Logger
	now          func() time.Time
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(appointments AppointmentStore, rec AssociationReconciler, logger *zap.Logger, opts Options) *Orchestrator {
	o := &Orchestrator{
		appointments: appointments,
		reconciler:   rec,
		locker:       opts.Locker,
		journal:      opts.Journal,
		metrics:      opts.Metrics,
		concurrency:  opts.BatchConcurrency,
		logger:       logger,
		now:          time.Now,
	}
	if o.locker == nil {
		o.locker = lock.NewLocal(opts.Metrics)
	}
	if o.journal == nil {
		o.journal = db.NewMemoryDB()
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return o
}

// Warning is a soft failure: the appointment was updated but its
// association could not be reconciled. It is also persisted to the journal
// so the reconciliation can be retried later.
type Warning struct {
	ID            string
	StudyID       int
	AppointmentID int
	VolunteerID   int
	GroupID       int
	Operation     string
	Err           error
}

func (w Warning) Error() string {
	return fmt.Sprintf("appointment %d in study %d updated but association %s for volunteer %d failed: %v",
		w.AppointmentID, w.StudyID, w.Operation, w.VolunteerID, w.Err)
}

// ItemResult is the result of a single assign or unassign
type ItemResult struct {
	Appointment    model.Appointment
	Reconciliation *reconciler.Outcome
	Warnings       []Warning
	NoOp           bool
}

// ItemFailure is a hard failure for one batch item
type ItemFailure struct {
	AppointmentID int
	VolunteerID   int
	Err           error
}

// BatchResult collects per-item results regardless of completion order
type BatchResult struct {
	Succeeded []ItemResult
	Skipped   []SkippedPair
	Failed    []ItemFailure
	Warnings  []Warning
	Unpaired  []model.Appointment
	Aborted   bool
}

// lockVolunteer serialises work on one volunteer within a study
func (o *Orchestrator) lockVolunteer(ctx context.Context, studyID, volunteerID int) (func(), error) {
	unlock, err := o.locker.Lock(ctx, lock.VolunteerKey(studyID, volunteerID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock volunteer %d in study %d: %w", volunteerID, studyID, err)
	}
	return unlock, nil
}

// softFailure turns a reconciliation error into a journalled warning
func (o *Orchestrator) softFailure(ctx context.Context, operation string, appt model.Appointment, volunteerID, groupID int, err error) *Warning {
	w := &Warning{
		ID:            uuid.NewString(),
		StudyID:       appt.StudyID,
		AppointmentID: appt.AppointmentID,
		VolunteerID:   volunteerID,
		GroupID:       groupID,
		Operation:     operation,
		Err:           err,
	}

	o.logger.Warn("Association reconciliation failed, appointment update continues",
		zap.String("warning_id", w.ID),
		zap.String("operation", operation),
		zap.Int("study_id", appt.StudyID),
		zap.Int("appointment_id", appt.AppointmentID),
		zap.Int("volunteer_id", volunteerID),
		zap.Error(err))

	entry := &db.Warning{
		ID:            w.ID,
		StudyID:       w.StudyID,
		VolunteerID:   w.VolunteerID,
		AppointmentID: w.AppointmentID,
		GroupID:       w.GroupID,
		Operation:     operation,
		Message:       err.Error(),
		CreatedAt:     o.now(),
	}
	var recErr *model.ReconciliationError
	if errors.As(err, &recErr) {
		entry.Attempted = recErr.Attempted
		if recErr.Persisting != nil {
			entry.Persisting = recErr.Persisting.String()
		}
	}

	// Journal is best effort; the warning is still returned to the caller
	if jErr := o.journal.InsertWarning(context.WithoutCancel(ctx), entry); jErr != nil {
		o.logger.Error("Failed to journal warning", zap.String("warning_id", w.ID), zap.Error(jErr))
	}

	return w
}

// otherAppointments counts the volunteer's appointments in the study other than excludeID
func (o *Orchestrator) otherAppointments(ctx context.Context, studyID, volunteerID, excludeID int) (int, error) {
	appts, err := o.appointments.ListAppointments(ctx, studyID)
	if err != nil {
		return 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	count := 0
	for _, a := range appts {
		if a.AppointmentID != excludeID && a.HasVolunteer() && *a.VolunteerID == volunteerID {
			count++
		}
	}
	return count, nil
}
