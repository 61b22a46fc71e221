package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/conflicts"
	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// AppointmentLister lists a study's appointments
type AppointmentLister interface {
	ListAppointments(ctx context.Context, studyID int) ([]model.Appointment, error)
}

// StudySchedule is a study's appointments with their conflict record
type StudySchedule struct {
	StudyID      int
	Appointments []model.Appointment
	Conflicts    *conflicts.Detector
}

// Assigned returns the appointments that have a volunteer
func (s *StudySchedule) Assigned() []model.Appointment {
	var out []model.Appointment
	for _, a := range s.Appointments {
		if a.HasVolunteer() {
			out = append(out, a)
		}
	}
	return out
}

// Find returns an appointment by id
func (s *StudySchedule) Find(appointmentID int) (model.Appointment, bool) {
	for _, a := range s.Appointments {
		if a.AppointmentID == appointmentID {
			return a, true
		}
	}
	return model.Appointment{}, false
}

// LoadStudySchedule fetches a study's appointments and rebuilds its conflict record
func LoadStudySchedule(ctx context.Context, store AppointmentLister, logger *zap.Logger, studyID int) (*StudySchedule, error) {
	if studyID <= 0 {
		return nil, model.ValidationErrorf("study id is required (study=%d)", studyID)
	}

	logger.Debug("Loading study schedule", zap.Int("study_id", studyID))

	appts, err := store.ListAppointments(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	schedule := &StudySchedule{
		StudyID:      studyID,
		Appointments: appts,
		Conflicts:    conflicts.New(appts),
	}

	logger.Debug("Loaded study schedule",
		zap.Int("study_id", studyID),
		zap.Int("appointments", len(appts)),
		zap.Int("assigned", len(schedule.Assigned())))

	return schedule, nil
}

// DoubleBookings groups appointments where one volunteer holds the same
// date and time more than once
func (s *StudySchedule) DoubleBookings() [][]model.Appointment {
	type slotKey struct {
		volunteerID int
		date, time  string
	}

	groups := make(map[slotKey][]model.Appointment)
	var order []slotKey
	for _, a := range s.Assigned() {
		k := slotKey{*a.VolunteerID, a.Date, a.Time}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], a)
	}

	var out [][]model.Appointment
	for _, k := range order {
		if len(groups[k]) > 1 {
			out = append(out, groups[k])
		}
	}
	return out
}
