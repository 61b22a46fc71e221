package storeclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

func appointmentPath(studyID, appointmentID int) string {
	return fmt.Sprintf("/studies/%d/appointments/%d", studyID, appointmentID)
}

// notFoundAsAppointment maps a 404 onto model.ErrAppointmentNotFound
func notFoundAsAppointment(err error, studyID, appointmentID int) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: study %d appointment %d", model.ErrAppointmentNotFound, studyID, appointmentID)
	}
	return err
}

// ListAppointments returns every appointment of a study
func (c *Client) ListAppointments(ctx context.Context, studyID int) ([]model.Appointment, error) {
	var appts []model.Appointment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/studies/%d/appointments", studyID), nil, nil, &appts); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}

// GetAppointment fetches a single appointment
func (c *Client) GetAppointment(ctx context.Context, studyID, appointmentID int) (*model.Appointment, error) {
	var appt model.Appointment
	if err := c.do(ctx, http.MethodGet, appointmentPath(studyID, appointmentID), nil, nil, &appt); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFoundAsAppointment(err, studyID, appointmentID))
	}
	return &appt, nil
}

// CreateAppointment creates an appointment and returns it with its allocated id
func (c *Client) CreateAppointment(ctx context.Context, appt model.Appointment) (*model.Appointment, error) {
	var created model.Appointment
	if err := c.do(ctx, http.MethodPost, "/appointments", nil, appt, &created); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return &created, nil
}

// UpdateAppointment replaces an appointment. The body always carries every
// field, including the unchanged ones.
func (c *Client) UpdateAppointment(ctx context.Context, appt model.Appointment) (*model.Appointment, error) {
	var updated model.Appointment
	path := appointmentPath(appt.StudyID, appt.AppointmentID)
	if err := c.do(ctx, http.MethodPut, path, nil, appt, &updated); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", notFoundAsAppointment(err, appt.StudyID, appt.AppointmentID))
	}
	return &updated, nil
}

// DeleteAppointment removes an appointment
func (c *Client) DeleteAppointment(ctx context.Context, studyID, appointmentID int) error {
	if err := c.do(ctx, http.MethodDelete, appointmentPath(studyID, appointmentID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", notFoundAsAppointment(err, studyID, appointmentID))
	}
	return nil
}

// UpdateAppointmentStatus changes only the status of an appointment
func (c *Client) UpdateAppointmentStatus(ctx context.Context, studyID, appointmentID int, status model.AppointmentStatus) (*model.Appointment, error) {
	var updated model.Appointment
	query := url.Values{"etat": {string(status)}}
	if err := c.do(ctx, http.MethodPatch, appointmentPath(studyID, appointmentID)+"/etat", query, nil, &updated); err != nil {
		return nil, fmt.Errorf("failed to update appointment status: %w", notFoundAsAppointment(err, studyID, appointmentID))
	}
	return &updated, nil
}
