// Package conflicts detects double-booking of a volunteer at the same instant.
package conflicts

import (
	"sync"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// Slot is a (date, time) pair
type Slot struct {
	Date string
	Time string
}

// Booking is a slot held by a volunteer
type Booking struct {
	Slot
	AppointmentID int
}

// Detector is the per-volunteer schedule record of a study, rebuilt from its
// appointment list on every load. It is never persisted.
type Detector struct {
	mu       sync.RWMutex
	bookings map[int][]Booking
}

// New builds a detector from every appointment holding a volunteer
func New(appointments []model.Appointment) *Detector {
	d := &Detector{bookings: make(map[int][]Booking)}
	for _, appt := range appointments {
		if !appt.HasVolunteer() {
			continue
		}
		d.bookings[*appt.VolunteerID] = append(d.bookings[*appt.VolunteerID], Booking{
			Slot:          Slot{Date: appt.Date, Time: appt.Time},
			AppointmentID: appt.AppointmentID,
		})
	}
	return d
}

// HasConflict reports whether the volunteer already holds an appointment at
// exactly this date and time
func (d *Detector) HasConflict(volunteerID int, date, time string) bool {
	return d.HasConflictExcluding(volunteerID, date, time, 0)
}

// HasConflictExcluding is HasConflict ignoring the given appointment, so a
// slot the volunteer already holds does not conflict with itself
func (d *Detector) HasConflictExcluding(volunteerID int, date, time string, appointmentID int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, b := range d.bookings[volunteerID] {
		if b.Date == date && b.Time == time && (appointmentID == 0 || b.AppointmentID != appointmentID) {
			return true
		}
	}
	return false
}

// ConflictingAppointment returns the appointment id that holds the slot
func (d *Detector) ConflictingAppointment(volunteerID int, date, time string, excludeAppointmentID int) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, b := range d.bookings[volunteerID] {
		if b.Date == date && b.Time == time && b.AppointmentID != excludeAppointmentID {
			return b.AppointmentID, true
		}
	}
	return 0, false
}

// AppointmentCount returns how many appointments the volunteer holds
func (d *Detector) AppointmentCount(volunteerID int) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.bookings[volunteerID])
}

// Bookings returns a copy of the volunteer's bookings
func (d *Detector) Bookings(volunteerID int) []Booking {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Booking(nil), d.bookings[volunteerID]...)
}

// Record adds a booking, used while planning a batch so later pairs see
// earlier ones
func (d *Detector) Record(volunteerID int, date, time string, appointmentID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bookings[volunteerID] = append(d.bookings[volunteerID], Booking{
		Slot:          Slot{Date: date, Time: time},
		AppointmentID: appointmentID,
	})
}

// Forget removes a booking of the given appointment
func (d *Detector) Forget(volunteerID, appointmentID int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	bookings := d.bookings[volunteerID]
	for i, b := range bookings {
		if b.AppointmentID == appointmentID {
			d.bookings[volunteerID] = append(bookings[:i], bookings[i+1:]...)
			break
		}
	}
	if len(d.bookings[volunteerID]) == 0 {
		delete(d.bookings, volunteerID)
	}
}
