// Package fakestore is an in-memory implementation of the study store REST
// API, used for local development and tests.
package fakestore

import (
	"sort"
	"sync"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// Store holds the in-memory state served by Handler
type Store struct {
	mu sync.Mutex

	studies      map[int]model.Study
	groups       map[int]model.Group
	volunteers   map[int]model.Volunteer
	appointments map[int]map[int]model.Appointment
	associations []model.Association
	nextApptID   int

	// StickySubjectNumbers reproduces the production store's behaviour of
	// acknowledging deletes and volunteer-clearing patches on rows with a
	// non-zero subject number without applying them
	StickySubjectNumbers bool

	failures map[string]failure
	calls    []string
}

type failure struct {
	status    int
	remaining int // -1 means always
}

// New creates an empty store
func New() *Store {
	return &Store{
		studies:      make(map[int]model.Study),
		groups:       make(map[int]model.Group),
		volunteers:   make(map[int]model.Volunteer),
		appointments: make(map[int]map[int]model.Appointment),
		failures:     make(map[string]failure),
		nextApptID:   1,
	}
}

// AddStudy seeds a study
func (s *Store) AddStudy(study model.Study) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.studies[study.ID] = study
}

// AddGroup seeds a group
func (s *Store) AddGroup(group model.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.ID] = group
}

// AddVolunteer seeds a volunteer
func (s *Store) AddVolunteer(volunteer model.Volunteer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volunteers[volunteer.ID] = volunteer
}

// PutAppointment seeds or replaces an appointment. A zero AppointmentID is
// allocated from the store's sequence.
func (s *Store) PutAppointment(appt model.Appointment) model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putAppointmentLocked(appt)
}

func (s *Store) putAppointmentLocked(appt model.Appointment) model.Appointment {
	if appt.AppointmentID == 0 {
		appt.AppointmentID = s.nextApptID
	}
	if appt.AppointmentID >= s.nextApptID {
		s.nextApptID = appt.AppointmentID + 1
	}
	if s.appointments[appt.StudyID] == nil {
		s.appointments[appt.StudyID] = make(map[int]model.Appointment)
	}
	s.appointments[appt.StudyID][appt.AppointmentID] = appt
	return appt
}

// PutAssociation seeds an association row
func (s *Store) PutAssociation(a model.Association) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.associations = append(s.associations, a)
}

// Appointment returns a stored appointment
func (s *Store) Appointment(studyID, appointmentID int) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[studyID][appointmentID]
	return appt, ok
}

// Appointments returns a study's appointments ordered by id
func (s *Store) Appointments(studyID int) []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appointmentsLocked(studyID)
}

func (s *Store) appointmentsLocked(studyID int) []model.Appointment {
	out := make([]model.Appointment, 0, len(s.appointments[studyID]))
	for _, appt := range s.appointments[studyID] {
		out = append(out, appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentID < out[j].AppointmentID })
	return out
}

// Associations returns a study's association rows in insertion order
func (s *Store) Associations(studyID int) []model.Association {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.associationsLocked(studyID)
}

func (s *Store) associationsLocked(studyID int) []model.Association {
	out := make([]model.Association, 0)
	for _, a := range s.associations {
		if a.StudyID == studyID {
			out = append(out, a)
		}
	}
	return out
}

// Fail makes the next n requests matching route fail with status.
// n < 0 fails every request. Routes are named "METHOD path-template", for
// example "PUT /studies/{studyId}/appointments/{appointmentId}", or carry a
// concrete path such as "PUT /studies/1/appointments/3" to target one record.
func (s *Store) Fail(route string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, remaining: n}
}

// Calls returns every request received, as "METHOD path"
func (s *Store) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Store) recordCall(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

// injectedFailure consumes a configured failure for either key
func (s *Store) injectedFailure(keys ...string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		f, ok := s.failures[key]
		if !ok || f.remaining == 0 {
			continue
		}
		if f.remaining > 0 {
			f.remaining--
			s.failures[key] = f
		}
		return f.status, true
	}
	return 0, false
}

func (s *Store) findAssociationLocked(key model.AssociationKey) int {
	for i, a := range s.associations {
		if a.Key() == key {
			return i
		}
	}
	return -1
}
