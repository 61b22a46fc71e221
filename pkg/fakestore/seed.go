package fakestore

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// Seed is the YAML layout accepted by LoadSeed
type Seed struct {
	Studies []struct {
		ID    int    `yaml:"id"`
		Ref   string `yaml:"ref"`
		Title string `yaml:"title"`
	} `yaml:"studies"`
	Groups []struct {
		ID      int    `yaml:"id"`
		StudyID int    `yaml:"study"`
		Label   string `yaml:"label"`
		IV      int    `yaml:"iv"`
	} `yaml:"groups"`
	Volunteers []struct {
		ID        int    `yaml:"id"`
		FirstName string `yaml:"firstName"`
		LastName  string `yaml:"lastName"`
		Email     string `yaml:"email"`
	} `yaml:"volunteers"`
	Appointments []struct {
		ID        int    `yaml:"id"`
		StudyID   int    `yaml:"study"`
		Date      string `yaml:"date"`
		Time      string `yaml:"time"`
		Duration  int    `yaml:"duration"`
		Status    string `yaml:"status"`
		GroupID   *int   `yaml:"group"`
		Volunteer *int   `yaml:"volunteer"`
	} `yaml:"appointments"`
	Associations []struct {
		StudyID       int    `yaml:"study"`
		GroupID       int    `yaml:"group"`
		VolunteerID   *int   `yaml:"volunteer"`
		IV            int    `yaml:"iv"`
		SubjectNumber int    `yaml:"subjectNumber"`
		Status        string `yaml:"status"`
	} `yaml:"associations"`
}

// LoadSeed reads a YAML seed and adds its records to the store
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil && err != io.EOF {
		return fmt.Errorf("failed to parse seed: %w", err)
	}

	for _, st := range seed.Studies {
		s.AddStudy(model.Study{ID: st.ID, Ref: st.Ref, Title: st.Title})
	}
	for _, g := range seed.Groups {
		s.AddGroup(model.Group{ID: g.ID, StudyID: g.StudyID, Label: g.Label, IV: g.IV})
	}
	for _, v := range seed.Volunteers {
		s.AddVolunteer(model.Volunteer{ID: v.ID, FirstName: v.FirstName, LastName: v.LastName, Email: v.Email})
	}

	for _, a := range seed.Appointments {
		status := model.AppointmentStatus(a.Status)
		if a.Status == "" {
			status = model.AppointmentPlanned
		}
		if !status.IsValid() {
			return fmt.Errorf("appointment %d: invalid status %q", a.ID, a.Status)
		}
		s.PutAppointment(model.Appointment{
			StudyID:         a.StudyID,
			AppointmentID:   a.ID,
			Date:            a.Date,
			Time:            a.Time,
			DurationMinutes: a.Duration,
			Status:          status,
			GroupID:         a.GroupID,
			VolunteerID:     a.Volunteer,
		})
	}

	for _, a := range seed.Associations {
		status := model.AssociationStatus(a.Status)
		if a.Status == "" {
			status = model.AssociationEnrolled
		}
		if !status.IsValid() {
			return fmt.Errorf("association for volunteer %v: invalid status %q", a.VolunteerID, a.Status)
		}
		s.PutAssociation(model.Association{
			StudyID:       a.StudyID,
			GroupID:       a.GroupID,
			VolunteerID:   a.VolunteerID,
			IV:            a.IV,
			SubjectNumber: a.SubjectNumber,
			Paid:          model.PaidFor(a.IV),
			Status:        status,
		})
	}

	return nil
}
