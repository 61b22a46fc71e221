package model

import "fmt"

// AppointmentStatus is the lifecycle state of an appointment slot
type AppointmentStatus string

const (
	AppointmentPlanned   AppointmentStatus = "PLANIFIE"
	AppointmentConfirmed AppointmentStatus = "CONFIRME"
	AppointmentPending   AppointmentStatus = "EN_ATTENTE"
	AppointmentCancelled AppointmentStatus = "ANNULE"
	AppointmentCompleted AppointmentStatus = "COMPLETE"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentPlanned, AppointmentConfirmed, AppointmentPending, AppointmentCancelled, AppointmentCompleted:
		return true
	}
	return false
}

// AssociationStatus is the enrollment state of a volunteer in a study
type AssociationStatus string

const (
	AssociationEnrolled  AssociationStatus = "INSCRIT"
	AssociationConfirmed AssociationStatus = "CONFIRME"
	AssociationCancelled AssociationStatus = "ANNULE"
	AssociationFinished  AssociationStatus = "TERMINE"
	AssociationReserve   AssociationStatus = "RESERVE"
)

func (s AssociationStatus) IsValid() bool {
	switch s {
	case AssociationEnrolled, AssociationConfirmed, AssociationCancelled, AssociationFinished, AssociationReserve:
		return true
	}
	return false
}

// Appointment represents a scheduled time slot within a study
type Appointment struct {
	StudyID         int               `json:"idEtude"`
	AppointmentID   int               `json:"idRdv"`
	Date            string            `json:"date"`  // Format: 2006-01-02
	Time            string            `json:"heure"` // Wall-clock slot label, e.g. "09:00"
	DurationMinutes int               `json:"duree"`
	Status          AppointmentStatus `json:"etat"`
	GroupID         *int              `json:"idGroupe"`     // nullable
	VolunteerID     *int              `json:"idVolontaire"` // nullable
	Comments        *string           `json:"commentaires"` // nullable
}

// HasVolunteer reports whether a volunteer is booked on the slot
func (a Appointment) HasVolunteer() bool {
	return a.VolunteerID != nil && *a.VolunteerID > 0
}

// Association is the enrollment record of a volunteer in a study group.
// Every field is part of its identity in the store.
type Association struct {
	StudyID       int               `json:"idEtude"`
	GroupID       int               `json:"idGroupe"`
	VolunteerID   *int              `json:"idVolontaire"` // nullable once soft-unassigned
	IV            int               `json:"iv"`
	SubjectNumber int               `json:"numsujet"`
	Paid          int               `json:"paye"`
	Status        AssociationStatus `json:"statut"`
}

// Key returns the composite identity of the association as currently held
func (a Association) Key() AssociationKey {
	key := AssociationKey{
		StudyID:       a.StudyID,
		GroupID:       a.GroupID,
		IV:            a.IV,
		SubjectNumber: a.SubjectNumber,
		Paid:          a.Paid,
		Status:        a.Status,
	}
	if a.VolunteerID != nil {
		key.VolunteerID = *a.VolunteerID
	}
	return key
}

// BelongsTo reports whether the association references the given volunteer
func (a Association) BelongsTo(volunteerID int) bool {
	return a.VolunteerID != nil && *a.VolunteerID == volunteerID
}

func (a Association) String() string {
	return a.Key().String()
}

// AssociationKey is the 7-tuple natural key of an association.
// VolunteerID is 0 when the volunteer reference has been cleared.
type AssociationKey struct {
	StudyID       int
	GroupID       int
	VolunteerID   int
	IV            int
	SubjectNumber int
	Paid          int
	Status        AssociationStatus
}

func (k AssociationKey) String() string {
	return fmt.Sprintf("{study=%d group=%d volunteer=%d iv=%d subject=%d paid=%d status=%s}",
		k.StudyID, k.GroupID, k.VolunteerID, k.IV, k.SubjectNumber, k.Paid, k.Status)
}

// PaidFor derives the paid flag from a compensation amount
func PaidFor(iv int) int {
	if iv > 0 {
		return 1
	}
	return 0
}

// Group represents a cohort within a study
type Group struct {
	ID        int    `json:"idGroupe"`
	StudyID   int    `json:"idEtude"`
	Label     string `json:"intitule"`
	IV        int    `json:"iv"`
	MinAge    int    `json:"ageMinimum,omitempty"`
	MaxAge    int    `json:"ageMaximum,omitempty"`
	Ethnicity string `json:"ethnie,omitempty"`
}

// Study represents a clinical research project
type Study struct {
	ID        int    `json:"idEtude"`
	Ref       string `json:"ref"`
	Title     string `json:"titre"`
	StartDate string `json:"dateDebut"`
	EndDate   string `json:"dateFin"`
}

// Volunteer represents a study volunteer
type Volunteer struct {
	ID        int    `json:"idVol"`
	FirstName string `json:"prenomVol"`
	LastName  string `json:"nomVol"`
	Email     string `json:"emailVol,omitempty"`
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
