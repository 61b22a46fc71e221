package fakestore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// Handler returns the REST router for the store
func (s *Store) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.failureMiddleware)

	r.HandleFunc("/studies/{studyId}/appointments", s.listAppointments).Methods(http.MethodGet)
	r.HandleFunc("/studies/{studyId}/appointments/{appointmentId}", s.getAppointment).Methods(http.MethodGet)
	r.HandleFunc("/studies/{studyId}/appointments/{appointmentId}", s.updateAppointment).Methods(http.MethodPut)
	r.HandleFunc("/studies/{studyId}/appointments/{appointmentId}", s.deleteAppointment).Methods(http.MethodDelete)
	r.HandleFunc("/studies/{studyId}/appointments/{appointmentId}/etat", s.patchAppointmentStatus).Methods(http.MethodPatch)
	r.HandleFunc("/appointments", s.createAppointment).Methods(http.MethodPost)

	r.HandleFunc("/study-volunteers/study/{studyId}", s.listAssociations).Methods(http.MethodGet)
	r.HandleFunc("/study-volunteers", s.createAssociation).Methods(http.MethodPost)
	r.HandleFunc("/study-volunteers/update-{field}", s.patchAssociation).Methods(http.MethodPatch)
	r.HandleFunc("/study-volunteers/delete", s.deleteAssociation).Methods(http.MethodDelete)

	r.HandleFunc("/groups/{groupId}", s.getGroup).Methods(http.MethodGet)
	r.HandleFunc("/studies/{studyId}", s.getStudy).Methods(http.MethodGet)
	r.HandleFunc("/volunteers", s.listVolunteers).Methods(http.MethodGet)

	return r
}

func (s *Store) failureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.recordCall(r.Method + " " + r.URL.Path)

		template := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				template = tmpl
			}
		}
		if status, ok := s.injectedFailure(r.Method+" "+r.URL.Path, r.Method+" "+template); ok {
			http.Error(w, "injected failure", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Store) listAppointments(w http.ResponseWriter, r *http.Request) {
	studyID := pathInt(r, "studyId")
	writeJSON(w, http.StatusOK, s.Appointments(studyID))
}

func (s *Store) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, ok := s.Appointment(pathInt(r, "studyId"), pathInt(r, "appointmentId"))
	if !ok {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (s *Store) createAppointment(w http.ResponseWriter, r *http.Request) {
	var appt model.Appointment
	if err := json.NewDecoder(r.Body).Decode(&appt); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if appt.StudyID == 0 {
		http.Error(w, "idEtude is required", http.StatusBadRequest)
		return
	}
	appt.AppointmentID = 0
	writeJSON(w, http.StatusCreated, s.PutAppointment(appt))
}

func (s *Store) updateAppointment(w http.ResponseWriter, r *http.Request) {
	studyID, appointmentID := pathInt(r, "studyId"), pathInt(r, "appointmentId")

	var appt model.Appointment
	if err := json.NewDecoder(r.Body).Decode(&appt); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[studyID][appointmentID]; !ok {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	appt.StudyID, appt.AppointmentID = studyID, appointmentID
	s.appointments[studyID][appointmentID] = appt
	writeJSON(w, http.StatusOK, appt)
}

func (s *Store) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	studyID, appointmentID := pathInt(r, "studyId"), pathInt(r, "appointmentId")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[studyID][appointmentID]; !ok {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	delete(s.appointments[studyID], appointmentID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Store) patchAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	studyID, appointmentID := pathInt(r, "studyId"), pathInt(r, "appointmentId")
	status := model.AppointmentStatus(r.URL.Query().Get("etat"))
	if !status.IsValid() {
		http.Error(w, "invalid etat", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[studyID][appointmentID]
	if !ok {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	appt.Status = status
	s.appointments[studyID][appointmentID] = appt
	writeJSON(w, http.StatusOK, appt)
}

func (s *Store) listAssociations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Associations(pathInt(r, "studyId")))
}

func (s *Store) createAssociation(w http.ResponseWriter, r *http.Request) {
	var a model.Association
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if a.StudyID == 0 || a.GroupID == 0 {
		http.Error(w, "idEtude and idGroupe are required", http.StatusBadRequest)
		return
	}
	s.PutAssociation(a)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Store) patchAssociation(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	key, err := keyFromQuery(query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	field := mux.Vars(r)["field"]
	value := query.Get("nouvelleValeur")

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findAssociationLocked(key)
	if idx < 0 {
		http.Error(w, "association not found", http.StatusNotFound)
		return
	}
	row := s.associations[idx]

	switch field {
	case "statut":
		status := model.AssociationStatus(value)
		if !status.IsValid() {
			http.Error(w, "invalid statut", http.StatusBadRequest)
			return
		}
		row.Status = status
	case "paye", "iv", "numsujet":
		n, err := strconv.Atoi(value)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid %s", field), http.StatusBadRequest)
			return
		}
		switch field {
		case "paye":
			row.Paid = n
		case "iv":
			row.IV = n
		default:
			row.SubjectNumber = n
		}
	case "volontaire":
		if s.StickySubjectNumbers && row.SubjectNumber > 0 {
			writeJSON(w, http.StatusOK, row)
			return
		}
		if value == "" {
			row.VolunteerID = nil
		} else {
			n, err := strconv.Atoi(value)
			if err != nil {
				http.Error(w, "invalid volontaire", http.StatusBadRequest)
				return
			}
			row.VolunteerID = &n
		}
	default:
		http.Error(w, "unknown field", http.StatusNotFound)
		return
	}

	s.associations[idx] = row
	writeJSON(w, http.StatusOK, row)
}

func (s *Store) deleteAssociation(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findAssociationLocked(key)
	if idx < 0 {
		http.Error(w, "association not found", http.StatusNotFound)
		return
	}
	if s.StickySubjectNumbers && s.associations[idx].SubjectNumber > 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.associations = append(s.associations[:idx], s.associations[idx+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Store) getGroup(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	group, ok := s.groups[pathInt(r, "groupId")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "group not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Store) getStudy(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	study, ok := s.studies[pathInt(r, "studyId")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "study not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, study)
}

func (s *Store) listVolunteers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]model.Volunteer, 0, len(s.volunteers))
	for _, v := range s.volunteers {
		out = append(out, v)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func keyFromQuery(q url.Values) (model.AssociationKey, error) {
	var key model.AssociationKey
	ints := []struct {
		name     string
		dst      *int
		optional bool
	}{
		{"idEtude", &key.StudyID, false},
		{"idGroupe", &key.GroupID, false},
		{"idVolontaire", &key.VolunteerID, true},
		{"iv", &key.IV, false},
		{"numsujet", &key.SubjectNumber, false},
		{"paye", &key.Paid, false},
	}
	for _, p := range ints {
		raw := q.Get(p.name)
		if raw == "" && p.optional {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return key, fmt.Errorf("invalid %s: %q", p.name, raw)
		}
		*p.dst = n
	}
	key.Status = model.AssociationStatus(q.Get("statut"))
	if !key.Status.IsValid() {
		return key, fmt.Errorf("invalid statut: %q", key.Status)
	}
	return key, nil
}

func pathInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(mux.Vars(r)[name])
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
