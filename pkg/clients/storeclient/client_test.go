package storeclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/study-scheduler/internal/config"
	"github.com/jakechorley/study-scheduler/pkg/core/model"
	"github.com/jakechorley/study-scheduler/pkg/fakestore"
)

func newTestClient(t *testing.T) (*Client, *fakestore.Store) {
	t.Helper()
	store := fakestore.New()
	server := httptest.NewServer(store.Handler())
	t.Cleanup(server.Close)

	client, err := NewClientWithHTTP(server.URL, server.Client())
	require.NoError(t, err)
	return client, store
}

func TestNewClientWithHTTP_InvalidURL(t *testing.T) {
	_, err := NewClientWithHTTP("::not a url", http.DefaultClient)
	assert.Error(t, err)
}

func TestAppointments_CRUD(t *testing.T) {
	ctx := context.Background()
	client, store := newTestClient(t)

	created, err := client.CreateAppointment(ctx, model.Appointment{
		StudyID:         1,
		Date:            "2024-06-01",
		Time:            "09:00",
		DurationMinutes: 30,
		Status:          model.AppointmentPlanned,
		GroupID:         model.IntPtr(4),
	})
	require.NoError(t, err)
	assert.NotZero(t, created.AppointmentID)

	got, err := client.GetAppointment(ctx, 1, created.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", got.Time)
	assert.Equal(t, 4, *got.GroupID)
	assert.Nil(t, got.VolunteerID)

	got.VolunteerID = model.IntPtr(7)
	updated, err := client.UpdateAppointment(ctx, *got)
	require.NoError(t, err)
	assert.Equal(t, 7, *updated.VolunteerID)

	stored, ok := store.Appointment(1, created.AppointmentID)
	require.True(t, ok)
	assert.Equal(t, 7, *stored.VolunteerID)

	patched, err := client.UpdateAppointmentStatus(ctx, 1, created.AppointmentID, model.AppointmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentConfirmed, patched.Status)

	list, err := client.ListAppointments(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, client.DeleteAppointment(ctx, 1, created.AppointmentID))
	_, err = client.GetAppointment(ctx, 1, created.AppointmentID)
	assert.ErrorIs(t, err, model.ErrAppointmentNotFound)
}

func TestUpdateAppointment_NotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.UpdateAppointment(context.Background(), model.Appointment{StudyID: 1, AppointmentID: 99})
	assert.ErrorIs(t, err, model.ErrAppointmentNotFound)
}

func TestServerError_IsStoreUnavailable(t *testing.T) {
	client, store := newTestClient(t)
	store.Fail("GET /studies/{studyId}/appointments", http.StatusServiceUnavailable, 1)

	_, err := client.ListAppointments(context.Background(), 1)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)

	// Failure was consumed
	_, err = client.ListAppointments(context.Background(), 1)
	assert.NoError(t, err)
}

func TestTransportError_IsStoreUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := NewClientWithHTTP(baseURL, &http.Client{Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.ListAssociations(context.Background(), 1)
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestBadRequest_IsStatusError(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.CreateAssociation(context.Background(), model.Association{StudyID: 1})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
}

func TestAssociations_PatchAndDelete(t *testing.T) {
	ctx := context.Background()
	client, store := newTestClient(t)

	row := model.Association{StudyID: 1, GroupID: 2, VolunteerID: model.IntPtr(3), IV: 50, SubjectNumber: 7, Paid: 1, Status: model.AssociationEnrolled}
	require.NoError(t, client.CreateAssociation(ctx, row))

	require.NoError(t, client.PatchAssociation(ctx, FieldSubjectNumber, row.Key(), "0"))
	rows, err := client.ListAssociations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].SubjectNumber)

	// The old identity no longer matches
	err = client.DeleteAssociation(ctx, row.Key())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, client.PatchAssociation(ctx, FieldVolunteer, rows[0].Key(), ""))
	rows = store.Associations(1)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].VolunteerID)

	require.NoError(t, client.DeleteAssociation(ctx, rows[0].Key()))
	assert.Empty(t, store.Associations(1))
}

func TestKeyQuery(t *testing.T) {
	q := keyQuery(model.AssociationKey{StudyID: 1, GroupID: 2, IV: 50, SubjectNumber: 7, Paid: 1, Status: model.AssociationEnrolled})

	assert.Equal(t, "1", q.Get("idEtude"))
	assert.Equal(t, "2", q.Get("idGroupe"))
	assert.Equal(t, "", q.Get("idVolontaire"))
	assert.True(t, q.Has("idVolontaire"))
	assert.Equal(t, "50", q.Get("iv"))
	assert.Equal(t, "7", q.Get("numsujet"))
	assert.Equal(t, "1", q.Get("paye"))
	assert.Equal(t, "INSCRIT", q.Get("statut"))
}

func TestReferenceLookups(t *testing.T) {
	ctx := context.Background()
	client, store := newTestClient(t)
	store.AddGroup(model.Group{ID: 4, StudyID: 1, Label: "18-25", IV: 80})
	store.AddStudy(model.Study{ID: 1, Ref: "S1", Title: "Hydration"})
	store.AddVolunteer(model.Volunteer{ID: 7, FirstName: "Ada", LastName: "Lovelace"})

	group, err := client.GetGroup(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 80, group.IV)

	study, err := client.GetStudy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "S1", study.Ref)

	volunteers, err := client.ListVolunteers(ctx)
	require.NoError(t, err)
	require.Len(t, volunteers, 1)
	assert.Equal(t, "Ada", volunteers[0].FirstName)

	_, err = client.GetGroup(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewClient_UsesClientCredentials(t *testing.T) {
	var tokenRequests int
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "abc123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/volunteers", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := &config.Config{
		StoreBaseURL: server.URL,
		StoreTimeout: 5 * time.Second,
		Auth: config.AuthConfig{
			TokenURL:     server.URL + "/token",
			ClientID:     "scheduler",
			ClientSecret: "secret",
		},
	}

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)

	_, err = client.ListVolunteers(context.Background())
	require.NoError(t, err)
	_, err = client.ListVolunteers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, tokenRequests)
}

func TestStatusError_Message(t *testing.T) {
	err := &StatusError{Method: "POST", Path: "/study-volunteers", Code: 400, Body: "bad"}
	assert.True(t, strings.Contains(err.Error(), "status=400"))
}
