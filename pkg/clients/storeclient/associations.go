package storeclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// AssociationField names a narrow patch endpoint of the association store
type AssociationField string

const (
	FieldStatus        AssociationField = "statut"
	FieldPaid          AssociationField = "paye"
	FieldIV            AssociationField = "iv"
	FieldVolunteer     AssociationField = "volontaire"
	FieldSubjectNumber AssociationField = "numsujet"
)

// keyQuery encodes the 7-tuple identity. A cleared volunteer reference is sent empty.
func keyQuery(key model.AssociationKey) url.Values {
	q := url.Values{}
	q.Set("idEtude", strconv.Itoa(key.StudyID))
	q.Set("idGroupe", strconv.Itoa(key.GroupID))
	if key.VolunteerID > 0 {
		q.Set("idVolontaire", strconv.Itoa(key.VolunteerID))
	} else {
		q.Set("idVolontaire", "")
	}
	q.Set("iv", strconv.Itoa(key.IV))
	q.Set("numsujet", strconv.Itoa(key.SubjectNumber))
	q.Set("paye", strconv.Itoa(key.Paid))
	q.Set("statut", string(key.Status))
	return q
}

// ListAssociations returns every association row of a study
func (c *Client) ListAssociations(ctx context.Context, studyID int) ([]model.Association, error) {
	var rows []model.Association
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/study-volunteers/study/%d", studyID), nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to list associations: %w", err)
	}
	return rows, nil
}

// CreateAssociation inserts a new association row
func (c *Client) CreateAssociation(ctx context.Context, a model.Association) error {
	if err := c.do(ctx, http.MethodPost, "/study-volunteers", nil, a, nil); err != nil {
		return fmt.Errorf("failed to create association: %w", err)
	}
	return nil
}

// PatchAssociation changes one field of the row identified by key. The
// patch implicitly changes the row's identity. An empty value clears the
// volunteer reference.
func (c *Client) PatchAssociation(ctx context.Context, field AssociationField, key model.AssociationKey, value string) error {
	query := keyQuery(key)
	query.Set("nouvelleValeur", value)
	if err := c.do(ctx, http.MethodPatch, "/study-volunteers/update-"+string(field), query, nil, nil); err != nil {
		return fmt.Errorf("failed to update association %s: %w", field, err)
	}
	return nil
}

// DeleteAssociation deletes the row identified by key
func (c *Client) DeleteAssociation(ctx context.Context, key model.AssociationKey) error {
	if err := c.do(ctx, http.MethodDelete, "/study-volunteers/delete", keyQuery(key), nil, nil); err != nil {
		return fmt.Errorf("failed to delete association: %w", err)
	}
	return nil
}
