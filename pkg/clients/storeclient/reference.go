package storeclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// GetGroup fetches a group, including its compensation amount
func (c *Client) GetGroup(ctx context.Context, groupID int) (*model.Group, error) {
	var group model.Group
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/groups/%d", groupID), nil, nil, &group); err != nil {
		return nil, fmt.Errorf("failed to get group %d: %w", groupID, err)
	}
	return &group, nil
}

// GetStudy fetches study metadata
func (c *Client) GetStudy(ctx context.Context, studyID int) (*model.Study, error) {
	var study model.Study
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/studies/%d", studyID), nil, nil, &study); err != nil {
		return nil, fmt.Errorf("failed to get study %d: %w", studyID, err)
	}
	return &study, nil
}

// ListVolunteers returns every volunteer
func (c *Client) ListVolunteers(ctx context.Context) ([]model.Volunteer, error) {
	var volunteers []model.Volunteer
	if err := c.do(ctx, http.MethodGet, "/volunteers", nil, nil, &volunteers); err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}
	return volunteers, nil
}
