package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labcentral/labcentral/internal/model"
)

// MyGroup returns the session user's group for an exercise, or nil when there is none.
func (c *Client) MyGroup(ctx context.Context, exerciseID int64) (*model.Group, error) {
	var out model.Group
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/exercise/%d/my_group", exerciseID), nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, nil
	}
	return &out, nil
}

// CreateGroup pairs the session user with partnerEmail.
func (c *Client) CreateGroup(ctx context.Context, exerciseID int64, partnerEmail string) (*model.Group, error) {
	in := map[string]string{"partner_email": partnerEmail}
	var out model.Group
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/exercise/%d/group", exerciseID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisbandGroup dissolves the session user's group.
func (c *Client) DisbandGroup(ctx context.Context, exerciseID int64) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/exercise/%d/group", exerciseID), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// AvailableUsers lists users who can still be picked as a partner.
func (c *Client) AvailableUsers(ctx context.Context, exerciseID int64) ([]model.User, error) {
	var out []model.User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/exercise/%d/available_users", exerciseID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
