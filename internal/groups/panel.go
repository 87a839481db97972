// Package groups manages the two-person pairing of a user for one exercise.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/validate"
)

var (
	ErrAlreadyGrouped = errors.New("you already have a group for this exercise")
	ErrNoGroup        = errors.New("you have no group for this exercise")
	ErrSelfPartner    = errors.New("you cannot pair with yourself")
)

// Client is the subset of the API client the panel uses.
type Client interface {
	MyGroup(ctx context.Context, exerciseID int64) (*model.Group, error)
	CreateGroup(ctx context.Context, exerciseID int64, partnerEmail string) (*model.Group, error)
	DisbandGroup(ctx context.Context, exerciseID int64) (string, error)
	AvailableUsers(ctx context.Context, exerciseID int64) ([]model.User, error)
}

// Panel holds the group state of one user on one exercise.
type Panel struct {
	client     Client
	exerciseID int64
	email      string
	group      *model.Group
}

// NewPanel creates a panel for the user identified by email.
func NewPanel(client Client, exerciseID int64, email string) *Panel {
	return &Panel{client: client, exerciseID: exerciseID, email: email}
}

// LoadMyGroup fetches the user's current group.
func (p *Panel) LoadMyGroup(ctx context.Context) error {
	g, err := p.client.MyGroup(ctx, p.exerciseID)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	p.group = g
	return nil
}

// Group returns the loaded group, or nil.
func (p *Panel) Group() *model.Group { return p.group }

// HasGroup reports whether a group exists.
func (p *Panel) HasGroup() bool { return p.group != nil && p.group.ID != 0 }

// Partner returns the other member of the group.
func (p *Panel) Partner() (model.User, bool) {
	if !p.HasGroup() {
		return model.User{}, false
	}
	if strings.EqualFold(p.group.Leader.Email, p.email) {
		return p.group.Partner, true
	}
	return p.group.Leader, true
}

// AvailableUsers lists users that can be picked as a partner.
func (p *Panel) AvailableUsers(ctx context.Context) ([]model.User, error) {
	users, err := p.client.AvailableUsers(ctx, p.exerciseID)
	if err != nil {
		return nil, fmt.Errorf("load available users: %w", err)
	}
	return users, nil
}

// CreateGroup pairs the user with partnerEmail. The returned group becomes
// the local state.
func (p *Panel) CreateGroup(ctx context.Context, partnerEmail string) error {
	if p.HasGroup() {
		return ErrAlreadyGrouped
	}
	partnerEmail = strings.TrimSpace(partnerEmail)
	if err := validate.Email(partnerEmail); err != nil {
		return err
	}
	if strings.EqualFold(partnerEmail, p.email) {
		return ErrSelfPartner
	}
	g, err := p.client.CreateGroup(ctx, p.exerciseID, partnerEmail)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	p.group = g
	slog.Info("group created", "exercise_id", p.exerciseID, "group_id", g.ID)
	return nil
}

// DisbandGroup dissolves the group and returns the panel to the no-group state.
func (p *Panel) DisbandGroup(ctx context.Context) error {
	if !p.HasGroup() {
		return ErrNoGroup
	}
	if _, err := p.client.DisbandGroup(ctx, p.exerciseID); err != nil {
		return fmt.Errorf("disband group: %w", err)
	}
	slog.Info("group disbanded", "exercise_id", p.exerciseID, "group_id", p.group.ID)
	p.group = nil
	return nil
}
