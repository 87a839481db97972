package groups

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/api/apitest"
	"github.com/labcentral/labcentral/internal/validate"
)

func newTestPanel(t *testing.T) (*Panel, *apitest.Backend, int64) {
	t.Helper()
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "Ana", "Diaz", false)
	b.AddUser("beto@example.com", "secret", "Beto", "Ruiz", false)
	b.AddUser("caro@example.com", "secret", "Caro", "Paz", false)
	ex := b.AddExercise("Redes", "")
	client := api.New(srv.URL).WithToken(b.Token("ana@example.com"))
	return NewPanel(client, ex, "ana@example.com"), b, ex
}

func TestCreateAndDisbandGroup(t *testing.T) {
	p, _, _ := newTestPanel(t)
	ctx := context.Background()

	if err := p.LoadMyGroup(ctx); err != nil {
		t.Fatalf("LoadMyGroup: %v", err)
	}
	if p.HasGroup() {
		t.Fatal("expected no group")
	}

	users, err := p.AvailableUsers(ctx)
	if err != nil {
		t.Fatalf("AvailableUsers: %v", err)
	}
	if len(users) != 2 || users[0].Email != "beto@example.com" {
		t.Errorf("available = %+v", users)
	}

	if err := p.CreateGroup(ctx, "beto@example.com"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	partner, ok := p.Partner()
	if !ok || partner.Email != "beto@example.com" {
		t.Errorf("partner = %+v, %v", partner, ok)
	}

	if err := p.DisbandGroup(ctx); err != nil {
		t.Fatalf("DisbandGroup: %v", err)
	}
	if p.HasGroup() {
		t.Error("group still present after disband")
	}
	if err := p.LoadMyGroup(ctx); err != nil || p.HasGroup() {
		t.Errorf("reload after disband: group=%v err=%v", p.Group(), err)
	}
}

func TestCreateGroupRejectedLocally(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(b *apitest.Backend, ex int64)
		partner string
		wantErr error
	}{
		{"already grouped", func(b *apitest.Backend, ex int64) {
			b.AddGroup(ex, "ana@example.com", "caro@example.com")
		}, "beto@example.com", ErrAlreadyGrouped},
		{"invalid email", nil, "beto", validate.ErrInvalid},
		{"empty email", nil, "", validate.ErrInvalid},
		{"self", nil, "ANA@example.com", ErrSelfPartner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, b, ex := newTestPanel(t)
			if tt.setup != nil {
				tt.setup(b, ex)
			}
			if err := p.LoadMyGroup(context.Background()); err != nil {
				t.Fatalf("LoadMyGroup: %v", err)
			}
			err := p.CreateGroup(context.Background(), tt.partner)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateGroup = %v, want %v", err, tt.wantErr)
			}
			if n := b.Count(http.MethodPost, fmt.Sprintf("/api/exercise/%d/group", ex)); n != 0 {
				t.Errorf("rejected create made %d requests", n)
			}
		})
	}
}

func TestCreateGroupServerRejection(t *testing.T) {
	p, b, ex := newTestPanel(t)
	b.AddGroup(ex, "beto@example.com", "caro@example.com")

	err := p.CreateGroup(context.Background(), "beto@example.com")
	if msg, ok := api.ServerMessage(err); !ok || msg != "Partner already has a group" {
		t.Fatalf("CreateGroup = %v", err)
	}
	if p.HasGroup() {
		t.Error("failed create changed local state")
	}
}

func TestDisbandWithoutGroup(t *testing.T) {
	p, b, ex := newTestPanel(t)
	if err := p.DisbandGroup(context.Background()); !errors.Is(err, ErrNoGroup) {
		t.Fatalf("DisbandGroup = %v, want ErrNoGroup", err)
	}
	if n := b.Count(http.MethodDelete, fmt.Sprintf("/api/exercise/%d/group", ex)); n != 0 {
		t.Errorf("made %d requests", n)
	}
}
