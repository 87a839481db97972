package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/api/apitest"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/validate"
)

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		user    model.BulkUser
		wantErr error
	}{
		{"valid", model.BulkUser{Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz"}, nil},
		{"missing email", model.BulkUser{FirstName: "Ana", LastName: "Diaz"}, validate.ErrInvalid},
		{"bad email", model.BulkUser{Email: "ana", FirstName: "Ana", LastName: "Diaz"}, validate.ErrInvalid},
		{"blank first name", model.BulkUser{Email: "ana@example.com", FirstName: "  ", LastName: "Diaz"}, validate.ErrInvalid},
		{"missing last name", model.BulkUser{Email: "ana@example.com", FirstName: "Ana"}, validate.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Queue
			err := q.Add(tt.user)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Add = %v, want %v", err, tt.wantErr)
			}
			wantLen := 0
			if tt.wantErr == nil {
				wantLen = 1
			}
			if q.Len() != wantLen {
				t.Errorf("Len = %d, want %d", q.Len(), wantLen)
			}
		})
	}
}

func TestAddDuplicate(t *testing.T) {
	var q Queue
	u := model.BulkUser{Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz"}
	if err := q.Add(u); err != nil {
		t.Fatalf("Add: %v", err)
	}
	u.Email = "ANA@example.com"
	if err := q.Add(u); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Add duplicate = %v, want ErrDuplicate", err)
	}
}

func TestRemove(t *testing.T) {
	var q Queue
	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if err := q.Add(model.BulkUser{Email: e, FirstName: "F", LastName: "L"}); err != nil {
			t.Fatalf("Add(%s): %v", e, err)
		}
	}
	if err := q.Remove(1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	users := q.Users()
	if len(users) != 2 || users[0].Email != "a@example.com" || users[1].Email != "c@example.com" {
		t.Errorf("users = %+v", users)
	}
	if err := q.Remove(5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Remove(5) = %v, want ErrOutOfRange", err)
	}
}

func TestSubmit(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("admin@example.com", "secret", "", "", true)
	client := api.New(srv.URL).WithToken(b.Token("admin@example.com"))
	ctx := context.Background()

	var q Queue
	if _, err := q.Submit(ctx, client); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("Submit empty = %v, want ErrEmptyQueue", err)
	}

	_ = q.Add(model.BulkUser{Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz"})
	_ = q.Add(model.BulkUser{Email: "beto@example.com", FirstName: "Beto", LastName: "Ruiz"})
	created, err := q.Submit(ctx, client)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(created) != 2 || created[0].Email != "ana@example.com" || created[0].TempPassword == "" {
		t.Errorf("created = %+v", created)
	}
	if q.Len() != 0 {
		t.Errorf("queue not cleared, Len = %d", q.Len())
	}
}

func TestSubmitFailureKeepsQueue(t *testing.T) {
	b, srv := apitest.Start(t)
	b.AddUser("ana@example.com", "secret", "", "", false)
	client := api.New(srv.URL).WithToken(b.Token("ana@example.com"))

	var q Queue
	_ = q.Add(model.BulkUser{Email: "beto@example.com", FirstName: "Beto", LastName: "Ruiz"})
	if _, err := q.Submit(context.Background(), client); err == nil {
		t.Fatal("expected forbidden error")
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}
