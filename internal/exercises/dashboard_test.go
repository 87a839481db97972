package exercises

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labcentral/labcentral/internal/api"
	"github.com/labcentral/labcentral/internal/api/apitest"
)

func zipArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("lab/README.md")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte("# Laboratorio de redes\n")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func newTestDashboard(t *testing.T, admin bool) (*Dashboard, *apitest.Backend) {
	t.Helper()
	b, srv := apitest.Start(t)
	b.AddUser("user@example.com", "secret", "", "", admin)
	client := api.New(srv.URL).WithToken(b.Token("user@example.com"))
	return NewDashboard(client, admin), b
}

func TestLoadAndGet(t *testing.T) {
	d, b := newTestDashboard(t, false)
	id := b.AddExercise("Redes", "Subnetting")
	b.AddExercise("Linux", "Permisos")
	ctx := context.Background()

	if err := d.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(d.Exercises()); n != 2 {
		t.Fatalf("exercises = %d, want 2", n)
	}
	ex, err := d.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ex.Title != "Redes" || ex.Description != "Subnetting" {
		t.Errorf("exercise = %+v", ex)
	}
	if _, err := d.Get(ctx, 999); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("Get(999) = %v, want ErrNotFound", err)
	}
}

func TestCreate(t *testing.T) {
	d, b := newTestDashboard(t, true)
	archive := zipArchive(t)

	if err := d.Create(context.Background(), " Redes ", "desc", "redes.zip", bytes.NewReader(archive)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	list := d.Exercises()
	if len(list) != 1 || list[0].Title != "Redes" {
		t.Fatalf("exercises = %+v", list)
	}
	if !bytes.Equal(b.Archive(list[0].ID), archive) {
		t.Error("uploaded archive differs")
	}
}

func TestCreateSucceedsWhenReloadFails(t *testing.T) {
	d, b := newTestDashboard(t, true)
	b.FailGet["/api/exercises"] = "database busy"

	if err := d.Create(context.Background(), "Redes", "", "redes.zip", bytes.NewReader(zipArchive(t))); err != nil {
		t.Fatalf("Create = %v, want nil after a successful upload", err)
	}
	if n := b.Count(http.MethodPost, "/api/exercise_with_zip"); n != 1 {
		t.Errorf("uploads = %d, want 1", n)
	}
}

func TestCreateRejected(t *testing.T) {
	tests := []struct {
		name    string
		admin   bool
		title   string
		archive func(t *testing.T) []byte
		wantErr error
	}{
		{"not admin", false, "Redes", zipArchive, ErrAdminOnly},
		{"blank title", true, "  ", zipArchive, ErrBlankTitle},
		{"not a zip", true, "Redes", func(*testing.T) []byte { return []byte("just some text") }, ErrNotZip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, b := newTestDashboard(t, tt.admin)
			err := d.Create(context.Background(), tt.title, "", "x.zip", bytes.NewReader(tt.archive(t)))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create = %v, want %v", err, tt.wantErr)
			}
			if n := b.Count(http.MethodPost, "/api/exercise_with_zip"); n != 0 {
				t.Errorf("rejected create made %d requests", n)
			}
		})
	}
}

func TestCreateTooLarge(t *testing.T) {
	d, _ := newTestDashboard(t, true)
	d.maxArchive = 16
	huge := strings.NewReader(strings.Repeat("x", 17))
	if err := d.Create(context.Background(), "Redes", "", "x.zip", huge); !errors.Is(err, ErrArchiveTooLarge) {
		t.Fatalf("Create = %v, want ErrArchiveTooLarge", err)
	}
}

func TestDelete(t *testing.T) {
	d, b := newTestDashboard(t, true)
	id := b.AddExercise("Redes", "")
	keep := b.AddExercise("Linux", "")
	ctx := context.Background()
	if err := d.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	before := d.Exercises()
	if err := d.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(before) != 2 || before[0].ID != id || before[1].ID != keep {
		t.Errorf("earlier list changed by Delete: %+v", before)
	}
	list := d.Exercises()
	if len(list) != 1 || list[0].ID != keep {
		t.Errorf("exercises = %+v", list)
	}
	if _, ok := b.Exercise(id); ok {
		t.Error("exercise still on backend")
	}
}
