// Package exercises is the exercise dashboard: the list of launchable labs
// and their admin management.
package exercises

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/labcentral/labcentral/internal/model"
)

// MaxArchiveBytes bounds the size of an uploaded exercise archive.
const MaxArchiveBytes = 100 << 20

var (
	ErrAdminOnly       = errors.New("only admins can manage exercises")
	ErrBlankTitle      = errors.New("exercise title is blank")
	ErrNotZip          = errors.New("exercise archive must be a zip file")
	ErrArchiveTooLarge = errors.New("exercise archive is too large")
)

// Client is the subset of the API client the dashboard uses.
type Client interface {
	ListExercises(ctx context.Context) ([]model.Exercise, error)
	GetExercise(ctx context.Context, id int64) (*model.Exercise, error)
	CreateExerciseWithArchive(ctx context.Context, title, description, filename string, archive io.Reader) (string, error)
	DeleteExercise(ctx context.Context, id int64) error
}

// Dashboard holds the exercise list of one session.
type Dashboard struct {
	client     Client
	isAdmin    bool
	maxArchive int
	exercises  []model.Exercise
}

// NewDashboard creates an empty dashboard.
func NewDashboard(client Client, isAdmin bool) *Dashboard {
	return &Dashboard{client: client, isAdmin: isAdmin, maxArchive: MaxArchiveBytes}
}

// Load replaces the local list.
func (d *Dashboard) Load(ctx context.Context) error {
	list, err := d.client.ListExercises(ctx)
	if err != nil {
		return fmt.Errorf("load exercises: %w", err)
	}
	d.exercises = list
	return nil
}

// Exercises returns the loaded list.
func (d *Dashboard) Exercises() []model.Exercise { return d.exercises }

// Get fetches one exercise.
func (d *Dashboard) Get(ctx context.Context, id int64) (*model.Exercise, error) {
	ex, err := d.client.GetExercise(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get exercise %d: %w", id, err)
	}
	return ex, nil
}

// Create uploads a new exercise. The archive is read fully and must sniff as
// a zip file before anything is sent. A failed reload after the upload is
// logged, not returned.
func (d *Dashboard) Create(ctx context.Context, title, description, filename string, archive io.Reader) error {
	if !d.isAdmin {
		return ErrAdminOnly
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrBlankTitle
	}

	data, err := io.ReadAll(io.LimitReader(archive, int64(d.maxArchive)+1))
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	if len(data) > d.maxArchive {
		return ErrArchiveTooLarge
	}
	if mt := mimetype.Detect(data); !isZip(mt) {
		return fmt.Errorf("%w: detected %s", ErrNotZip, mt.String())
	}
	if filename == "" {
		filename = "exercise.zip"
	}

	if _, err := d.client.CreateExerciseWithArchive(ctx, title, strings.TrimSpace(description), filename, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("create exercise: %w", err)
	}
	slog.Info("exercise created", "title", title, "archive", filename, "size", humanize.Bytes(uint64(len(data))))
	if err := d.Load(ctx); err != nil {
		slog.Warn("failed to reload exercises", "error", err)
	}
	return nil
}

// Delete removes an exercise and drops it from the local list.
func (d *Dashboard) Delete(ctx context.Context, id int64) error {
	if !d.isAdmin {
		return ErrAdminOnly
	}
	if err := d.client.DeleteExercise(ctx, id); err != nil {
		return fmt.Errorf("delete exercise %d: %w", id, err)
	}
	d.exercises = slices.DeleteFunc(slices.Clone(d.exercises), func(ex model.Exercise) bool { return ex.ID == id })
	slog.Info("exercise deleted", "exercise_id", id)
	return nil
}

// isZip accepts zip files and zip-based formats.
func isZip(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}
