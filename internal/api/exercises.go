package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labcentral/labcentral/internal/model"
)

// StartResult is the backend's answer to a container start.
type StartResult struct {
	ProxyURL string `json:"proxy_url"`
	Message  string `json:"message"`
}

// ListExercises returns every exercise visible to the session.
func (c *Client) ListExercises(ctx context.Context) ([]model.Exercise, error) {
	var out []model.Exercise
	if err := c.do(ctx, http.MethodGet, "/api/exercises", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetExercise returns one exercise.
func (c *Client) GetExercise(ctx context.Context, id int64) (*model.Exercise, error) {
	var out model.Exercise
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/exercise/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateExerciseWithArchive uploads a new exercise with its archive as multipart form data.
func (c *Client) CreateExerciseWithArchive(ctx context.Context, title, description, filename string, archive io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("title", title); err != nil {
		return "", err
	}
	if err := mw.WriteField("description", description); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("zipfile", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, archive); err != nil {
		return "", fmt.Errorf("copy archive: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out messageResponse
	if _, err := c.exchange(ctx, http.MethodPost, "/api/exercise_with_zip", mw.FormDataContentType(), &buf, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// DeleteExercise removes an exercise.
func (c *Client) DeleteExercise(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/exercise/%d", id), nil, nil)
}

// StartExercise asks the backend to launch the exercise container.
func (c *Client) StartExercise(ctx context.Context, id int64) (*StartResult, error) {
	var out StartResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/exercise/%d/start", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopExercise asks the backend to stop the exercise container.
func (c *Client) StopExercise(ctx context.Context, id int64) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/exercise/%d/stop", id), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ExerciseStatus reports the backend's view of the exercise container.
func (c *Client) ExerciseStatus(ctx context.Context, id int64) (model.ContainerStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/exercise/%d/status", id), nil, &out); err != nil {
		return model.StatusStopped, err
	}
	return model.ParseBackendStatus(out.Status), nil
}
