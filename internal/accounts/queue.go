// Package accounts queues users for admin bulk creation.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/validate"
)

var (
	ErrEmptyQueue = errors.New("no users queued")
	ErrDuplicate  = errors.New("user already queued")
	ErrOutOfRange = errors.New("queue index out of range")
)

// Client is the subset of the API client the queue uses.
type Client interface {
	BulkCreateUsers(ctx context.Context, users []model.BulkUser) ([]model.CreatedUser, error)
}

// Queue collects users until they are submitted together.
type Queue struct {
	mu    sync.Mutex
	users []model.BulkUser
}

// Add validates u and appends it.
func (q *Queue) Add(u model.BulkUser) error {
	u.Email = strings.TrimSpace(u.Email)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	if err := validate.Struct(u); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: %s", ErrDuplicate, u.Email)
		}
	}
	q.users = append(q.users, u)
	return nil
}

// Remove drops the i-th queued user.
func (q *Queue) Remove(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i < 0 || i >= len(q.users) {
		return ErrOutOfRange
	}
	q.users = append(q.users[:i], q.users[i+1:]...)
	return nil
}

// Users returns a copy of the queue.
func (q *Queue) Users() []model.BulkUser {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.BulkUser(nil), q.users...)
}

// Len returns the number of queued users.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.users)
}

// Submit creates every queued user. The queue is cleared only on success.
func (q *Queue) Submit(ctx context.Context, client Client) ([]model.CreatedUser, error) {
	users := q.Users()
	if len(users) == 0 {
		return nil, ErrEmptyQueue
	}
	created, err := client.BulkCreateUsers(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("bulk create users: %w", err)
	}

	q.mu.Lock()
	q.users = nil
	q.mu.Unlock()
	slog.Info("users created", "queued", len(users), "created", len(created))
	return created, nil
}
