package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"secretvault/internal/apperr"
)

// Domain errors
var (
	ErrNotFound    = errors.New("user not found")
	ErrInvalidID   = errors.New("invalid user ID")
	ErrInvalidRole = errors.New("invalid role")
)

// Manager handles business logic for the user directory.
// Storage faults are returned wrapped in apperr.ErrStorage.
type Manager struct {
	ds  *Datastore
	now func() time.Time
}

// NewManager creates a new user manager.
func NewManager(ds *Datastore) *Manager {
	return &Manager{ds: ds, now: time.Now}
}

// GetOrCreate provisions the user on first sight and returns the stored row.
// New users always start as members.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidID
	}

	u, err := m.ds.GetOrCreate(ctx, id, RoleMember, m.now().UTC())
	if err != nil {
		return nil, apperr.Storage(fmt.Errorf("failed to provision user: %w", err))
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (m *Manager) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := m.ds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, apperr.Storage(fmt.Errorf("failed to get user: %w", err))
	}
	return u, nil
}

// IsAdmin reads the caller's role fresh from storage.
// A user without a row is not an admin.
func (m *Manager) IsAdmin(ctx context.Context, id string) (bool, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.IsAdmin(), nil
}

// List retrieves every user, newest first.
func (m *Manager) List(ctx context.Context) ([]*User, error) {
	users, err := m.ds.ListByCreatedDesc(ctx)
	if err != nil {
		return nil, apperr.Storage(fmt.Errorf("failed to list users: %w", err))
	}
	return users, nil
}

// Delete removes a user and, by cascade, their secret.
// It reports whether a row was actually removed.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	n, err := m.ds.Delete(ctx, id)
	if err != nil {
		return false, apperr.Storage(fmt.Errorf("failed to delete user: %w", err))
	}
	return n > 0, nil
}

// SetRole changes a user's role. Only reachable from operator tooling.
func (m *Manager) SetRole(ctx context.Context, id string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	n, err := m.ds.SetRole(ctx, id, role)
	if err != nil {
		return apperr.Storage(fmt.Errorf("failed to set role: %w", err))
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
