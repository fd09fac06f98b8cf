// Package admin implements the administrator operations: listing and deleting users.
package admin

import (
	"context"
	"strings"
	"time"

	"secretvault/internal/apperr"
	"secretvault/internal/directory"
	"secretvault/internal/logging"
	"secretvault/internal/user"
)

// UserStore is the subset of the user directory the admin operations need.
type UserStore interface {
	IsAdmin(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*user.User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Directory lists provider-side profiles.
type Directory interface {
	ListUsers(ctx context.Context) ([]directory.Profile, error)
}

// UserRecord is a local user joined with its provider profile.
type UserRecord struct {
	ID        string    `json:"id"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Email     *string   `json:"email"`
	Username  *string   `json:"username"`
	ImageURL  *string   `json:"image_url"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
}

// Service runs admin operations. Every call re-checks the caller's role
// against storage before doing anything else.
type Service struct {
	users     UserStore
	directory Directory
	cache     *profileCache
	log       logging.Logger
	now       func() time.Time
}

// NewService creates a new admin service. cacheTTL of zero disables profile caching.
func NewService(users UserStore, dir Directory, cacheTTL time.Duration, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		users:     users,
		directory: dir,
		cache:     newProfileCache(cacheTTL),
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) authorize(ctx context.Context, callerID string) error {
	if callerID == "" {
		return apperr.ErrUnauthenticated
	}
	ok, err := s.users.IsAdmin(ctx, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

// ListUsers returns every user, newest first, with provider attributes.
// Users the provider does not know come back with null attributes.
func (s *Service) ListUsers(ctx context.Context, callerID string) ([]UserRecord, error) {
	if err := s.authorize(ctx, callerID); err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return []UserRecord{}, nil
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	now := s.now()
	profiles, hit := s.cache.lookup(ids, now)
	if !hit {
		list, err := s.directory.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		profiles = make(map[string]*directory.Profile, len(list))
		for i := range list {
			profiles[list[i].ID] = &list[i]
		}
		s.cache.fill(ids, profiles, now)
	}

	records := make([]UserRecord, len(users))
	for i, u := range users {
		records[i] = merge(u, profiles[u.ID])
	}
	return records, nil
}

func merge(u *user.User, p *directory.Profile) UserRecord {
	r := UserRecord{
		ID:        u.ID,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
	if p != nil {
		r.Email = p.Email
		r.Username = p.Username
		r.ImageURL = p.ImageURL
		r.FirstName = p.FirstName
		r.LastName = p.LastName
	}
	return r
}

// DeleteUser removes targetID and, by cascade, their secret.
// Deleting a user that does not exist succeeds.
func (s *Service) DeleteUser(ctx context.Context, callerID, targetID string) error {
	if err := s.authorize(ctx, callerID); err != nil {
		return err
	}

	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return apperr.InvalidOperation("user ID is required")
	}
	if targetID == callerID {
		return apperr.InvalidOperation("cannot delete your own account")
	}

	deleted, err := s.users.Delete(ctx, targetID)
	if err != nil {
		return err
	}
	s.cache.invalidate(targetID)

	if !deleted {
		s.log.Info(ctx, "delete target not found", "admin_id", callerID, "user_id", targetID)
		return nil
	}
	s.log.Info(ctx, "user deleted", "admin_id", callerID, "user_id", targetID)
	return nil
}

// CheckAdminStatus reports whether callerID is an admin. It never fails;
// lookup errors are logged and read as false.
func (s *Service) CheckAdminStatus(ctx context.Context, callerID string) bool {
	if callerID == "" {
		return false
	}
	ok, err := s.users.IsAdmin(ctx, callerID)
	if err != nil {
		s.log.Error(ctx, "admin status check failed", "user_id", callerID, "error", err)
		return false
	}
	return ok
}
