package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"secretvault/internal/apperr"

	"github.com/DATA-DOG/go-sqlmock"
)

var userColumns = []string{"id", "role", "created_at"}

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(NewDatastore(db)), mock
}

func TestManager_GetOrCreate_NewUser(t *testing.T) {
	mgr, mock := newMockManager(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("user_abc", "member", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("user_abc", "member", now))

	u, err := mgr.GetOrCreate(context.Background(), "user_abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "user_abc" {
		t.Errorf("expected id 'user_abc', got %q", u.ID)
	}
	if u.Role != RoleMember {
		t.Errorf("expected role member, got %q", u.Role)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestManager_GetOrCreate_ExistingAdminKeepsRole(t *testing.T) {
	mgr, mock := newMockManager(t)
	created := time.Now().Add(-72 * time.Hour)

	// The conflict branch returns the stored row, including its original role.
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("user_admin", "member", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow("user_admin", "admin", created))

	u, err := mgr.GetOrCreate(context.Background(), "user_admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !u.IsAdmin() {
		t.Errorf("expected existing admin to stay admin, got %q", u.Role)
	}
	if !u.CreatedAt.Equal(created) {
		t.Errorf("expected created_at to be preserved")
	}
}

func TestManager_GetOrCreate_EmptyID(t *testing.T) {
	mgr := NewManager(NewDatastore(nil)) // nil db is fine, we won't hit it

	_, err := mgr.GetOrCreate(context.Background(), "  ")
	if err != ErrInvalidID {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
}

func TestManager_GetOrCreate_StorageError(t *testing.T) {
	mgr, mock := newMockManager(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(errors.New("connection refused"))

	_, err := mgr.GetOrCreate(context.Background(), "user_abc")
	if !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "connection refused") {
		t.Errorf("expected underlying message to survive, got %q", got)
	}
}

func TestManager_GetByID_NotFound(t *testing.T) {
	mgr, mock := newMockManager(t)

	mock.ExpectQuery(`SELECT id, role, created_at FROM users WHERE id`).
		WithArgs("user_missing").
		WillReturnError(sql.ErrNoRows)

	_, err := mgr.GetByID(context.Background(), "user_missing")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_IsAdmin(t *testing.T) {
	tests := []struct {
		name string
		role string
		want bool
	}{
		{"admin", "admin", true},
		{"member", "member", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, mock := newMockManager(t)
			mock.ExpectQuery(`SELECT id, role, created_at FROM users WHERE id`).
				WithArgs("user_1").
				WillReturnRows(sqlmock.NewRows(userColumns).AddRow("user_1", tt.role, time.Now()))

			got, err := mgr.IsAdmin(context.Background(), "user_1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAdmin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_IsAdmin_UnknownUser(t *testing.T) {
	mgr, mock := newMockManager(t)
	mock.ExpectQuery(`SELECT id, role, created_at FROM users WHERE id`).
		WillReturnError(sql.ErrNoRows)

	got, err := mgr.IsAdmin(context.Background(), "user_ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("expected unknown user not to be admin")
	}
}

func TestManager_List_NewestFirst(t *testing.T) {
	mgr, mock := newMockManager(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, role, created_at FROM users ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("user_new", "member", now).
			AddRow("user_old", "admin", now.Add(-time.Hour)))

	users, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].ID != "user_new" || users[1].ID != "user_old" {
		t.Errorf("unexpected order: %q, %q", users[0].ID, users[1].ID)
	}
	if users[1].Role != RoleAdmin {
		t.Errorf("expected admin role on second user, got %q", users[1].Role)
	}
}

func TestManager_List_Empty(t *testing.T) {
	mgr, mock := newMockManager(t)
	mock.ExpectQuery(`SELECT id, role, created_at FROM users`).
		WillReturnRows(sqlmock.NewRows(userColumns))

	users, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected no users, got %d", len(users))
	}
}

func TestManager_Delete(t *testing.T) {
	mgr, mock := newMockManager(t)

	mock.ExpectExec(`DELETE FROM users WHERE id`).
		WithArgs("user_abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id`).
		WithArgs("user_gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := mgr.Delete(context.Background(), "user_abc")
	if err != nil || !deleted {
		t.Errorf("expected deletion, got deleted=%v err=%v", deleted, err)
	}

	deleted, err = mgr.Delete(context.Background(), "user_gone")
	if err != nil || deleted {
		t.Errorf("expected no-op deletion, got deleted=%v err=%v", deleted, err)
	}
}

func TestManager_SetRole(t *testing.T) {
	mgr, mock := newMockManager(t)

	mock.ExpectExec(`UPDATE users SET role`).
		WithArgs("user_abc", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := mgr.SetRole(context.Background(), "user_abc", RoleAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestManager_SetRole_NotFound(t *testing.T) {
	mgr, mock := newMockManager(t)

	mock.ExpectExec(`UPDATE users SET role`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := mgr.SetRole(context.Background(), "user_ghost", RoleAdmin); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_SetRole_Invalid(t *testing.T) {
	mgr := NewManager(NewDatastore(nil))

	err := mgr.SetRole(context.Background(), "user_abc", Role("owner"))
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("admin"); err != nil || r != RoleAdmin {
		t.Errorf("ParseRole(admin) = %q, %v", r, err)
	}
	if _, err := ParseRole("root"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}
