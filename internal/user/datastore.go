package user

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the interface for database operations.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Datastore handles database operations for users.
type Datastore struct {
	db DBTX
}

// NewDatastore creates a new user datastore.
func NewDatastore(db DBTX) *Datastore {
	return &Datastore{db: db}
}

// GetOrCreate returns the user row for id, inserting it with role and now when absent.
// The no-op update makes RETURNING yield the existing row on conflict, so the
// read-or-create is a single atomic statement.
func (ds *Datastore) GetOrCreate(ctx context.Context, id string, role Role, now time.Time) (*User, error) {
	query := `
		INSERT INTO users (id, role, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, role, created_at`

	return scanUser(ds.db.QueryRowContext(ctx, query, id, string(role), now))
}

// GetByID retrieves a user by ID.
func (ds *Datastore) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, role, created_at FROM users WHERE id = $1`
	return scanUser(ds.db.QueryRowContext(ctx, query, id))
}

// ListByCreatedDesc retrieves every user, newest first.
func (ds *Datastore) ListByCreatedDesc(ctx context.Context) ([]*User, error) {
	query := `SELECT id, role, created_at FROM users ORDER BY created_at DESC`

	rows, err := ds.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetRole updates the role for a user.
func (ds *Datastore) SetRole(ctx context.Context, id string, role Role) (int64, error) {
	query := `UPDATE users SET role = $2 WHERE id = $1`
	result, err := ds.db.ExecContext(ctx, query, id, string(role))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Delete removes a user. The secrets foreign key cascades the owned secret.
func (ds *Datastore) Delete(ctx context.Context, id string) (int64, error) {
	query := `DELETE FROM users WHERE id = $1`
	result, err := ds.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}
