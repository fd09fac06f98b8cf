package secret

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the interface for database operations.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Datastore handles database operations for secrets.
type Datastore struct {
	db DBTX
}

// NewDatastore creates a new secret datastore.
func NewDatastore(db DBTX) *Datastore {
	return &Datastore{db: db}
}

// GetByOwner retrieves the secret owned by userID.
func (ds *Datastore) GetByOwner(ctx context.Context, userID string) (*Secret, error) {
	query := `SELECT id, content, updated_at FROM secrets WHERE id = $1`

	var s Secret
	err := ds.db.QueryRowContext(ctx, query, userID).Scan(&s.ID, &s.Content, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert stores content for userID, replacing any previous value.
func (ds *Datastore) Upsert(ctx context.Context, userID, content string, now time.Time) error {
	query := `
		INSERT INTO secrets (id, content, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`

	_, err := ds.db.ExecContext(ctx, query, userID, content, now)
	return err
}

// Exists reports whether userID has a stored secret.
func (ds *Datastore) Exists(ctx context.Context, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM secrets WHERE id = $1)`

	var exists bool
	if err := ds.db.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
