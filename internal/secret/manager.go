package secret

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"secretvault/internal/apperr"
)

// Manager reads and writes the caller's secret.
// Every operation is keyed by the caller's own user ID; there is no way to
// address another user's row.
type Manager struct {
	ds    *Datastore
	codec *Codec
	now   func() time.Time
}

// NewManager creates a new secret manager.
func NewManager(ds *Datastore, codec *Codec) *Manager {
	return &Manager{ds: ds, codec: codec, now: time.Now}
}

// Write encrypts content and stores it as the caller's secret.
func (m *Manager) Write(ctx context.Context, ownerID, content string) error {
	if ownerID == "" {
		return apperr.ErrUnauthenticated
	}
	if content == "" {
		return apperr.InvalidOperation("secret content must not be empty")
	}
	if len(content) > MaxContentBytes {
		return apperr.InvalidOperation(fmt.Sprintf("secret content exceeds %d bytes", MaxContentBytes))
	}

	ciphertext, err := m.codec.Encrypt(content)
	if err != nil {
		return err
	}

	if err := m.ds.Upsert(ctx, ownerID, ciphertext, m.now().UTC()); err != nil {
		return apperr.Storage(fmt.Errorf("failed to save secret: %w", err))
	}
	return nil
}

// Read returns the caller's decrypted secret, or "" when none has been stored.
func (m *Manager) Read(ctx context.Context, ownerID string) (string, error) {
	if ownerID == "" {
		return "", apperr.ErrUnauthenticated
	}

	s, err := m.ds.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", apperr.Storage(fmt.Errorf("failed to load secret: %w", err))
	}

	return m.codec.Decrypt(s.Content)
}

// Exists reports whether the caller has stored a secret.
func (m *Manager) Exists(ctx context.Context, ownerID string) (bool, error) {
	if ownerID == "" {
		return false, apperr.ErrUnauthenticated
	}

	ok, err := m.ds.Exists(ctx, ownerID)
	if err != nil {
		return false, apperr.Storage(fmt.Errorf("failed to check secret: %w", err))
	}
	return ok, nil
}
