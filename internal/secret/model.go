package secret

import "time"

// MaxContentBytes bounds the plaintext a user may store.
const MaxContentBytes = 64 << 10

// Secret is the stored, encrypted value owned by a single user.
// ID is the owner's user ID.
type Secret struct {
	ID        string
	Content   string // ciphertext
	UpdatedAt time.Time
}
