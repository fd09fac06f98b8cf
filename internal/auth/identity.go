package auth

import (
	"context"
	"net/http"
)

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	UserID    string
	SessionID string
}

// Resolver turns a request's session credentials into an Identity.
//
// Resolve returns (nil, nil) when the request carries no session at all.
// A present but invalid session is reported as an error wrapping
// apperr.ErrUnauthenticated; any other error means the provider could not be
// consulted.
type Resolver interface {
	Resolve(r *http.Request) (*Identity, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(r *http.Request) (*Identity, error)

// Resolve calls f(r).
func (f ResolverFunc) Resolve(r *http.Request) (*Identity, error) {
	return f(r)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
