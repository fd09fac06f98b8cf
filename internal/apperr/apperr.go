// Package apperr defines the error classes shared by every layer of secretvault.
//
// Each class is a sentinel. Callers wrap the underlying cause with one of the
// helpers so that errors.Is can classify the failure while the original
// message is kept for logs and responses.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no identity could be resolved for the caller.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the caller is authenticated but lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidOperation means the caller is allowed in general but not for this input.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrStorage wraps persistence-layer faults.
	ErrStorage = errors.New("storage error")
	// ErrCrypto wraps malformed ciphertext, key mismatch or a missing key.
	ErrCrypto = errors.New("crypto error")
	// ErrUpstream wraps non-success responses from the identity provider.
	ErrUpstream = errors.New("upstream error")
)

// Storage wraps err as a storage error. A nil err stays nil.
func Storage(err error) error {
	return wrap(ErrStorage, err)
}

// Crypto wraps err as a crypto error. A nil err stays nil.
func Crypto(err error) error {
	return wrap(ErrCrypto, err)
}

// Upstream wraps err as an upstream error. A nil err stays nil.
func Upstream(err error) error {
	return wrap(ErrUpstream, err)
}

// Forbidden returns a forbidden error carrying reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// InvalidOperation returns an invalid-operation error carrying reason.
func InvalidOperation(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, reason)
}

func wrap(class, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, class) {
		return err
	}
	return fmt.Errorf("%w: %w", class, err)
}

// Kind returns a short machine-readable name for the class of err,
// or "internal" when err belongs to none of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.Is(err, ErrCrypto):
		return "crypto_error"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "internal"
	}
}
