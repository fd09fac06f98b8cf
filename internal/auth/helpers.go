// Package auth provides session extraction and auth error responses for secretvault.
package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// SessionCookie is the cookie the identity provider's frontend sets for same-origin requests.
const SessionCookie = "__session"

// Sentinel errors for token extraction failures.
// These can be used for debugging/logging but should NOT be exposed in responses.
var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthScheme = errors.New("invalid authorization scheme: expected Bearer")
	ErrEmptyToken        = errors.New("empty bearer token")
	ErrNoSession         = errors.New("no session token")
)

// ExtractBearerToken extracts the token from an "Authorization: Bearer <token>" header.
// Returns an error if the header is missing, uses wrong scheme, or token is empty.
func ExtractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", ErrInvalidAuthScheme
	}

	token := strings.TrimPrefix(authHeader, prefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

// ExtractSessionToken returns the session token for r.
// The Authorization header wins; the session cookie is the fallback for
// browser navigations. A malformed Authorization header is an error even
// when a cookie is present.
func ExtractSessionToken(r *http.Request) (string, error) {
	token, err := ExtractBearerToken(r)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, ErrMissingAuthHeader) {
		return "", err
	}

	c, cerr := r.Cookie(SessionCookie)
	if cerr != nil || c.Value == "" {
		return "", ErrNoSession
	}
	return c.Value, nil
}

// APIError is the JSON error body shared by every route.
type APIError struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error message and type.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// WriteJSONError writes a JSON error response and returns any encode failure
// so the caller can log it with its own logger.
// Response format: {"error": {"message": "<message>", "type": "<errorType>"}}
func WriteJSONError(w http.ResponseWriter, status int, message, errorType string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(APIError{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
		},
	})
}

// WriteUnauthorized writes a 401 Unauthorized JSON response.
func WriteUnauthorized(w http.ResponseWriter) error {
	return WriteJSONError(w, http.StatusUnauthorized, "unauthorized", "authentication_error")
}

// WriteForbidden writes a 403 Forbidden JSON response.
// Use when the caller is signed in but lacks the required role.
func WriteForbidden(w http.ResponseWriter) error {
	return WriteJSONError(w, http.StatusForbidden, "access denied", "access_denied")
}
