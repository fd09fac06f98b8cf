package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"secretvault/internal/apperr"
	"secretvault/internal/auth"
	"secretvault/internal/logging"
	"secretvault/internal/policy"
	"secretvault/internal/user"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// UserContextKey is the context key for the provisioned user record.
const UserContextKey contextKey = "user"

// CurrentUser retrieves the provisioned caller from the request context.
// Returns nil and false for anonymous requests.
func CurrentUser(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserContextKey).(*user.User)
	return u, ok && u != nil
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}

// Provisioner creates the local user record on first sight.
type Provisioner interface {
	GetOrCreate(ctx context.Context, id string) (*user.User, error)
}

// Authorizer decides whether a request may proceed.
type Authorizer interface {
	Decide(ctx context.Context, in policy.Input) (policy.Decision, error)
}

// Gate returns middleware that runs before routing on every request.
//
// Flow:
//  1. Static assets pass through untouched
//  2. Resolve the session and provision the user on first sight
//  3. Attach identity and user to the request context
//  4. Ask the policy for a decision on the route class
//
// Error responses:
//   - 401 Unauthorized (or a redirect to signInURL for browser navigations)
//   - 403 Forbidden: admin route without the admin role
//   - 502 Bad Gateway: identity provider unreachable on a protected route
//   - 500 Internal Server Error: storage or policy failure on a protected route
//
// On public routes provider and storage failures are logged and the request
// continues anonymously.
func Gate(resolver auth.Resolver, users Provisioner, authz Authorizer, log logging.Logger, signInURL string) func(http.Handler) http.Handler {
	if log == nil {
		log = logging.Nop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := Classify(r.URL.Path)
			if class == policy.RouteStatic {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			public := class == policy.RoutePublic

			var current *user.User
			id, err := resolver.Resolve(r)
			switch {
			case errors.Is(err, apperr.ErrUnauthenticated):
				log.Debug(ctx, "rejected session token", "path", r.URL.Path, "error", err)
			case err != nil:
				if public {
					log.Warn(ctx, "identity provider unavailable, continuing anonymously", "path", r.URL.Path, "error", err)
					break
				}
				log.Error(ctx, "identity provider unavailable", "path", r.URL.Path, "error", err)
				logWriteErr(ctx, log, auth.WriteJSONError(w, http.StatusBadGateway, "identity provider unavailable", "upstream_error"))
				return
			case id != nil:
				u, err := users.GetOrCreate(ctx, id.UserID)
				if err != nil {
					if public {
						log.Warn(ctx, "user provisioning failed, continuing anonymously", "user_id", id.UserID, "error", err)
						break
					}
					log.Error(ctx, "user provisioning failed", "user_id", id.UserID, "error", err)
					logWriteErr(ctx, log, auth.WriteJSONError(w, http.StatusInternalServerError, "internal error", "storage_error"))
					return
				}
				current = u
				ctx = WithUser(auth.WithIdentity(ctx, id), u)
			}

			in := policy.Input{RouteClass: class}
			var userID string
			if current != nil {
				in.Authenticated = true
				in.Role = string(current.Role)
				userID = current.ID
			}

			decision, err := authz.Decide(ctx, in)
			if err != nil {
				log.Error(ctx, "access policy evaluation failed", "path", r.URL.Path, "error", err)
				logWriteErr(ctx, log, auth.WriteJSONError(w, http.StatusInternalServerError, "internal error", "server_error"))
				return
			}

			switch decision {
			case policy.Allow:
				next.ServeHTTP(w, r.WithContext(ctx))
			case policy.Unauthenticated:
				if wantsHTML(r) {
					http.Redirect(w, r, signInRedirect(signInURL, r.URL.RequestURI()), http.StatusFound)
					return
				}
				logWriteErr(ctx, log, auth.WriteUnauthorized(w))
			case policy.Forbidden:
				log.Warn(ctx, "admin access denied", "user_id", userID, "role", in.Role, "path", r.URL.Path)
				logWriteErr(ctx, log, auth.WriteForbidden(w))
			default:
				log.Warn(ctx, "access denied by policy", "path", r.URL.Path, "decision", decision)
				logWriteErr(ctx, log, auth.WriteForbidden(w))
			}
		})
	}
}

func logWriteErr(ctx context.Context, log logging.Logger, err error) {
	if err != nil {
		log.Warn(ctx, "failed to write error response", "error", err)
	}
}

// wantsHTML reports whether r is a browser navigation rather than an API call.
func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func signInRedirect(signInURL, returnTo string) string {
	u, err := url.Parse(signInURL)
	if err != nil {
		return signInURL
	}
	q := u.Query()
	q.Set("redirect_url", returnTo)
	u.RawQuery = q.Encode()
	return u.String()
}
