// Package jwtauth verifies identity-provider session tokens against a JWKS endpoint.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"secretvault/internal/apperr"
	"secretvault/internal/auth"
	"secretvault/internal/logging"
)

// clockSkew tolerates small clock differences with the provider.
const clockSkew = 5 * time.Second

// Claims represents the session token claims issued by Clerk.
type Claims struct {
	jwt.RegisteredClaims
	SessionID       string `json:"sid,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
}

// Config holds session verification configuration.
type Config struct {
	Issuer            string   // e.g., "https://clerk.example.com"
	JWKSURL           string   // defaults to Issuer + "/.well-known/jwks.json"
	AuthorizedParties []string // allowed azp values; empty allows any
}

// Verifier handles session token verification.
type Verifier struct {
	issuer  string
	parties []string
	jwks    *JWKSCache
	log     logging.Logger
}

// NewVerifier creates a new session verifier.
func NewVerifier(cfg Config, log logging.Logger) (*Verifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if log == nil {
		log = logging.Nop()
	}

	issuer := strings.TrimSuffix(cfg.Issuer, "/")
	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}

	return &Verifier{
		issuer:  issuer,
		parties: cfg.AuthorizedParties,
		jwks:    NewJWKSCache(jwksURL, log),
		log:     log,
	}, nil
}

// Verify verifies a session token and returns the claims.
// Errors caused by an unreachable key source wrap apperr.ErrUpstream; every
// other failure means the token itself is not acceptable.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("missing kid in token header")
		}
		return v.jwks.GetKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.Subject == "" {
		return nil, errors.New("missing subject")
	}

	if !v.verifyAuthorizedParty(claims) {
		return nil, fmt.Errorf("unauthorized party: %s", claims.AuthorizedParty)
	}

	return claims, nil
}

func (v *Verifier) verifyAuthorizedParty(claims *Claims) bool {
	if len(v.parties) == 0 || claims.AuthorizedParty == "" {
		return true
	}
	return slices.Contains(v.parties, claims.AuthorizedParty)
}

// Resolve implements auth.Resolver using the request's session token.
func (v *Verifier) Resolve(r *http.Request) (*auth.Identity, error) {
	token, err := auth.ExtractSessionToken(r)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, err)
	}

	claims, err := v.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, apperr.ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, err)
	}

	return &auth.Identity{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
	}, nil
}
