package jwtauth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"secretvault/internal/apperr"
	"secretvault/internal/logging"
)

// minRefreshInterval bounds how often an unknown kid may force a refetch.
const minRefreshInterval = 30 * time.Second

// JWKSCache caches the provider's signing keys.
type JWKSCache struct {
	url        string
	mu         sync.RWMutex
	keys       map[string]any // kid -> public key
	lastFetch  time.Time
	cacheTTL   time.Duration
	httpClient *http.Client
	log        logging.Logger
}

// NewJWKSCache creates a new JWKS cache.
func NewJWKSCache(jwksURL string, log logging.Logger) *JWKSCache {
	if log == nil {
		log = logging.Nop()
	}
	return &JWKSCache{
		url:      jwksURL,
		keys:     make(map[string]any),
		cacheTTL: 10 * time.Minute,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// GetKey returns the public key for the given key ID.
// A kid missing from a stale or empty cache triggers one refresh, which also
// picks up keys rotated in since the last fetch.
func (c *JWKSCache) GetKey(ctx context.Context, kid string) (any, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	needsRefresh := time.Since(c.lastFetch) > c.cacheTTL
	c.mu.RUnlock()

	if ok && !needsRefresh {
		return key, nil
	}

	if err := c.refresh(ctx, !ok); err != nil {
		// If we have a cached key and refresh fails, use the cached key
		if ok {
			c.log.Warn(ctx, "JWKS refresh failed, using cached key", "kid", kid, "error", err)
			return key, nil
		}
		return nil, apperr.Upstream(fmt.Errorf("failed to fetch JWKS: %w", err))
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("key %s not found in JWKS", kid)
	}

	return key, nil
}

// JWKS represents a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

func (c *JWKSCache) refresh(ctx context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring lock. Forced refreshes for unknown kids
	// are still rate limited so bogus tokens cannot hammer the endpoint.
	window := c.cacheTTL
	if force {
		window = minRefreshInterval
	}
	if time.Since(c.lastFetch) < window && len(c.keys) > 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := decodeJSON(resp.Body, &jwks); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	newKeys := make(map[string]any)
	for _, key := range jwks.Keys {
		// Clerk omits "use" on some keys; only reject explicit non-signing keys.
		if key.Kty != "RSA" || (key.Use != "" && key.Use != "sig") {
			continue
		}

		publicKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			c.log.Warn(ctx, "failed to parse RSA key", "kid", key.Kid, "error", err)
			continue
		}

		newKeys[key.Kid] = publicKey
	}

	c.keys = newKeys
	c.lastFetch = time.Now()

	return nil
}
