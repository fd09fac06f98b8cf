package admin

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"secretvault/internal/directory"
)

type profileEntry struct {
	profile   *directory.Profile // nil when the provider has no such user
	fetchedAt time.Time
}

// profileCache holds provider profiles between listings.
// It never participates in authorization; a zero TTL disables it.
type profileCache struct {
	ttl     time.Duration
	entries *xsync.MapOf[string, profileEntry]
}

func newProfileCache(ttl time.Duration) *profileCache {
	return &profileCache{
		ttl:     ttl,
		entries: xsync.NewMapOf[string, profileEntry](),
	}
}

// lookup returns cached profiles for ids. It only reports a hit when every
// id has a fresh entry, so a single miss sends the caller to the provider.
func (c *profileCache) lookup(ids []string, now time.Time) (map[string]*directory.Profile, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	out := make(map[string]*directory.Profile, len(ids))
	for _, id := range ids {
		e, ok := c.entries.Load(id)
		if !ok || now.Sub(e.fetchedAt) > c.ttl {
			return nil, false
		}
		out[id] = e.profile
	}
	return out, true
}

// fill records the provider's answer for ids, including the ones it had no profile for.
func (c *profileCache) fill(ids []string, profiles map[string]*directory.Profile, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	for _, id := range ids {
		c.entries.Store(id, profileEntry{profile: profiles[id], fetchedAt: now})
	}
}

func (c *profileCache) invalidate(id string) {
	c.entries.Delete(id)
}
