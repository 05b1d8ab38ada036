package shop

import (
	"sync"
	"time"
)

// PermCache memoizes admin permission checks with a TTL. The clock is
// injected so expiry is testable; one instance is built per Service and
// passed where needed, never a package singleton.
type PermCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]permEntry
}

type permEntry struct {
	allowed bool
	expires time.Time
}

// NewPermCache builds a cache; a zero TTL disables caching.
func NewPermCache(ttl time.Duration, now func() time.Time) *PermCache {
	if now == nil {
		now = time.Now
	}
	return &PermCache{ttl: ttl, now: now, entries: make(map[string]permEntry)}
}

// Get returns the cached decision and whether a live entry existed.
func (c *PermCache) Get(key string) (bool, bool) {
	if c.ttl <= 0 {
		return false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		delete(c.entries, key)
		return false, false
	}
	return e.allowed, true
}

// Put stores a decision until TTL from now.
func (c *PermCache) Put(key string, allowed bool) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = permEntry{allowed: allowed, expires: c.now().Add(c.ttl)}
}

// Authorize decides whether an email may administer a tenant, consulting the
// cache before the allowlist.
func (s *Service) Authorize(tenant, email string) bool {
	if email == "" || !validTenant(tenant) {
		return false
	}
	key := tenant + ":" + email
	if allowed, ok := s.perms.Get(key); ok {
		return allowed
	}
	allowed := false
	for _, e := range s.cfg.AdminEmails[tenant] {
		if e == email {
			allowed = true
			break
		}
	}
	s.perms.Put(key, allowed)
	return allowed
}
