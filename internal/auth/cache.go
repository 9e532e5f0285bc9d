package auth

import "sync"

// SessionCache is a single-slot cache of the last loaded session.
//
// The first Get after construction reports loaded=false so the caller reads
// storage once; afterwards the slot answers until Set or Clear changes it.
// The application root owns one cache and injects it into the Facade.
type SessionCache struct {
	mu      sync.Mutex
	loaded  bool
	session *Session
}

// NewSessionCache creates an empty, not-yet-loaded cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{}
}

// Get returns the cached session and whether the slot has been loaded.
func (c *SessionCache) Get() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.loaded
}

// Set replaces the slot. A nil session records "loaded, signed out".
func (c *SessionCache) Set(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.loaded = true
}

// Clear empties the slot without forcing another storage read.
func (c *SessionCache) Clear() {
	c.Set(nil)
}
